package telephony

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"pharmacy-voice-agent/internal/session"
)

// EventSink receives synthesized provider events. The orchestrator
// implements it; the simulated provider pushes events through it exactly the
// way live webhooks would arrive through the ingress.
type EventSink interface {
	HandleEvent(ctx context.Context, ev session.Event) error
}

// SimulatedProvider synthesizes calls for environments without live
// credentials. Results are structurally identical to the Twilio path: a call
// id is returned immediately and status/transcription events are delivered
// asynchronously after a short delay.
type SimulatedProvider struct {
	sink  EventSink
	log   *slog.Logger
	delay time.Duration

	mu    sync.Mutex
	calls map[string]ScriptParams
}

const simulatedCallPrefix = "SIM_"

func NewSimulatedProvider(sink EventSink, log *slog.Logger) *SimulatedProvider {
	if log == nil {
		log = slog.Default()
	}
	return &SimulatedProvider{
		sink:  sink,
		log:   log,
		delay: 2 * time.Second,
		calls: make(map[string]ScriptParams),
	}
}

// SetDelay adjusts the synthetic reply delay. Tests set it near zero.
func (p *SimulatedProvider) SetDelay(d time.Duration) { p.delay = d }

// SetSink wires the event sink after construction; the orchestrator and the
// provider reference each other, so one side is attached late.
func (p *SimulatedProvider) SetSink(sink EventSink) { p.sink = sink }

func (p *SimulatedProvider) Name() string { return "simulated" }

func (p *SimulatedProvider) PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error) {
	if req.To == "" {
		return PlaceCallResult{}, errors.New("telephony: destination number is required")
	}

	callID := fmt.Sprintf("%s%d_%s", simulatedCallPrefix, time.Now().UnixMilli(), shortID())

	p.mu.Lock()
	p.calls[callID] = req.Script
	p.mu.Unlock()

	p.log.Info("simulated call placed", "call_id", callID, "to", req.To, "medication", req.Script.MedicationName)

	go p.deliverEvents(callID, req.Script)

	return PlaceCallResult{ProviderCallID: callID, Simulated: true}, nil
}

func (p *SimulatedProvider) FetchCallDetails(ctx context.Context, providerCallID string) (CallDetails, error) {
	if !strings.HasPrefix(providerCallID, simulatedCallPrefix) {
		return CallDetails{}, fmt.Errorf("telephony: unknown simulated call %q", providerCallID)
	}
	p.mu.Lock()
	script, ok := p.calls[providerCallID]
	p.mu.Unlock()
	if !ok {
		return CallDetails{}, fmt.Errorf("telephony: unknown simulated call %q", providerCallID)
	}
	return CallDetails{
		ProviderCallID:  providerCallID,
		Status:          session.StatusCompleted,
		DurationSeconds: 45,
		Recordings: []RecordingDetail{{
			ID:              "REC_" + providerCallID,
			URL:             "/recordings/simulated",
			DurationSeconds: 30,
			TranscriptText:  cannedTranscript(script),
		}},
	}, nil
}

// deliverEvents plays the happy-path webhook sequence into the sink.
func (p *SimulatedProvider) deliverEvents(callID string, script ScriptParams) {
	if p.sink == nil {
		p.log.Warn("simulated provider has no event sink", "call_id", callID)
		return
	}
	time.Sleep(p.delay)

	ctx := context.Background()
	steps := []session.Event{
		{ProviderCallID: callID, Type: session.EventStatus, Status: session.StatusRinging},
		{ProviderCallID: callID, Type: session.EventStatus, Status: session.StatusAnswered},
		{ProviderCallID: callID, Type: session.EventRecording, Recording: &session.Recording{
			ID:              "REC_" + callID,
			URL:             "/recordings/simulated",
			DurationSeconds: 30,
		}},
		{
			ProviderCallID:      callID,
			Type:                session.EventTranscription,
			TranscriptionStatus: session.TranscriptionCompleted,
			TranscriptText:      cannedTranscript(script),
		},
	}
	for _, ev := range steps {
		if err := p.sink.HandleEvent(ctx, ev); err != nil {
			p.log.Warn("simulated event rejected", "call_id", callID, "type", ev.Type, "err", err)
		}
	}
}

func cannedTranscript(script ScriptParams) string {
	name := strings.TrimSpace(script.MedicationName)
	if name == "" {
		name = "that medication"
	}
	return fmt.Sprintf(
		"Yes, we have %s in stock. We have 50+ tablets available at $15.99. Would you like us to hold it for pickup?",
		name,
	)
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:9]
}
