package telephony

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"pharmacy-voice-agent/internal/session"
)

type recordingSink struct {
	mu     sync.Mutex
	events []session.Event
	done   chan struct{}
}

func newRecordingSink(expect int) *recordingSink {
	return &recordingSink{done: make(chan struct{}, expect)}
}

func (s *recordingSink) HandleEvent(ctx context.Context, ev session.Event) error {
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	s.done <- struct{}{}
	return nil
}

func (s *recordingSink) wait(t *testing.T, n int) []session.Event {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-s.done:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i+1)
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]session.Event, len(s.events))
	copy(out, s.events)
	return out
}

func TestSimulatedProvider_DeliversFullSequence(t *testing.T) {
	sink := newRecordingSink(4)
	p := NewSimulatedProvider(sink, nil)
	p.SetDelay(time.Millisecond)

	res, err := p.PlaceCall(context.Background(), PlaceCallRequest{
		To:     "+1234567890",
		Script: ScriptParams{MedicationName: "Metformin"},
	})
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if !strings.HasPrefix(res.ProviderCallID, simulatedCallPrefix) {
		t.Fatalf("expected SIM_ call id, got %q", res.ProviderCallID)
	}
	if !res.Simulated {
		t.Fatalf("expected simulated flag")
	}

	events := sink.wait(t, 4)
	if events[0].Status != session.StatusRinging || events[1].Status != session.StatusAnswered {
		t.Fatalf("unexpected status sequence: %+v", events[:2])
	}
	if events[2].Type != session.EventRecording || events[2].Recording == nil {
		t.Fatalf("expected recording event, got %+v", events[2])
	}
	last := events[3]
	if last.Type != session.EventTranscription || last.TranscriptionStatus != session.TranscriptionCompleted {
		t.Fatalf("expected completed transcription, got %+v", last)
	}
	if !strings.Contains(last.TranscriptText, "Metformin") {
		t.Fatalf("expected transcript to mention the medication, got %q", last.TranscriptText)
	}

	details, err := p.FetchCallDetails(context.Background(), res.ProviderCallID)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if details.Status != session.StatusCompleted || len(details.Recordings) != 1 {
		t.Fatalf("unexpected details: %+v", details)
	}
	if details.Recordings[0].TranscriptText != last.TranscriptText {
		t.Fatalf("fetch and webhook transcript should match")
	}
}

func TestSimulatedProvider_UnknownCall(t *testing.T) {
	p := NewSimulatedProvider(nil, nil)
	if _, err := p.FetchCallDetails(context.Background(), "CA_live"); err == nil {
		t.Fatalf("expected error for non-simulated id")
	}
}
