// Package orchestrator owns the call-session state machine: it places calls,
// correlates webhook events back to sessions, drives transitions, and feeds
// completed transcripts through the classifier into the directory.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pharmacy-voice-agent/internal/classifier"
	"pharmacy-voice-agent/internal/directory"
	"pharmacy-voice-agent/internal/session"
	"pharmacy-voice-agent/internal/telephony"
	"pharmacy-voice-agent/pkg/metrics"
	"pharmacy-voice-agent/pkg/utils"
)

var (
	ErrInvalidArgument     = errors.New("orchestrator: invalid argument")
	ErrDestinationNotFound = errors.New("orchestrator: destination not found")
	ErrSessionNotFound     = errors.New("orchestrator: session not found")
	ErrInvalidTransition   = errors.New("orchestrator: invalid transition")
	ErrCallCapExceeded     = errors.New("orchestrator: outbound call cap exceeded")
)

const (
	callSlotKey = "telephony:outbound:slots"

	// callSlotTTL bounds how long a stalled call can hold a slot; a session
	// that never receives a terminal webhook must not pin capacity forever.
	callSlotTTL = 10 * time.Minute

	// estimatedWait is what callers are told before polling for a verdict.
	estimatedWait = "2-5 minutes"
)

// Options carries the optional collaborators.
type Options struct {
	// Redis enables the outbound-call concurrency cap when MaxConcurrentCalls > 0.
	Redis              *redis.Client
	MaxConcurrentCalls int

	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Service is the single logical owner of every call session. All mutations
// to one session are serialized through a per-session lock; different
// sessions proceed fully in parallel.
type Service struct {
	provider  telephony.Provider
	sessions  session.Repository
	directory *directory.Service

	webhookBaseURL string

	rdb     *redis.Client
	maxCall int
	met     *metrics.Metrics
	log     *slog.Logger
	clock   func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewService(provider telephony.Provider, sessions session.Repository, dir *directory.Service, webhookBaseURL string, opts Options) *Service {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		provider:       provider,
		sessions:       sessions,
		directory:      dir,
		webhookBaseURL: webhookBaseURL,
		rdb:            opts.Redis,
		maxCall:        opts.MaxConcurrentCalls,
		met:            opts.Metrics,
		log:            log,
		clock:          time.Now,
		locks:          make(map[string]*sync.Mutex),
	}
}

// InitiateResult is returned to the caller immediately; call progress is
// delivered later through webhooks.
type InitiateResult struct {
	SessionID       string `json:"session_id"`
	DestinationName string `json:"destination_name"`
	EstimatedWait   string `json:"estimated_wait"`
	Simulated       bool   `json:"simulated,omitempty"`
}

// InitiateCheck resolves the destination, places the availability call, and
// registers a new session in the initiated state. It never blocks on call
// completion.
func (s *Service) InitiateCheck(ctx context.Context, destinationID string, req session.MedicationRequest) (InitiateResult, error) {
	if destinationID == "" || strings.TrimSpace(req.MedicationName) == "" {
		return InitiateResult{}, ErrInvalidArgument
	}

	dest, err := s.directory.Get(ctx, destinationID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return InitiateResult{}, ErrDestinationNotFound
		}
		return InitiateResult{}, fmt.Errorf("orchestrator: resolve destination: %w", err)
	}

	if err := s.acquireCallSlot(ctx); err != nil {
		return InitiateResult{}, err
	}

	placed, err := s.provider.PlaceCall(ctx, telephony.PlaceCallRequest{
		To: dest.Phone,
		Script: telephony.ScriptParams{
			MedicationName: req.MedicationName,
			Dosage:         req.Dosage,
			Quantity:       req.Quantity,
		},
		WebhookBaseURL: s.webhookBaseURL,
	})
	if err != nil {
		s.releaseCallSlot(ctx)
		if s.met != nil {
			s.met.ErrorsCount.WithLabelValues("place_call").Inc()
		}
		return InitiateResult{}, fmt.Errorf("orchestrator: place call to %s: %w", dest.Name, err)
	}

	now := s.clock().UTC()
	sess := session.CallSession{
		ID:            placed.ProviderCallID,
		DestinationID: dest.ID,
		Request:       req,
		State:         session.StateInitiated,
		CreatedAt:     now,
		LastUpdatedAt: now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		// The call is already in flight; a lost session record means its
		// webhooks will be rejected as unknown. Surface the write failure.
		s.releaseCallSlot(ctx)
		return InitiateResult{}, fmt.Errorf("orchestrator: persist session %s: %w", sess.ID, err)
	}

	if s.met != nil {
		s.met.CallsInitiated.Inc()
	}
	s.log.Info("availability check initiated",
		"session_id", sess.ID,
		"destination", dest.Name,
		"medication", req.MedicationName,
		"provider", s.provider.Name(),
	)

	return InitiateResult{
		SessionID:       sess.ID,
		DestinationName: dest.Name,
		EstimatedWait:   estimatedWait,
		Simulated:       placed.Simulated,
	}, nil
}

// HandleEvent applies one normalized provider event to its session.
//
// Contract:
// - Unknown session ids are rejected with ErrSessionNotFound; sessions are
//   never created implicitly.
// - Unknown status values are accepted without advancing state.
// - After a terminal state, duplicated events are accepted idempotently and
//   anything else is rejected as ErrInvalidTransition.
func (s *Service) HandleEvent(ctx context.Context, ev session.Event) error {
	if ev.ProviderCallID == "" {
		return ErrInvalidArgument
	}
	if s.met != nil {
		s.met.WebhookEvents.WithLabelValues(string(ev.Type)).Inc()
	}

	lock := s.sessionLock(ev.ProviderCallID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.sessions.Get(ctx, ev.ProviderCallID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("orchestrator: load session %s: %w", ev.ProviderCallID, err)
	}

	switch ev.Type {
	case session.EventStatus:
		err = s.applyStatus(ctx, sess, ev)
	case session.EventRecording:
		err = s.applyRecording(ctx, sess, ev)
	case session.EventTranscription:
		err = s.applyTranscription(ctx, sess, ev)
	default:
		s.log.Warn("unknown event type ignored", "session_id", sess.ID, "type", ev.Type)
		return nil
	}

	if errors.Is(err, ErrInvalidTransition) && s.met != nil {
		s.met.InvalidTransitions.Inc()
	}
	return err
}

func (s *Service) applyStatus(ctx context.Context, sess session.CallSession, ev session.Event) error {
	next, ok := session.StateForStatus(ev.Status)
	if !ok {
		// Forward-compatibility: unknown or non-driving statuses are
		// logged and ignored, never fatal.
		s.log.Debug("status ignored", "session_id", sess.ID, "status", ev.Status, "state", sess.State)
		return nil
	}

	if next == sess.State {
		// Duplicate delivery of the status we already applied.
		return nil
	}
	if !sess.State.CanAdvanceTo(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sess.State, next)
	}

	prev := sess.State
	sess.State = next
	sess.LastUpdatedAt = s.nextUpdateTime(sess.LastUpdatedAt)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("orchestrator: persist session %s: %w", sess.ID, err)
	}
	s.log.Info("session state changed", "session_id", sess.ID, "from", prev, "to", next)

	if next == session.StateFailed {
		s.releaseCallSlot(ctx)
	}
	return nil
}

func (s *Service) applyRecording(ctx context.Context, sess session.CallSession, ev session.Event) error {
	if ev.Recording == nil {
		return ErrInvalidArgument
	}
	if sess.Recording != nil && sess.Recording.ID == ev.Recording.ID {
		return nil
	}
	if sess.State.Terminal() {
		return fmt.Errorf("%w: recording after %s", ErrInvalidTransition, sess.State)
	}

	sess.Recording = ev.Recording
	// A late recording callback while already transcribing keeps the newer
	// state; otherwise it advances the lifecycle.
	if sess.State.CanAdvanceTo(session.StateRecording) {
		sess.State = session.StateRecording
	}
	sess.LastUpdatedAt = s.nextUpdateTime(sess.LastUpdatedAt)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("orchestrator: persist session %s: %w", sess.ID, err)
	}
	s.log.Info("recording attached", "session_id", sess.ID, "recording_id", ev.Recording.ID)
	return nil
}

func (s *Service) applyTranscription(ctx context.Context, sess session.CallSession, ev session.Event) error {
	if ev.TranscriptionStatus != session.TranscriptionCompleted {
		// Transcription submitted but not finished yet.
		if sess.State.Terminal() {
			return fmt.Errorf("%w: transcription %q after %s", ErrInvalidTransition, ev.TranscriptionStatus, sess.State)
		}
		if sess.State.CanAdvanceTo(session.StateTranscribing) {
			sess.State = session.StateTranscribing
			sess.LastUpdatedAt = s.nextUpdateTime(sess.LastUpdatedAt)
			if err := s.sessions.Save(ctx, sess); err != nil {
				return fmt.Errorf("orchestrator: persist session %s: %w", sess.ID, err)
			}
		}
		return nil
	}

	if strings.TrimSpace(ev.TranscriptText) == "" {
		// Completed without text happens when the reply was silence; there
		// is nothing to classify and the session stays where it is.
		s.log.Warn("transcription completed without text", "session_id", sess.ID)
		return nil
	}

	if sess.State.Terminal() {
		if sess.State == session.StateCompleted && sess.Transcript == ev.TranscriptText {
			// Redelivery of the transcript we already processed.
			return nil
		}
		return fmt.Errorf("%w: transcription after %s", ErrInvalidTransition, sess.State)
	}

	verdict := classifier.Classify(ev.TranscriptText)

	sess.Transcript = ev.TranscriptText
	if verdict.MedicationFound {
		sess.Verdict = &verdict
	}
	sess.State = session.StateCompleted
	sess.LastUpdatedAt = s.nextUpdateTime(sess.LastUpdatedAt)
	if err := s.sessions.Save(ctx, sess); err != nil {
		return fmt.Errorf("orchestrator: persist session %s: %w", sess.ID, err)
	}

	if s.met != nil {
		s.met.Classifications.WithLabelValues(classificationOutcome(verdict)).Inc()
	}
	s.log.Info("session completed",
		"session_id", sess.ID,
		"medication_found", verdict.MedicationFound,
		"available", verdict.Available,
		"confidence", verdict.Confidence,
	)

	if verdict.MedicationFound {
		err := s.directory.ApplyAvailability(ctx, sess.DestinationID, sess.Request.MedicationName, directory.AvailabilityRecord{
			Available:   verdict.Available,
			Quantity:    verdict.Quantity,
			Price:       verdict.Price,
			LastChecked: sess.LastUpdatedAt,
		})
		if err != nil {
			// A dangling destination reference must not fail event
			// processing; the verdict is already on the session.
			s.log.Warn("inventory update skipped", "session_id", sess.ID, "destination_id", sess.DestinationID, "err", err)
		}
	}

	s.releaseCallSlot(ctx)
	return nil
}

// StatusResult is the poll-side view of a session.
type StatusResult struct {
	SessionID string              `json:"session_id"`
	State     session.State       `json:"state"`
	Verdict   *classifier.Verdict `json:"verdict,omitempty"`
	Recording *session.Recording  `json:"recording,omitempty"`
}

// GetStatus returns the current state and, once completed, the verdict.
// Callers polling a session that never progresses should apply their own
// timeout policy; the core does not expire sessions.
func (s *Service) GetStatus(ctx context.Context, sessionID string) (StatusResult, error) {
	if sessionID == "" {
		return StatusResult{}, ErrInvalidArgument
	}
	sess, err := s.sessions.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, session.ErrNotFound) {
			return StatusResult{}, ErrSessionNotFound
		}
		return StatusResult{}, fmt.Errorf("orchestrator: load session %s: %w", sessionID, err)
	}
	return StatusResult{
		SessionID: sess.ID,
		State:     sess.State,
		Verdict:   sess.Verdict,
		Recording: sess.Recording,
	}, nil
}

// sessionLock returns the mutex serializing all mutations for one session.
func (s *Service) sessionLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[id]
	if !ok {
		l = &sync.Mutex{}
		s.locks[id] = l
	}
	return l
}

// nextUpdateTime guarantees LastUpdatedAt strictly increases even under
// coarse clocks or injected test clocks.
func (s *Service) nextUpdateTime(prev time.Time) time.Time {
	now := s.clock().UTC()
	if !now.After(prev) {
		return prev.Add(time.Millisecond)
	}
	return now
}

func (s *Service) acquireCallSlot(ctx context.Context) error {
	if s.rdb == nil || s.maxCall <= 0 {
		return nil
	}
	ok, err := utils.AcquireCallSlot(ctx, s.rdb, callSlotKey, s.maxCall, callSlotTTL)
	if err != nil {
		return fmt.Errorf("orchestrator: acquire call slot: %w", err)
	}
	if !ok {
		return ErrCallCapExceeded
	}
	return nil
}

func (s *Service) releaseCallSlot(ctx context.Context) {
	if s.rdb == nil || s.maxCall <= 0 {
		return
	}
	if err := utils.ReleaseCallSlot(ctx, s.rdb, callSlotKey); err != nil {
		s.log.Warn("call slot release failed", "err", err)
	}
}

func classificationOutcome(v classifier.Verdict) string {
	switch {
	case !v.MedicationFound:
		return "no_match"
	case v.Available && v.Confidence == classifier.ConfidenceMedium:
		return "limited"
	case v.Available:
		return "available"
	default:
		return "unavailable"
	}
}
