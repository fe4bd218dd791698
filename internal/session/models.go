// Package session defines the call-session record, the webhook event
// vocabulary, and the lifecycle transition rules.
package session

import (
	"time"

	"pharmacy-voice-agent/internal/classifier"
)

// CallSession is the stateful record of one outbound availability call.
//
// Invariants:
// - ID is the provider-assigned call identifier, immutable after creation.
// - Verdict is set iff State == StateCompleted and the transcript classified
//   with MedicationFound == true.
// - StateFailed accepts no further mutation.
// - Every applied transition strictly advances LastUpdatedAt.
//
// Sessions are owned by the orchestrator; repositories are pass-through
// persistence with no business logic.
type CallSession struct {
	ID            string            `json:"id" db:"id"`
	DestinationID string            `json:"destination_id" db:"destination_id"`
	Request       MedicationRequest `json:"request" db:"request"`

	State State `json:"state" db:"state"`

	Recording  *Recording          `json:"recording,omitempty" db:"recording"`
	Transcript string              `json:"transcript,omitempty" db:"transcript"`
	Verdict    *classifier.Verdict `json:"verdict,omitempty" db:"verdict"`

	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	LastUpdatedAt time.Time `json:"last_updated_at" db:"last_updated_at"`
}

// MedicationRequest captures what the call is asking about.
// Immutable once the session is created.
type MedicationRequest struct {
	MedicationName string       `json:"medication_name"`
	Dosage         string       `json:"dosage,omitempty"`
	Quantity       string       `json:"quantity,omitempty"`
	PatientInfo    *PatientInfo `json:"patient_info,omitempty"`
}

type PatientInfo struct {
	Name          string `json:"name,omitempty"`
	Phone         string `json:"phone,omitempty"`
	InsuranceInfo string `json:"insurance_info,omitempty"`
}

// Recording points at the provider-hosted audio for a call.
type Recording struct {
	ID              string `json:"id"`
	URL             string `json:"url"`
	DurationSeconds int    `json:"duration_seconds"`
}

type State string

const (
	StateInitiated    State = "initiated"
	StateRinging      State = "ringing"
	StateAnswered     State = "answered"
	StateRecording    State = "recording"
	StateTranscribing State = "transcribing"
	StateCompleted    State = "completed"
	StateFailed       State = "failed"
)

// Terminal reports whether no further transitions are accepted from s.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed
}

// Valid reports whether s is one of the known lifecycle states.
func (s State) Valid() bool {
	return s == StateFailed || s.rank() >= 0
}

// rank orders the forward lifecycle. Provider webhooks can be delivered out
// of order or skip intermediate steps, so transitions are accepted whenever
// they move strictly forward in this order.
func (s State) rank() int {
	switch s {
	case StateInitiated:
		return 0
	case StateRinging:
		return 1
	case StateAnswered:
		return 2
	case StateRecording:
		return 3
	case StateTranscribing:
		return 4
	case StateCompleted:
		return 5
	default:
		return -1
	}
}

// CanAdvanceTo reports whether a transition from s to next is a legal
// forward move. StateFailed is reachable from any non-terminal state.
func (s State) CanAdvanceTo(next State) bool {
	if s.Terminal() {
		return false
	}
	if next == StateFailed {
		return true
	}
	return next.rank() > s.rank()
}
