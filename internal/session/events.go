package session

// EventType names the normalized webhook event kinds the orchestrator
// understands. The ingress layer maps provider wire formats onto these.
type EventType string

const (
	EventStatus        EventType = "status"
	EventRecording     EventType = "recording"
	EventTranscription EventType = "transcription"
)

// Event is a normalized provider callback correlated to a session by the
// provider call id.
type Event struct {
	ProviderCallID string    `json:"provider_call_id"`
	Type           EventType `json:"type"`

	// Status carries the provider status vocabulary for EventStatus.
	Status string `json:"status,omitempty"`

	// Recording is set for EventRecording.
	Recording *Recording `json:"recording,omitempty"`

	// TranscriptionStatus and TranscriptText are set for EventTranscription.
	TranscriptionStatus string `json:"transcription_status,omitempty"`
	TranscriptText      string `json:"transcript_text,omitempty"`
}

// TranscriptionCompleted is the provider value meaning the transcript is
// final and text should be present.
const TranscriptionCompleted = "completed"

// Provider status vocabulary (Twilio call status callback values).
const (
	StatusQueued     = "queued"
	StatusInitiated  = "initiated"
	StatusRinging    = "ringing"
	StatusAnswered   = "answered"
	StatusInProgress = "in-progress"
	StatusRecording  = "recording-started"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
	StatusNoAnswer   = "no-answer"
	StatusBusy       = "busy"
	StatusCanceled   = "canceled"
)

// StateForStatus maps a provider status value to the session state it
// advances toward. The second return is false for values that do not drive
// a transition; unknown values also return false so that new provider
// statuses are ignored rather than fatal.
func StateForStatus(status string) (State, bool) {
	switch status {
	case StatusRinging:
		return StateRinging, true
	case StatusAnswered, StatusInProgress:
		return StateAnswered, true
	case StatusRecording:
		return StateRecording, true
	case StatusFailed, StatusNoAnswer, StatusBusy, StatusCanceled:
		return StateFailed, true
	default:
		// "queued", "initiated", "completed" and anything unrecognized:
		// the call-status "completed" alone does not complete a session,
		// only a final transcript does.
		return "", false
	}
}
