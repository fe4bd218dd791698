package telephony

import (
	"context"
)

// Provider is the provider-agnostic interface the orchestrator places calls
// through.
//
// Rules:
// - No provider SDK calls outside telephony adapters.
// - Keep request/response types provider-agnostic; the orchestrator must not
//   care whether a call is live or simulated.
type Provider interface {
	Name() string

	// PlaceCall starts an outbound call that speaks the availability script
	// and records the spoken reply. It returns as soon as the provider has
	// accepted the call; progress arrives later via webhooks.
	PlaceCall(ctx context.Context, req PlaceCallRequest) (PlaceCallResult, error)

	// FetchCallDetails retrieves current call state and any recordings,
	// including transcripts where the provider has produced them.
	FetchCallDetails(ctx context.Context, providerCallID string) (CallDetails, error)
}

// ScriptParams parameterizes the spoken availability script.
type ScriptParams struct {
	MedicationName string `json:"medication_name"`
	Dosage         string `json:"dosage,omitempty"`
	Quantity       string `json:"quantity,omitempty"`
}

type PlaceCallRequest struct {
	// To is the destination phone number (E.164 where possible).
	To string `json:"to"`

	Script ScriptParams `json:"script"`

	// WebhookBaseURL is the base under which the provider will deliver
	// status, recording and transcription callbacks.
	WebhookBaseURL string `json:"webhook_base_url"`
}

type PlaceCallResult struct {
	// ProviderCallID is the provider's unique identifier for the call and
	// becomes the session id.
	ProviderCallID string `json:"provider_call_id"`

	// Simulated marks calls synthesized without a live provider.
	Simulated bool `json:"simulated,omitempty"`
}

// CallDetails is a provider-agnostic snapshot of a call and its recordings.
type CallDetails struct {
	ProviderCallID  string `json:"provider_call_id"`
	Status          string `json:"status"`
	DurationSeconds int    `json:"duration_seconds"`

	Recordings []RecordingDetail `json:"recordings"`
}

type RecordingDetail struct {
	ID              string `json:"id"`
	URL             string `json:"url"`
	DurationSeconds int    `json:"duration_seconds"`

	// TranscriptText is empty until the provider has transcribed the
	// recording.
	TranscriptText string `json:"transcript_text,omitempty"`
}
