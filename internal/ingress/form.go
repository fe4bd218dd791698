// Package ingress validates and normalizes inbound provider webhooks into
// the orchestrator's internal event vocabulary.
package ingress

import (
	"net/http"
	"strconv"
	"strings"

	"pharmacy-voice-agent/internal/session"
)

// The provider delivers voice webhooks as application/x-www-form-urlencoded.
// Only the fields the pipeline consumes are captured here; everything else
// on the wire is ignored.

// StatusForm is the call status callback payload.
type StatusForm struct {
	CallSid    string
	CallStatus string
	From       string
	To         string
}

// RecordingForm is the recording-ready callback payload.
type RecordingForm struct {
	CallSid           string
	RecordingSid      string
	RecordingURL      string
	RecordingDuration int
}

// TranscriptionForm is the transcription callback payload.
type TranscriptionForm struct {
	CallSid             string
	TranscriptionStatus string
	TranscriptionText   string
}

func ParseStatusCallback(r *http.Request) (StatusForm, error) {
	if err := r.ParseForm(); err != nil {
		return StatusForm{}, err
	}
	return StatusForm{
		CallSid:    strings.TrimSpace(r.PostFormValue("CallSid")),
		CallStatus: strings.TrimSpace(r.PostFormValue("CallStatus")),
		From:       strings.TrimSpace(r.PostFormValue("From")),
		To:         strings.TrimSpace(r.PostFormValue("To")),
	}, nil
}

func ParseRecordingCallback(r *http.Request) (RecordingForm, error) {
	if err := r.ParseForm(); err != nil {
		return RecordingForm{}, err
	}
	dur, _ := strconv.Atoi(strings.TrimSpace(r.PostFormValue("RecordingDuration")))
	return RecordingForm{
		CallSid:           strings.TrimSpace(r.PostFormValue("CallSid")),
		RecordingSid:      strings.TrimSpace(r.PostFormValue("RecordingSid")),
		RecordingURL:      strings.TrimSpace(r.PostFormValue("RecordingUrl")),
		RecordingDuration: dur,
	}, nil
}

func ParseTranscriptionCallback(r *http.Request) (TranscriptionForm, error) {
	if err := r.ParseForm(); err != nil {
		return TranscriptionForm{}, err
	}
	return TranscriptionForm{
		CallSid:             strings.TrimSpace(r.PostFormValue("CallSid")),
		TranscriptionStatus: strings.TrimSpace(r.PostFormValue("TranscriptionStatus")),
		TranscriptionText:   r.PostFormValue("TranscriptionText"),
	}, nil
}

func (f StatusForm) ToEvent() session.Event {
	return session.Event{
		ProviderCallID: f.CallSid,
		Type:           session.EventStatus,
		Status:         f.CallStatus,
	}
}

func (f RecordingForm) ToEvent() session.Event {
	return session.Event{
		ProviderCallID: f.CallSid,
		Type:           session.EventRecording,
		Recording: &session.Recording{
			ID:              f.RecordingSid,
			URL:             f.RecordingURL,
			DurationSeconds: f.RecordingDuration,
		},
	}
}

func (f TranscriptionForm) ToEvent() session.Event {
	return session.Event{
		ProviderCallID:      f.CallSid,
		Type:                session.EventTranscription,
		TranscriptionStatus: f.TranscriptionStatus,
		TranscriptText:      f.TranscriptionText,
	}
}
