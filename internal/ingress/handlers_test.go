package ingress

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"pharmacy-voice-agent/internal/orchestrator"
	"pharmacy-voice-agent/internal/session"
)

type stubHandler struct {
	events []session.Event
	err    error
}

func (s *stubHandler) HandleEvent(ctx context.Context, ev session.Event) error {
	s.events = append(s.events, ev)
	return s.err
}

func newRouter(h Handlers) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/webhooks/voice/status", h.Status)
	r.POST("/webhooks/voice/recording", h.Recording)
	r.POST("/webhooks/voice/transcription", h.Transcription)
	r.POST("/webhooks/voice/script", h.Script)
	r.POST("/webhooks/voice/response", h.Response)
	return r
}

func postForm(r *gin.Engine, path string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestStatus_NormalizesAndAcks(t *testing.T) {
	stub := &stubHandler{}
	r := newRouter(Handlers{Orchestrator: stub})

	w := postForm(r, "/webhooks/voice/status", url.Values{
		"CallSid":    {"CA123"},
		"CallStatus": {"ringing"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if len(stub.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(stub.events))
	}
	ev := stub.events[0]
	if ev.Type != session.EventStatus || ev.ProviderCallID != "CA123" || ev.Status != "ringing" {
		t.Fatalf("unexpected event: %+v", ev)
	}
}

func TestStatus_MissingCallSidIsBadRequest(t *testing.T) {
	stub := &stubHandler{}
	r := newRouter(Handlers{Orchestrator: stub})

	w := postForm(r, "/webhooks/voice/status", url.Values{"CallStatus": {"ringing"}})
	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
	if len(stub.events) != 0 {
		t.Fatalf("malformed payload must not be dispatched")
	}
}

func TestDispatch_UnknownSessionStillAcks(t *testing.T) {
	stub := &stubHandler{err: orchestrator.ErrSessionNotFound}
	r := newRouter(Handlers{Orchestrator: stub})

	w := postForm(r, "/webhooks/voice/status", url.Values{
		"CallSid":    {"CA404"},
		"CallStatus": {"ringing"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("unknown session must still be acknowledged, got %d", w.Code)
	}
}

func TestDispatch_InvalidTransitionStillAcks(t *testing.T) {
	stub := &stubHandler{err: orchestrator.ErrInvalidTransition}
	r := newRouter(Handlers{Orchestrator: stub})

	w := postForm(r, "/webhooks/voice/transcription", url.Values{
		"CallSid":             {"CA123"},
		"TranscriptionStatus": {"completed"},
		"TranscriptionText":   {"yes"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("invalid transition must still be acknowledged, got %d", w.Code)
	}
}

func TestDispatch_InfrastructureFailureIs5xx(t *testing.T) {
	stub := &stubHandler{err: context.DeadlineExceeded}
	r := newRouter(Handlers{Orchestrator: stub})

	w := postForm(r, "/webhooks/voice/status", url.Values{
		"CallSid":    {"CA123"},
		"CallStatus": {"ringing"},
	})
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("infrastructure failure should surface as 5xx, got %d", w.Code)
	}
}

func TestRecording_NormalizesPayload(t *testing.T) {
	stub := &stubHandler{}
	r := newRouter(Handlers{Orchestrator: stub})

	w := postForm(r, "/webhooks/voice/recording", url.Values{
		"CallSid":           {"CA123"},
		"RecordingSid":      {"RE1"},
		"RecordingUrl":      {"https://api.example.com/rec/RE1"},
		"RecordingDuration": {"30"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	ev := stub.events[0]
	if ev.Type != session.EventRecording || ev.Recording == nil {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.Recording.ID != "RE1" || ev.Recording.DurationSeconds != 30 {
		t.Fatalf("recording not normalized: %+v", ev.Recording)
	}
}

func TestTranscription_NormalizesPayload(t *testing.T) {
	stub := &stubHandler{}
	r := newRouter(Handlers{Orchestrator: stub})

	w := postForm(r, "/webhooks/voice/transcription", url.Values{
		"CallSid":             {"CA123"},
		"TranscriptionStatus": {"completed"},
		"TranscriptionText":   {"yes we have it"},
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	ev := stub.events[0]
	if ev.Type != session.EventTranscription || ev.TranscriptText != "yes we have it" {
		t.Fatalf("unexpected event: %+v", ev)
	}
	if ev.TranscriptionStatus != session.TranscriptionCompleted {
		t.Fatalf("unexpected transcription status: %q", ev.TranscriptionStatus)
	}
}

func TestScript_EchoesMedicationRequest(t *testing.T) {
	r := newRouter(Handlers{Orchestrator: &stubHandler{}, WebhookBaseURL: "http://localhost/webhooks/voice"})

	w := postForm(r, "/webhooks/voice/script?medication_name=Lisinopril&dosage=10mg", url.Values{})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "Lisinopril") || !strings.Contains(body, "10mg") {
		t.Fatalf("script must echo the request:\n%s", body)
	}
	if ct := w.Header().Get("Content-Type"); !strings.Contains(ct, "xml") {
		t.Fatalf("expected xml content type, got %q", ct)
	}
}

func TestResponse_ReturnsHangupScript(t *testing.T) {
	r := newRouter(Handlers{Orchestrator: &stubHandler{}})

	w := postForm(r, "/webhooks/voice/response", url.Values{"CallSid": {"CA123"}})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "<Hangup") {
		t.Fatalf("expected hangup verb:\n%s", w.Body.String())
	}
}
