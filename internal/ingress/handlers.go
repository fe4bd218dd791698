package ingress

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"pharmacy-voice-agent/internal/orchestrator"
	"pharmacy-voice-agent/internal/session"
	"pharmacy-voice-agent/internal/telephony"
	"pharmacy-voice-agent/pkg/logger"
)

// EventHandler is what the ingress forwards normalized events to.
// It is the orchestrator in production and a stub in tests.
type EventHandler interface {
	HandleEvent(ctx context.Context, ev session.Event) error
}

// Handlers exposes the provider-facing webhook endpoints.
//
// Acknowledgement contract: every endpoint answers 200 once the payload was
// ingested, even when the referenced session is unknown or the event is an
// invalid transition — the provider retries on non-2xx, and business-logic
// rejections must not look like transport failures. Only genuine processing
// exceptions surface as 5xx.
type Handlers struct {
	Orchestrator EventHandler

	// WebhookBaseURL parameterizes callback URLs inside rendered scripts.
	WebhookBaseURL string
}

func (h Handlers) Status(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseStatusCallback(c.Request)
	if err != nil || form.CallSid == "" {
		log.Warn("status webhook parse failed", "err", err)
		c.String(http.StatusBadRequest, "invalid form")
		return
	}
	h.dispatch(c, form.ToEvent())
}

func (h Handlers) Recording(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseRecordingCallback(c.Request)
	if err != nil || form.CallSid == "" {
		log.Warn("recording webhook parse failed", "err", err)
		c.String(http.StatusBadRequest, "invalid form")
		return
	}
	h.dispatch(c, form.ToEvent())
}

func (h Handlers) Transcription(c *gin.Context) {
	log := logger.FromGin(c)

	form, err := ParseTranscriptionCallback(c.Request)
	if err != nil || form.CallSid == "" {
		log.Warn("transcription webhook parse failed", "err", err)
		c.String(http.StatusBadRequest, "invalid form")
		return
	}
	h.dispatch(c, form.ToEvent())
}

// Script returns the scripted-dialogue document the provider speaks on the
// outbound call, parameterized by the medication request.
func (h Handlers) Script(c *gin.Context) {
	log := logger.FromGin(c)

	params := telephony.ScriptParams{
		MedicationName: firstNonEmpty(c.Query("medication_name"), c.PostForm("medication_name")),
		Dosage:         firstNonEmpty(c.Query("dosage"), c.PostForm("dosage")),
		Quantity:       firstNonEmpty(c.Query("quantity"), c.PostForm("quantity")),
	}
	xml, err := telephony.RenderCallScript(params, h.WebhookBaseURL)
	if err != nil {
		log.Error("script render failed", "err", err)
		c.String(http.StatusInternalServerError, "script failed")
		return
	}
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, xml)
}

// Response acknowledges the recorded reply and hangs up.
func (h Handlers) Response(c *gin.Context) {
	log := logger.FromGin(c)

	xml, err := telephony.RenderResponseAck()
	if err != nil {
		log.Error("response render failed", "err", err)
		c.String(http.StatusInternalServerError, "script failed")
		return
	}
	c.Header("Content-Type", "application/xml")
	c.String(http.StatusOK, xml)
}

// dispatch forwards the event and translates every business-logic outcome
// into a 200 acknowledgement.
func (h Handlers) dispatch(c *gin.Context, ev session.Event) {
	log := logger.FromGin(c)

	err := h.Orchestrator.HandleEvent(c.Request.Context(), ev)
	switch {
	case err == nil:
		c.String(http.StatusOK, "OK")
	case errors.Is(err, orchestrator.ErrSessionNotFound):
		log.Warn("webhook for unknown session", "call_id", ev.ProviderCallID, "type", ev.Type)
		c.String(http.StatusOK, "OK")
	case errors.Is(err, orchestrator.ErrInvalidTransition):
		log.Warn("webhook ignored as invalid transition", "call_id", ev.ProviderCallID, "type", ev.Type, "err", err)
		c.String(http.StatusOK, "OK")
	case errors.Is(err, orchestrator.ErrInvalidArgument):
		log.Warn("webhook rejected", "call_id", ev.ProviderCallID, "type", ev.Type, "err", err)
		c.String(http.StatusOK, "OK")
	default:
		// Persistence or other infrastructure failure: let the provider
		// retry.
		log.Error("webhook processing failed", "call_id", ev.ProviderCallID, "type", ev.Type, "err", err)
		c.String(http.StatusInternalServerError, "processing failed")
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
