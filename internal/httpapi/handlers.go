// Package httpapi exposes the operator-facing REST surface: initiating
// availability checks, polling sessions, and managing the destination
// directory. Provider webhooks live in the ingress package.
package httpapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"pharmacy-voice-agent/internal/auth"
	"pharmacy-voice-agent/internal/directory"
	"pharmacy-voice-agent/internal/orchestrator"
	"pharmacy-voice-agent/internal/session"
	"pharmacy-voice-agent/pkg/logger"
)

type Handlers struct {
	Auth         *auth.Manager
	Orchestrator *orchestrator.Service
	Directory    *directory.Service
	Sessions     session.Repository
}

// ---- auth ----

type tokenRequest struct {
	OperatorID string `json:"operator_id" binding:"required"`
	Key        string `json:"key" binding:"required"`
}

// IssueToken exchanges the shared admin key for a bearer token.
func (h Handlers) IssueToken(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "operator_id and key are required"})
		return
	}

	token, err := h.Auth.Exchange(time.Now(), req.OperatorID, req.Key)
	if err != nil {
		logger.FromGin(c).Warn("token exchange rejected", "operator_id", req.OperatorID)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": token, "token_type": "Bearer"})
}

// ---- availability checks ----

type checkRequest struct {
	DestinationID  string `json:"destination_id" binding:"required"`
	MedicationName string `json:"medication_name" binding:"required"`
	Dosage         string `json:"dosage"`
	Quantity       string `json:"quantity"`

	PatientName  string `json:"patient_name"`
	PatientPhone string `json:"patient_phone"`
}

// InitiateCheck places an availability call against one destination and
// returns the new session id. Progress arrives via webhooks; callers poll
// CheckStatus.
func (h Handlers) InitiateCheck(c *gin.Context) {
	var req checkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "destination_id and medication_name are required"})
		return
	}

	mr := session.MedicationRequest{
		MedicationName: req.MedicationName,
		Dosage:         req.Dosage,
		Quantity:       req.Quantity,
	}
	if req.PatientName != "" || req.PatientPhone != "" {
		mr.PatientInfo = &session.PatientInfo{Name: req.PatientName, Phone: req.PatientPhone}
	}

	res, err := h.Orchestrator.InitiateCheck(c.Request.Context(), req.DestinationID, mr)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

// CheckStatus is the poll endpoint for one session.
func (h Handlers) CheckStatus(c *gin.Context) {
	res, err := h.Orchestrator.GetStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// ---- sessions ----

// ListSessions returns all sessions, optionally filtered by ?state=.
func (h Handlers) ListSessions(c *gin.Context) {
	ctx := c.Request.Context()

	var (
		sessions []session.CallSession
		err      error
	)
	if raw := c.Query("state"); raw != "" {
		state := session.State(raw)
		if !state.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown state " + raw})
			return
		}
		sessions, err = h.Sessions.ListByState(ctx, state)
	} else {
		sessions, err = h.Sessions.List(ctx)
	}
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions, "count": len(sessions)})
}

// GetSession returns the full session record including transcript and verdict.
func (h Handlers) GetSession(c *gin.Context) {
	sess, err := h.Sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, sess)
}

// PurgeSessions deletes sessions older than ?hours= (default 720, i.e. 30
// days). Retention is operator-driven; nothing expires automatically.
func (h Handlers) PurgeSessions(c *gin.Context) {
	hours := 720
	if raw := c.Query("hours"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "hours must be a positive integer"})
			return
		}
		hours = n
	}

	cutoff := time.Now().UTC().Add(-time.Duration(hours) * time.Hour)
	deleted, err := h.Sessions.DeleteOlderThan(c.Request.Context(), cutoff)
	if err != nil {
		h.writeError(c, err)
		return
	}
	logger.FromGin(c).Info("sessions purged", "deleted", deleted, "cutoff", cutoff)
	c.JSON(http.StatusOK, gin.H{"deleted": deleted})
}

// ---- directory ----

// FindDestinations answers availability-check targeting queries:
// ?location=&category= returns matching destinations plus the general
// catch-alls.
func (h Handlers) FindDestinations(c *gin.Context) {
	dests, err := h.Directory.FindDestinations(c.Request.Context(), c.Query("location"), c.Query("category"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"destinations": dests, "count": len(dests)})
}

func (h Handlers) ListDestinations(c *gin.Context) {
	dests, err := h.Directory.List(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"destinations": dests, "count": len(dests)})
}

func (h Handlers) GetDestination(c *gin.Context) {
	dest, err := h.Directory.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, dest)
}

type registerDestinationRequest struct {
	ID          string `json:"id"`
	Name        string `json:"name" binding:"required"`
	Phone       string `json:"phone" binding:"required"`
	Address     string `json:"address"`
	Hours       string `json:"hours"`
	Category    string `json:"category"`
	LocationKey string `json:"location_key"`
}

func (h Handlers) RegisterDestination(c *gin.Context) {
	var req registerDestinationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name and phone are required"})
		return
	}

	dest, err := h.Directory.Register(c.Request.Context(), directory.Destination{
		ID:          req.ID,
		Name:        req.Name,
		Phone:       req.Phone,
		Address:     req.Address,
		Hours:       req.Hours,
		Category:    req.Category,
		LocationKey: req.LocationKey,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, dest)
}

// writeError maps domain sentinels onto HTTP statuses.
func (h Handlers) writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidArgument), errors.Is(err, directory.ErrInvalidArgument):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, orchestrator.ErrDestinationNotFound),
		errors.Is(err, orchestrator.ErrSessionNotFound),
		errors.Is(err, directory.ErrNotFound),
		errors.Is(err, session.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, orchestrator.ErrCallCapExceeded):
		c.JSON(http.StatusTooManyRequests, gin.H{"error": err.Error()})
	default:
		logger.FromGin(c).Error("request failed", "err", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
