package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"pharmacy-voice-agent/internal/auth"
	"pharmacy-voice-agent/internal/config"
	"pharmacy-voice-agent/internal/directory"
	"pharmacy-voice-agent/internal/orchestrator"
	"pharmacy-voice-agent/internal/session"
	"pharmacy-voice-agent/internal/telephony"
)

type fixture struct {
	sessions session.Repository
	router   *gin.Engine
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dir := directory.NewService(directory.NewMemoryRepo())
	if err := dir.Seed(context.Background()); err != nil {
		t.Fatalf("seed: %v", err)
	}

	sessions := session.NewMemoryRepo()
	provider := telephony.NewSimulatedProvider(nil, nil)
	provider.SetDelay(0)
	orch := orchestrator.NewService(provider, sessions, dir, "http://localhost/webhooks/voice", orchestrator.Options{})
	provider.SetSink(orch)

	mgr, err := auth.NewManager(config.AuthConfig{
		JWTSecret:      "test-secret",
		JWTIssuer:      "pharmacy-voice-agent",
		AccessTokenTTL: 15 * time.Minute,
		AdminKey:       "admin-key",
	})
	if err != nil {
		t.Fatalf("auth manager: %v", err)
	}

	h := Handlers{Auth: mgr, Orchestrator: orch, Directory: dir, Sessions: sessions}

	r := gin.New()
	r.POST("/v1/auth/token", h.IssueToken)
	api := r.Group("/api")
	api.POST("/checks", h.InitiateCheck)
	api.GET("/checks/:id/status", h.CheckStatus)
	api.GET("/calls", h.ListSessions)
	api.GET("/calls/:id", h.GetSession)
	api.DELETE("/calls", h.PurgeSessions)
	api.GET("/pharmacies", h.ListDestinations)
	api.GET("/pharmacies/search", h.FindDestinations)
	api.GET("/pharmacies/:id", h.GetDestination)
	api.POST("/pharmacies", h.RegisterDestination)

	return fixture{sessions: sessions, router: r}
}

func (f fixture) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func TestIssueToken(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/v1/auth/token", `{"operator_id":"op-1","key":"admin-key"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.AccessToken == "" || resp.TokenType != "Bearer" {
		t.Fatalf("unexpected token response: %+v", resp)
	}

	w = f.do(http.MethodPost, "/v1/auth/token", `{"operator_id":"op-1","key":"wrong"}`)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong key, got %d", w.Code)
	}
}

func TestInitiateCheck(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/checks", `{"destination_id":"cvs_main_st","medication_name":"Lisinopril","dosage":"10mg"}`)
	if w.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", w.Code, w.Body.String())
	}
	var resp orchestrator.InitiateResult
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.SessionID == "" || !resp.Simulated {
		t.Fatalf("unexpected result: %+v", resp)
	}
	if resp.EstimatedWait == "" {
		t.Fatal("expected an estimated wait")
	}

	status := f.do(http.MethodGet, "/api/checks/"+resp.SessionID+"/status", "")
	if status.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", status.Code)
	}
}

func TestInitiateCheck_Validation(t *testing.T) {
	f := newFixture(t)

	if w := f.do(http.MethodPost, "/api/checks", `{"destination_id":"cvs_main_st"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing medication_name should be 400, got %d", w.Code)
	}
	if w := f.do(http.MethodPost, "/api/checks", `{"destination_id":"nope","medication_name":"X"}`); w.Code != http.StatusNotFound {
		t.Fatalf("unknown destination should be 404, got %d", w.Code)
	}
}

func TestCheckStatus_NotFound(t *testing.T) {
	f := newFixture(t)

	if w := f.do(http.MethodGet, "/api/checks/missing/status", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestListSessions_FilterByState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []string{"CA1", "CA2"} {
		sess := session.CallSession{
			ID:            id,
			DestinationID: "cvs_main_st",
			Request:       session.MedicationRequest{MedicationName: "Lisinopril"},
			State:         session.StateInitiated,
			CreatedAt:     time.Now().UTC(),
			LastUpdatedAt: time.Now().UTC(),
		}
		if id == "CA2" {
			sess.State = session.StateCompleted
		}
		if err := f.sessions.Create(ctx, sess); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	w := f.do(http.MethodGet, "/api/calls", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var all struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &all); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if all.Count != 2 {
		t.Fatalf("expected 2 sessions, got %d", all.Count)
	}

	w = f.do(http.MethodGet, "/api/calls?state=completed", "")
	var filtered struct {
		Count    int                   `json:"count"`
		Sessions []session.CallSession `json:"sessions"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &filtered); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if filtered.Count != 1 || filtered.Sessions[0].ID != "CA2" {
		t.Fatalf("unexpected filter result: %+v", filtered)
	}

	if w := f.do(http.MethodGet, "/api/calls?state=bogus", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("unknown state should be 400, got %d", w.Code)
	}
}

func TestGetSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	sess := session.CallSession{
		ID:            "CA1",
		DestinationID: "cvs_main_st",
		Request:       session.MedicationRequest{MedicationName: "Lisinopril"},
		State:         session.StateInitiated,
		CreatedAt:     time.Now().UTC(),
		LastUpdatedAt: time.Now().UTC(),
	}
	if err := f.sessions.Create(ctx, sess); err != nil {
		t.Fatalf("create: %v", err)
	}

	w := f.do(http.MethodGet, "/api/calls/CA1", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/calls/CA404", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
}

func TestPurgeSessions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	old := session.CallSession{
		ID:            "CA-old",
		DestinationID: "cvs_main_st",
		Request:       session.MedicationRequest{MedicationName: "Lisinopril"},
		State:         session.StateCompleted,
		CreatedAt:     time.Now().UTC().Add(-100 * 24 * time.Hour),
		LastUpdatedAt: time.Now().UTC(),
	}
	fresh := old
	fresh.ID = "CA-fresh"
	fresh.CreatedAt = time.Now().UTC()
	for _, s := range []session.CallSession{old, fresh} {
		if err := f.sessions.Create(ctx, s); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	w := f.do(http.MethodDelete, "/api/calls?hours=720", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		Deleted int `json:"deleted"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Deleted != 1 {
		t.Fatalf("expected 1 deleted, got %d", resp.Deleted)
	}

	if w := f.do(http.MethodDelete, "/api/calls?hours=-3", ""); w.Code != http.StatusBadRequest {
		t.Fatalf("negative hours should be 400, got %d", w.Code)
	}
}

func TestDirectoryEndpoints(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodGet, "/api/pharmacies", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var listed struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if listed.Count != 4 {
		t.Fatalf("expected 4 seeded destinations, got %d", listed.Count)
	}

	w = f.do(http.MethodGet, "/api/pharmacies/cvs_main_st", "")
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w := f.do(http.MethodGet, "/api/pharmacies/nope", ""); w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	w = f.do(http.MethodGet, "/api/pharmacies/search?category=compounding", "")
	var found struct {
		Destinations []directory.Destination `json:"destinations"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &found); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, d := range found.Destinations {
		if d.Category != "compounding" && d.Category != directory.CategoryGeneral {
			t.Fatalf("unexpected category in results: %q", d.Category)
		}
	}
}

func TestRegisterDestination(t *testing.T) {
	f := newFixture(t)

	w := f.do(http.MethodPost, "/api/pharmacies", `{"name":"Corner Pharmacy","phone":"+15551234567","category":"general"}`)
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var dest directory.Destination
	if err := json.Unmarshal(w.Body.Bytes(), &dest); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if dest.ID == "" {
		t.Fatal("expected a generated id")
	}

	if w := f.do(http.MethodPost, "/api/pharmacies", `{"name":"No Phone"}`); w.Code != http.StatusBadRequest {
		t.Fatalf("missing phone should be 400, got %d", w.Code)
	}
}
