package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/totegamma/ticketgate"
	"github.com/totegamma/ticketgate/internal/domain"
	"github.com/totegamma/ticketgate/internal/present/rest/middleware"
	"github.com/totegamma/ticketgate/internal/service"
	"github.com/totegamma/ticketgate/internal/usecase"
)

// --- mocks ---

type mockStore struct {
	mu   sync.Mutex
	used map[string]bool
}

func (m *mockStore) Has(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.used[id], nil
}

func (m *mockStore) MarkUsed(ctx context.Context, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.used[id] {
		return false, nil
	}
	m.used[id] = true
	return true, nil
}

type mockLedger struct {
	records []domain.ScanRecord
}

func (m *mockLedger) Append(ctx context.Context, records []domain.ScanRecord) ([]domain.SyncResult, error) {
	var results []domain.SyncResult
	for _, r := range records {
		m.records = append(m.records, r)
		results = append(results, domain.SyncResult{RecordID: r.ID, OK: true})
	}
	return results, nil
}

func (m *mockLedger) List(ctx context.Context, eventID string, limit int) ([]domain.LedgerEntry, error) {
	var entries []domain.LedgerEntry
	for _, r := range m.records {
		if r.EventID == eventID {
			entries = append(entries, domain.LedgerEntry{ScanRecord: r})
		}
	}
	return entries, nil
}

func (m *mockLedger) CountByStatus(ctx context.Context, eventID string) (map[ticketgate.Status]int64, error) {
	counts := map[ticketgate.Status]int64{}
	for _, r := range m.records {
		if r.EventID == eventID {
			counts[r.Status]++
		}
	}
	return counts, nil
}

type mockQR struct{}

func (m *mockQR) Encode(payload string) ([]byte, error) { return []byte(payload), nil }

type mockRenderer struct{}

func (m *mockRenderer) Render(ctx context.Context, a usecase.Artifact) ([]byte, error) {
	return []byte("%PDF-1.3 " + a.TicketID), nil
}

type mockEvents struct {
	mu     sync.Mutex
	events map[string]domain.Event
}

func (m *mockEvents) Save(ctx context.Context, event domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events[event.ID] = event
	return nil
}

func (m *mockEvents) Get(ctx context.Context, eventID string) (domain.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	event, ok := m.events[eventID]
	if !ok {
		return domain.Event{}, domain.NotFoundError{Resource: "event"}
	}
	return event, nil
}

type mockAuth struct{}

func (m *mockAuth) Authenticate(ctx context.Context, token string) (*service.AuthResult, error) {
	switch token {
	case "good":
		return &service.AuthResult{Role: domain.RoleDevice, DeviceID: "gate-a", Events: []string{"42"}}, nil
	case "issuer":
		return &service.AuthResult{Role: domain.RoleIssuer, Issuer: "box-office"}, nil
	}
	return nil, errors.New("invalid token")
}

var (
	deviceAuth = map[string]string{"Authorization": "Bearer good"}
	issuerAuth = map[string]string{"Authorization": "Bearer issuer"}
)

func withHeader(headers map[string]string, k, v string) map[string]string {
	out := map[string]string{k: v}
	for hk, hv := range headers {
		out[hk] = hv
	}
	return out
}

func newTestServer() (*echo.Echo, *mockLedger) {
	ledger := &mockLedger{}
	stores := map[string]*mockStore{}
	var mu sync.Mutex
	factory := func(eventID string) usecase.UsedTicketStore {
		mu.Lock()
		defer mu.Unlock()
		if _, ok := stores[eventID]; !ok {
			stores[eventID] = &mockStore{used: map[string]bool{}}
		}
		return stores[eventID]
	}

	salts := usecase.StaticSalt("s")
	issuer := usecase.NewIssuer(&mockQR{}, &mockRenderer{}, nil, nil, usecase.IssuerOptions{})
	events := &mockEvents{events: map[string]domain.Event{}}
	gate := usecase.NewGate(factory, salts, ledger, ledger, events, usecase.VerifierOptions{})

	h := NewHandler(domain.Config{FQDN: "gate.example.com"}, issuer, salts, gate, nil)

	e := echo.New()
	h.RegisterRoutes(e, middleware.NewAuthMiddleware(&mockAuth{}))
	return e, ledger
}

func doJSON(e *echo.Echo, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	b, _ := json.Marshal(body)
	req := httptest.NewRequest(method, path, bytes.NewReader(b))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

// --- tests ---

func TestHandleIssuePDF(t *testing.T) {
	e, _ := newTestServer()

	body := map[string]any{
		"eventId":    "42",
		"attendeeId": "A1",
		"ticketType": "VIP",
	}

	rec := doJSON(e, http.MethodPost, "/api/v1/tickets", body, issuerAuth)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(echo.HeaderContentType) != "application/pdf" {
		t.Fatalf("expected pdf got %s", rec.Header().Get(echo.HeaderContentType))
	}
	if !strings.HasPrefix(rec.Header().Get(domain.TicketIDHeader), "42-") {
		t.Fatalf("expected ticket id header")
	}
}

func TestHandleIssueRequiresIssuer(t *testing.T) {
	e, _ := newTestServer()
	body := map[string]any{"eventId": "42", "attendeeId": "A1"}

	for name, headers := range map[string]map[string]string{
		"anonymous": nil,
		"device":    deviceAuth,
		"bad token": {"Authorization": "Bearer nope"},
	} {
		rec := doJSON(e, http.MethodPost, "/api/v1/tickets", body, headers)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("%s: expected 401 got %d", name, rec.Code)
		}
	}
}

func issueJSON(t *testing.T, e *echo.Echo, eventID string) usecase.IssueResult {
	t.Helper()
	rec := doJSON(e, http.MethodPost, "/api/v1/tickets", map[string]any{
		"eventId":    eventID,
		"attendeeId": "A1",
	}, withHeader(issuerAuth, echo.HeaderAccept, echo.MIMEApplicationJSON))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var issued usecase.IssueResult
	if err := json.Unmarshal(rec.Body.Bytes(), &issued); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	return issued
}

func TestHandleIssueThenVerify(t *testing.T) {
	e, ledger := newTestServer()
	issued := issueJSON(t, e, "42")

	statuses := []ticketgate.Status{}
	for i := 0; i < 2; i++ {
		rec := doJSON(e, http.MethodPost, "/api/v1/verify", map[string]any{
			"eventId": "42",
			"raw":     issued.QRPayload,
		}, deviceAuth)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
		}
		var record domain.ScanRecord
		json.Unmarshal(rec.Body.Bytes(), &record)
		statuses = append(statuses, record.Status)
	}

	if statuses[0] != ticketgate.StatusValid || statuses[1] != ticketgate.StatusAlreadyUsed {
		t.Fatalf("expected VALID then ALREADY_USED got %v", statuses)
	}
	if len(ledger.records) != 2 || ledger.records[0].DeviceID != "gate-a" {
		t.Fatalf("expected both scans recorded for gate-a, got %+v", ledger.records)
	}

	rec := doJSON(e, http.MethodGet, "/api/v1/events/42/stats", nil, issuerAuth)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	body := rec.Body.String()
	if !strings.Contains(body, `"counts":{"VALID":1,"ALREADY_USED":1,"FAKE":0,"TOO_EARLY":0,"EXPIRED":0}`) {
		t.Fatalf("unexpected stats %s", body)
	}
}

func TestHandleVerifyRequiresEnrolledDevice(t *testing.T) {
	e, ledger := newTestServer()
	issued := issueJSON(t, e, "99")
	body := map[string]any{"eventId": "99", "raw": issued.QRPayload}

	rec := doJSON(e, http.MethodPost, "/api/v1/verify", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPost, "/api/v1/verify", body, issuerAuth)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for issuer token got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPost, "/api/v1/verify", body, deviceAuth)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for event outside enrollment got %d", rec.Code)
	}
	if len(ledger.records) != 0 {
		t.Fatalf("rejected requests must not reach the ledger")
	}
}

func TestHandleVerifyUsesStoredWindow(t *testing.T) {
	e, _ := newTestServer()
	issued := issueJSON(t, e, "42")

	end := time.Now().Add(-7 * time.Hour)
	rec := doJSON(e, http.MethodPut, "/api/v1/events/42", map[string]any{
		"name": "Launch Night",
		"end":  end,
	}, issuerAuth)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	// a window in the request body is not trusted
	rec = doJSON(e, http.MethodPost, "/api/v1/verify", map[string]any{
		"eventId": "42",
		"raw":     issued.QRPayload,
		"window":  map[string]any{},
	}, deviceAuth)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var record domain.ScanRecord
	json.Unmarshal(rec.Body.Bytes(), &record)
	if record.Status != ticketgate.StatusExpired {
		t.Fatalf("expected EXPIRED from the stored window got %s", record.Status)
	}
}

func TestHandleDefineEventRequiresIssuer(t *testing.T) {
	e, _ := newTestServer()
	rec := doJSON(e, http.MethodPut, "/api/v1/events/42", map[string]any{"name": "x"}, deviceAuth)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestHandleIssueBadInput(t *testing.T) {
	e, _ := newTestServer()
	rec := doJSON(e, http.MethodPost, "/api/v1/tickets", map[string]any{
		"eventId":    "42",
		"attendeeId": "A|1",
	}, issuerAuth)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestHandleSyncRequiresDevice(t *testing.T) {
	e, ledger := newTestServer()
	body := map[string]any{
		"records": []domain.ScanRecord{{ID: "r1", EventID: "42", Status: ticketgate.StatusFake}},
	}

	rec := doJSON(e, http.MethodPost, "/api/v1/sync", body, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPost, "/api/v1/sync", body, map[string]string{"Authorization": "Bearer bad"})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad token got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodPost, "/api/v1/sync", body, deviceAuth)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	var res syncResponse
	json.Unmarshal(rec.Body.Bytes(), &res)
	if len(res.Results) != 1 || !res.Results[0].OK {
		t.Fatalf("unexpected results %+v", res.Results)
	}
	if ledger.records[0].DeviceID != "gate-a" {
		t.Fatalf("expected record stamped with authenticated device")
	}
}

func TestHandleSyncedAdmissionBlocksVerify(t *testing.T) {
	e, _ := newTestServer()
	issued := issueJSON(t, e, "42")

	rec := doJSON(e, http.MethodPost, "/api/v1/sync", map[string]any{
		"records": []domain.ScanRecord{{
			ID:       "r1",
			EventID:  "42",
			Raw:      issued.QRPayload,
			TicketID: issued.TicketID,
			Status:   ticketgate.StatusValid,
		}},
	}, deviceAuth)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	rec = doJSON(e, http.MethodPost, "/api/v1/verify", map[string]any{
		"eventId": "42",
		"raw":     issued.QRPayload,
	}, deviceAuth)
	var record domain.ScanRecord
	json.Unmarshal(rec.Body.Bytes(), &record)
	if record.Status != ticketgate.StatusAlreadyUsed {
		t.Fatalf("expected ALREADY_USED after synced admission got %s", record.Status)
	}
}

func TestHandleScansAndHealth(t *testing.T) {
	e, _ := newTestServer()

	rec := doJSON(e, http.MethodGet, "/health", nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/events/42/scans", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without issuer token got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/events/42/scans?limit=x", nil, issuerAuth)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}

	rec = doJSON(e, http.MethodGet, "/api/v1/realtime?event=42", nil, issuerAuth)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 without stream got %d", rec.Code)
	}
}
