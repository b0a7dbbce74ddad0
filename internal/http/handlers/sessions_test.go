package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"

	"mycloset/internal/domain"
	"mycloset/internal/infra"
	"mycloset/internal/middleware"
	"mycloset/internal/sqlinline"
	"mycloset/internal/validation"
)

const (
	testUserID    = "3f2c8b1a-6d4e-4f09-9a7b-2c5d8e1f0a64"
	testSessionID = "9a1b2c3d-4e5f-4a6b-8c7d-0e1f2a3b4c5d"
)

type stubRow struct {
	scan func(dest ...any) error
}

func (r stubRow) Scan(dest ...any) error {
	if r.scan == nil {
		return pgx.ErrNoRows
	}
	return r.scan(dest...)
}

// stubDB simulates the create-session statement's validation counters and a
// single stored session.
type stubDB struct {
	ownedItems int
	monthly    int
	active     int
	limit      int
	cap        int

	session *domain.TryOnSession

	updates [][]any
	deleted bool
}

func (s *stubDB) QueryRow(ctx context.Context, query string, args ...any) pgx.Row {
	switch query {
	case sqlinline.QCreateTryOnSession:
		ids := args[1].([]string)
		s.limit = args[2].(int)
		s.cap = args[3].(int)
		inserted := s.ownedItems == len(ids) && s.monthly < s.limit && s.active < s.cap
		return stubRow{scan: func(dest ...any) error {
			if inserted {
				id := testSessionID
				now := time.Now()
				*(dest[0].(**string)) = &id
				*(dest[1].(**time.Time)) = &now
			}
			*(dest[2].(*int)) = s.ownedItems
			*(dest[3].(*int)) = s.monthly
			*(dest[4].(*int)) = s.active
			return nil
		}}
	case sqlinline.QGetSession:
		if s.session == nil || args[0].(string) != s.session.ID || args[1].(string) != s.session.UserID {
			return stubRow{}
		}
		return stubRow{scan: scanStoredSession(s.session)}
	case sqlinline.QCountSessions:
		return stubRow{scan: func(dest ...any) error {
			n := 0
			if s.session != nil {
				n = 1
			}
			*(dest[0].(*int)) = n
			return nil
		}}
	case sqlinline.QDeleteSession:
		if s.session == nil || args[0].(string) != s.session.ID {
			return stubRow{}
		}
		s.deleted = true
		return stubRow{scan: func(dest ...any) error {
			*(dest[0].(*string)) = s.session.ID
			return nil
		}}
	}
	return stubRow{scan: func(dest ...any) error {
		return fmt.Errorf("unsupported query row: %.40s", query)
	}}
}

func scanStoredSession(sess *domain.TryOnSession) func(dest ...any) error {
	return func(dest ...any) error {
		*(dest[0].(*string)) = sess.ID
		*(dest[1].(*string)) = sess.UserID
		*(dest[2].(*domain.SessionStatus)) = sess.Status
		if sess.ResultImageURL != "" {
			u := sess.ResultImageURL
			*(dest[3].(**string)) = &u
		}
		if sess.ErrorMessage != "" {
			m := sess.ErrorMessage
			*(dest[4].(**string)) = &m
		}
		if sess.ProcessingTimeMs != 0 {
			ms := sess.ProcessingTimeMs
			*(dest[5].(**int64)) = &ms
		}
		*(dest[6].(*time.Time)) = sess.CreatedAt
		*(dest[7].(**time.Time)) = sess.CompletedAt
		*(dest[8].(*[]byte)) = []byte(`{}`)
		return nil
	}
}

func (s *stubDB) Query(ctx context.Context, query string, args ...any) (pgx.Rows, error) {
	return nil, fmt.Errorf("unsupported query: %.40s", query)
}

func (s *stubDB) Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error) {
	if query == sqlinline.QUpdateSession {
		s.updates = append(s.updates, args)
		if s.session == nil || string(s.session.Status) != args[2].(string) {
			return pgconn.NewCommandTag("SELECT 0"), nil
		}
		s.session.Status = domain.SessionStatus(args[3].(string))
		if u, ok := args[4].(*string); ok && u != nil {
			s.session.ResultImageURL = *u
		}
		if m, ok := args[5].(*string); ok && m != nil {
			s.session.ErrorMessage = *m
		}
		return pgconn.NewCommandTag("SELECT 1"), nil
	}
	return pgconn.CommandTag{}, fmt.Errorf("unsupported exec: %.40s", query)
}

var _ infra.SQLExecutor = (*stubDB)(nil)

func newTestApp(db *stubDB) *App {
	return &App{
		SQL:      db,
		Config:   &infra.Config{JWTSecret: "test-secret", RateLimitPerMin: 100},
		Logger:   zerolog.Nop(),
		Validate: validation.New(),
	}
}

func authedRequest(t *testing.T, method, target string, body any, plan string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req.WithContext(middleware.ContextWithUser(req.Context(), testUserID, plan))
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func itemIDs(n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("c%07d-1111-4111-8111-111111111111", i)
	}
	return ids
}

func TestCreateSessionSuccess(t *testing.T) {
	db := &stubDB{ownedItems: 2, monthly: 0, active: 0}
	app := newTestApp(db)

	req := authedRequest(t, http.MethodPost, "/v1/try-on/sessions", map[string]any{
		"clothing_item_ids": itemIDs(2),
	}, "free")
	rec := httptest.NewRecorder()
	app.CreateSession(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	var session domain.TryOnSession
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if session.Status != domain.StatusPending {
		t.Errorf("status = %s, want pending", session.Status)
	}
	if session.ID != testSessionID {
		t.Errorf("id = %q, want %q", session.ID, testSessionID)
	}
}

func TestCreateSessionRejectsEmptyAndOversizedSelections(t *testing.T) {
	db := &stubDB{ownedItems: 6}
	app := newTestApp(db)

	for _, n := range []int{0, 6} {
		req := authedRequest(t, http.MethodPost, "/v1/try-on/sessions", map[string]any{
			"clothing_item_ids": itemIDs(n),
		}, "free")
		rec := httptest.NewRecorder()
		app.CreateSession(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("%d items: status = %d, want 400", n, rec.Code)
		}
	}
}

func TestCreateSessionForeignItems(t *testing.T) {
	db := &stubDB{ownedItems: 1, monthly: 0, active: 0}
	app := newTestApp(db)

	req := authedRequest(t, http.MethodPost, "/v1/try-on/sessions", map[string]any{
		"clothing_item_ids": itemIDs(2),
	}, "free")
	rec := httptest.NewRecorder()
	app.CreateSession(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "invalid_items") {
		t.Errorf("expected invalid_items code, got %s", rec.Body.String())
	}
}

func TestCreateSessionQuotaExceeded(t *testing.T) {
	db := &stubDB{ownedItems: 1, monthly: 10, active: 0}
	app := newTestApp(db)

	req := authedRequest(t, http.MethodPost, "/v1/try-on/sessions", map[string]any{
		"clothing_item_ids": itemIDs(1),
	}, "free")
	rec := httptest.NewRecorder()
	app.CreateSession(rec, req)

	if rec.Code != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402: %s", rec.Code, rec.Body.String())
	}
}

func TestCreateSessionActiveCap(t *testing.T) {
	db := &stubDB{ownedItems: 1, monthly: 2, active: 1}
	app := newTestApp(db)

	req := authedRequest(t, http.MethodPost, "/v1/try-on/sessions", map[string]any{
		"clothing_item_ids": itemIDs(1),
	}, "free")
	rec := httptest.NewRecorder()
	app.CreateSession(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "too_many_sessions") {
		t.Errorf("expected too_many_sessions code, got %s", rec.Body.String())
	}
}

func TestCreateSessionPremiumQuota(t *testing.T) {
	// 10 sessions this month blocks free but not premium.
	db := &stubDB{ownedItems: 1, monthly: 10, active: 0}
	app := newTestApp(db)

	req := authedRequest(t, http.MethodPost, "/v1/try-on/sessions", map[string]any{
		"clothing_item_ids": itemIDs(1),
	}, "premium")
	rec := httptest.NewRecorder()
	app.CreateSession(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
}

func TestGetSessionNotFound(t *testing.T) {
	app := newTestApp(&stubDB{})

	req := authedRequest(t, http.MethodGet, "/v1/try-on/sessions/"+testSessionID, nil, "free")
	req = withURLParam(req, "id", testSessionID)
	rec := httptest.NewRecorder()
	app.GetSession(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestGetSessionReturnsOwnedRow(t *testing.T) {
	now := time.Now()
	db := &stubDB{session: &domain.TryOnSession{
		ID:             testSessionID,
		UserID:         testUserID,
		Status:         domain.StatusCompleted,
		ResultImageURL: "https://cdn/result.png",
		CreatedAt:      now.Add(-time.Minute),
		CompletedAt:    &now,
	}}
	app := newTestApp(db)

	req := authedRequest(t, http.MethodGet, "/v1/try-on/sessions/"+testSessionID, nil, "free")
	req = withURLParam(req, "id", testSessionID)
	rec := httptest.NewRecorder()
	app.GetSession(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	var session domain.TryOnSession
	if err := json.Unmarshal(rec.Body.Bytes(), &session); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if session.ResultImageURL != "https://cdn/result.png" {
		t.Errorf("result url = %q", session.ResultImageURL)
	}
}

func TestUpdateSessionIllegalTransition(t *testing.T) {
	db := &stubDB{session: &domain.TryOnSession{
		ID:             testSessionID,
		UserID:         testUserID,
		Status:         domain.StatusCompleted,
		ResultImageURL: "https://cdn/result.png",
		CreatedAt:      time.Now(),
	}}
	app := newTestApp(db)

	req := authedRequest(t, http.MethodPut, "/v1/try-on/sessions/"+testSessionID, map[string]any{
		"status": "processing",
	}, "free")
	req = withURLParam(req, "id", testSessionID)
	rec := httptest.NewRecorder()
	app.UpdateSession(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
	if len(db.updates) != 0 {
		t.Errorf("illegal transition must not reach the database")
	}
}

func TestUpdateSessionCancelPending(t *testing.T) {
	db := &stubDB{session: &domain.TryOnSession{
		ID:        testSessionID,
		UserID:    testUserID,
		Status:    domain.StatusPending,
		CreatedAt: time.Now(),
	}}
	app := newTestApp(db)

	req := authedRequest(t, http.MethodPut, "/v1/try-on/sessions/"+testSessionID, map[string]any{
		"status": "cancelled",
	}, "free")
	req = withURLParam(req, "id", testSessionID)
	rec := httptest.NewRecorder()
	app.UpdateSession(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if db.session.Status != domain.StatusCancelled {
		t.Errorf("stored status = %s, want cancelled", db.session.Status)
	}
}

func TestUpdateSessionCompletedRequiresResultURL(t *testing.T) {
	db := &stubDB{session: &domain.TryOnSession{
		ID:        testSessionID,
		UserID:    testUserID,
		Status:    domain.StatusProcessing,
		CreatedAt: time.Now(),
	}}
	app := newTestApp(db)

	req := authedRequest(t, http.MethodPut, "/v1/try-on/sessions/"+testSessionID, map[string]any{
		"status": "completed",
	}, "free")
	req = withURLParam(req, "id", testSessionID)
	rec := httptest.NewRecorder()
	app.UpdateSession(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateSessionRejectsResultURLOutsideCompletion(t *testing.T) {
	db := &stubDB{session: &domain.TryOnSession{
		ID:        testSessionID,
		UserID:    testUserID,
		Status:    domain.StatusPending,
		CreatedAt: time.Now(),
	}}
	app := newTestApp(db)

	req := authedRequest(t, http.MethodPut, "/v1/try-on/sessions/"+testSessionID, map[string]any{
		"status":     "processing",
		"result_url": "https://cdn/sneaky.png",
	}, "free")
	req = withURLParam(req, "id", testSessionID)
	rec := httptest.NewRecorder()
	app.UpdateSession(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "unexpected_result_url") {
		t.Errorf("expected unexpected_result_url code, got %s", rec.Body.String())
	}
	if len(db.updates) != 0 {
		t.Errorf("rejected payload must not reach the database")
	}
	if db.session.ResultImageURL != "" {
		t.Errorf("result url persisted on a processing session: %q", db.session.ResultImageURL)
	}
}

func TestUpdateSessionRejectsErrorMessageOutsideFailure(t *testing.T) {
	db := &stubDB{session: &domain.TryOnSession{
		ID:        testSessionID,
		UserID:    testUserID,
		Status:    domain.StatusProcessing,
		CreatedAt: time.Now(),
	}}
	app := newTestApp(db)

	req := authedRequest(t, http.MethodPut, "/v1/try-on/sessions/"+testSessionID, map[string]any{
		"status":        "timeout",
		"error_message": "unsolicited detail",
	}, "free")
	req = withURLParam(req, "id", testSessionID)
	rec := httptest.NewRecorder()
	app.UpdateSession(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), "unexpected_error_message") {
		t.Errorf("expected unexpected_error_message code, got %s", rec.Body.String())
	}
	if db.session.ErrorMessage != "" {
		t.Errorf("error message persisted on a timeout: %q", db.session.ErrorMessage)
	}
}

func TestDeleteSession(t *testing.T) {
	db := &stubDB{session: &domain.TryOnSession{
		ID:        testSessionID,
		UserID:    testUserID,
		Status:    domain.StatusFailed,
		CreatedAt: time.Now(),
	}}
	db.session.ErrorMessage = "boom"
	app := newTestApp(db)

	req := authedRequest(t, http.MethodDelete, "/v1/try-on/sessions/"+testSessionID, nil, "free")
	req = withURLParam(req, "id", testSessionID)
	rec := httptest.NewRecorder()
	app.DeleteSession(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", rec.Code)
	}
	if !db.deleted {
		t.Error("delete statement never reached the database")
	}
}
