package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"mycloset/internal/domain"
	"mycloset/internal/infra"
	"mycloset/internal/sqlinline"
	"mycloset/internal/validation"
)

type createSessionRequest struct {
	ClothingItemIDs []string `json:"clothing_item_ids" validate:"required,min=1,max=5,unique,dive,uuid4"`
}

type updateSessionRequest struct {
	Status       string  `json:"status" validate:"required"`
	ResultURL    *string `json:"result_url,omitempty"`
	ErrorMessage *string `json:"error_message,omitempty"`
}

type sessionListResponse struct {
	Items   []domain.TryOnSession `json:"items"`
	Total   int                   `json:"total"`
	HasMore bool                  `json:"has_more"`
}

// CreateSession inserts a pending session. Ownership, the monthly quota and
// the active-session cap are all checked inside one statement; the limits
// are consumed from the user's locked quota row, which serializes concurrent
// creates for the same user.
func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	var req createSessionRequest
	if err := validation.BindAndValidate(w, r, &req, a.Validate); err != nil {
		return
	}

	tier := a.currentTier(r)
	row := a.SQL.QueryRow(r.Context(), sqlinline.QCreateTryOnSession,
		userID, req.ClothingItemIDs, tier.MonthlyTryOnLimit(), tier.ActiveSessionCap())

	var (
		sessionID *string
		createdAt *time.Time
		owned     int
		monthly   int
		active    int
	)
	if err := row.Scan(&sessionID, &createdAt, &owned, &monthly, &active); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: create session")
		a.error(w, http.StatusInternalServerError, "internal_error", "could not create session")
		return
	}

	if sessionID == nil {
		switch {
		case owned != len(req.ClothingItemIDs):
			a.error(w, http.StatusBadRequest, "invalid_items", "one or more clothing items do not exist, are inactive, or belong to another user")
		case monthly >= tier.MonthlyTryOnLimit():
			a.error(w, http.StatusPaymentRequired, "quota_exceeded", "monthly try-on quota exhausted for plan "+string(tier))
		case active >= tier.ActiveSessionCap():
			a.error(w, http.StatusConflict, "too_many_sessions", "active session limit reached, wait for a session to finish")
		default:
			a.error(w, http.StatusInternalServerError, "internal_error", "could not create session")
		}
		return
	}

	session := domain.TryOnSession{
		ID:        *sessionID,
		UserID:    userID,
		Status:    domain.StatusPending,
		CreatedAt: *createdAt,
	}

	if r.URL.Query().Get("process") == "sync" {
		processed, err := a.Processor.Process(r.Context(), session.ID)
		if err != nil {
			a.Logger.Error().Err(err).Str("session_id", session.ID).Msg("handlers: sync processing")
			a.error(w, http.StatusInternalServerError, "internal_error", "session created but processing failed")
			return
		}
		a.json(w, http.StatusCreated, processed)
		return
	}

	a.json(w, http.StatusCreated, session)
}

// ProcessSession runs a pending session to a terminal state in-request.
func (a *App) ProcessSession(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "session not found")
		return
	}

	// Ownership check first so foreign ids read as absent, not conflicting.
	if _, err := a.loadSession(r, id, userID); err != nil {
		if infra.IsNoRows(err) {
			a.error(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: load session")
		a.error(w, http.StatusInternalServerError, "internal_error", "could not load session")
		return
	}

	session, err := a.Processor.Process(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotClaimable) {
			a.error(w, http.StatusConflict, "not_claimable", "session is not pending")
			return
		}
		if errors.Is(err, domain.ErrBadTransition) {
			a.error(w, http.StatusConflict, "conflict", "session was terminalized concurrently")
			return
		}
		a.Logger.Error().Err(err).Str("session_id", id).Msg("handlers: process session")
		a.error(w, http.StatusInternalServerError, "internal_error", "processing failed")
		return
	}
	a.json(w, http.StatusOK, session)
}

// ListSessions pages through the caller's sessions, newest first.
func (a *App) ListSessions(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)

	var status *string
	if s := r.URL.Query().Get("status"); s != "" {
		if !domain.ValidStatus(domain.SessionStatus(s)) {
			a.error(w, http.StatusBadRequest, "invalid_status", "unknown session status "+s)
			return
		}
		status = &s
	}
	limit := queryInt(r, "limit", 20)
	if limit < 1 {
		limit = 1
	}
	if limit > 100 {
		limit = 100
	}
	offset := queryInt(r, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	rows, err := a.SQL.Query(r.Context(), sqlinline.QListSessions, userID, status, limit, offset)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: list sessions")
		a.error(w, http.StatusInternalServerError, "internal_error", "could not list sessions")
		return
	}
	defer rows.Close()

	items := make([]domain.TryOnSession, 0, limit)
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			a.Logger.Error().Err(err).Msg("handlers: scan session")
			a.error(w, http.StatusInternalServerError, "internal_error", "could not list sessions")
			return
		}
		items = append(items, s)
	}
	if err := rows.Err(); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: list sessions")
		a.error(w, http.StatusInternalServerError, "internal_error", "could not list sessions")
		return
	}

	var total int
	if err := a.SQL.QueryRow(r.Context(), sqlinline.QCountSessions, userID, status).Scan(&total); err != nil {
		a.Logger.Error().Err(err).Msg("handlers: count sessions")
		a.error(w, http.StatusInternalServerError, "internal_error", "could not list sessions")
		return
	}

	a.json(w, http.StatusOK, sessionListResponse{
		Items:   items,
		Total:   total,
		HasMore: offset+len(items) < total,
	})
}

// GetSession returns one owned session by id.
func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "session not found")
		return
	}

	session, err := a.loadSession(r, id, userID)
	if err != nil {
		if infra.IsNoRows(err) {
			a.error(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: get session")
		a.error(w, http.StatusInternalServerError, "internal_error", "could not load session")
		return
	}
	a.json(w, http.StatusOK, session)
}

// UpdateSession applies a caller-requested lifecycle transition. Only legal
// edges are accepted and the write is guarded by the observed status, so a
// concurrent worker completing the session turns this into a 409 instead of
// a silent overwrite.
func (a *App) UpdateSession(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "session not found")
		return
	}

	var req updateSessionRequest
	if err := validation.BindAndValidate(w, r, &req, a.Validate); err != nil {
		return
	}
	next := domain.SessionStatus(req.Status)
	if !domain.ValidStatus(next) {
		a.error(w, http.StatusBadRequest, "invalid_status", "unknown session status "+req.Status)
		return
	}
	// result_url belongs to completed sessions and error_message to failed
	// ones, in both directions. Anything else would persist a row that
	// violates the result/error exclusivity rules.
	if next == domain.StatusCompleted && (req.ResultURL == nil || *req.ResultURL == "") {
		a.error(w, http.StatusBadRequest, "missing_result_url", "completed sessions require result_url")
		return
	}
	if next != domain.StatusCompleted && req.ResultURL != nil {
		a.error(w, http.StatusBadRequest, "unexpected_result_url", "result_url is only accepted when completing a session")
		return
	}
	if next == domain.StatusFailed && (req.ErrorMessage == nil || *req.ErrorMessage == "") {
		a.error(w, http.StatusBadRequest, "missing_error_message", "failed sessions require error_message")
		return
	}
	if next != domain.StatusFailed && req.ErrorMessage != nil {
		a.error(w, http.StatusBadRequest, "unexpected_error_message", "error_message is only accepted when failing a session")
		return
	}

	current, err := a.loadSession(r, id, userID)
	if err != nil {
		if infra.IsNoRows(err) {
			a.error(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: load session")
		a.error(w, http.StatusInternalServerError, "internal_error", "could not load session")
		return
	}
	if !domain.CanTransition(current.Status, next) {
		a.error(w, http.StatusConflict, "illegal_transition", "cannot move session from "+string(current.Status)+" to "+string(next))
		return
	}

	tag, err := a.SQL.Exec(r.Context(), sqlinline.QUpdateSession,
		id, userID, string(current.Status), string(next), req.ResultURL, req.ErrorMessage)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: update session")
		a.error(w, http.StatusInternalServerError, "internal_error", "could not update session")
		return
	}
	if tag.RowsAffected() == 0 {
		a.error(w, http.StatusConflict, "conflict", "session changed concurrently, re-read and retry")
		return
	}

	updated, err := a.loadSession(r, id, userID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: reload session")
		a.error(w, http.StatusInternalServerError, "internal_error", "could not load session")
		return
	}
	a.json(w, http.StatusOK, updated)
}

// DeleteSession removes an owned session and its join rows.
func (a *App) DeleteSession(w http.ResponseWriter, r *http.Request) {
	userID := a.currentUserID(r)
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		a.error(w, http.StatusNotFound, "not_found", "session not found")
		return
	}

	var deleted string
	err := a.SQL.QueryRow(r.Context(), sqlinline.QDeleteSession, id, userID).Scan(&deleted)
	if err != nil {
		if infra.IsNoRows(err) {
			a.error(w, http.StatusNotFound, "not_found", "session not found")
			return
		}
		a.Logger.Error().Err(err).Msg("handlers: delete session")
		a.error(w, http.StatusInternalServerError, "internal_error", "could not delete session")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CleanupSessions terminalizes stale pending and stuck processing sessions.
// Exposed for cron-style invocation; the worker runs the same pass on a timer.
func (a *App) CleanupSessions(w http.ResponseWriter, r *http.Request) {
	cancelled, timedOut, err := a.Processor.Cleanup(r.Context())
	if err != nil {
		a.Logger.Error().Err(err).Msg("handlers: cleanup")
		a.error(w, http.StatusInternalServerError, "internal_error", "cleanup failed")
		return
	}
	a.json(w, http.StatusOK, map[string]any{
		"success":   true,
		"cancelled": cancelled,
		"timed_out": timedOut,
	})
}

func (a *App) loadSession(r *http.Request, id, userID string) (domain.TryOnSession, error) {
	row := a.SQL.QueryRow(r.Context(), sqlinline.QGetSession, id, userID)
	return scanSession(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (domain.TryOnSession, error) {
	var (
		s          domain.TryOnSession
		resultURL  *string
		errMsg     *string
		procTimeMs *int64
	)
	err := row.Scan(&s.ID, &s.UserID, &s.Status, &resultURL, &errMsg,
		&procTimeMs, &s.CreatedAt, &s.CompletedAt, &s.Metadata)
	if err != nil {
		return domain.TryOnSession{}, err
	}
	if resultURL != nil {
		s.ResultImageURL = *resultURL
	}
	if errMsg != nil {
		s.ErrorMessage = *errMsg
	}
	if procTimeMs != nil {
		s.ProcessingTimeMs = *procTimeMs
	}
	return s, nil
}

func queryInt(r *http.Request, key string, def int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return n
}
