package domain

import (
	"fmt"
	"time"
)

// SessionStatus enumerates try-on session lifecycle states.
type SessionStatus string

const (
	StatusPending    SessionStatus = "pending"
	StatusProcessing SessionStatus = "processing"
	StatusCompleted  SessionStatus = "completed"
	StatusFailed     SessionStatus = "failed"
	StatusCancelled  SessionStatus = "cancelled"
	StatusTimeout    SessionStatus = "timeout"
)

// ValidStatus reports whether s is one of the known session states.
func ValidStatus(s SessionStatus) bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

// Terminal reports whether a session in this state can still change.
func (s SessionStatus) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusTimeout:
		return true
	}
	return false
}

// CanTransition encodes the legal lifecycle edges. Processing success and
// failure move to completed/failed; cleanup may cancel a pending session or
// time out a stuck processing one.
func CanTransition(from, to SessionStatus) bool {
	switch from {
	case StatusPending:
		return to == StatusProcessing || to == StatusCancelled
	case StatusProcessing:
		return to == StatusCompleted || to == StatusFailed || to == StatusTimeout
	default:
		return false
	}
}

// MaxClothingItemsPerSession bounds how many items a single try-on may reference.
const MaxClothingItemsPerSession = 5

// TryOnSession is the persisted state of one try-on request.
type TryOnSession struct {
	ID               string        `json:"id"`
	UserID           string        `json:"user_id"`
	Status           SessionStatus `json:"status"`
	ResultImageURL   string        `json:"result_image_url,omitempty"`
	ErrorMessage     string        `json:"error_message,omitempty"`
	ProcessingTimeMs int64         `json:"processing_time_ms,omitempty"`
	CreatedAt        time.Time     `json:"created_at"`
	CompletedAt      *time.Time    `json:"completed_at,omitempty"`
	Metadata         []byte        `json:"-"`
}

// TryOnSessionItem links a session to one selected clothing item. Rows are
// immutable and removed together with the parent session.
type TryOnSessionItem struct {
	SessionID      string `json:"session_id"`
	ClothingItemID string `json:"clothing_item_id"`
}

// CheckInvariants verifies the result/error exclusivity rules: a result URL
// exists exactly when the session completed, an error message only when it
// failed.
func (s *TryOnSession) CheckInvariants() error {
	if (s.Status == StatusCompleted) != (s.ResultImageURL != "") {
		return fmt.Errorf("session %s: result url / completed mismatch (status=%s)", s.ID, s.Status)
	}
	if s.ErrorMessage != "" && s.Status != StatusFailed {
		return fmt.Errorf("session %s: error message set on status %s", s.ID, s.Status)
	}
	if s.Status == StatusFailed && s.ErrorMessage == "" {
		return fmt.Errorf("session %s: failed without error message", s.ID)
	}
	return nil
}
