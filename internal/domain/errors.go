package domain

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrValidation      = errors.New("validation failed")
	ErrQuotaExceeded   = errors.New("monthly quota exceeded")
	ErrTooManySessions = errors.New("too many active sessions")
	ErrNotClaimable    = errors.New("session not claimable")
	ErrBadTransition   = errors.New("illegal status transition")

	ErrDownload      = errors.New("image download failed")
	ErrUpload        = errors.New("result upload failed")
	ErrAIProcessing  = errors.New("ai processing failed")
	ErrAITimeout     = errors.New("ai processing timed out")
	ErrEmptyResponse = errors.New("model returned no image")
)
