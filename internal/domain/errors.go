package domain

import "errors"

// Sentinel errors for domain-level error discrimination.
// Services wrap these so handlers can map to HTTP status codes without leaking infrastructure details.
var (
	ErrValidation      = errors.New("validation failed")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrUnauthorized    = errors.New("unauthorized")
	ErrExpired         = errors.New("verification code expired")
	ErrMismatch        = errors.New("verification code mismatch")
	ErrAlreadyVerified = errors.New("account already verified")
	ErrRejected        = errors.New("user is not accepting messages")
	ErrUpstream        = errors.New("upstream failure")
	ErrStore           = errors.New("store failure")
)
