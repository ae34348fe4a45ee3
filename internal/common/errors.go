// Package common defines shared constants and sentinel errors used across
// client and server layers of docketsync. Callers should use errors.Is to
// match these values.
package common

import "errors"

var (
	// Repository-level errors.
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")

	// Service-level errors (generic/internal flow control).
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// Push reconciliation errors. Per-record failures are reported, not
	// propagated; ErrBatchTooLarge fails the whole push up front.
	ErrValidation           = errors.New("validation error")
	ErrQuotaExceeded        = errors.New("quota exceeded")
	ErrReferentialIntegrity = errors.New("referential integrity error")
	ErrOrderingConflict     = errors.New("ordering conflict")
	ErrBatchTooLarge        = errors.New("batch too large")

	// Vault errors.
	ErrDecryption = errors.New("decryption error")

	// Transport errors. A sync cycle that hits one of these aborts without
	// touching the cursor or dirty markers.
	ErrNetwork = errors.New("network error")

	// Auth errors (invalid or malformed token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)
