package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors carry no infrastructure dependency.

var (
	// Storage errors
	ErrStateNotFound = errors.New("gamification state not found")
	ErrSaveFailed    = errors.New("gamification state save failed")

	// ErrStateUnavailable marks a load that could not reach the store.
	ErrStateUnavailable = errors.New("gamification state unavailable")

	// Challenge errors
	ErrChallengeNotFound     = errors.New("challenge not found")
	ErrChallengeTypeMismatch = errors.New("challenge has a different rotation type")
	ErrChallengeExpired      = errors.New("challenge already expired")

	// Input errors
	ErrInvalidXPAmount     = errors.New("xp amount must be positive")
	ErrInvalidTrainingDays = errors.New("weekly training days must be between 1 and 7")
	ErrInvalidUserID       = errors.New("user id is required")
	ErrInvalidHour         = errors.New("workout hour must be between 0 and 23")

	// Startup errors
	ErrInvalidCatalog = errors.New("invalid gamification catalog")
)
