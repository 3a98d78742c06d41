package domain

import "context"

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// StateStore persists one GamificationState document per user.
type StateStore interface {
	// Load returns the stored state, or ErrStateNotFound for a new user.
	Load(ctx context.Context, userID string) (GamificationState, error)

	// Save replaces the whole stored document.
	Save(ctx context.Context, userID string, state GamificationState) error
}

// StateSaver is the write half of StateStore, used by the autosaver.
type StateSaver interface {
	Save(ctx context.Context, userID string, state GamificationState) error
}
