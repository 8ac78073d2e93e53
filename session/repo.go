package session

import (
	"context"
	"time"
)

// Store is the single owner of durable Session state. Other components hold
// transient read/write access through this interface, never a second copy.
type Store interface {
	// Get reads the current snapshot. A session that does not exist reads as
	// the zero Session; Get only fails when the backing store is unreachable.
	Get(ctx context.Context, sessionID string) (Session, error)

	// Set merges the provided fields into the stored snapshot, creating the
	// session when absent.
	Set(ctx context.Context, sessionID string, update Update) error

	// SetTokensIfCurrent writes the token fields produced by a refresh, but
	// only while the stored refresh token still equals currentRefreshToken.
	// It returns false when the session was cleared (or re-issued) in the
	// interim, in which case nothing is written: a completed refresh must
	// never resurrect a cleared session.
	SetTokensIfCurrent(ctx context.Context, sessionID, currentRefreshToken string, tokens TokenUpdate) (bool, error)

	// Clear removes all session fields atomically. Clearing a session that
	// does not exist is a no-op.
	Clear(ctx context.Context, sessionID string) error
}

// TokenUpdate is the slice of a Session replaced by a successful refresh.
type TokenUpdate struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}
