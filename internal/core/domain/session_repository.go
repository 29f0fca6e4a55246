package domain

import (
	"context"
)

// SessionRepository persists the local part of a wallet session:
// participant name, base key path, last-known address and cached extended
// public keys. Format and location are owned by the implementation, the
// core only needs load-on-start and save-on-change semantics.
type SessionRepository interface {
	// GetSession returns the session filed under the given local data key,
	// or nil if none was persisted yet.
	GetSession(ctx context.Context, localDataKey string) (*MultisigSession, error)
	// SaveSession inserts or overwrites the persisted session.
	SaveSession(ctx context.Context, session *MultisigSession) error
	// UpdateSession applies updateFn to the persisted session under the
	// repository's own locking and stores the result.
	UpdateSession(
		ctx context.Context, localDataKey string,
		updateFn func(*MultisigSession) (*MultisigSession, error),
	) error
	// DeleteSession removes the persisted session, if any.
	DeleteSession(ctx context.Context, localDataKey string) error
}
