package ports

import (
	"github.com/shiftdevices/bitboxd/internal/core/domain"
)

// RepoManager is the abstraction for any kind of service intended to manage
// domain repositories implementations of the same concrete type.
type RepoManager interface {
	// SessionRepository returns the wallet session repository.
	SessionRepository() domain.SessionRepository

	// Reset brings all the repos to their initial state by deleting any
	// persisted data.
	Reset()

	// Close closes the connection with all concrete repositories
	// implementations.
	Close()
}
