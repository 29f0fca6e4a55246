package application

import (
	"sync"

	"github.com/shiftdevices/bitboxd/internal/core/domain"
)

// Wallet indexes as threaded through command subtags.
const (
	SingleWalletIndex = iota
	MultisigWalletIndex
)

// SessionManager guards the in-memory wallet sessions. Sessions themselves
// are not synchronized, every access goes through WithSession which holds
// the manager lock for the duration of the closure. Closures must not block
// on I/O.
type SessionManager struct {
	lock     *sync.Mutex
	sessions []*domain.MultisigSession
}

func NewSessionManager(sessions ...*domain.MultisigSession) *SessionManager {
	return &SessionManager{
		lock:     &sync.Mutex{},
		sessions: sessions,
	}
}

func (m *SessionManager) Count() int {
	return len(m.sessions)
}

// WithSession runs fn on the session at index under the manager lock.
// Unknown indexes are ignored.
func (m *SessionManager) WithSession(index int, fn func(session *domain.MultisigSession)) {
	if index < 0 || index >= len(m.sessions) {
		return
	}
	m.lock.Lock()
	defer m.lock.Unlock()
	fn(m.sessions[index])
}

// WithEachSession runs fn on every session in order under the manager lock.
func (m *SessionManager) WithEachSession(fn func(index int, session *domain.MultisigSession)) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for i, session := range m.sessions {
		fn(i, session)
	}
}

// Snapshot returns a shallow copy of the session at index, safe to hand to
// background workers. The proposal store is not carried over.
func (m *SessionManager) Snapshot(index int) *domain.MultisigSession {
	var snapshot *domain.MultisigSession
	m.WithSession(index, func(session *domain.MultisigSession) {
		clone := *session
		clone.Proposals = nil
		snapshot = &clone
	})
	return snapshot
}
