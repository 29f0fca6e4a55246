package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/shiftdevices/bitboxd/internal/core/domain"
)

type sessionRepository struct {
	sessions map[string]*domain.MultisigSession
	lock     *sync.RWMutex
}

func newSessionRepository() *sessionRepository {
	return &sessionRepository{
		sessions: make(map[string]*domain.MultisigSession),
		lock:     &sync.RWMutex{},
	}
}

func (r *sessionRepository) GetSession(
	_ context.Context, localDataKey string,
) (*domain.MultisigSession, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	session, ok := r.sessions[localDataKey]
	if !ok {
		return nil, nil
	}
	return copySession(session), nil
}

func (r *sessionRepository) SaveSession(
	_ context.Context, session *domain.MultisigSession,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.sessions[session.LocalDataKey] = copySession(session)
	return nil
}

func (r *sessionRepository) UpdateSession(
	_ context.Context, localDataKey string,
	updateFn func(*domain.MultisigSession) (*domain.MultisigSession, error),
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	session, ok := r.sessions[localDataKey]
	if !ok {
		return fmt.Errorf("session %s not found", localDataKey)
	}

	updatedSession, err := updateFn(copySession(session))
	if err != nil {
		return err
	}

	r.sessions[localDataKey] = copySession(updatedSession)
	return nil
}

func (r *sessionRepository) DeleteSession(
	_ context.Context, localDataKey string,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	delete(r.sessions, localDataKey)
	return nil
}

func (r *sessionRepository) reset() {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.sessions = make(map[string]*domain.MultisigSession)
}

// copySession detaches the stored session from the caller's instance. Only
// the persisted subset is carried, volatile state like the balance and the
// proposal set stays with the caller.
func copySession(session *domain.MultisigSession) *domain.MultisigSession {
	copied := &domain.MultisigSession{
		LocalDataKey:     session.LocalDataKey,
		ParticipantName:  session.ParticipantName,
		BaseKeyPath:      session.BaseKeyPath,
		MasterXPub:       session.MasterXPub,
		RequestXPub:      session.RequestXPub,
		CopayerID:        session.CopayerID,
		WalletRemoteName: session.WalletRemoteName,
		WalletM:          session.WalletM,
		WalletN:          session.WalletN,
		LastKnownAddress: session.LastKnownAddress,
		PublicKeyRing:    append([]string{}, session.PublicKeyRing...),
	}
	copied.RestorePairing()
	return copied
}
