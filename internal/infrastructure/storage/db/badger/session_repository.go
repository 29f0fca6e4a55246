package dbbadger

import (
	"context"
	"fmt"
	"sync"

	"github.com/dgraph-io/badger/v4"
	log "github.com/sirupsen/logrus"
	"github.com/timshannon/badgerhold/v4"

	"github.com/shiftdevices/bitboxd/internal/core/domain"
)

// sessionRecord is the persisted subset of a wallet session: the identity,
// the exported key material and the cached remote wallet metadata. The
// balance and the proposal set are server state and never hit the disk.
type sessionRecord struct {
	LocalDataKey     string `badgerhold:"key"`
	ParticipantName  string
	BaseKeyPath      string
	MasterXPub       string
	RequestXPub      string
	CopayerID        string
	WalletRemoteName string
	WalletM          int
	WalletN          int
	LastKnownAddress string
	PublicKeyRing    []string
}

func recordFromSession(session *domain.MultisigSession) *sessionRecord {
	return &sessionRecord{
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
		PublicKeyRing:    session.PublicKeyRing,
	}
}

func (r *sessionRecord) toSession() *domain.MultisigSession {
	session := &domain.MultisigSession{
		LocalDataKey:     r.LocalDataKey,
		ParticipantName:  r.ParticipantName,
		BaseKeyPath:      r.BaseKeyPath,
		MasterXPub:       r.MasterXPub,
		RequestXPub:      r.RequestXPub,
		CopayerID:        r.CopayerID,
		WalletRemoteName: r.WalletRemoteName,
		WalletM:          r.WalletM,
		WalletN:          r.WalletN,
		LastKnownAddress: r.LastKnownAddress,
		PublicKeyRing:    r.PublicKeyRing,
	}
	session.RestorePairing()
	return session
}

type sessionRepository struct {
	store *badgerhold.Store
	lock  *sync.Mutex

	log func(format string, a ...interface{})
}

func NewSessionRepository(store *badgerhold.Store) domain.SessionRepository {
	return newSessionRepository(store)
}

func newSessionRepository(store *badgerhold.Store) *sessionRepository {
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("session repository: %s", format)
		log.Debugf(format, a...)
	}
	return &sessionRepository{store, &sync.Mutex{}, logFn}
}

func (r *sessionRepository) GetSession(
	ctx context.Context, localDataKey string,
) (*domain.MultisigSession, error) {
	record, err := r.getRecord(ctx, localDataKey)
	if err != nil {
		return nil, err
	}
	if record == nil {
		return nil, nil
	}
	return record.toSession(), nil
}

func (r *sessionRepository) SaveSession(
	ctx context.Context, session *domain.MultisigSession,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	record := recordFromSession(session)
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxUpsert(tx, record.LocalDataKey, record)
	} else {
		err = r.store.Upsert(record.LocalDataKey, record)
	}
	if err != nil {
		return err
	}

	r.log("session %s saved", record.LocalDataKey)
	return nil
}

func (r *sessionRepository) UpdateSession(
	ctx context.Context, localDataKey string,
	updateFn func(*domain.MultisigSession) (*domain.MultisigSession, error),
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	record, err := r.getRecord(ctx, localDataKey)
	if err != nil {
		return err
	}
	if record == nil {
		return fmt.Errorf("session %s not found", localDataKey)
	}

	updatedSession, err := updateFn(record.toSession())
	if err != nil {
		return err
	}

	updatedRecord := recordFromSession(updatedSession)
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		return r.store.TxUpdate(tx, localDataKey, updatedRecord)
	}
	return r.store.Update(localDataKey, updatedRecord)
}

func (r *sessionRepository) DeleteSession(
	ctx context.Context, localDataKey string,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxDelete(tx, localDataKey, sessionRecord{})
	} else {
		err = r.store.Delete(localDataKey, sessionRecord{})
	}
	if err != nil && err != badgerhold.ErrNotFound {
		return err
	}

	r.log("session %s deleted", localDataKey)
	return nil
}

func (r *sessionRepository) getRecord(
	ctx context.Context, localDataKey string,
) (*sessionRecord, error) {
	var record sessionRecord
	var err error
	if ctx.Value("tx") != nil {
		tx := ctx.Value("tx").(*badger.Txn)
		err = r.store.TxGet(tx, localDataKey, &record)
	} else {
		err = r.store.Get(localDataKey, &record)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &record, nil
}

func (r *sessionRepository) reset() {
	r.lock.Lock()
	defer r.lock.Unlock()

	if err := r.store.DeleteMatching(
		&sessionRecord{}, &badgerhold.Query{},
	); err != nil {
		r.log("error while resetting: %s", err)
	}
}

func (r *sessionRepository) close() {
	if err := r.store.Close(); err != nil {
		r.log("error while closing: %s", err)
	}
}
