package application

import (
	"context"
	"encoding/json"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/shiftdevices/bitboxd/internal/core/domain"
	"github.com/shiftdevices/bitboxd/internal/core/ports"
)

// walletStatus is the wallet service status document: cached wallet
// metadata, the participant key ring, the confirmed balance and the pending
// proposal set.
type walletStatus struct {
	Balance *struct {
		AvailableAmount int64 `json:"availableAmount"`
	} `json:"balance"`
	Wallet *struct {
		Name     string `json:"name"`
		M        int    `json:"m"`
		N        int    `json:"n"`
		Copayers []struct {
			XPubKey string `json:"xPubKey"`
		} `json:"copayers"`
	} `json:"wallet"`
	PendingTxps []*domain.Proposal `json:"pendingTxps"`
}

// SyncService refreshes the cached remote wallet state. At most one fetch
// per service is in flight, a trigger while busy is dropped rather than
// queued. The network round trip runs on a background worker against a
// session snapshot; the cached state is swapped wholesale on the event
// loop.
type SyncService struct {
	sessions    *SessionManager
	copayClient ports.CopayService
	notifier    ports.Notifier
	loop        *EventLoop
	walletIndex int

	// invoked on the event loop after each completed sync to re-resolve
	// the displayed proposal against the fresh set
	onSynced func()

	lock       *sync.Mutex
	inProgress bool
}

func NewSyncService(
	sessions *SessionManager, copayClient ports.CopayService,
	notifier ports.Notifier, loop *EventLoop, walletIndex int,
) *SyncService {
	return &SyncService{
		sessions:    sessions,
		copayClient: copayClient,
		notifier:    notifier,
		loop:        loop,
		walletIndex: walletIndex,
		lock:        &sync.Mutex{},
	}
}

// SetSyncedHook installs the callback run after each completed sync.
func (s *SyncService) SetSyncedHook(fn func()) {
	s.onSynced = fn
}

// Busy reports whether a wallet fetch is currently in flight.
func (s *SyncService) Busy() bool {
	s.lock.Lock()
	defer s.lock.Unlock()
	return s.inProgress
}

// Update triggers a wallet fetch. Returns false when one is already in
// flight or the session holds no key material yet.
func (s *SyncService) Update() bool {
	snapshot := s.sessions.Snapshot(s.walletIndex)
	if snapshot == nil || !snapshot.IsSeeded() {
		return false
	}

	s.lock.Lock()
	if s.inProgress {
		s.lock.Unlock()
		log.Debug("wallet sync already in flight, trigger dropped")
		return false
	}
	s.inProgress = true
	s.lock.Unlock()

	s.notifier.SyncStateChanged(true)
	go func() {
		available, raw := s.copayClient.FetchWalletAndProposals(
			context.Background(), snapshot,
		)
		s.loop.Post(func() {
			s.finish(available, raw)
		})
	}()
	return true
}

func (s *SyncService) finish(available bool, raw string) {
	s.lock.Lock()
	s.inProgress = false
	s.lock.Unlock()
	s.notifier.SyncStateChanged(false)

	if !available {
		s.notifier.UserNotice(
			ports.NoticeWarning, "No wallet found on the coordination service",
		)
		return
	}

	var status walletStatus
	if err := json.Unmarshal([]byte(raw), &status); err != nil {
		log.WithError(err).Warn("malformed wallet status document")
		s.notifier.UserNotice(
			ports.NoticeWarning, "The wallet service returned a malformed response",
		)
		return
	}

	displayName := ""
	balance := int64(0)
	s.sessions.WithSession(s.walletIndex, func(session *domain.MultisigSession) {
		if status.Wallet != nil {
			session.WalletRemoteName = status.Wallet.Name
			session.WalletM = status.Wallet.M
			session.WalletN = status.Wallet.N
			ring := make([]string, 0, len(status.Wallet.Copayers))
			for _, copayer := range status.Wallet.Copayers {
				if copayer.XPubKey != "" {
					ring = append(ring, copayer.XPubKey)
				}
			}
			session.PublicKeyRing = ring
		}
		if status.Balance != nil {
			session.AvailableBalance = status.Balance.AvailableAmount
		}
		session.Proposals.Replace(status.PendingTxps)

		displayName = session.DisplayName()
		balance = session.AvailableBalance
	})

	s.notifier.WalletBalanceUpdated(displayName, FormatBits(balance))
	if s.onSynced != nil {
		s.onSynced()
	}
}
