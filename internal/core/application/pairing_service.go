package application

import (
	"context"
	"encoding/json"

	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"

	"github.com/shiftdevices/bitboxd/internal/core/domain"
	"github.com/shiftdevices/bitboxd/internal/core/ports"
	"github.com/shiftdevices/bitboxd/pkg/copay"
	"github.com/shiftdevices/bitboxd/pkg/wallet/xpub"
)

// PairingService seeds a wallet session with its device key material and
// registers the participant on the shared wallet. Pairing is two sequential
// exports: the master key below the signing branch, then the request key
// the wallet service authenticates API calls with.
//
// The device serializes exported keys under its own network version bytes;
// the wallet service expects them under the service network's. Keys are
// re-encoded in between.
type PairingService struct {
	dispatcher  *CommandDispatcher
	router      *ResponseRouter
	sessions    *SessionManager
	repoManager ports.RepoManager
	copayClient ports.CopayService
	notifier    ports.Notifier
	prompter    ports.Prompter
	loop        *EventLoop

	deviceNet  *chaincfg.Params
	serviceNet *chaincfg.Params

	// invoked on the event loop after a successful wallet join
	onJoined func()
}

func NewPairingService(
	dispatcher *CommandDispatcher, router *ResponseRouter,
	sessions *SessionManager, repoManager ports.RepoManager,
	copayClient ports.CopayService, notifier ports.Notifier,
	prompter ports.Prompter, loop *EventLoop,
	deviceNet, serviceNet *chaincfg.Params,
) *PairingService {
	svc := &PairingService{
		dispatcher:  dispatcher,
		router:      router,
		sessions:    sessions,
		repoManager: repoManager,
		copayClient: copayClient,
		notifier:    notifier,
		prompter:    prompter,
		loop:        loop,
		deviceNet:   deviceNet,
		serviceNet:  serviceNet,
	}
	router.RegisterHandler(TagXPubMaster, svc.handleMasterKey)
	router.RegisterHandler(TagXPubRequest, svc.handleRequestKey)
	return svc
}

// SetJoinedHook installs the callback run after a successful join,
// typically a wallet sync.
func (s *PairingService) SetJoinedHook(fn func()) {
	s.onJoined = fn
}

// JoinWallet pairs the session at walletIndex if needed and then registers
// the participant with an invitation code. Returns false when the first
// device command could not be submitted.
func (s *PairingService) JoinWallet(walletIndex int) bool {
	seeded := false
	s.sessions.WithSession(walletIndex, func(session *domain.MultisigSession) {
		seeded = session.IsSeeded()
	})
	if seeded {
		s.promptAndJoin(walletIndex)
		return true
	}
	return s.startPairing(walletIndex)
}

func (s *PairingService) startPairing(walletIndex int) bool {
	var cmd Command
	started := false
	s.sessions.WithSession(walletIndex, func(session *domain.MultisigSession) {
		switch session.PairingState() {
		case domain.Unseeded:
			if err := session.BeginMasterKeyExport(); err != nil {
				log.WithError(err).Warn("cannot start pairing")
				return
			}
			cmd = xpubExportCommand(session.MasterKeyExportPath(), TagXPubMaster, walletIndex)
			started = true
		case domain.MasterKeySet:
			// a prior run already exported the master key, resume with the
			// request key export
			if err := session.BeginRequestKeyExport(); err != nil {
				log.WithError(err).Warn("cannot resume pairing")
				return
			}
			cmd = xpubExportCommand(session.RequestKeyExportPath(), TagXPubRequest, walletIndex)
			started = true
		default:
			log.WithField("state", session.PairingState().String()).
				Warn("cannot start pairing")
		}
	})
	if !started {
		return false
	}
	if !s.dispatcher.Submit(cmd, s.routeExport) {
		s.abortExport(walletIndex)
		return false
	}
	return true
}

// routeExport is the continuation for the pairing export commands. The
// router short-circuits the tag handler on transport failures and error
// envelopes, so the pending export step must be reverted here, the session
// would otherwise refuse every later pairing attempt.
func (s *PairingService) routeExport(outcome CommandOutcome) {
	if outcome.Status != ports.ExecutionOK || outcome.Response.Error != nil {
		s.abortExport(outcome.Subtag)
	}
	s.router.Route(outcome)
}

func (s *PairingService) handleMasterKey(outcome CommandOutcome) {
	walletIndex := outcome.Subtag
	converted, ok := s.convertExportedKey(outcome.Response.XPub)
	if !ok {
		s.abortExport(walletIndex)
		return
	}

	var cmd Command
	advanced := false
	s.sessions.WithSession(walletIndex, func(session *domain.MultisigSession) {
		if err := session.SetMasterKey(converted); err != nil {
			log.WithError(err).Warn("unexpected master key response")
			return
		}
		if err := session.BeginRequestKeyExport(); err != nil {
			log.WithError(err).Warn("cannot continue pairing")
			return
		}
		cmd = xpubExportCommand(session.RequestKeyExportPath(), TagXPubRequest, walletIndex)
		advanced = true
	})
	if !advanced {
		return
	}
	s.persistSession(walletIndex)
	if !s.dispatcher.Submit(cmd, s.routeExport) {
		s.abortExport(walletIndex)
	}
}

func (s *PairingService) handleRequestKey(outcome CommandOutcome) {
	walletIndex := outcome.Subtag
	converted, ok := s.convertExportedKey(outcome.Response.XPub)
	if !ok {
		s.abortExport(walletIndex)
		return
	}

	ready := false
	s.sessions.WithSession(walletIndex, func(session *domain.MultisigSession) {
		if err := session.SetRequestKey(converted); err != nil {
			log.WithError(err).Warn("unexpected request key response")
			return
		}
		session.CopayerID = copay.CopayerID(session.MasterXPub)
		ready = true
	})
	if !ready {
		return
	}
	s.persistSession(walletIndex)
	s.promptAndJoin(walletIndex)
}

// convertExportedKey validates a device key export and re-encodes it for
// the wallet service network.
func (s *PairingService) convertExportedKey(field *StringOrError) (string, bool) {
	if field == nil || field.Value == "" {
		message := "The device returned no extended public key"
		if field != nil && field.Err != "" {
			message = field.Err
		}
		s.notifier.UserNotice(ports.NoticeWarning, message)
		return "", false
	}
	key, err := xpub.Deserialize(field.Value, s.deviceNet)
	if err != nil {
		s.notifier.UserNotice(ports.NoticeWarning, "The device returned a malformed extended public key")
		return "", false
	}
	converted, err := xpub.ConvertVersion(key, s.serviceNet)
	if err != nil {
		s.notifier.UserNotice(ports.NoticeWarning, "The exported key could not be re-encoded")
		return "", false
	}
	return converted, true
}

func (s *PairingService) abortExport(walletIndex int) {
	s.sessions.WithSession(walletIndex, func(session *domain.MultisigSession) {
		session.AbortKeyExport()
	})
}

func (s *PairingService) persistSession(walletIndex int) {
	ctx := context.Background()
	s.sessions.WithSession(walletIndex, func(session *domain.MultisigSession) {
		if err := s.repoManager.SessionRepository().SaveSession(ctx, session); err != nil {
			log.WithError(err).WithField("session", session.LocalDataKey).
				Error("failed to persist session")
		}
	})
}

// promptAndJoin asks for an invitation code and registers the participant
// on the shared wallet on a background worker.
func (s *PairingService) promptAndJoin(walletIndex int) {
	code, ok := s.prompter.AskInvitationCode()
	if !ok {
		return
	}
	invitation, err := copay.ParseInvitation(code)
	if err != nil {
		s.notifier.UserNotice(ports.NoticeWarning, "Invalid wallet invitation code")
		return
	}

	snapshot := s.sessions.Snapshot(walletIndex)
	if snapshot == nil {
		return
	}
	go func() {
		joined, raw := s.copayClient.JoinWallet(
			context.Background(), snapshot.ParticipantName, invitation, snapshot,
		)
		s.loop.Post(func() {
			if !joined {
				s.notifier.UserNotice(
					ports.NoticeWarning,
					"Could not join the wallet: "+serviceMessage(raw),
				)
				return
			}
			s.notifier.UserNotice(ports.NoticeInfo, "Joined the wallet successfully")
			if s.onJoined != nil {
				s.onJoined()
			}
		})
	}()
}

// serviceMessage extracts the human-readable message from a wallet service
// error document, falling back to the raw body.
func serviceMessage(raw string) string {
	var doc struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal([]byte(raw), &doc); err == nil && doc.Message != "" {
		return doc.Message
	}
	return raw
}
