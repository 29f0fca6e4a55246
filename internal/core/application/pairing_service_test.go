package application_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shiftdevices/bitboxd/internal/core/application"
	"github.com/shiftdevices/bitboxd/internal/core/domain"
	"github.com/shiftdevices/bitboxd/internal/core/ports"
	"github.com/shiftdevices/bitboxd/pkg/copay"
)

func deviceXPub(t *testing.T, seedByte byte) string {
	t.Helper()
	seed := bytes.Repeat([]byte{seedByte}, 32)
	master, err := hdkeychain.NewMaster(seed, &chaincfg.MainNetParams)
	require.NoError(t, err)
	neutered, err := master.Neuter()
	require.NoError(t, err)
	return neutered.String()
}

func testInvitationCode(t *testing.T) string {
	t.Helper()
	privKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)
	wif, err := btcutil.NewWIF(privKey, &chaincfg.TestNet3Params, true)
	require.NoError(t, err)
	invitation := &copay.Invitation{
		WalletID:      "9cb39f42-7f4c-4c6f-8f62-8a4f3a8cdb2f",
		WalletPrivKey: wif,
		Network:       copay.NetworkTest,
	}
	code, err := invitation.Serialize()
	require.NoError(t, err)
	return code
}

type pairingFixture struct {
	transport   *mockTransport
	copayClient *mockCopayService
	notifier    *fakeNotifier
	prompter    *fakePrompter
	sessions    *application.SessionManager
	repoManager *mockRepoManager
	service     *application.PairingService
}

func newPairingFixture(t *testing.T, multisig *domain.MultisigSession) *pairingFixture {
	t.Helper()
	transport := &mockTransport{}
	copayClient := &mockCopayService{}
	notifier := &fakeNotifier{}
	prompter := &fakePrompter{}
	credentials := application.NewSessionCredentials()
	loop := newLoop(t)
	sessions := application.NewSessionManager(
		domain.NewMultisigSession("copay_single", "bitbox", "m/200'"),
		multisig,
	)
	repoManager := newMockRepoManager()
	dispatcher := application.NewCommandDispatcher(transport, credentials, notifier, loop)
	router := application.NewResponseRouter(notifier, credentials)
	service := application.NewPairingService(
		dispatcher, router, sessions, repoManager, copayClient, notifier,
		prompter, loop, &chaincfg.MainNetParams, &chaincfg.TestNet3Params,
	)
	return &pairingFixture{
		transport:   transport,
		copayClient: copayClient,
		notifier:    notifier,
		prompter:    prompter,
		sessions:    sessions,
		repoManager: repoManager,
		service:     service,
	}
}

func TestPairingExportsBothKeysAndJoins(t *testing.T) {
	session := domain.NewMultisigSession("copay_multisig", "alice", "m/131'")
	f := newPairingFixture(t, session)
	f.prompter.invitationCode = testInvitationCode(t)
	f.prompter.invitationOK = true

	masterXPub := deviceXPub(t, 1)
	requestXPub := deviceXPub(t, 2)
	f.transport.
		On("Execute", mock.MatchedBy(func(payload string) bool {
			return strings.Contains(payload, `"xpub":"m/131'/45'"`)
		}), mock.Anything).
		Return(`{"xpub":"`+masterXPub+`"}`, ports.ExecutionOK).Once()
	f.transport.
		On("Execute", mock.MatchedBy(func(payload string) bool {
			return strings.Contains(payload, `"xpub":"m/131'/1'/0"`)
		}), mock.Anything).
		Return(`{"xpub":"`+requestXPub+`"}`, ports.ExecutionOK).Once()

	joined := make(chan struct{}, 1)
	f.copayClient.
		On("JoinWallet", mock.Anything, "alice", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { joined <- struct{}{} }).
		Return(true, "")

	require.True(t, f.service.JoinWallet(application.MultisigWalletIndex))

	select {
	case <-joined:
	case <-time.After(time.Second):
		t.Fatal("join request never sent")
	}

	require.Eventually(t, func() bool {
		ready := false
		f.sessions.WithSession(application.MultisigWalletIndex, func(s *domain.MultisigSession) {
			ready = s.IsSeeded()
		})
		return ready
	}, time.Second, 10*time.Millisecond)

	f.sessions.WithSession(application.MultisigWalletIndex, func(s *domain.MultisigSession) {
		// device keys are re-encoded for the service network
		require.True(t, strings.HasPrefix(s.MasterXPub, "tpub"))
		require.True(t, strings.HasPrefix(s.RequestXPub, "tpub"))
		require.Equal(t, copay.CopayerID(s.MasterXPub), s.CopayerID)
	})
	f.repoManager.sessionRepo.AssertCalled(t, "SaveSession", mock.Anything, mock.Anything)
}

func TestPairingDeviceRefusesExport(t *testing.T) {
	session := domain.NewMultisigSession("copay_multisig", "alice", "m/131'")
	f := newPairingFixture(t, session)

	f.transport.
		On("Execute", mock.Anything, mock.Anything).
		Return(`{"xpub":{"error":"keypath not allowed"}}`, ports.ExecutionOK)

	require.True(t, f.service.JoinWallet(application.MultisigWalletIndex))

	require.Eventually(t, func() bool {
		return f.notifier.lastNotice() == "keypath not allowed"
	}, time.Second, 10*time.Millisecond)

	// the failed export leaves no partial pairing behind
	f.sessions.WithSession(application.MultisigWalletIndex, func(s *domain.MultisigSession) {
		require.Equal(t, domain.Unseeded, s.PairingState())
		require.Empty(t, s.MasterXPub)
	})
}

func TestPairingRejectsMalformedDeviceKey(t *testing.T) {
	session := domain.NewMultisigSession("copay_multisig", "alice", "m/131'")
	f := newPairingFixture(t, session)

	f.transport.
		On("Execute", mock.Anything, mock.Anything).
		Return(`{"xpub":"definitely not a key"}`, ports.ExecutionOK)

	require.True(t, f.service.JoinWallet(application.MultisigWalletIndex))

	require.Eventually(t, func() bool {
		return strings.Contains(f.notifier.lastNotice(), "malformed extended public key")
	}, time.Second, 10*time.Millisecond)
	f.sessions.WithSession(application.MultisigWalletIndex, func(s *domain.MultisigSession) {
		require.Equal(t, domain.Unseeded, s.PairingState())
	})
}

func TestPairingTransportFailureRevertsState(t *testing.T) {
	session := domain.NewMultisigSession("copay_multisig", "alice", "m/131'")
	f := newPairingFixture(t, session)

	f.transport.
		On("Execute", mock.MatchedBy(func(payload string) bool {
			return strings.Contains(payload, `"xpub":"m/131'/45'"`)
		}), mock.Anything).
		Return("", ports.ExecutionTimeout)

	require.True(t, f.service.JoinWallet(application.MultisigWalletIndex))

	require.Eventually(t, func() bool {
		return strings.Contains(f.notifier.lastNotice(), "Device communication failed")
	}, time.Second, 10*time.Millisecond)

	// the lost export must not leave the session stuck mid-pairing
	require.Eventually(t, func() bool {
		state := domain.Unseeded
		f.sessions.WithSession(application.MultisigWalletIndex, func(s *domain.MultisigSession) {
			state = s.PairingState()
		})
		return state == domain.Unseeded
	}, time.Second, 10*time.Millisecond)

	// a retry may start over from scratch
	require.True(t, f.service.JoinWallet(application.MultisigWalletIndex))
}

func TestPairingErrorEnvelopeRevertsState(t *testing.T) {
	session := domain.NewMultisigSession("copay_multisig", "alice", "m/131'")
	f := newPairingFixture(t, session)

	f.transport.
		On("Execute", mock.Anything, mock.Anything).
		Return(`{"error":{"code":100,"message":"i/o failure"}}`, ports.ExecutionOK)

	require.True(t, f.service.JoinWallet(application.MultisigWalletIndex))

	require.Eventually(t, func() bool {
		return f.notifier.lastNotice() == "i/o failure"
	}, time.Second, 10*time.Millisecond)

	require.Eventually(t, func() bool {
		state := domain.Unseeded
		f.sessions.WithSession(application.MultisigWalletIndex, func(s *domain.MultisigSession) {
			state = s.PairingState()
		})
		return state == domain.Unseeded
	}, time.Second, 10*time.Millisecond)
}

func TestPairingResumesFromPersistedMasterKey(t *testing.T) {
	session := domain.NewMultisigSession("copay_multisig", "alice", "m/131'")
	require.NoError(t, session.BeginMasterKeyExport())
	require.NoError(t, session.SetMasterKey(deviceXPub(t, 1)))
	f := newPairingFixture(t, session)
	f.prompter.invitationCode = testInvitationCode(t)
	f.prompter.invitationOK = true

	requestXPub := deviceXPub(t, 2)
	f.transport.
		On("Execute", mock.MatchedBy(func(payload string) bool {
			return strings.Contains(payload, `"xpub":"m/131'/1'/0"`)
		}), mock.Anything).
		Return(`{"xpub":"`+requestXPub+`"}`, ports.ExecutionOK).Once()

	joined := make(chan struct{}, 1)
	f.copayClient.
		On("JoinWallet", mock.Anything, "alice", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { joined <- struct{}{} }).
		Return(true, "")

	require.True(t, f.service.JoinWallet(application.MultisigWalletIndex))

	select {
	case <-joined:
	case <-time.After(time.Second):
		t.Fatal("join request never sent")
	}
	f.sessions.WithSession(application.MultisigWalletIndex, func(s *domain.MultisigSession) {
		require.True(t, s.IsSeeded())
	})
}

func TestJoinSeededSessionSkipsPairing(t *testing.T) {
	f := newPairingFixture(t, seededSession("copay_multisig"))
	f.prompter.invitationCode = testInvitationCode(t)
	f.prompter.invitationOK = true

	joined := make(chan struct{}, 1)
	f.copayClient.
		On("JoinWallet", mock.Anything, "bitbox", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { joined <- struct{}{} }).
		Return(true, "")

	require.True(t, f.service.JoinWallet(application.MultisigWalletIndex))

	select {
	case <-joined:
	case <-time.After(time.Second):
		t.Fatal("join request never sent")
	}
	f.transport.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestJoinInvalidInvitationCode(t *testing.T) {
	f := newPairingFixture(t, seededSession("copay_multisig"))
	f.prompter.invitationCode = "garbage"
	f.prompter.invitationOK = true

	require.True(t, f.service.JoinWallet(application.MultisigWalletIndex))
	require.Equal(t, "Invalid wallet invitation code", f.notifier.lastNotice())
	f.copayClient.AssertNotCalled(
		t, "JoinWallet", mock.Anything, mock.Anything, mock.Anything, mock.Anything,
	)
}

func TestJoinServiceErrorSurfacesMessage(t *testing.T) {
	f := newPairingFixture(t, seededSession("copay_multisig"))
	f.prompter.invitationCode = testInvitationCode(t)
	f.prompter.invitationOK = true

	f.copayClient.
		On("JoinWallet", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(false, `{"message":"copayer already in wallet"}`)

	require.True(t, f.service.JoinWallet(application.MultisigWalletIndex))

	require.Eventually(t, func() bool {
		return strings.Contains(f.notifier.lastNotice(), "copayer already in wallet")
	}, time.Second, 10*time.Millisecond)
}
