package application_test

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/btcutil/hdkeychain"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/shiftdevices/bitboxd/internal/core/application"
	"github.com/shiftdevices/bitboxd/internal/core/domain"
	"github.com/shiftdevices/bitboxd/internal/core/ports"
)

func testKeyRing(t *testing.T, n int) []string {
	t.Helper()
	ring := make([]string, 0, n)
	for i := 0; i < n; i++ {
		seed := bytes.Repeat([]byte{byte(i + 1)}, 32)
		master, err := hdkeychain.NewMaster(seed, &chaincfg.TestNet3Params)
		require.NoError(t, err)
		neutered, err := master.Neuter()
		require.NoError(t, err)
		ring = append(ring, neutered.String())
	}
	return ring
}

func testAddress(t *testing.T) string {
	t.Helper()
	addr, err := btcutil.NewAddressPubKeyHash(
		bytes.Repeat([]byte{7}, 20), &chaincfg.TestNet3Params,
	)
	require.NoError(t, err)
	return addr.EncodeAddress()
}

func testProposal(t *testing.T, id string) *domain.Proposal {
	t.Helper()
	return &domain.Proposal{
		ID:                 id,
		WalletID:           "w1",
		ToAddress:          testAddress(t),
		Amount:             50000,
		Fee:                1000,
		ChangeAddress:      testAddress(t),
		RequiredSignatures: 2,
		Inputs: []domain.ProposalInput{
			{
				TxID:     strings.Repeat("ab", 32),
				Vout:     0,
				Path:     "0/1",
				Satoshis: 40000,
			},
			{
				TxID:     strings.Repeat("cd", 32),
				Vout:     1,
				Path:     "0/2",
				Satoshis: 30000,
			},
		},
	}
}

type signingFixture struct {
	transport   *mockTransport
	copayClient *mockCopayService
	notifier    *fakeNotifier
	prompter    *fakePrompter
	sessions    *application.SessionManager
	service     *application.SigningService
}

func newSigningFixture(t *testing.T) *signingFixture {
	t.Helper()
	transport := &mockTransport{}
	copayClient := &mockCopayService{}
	notifier := &fakeNotifier{}
	prompter := &fakePrompter{}
	credentials := application.NewSessionCredentials()
	loop := newLoop(t)

	multisig := seededSession("copay_multisig")
	multisig.CopayerID = "our-copayer"
	multisig.PublicKeyRing = testKeyRing(t, 3)
	sessions := application.NewSessionManager(
		domain.NewMultisigSession("copay_single", "bitbox", "m/200'"),
		multisig,
	)

	dispatcher := application.NewCommandDispatcher(transport, credentials, notifier, loop)
	syncService := application.NewSyncService(
		sessions, copayClient, notifier, loop, application.MultisigWalletIndex,
	)
	service := application.NewSigningService(
		dispatcher, sessions, copayClient, syncService, notifier, prompter, loop,
		&chaincfg.TestNet3Params, application.MultisigWalletIndex,
	)
	return &signingFixture{
		transport:   transport,
		copayClient: copayClient,
		notifier:    notifier,
		prompter:    prompter,
		sessions:    sessions,
		service:     service,
	}
}

func (f *signingFixture) loadProposals(proposals ...*domain.Proposal) {
	f.sessions.WithSession(application.MultisigWalletIndex, func(s *domain.MultisigSession) {
		s.Proposals.Replace(proposals)
	})
}

func TestShowProposalNavigation(t *testing.T) {
	f := newSigningFixture(t)
	f.loadProposals(
		testProposal(t, "p1"), testProposal(t, "p2"), testProposal(t, "p3"),
	)

	require.True(t, f.service.ShowProposal("p2"))
	shown, nav := f.notifier.lastDisplayed()
	require.Equal(t, "p2", shown.ID)
	require.Equal(t, [2]bool{true, true}, nav)

	require.True(t, f.service.ShowNext())
	shown, nav = f.notifier.lastDisplayed()
	require.Equal(t, "p3", shown.ID)
	require.Equal(t, [2]bool{true, false}, nav)

	require.False(t, f.service.ShowNext())

	require.True(t, f.service.ShowPrev())
	shown, _ = f.notifier.lastDisplayed()
	require.Equal(t, "p2", shown.ID)
}

func TestShowProposalMissClearsDisplay(t *testing.T) {
	f := newSigningFixture(t)
	f.loadProposals(testProposal(t, "p1"))
	require.True(t, f.service.ShowProposal("p1"))

	require.False(t, f.service.ShowProposal("expired"))
	shown, _ := f.notifier.lastDisplayed()
	require.Nil(t, shown)

	f.sessions.WithSession(application.MultisigWalletIndex, func(s *domain.MultisigSession) {
		require.Nil(t, s.Proposals.Current())
	})
}

func TestRefreshDisplayFallsBackToFirstProposal(t *testing.T) {
	f := newSigningFixture(t)
	f.loadProposals(testProposal(t, "p1"), testProposal(t, "p2"))

	f.service.RefreshDisplay()
	shown, _ := f.notifier.lastDisplayed()
	require.Equal(t, "p1", shown.ID)
}

func TestRefreshDisplayKeepsSurvivingSelection(t *testing.T) {
	f := newSigningFixture(t)
	f.loadProposals(testProposal(t, "p1"), testProposal(t, "p2"))
	f.service.ShowProposal("p2")

	f.service.RefreshDisplay()
	shown, _ := f.notifier.lastDisplayed()
	require.Equal(t, "p2", shown.ID)
}

func TestSignFlowWithEchoVerification(t *testing.T) {
	f := newSigningFixture(t)
	proposal := testProposal(t, "p1")
	f.loadProposals(proposal)
	f.prompter.echoConfirmed = true

	// first round halts on the verification echo, the retry delivers the
	// signatures; the entry without a sig and the non-hex one are skipped
	f.transport.
		On("Execute", mock.MatchedBy(func(payload string) bool {
			return strings.Contains(payload, `"keypath":"m/131'/45'/0/1"`) &&
				strings.Contains(payload, `"keypath":"m/131'/45'/0/2"`)
		}), mock.Anything).
		Return(`{"echo":"verify me out of band"}`, ports.ExecutionOK).Once()
	f.transport.
		On("Execute", mock.Anything, mock.Anything).
		Return(
			`{"sign":[{"sig":"aabb","pubkey":"02"},{"pubkey":"03"},{"sig":"zz"},{"sig":"ccdd"}]}`,
			ports.ExecutionOK,
		)

	submitted := make(chan struct{}, 1)
	resynced := make(chan struct{}, 1)
	f.copayClient.
		On("SubmitSignatures", mock.Anything, mock.MatchedBy(func(s *domain.MultisigSession) bool {
			// the posting copayer identifies itself to the wallet service
			return s != nil && s.CopayerID == "our-copayer"
		}), proposal, []string{"aabb", "ccdd"}).
		Run(func(mock.Arguments) { submitted <- struct{}{} }).
		Return(nil)
	f.copayClient.
		On("FetchWalletAndProposals", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { resynced <- struct{}{} }).
		Return(true, testWalletStatus)

	require.True(t, f.service.ProcessProposal(proposal, application.ActionSign))

	select {
	case <-submitted:
	case <-time.After(time.Second):
		t.Fatal("signatures never posted")
	}
	require.Equal(t, []string{"verify me out of band"}, f.prompter.seenEchoes())

	// a full resync follows the submission
	select {
	case <-resynced:
	case <-time.After(time.Second):
		t.Fatal("no resync after posting signatures")
	}
}

func TestSignFlowEchoDeclinedAborts(t *testing.T) {
	f := newSigningFixture(t)
	proposal := testProposal(t, "p1")
	f.loadProposals(proposal)
	f.prompter.echoConfirmed = false

	f.transport.
		On("Execute", mock.Anything, mock.Anything).
		Return(`{"echo":"verify me"}`, ports.ExecutionOK)

	require.True(t, f.service.ProcessProposal(proposal, application.ActionSign))

	require.Eventually(t, func() bool {
		return f.notifier.lastNotice() == "Signing aborted"
	}, time.Second, 10*time.Millisecond)
	f.copayClient.AssertNotCalled(
		t, "SubmitSignatures", mock.Anything, mock.Anything, mock.Anything, mock.Anything,
	)
}

func TestSignFlowDeviceError(t *testing.T) {
	f := newSigningFixture(t)
	proposal := testProposal(t, "p1")
	f.loadProposals(proposal)

	f.transport.
		On("Execute", mock.Anything, mock.Anything).
		Return(`{"error":{"code":600,"message":"sign failed"}}`, ports.ExecutionOK)

	require.True(t, f.service.ProcessProposal(proposal, application.ActionSign))

	require.Eventually(t, func() bool {
		return f.notifier.lastNotice() == "sign failed"
	}, time.Second, 10*time.Millisecond)
}

func TestSignFlowTouchTimeoutSurfacesAdvisory(t *testing.T) {
	f := newSigningFixture(t)
	proposal := testProposal(t, "p1")
	f.loadProposals(proposal)

	// the user let the touch confirmation lapse, the reply carries the
	// advisory instead of a sign array
	f.transport.
		On("Execute", mock.Anything, mock.Anything).
		Return(`{"touchbutton":{"error":"timeout"}}`, ports.ExecutionOK)

	require.True(t, f.service.ProcessProposal(proposal, application.ActionSign))

	require.Eventually(t, func() bool {
		return f.notifier.lastNotice() == "timeout"
	}, time.Second, 10*time.Millisecond)
	for _, notice := range f.notifier.allNotices() {
		require.NotContains(t, notice, "no signatures")
	}
	f.copayClient.AssertNotCalled(
		t, "SubmitSignatures", mock.Anything, mock.Anything, mock.Anything, mock.Anything,
	)
}

func TestRejectPostsAndResyncs(t *testing.T) {
	f := newSigningFixture(t)
	proposal := testProposal(t, "p1")
	f.loadProposals(proposal)

	resynced := make(chan struct{}, 1)
	f.copayClient.
		On("RejectProposal", mock.Anything, mock.MatchedBy(func(s *domain.MultisigSession) bool {
			return s != nil && s.CopayerID == "our-copayer"
		}), proposal).
		Return(nil)
	f.copayClient.
		On("FetchWalletAndProposals", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { resynced <- struct{}{} }).
		Return(true, testWalletStatus)

	require.True(t, f.service.ProcessProposal(proposal, application.ActionReject))

	select {
	case <-resynced:
	case <-time.After(time.Second):
		t.Fatal("no resync after rejecting")
	}
	f.copayClient.AssertCalled(t, "RejectProposal", mock.Anything, mock.Anything, proposal)
	f.transport.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestSignAlreadyAcceptedProposal(t *testing.T) {
	f := newSigningFixture(t)
	proposal := testProposal(t, "p1")
	proposal.Actions = []domain.ProposalAction{
		{CopayerID: "our-copayer", Type: domain.ProposalActionAccept},
	}
	f.loadProposals(proposal)

	require.False(t, f.service.ProcessProposal(proposal, application.ActionSign))
	require.Equal(t, "This proposal is already signed", f.notifier.lastNotice())
	f.transport.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}

func TestSignWithoutKeyRing(t *testing.T) {
	f := newSigningFixture(t)
	f.sessions.WithSession(application.MultisigWalletIndex, func(s *domain.MultisigSession) {
		s.PublicKeyRing = nil
	})
	proposal := testProposal(t, "p1")
	f.loadProposals(proposal)

	require.False(t, f.service.ProcessProposal(proposal, application.ActionSign))
	require.Contains(t, f.notifier.lastNotice(), "cannot be signed")
}

func TestSignProposalWithMalformedInput(t *testing.T) {
	f := newSigningFixture(t)
	proposal := testProposal(t, "p1")
	proposal.Inputs[0].TxID = "not-a-txid"
	f.loadProposals(proposal)

	require.False(t, f.service.ProcessProposal(proposal, application.ActionSign))
	require.Contains(t, f.notifier.lastNotice(), "cannot be signed")
	f.transport.AssertNotCalled(t, "Execute", mock.Anything, mock.Anything)
}
