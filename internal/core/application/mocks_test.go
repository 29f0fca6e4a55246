package application_test

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/shiftdevices/bitboxd/internal/core/domain"
	"github.com/shiftdevices/bitboxd/internal/core/ports"
	"github.com/shiftdevices/bitboxd/pkg/copay"
)

// ports.DeviceTransport
type mockTransport struct {
	mock.Mock
}

func (m *mockTransport) IsConnected() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *mockTransport) Execute(
	payload, sessionCredential string,
) (string, ports.ExecutionStatus) {
	args := m.Called(payload, sessionCredential)
	return args.String(0), args.Get(1).(ports.ExecutionStatus)
}

// ports.CopayService
type mockCopayService struct {
	mock.Mock
}

func (m *mockCopayService) FetchWalletAndProposals(
	ctx context.Context, session *domain.MultisigSession,
) (bool, string) {
	args := m.Called(ctx, session)
	return args.Bool(0), args.String(1)
}

func (m *mockCopayService) JoinWallet(
	ctx context.Context, participantName string,
	invitation *copay.Invitation, session *domain.MultisigSession,
) (bool, string) {
	args := m.Called(ctx, participantName, invitation, session)
	return args.Bool(0), args.String(1)
}

func (m *mockCopayService) SubmitSignatures(
	ctx context.Context, session *domain.MultisigSession,
	proposal *domain.Proposal, signatures []string,
) error {
	args := m.Called(ctx, session, proposal, signatures)
	return args.Error(0)
}

func (m *mockCopayService) RejectProposal(
	ctx context.Context, session *domain.MultisigSession,
	proposal *domain.Proposal,
) error {
	args := m.Called(ctx, session, proposal)
	return args.Error(0)
}

// domain.SessionRepository
type mockSessionRepo struct {
	mock.Mock
}

func (m *mockSessionRepo) GetSession(
	ctx context.Context, localDataKey string,
) (*domain.MultisigSession, error) {
	args := m.Called(ctx, localDataKey)
	var session *domain.MultisigSession
	if args.Get(0) != nil {
		session = args.Get(0).(*domain.MultisigSession)
	}
	return session, args.Error(1)
}

func (m *mockSessionRepo) SaveSession(
	ctx context.Context, session *domain.MultisigSession,
) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *mockSessionRepo) UpdateSession(
	ctx context.Context, localDataKey string,
	updateFn func(*domain.MultisigSession) (*domain.MultisigSession, error),
) error {
	args := m.Called(ctx, localDataKey, updateFn)
	return args.Error(0)
}

func (m *mockSessionRepo) DeleteSession(
	ctx context.Context, localDataKey string,
) error {
	args := m.Called(ctx, localDataKey)
	return args.Error(0)
}

// ports.RepoManager
type mockRepoManager struct {
	mock.Mock
	sessionRepo *mockSessionRepo
}

func newMockRepoManager() *mockRepoManager {
	repo := &mockSessionRepo{}
	repo.On("SaveSession", mock.Anything, mock.Anything).Return(nil)
	repo.On("DeleteSession", mock.Anything, mock.Anything).Return(nil)
	return &mockRepoManager{sessionRepo: repo}
}

func (m *mockRepoManager) SessionRepository() domain.SessionRepository {
	return m.sessionRepo
}

func (m *mockRepoManager) Reset() {}

func (m *mockRepoManager) Close() {}

// ports.Notifier recording fake. Handlers run on the event loop, tests
// poll the recorded calls with require.Eventually.
type fakeNotifier struct {
	mtx sync.Mutex

	loading     []bool
	syncing     []bool
	awaiting    []bool
	connected   []bool
	overview    [][2]bool
	balances    []string
	displayed   []*domain.Proposal
	navigation  [][2]bool
	notices     []string
	noticeKinds []ports.NoticeKind
	backupLists [][]string
}

func (f *fakeNotifier) LoadingStateChanged(loading bool) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.loading = append(f.loading, loading)
}

func (f *fakeNotifier) SyncStateChanged(syncing bool) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.syncing = append(f.syncing, syncing)
}

func (f *fakeNotifier) AwaitingDeviceConfirmation(awaiting bool) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.awaiting = append(f.awaiting, awaiting)
}

func (f *fakeNotifier) DeviceConnectionChanged(connected bool) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.connected = append(f.connected, connected)
}

func (f *fakeNotifier) WalletOverviewUpdated(walletAvailable, lockAvailable bool) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.overview = append(f.overview, [2]bool{walletAvailable, lockAvailable})
}

func (f *fakeNotifier) WalletBalanceUpdated(displayName, balance string) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.balances = append(f.balances, displayName+": "+balance)
}

func (f *fakeNotifier) ProposalDisplayed(
	proposal *domain.Proposal, hasPrev, hasNext bool,
) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.displayed = append(f.displayed, proposal)
	f.navigation = append(f.navigation, [2]bool{hasPrev, hasNext})
}

func (f *fakeNotifier) UserNotice(kind ports.NoticeKind, message string) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.notices = append(f.notices, message)
	f.noticeKinds = append(f.noticeKinds, kind)
}

func (f *fakeNotifier) BackupList(names []string) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.backupLists = append(f.backupLists, names)
}

func (f *fakeNotifier) allNotices() []string {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return append([]string{}, f.notices...)
}

func (f *fakeNotifier) lastNotice() string {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if len(f.notices) == 0 {
		return ""
	}
	return f.notices[len(f.notices)-1]
}

func (f *fakeNotifier) lastNoticeKind() (ports.NoticeKind, bool) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if len(f.noticeKinds) == 0 {
		return 0, false
	}
	return f.noticeKinds[len(f.noticeKinds)-1], true
}

func (f *fakeNotifier) noticeCount() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return len(f.notices)
}

func (f *fakeNotifier) lastBalance() string {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if len(f.balances) == 0 {
		return ""
	}
	return f.balances[len(f.balances)-1]
}

func (f *fakeNotifier) displayedCount() int {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return len(f.displayed)
}

func (f *fakeNotifier) lastDisplayed() (*domain.Proposal, [2]bool) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if len(f.displayed) == 0 {
		return nil, [2]bool{}
	}
	return f.displayed[len(f.displayed)-1], f.navigation[len(f.navigation)-1]
}

func (f *fakeNotifier) lastOverview() ([2]bool, bool) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if len(f.overview) == 0 {
		return [2]bool{}, false
	}
	return f.overview[len(f.overview)-1], true
}

func (f *fakeNotifier) lastBackupList() ([]string, bool) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	if len(f.backupLists) == 0 {
		return nil, false
	}
	return f.backupLists[len(f.backupLists)-1], true
}

func (f *fakeNotifier) loadingStates() []bool {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return append([]bool{}, f.loading...)
}

func (f *fakeNotifier) syncingStates() []bool {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return append([]bool{}, f.syncing...)
}

// ports.Prompter scripted fake.
type fakePrompter struct {
	mtx sync.Mutex

	sessionPassword   string
	sessionPasswordOK bool
	newPassword       string
	newPasswordOK     bool
	invitationCode    string
	invitationOK      bool
	eraseConfirmed    bool
	echoConfirmed     bool

	echoesSeen []string
}

func (f *fakePrompter) AskSessionPassword() (string, bool) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.sessionPassword, f.sessionPasswordOK
}

func (f *fakePrompter) AskNewPassword() (string, bool) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.newPassword, f.newPasswordOK
}

func (f *fakePrompter) AskInvitationCode() (string, bool) {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.invitationCode, f.invitationOK
}

func (f *fakePrompter) ConfirmErase() bool {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return f.eraseConfirmed
}

func (f *fakePrompter) VerifyEcho(echo string) bool {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	f.echoesSeen = append(f.echoesSeen, echo)
	return f.echoConfirmed
}

func (f *fakePrompter) seenEchoes() []string {
	f.mtx.Lock()
	defer f.mtx.Unlock()
	return append([]string{}, f.echoesSeen...)
}
