package ports

import (
	"github.com/shiftdevices/bitboxd/internal/core/domain"
)

// NoticeKind classifies user notices by severity.
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeWarning
	NoticeCritical
)

// Notifier is the outbound UI boundary: the core reports state changes and
// notices, the excluded GUI layer renders them. Calls always happen on the
// UI-affine context.
type Notifier interface {
	// LoadingStateChanged flips while a device command is in flight.
	LoadingStateChanged(loading bool)
	// SyncStateChanged flips while a remote wallet fetch is in flight.
	SyncStateChanged(syncing bool)
	// AwaitingDeviceConfirmation signals that the submitted command needs
	// the on-device touch button. Advisory only.
	AwaitingDeviceConfirmation(awaiting bool)
	// DeviceConnectionChanged reports plug/unplug transitions.
	DeviceConnectionChanged(connected bool)
	// WalletOverviewUpdated reports the seeded/2FA state from device info.
	WalletOverviewUpdated(walletAvailable, lockAvailable bool)
	// WalletBalanceUpdated reports the cached wallet display name and its
	// formatted balance after a sync.
	WalletBalanceUpdated(displayName, balance string)
	// ProposalDisplayed shows the given proposal with its positional
	// navigation state; a nil proposal clears the display.
	ProposalDisplayed(proposal *domain.Proposal, hasPrev, hasNext bool)
	// UserNotice surfaces a message to the user.
	UserNotice(kind NoticeKind, message string)
	// BackupList shows the device backup files.
	BackupList(names []string)
}

// Prompter is the inbound UI boundary: the core asks for a value or a
// decision and blocks the current flow until the user answers or cancels.
type Prompter interface {
	// AskSessionPassword prompts for the device session password.
	AskSessionPassword() (string, bool)
	// AskNewPassword prompts for a new device password.
	AskNewPassword() (string, bool)
	// AskInvitationCode prompts for a wallet invitation code.
	AskInvitationCode() (string, bool)
	// ConfirmErase asks the user to confirm a full device erase.
	ConfirmErase() bool
	// VerifyEcho presents the device confirmation echo for out-of-band
	// verification; false aborts the signing flow.
	VerifyEcho(echo string) bool
}
