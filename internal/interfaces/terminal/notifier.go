package terminal

import (
	"fmt"

	log "github.com/sirupsen/logrus"

	"github.com/shiftdevices/bitboxd/internal/core/application"
	"github.com/shiftdevices/bitboxd/internal/core/domain"
	"github.com/shiftdevices/bitboxd/internal/core/ports"
)

// Notifier renders the outbound UI boundary on the process log. State
// transitions go to the debug level, user notices to the level matching
// their severity.
type Notifier struct{}

func NewNotifier() *Notifier {
	return &Notifier{}
}

func (n *Notifier) LoadingStateChanged(loading bool) {
	log.WithField("loading", loading).Debug("device command state changed")
}

func (n *Notifier) SyncStateChanged(syncing bool) {
	log.WithField("syncing", syncing).Debug("wallet sync state changed")
}

func (n *Notifier) AwaitingDeviceConfirmation(awaiting bool) {
	if awaiting {
		log.Info("touch the device button to continue")
	}
}

func (n *Notifier) DeviceConnectionChanged(connected bool) {
	if connected {
		log.Info("device plugged")
		return
	}
	log.Info("device unplugged")
}

func (n *Notifier) WalletOverviewUpdated(walletAvailable, lockAvailable bool) {
	log.WithFields(log.Fields{
		"seeded": walletAvailable,
		"locked": lockAvailable,
	}).Info("device state updated")
}

func (n *Notifier) WalletBalanceUpdated(displayName, balance string) {
	log.Infof("%s: %s", displayName, balance)
}

func (n *Notifier) ProposalDisplayed(
	proposal *domain.Proposal, hasPrev, hasNext bool,
) {
	if proposal == nil {
		log.Info("no pending payment proposals")
		return
	}

	position := ""
	if hasPrev {
		position += " <prev"
	}
	if hasNext {
		position += " next>"
	}
	log.Infof(
		"proposal %s: pay %s to %s (fee %s)%s",
		proposal.ID, application.FormatBits(proposal.Amount),
		proposal.ToAddress, application.FormatBits(proposal.Fee), position,
	)
}

func (n *Notifier) UserNotice(kind ports.NoticeKind, message string) {
	switch kind {
	case ports.NoticeCritical:
		log.Error(message)
	case ports.NoticeWarning:
		log.Warn(message)
	default:
		log.Info(message)
	}
}

func (n *Notifier) BackupList(names []string) {
	if len(names) == 0 {
		log.Info("no backups on the device")
		return
	}
	for i, name := range names {
		log.Info(fmt.Sprintf("backup %d: %s", i+1, name))
	}
}
