package application

import (
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/shiftdevices/bitboxd/internal/core/domain"
	"github.com/shiftdevices/bitboxd/internal/core/ports"
)

// DeviceService drives the direct device operations: login, wallet
// creation, password management, erase, backups and the small utility
// commands. It owns the cached device overview state.
//
// All methods must be called on the event loop.
type DeviceService struct {
	dispatcher  *CommandDispatcher
	router      *ResponseRouter
	credentials *SessionCredentials
	sessions    *SessionManager
	repoManager ports.RepoManager
	notifier    ports.Notifier
	prompter    ports.Prompter

	deviceName      string
	walletAvailable bool
	lockAvailable   bool
}

func NewDeviceService(
	dispatcher *CommandDispatcher, router *ResponseRouter,
	credentials *SessionCredentials, sessions *SessionManager,
	repoManager ports.RepoManager, notifier ports.Notifier,
	prompter ports.Prompter,
) *DeviceService {
	svc := &DeviceService{
		dispatcher:  dispatcher,
		router:      router,
		credentials: credentials,
		sessions:    sessions,
		repoManager: repoManager,
		notifier:    notifier,
		prompter:    prompter,
	}
	router.RegisterHandler(TagDeviceInfo, svc.handleDeviceInfo)
	router.RegisterHandler(TagCreateWallet, svc.handleCreateWallet)
	router.RegisterHandler(TagPassword, svc.handlePassword)
	router.RegisterHandler(TagErase, svc.handleErase)
	router.RegisterHandler(TagLEDBlink, func(CommandOutcome) {})
	router.RegisterHandler(TagDeviceLock, svc.handleDeviceLock)
	router.RegisterHandler(TagRandomNumber, svc.handleRandomNumber)
	router.RegisterHandler(TagBackupList, svc.handleBackupList)
	router.RegisterHandler(TagBackupAdd, svc.handleBackupMutation)
	router.RegisterHandler(TagBackupErase, svc.handleBackupMutation)
	router.SetRecoveryHooks(svc.login, svc.ChangePassword)
	return svc
}

// WalletAvailable reports the cached seeded state from the last info
// response.
func (s *DeviceService) WalletAvailable() bool {
	return s.walletAvailable
}

// HandleConnectionChange reacts to a plug or unplug transition.
func (s *DeviceService) HandleConnectionChange(connected bool) {
	s.notifier.DeviceConnectionChanged(connected)
	if connected {
		s.login()
	} else {
		s.credentials.Clear()
	}
}

// login asks for the session password and refreshes the device info under
// it. Canceling the prompt leaves the session without a credential.
func (s *DeviceService) login() {
	password, ok := s.prompter.AskSessionPassword()
	if !ok {
		return
	}
	s.credentials.Set(password)
	s.GetInfo()
}

// GetInfo submits a device info request. Returns false while another
// command is in flight.
func (s *DeviceService) GetInfo() bool {
	return s.dispatcher.Submit(deviceInfoCommand(), s.router.Route)
}

// CreateWallet seeds a fresh wallet on the device. Re-seeding an already
// seeded device requires the touch button.
func (s *DeviceService) CreateWallet() bool {
	name := s.deviceName
	if name == "" {
		name = "bitbox"
	}
	return s.dispatcher.Submit(createWalletCommand(name, s.walletAvailable), s.router.Route)
}

// RestoreBackup seeds the device from the named backup file.
func (s *DeviceService) RestoreBackup(filename string) bool {
	return s.dispatcher.Submit(restoreBackupCommand(filename), s.router.Route)
}

// ChangePassword asks for a new device password and submits the change.
// The prior credential stays recoverable until the device confirms.
func (s *DeviceService) ChangePassword() {
	password, ok := s.prompter.AskNewPassword()
	if !ok {
		return
	}
	s.credentials.BeginChange(password)
	if !s.dispatcher.Submit(setPasswordCommand(password), s.router.Route) {
		s.credentials.RollbackChange()
	}
}

// Erase wipes the device after user confirmation. Local wallet data is
// only dropped once the device acknowledges the reset.
func (s *DeviceService) Erase() bool {
	if !s.prompter.ConfirmErase() {
		return false
	}
	s.credentials.BeginChange("")
	if !s.dispatcher.Submit(eraseCommand(), s.router.Route) {
		s.credentials.RollbackChange()
		return false
	}
	return true
}

// ToggleLED blinks the device LED.
func (s *DeviceService) ToggleLED() bool {
	return s.dispatcher.Submit(toggleLEDCommand(), s.router.Route)
}

// Lock enables the device 2FA lock. Requires the touch button.
func (s *DeviceService) Lock() bool {
	return s.dispatcher.Submit(lockDeviceCommand(), s.router.Route)
}

// RandomNumber asks the device for fresh entropy.
func (s *DeviceService) RandomNumber() bool {
	return s.dispatcher.Submit(randomNumberCommand(), s.router.Route)
}

// ListBackups fetches the backup files on the device microSD card.
func (s *DeviceService) ListBackups() bool {
	return s.dispatcher.Submit(backupListCommand(), s.router.Route)
}

// AddBackup writes a timestamped wallet backup to the microSD card.
func (s *DeviceService) AddBackup() bool {
	filename := fmt.Sprintf(
		"backup-%s.pdf", time.Now().Format("2006-01-02-15-04-05"),
	)
	return s.dispatcher.Submit(backupAddCommand(filename), s.router.Route)
}

// EraseAllBackups removes every backup file from the microSD card.
func (s *DeviceService) EraseAllBackups() bool {
	return s.dispatcher.Submit(backupEraseCommand(), s.router.Route)
}

func (s *DeviceService) handleDeviceInfo(outcome CommandOutcome) {
	info := outcome.Response.Device
	if info == nil {
		return
	}
	s.deviceName = info.Name
	s.walletAvailable = info.Seeded
	s.lockAvailable = info.Lock
	s.notifier.WalletOverviewUpdated(s.walletAvailable, s.lockAvailable)
}

func (s *DeviceService) handleCreateWallet(outcome CommandOutcome) {
	if outcome.Response.Seed != "success" {
		if outcome.Response.TouchButton == nil {
			s.notifier.UserNotice(ports.NoticeWarning, "Could not create the wallet")
		}
		return
	}
	s.notifier.UserNotice(ports.NoticeInfo, "Wallet created successfully")
	s.GetInfo()
}

func (s *DeviceService) handlePassword(outcome CommandOutcome) {
	// a non-ok verdict here means the response was encrypted under the new
	// password already, which is the success case
	succeeded := outcome.Status != ports.ExecutionOK ||
		outcome.Response.Password == "success"
	if !succeeded {
		s.credentials.RollbackChange()
		s.notifier.UserNotice(ports.NoticeWarning, "Could not set the device password")
		return
	}
	s.credentials.CommitChange()
	s.notifier.UserNotice(ports.NoticeInfo, "Device password set")
	s.GetInfo()
}

func (s *DeviceService) handleErase(outcome CommandOutcome) {
	if outcome.Response.Reset != "success" {
		s.credentials.RollbackChange()
		if outcome.Response.TouchButton == nil {
			s.notifier.UserNotice(ports.NoticeWarning, "Could not erase the device")
		}
		return
	}
	s.credentials.CommitChange()
	s.credentials.Clear()
	s.resetLocalData()
	s.notifier.UserNotice(ports.NoticeInfo, "Device erased")
	s.GetInfo()
}

// resetLocalData drops the local multisig wallet data of every session,
// both in memory and on disk. The session identities survive.
func (s *DeviceService) resetLocalData() {
	ctx := context.Background()
	s.sessions.WithEachSession(func(_ int, session *domain.MultisigSession) {
		session.ResetLocalData()
		if err := s.repoManager.SessionRepository().SaveSession(ctx, session); err != nil {
			log.WithError(err).WithField("session", session.LocalDataKey).
				Error("failed to persist session reset")
		}
	})
}

func (s *DeviceService) handleDeviceLock(outcome CommandOutcome) {
	if outcome.Response.Device == nil {
		return
	}
	s.notifier.UserNotice(ports.NoticeInfo, "Device lock enabled")
	s.GetInfo()
}

func (s *DeviceService) handleRandomNumber(outcome CommandOutcome) {
	if outcome.Response.Random == "" {
		return
	}
	s.notifier.UserNotice(ports.NoticeInfo, "Random number: "+outcome.Response.Random)
}

func (s *DeviceService) handleBackupList(outcome CommandOutcome) {
	if outcome.Response.Backup == nil {
		return
	}
	s.notifier.BackupList(outcome.Response.Backup.Files)
}

func (s *DeviceService) handleBackupMutation(outcome CommandOutcome) {
	backup := outcome.Response.Backup
	if backup == nil || backup.Status != "success" {
		s.notifier.UserNotice(ports.NoticeWarning, "Backup operation failed")
		return
	}
	s.ListBackups()
}
