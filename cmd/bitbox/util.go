package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	appconfig "github.com/shiftdevices/bitboxd/internal/app-config"
	"github.com/shiftdevices/bitboxd/internal/config"
	"github.com/shiftdevices/bitboxd/internal/interfaces/terminal"
)

var colorRed = string("\033[31m")

// getApp builds the in-process application stack from the env config and
// starts its event loop. The returned cleanup waits for in-flight work to
// settle before tearing everything down.
func getApp() (*appconfig.AppConfig, func(), error) {
	appCfg := &appconfig.AppConfig{
		Version:           version,
		Commit:            commit,
		Date:              date,
		Network:           config.GetNetwork(),
		WalletServiceURL:  config.GetString(config.WalletServiceURLKey),
		SingleKeyPath:     config.GetString(config.SingleKeyPathKey),
		MultisigKeyPath:   config.GetString(config.MultisigKeyPathKey),
		ParticipantName:   config.GetString(config.ParticipantNameKey),
		SyncInterval:      time.Duration(config.GetInt(config.SyncIntervalKey)) * time.Second,
		RepoManagerType:   config.GetString(config.DatabaseTypeKey),
		RepoManagerConfig: filepath.Join(config.GetDatadir(), config.DbLocation),
		Notifier:          terminal.NewNotifier(),
		Prompter:          terminal.NewPrompter(),
	}
	if err := appCfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %s", err)
	}

	log.SetLevel(log.Level(config.GetInt(config.LogLevelKey)))

	loop := appCfg.EventLoop()
	loop.Start()

	cleanup := func() {
		waitIdle(appCfg)
		loop.Stop()
		appCfg.DeviceTransport().Close()
		appCfg.RepoManager().Close()
	}
	return appCfg, cleanup, nil
}

// connectDevice runs the plug-in flow: it prompts for the session password
// and fetches the device info. Commands talking to the device call this
// first.
func connectDevice(appCfg *appconfig.AppConfig) error {
	if !appCfg.DeviceTransport().IsConnected() {
		return fmt.Errorf("no Digital Bitbox plugged")
	}

	deviceSvc := appCfg.DeviceService()
	runOnLoop(appCfg, func() { deviceSvc.HandleConnectionChange(true) })
	waitIdle(appCfg)
	return nil
}

// runOnLoop posts fn to the event loop and waits for it to run. Prompts
// issued by fn block the loop, which is fine for a one-shot CLI.
func runOnLoop(appCfg *appconfig.AppConfig, fn func()) {
	done := make(chan struct{})
	appCfg.EventLoop().Post(func() {
		fn()
		close(done)
	})
	<-done
}

// waitIdle drains the event loop until no device command and no wallet
// fetch is in flight. Continuations may chain follow-up commands from
// background workers that lag the busy flags, so idleness must hold for a
// settle window before it counts.
func waitIdle(appCfg *appconfig.AppConfig) {
	dispatcher := appCfg.CommandDispatcher()
	syncSvc := appCfg.SyncService()
	idleChecks := 0
	for {
		runOnLoop(appCfg, func() {})
		if !dispatcher.Busy() && !syncSvc.Busy() {
			idleChecks++
			if idleChecks >= 10 {
				return
			}
		} else {
			idleChecks = 0
		}
		time.Sleep(200 * time.Millisecond)
	}
}

// runDeviceOp wires the common skeleton of the device commands: build the
// stack, log into the device, run the operation on the loop and wait for
// its continuation chain to settle.
func runDeviceOp(op func(appCfg *appconfig.AppConfig)) error {
	appCfg, cleanup, err := getApp()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := connectDevice(appCfg); err != nil {
		printErr(err)
		return nil
	}
	runOnLoop(appCfg, func() { op(appCfg) })
	return nil
}

func printErr(err error) {
	msg := fmt.Sprintf("%s%s", colorRed, capitalize(err.Error()))
	fmt.Fprintln(os.Stderr, msg)
}

func capitalize(s string) string {
	ss := strings.ToUpper(s[0:1])
	ss += s[1:]
	return ss
}

func formatVersion() string {
	return fmt.Sprintf(
		"\nVersion: %s\nCommit: %s\nDate: %s", version, commit, date,
	)
}
