package main

import (
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	appconfig "github.com/shiftdevices/bitboxd/internal/app-config"
	"github.com/shiftdevices/bitboxd/internal/config"
	"github.com/shiftdevices/bitboxd/internal/interfaces"
)

var (
	// Build info.
	version string
	commit  string
	date    string

	// Config from env vars.
	dbType          = config.GetString(config.DatabaseTypeKey)
	logLevel        = config.GetInt(config.LogLevelKey)
	datadir         = config.GetDatadir()
	network         = config.GetNetwork()
	serviceURL      = config.GetString(config.WalletServiceURLKey)
	singleKeyPath   = config.GetString(config.SingleKeyPathKey)
	multisigKeyPath = config.GetString(config.MultisigKeyPathKey)
	participantName = config.GetString(config.ParticipantNameKey)
	syncInterval    = time.Duration(config.GetInt(config.SyncIntervalKey)) * time.Second
	dbDir           = filepath.Join(datadir, config.DbLocation)
)

func main() {
	log.SetLevel(log.Level(logLevel))

	appCfg := &appconfig.AppConfig{
		Version:           version,
		Commit:            commit,
		Date:              date,
		Network:           network,
		WalletServiceURL:  serviceURL,
		SingleKeyPath:     singleKeyPath,
		MultisigKeyPath:   multisigKeyPath,
		ParticipantName:   participantName,
		SyncInterval:      syncInterval,
		RepoManagerType:   dbType,
		RepoManagerConfig: dbDir,
	}

	serviceManager, err := interfaces.NewDaemonServiceManager(appCfg)
	if err != nil {
		log.WithError(err).Fatal("service: error while initializing")
	}
	defer func() {
		serviceManager.Service.Stop()
	}()

	if err := serviceManager.Service.Start(); err != nil {
		log.WithError(err).Fatal("service: error while starting")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGTERM, syscall.SIGINT)
	<-sigChan
}
