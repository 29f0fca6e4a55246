package daemon

import (
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"

	appconfig "github.com/shiftdevices/bitboxd/internal/app-config"
	devicehid "github.com/shiftdevices/bitboxd/internal/infrastructure/device/hid"
)

// service runs the headless wallet agent: it owns the event loop, watches
// the device plug state and keeps the shared wallet in sync on a timer.
type service struct {
	appConfig *appconfig.AppConfig
	monitor   *devicehid.Monitor
	quit      chan struct{}

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

func NewService(appConfig *appconfig.AppConfig) (*service, error) {
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("service: %s", format)
		log.Infof(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("service: %s", format)
		log.WithError(err).Warnf(format, a...)
	}
	if err := appConfig.Validate(); err != nil {
		return nil, fmt.Errorf("invalid app config: %s", err)
	}

	return &service{
		appConfig: appConfig,
		quit:      make(chan struct{}),
		log:       logFn,
		warn:      warnFn,
	}, nil
}

func (s *service) Start() error {
	info := s.appConfig.BuildInfo()
	s.log("version: %s commit: %s date: %s", info.Version, info.Commit, info.Date)

	loop := s.appConfig.EventLoop()
	loop.Start()
	s.log("started event loop")

	deviceSvc := s.appConfig.DeviceService()
	s.monitor = devicehid.NewMonitor(
		s.appConfig.DeviceTransport(),
		func(connected bool) {
			loop.Post(func() { deviceSvc.HandleConnectionChange(connected) })
		},
	)
	s.monitor.Start()
	s.log("started device monitor")

	syncSvc := s.appConfig.SyncService()
	go s.runSyncTimer(syncSvc.Update)
	s.log("started wallet sync timer")

	return nil
}

func (s *service) Stop() {
	close(s.quit)
	if s.monitor != nil {
		s.monitor.Stop()
	}
	s.appConfig.DeviceTransport().Close()
	s.appConfig.EventLoop().Stop()
	s.appConfig.RepoManager().Close()
	s.log("shutdown")
}

func (s *service) runSyncTimer(update func() bool) {
	interval := s.appConfig.SyncInterval
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.quit:
			return
		case <-ticker.C:
			update()
		}
	}
}
