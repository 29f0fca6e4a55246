package interfaces

import (
	"fmt"

	appconfig "github.com/shiftdevices/bitboxd/internal/app-config"
	"github.com/shiftdevices/bitboxd/internal/interfaces/daemon"
	"github.com/shiftdevices/bitboxd/internal/interfaces/terminal"
)

// Service interface defines the methods that every kind of interface, whether
// terminal, REST, or whatever must be compliant with.
type Service interface {
	Start() error
	Stop()
}

type ServiceManager struct {
	Service
}

// NewDaemonServiceManager builds the headless agent with the terminal UI
// boundary. An AppConfig with a custom Notifier or Prompter keeps them.
func NewDaemonServiceManager(
	appConfig *appconfig.AppConfig,
) (*ServiceManager, error) {
	if appConfig.Notifier == nil {
		appConfig.Notifier = terminal.NewNotifier()
	}
	if appConfig.Prompter == nil {
		appConfig.Prompter = terminal.NewPrompter()
	}

	svc, err := daemon.NewService(appConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initalize daemon service: %s", err)
	}
	return &ServiceManager{svc}, nil
}
