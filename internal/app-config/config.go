package appconfig

import (
	"context"
	"fmt"
	"time"

	"github.com/btcsuite/btcd/chaincfg"
	log "github.com/sirupsen/logrus"

	"github.com/shiftdevices/bitboxd/internal/config"
	"github.com/shiftdevices/bitboxd/internal/core/application"
	"github.com/shiftdevices/bitboxd/internal/core/domain"
	"github.com/shiftdevices/bitboxd/internal/core/ports"
	devicehid "github.com/shiftdevices/bitboxd/internal/infrastructure/device/hid"
	dbbadger "github.com/shiftdevices/bitboxd/internal/infrastructure/storage/db/badger"
	"github.com/shiftdevices/bitboxd/internal/infrastructure/storage/db/inmemory"
	path "github.com/shiftdevices/bitboxd/pkg/wallet/derivation-path"

	copayclient "github.com/shiftdevices/bitboxd/internal/infrastructure/copay"
)

// Local data keys the two wallet sessions are filed under. The key, not
// the remote wallet name, namespaces everything persisted locally.
const (
	SingleWalletDataKey   = "copay_single"
	MultisigWalletDataKey = "copay_multisig"
)

// AppConfig is the struct holding all configuration options for every
// application service (device, pairing, signing and sync). This data
// structure acts also as a factory of the mentioned application services
// and the portable services used by them.
// Public config args:
//   - Network - (required) The wallet network (mainnet, testnet).
//   - WalletServiceURL - (required) The wallet coordination service endpoint.
//   - SingleKeyPath - (required) Base derivation path of the single-signer wallet.
//   - MultisigKeyPath - (required) Base derivation path of the shared multisig wallet.
//   - ParticipantName - (required) Copayer name used when joining a shared wallet.
//   - SyncInterval - (required) Delay between two periodic wallet syncs.
//   - RepoManagerType - (required) One of the supported repository manager types.
//   - RepoManagerConfig - (optional) Custom config args for the repository manager based on its type.
//   - Notifier / Prompter - (required) The UI boundary implementations.
type AppConfig struct {
	Version string
	Commit  string
	Date    string

	Network          *chaincfg.Params
	WalletServiceURL string
	SingleKeyPath    string
	MultisigKeyPath  string
	ParticipantName  string
	SyncInterval     time.Duration

	RepoManagerType   string
	RepoManagerConfig interface{}

	Notifier ports.Notifier
	Prompter ports.Prompter

	rm          ports.RepoManager
	transport   *devicehid.Transport
	copaySvc    ports.CopayService
	loop        *application.EventLoop
	credentials *application.SessionCredentials
	dispatcher  *application.CommandDispatcher
	router      *application.ResponseRouter
	sessions    *application.SessionManager
	deviceSvc   *application.DeviceService
	pairingSvc  *application.PairingService
	signingSvc  *application.SigningService
	syncSvc     *application.SyncService
}

func (c *AppConfig) Validate() error {
	if c.Network == nil {
		return fmt.Errorf("missing network")
	}
	if len(c.WalletServiceURL) == 0 {
		return fmt.Errorf("missing wallet service url")
	}
	if _, err := path.ParseBaseKeyPath(c.SingleKeyPath); err != nil {
		return fmt.Errorf("invalid single-signer key path: %w", err)
	}
	if _, err := path.ParseBaseKeyPath(c.MultisigKeyPath); err != nil {
		return fmt.Errorf("invalid multisig key path: %w", err)
	}
	if len(c.ParticipantName) == 0 {
		return fmt.Errorf("missing participant name")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("missing sync interval")
	}
	if len(c.RepoManagerType) == 0 {
		return fmt.Errorf("missing repo manager type")
	}
	if _, ok := config.SupportedDbs[c.RepoManagerType]; !ok {
		return fmt.Errorf(
			"repo manager type not supported, must be one of: %s",
			config.SupportedDbs,
		)
	}
	if c.Notifier == nil {
		return fmt.Errorf("missing notifier")
	}
	if c.Prompter == nil {
		return fmt.Errorf("missing prompter")
	}
	if _, err := c.repoManager(); err != nil {
		return err
	}
	if _, err := c.sessionManager(); err != nil {
		return err
	}
	return nil
}

func (c *AppConfig) RepoManager() ports.RepoManager {
	rm, _ := c.repoManager()
	return rm
}

func (c *AppConfig) DeviceTransport() *devicehid.Transport {
	if c.transport == nil {
		c.transport = devicehid.NewTransport()
	}
	return c.transport
}

func (c *AppConfig) CopayService() ports.CopayService {
	if c.copaySvc == nil {
		c.copaySvc = copayclient.NewService(c.WalletServiceURL, c.Network)
	}
	return c.copaySvc
}

func (c *AppConfig) CommandDispatcher() *application.CommandDispatcher {
	return c.commandDispatcher()
}

func (c *AppConfig) SessionManager() *application.SessionManager {
	sessions, _ := c.sessionManager()
	return sessions
}

func (c *AppConfig) EventLoop() *application.EventLoop {
	if c.loop == nil {
		c.loop = application.NewEventLoop()
	}
	return c.loop
}

func (c *AppConfig) DeviceService() *application.DeviceService {
	return c.deviceService()
}

func (c *AppConfig) PairingService() *application.PairingService {
	return c.pairingService()
}

func (c *AppConfig) SigningService() *application.SigningService {
	return c.signingService()
}

func (c *AppConfig) SyncService() *application.SyncService {
	return c.syncService()
}

func (c *AppConfig) repoManager() (ports.RepoManager, error) {
	if c.rm != nil {
		return c.rm, nil
	}

	switch c.RepoManagerType {
	case "inmemory":
		c.rm = inmemory.NewRepoManager()
		return c.rm, nil
	case "badger":
		if c.RepoManagerConfig == nil {
			return nil, fmt.Errorf("missing repo manager config args")
		}
		datadir, ok := c.RepoManagerConfig.(string)
		if !ok {
			return nil, fmt.Errorf("invalid repo manager config type, must be string")
		}
		rm, err := dbbadger.NewRepoManager(datadir, log.New())
		if err != nil {
			return nil, err
		}
		c.rm = rm
		return c.rm, nil
	default:
		return nil, fmt.Errorf("unknown repo manager type")
	}
}

// sessionManager loads the persisted wallet sessions, creating unseeded
// ones on first run.
func (c *AppConfig) sessionManager() (*application.SessionManager, error) {
	if c.sessions != nil {
		return c.sessions, nil
	}

	rm, err := c.repoManager()
	if err != nil {
		return nil, err
	}

	keys := []struct {
		localDataKey string
		baseKeyPath  string
	}{
		{SingleWalletDataKey, c.SingleKeyPath},
		{MultisigWalletDataKey, c.MultisigKeyPath},
	}

	ctx := context.Background()
	sessions := make([]*domain.MultisigSession, 0, len(keys))
	for _, key := range keys {
		session, err := rm.SessionRepository().GetSession(ctx, key.localDataKey)
		if err != nil {
			return nil, fmt.Errorf("loading session %s: %w", key.localDataKey, err)
		}
		if session == nil {
			session = domain.NewMultisigSession(
				key.localDataKey, c.ParticipantName, key.baseKeyPath,
			)
		}
		sessions = append(sessions, session)
	}

	c.sessions = application.NewSessionManager(sessions...)
	return c.sessions, nil
}

func (c *AppConfig) sessionCredentials() *application.SessionCredentials {
	if c.credentials == nil {
		c.credentials = application.NewSessionCredentials()
	}
	return c.credentials
}

func (c *AppConfig) commandDispatcher() *application.CommandDispatcher {
	if c.dispatcher == nil {
		c.dispatcher = application.NewCommandDispatcher(
			c.DeviceTransport(), c.sessionCredentials(), c.Notifier, c.EventLoop(),
		)
	}
	return c.dispatcher
}

func (c *AppConfig) responseRouter() *application.ResponseRouter {
	if c.router == nil {
		c.router = application.NewResponseRouter(c.Notifier, c.sessionCredentials())
	}
	return c.router
}

func (c *AppConfig) deviceService() *application.DeviceService {
	if c.deviceSvc != nil {
		return c.deviceSvc
	}

	rm, _ := c.repoManager()
	sessions, _ := c.sessionManager()
	c.deviceSvc = application.NewDeviceService(
		c.commandDispatcher(), c.responseRouter(), c.sessionCredentials(),
		sessions, rm, c.Notifier, c.Prompter,
	)
	return c.deviceSvc
}

func (c *AppConfig) pairingService() *application.PairingService {
	if c.pairingSvc != nil {
		return c.pairingSvc
	}

	rm, _ := c.repoManager()
	sessions, _ := c.sessionManager()
	c.pairingSvc = application.NewPairingService(
		c.commandDispatcher(), c.responseRouter(), sessions, rm,
		c.CopayService(), c.Notifier, c.Prompter, c.EventLoop(),
		&chaincfg.MainNetParams, c.Network,
	)
	c.pairingSvc.SetJoinedHook(func() { c.syncService().Update() })
	return c.pairingSvc
}

func (c *AppConfig) signingService() *application.SigningService {
	if c.signingSvc != nil {
		return c.signingSvc
	}

	sessions, _ := c.sessionManager()
	c.signingSvc = application.NewSigningService(
		c.commandDispatcher(), sessions, c.CopayService(), c.syncService(),
		c.Notifier, c.Prompter, c.EventLoop(), c.Network,
		application.MultisigWalletIndex,
	)
	return c.signingSvc
}

func (c *AppConfig) syncService() *application.SyncService {
	if c.syncSvc != nil {
		return c.syncSvc
	}

	sessions, _ := c.sessionManager()
	c.syncSvc = application.NewSyncService(
		sessions, c.CopayService(), c.Notifier, c.EventLoop(),
		application.MultisigWalletIndex,
	)
	c.syncSvc.SetSyncedHook(func() { c.signingService().RefreshDisplay() })
	return c.syncSvc
}

func (c *AppConfig) BuildInfo() application.BuildInfo {
	version := "dev"
	if c.Version != "" {
		version = c.Version
	}
	commit := "none"
	if c.Commit != "" {
		commit = c.Commit
	}
	date := "unknown"
	if c.Date != "" {
		date = c.Date
	}
	return application.BuildInfo{
		Version: version,
		Commit:  commit,
		Date:    date,
	}
}
