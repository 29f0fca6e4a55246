package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/spf13/viper"

	path "github.com/shiftdevices/bitboxd/pkg/wallet/derivation-path"
)

const (
	// DatadirKey is the key to customize the bitboxd datadir.
	DatadirKey = "DATADIR"
	// DatabaseTypeKey is the key to customize the type of database to use.
	DatabaseTypeKey = "DATABASE_TYPE"
	// NetworkKey is the key to customize the network the shared wallet
	// lives on.
	NetworkKey = "NETWORK"
	// LogLevelKey is the key to customize the log level to catch more
	// specific or more high level logs.
	LogLevelKey = "LOG_LEVEL"
	// WalletServiceURLKey is the key to customize the wallet coordination
	// service endpoint.
	WalletServiceURLKey = "WALLET_SERVICE_URL"
	// SingleKeyPathKey is the key to use a custom base derivation path for
	// the single-signer wallet.
	SingleKeyPathKey = "SINGLE_KEY_PATH"
	// MultisigKeyPathKey is the key to use a custom base derivation path
	// for the shared multisig wallet.
	MultisigKeyPathKey = "MULTISIG_KEY_PATH"
	// ParticipantNameKey is the key to customize the copayer name used
	// when joining a shared wallet.
	ParticipantNameKey = "PARTICIPANT_NAME"
	// SyncIntervalKey is the key to customize the seconds between two
	// periodic wallet syncs.
	SyncIntervalKey = "SYNC_INTERVAL_IN_SECONDS"

	// DbLocation is the folder inside the datadir containing db files.
	DbLocation = "db"

	networkMainnet = "mainnet"
	networkTestnet = "testnet"
)

var (
	vip *viper.Viper

	defaultDatadir          = btcutil.AppDataDir("bitboxd", false)
	defaultDbType           = "badger"
	defaultLogLevel         = 4
	defaultNetwork          = networkTestnet
	defaultWalletServiceURL = "https://bws.bitpay.com/bws/api"
	defaultSingleKeyPath    = "m/200'"
	defaultMultisigKeyPath  = "m/131'"
	defaultParticipantName  = "Digital Bitbox"
	defaultSyncInterval     = 30

	supportedNetworks = map[string]*chaincfg.Params{
		networkMainnet: &chaincfg.MainNetParams,
		networkTestnet: &chaincfg.TestNet3Params,
	}
	SupportedDbs = supportedType{
		"badger":   {},
		"inmemory": {},
	}
)

func init() {
	vip = viper.New()
	vip.SetEnvPrefix("BITBOX")
	vip.AutomaticEnv()

	vip.SetDefault(DatadirKey, defaultDatadir)
	vip.SetDefault(DatabaseTypeKey, defaultDbType)
	vip.SetDefault(NetworkKey, defaultNetwork)
	vip.SetDefault(LogLevelKey, defaultLogLevel)
	vip.SetDefault(WalletServiceURLKey, defaultWalletServiceURL)
	vip.SetDefault(SingleKeyPathKey, defaultSingleKeyPath)
	vip.SetDefault(MultisigKeyPathKey, defaultMultisigKeyPath)
	vip.SetDefault(ParticipantNameKey, defaultParticipantName)
	vip.SetDefault(SyncIntervalKey, defaultSyncInterval)

	if err := validate(); err != nil {
		log.Fatalf("invalid config: %s", err)
	}

	if err := initDatadir(); err != nil {
		log.Fatalf("config: error while creating datadir: %s", err)
	}
}

func validate() error {
	datadir := GetString(DatadirKey)
	if len(datadir) <= 0 {
		return fmt.Errorf("datadir must not be null")
	}

	net := GetString(NetworkKey)
	if len(net) == 0 {
		return fmt.Errorf("network must not be null")
	}
	if _, ok := supportedNetworks[net]; !ok {
		nets := make([]string, 0, len(supportedNetworks))
		for net := range supportedNetworks {
			nets = append(nets, net)
		}
		return fmt.Errorf("unknown network, must be one of: %v", nets)
	}

	dbType := GetString(DatabaseTypeKey)
	if _, ok := SupportedDbs[dbType]; !ok {
		return fmt.Errorf("unsupported database type, must be one of %s", SupportedDbs)
	}

	if url := GetString(WalletServiceURLKey); len(url) == 0 {
		return fmt.Errorf("wallet service url must not be null")
	}

	if _, err := path.ParseBaseKeyPath(GetString(SingleKeyPathKey)); err != nil {
		return fmt.Errorf("invalid single-signer key path: %w", err)
	}
	if _, err := path.ParseBaseKeyPath(GetString(MultisigKeyPathKey)); err != nil {
		return fmt.Errorf("invalid multisig key path: %w", err)
	}

	if interval := GetInt(SyncIntervalKey); interval <= 0 {
		return fmt.Errorf("sync interval must be a positive number of seconds")
	}

	return nil
}

func GetDatadir() string {
	return filepath.Join(GetString(DatadirKey), GetString(NetworkKey))
}

// GetNetwork returns the chain parameters of the configured wallet network.
func GetNetwork() *chaincfg.Params {
	return supportedNetworks[GetString(NetworkKey)]
}

func GetString(key string) string {
	return vip.GetString(key)
}

func GetInt(key string) int {
	return vip.GetInt(key)
}

func GetBool(key string) bool {
	return vip.GetBool(key)
}

func Set(key string, val interface{}) {
	vip.Set(key, val)
}

func IsSet(key string) bool {
	return vip.IsSet(key)
}

func initDatadir() error {
	datadir := GetDatadir()
	return makeDirectoryIfNotExists(filepath.Join(datadir, DbLocation))
}

func makeDirectoryIfNotExists(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return os.MkdirAll(path, os.ModeDir|0755)
	}
	return nil
}

type supportedType map[string]struct{}

func (t supportedType) String() string {
	types := make([]string, 0, len(t))
	for tt := range t {
		types = append(types, tt)
	}
	return strings.Join(types, " | ")
}
