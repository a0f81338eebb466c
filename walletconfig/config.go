// Package walletconfig loads the configuration needed to embed a
// walletsync.Engine: daemon address, auto-reconnect policy, log levels, and
// the data directory its storage.WalletDB opens under.
package walletconfig

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/dcrd/chaincfg/v3"
	flags "github.com/jessevdk/go-flags"

	"github.com/duskline/duskwallet/build"
	"github.com/duskline/duskwallet/walletcrypto"
)

const (
	defaultConfigFilename = "duskwallet.conf"
	defaultDataDirname    = "data"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "duskwallet.log"
	defaultLogLevel       = "info"
	defaultMaxLogSizeMB   = 10
	defaultMaxLogRolls    = 3
)

// Config is the full set of knobs needed to drive a walletsync.Engine
// against a real daemon and a real on-disk store.
type Config struct {
	ConfigFile string `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir    string `short:"b" long:"datadir" description:"Directory to store wallet data"`
	LogDir     string `long:"logdir" description:"Directory to log output"`

	DaemonHost string `long:"daemon" description:"host:port of the daemon's RPC websocket"`
	DaemonUser string `long:"daemonuser" description:"Username for daemon RPC authentication"`
	DaemonPass string `long:"daemonpass" description:"Password for daemon RPC authentication"`
	DisableTLS bool   `long:"notls" description:"Disable TLS when dialing the daemon"`

	AutoReconnect bool `long:"autoreconnect" description:"Reconnect automatically when the daemon connection drops"`

	Network string `long:"network" description:"mainnet, testnet, or devnet" default:"mainnet"`

	DebugLevel string `long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical, off}"`

	netParams *chaincfg.Params
}

// DefaultConfig returns a Config carrying the same defaults the teacher's
// config loader applies before flag/file parsing overrides them.
func DefaultConfig() Config {
	return Config{
		DataDir:    defaultDataDirname,
		LogDir:     defaultLogDirname,
		DebugLevel: defaultLogLevel,
		Network:    "mainnet",
	}
}

// LoadConfig parses command-line arguments, falling back to a config file
// (INI syntax) when one is present, mirroring the two-pass
// flags.NewParser/flags.IniParse convention the teacher's config loaders
// use.
func LoadConfig() (*Config, error) {
	cfg := DefaultConfig()

	preCfg := cfg
	preParser := flags.NewParser(&preCfg, flags.Default)
	if _, err := preParser.Parse(); err != nil {
		return nil, err
	}

	if preCfg.ConfigFile != "" {
		if err := flags.NewIniParser(flags.NewParser(&cfg, flags.Default)).ParseFile(preCfg.ConfigFile); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("walletconfig: parsing config file: %w", err)
			}
		}
	}

	parser := flags.NewParser(&cfg, flags.Default)
	if _, err := parser.Parse(); err != nil {
		return nil, err
	}

	netParams, network, err := resolveNetwork(cfg.Network)
	if err != nil {
		return nil, err
	}
	cfg.netParams = netParams
	_ = network

	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return nil, fmt.Errorf("walletconfig: creating data directory: %w", err)
	}
	if err := os.MkdirAll(cfg.LogDir, 0700); err != nil {
		return nil, fmt.Errorf("walletconfig: creating log directory: %w", err)
	}

	return &cfg, nil
}

func resolveNetwork(name string) (*chaincfg.Params, walletcrypto.Network, error) {
	switch name {
	case "mainnet":
		return chaincfg.MainNetParams(), walletcrypto.Mainnet, nil
	case "testnet":
		return chaincfg.TestNet3Params(), walletcrypto.Testnet, nil
	case "devnet", "simnet":
		return chaincfg.SimNetParams(), walletcrypto.Devnet, nil
	default:
		return nil, 0, fmt.Errorf("walletconfig: unknown network %q", name)
	}
}

// NetParams returns the chain parameters resolved from Config.Network.
func (c *Config) NetParams() *chaincfg.Params {
	return c.netParams
}

// WalletNetwork returns the walletcrypto.Network discriminant resolved
// from Config.Network.
func (c *Config) WalletNetwork() walletcrypto.Network {
	_, network, _ := resolveNetwork(c.Network)
	return network
}

// DBPath returns the path storage.Open should use, inside DataDir and
// scoped by network the way the teacher scopes per-network wallet data.
func (c *Config) DBPath() string {
	netName := "mainnet"
	if c.netParams != nil {
		netName = c.netParams.Name
	}
	return filepath.Join(c.DataDir, netName, "wallet.db")
}

// LogFilePath returns the rotated log file path InitLogRotator should use.
func (c *Config) LogFilePath() string {
	return filepath.Join(c.LogDir, defaultLogFilename)
}

// InitLogRotator wires a build.RotatingLogWriter's rotating file at this
// config's LogFilePath, using the teacher's default roll thresholds.
func (c *Config) InitLogRotator(w *build.RotatingLogWriter) error {
	return w.InitLogRotator(c.LogFilePath(), defaultMaxLogSizeMB, defaultMaxLogRolls)
}
