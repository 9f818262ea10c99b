// Package config handles wallet configuration.
//
// Configuration is split into two categories:
//   - Network identity: which chain the wallet talks to and how its
//     addresses are formatted (SS58 prefix)
//   - Wallet settings: runtime configuration that can vary per install
package config

import (
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/clad-sovereign/clad-mobile/pkg/ss58"
)

// NetworkType identifies the chain the wallet is configured for.
type NetworkType string

const (
	Polkadot NetworkType = "polkadot"
	Kusama   NetworkType = "kusama"
	Dev      NetworkType = "dev"
)

// AddressPrefix returns the SS58 network prefix for address formatting.
func (n NetworkType) AddressPrefix() ss58.NetworkPrefix {
	switch n {
	case Polkadot:
		return ss58.PrefixPolkadot
	case Kusama:
		return ss58.PrefixKusama
	default:
		return ss58.PrefixGeneric
	}
}

// Config holds wallet runtime configuration.
type Config struct {
	// Core
	Network NetworkType `conf:"network"`
	DataDir string      `conf:"datadir"`

	// Node connection
	Node NodeConfig

	// Keystore
	Keystore KeystoreConfig

	// Logging
	Log LogConfig
}

// NodeConfig holds RPC connection settings.
type NodeConfig struct {
	Endpoint             string        `conf:"node.endpoint"`
	CallTimeout          time.Duration `conf:"node.calltimeout"`
	AutoReconnect        bool          `conf:"node.reconnect"`
	MaxReconnectAttempts int           `conf:"node.maxattempts"`
	ReconnectDelay       time.Duration `conf:"node.reconnectdelay"`
}

// KeystoreConfig holds sealed key storage settings.
type KeystoreConfig struct {
	Dir string `conf:"keystore.dir"` // Defaults to <datadir>/<network>/keystore
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `conf:"log.level"`
	File  string `conf:"log.file"`
	JSON  bool   `conf:"log.json"`
}

// DefaultDataDir returns the platform-specific default data directory.
//
//	Linux:   ~/.clad
//	macOS:   ~/Library/Application Support/Clad
//	Windows: %APPDATA%\Clad
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".clad"
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "Clad")
	case "windows":
		appData := os.Getenv("APPDATA")
		if appData != "" {
			return filepath.Join(appData, "Clad")
		}
		return filepath.Join(home, "AppData", "Roaming", "Clad")
	default:
		return filepath.Join(home, ".clad")
	}
}

// NetworkDataDir returns the network-specific data directory.
func (c *Config) NetworkDataDir() string {
	return filepath.Join(c.DataDir, string(c.Network))
}

// AccountsDir returns the accounts database directory.
func (c *Config) AccountsDir() string {
	return filepath.Join(c.NetworkDataDir(), "accounts")
}

// KeystoreDir returns the keystore directory, honoring an explicit override.
func (c *Config) KeystoreDir() string {
	if c.Keystore.Dir != "" {
		return c.Keystore.Dir
	}
	return filepath.Join(c.NetworkDataDir(), "keystore")
}

// LogsDir returns the logs directory.
func (c *Config) LogsDir() string {
	return filepath.Join(c.DataDir, "logs")
}

// ConfigFile returns the config file path.
func (c *Config) ConfigFile() string {
	return filepath.Join(c.DataDir, "clad.conf")
}
