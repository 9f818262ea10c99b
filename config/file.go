package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// LoadFile loads wallet configuration from a .conf file.
// Format: key = value (one per line, # for comments)
func LoadFile(path string) (map[string]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return make(map[string]string), nil
		}
		return nil, err
	}
	defer file.Close()

	values := make(map[string]string)
	scanner := bufio.NewScanner(file)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse key = value
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("line %d: invalid format (expected key = value)", lineNum)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		// Remove quotes if present
		if len(value) >= 2 {
			if (value[0] == '"' && value[len(value)-1] == '"') ||
				(value[0] == '\'' && value[len(value)-1] == '\'') {
				value = value[1 : len(value)-1]
			}
		}

		values[key] = value
	}

	return values, scanner.Err()
}

// ApplyFileConfig applies file configuration to a Config struct.
func ApplyFileConfig(cfg *Config, values map[string]string) error {
	for key, value := range values {
		if err := setConfigValue(cfg, key, value); err != nil {
			return fmt.Errorf("config key %q: %w", key, err)
		}
	}
	return nil
}

// setConfigValue sets a config value by key.
func setConfigValue(cfg *Config, key, value string) error {
	switch key {
	// Core
	case "network":
		cfg.Network = NetworkType(value)
	case "datadir":
		cfg.DataDir = value

	// Node connection
	case "node.endpoint", "node":
		cfg.Node.Endpoint = value
	case "node.calltimeout":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Node.CallTimeout = d
	case "node.reconnect":
		cfg.Node.AutoReconnect = parseBool(value)
	case "node.maxattempts":
		n, err := strconv.Atoi(value)
		if err != nil {
			return err
		}
		cfg.Node.MaxReconnectAttempts = n
	case "node.reconnectdelay":
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		cfg.Node.ReconnectDelay = d

	// Keystore
	case "keystore.dir":
		cfg.Keystore.Dir = value

	// Logging
	case "log.level":
		cfg.Log.Level = value
	case "log.file":
		cfg.Log.File = value
	case "log.json":
		cfg.Log.JSON = parseBool(value)

	default:
		// Unknown keys are ignored
	}
	return nil
}

// parseBool parses a boolean value.
func parseBool(s string) bool {
	s = strings.ToLower(s)
	return s == "true" || s == "1" || s == "yes" || s == "on"
}

// WriteDefaultConfig writes a default wallet configuration file.
func WriteDefaultConfig(path string, network NetworkType) error {
	content := `# Clad Wallet Configuration

# Network: polkadot, kusama, or dev
network = ` + string(network) + `

# Data directory (default: ~/.clad)
# datadir = ~/.clad

# ============================================================================
# Node Connection
# ============================================================================

node.endpoint = ` + Default(network).Node.Endpoint + `

# RPC call deadline when the caller sets none
node.calltimeout = 30s

# Reconnect automatically after unexpected drops
node.reconnect = true
node.maxattempts = 5
node.reconnectdelay = 2s

# ============================================================================
# Keystore
# ============================================================================

# Sealed key directory (default: <datadir>/<network>/keystore)
# keystore.dir =

# ============================================================================
# Logging
# ============================================================================

log.level = info
# log.file =
log.json = false
`
	return os.WriteFile(path, []byte(content), 0644)
}
