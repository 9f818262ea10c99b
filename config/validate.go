package config

import (
	"fmt"
	"net/url"
)

// Validate checks runtime wallet config for obvious operator mistakes.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	switch cfg.Network {
	case Polkadot, Kusama, Dev:
	default:
		return fmt.Errorf("network must be %q, %q, or %q", Polkadot, Kusama, Dev)
	}

	if cfg.Node.Endpoint != "" {
		u, err := url.Parse(cfg.Node.Endpoint)
		if err != nil {
			return fmt.Errorf("node.endpoint: %w", err)
		}
		if u.Scheme != "ws" && u.Scheme != "wss" {
			return fmt.Errorf("node.endpoint must use ws:// or wss://, got %q", u.Scheme)
		}
		if u.Host == "" {
			return fmt.Errorf("node.endpoint has no host")
		}
	}

	if cfg.Node.CallTimeout < 0 {
		return fmt.Errorf("node.calltimeout must not be negative")
	}
	if cfg.Node.MaxReconnectAttempts < 0 {
		return fmt.Errorf("node.maxattempts must not be negative")
	}
	if cfg.Node.ReconnectDelay < 0 {
		return fmt.Errorf("node.reconnectdelay must not be negative")
	}

	return nil
}
