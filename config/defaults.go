package config

import "time"

// DefaultPolkadot returns the default wallet configuration for Polkadot.
func DefaultPolkadot() *Config {
	return &Config{
		Network: Polkadot,
		DataDir: DefaultDataDir(),
		Node: NodeConfig{
			Endpoint:             "wss://rpc.polkadot.io",
			CallTimeout:          30 * time.Second,
			AutoReconnect:        true,
			MaxReconnectAttempts: 5,
			ReconnectDelay:       2 * time.Second,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  false,
		},
	}
}

// DefaultKusama returns the default wallet configuration for Kusama.
func DefaultKusama() *Config {
	cfg := DefaultPolkadot()
	cfg.Network = Kusama
	cfg.Node.Endpoint = "wss://kusama-rpc.polkadot.io"
	return cfg
}

// DefaultDev returns the default configuration for a local development node.
func DefaultDev() *Config {
	cfg := DefaultPolkadot()
	cfg.Network = Dev
	cfg.Node.Endpoint = "ws://127.0.0.1:9944"
	cfg.Log.Level = "debug"
	return cfg
}

// Default returns the default configuration for the given network.
func Default(network NetworkType) *Config {
	switch network {
	case Kusama:
		return DefaultKusama()
	case Dev:
		return DefaultDev()
	default:
		return DefaultPolkadot()
	}
}
