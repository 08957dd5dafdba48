package config

import (
	_ "embed"
)

//go:embed defaults/lockstep.yaml
var defaultYAML []byte

//go:embed defaults/lockstep.schema.json
var schemaJSON []byte

// Default returns the built-in configuration. It matches the embedded
// defaults/lockstep.yaml.
func Default() Config {
	return Config{
		Network: NetworkConfig{
			LatencyMs: 50,
			JitterMs:  10,
			Loss:      0.05,
		},
		Simulation: SimulationConfig{
			Ticks:         200,
			FramesPerTick: 4,
			Bots:          2,
			Seed:          1,
		},
		Server: ServerConfig{
			Addr:               ":8080",
			SSHAddr:            ":2222",
			HostKeyPath:        ".ssh/lockstep_ed25519",
			DefaultGame:        "tracker",
			MaxClients:         16,
			SendQueue:          64,
			EmptyTimeoutSec:    120,
			CleanupPeriodSec:   30,
			DatabasePath:       "lockstep.db",
			ShutdownTimeoutSec: 5,
		},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  50,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// DefaultYAML returns the embedded default configuration file.
func DefaultYAML() []byte {
	return defaultYAML
}

// SchemaJSON returns the embedded JSON schema every file is checked against.
func SchemaJSON() []byte {
	return schemaJSON
}
