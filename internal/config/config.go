// Package config provides YAML-based configuration loading for the engine,
// the simulated network, the server and logging.
package config

import (
	"time"

	"github.com/vovakirdan/lockstep/internal/lockstep"
	"github.com/vovakirdan/lockstep/internal/sim"
)

// Config is the whole configuration file.
type Config struct {
	Engine     EngineConfig     `yaml:"engine"`
	Network    NetworkConfig    `yaml:"network"`
	Simulation SimulationConfig `yaml:"simulation"`
	Server     ServerConfig     `yaml:"server"`
	Log        LogConfig        `yaml:"log"`
}

// EngineConfig overrides a world's engine constants. Zero fields keep the
// world's own value.
type EngineConfig struct {
	TPS                      uint32 `yaml:"tps"`
	InputsPerEfficientPacket int    `yaml:"inputs_per_efficient_packet"`
	LagCompensation          int    `yaml:"lag_compensation"`
	MaxPrediction            int    `yaml:"max_prediction"`
	BufferedTicks            int    `yaml:"buffered_ticks"`
	DesyncDiagnostics        bool   `yaml:"desync_diagnostics"`
}

// NetworkConfig defines the simulated link used by sim and watch.
type NetworkConfig struct {
	LatencyMs int     `yaml:"latency_ms"`
	JitterMs  int     `yaml:"jitter_ms"`
	Loss      float64 `yaml:"loss"` // 0.0 = none, 0.5 = half of all requests
	Reliable  bool    `yaml:"reliable"`
}

// SimulationConfig defines the length and population of a simulated run.
type SimulationConfig struct {
	Ticks         int    `yaml:"ticks"`
	FramesPerTick int    `yaml:"frames_per_tick"`
	Bots          int    `yaml:"bots"`
	Seed          uint64 `yaml:"seed"`
	Warmup        int    `yaml:"warmup"`
}

// ServerConfig defines the websocket and SSH listeners.
type ServerConfig struct {
	Addr               string `yaml:"addr"`
	SSHAddr            string `yaml:"ssh_addr"`
	HostKeyPath        string `yaml:"host_key_path"`
	DefaultGame        string `yaml:"default_game"`
	MaxClients         int    `yaml:"max_clients"`
	SendQueue          int    `yaml:"send_queue"`
	EmptyTimeoutSec    int    `yaml:"empty_timeout_sec"`
	CleanupPeriodSec   int    `yaml:"cleanup_period_sec"`
	DatabasePath       string `yaml:"database_path"`
	ShutdownTimeoutSec int    `yaml:"shutdown_timeout_sec"`
}

// LogConfig defines where and how much to log.
type LogConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	JSON       bool   `yaml:"json"`
}

// Apply overlays the non-zero fields onto base. A new tick rate re-derives
// every buffer size before the explicit overrides are applied.
func (e EngineConfig) Apply(base lockstep.Config) lockstep.Config {
	cfg := base
	if e.TPS != 0 && e.TPS != base.TPS {
		cfg = lockstep.DefaultConfig(e.TPS)
		cfg.DesyncDiagnostics = base.DesyncDiagnostics
	}
	if e.InputsPerEfficientPacket != 0 {
		cfg.InputsPerEfficientPacket = e.InputsPerEfficientPacket
	}
	if e.LagCompensation != 0 {
		cfg.LagCompensation = e.LagCompensation
	}
	if e.MaxPrediction != 0 {
		cfg.MaxPrediction = e.MaxPrediction
	}
	if e.BufferedTicks != 0 {
		cfg.BufferedTicks = e.BufferedTicks
	}
	if e.DesyncDiagnostics {
		cfg.DesyncDiagnostics = true
	}
	return cfg
}

// Scenario combines the network and simulation sections.
func (c Config) Scenario() sim.Scenario {
	sc := sim.DefaultScenario()
	if c.Simulation.Ticks != 0 {
		sc.Ticks = c.Simulation.Ticks
	}
	if c.Simulation.FramesPerTick != 0 {
		sc.FramesPerTick = c.Simulation.FramesPerTick
	}
	if c.Simulation.Seed != 0 {
		sc.Seed = c.Simulation.Seed
	}
	sc.Bots = c.Simulation.Bots
	sc.Warmup = c.Simulation.Warmup
	sc.Latency = time.Duration(c.Network.LatencyMs) * time.Millisecond
	sc.Jitter = time.Duration(c.Network.JitterMs) * time.Millisecond
	sc.Loss = c.Network.Loss
	sc.Reliable = c.Network.Reliable
	return sc
}

// EmptyTimeout is how long an arena may stay empty before it is stopped.
func (s ServerConfig) EmptyTimeout() time.Duration {
	return time.Duration(s.EmptyTimeoutSec) * time.Second
}

func (s ServerConfig) CleanupPeriod() time.Duration {
	return time.Duration(s.CleanupPeriodSec) * time.Second
}

func (s ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(s.ShutdownTimeoutSec) * time.Second
}
