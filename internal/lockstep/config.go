package lockstep

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidConfig is returned when a world's Config violates a bound.
var ErrInvalidConfig = errors.New("lockstep: invalid config")

// Config holds the per-world constants that size every buffer in the engine.
type Config struct {
	// TPS is the number of ticks per second.
	TPS uint32
	// InputsPerEfficientPacket is the sliding window length sent over
	// unreliable transport.
	InputsPerEfficientPacket int
	// LagCompensation is the depth, in ticks, of retained history.
	LagCompensation int
	// MaxPrediction bounds the client's unacknowledged input queue.
	MaxPrediction int
	// BufferedTicks bounds the server's per-client reorder buffer.
	BufferedTicks int
	// DesyncDiagnostics makes the server attach a full snapshot to every
	// tick so clients can diff their state when checksums disagree.
	DesyncDiagnostics bool
}

// DefaultConfig derives the buffer sizes from the tick rate.
func DefaultConfig(tps uint32) Config {
	lag := int((tps+1)/2) + 2
	return Config{
		TPS:                      tps,
		InputsPerEfficientPacket: 6,
		LagCompensation:          lag,
		MaxPrediction:            lag + 2,
		BufferedTicks:            lag + 2,
	}
}

// Validate checks that every bound is usable.
func (c Config) Validate() error {
	switch {
	case c.TPS == 0:
		return fmt.Errorf("%w: tps must be positive", ErrInvalidConfig)
	case c.InputsPerEfficientPacket < 1:
		return fmt.Errorf("%w: inputs per efficient packet must be at least 1", ErrInvalidConfig)
	case c.LagCompensation < 1:
		return fmt.Errorf("%w: lag compensation must be at least 1", ErrInvalidConfig)
	case c.MaxPrediction < 1:
		return fmt.Errorf("%w: max prediction must be at least 1", ErrInvalidConfig)
	case c.BufferedTicks < 1:
		return fmt.Errorf("%w: buffered ticks must be at least 1", ErrInvalidConfig)
	}
	return nil
}

// TickPeriod is the wall-clock duration of one tick.
func (c Config) TickPeriod() time.Duration {
	return time.Second / time.Duration(c.TPS)
}

// TickSeconds is TickPeriod in seconds.
func (c Config) TickSeconds() float32 {
	return 1 / float32(c.TPS)
}

// MaxLatency is the largest latency, in ticks, that lag compensation can
// rewind.
func (c Config) MaxLatency() int {
	return c.LagCompensation - 1
}
