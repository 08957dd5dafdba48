// Package sim runs a lockstep server and one predicting client against each
// other over a simulated network, on a virtual clock.
//
// Every message crosses the wire codec, so a scenario exercises the same
// encoding a real deployment does.
package sim

import (
	"errors"
	"fmt"
	"time"

	"github.com/vovakirdan/lockstep/internal/lockstep"
)

// Model is everything the harness needs to know about a world type.
type Model[P, I lockstep.Hashable, T any] struct {
	NewWorld func() lockstep.World[P, I, T]
	// Spawn returns the initial state of a joining player.
	Spawn func(id lockstep.PlayerID) P
	// Brain picks the input of player id given the state it can see.
	Brain func(id lockstep.PlayerID, state *lockstep.Lockstep[P, I, T]) I
	// Position projects a player onto one axis for error figures and lanes.
	Position func(p P) float32
	Min, Max float32
}

// Scenario describes the network and the length of a run.
type Scenario struct {
	Ticks         int
	FramesPerTick int
	Latency       time.Duration
	Jitter        time.Duration
	// Loss is the probability a request is dropped. Updates are never lost.
	Loss float64
	// Reliable sends requests in order without loss, one input per request.
	Reliable bool
	Bots     int
	Seed     uint64
	// Warmup is how many ticks after the client loads are excluded from the
	// error figures. Zero means the lag compensation window.
	Warmup int
}

func DefaultScenario() Scenario {
	return Scenario{
		Ticks:         100,
		FramesPerTick: 4,
		Latency:       50 * time.Millisecond,
		Seed:          1,
	}
}

var ErrInvalidScenario = errors.New("sim: invalid scenario")

func (s Scenario) Validate() error {
	switch {
	case s.Ticks < 0:
		return fmt.Errorf("%w: ticks %d", ErrInvalidScenario, s.Ticks)
	case s.FramesPerTick < 1:
		return fmt.Errorf("%w: frames per tick %d", ErrInvalidScenario, s.FramesPerTick)
	case s.Latency < 0 || s.Jitter < 0:
		return fmt.Errorf("%w: negative latency", ErrInvalidScenario)
	case s.Loss < 0 || s.Loss >= 1:
		return fmt.Errorf("%w: loss %v", ErrInvalidScenario, s.Loss)
	case s.Bots < 0 || s.Bots > lockstep.ClientLimit:
		return fmt.Errorf("%w: bots %d", ErrInvalidScenario, s.Bots)
	}
	return nil
}
