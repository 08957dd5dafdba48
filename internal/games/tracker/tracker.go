// Package tracker is the smallest useful lockstep world: every player owns a
// number that chases the target in its input at bounded speed.
package tracker

import (
	"math"

	"github.com/vovakirdan/lockstep/internal/checksum"
	"github.com/vovakirdan/lockstep/internal/lockstep"
	"github.com/vovakirdan/lockstep/internal/registry"
	"github.com/vovakirdan/lockstep/internal/sim"
)

const (
	// MaxSpeed is in units per second.
	MaxSpeed = 1.0
	// Bound is the largest target a client may request.
	Bound = 10.0
	// MilestoneEvery is how many ticks pass between milestones.
	MilestoneEvery = 50
)

type Player struct {
	Number   float32
	Velocity float32
}

func (p Player) Hash(h *checksum.Hasher) {
	h.WriteF32(p.Number)
	h.WriteF32(p.Velocity)
}

type Input struct {
	Target float32
}

func (i Input) Hash(h *checksum.Hasher) {
	h.WriteF32(i.Target)
}

// Milestone is emitted every MilestoneEvery ticks.
type Milestone struct {
	Tick uint32
}

type World struct {
	lockstep.Defaults[Player, Input, struct{}]
	Engine lockstep.Config
	Ticks  uint32
}

func New(cfg lockstep.Config) *World {
	return &World{Engine: cfg}
}

func DefaultConfig() lockstep.Config {
	return lockstep.DefaultConfig(10)
}

func (w *World) Config() lockstep.Config { return w.Engine }

func (w *World) Clone() lockstep.World[Player, Input, struct{}] {
	c := *w
	return &c
}

func (w *World) Hash(h *checksum.Hasher) {
	h.WriteUint32(w.Ticks)
}

func (w *World) Tick(_ struct{}, ctx *lockstep.Context[Player, Input], _ lockstep.Disposition, emit func(lockstep.Info)) {
	w.Ticks++
	dt := w.Engine.TickSeconds()
	ctx.Players.Retain(func(_ lockstep.PlayerID, p *lockstep.Player[Player, Input]) bool {
		want := min(max((p.Input.Target-p.Inner.Number)*4, -MaxSpeed), MaxSpeed)
		p.Inner.Velocity += (want - p.Inner.Velocity) * 0.8
		p.Inner.Velocity = min(max(p.Inner.Velocity, -MaxSpeed), MaxSpeed)
		p.Inner.Number += p.Inner.Velocity * dt
		return true
	})
	if w.Ticks%MilestoneEvery == 0 {
		emit(Milestone{Tick: w.Ticks})
	}
}

func (w *World) LerpPlayer(_ lockstep.PlayerID, prev, next Player, t float32, _ lockstep.Disposition) Player {
	return Player{
		Number:   prev.Number + (next.Number-prev.Number)*t,
		Velocity: prev.Velocity + (next.Velocity-prev.Velocity)*t,
	}
}

func (w *World) ValidInput(in Input) bool {
	f := float64(in.Target)
	return !math.IsNaN(f) && math.Abs(f) <= Bound
}

var schedule = [...]float32{2, -1, 0.5, -2, 1.5}

// Target is the scripted target of player id at a tick. Players start at
// different points of the schedule so lanes do not overlap.
func Target(id lockstep.PlayerID, tick uint32) float32 {
	return schedule[(tick/25+uint32(id))%uint32(len(schedule))]
}

// Model describes the world to the simulation harness.
func Model(cfg lockstep.Config) sim.Model[Player, Input, struct{}] {
	return sim.Model[Player, Input, struct{}]{
		NewWorld: func() lockstep.World[Player, Input, struct{}] { return New(cfg) },
		Spawn:    func(lockstep.PlayerID) Player { return Player{} },
		Brain: func(id lockstep.PlayerID, state *lockstep.Lockstep[Player, Input, struct{}]) Input {
			return Input{Target: Target(id, state.Context.TickID)}
		},
		Position: func(p Player) float32 { return p.Number },
		Min:      -2.5,
		Max:      2.5,
	}
}

func init() {
	registry.Register(registry.Define(registry.Def[Player, Input, struct{}]{
		ID:     "tracker",
		Title:  "Tracker",
		Config: DefaultConfig(),
		Model:  Model,
	}))
}
