// Package lockstep implements a server-authoritative lockstep simulation with
// client-side prediction and interpolation.
//
// A game supplies a World: player, input and per-tick payload types plus a
// deterministic tick function. The Server advances the authoritative state
// one tick at a time from buffered client inputs; the Client predicts ahead
// of the last confirmed tick and blends predictions for rendering.
//
// Server and Client are owned by a single goroutine each and never lock.
package lockstep

import "github.com/vovakirdan/lockstep/internal/checksum"

// Hashable is the constraint on player and input types.
type Hashable = checksum.Hashable

// Info is a game-specific event emitted by a tick (a sound, a kill feed
// entry). The engine only routes it.
type Info = any

// World is the game-specific part of a Lockstep. P is the per-player state,
// I the per-player input and T the per-tick payload the server supplies.
type World[P, I Hashable, T any] interface {
	checksum.Hashable

	Config() Config
	Clone() World[P, I, T]

	// Tick advances the world by one tick. It must be deterministic and
	// total over every reachable state.
	Tick(payload T, ctx *Context[P, I], d Disposition, emit func(Info))

	// Lerp blends the world toward next. t is in [0,1].
	Lerp(next World[P, I, T], t float32, d Disposition) World[P, I, T]
	// LerpPlayer blends a player present in both states.
	LerpPlayer(id PlayerID, prev, next P, t float32, d Disposition) P

	// ValidInput rejects inputs a well-behaved client never sends.
	ValidInput(input I) bool
	// IsPredicted reports whether info was already emitted during
	// prediction from perspective and should not be emitted again.
	IsPredicted(info Info, perspective PlayerID) bool
	// OnComplete is emitted when the server overwrites the client state.
	OnComplete() (Info, bool)
	// TargetBuffer is the fraction of input buffering the client steers
	// toward.
	TargetBuffer(unreliable bool) float32
}

// Defaults supplies the optional World methods. Embed it and override as
// needed.
type Defaults[P, I Hashable, T any] struct{}

func (Defaults[P, I, T]) Lerp(next World[P, I, T], _ float32, _ Disposition) World[P, I, T] {
	return next.Clone()
}

func (Defaults[P, I, T]) LerpPlayer(_ PlayerID, _, next P, _ float32, _ Disposition) P {
	return next
}

func (Defaults[P, I, T]) ValidInput(I) bool { return true }
func (Defaults[P, I, T]) IsPredicted(Info, PlayerID) bool { return false }
func (Defaults[P, I, T]) OnComplete() (Info, bool) { return nil, false }
func (Defaults[P, I, T]) TargetBuffer(unreliable bool) float32 { return 0.5 }
