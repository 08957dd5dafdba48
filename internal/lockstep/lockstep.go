package lockstep

import (
	"fmt"

	"github.com/vovakirdan/lockstep/internal/checksum"
)

// Lockstep is a complete simulation: the engine context and the game world.
type Lockstep[P, I Hashable, T any] struct {
	Context Context[P, I]
	World   World[P, I, T]
}

// New wraps world at tick zero with no players. It panics if the world's
// Config is invalid.
func New[P, I Hashable, T any](world World[P, I, T]) *Lockstep[P, I, T] {
	if err := world.Config().Validate(); err != nil {
		panic(err)
	}
	return &Lockstep[P, I, T]{World: world}
}

func (l *Lockstep[P, I, T]) Config() Config {
	return l.World.Config()
}

func (l *Lockstep[P, I, T]) Clone() *Lockstep[P, I, T] {
	return &Lockstep[P, I, T]{
		Context: l.Context.Clone(),
		World:   l.World.Clone(),
	}
}

func (l *Lockstep[P, I, T]) Hash(h *checksum.Hasher) {
	l.Context.Hash(h)
	l.World.Hash(h)
}

// Checksum digests the full simulation state.
func (l *Lockstep[P, I, T]) Checksum() uint32 {
	h := checksum.New()
	l.Hash(h)
	return h.Sum32()
}

// Tick advances the simulation by one tick: overwrites first, then inputs,
// then the world's own tick. A missing player for an input is tolerated
// while predicting and a bug otherwise.
func (l *Lockstep[P, I, T]) Tick(tick Tick[P, I, T], d Disposition, emit func(Info)) {
	if emit == nil {
		emit = func(Info) {}
	}
	l.Context.TickID++

	for _, id := range tick.overwriteOrder() {
		if p := tick.Overwrites[id]; p != nil {
			if existing := l.Context.Players.Ptr(id); existing != nil {
				existing.Inner = *p
			} else {
				l.Context.Players.Insert(id, Player[P, I]{Inner: *p})
			}
		} else {
			l.Context.Players.Remove(id)
		}
	}

	for id, input := range tick.Inputs.All() {
		if p := l.Context.Players.Ptr(id); p != nil {
			p.Input = input
		} else if d.Phase == GroundTruth {
			panic(fmt.Sprintf("lockstep: input for missing player %s at tick %d", id, l.Context.TickID))
		}
	}

	l.World.Tick(tick.Inner, &l.Context, d, emit)
}

// Lerp blends toward next. t is clamped to [0,1].
func (l *Lockstep[P, I, T]) Lerp(next *Lockstep[P, I, T], t float32, d Disposition) *Lockstep[P, I, T] {
	t = min(max(t, 0), 1)
	return &Lockstep[P, I, T]{
		Context: l.Context.lerp(&next.Context, t, d, l.World.LerpPlayer),
		World:   l.World.Lerp(next.World, t, d),
	}
}
