package lockstep

import (
	"maps"
	"slices"

	"github.com/vovakirdan/lockstep/internal/arena"
)

// Tick is one step of authoritative work. The server accumulates it between
// steps and hands it to every client.
type Tick[P, I Hashable, T any] struct {
	// Checksum of the state before this tick is applied.
	Checksum *uint32
	// Complete is the full pre-tick state, attached only when desync
	// diagnostics are enabled.
	Complete *Lockstep[P, I, T]
	// Overwrites replace (non-nil) or remove (nil) players before inputs
	// are applied.
	Overwrites map[PlayerID]*P
	Inputs     arena.Map[PlayerID, I]
	Inner      T
}

// overwriteOrder returns the overwritten ids in ascending order so every
// peer applies joins and leaves identically.
func (t *Tick[P, I, T]) overwriteOrder() []PlayerID {
	return slices.Sorted(maps.Keys(t.Overwrites))
}

// Clone copies the tick so the original can be reset.
func (t *Tick[P, I, T]) Clone() Tick[P, I, T] {
	c := Tick[P, I, T]{
		Complete: t.Complete,
		Inputs:   t.Inputs.Clone(),
		Inner:    t.Inner,
	}
	if t.Checksum != nil {
		sum := *t.Checksum
		c.Checksum = &sum
	}
	if len(t.Overwrites) > 0 {
		c.Overwrites = make(map[PlayerID]*P, len(t.Overwrites))
		for id, p := range t.Overwrites {
			if p != nil {
				v := *p
				p = &v
			}
			c.Overwrites[id] = p
		}
	}
	return c
}
