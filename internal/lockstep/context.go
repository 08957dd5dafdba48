package lockstep

import (
	"github.com/vovakirdan/lockstep/internal/arena"
	"github.com/vovakirdan/lockstep/internal/checksum"
)

// Player is the engine's view of a player: the game state plus the input
// that is currently executing.
type Player[P, I Hashable] struct {
	Input I
	Inner P
}

func (p Player[P, I]) Hash(h *checksum.Hasher) {
	p.Input.Hash(h)
	p.Inner.Hash(h)
}

// Context is the part of the simulation owned by the engine.
type Context[P, I Hashable] struct {
	TickID  uint32
	Players arena.Map[PlayerID, Player[P, I]]
}

func (c *Context[P, I]) Hash(h *checksum.Hasher) {
	h.WriteUint32(c.TickID)
	h.WriteLen(c.Players.Len())
	for id, p := range c.Players.All() {
		id.Hash(h)
		p.Hash(h)
	}
}

func (c *Context[P, I]) Clone() Context[P, I] {
	return Context[P, I]{TickID: c.TickID, Players: c.Players.Clone()}
}

// Player returns the state of one player.
func (c *Context[P, I]) Player(id PlayerID) (P, bool) {
	if p := c.Players.Ptr(id); p != nil {
		return p.Inner, true
	}
	var zero P
	return zero, false
}

// lerp blends toward next. The resulting player set matches next; players
// that did not exist in c are taken from next unchanged.
func (c *Context[P, I]) lerp(next *Context[P, I], t float32, d Disposition,
	lerpPlayer func(PlayerID, P, P, float32, Disposition) P) Context[P, I] {
	out := next.Clone()
	out.Players.Retain(func(id PlayerID, p *Player[P, I]) bool {
		if prev := c.Players.Ptr(id); prev != nil {
			p.Inner = lerpPlayer(id, prev.Inner, p.Inner, t, d)
		}
		return true
	})
	return out
}
