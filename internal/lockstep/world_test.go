package lockstep

import (
	"math"

	"github.com/vovakirdan/lockstep/internal/checksum"
)

// chaser is a minimal world: each player's number chases its input target
// with bounded velocity.
type chaser struct {
	Defaults[chaserPlayer, chaserInput, struct{}]
	cfg   Config
	Ticks uint32
}

type chaserPlayer struct {
	Number   float32
	Velocity float32
}

func (p chaserPlayer) Hash(h *checksum.Hasher) {
	h.WriteF32(p.Number)
	h.WriteF32(p.Velocity)
}

type chaserInput struct {
	Target float32
}

func (i chaserInput) Hash(h *checksum.Hasher) {
	h.WriteF32(i.Target)
}

func newChaser() *chaser {
	return &chaser{cfg: DefaultConfig(10)}
}

func (w *chaser) Config() Config { return w.cfg }

func (w *chaser) Clone() World[chaserPlayer, chaserInput, struct{}] {
	c := *w
	return &c
}

func (w *chaser) Hash(h *checksum.Hasher) {
	h.WriteUint32(w.Ticks)
}

func (w *chaser) Tick(_ struct{}, ctx *Context[chaserPlayer, chaserInput], _ Disposition, emit func(Info)) {
	w.Ticks++
	dt := w.cfg.TickSeconds()
	ctx.Players.Retain(func(id PlayerID, p *Player[chaserPlayer, chaserInput]) bool {
		target := min(max((p.Input.Target-p.Inner.Number)*0.4, -1), 1)
		p.Inner.Velocity += (target - p.Inner.Velocity) * 0.8
		p.Inner.Number += p.Inner.Velocity * dt
		return true
	})
	if w.Ticks%5 == 0 {
		emit(w.Ticks)
	}
}

func (w *chaser) LerpPlayer(_ PlayerID, prev, next chaserPlayer, t float32, _ Disposition) chaserPlayer {
	return chaserPlayer{
		Number:   prev.Number + (next.Number-prev.Number)*t,
		Velocity: prev.Velocity + (next.Velocity-prev.Velocity)*t,
	}
}

func (w *chaser) ValidInput(in chaserInput) bool {
	f := float64(in.Target)
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
