// Package pong implements Pong as a lockstep world.
// The first two players to join take the left and right paddles; anyone else
// moves a paddle the ball ignores until a side frees up.
package pong

import (
	"math"

	"github.com/vovakirdan/lockstep/internal/checksum"
	"github.com/vovakirdan/lockstep/internal/lockstep"
	"github.com/vovakirdan/lockstep/internal/registry"
	"github.com/vovakirdan/lockstep/internal/sim"
)

// Board geometry, in cells.
const (
	Width        = 80
	Height       = 24
	PaddleHeight = 5
	PaddleOffset = 2 // Distance from edge
)

// Default game settings, per tick at 20 ticks per second.
const (
	DefaultBallSpeed   = 1.5
	DefaultPaddleSpeed = 2.0
	DefaultWinScore    = 5
	ServeDelay         = 20 // 1 second at 20tps
)

const (
	minPaddleY = 1
	maxPaddleY = Height - PaddleHeight - 1
	leftX      = PaddleOffset
	rightX     = Width - PaddleOffset - 1
)

// Side is the half of the board a player defends.
type Side uint8

const (
	NoSide Side = iota
	Left
	Right
)

func (s Side) String() string {
	switch s {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "none"
	}
}

// Player is a paddle. Y is the top row.
type Player struct {
	Y float32
}

func (p Player) Hash(h *checksum.Hasher) {
	h.WriteF32(p.Y)
}

// Input moves the paddle up (-1), down (1) or not at all.
type Input struct {
	Dir int8
}

func (i Input) Hash(h *checksum.Hasher) {
	h.WriteUint8(uint8(i.Dir))
}

// Point is emitted when a side scores.
type Point struct {
	Scorer      Side
	Left, Right uint8
}

// Win is emitted when a side reaches the win score. Scores then reset.
type Win struct {
	Winner Side
}

type Ball struct {
	X, Y   float32
	VX, VY float32
}

// World holds everything about a match that is not a paddle.
type World struct {
	lockstep.Defaults[Player, Input, struct{}]
	Engine lockstep.Config

	Ball       Ball
	LeftID     lockstep.PlayerID
	RightID    lockstep.PlayerID
	LeftScore  uint8
	RightScore uint8
	Serving    bool
	ServeDelay uint16
	Rng        uint64
}

// New creates a world waiting to serve toward the left.
func New(cfg lockstep.Config) *World {
	w := &World{Engine: cfg, Rng: 0x5eed}
	w.startServe(Left)
	return w
}

func DefaultConfig() lockstep.Config {
	return lockstep.DefaultConfig(20)
}

func (w *World) Config() lockstep.Config { return w.Engine }

func (w *World) Clone() lockstep.World[Player, Input, struct{}] {
	c := *w
	return &c
}

func (w *World) Hash(h *checksum.Hasher) {
	h.WriteF32(w.Ball.X)
	h.WriteF32(w.Ball.Y)
	h.WriteF32(w.Ball.VX)
	h.WriteF32(w.Ball.VY)
	w.LeftID.Hash(h)
	w.RightID.Hash(h)
	h.WriteUint8(w.LeftScore)
	h.WriteUint8(w.RightScore)
	h.WriteBool(w.Serving)
	h.WriteUint16(w.ServeDelay)
	h.WriteUint64(w.Rng)
}

// SideOf reports which side id defends.
func (w *World) SideOf(id lockstep.PlayerID) Side {
	switch {
	case id == 0:
		return NoSide
	case id == w.LeftID:
		return Left
	case id == w.RightID:
		return Right
	}
	return NoSide
}

// random is splitmix64, mapped to [0,1).
func (w *World) random() float32 {
	w.Rng += 0x9e3779b97f4a7c15
	z := w.Rng
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	z ^= z >> 31
	return float32(z>>40) / (1 << 24)
}

// startServe centers the ball and aims it at toward.
func (w *World) startServe(toward Side) {
	w.Serving = true
	w.ServeDelay = ServeDelay
	w.Ball.X = Width / 2
	w.Ball.Y = Height / 2

	w.Ball.VX = DefaultBallSpeed
	if toward == Left {
		w.Ball.VX = -DefaultBallSpeed
	}
	angle := (w.random() - 0.5) * 0.6 // -0.3 to 0.3
	w.Ball.VY = DefaultBallSpeed * angle
}

func (w *World) Tick(_ struct{}, ctx *lockstep.Context[Player, Input], _ lockstep.Disposition, emit func(lockstep.Info)) {
	w.assignSides(ctx)

	ctx.Players.Retain(func(_ lockstep.PlayerID, p *lockstep.Player[Player, Input]) bool {
		p.Inner.Y = clamp(p.Inner.Y+float32(p.Input.Dir)*DefaultPaddleSpeed, minPaddleY, maxPaddleY)
		return true
	})

	if w.Serving {
		w.ServeDelay--
		if w.ServeDelay == 0 {
			w.Serving = false
		}
		return
	}
	w.updateBall(ctx, emit)
}

// assignSides frees sides whose player left and fills empty sides in
// ascending id order.
func (w *World) assignSides(ctx *lockstep.Context[Player, Input]) {
	if w.LeftID != 0 && !ctx.Players.Contains(w.LeftID) {
		w.LeftID = 0
	}
	if w.RightID != 0 && !ctx.Players.Contains(w.RightID) {
		w.RightID = 0
	}
	for id := range ctx.Players.Keys() {
		if id == w.LeftID || id == w.RightID {
			continue
		}
		switch {
		case w.LeftID == 0:
			w.LeftID = id
		case w.RightID == 0:
			w.RightID = id
		default:
			return
		}
	}
}

func (w *World) updateBall(ctx *lockstep.Context[Player, Input], emit func(lockstep.Info)) {
	b := &w.Ball
	b.X += b.VX
	b.Y += b.VY

	// Bounce off top/bottom walls
	if b.Y <= 1 {
		b.Y = 1
		b.VY = -b.VY
	}
	if b.Y >= Height-2 {
		b.Y = Height - 2
		b.VY = -b.VY
	}

	if b.X <= leftX+1 && b.VX < 0 {
		if y, ok := w.paddle(ctx, w.LeftID); !ok || hits(b.Y, y) {
			b.X = leftX + 1
			w.bounce(b.Y, y, ok)
		}
	}
	if b.X >= rightX-1 && b.VX > 0 {
		if y, ok := w.paddle(ctx, w.RightID); !ok || hits(b.Y, y) {
			b.X = rightX - 1
			w.bounce(b.Y, y, ok)
		}
	}

	maxSpeed := float32(DefaultBallSpeed * 2)
	b.VX = clamp(b.VX, -maxSpeed, maxSpeed)
	b.VY = clamp(b.VY, -maxSpeed/2, maxSpeed/2)

	switch {
	case b.X < 0:
		w.score(Right, emit)
	case b.X > Width:
		w.score(Left, emit)
	}
}

// paddle returns the paddle of a side's player. An empty side is a wall.
func (w *World) paddle(ctx *lockstep.Context[Player, Input], id lockstep.PlayerID) (float32, bool) {
	p, ok := ctx.Player(id)
	return p.Y, ok
}

func hits(ballY, paddleY float32) bool {
	return ballY >= paddleY && ballY <= paddleY+PaddleHeight
}

// bounce reverses the ball, adding spin from where it met the paddle.
func (w *World) bounce(ballY, paddleY float32, paddle bool) {
	w.Ball.VX = -w.Ball.VX
	if !paddle {
		return
	}
	hitPos := (ballY - paddleY) / PaddleHeight
	w.Ball.VY += (hitPos - 0.5) * 0.3
	w.Ball.VX *= 1.02
}

func (w *World) score(scorer Side, emit func(lockstep.Info)) {
	if scorer == Left {
		w.LeftScore++
	} else {
		w.RightScore++
	}
	emit(Point{Scorer: scorer, Left: w.LeftScore, Right: w.RightScore})

	if w.LeftScore >= DefaultWinScore || w.RightScore >= DefaultWinScore {
		emit(Win{Winner: scorer})
		w.LeftScore, w.RightScore = 0, 0
	}
	// Serve toward the side that was scored against
	if scorer == Left {
		w.startServe(Right)
	} else {
		w.startServe(Left)
	}
}

// Lerp moves the ball smoothly unless it was reset for a serve.
func (w *World) Lerp(next lockstep.World[Player, Input, struct{}], t float32, _ lockstep.Disposition) lockstep.World[Player, Input, struct{}] {
	n := next.(*World)
	out := *n
	if dx := n.Ball.X - w.Ball.X; float32(math.Abs(float64(dx))) < Width/4 {
		out.Ball.X = w.Ball.X + dx*t
		out.Ball.Y = w.Ball.Y + (n.Ball.Y-w.Ball.Y)*t
	}
	return &out
}

func (w *World) LerpPlayer(_ lockstep.PlayerID, prev, next Player, t float32, _ lockstep.Disposition) Player {
	return Player{Y: prev.Y + (next.Y-prev.Y)*t}
}

func (w *World) ValidInput(in Input) bool {
	return in.Dir >= -1 && in.Dir <= 1
}

// Brain follows the ball with the paddle's center.
func Brain(id lockstep.PlayerID, state *lockstep.Lockstep[Player, Input, struct{}]) Input {
	w, ok := state.World.(*World)
	if !ok {
		return Input{}
	}
	p, ok := state.Context.Player(id)
	if !ok {
		return Input{}
	}
	diff := w.Ball.Y - (p.Y + float32(PaddleHeight)/2)
	switch {
	case diff > 1:
		return Input{Dir: 1}
	case diff < -1:
		return Input{Dir: -1}
	}
	return Input{}
}

// Model describes the world to the simulation harness.
func Model(cfg lockstep.Config) sim.Model[Player, Input, struct{}] {
	return sim.Model[Player, Input, struct{}]{
		NewWorld: func() lockstep.World[Player, Input, struct{}] { return New(cfg) },
		Spawn: func(lockstep.PlayerID) Player {
			return Player{Y: (Height - PaddleHeight) / 2}
		},
		Brain:    Brain,
		Position: func(p Player) float32 { return p.Y },
		Min:      0,
		Max:      Height,
	}
}

func clamp(v, lo, hi float32) float32 {
	return min(max(v, lo), hi)
}

// Register the game with the registry
func init() {
	registry.Register(registry.Define(registry.Def[Player, Input, struct{}]{
		ID:     "pong",
		Title:  "Pong",
		Config: DefaultConfig(),
		Model:  Model,
	}))
}
