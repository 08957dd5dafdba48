package tracker

import (
	"math"
	"testing"

	"github.com/vovakirdan/lockstep/internal/lockstep"
)

func TestValidInput(t *testing.T) {
	w := New(DefaultConfig())
	tests := []struct {
		name   string
		target float32
		want   bool
	}{
		{"zero", 0, true},
		{"bound", Bound, true},
		{"negative bound", -Bound, true},
		{"too far", Bound + 1, false},
		{"nan", float32(math.NaN()), false},
		{"inf", float32(math.Inf(1)), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := w.ValidInput(Input{Target: tt.target}); got != tt.want {
				t.Errorf("ValidInput(%v) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
}

func TestTickChasesTargetAtBoundedSpeed(t *testing.T) {
	cfg := DefaultConfig()
	w := New(cfg)
	ctx := &lockstep.Context[Player, Input]{}
	id := lockstep.NthClient(0)
	ctx.Players.Insert(id, lockstep.Player[Player, Input]{Input: Input{Target: 2}})

	var milestones []Milestone
	prev := float32(0)
	for range 100 {
		w.Tick(struct{}{}, ctx, lockstep.GroundTruthDisposition(), func(i lockstep.Info) {
			if m, ok := i.(Milestone); ok {
				milestones = append(milestones, m)
			}
		})
		p, _ := ctx.Player(id)
		if step := p.Number - prev; step > MaxSpeed*cfg.TickSeconds()+1e-6 {
			t.Fatalf("moved %v in one tick", step)
		}
		prev = p.Number
	}

	p, _ := ctx.Player(id)
	if math.Abs(float64(p.Number-2)) > 0.05 {
		t.Errorf("Number = %v after 10s, want about 2", p.Number)
	}
	if len(milestones) != 2 || milestones[0].Tick != 50 || milestones[1].Tick != 100 {
		t.Errorf("milestones = %v", milestones)
	}
}

func TestLerpPlayer(t *testing.T) {
	w := New(DefaultConfig())
	got := w.LerpPlayer(1, Player{Number: 0, Velocity: 1}, Player{Number: 2, Velocity: 0}, 0.25, lockstep.Disposition{})
	if got.Number != 0.5 || got.Velocity != 0.75 {
		t.Errorf("LerpPlayer = %+v", got)
	}
}

func TestTargetSchedule(t *testing.T) {
	a, b := lockstep.NthClient(0), lockstep.NthClient(1)
	if Target(a, 0) == Target(b, 0) {
		t.Error("neighbouring players share a target")
	}
	if Target(a, 0) != Target(a, 24) || Target(a, 0) == Target(a, 25) {
		t.Error("target does not hold for 25 ticks")
	}
}
