package lockstep

import (
	"errors"
	"testing"
)

type chaserTick = Tick[chaserPlayer, chaserInput, struct{}]

func joinTick(ids ...PlayerID) chaserTick {
	t := chaserTick{Overwrites: map[PlayerID]*chaserPlayer{}}
	for _, id := range ids {
		t.Overwrites[id] = &chaserPlayer{}
	}
	return t
}

func inputTick(targets map[PlayerID]float32) chaserTick {
	var t chaserTick
	for id, target := range targets {
		t.Inputs.Insert(id, chaserInput{Target: target})
	}
	return t
}

func TestConfig_Defaults(t *testing.T) {
	cfg := DefaultConfig(10)
	if cfg.LagCompensation != 7 || cfg.MaxPrediction != 9 || cfg.BufferedTicks != 9 {
		t.Errorf("DefaultConfig(10) = %+v", cfg)
	}
	if cfg.MaxLatency() != 6 {
		t.Errorf("MaxLatency = %d, want 6", cfg.MaxLatency())
	}
	if got := DefaultConfig(16).LagCompensation; got != 10 {
		t.Errorf("DefaultConfig(16).LagCompensation = %d, want 10", got)
	}
	if err := (Config{}).Validate(); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("Validate(zero) = %v", err)
	}
}

func TestLockstep_Deterministic(t *testing.T) {
	a, b := New[chaserPlayer, chaserInput, struct{}](newChaser()), New[chaserPlayer, chaserInput, struct{}](newChaser())
	ticks := []chaserTick{
		joinTick(1, 2),
		inputTick(map[PlayerID]float32{1: 3, 2: -2}),
		{},
		inputTick(map[PlayerID]float32{2: 5}),
		{},
	}
	for _, tick := range ticks {
		a.Tick(tick.Clone(), GroundTruthDisposition(), nil)
		b.Tick(tick.Clone(), GroundTruthDisposition(), nil)
		if a.Checksum() != b.Checksum() {
			t.Fatalf("checksums diverged at tick %d", a.Context.TickID)
		}
	}
	if a.Context.TickID != uint32(len(ticks)) {
		t.Errorf("TickID = %d, want %d", a.Context.TickID, len(ticks))
	}
	p, _ := a.Context.Player(1)
	if p.Number <= 0 {
		t.Errorf("player 1 did not move toward target: %+v", p)
	}
}

func TestLockstep_OverwritesBeforeInputs(t *testing.T) {
	l := New[chaserPlayer, chaserInput, struct{}](newChaser())
	tick := joinTick(3)
	tick.Inputs.Insert(3, chaserInput{Target: 1})
	l.Tick(tick, GroundTruthDisposition(), nil)

	p := l.Context.Players.Ptr(3)
	if p == nil || p.Input.Target != 1 {
		t.Fatalf("input for joining player not applied: %+v", p)
	}

	leave := chaserTick{Overwrites: map[PlayerID]*chaserPlayer{3: nil}}
	l.Tick(leave, GroundTruthDisposition(), nil)
	if l.Context.Players.Contains(3) {
		t.Error("player still present after leave")
	}
}

func TestLockstep_MissingPlayer(t *testing.T) {
	tick := inputTick(map[PlayerID]float32{9: 1})

	l := New[chaserPlayer, chaserInput, struct{}](newChaser())
	l.Tick(tick.Clone(), PredictingDisposition(1, false), nil)

	defer func() {
		if recover() == nil {
			t.Fatal("ground truth input for missing player did not panic")
		}
	}()
	l.Tick(tick.Clone(), GroundTruthDisposition(), nil)
}

func TestLockstep_Lerp(t *testing.T) {
	prev := New[chaserPlayer, chaserInput, struct{}](newChaser())
	prev.Tick(joinTick(1, 2), GroundTruthDisposition(), nil)

	next := prev.Clone()
	next.Context.Players.Ptr(1).Inner.Number = 10
	next.Context.Players.Remove(2)
	next.Context.Players.Insert(4, Player[chaserPlayer, chaserInput]{Inner: chaserPlayer{Number: 7}})

	mid := prev.Lerp(next, 0.5, LerpingDisposition(1, 0))
	if got, _ := mid.Context.Player(1); got.Number != 5 {
		t.Errorf("lerped number = %v, want 5", got.Number)
	}
	if mid.Context.Players.Contains(2) {
		t.Error("player absent from next survived lerp")
	}
	if got, _ := mid.Context.Player(4); got.Number != 7 {
		t.Errorf("new player = %v, want 7 unchanged", got.Number)
	}

	over := prev.Lerp(next, 3, LerpingDisposition(1, 0))
	if got, _ := over.Context.Player(1); got.Number != 10 {
		t.Errorf("t not clamped: %v", got.Number)
	}
}

func TestDisposition_Accessors(t *testing.T) {
	tests := []struct {
		name        string
		d           Disposition
		predicting  bool
		perspective PlayerID
		interp      bool
		smoothed    bool
	}{
		{"ground truth", GroundTruthDisposition(), false, 0, false, false},
		{"predicting", PredictingDisposition(3, false), true, 3, false, false},
		{"interpolation prediction", PredictingDisposition(3, true), true, 3, true, false},
		{"lerping", LerpingDisposition(2, 0.25), false, 2, true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.d.IsPredicting() != tt.predicting {
				t.Errorf("IsPredicting = %v", tt.d.IsPredicting())
			}
			if id, _ := tt.d.Predicting(); id != tt.perspective {
				t.Errorf("Predicting = %v", id)
			}
			if tt.d.InterpolationPrediction() != tt.interp {
				t.Errorf("InterpolationPrediction = %v", tt.d.InterpolationPrediction())
			}
			if _, ok := tt.d.SmoothedNormalizedTicksSinceReal(); ok != tt.smoothed {
				t.Errorf("SmoothedNormalizedTicksSinceReal present = %v", ok)
			}
		})
	}
}

func TestPlayerID_Ranges(t *testing.T) {
	if NthClient(0) != 1 || !NthClient(0).IsClient() {
		t.Error("first client id")
	}
	if b := NthBot(0); b != ClientLimit+1 || !b.IsBot() || b.IsClient() {
		t.Errorf("first bot id = %d", b)
	}
	if PlayerID(0).IsClient() {
		t.Error("zero id is a client")
	}
}
