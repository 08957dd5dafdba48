package sim

import (
	"time"

	"github.com/vovakirdan/lockstep/internal/lockstep"
)

// Report is what a run observed. Latencies are in ticks, errors in the
// units of Model.Position.
type Report struct {
	Scenario Scenario
	Ticks    uint32
	Elapsed  time.Duration

	// Desyncs is what the client detected; Mismatches is what the harness
	// saw comparing confirmed state with the server's record.
	Desyncs      int
	Mismatches   int
	DesyncEvents []lockstep.Desync

	MaxLead   int
	MaxError  float64
	MeanError float64
	Samples   int

	AveragePing  int
	AverageTotal int
	RequestsSent int
	RequestsLost int
	Stats        lockstep.Stats
	Infos        int
	Rewinds      int
}

// Consistent reports whether client and server agreed on every tick.
func (r *Report) Consistent() bool {
	return r.Desyncs == 0 && r.Mismatches == 0
}

// Lane is one player's position as each simulation sees it.
type Lane struct {
	Player       lockstep.PlayerID
	Local        bool
	Known        bool
	Server       float32
	Real         float32
	Predicted    float32
	Interpolated float32
}

// Frame is a display snapshot of a session.
type Frame struct {
	Tick     uint32
	Lead     int
	PingMs   int
	Desyncs  int
	Min, Max float32
	Lanes    []Lane
}

// Viewer is a session with its type parameters erased.
type Viewer interface {
	Step() error
	Frame() Frame
	FramePeriod() time.Duration
	Report() *Report
}
