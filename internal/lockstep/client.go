package lockstep

import (
	"fmt"
	"math"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/lockstep/internal/checksum"
)

// Desync describes a checksum mismatch between the server and the client's
// confirmed state.
type Desync struct {
	TickID   uint32
	Expected uint32
	Actual   uint32
	// Diff is a structural diff of server and client state, present only
	// when the server attaches complete snapshots.
	Diff string
}

// Latency is measured in ticks. A zero id from the server leaves the
// corresponding figure unknown.
type Latency struct {
	Ping       int
	Total      int
	PingKnown  bool
	TotalKnown bool
}

// Client predicts ahead of the server and interpolates for rendering.
type Client[P, I Hashable, T any] struct {
	// Real is the last state confirmed by the server.
	Real *Lockstep[P, I, T]
	// Predicted is Real plus every unacknowledged local input.
	Predicted *Lockstep[P, I, T]
	// PredictedNext is Predicted one tick further, for interpolation.
	PredictedNext *Lockstep[P, I, T]
	// Interpolated blends Predicted toward PredictedNext. Render this.
	Interpolated *Lockstep[P, I, T]

	// PlayerID is zero until the first initialization arrives.
	PlayerID PlayerID
	Queue    *InputQueue[I]

	cfg                  Config
	heardFromServer      bool
	sincePredictedTick   float32
	smoothedSinceReal    float32
	serverBufferedInputs int
	pingLatencies        *history
	totalLatencies       *history
	info                 []Info
	desyncs              int
	diverged             bool

	logger   *log.Logger
	onDesync func(Desync)
}

// NewClient creates an unloaded client. world is only a placeholder until
// the server's initialization replaces it.
func NewClient[P, I Hashable, T any](world World[P, I, T], opts ...Option) *Client[P, I, T] {
	o := buildOptions(opts)
	base := New(world)
	cfg := base.Config()
	return &Client[P, I, T]{
		Real:           base,
		Predicted:      base.Clone(),
		PredictedNext:  base.Clone(),
		Interpolated:   base.Clone(),
		Queue:          NewInputQueue[I](cfg),
		cfg:            cfg,
		pingLatencies:  newHistory(int(cfg.TPS)),
		totalLatencies: newHistory(int(cfg.TPS)),
		logger:         o.logger,
		onDesync:       o.onDesync,
	}
}

func (c *Client[P, I, T]) Config() Config { return c.cfg }

// Loaded reports whether an initialization has arrived.
func (c *Client[P, I, T]) Loaded() bool {
	return c.PlayerID != 0
}

// Desyncs is the number of checksum mismatches observed.
func (c *Client[P, I, T]) Desyncs() int { return c.desyncs }

// Receive folds one server update into the local simulations.
func (c *Client[P, I, T]) Receive(update Update[P, I, T]) Latency {
	if init := update.Initialization; init != nil {
		c.PlayerID = init.PlayerID
		c.Real = init.Snapshot.Clone()
		c.Predicted = init.Snapshot.Clone()
		c.PredictedNext = init.Snapshot.Clone()
		c.Interpolated = init.Snapshot
		c.diverged = false
		if info, ok := c.Real.World.OnComplete(); ok {
			c.info = append(c.info, info)
		}
	}
	c.serverBufferedInputs = update.BufferedInputs

	lat := c.tick(update.Tick, update.LastAppliedInputID, update.LastReceivedInputID)
	if lat.PingKnown {
		c.pingLatencies.push(lat.Ping)
	}
	if lat.TotalKnown {
		c.totalLatencies.push(lat.Total)
	}
	return lat
}

func (c *Client[P, I, T]) tick(tick Tick[P, I, T], lastApplied, lastReceived InputID) Latency {
	if end := c.Queue.End(); lastReceived >= end || lastApplied >= end {
		panic(fmt.Sprintf("lockstep: server received/applied unsent input %d/%d >= %d", lastReceived, lastApplied, end))
	}

	if tick.Checksum != nil {
		c.verify(*tick.Checksum, tick.Complete)
	}
	c.Queue.Acknowledged(lastApplied)
	c.heardFromServer = true
	c.smoothedSinceReal--

	c.Real.Tick(tick, GroundTruthDisposition(), func(info Info) {
		if c.PlayerID != 0 && !c.Real.World.IsPredicted(info, c.PlayerID) {
			c.info = append(c.info, info)
		}
	})

	c.replay()

	c.PredictedNext = c.Predicted.Clone()
	c.predict(c.PredictedNext, true, nil, nil)

	c.updateInterpolated()

	var lat Latency
	if lastReceived != 0 {
		lat.Ping, lat.PingKnown = c.Queue.Latency(lastReceived), true
	}
	if lastApplied != 0 {
		lat.Total, lat.TotalKnown = c.Queue.Latency(lastApplied), true
	}
	return lat
}

// verify compares the server's pre-tick checksum with Real. A mismatch is
// reported and, when the server sent its full state, Real adopts it.
// Without the full state Real stays diverged until the next initialization,
// and the divergence is reported only once.
func (c *Client[P, I, T]) verify(expected uint32, complete *Lockstep[P, I, T]) {
	actual := c.Real.Checksum()
	if actual == expected {
		c.diverged = false
		return
	}
	if c.diverged && complete == nil {
		return
	}
	c.desyncs++
	report := Desync{
		TickID:   c.Real.Context.TickID,
		Expected: expected,
		Actual:   actual,
	}
	if complete != nil {
		report.Diff = checksum.Diff(complete, c.Real)
		c.Real = complete.Clone()
	} else {
		c.diverged = true
	}
	c.logger.Error("desync", "tick", report.TickID, "server", expected, "client", actual)
	if report.Diff != "" {
		c.logger.Debug("desync diff", "diff", report.Diff)
	}
	if c.onDesync != nil {
		c.onDesync(report)
	}
}

// replay rebuilds Predicted from Real and every queued input, so Predicted
// is never more than MaxPrediction ticks ahead.
func (c *Client[P, I, T]) replay() {
	c.Predicted = c.Real.Clone()
	for in := range c.Queue.All() {
		c.predict(c.Predicted, false, &in, nil)
	}
}

func (c *Client[P, I, T]) updateInterpolated() {
	c.Interpolated = c.Predicted.Lerp(c.PredictedNext, c.sincePredictedTick,
		LerpingDisposition(c.PlayerID, c.smoothedSinceReal))
}

// predict advances l by one tick with the local input, if any.
func (c *Client[P, I, T]) predict(l *Lockstep[P, I, T], interpolation bool, input *I, emit func(Info)) {
	var tick Tick[P, I, T]
	if c.PlayerID != 0 && input != nil {
		tick.Inputs.Insert(c.PlayerID, *input)
	}
	l.Tick(tick, PredictingDisposition(c.PlayerID, interpolation), emit)
}

// tickPredicted advances Predicted with a freshly sampled input and returns
// the window to send. It fails when the queue is full and nothing has been
// heard from the server since the last call.
func (c *Client[P, I, T]) tickPredicted(input I, unreliable bool) (InputWindow[I], bool) {
	heard := c.heardFromServer
	c.heardFromServer = false

	if c.Queue.IsFull() {
		if !heard {
			c.logger.Debug("input queue full, not heard from server")
			return InputWindow[I]{}, false
		}
		// The oldest input is the most likely to have been lost.
		c.Queue.PopFront()
		c.replay()
		c.logger.Debug("input queue full, dropped oldest")
	}

	c.predict(c.Predicted, false, &input, func(info Info) {
		if c.PlayerID != 0 && c.Real.World.IsPredicted(info, c.PlayerID) {
			c.info = append(c.info, info)
		}
	})
	return c.Queue.PushBack(input, unreliable), true
}

// Update advances local time by elapsed. sample(true) is called once per
// predicted tick and its input is committed and sent; sample(false) previews
// the input for interpolation only. send receives each request and whether
// it must go over a reliable channel. Update returns the infos emitted since
// the last call.
func (c *Client[P, I, T]) Update(elapsed time.Duration, unreliable bool, sample func(commit bool) I, send func(req Request[I], reliable bool)) []Info {
	if !c.Loaded() {
		return c.drainInfo()
	}
	secs := float32(elapsed.Seconds())
	period := c.cfg.TickSeconds()

	usage := c.ServerBufferUsage()*0.5 + c.ClientBufferUsage()*0.5
	bias := min(max(2*(usage-c.Real.World.TargetBuffer(unreliable)), -1), 1)
	scale := 1 + 0.25*float32(math.Tan(float64(bias)))
	adjusted := period * scale

	c.sincePredictedTick += secs / adjusted
	whole := min(int(c.sincePredictedTick), c.cfg.BufferedTicks)
	for i := range whole {
		window, ok := c.tickPredicted(sample(true), unreliable)
		if !ok {
			whole = i
			break
		}
		send(Request[I]{Inputs: window}, false)
	}
	c.sincePredictedTick = min(max(c.sincePredictedTick-float32(whole), 0), 2/adjusted)

	c.PredictedNext = c.Predicted.Clone()
	preview := sample(false)
	c.predict(c.PredictedNext, true, &preview, nil)

	c.smoothedSinceReal += secs / period
	step := secs * 0.1 / period
	c.smoothedSinceReal += min(max(-c.smoothedSinceReal, -step), step)
	c.smoothedSinceReal = min(max(c.smoothedSinceReal, -1), 1)

	c.updateInterpolated()
	return c.drainInfo()
}

func (c *Client[P, I, T]) drainInfo() []Info {
	out := c.info
	c.info = nil
	return out
}

// LagCompensationLatency is the most recent total latency, capped at what
// the server can rewind.
func (c *Client[P, I, T]) LagCompensationLatency() int {
	v, _ := c.totalLatencies.recent()
	return min(v, c.cfg.MaxLatency())
}

// AveragePingLatency is the mean ping over the last second, in ticks.
func (c *Client[P, I, T]) AveragePingLatency() int {
	if n := c.pingLatencies.len(); n > 0 {
		return c.pingLatencies.sum() / n
	}
	return 0
}

// AverageTotalLatency is the mean total latency over the last second, in
// ticks.
func (c *Client[P, I, T]) AverageTotalLatency() int {
	if n := c.totalLatencies.len(); n > 0 {
		return c.totalLatencies.sum() / n
	}
	return 0
}

func (c *Client[P, I, T]) AveragePingLatencyMillis() int {
	n := c.pingLatencies.len()
	if n == 0 {
		return 0
	}
	secs := float32(c.pingLatencies.sum()) * c.cfg.TickSeconds() / float32(n)
	return int(secs * 1000)
}

// ClientBufferUsage is the fill fraction of the input queue.
func (c *Client[P, I, T]) ClientBufferUsage() float32 {
	return float32(c.Queue.Len()) / float32(c.cfg.MaxPrediction)
}

// ServerBufferUsage is the fill fraction of the server's reorder buffer as
// last reported.
func (c *Client[P, I, T]) ServerBufferUsage() float32 {
	return float32(c.serverBufferedInputs) / float32(c.cfg.BufferedTicks)
}
