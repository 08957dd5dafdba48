package sim

import (
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/vovakirdan/lockstep/internal/lockstep"
	"github.com/vovakirdan/lockstep/internal/wire"
)

// Session is one server and one client joined by a pair of links. Step
// advances the virtual clock by one client frame.
type Session[P, I lockstep.Hashable, T any] struct {
	Server *lockstep.Server[P, I, T]
	Client *lockstep.Client[P, I, T]
	Player lockstep.PlayerID

	model Model[P, I, T]
	sc    Scenario
	cfg   lockstep.Config
	codec *wire.Codec[P, I, T]
	data  *lockstep.ClientData[I]
	bots  []lockstep.PlayerID
	up    *Link[[]byte]
	down  *Link[[]byte]

	now      time.Duration
	frame    time.Duration
	nextTick time.Duration
	err      error

	// Keyed by tick id, pruned once the client's Real passes them.
	sums      map[uint32]uint32
	truth     map[uint32]float32
	predicted map[uint32]float32
	evaluated uint32
	loadedAt  uint32

	report   Report
	errorSum float64
}

// NewSession builds a session. opts apply to both server and client; the
// session installs its own desync handler to fill Report.DesyncEvents.
func NewSession[P, I lockstep.Hashable, T any](m Model[P, I, T], sc Scenario, opts ...lockstep.Option) (*Session[P, I, T], error) {
	if err := sc.Validate(); err != nil {
		return nil, err
	}
	world := m.NewWorld()
	cfg := world.Config()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sc.Warmup == 0 {
		sc.Warmup = cfg.LagCompensation
	}

	s := &Session[P, I, T]{
		Player:    lockstep.NthClient(0),
		model:     m,
		sc:        sc,
		cfg:       cfg,
		codec:     wire.New(m.NewWorld),
		data:      lockstep.NewClientData[I](),
		frame:     cfg.TickPeriod() / time.Duration(sc.FramesPerTick),
		sums:      make(map[uint32]uint32),
		truth:     make(map[uint32]float32),
		predicted: make(map[uint32]float32),
	}
	s.report.Scenario = sc

	clientOpts := append(opts[:len(opts):len(opts)], lockstep.WithDesyncHandler(func(d lockstep.Desync) {
		s.report.DesyncEvents = append(s.report.DesyncEvents, d)
	}))
	s.Server = lockstep.NewServer(world, opts...)
	s.Client = lockstep.NewClient(m.NewWorld(), clientOpts...)

	s.Server.SetPlayer(s.Player, m.Spawn(s.Player))
	for i := range sc.Bots {
		id := lockstep.NthBot(i)
		s.bots = append(s.bots, id)
		s.Server.SetPlayer(id, m.Spawn(id))
	}

	rng := rand.New(rand.NewPCG(sc.Seed, sc.Seed^0x9e3779b97f4a7c15))
	if sc.Reliable {
		s.up = NewLink[[]byte](sc.Latency, sc.Jitter, 0, true, rng)
	} else {
		s.up = NewLink[[]byte](sc.Latency, sc.Jitter, sc.Loss, false, rng)
	}
	s.down = NewLink[[]byte](sc.Latency, sc.Jitter, 0, true, rng)
	return s, nil
}

func (s *Session[P, I, T]) Config() lockstep.Config { return s.cfg }

// FramePeriod is the virtual time one Step covers.
func (s *Session[P, I, T]) FramePeriod() time.Duration { return s.frame }

// Now is the virtual clock.
func (s *Session[P, I, T]) Now() time.Duration { return s.now }

// Step advances one client frame: any due server ticks run first, then due
// updates are delivered, then the client updates.
func (s *Session[P, I, T]) Step() error {
	if s.err != nil {
		return s.err
	}
	s.now += s.frame
	for s.now >= s.nextTick {
		if err := s.serverTick(); err != nil {
			s.err = err
			return err
		}
		s.nextTick += s.cfg.TickPeriod()
	}

	for _, frame := range s.down.Receive(s.now) {
		u, err := s.codec.DecodeUpdate(frame)
		if err != nil {
			s.err = fmt.Errorf("sim: update: %w", err)
			return s.err
		}
		s.Client.Receive(u)
		s.evaluate()
	}

	infos := s.Client.Update(s.frame, !s.sc.Reliable, s.sample, s.send)
	s.report.Infos += len(infos)
	if s.err != nil {
		return s.err
	}

	if s.Client.Loaded() {
		pt := s.Client.Predicted.Context.TickID
		s.report.MaxLead = max(s.report.MaxLead, int(pt-s.Client.Real.Context.TickID))
		if p, ok := s.Client.Predicted.Context.Player(s.Player); ok {
			s.predicted[pt] = s.model.Position(p)
		}
	}
	return nil
}

func (s *Session[P, I, T]) sample(bool) I {
	return s.model.Brain(s.Player, s.Client.Predicted)
}

func (s *Session[P, I, T]) send(req lockstep.Request[I], _ bool) {
	frame, err := s.codec.EncodeRequest(req)
	if err != nil {
		s.err = fmt.Errorf("sim: request: %w", err)
		return
	}
	s.up.Send(s.now, frame)
}

func (s *Session[P, I, T]) serverTick() error {
	for _, frame := range s.up.Receive(s.now) {
		req, err := s.codec.DecodeRequest(frame)
		if err != nil {
			return fmt.Errorf("sim: request: %w", err)
		}
		s.Server.Request(s.Player, req, s.data, !s.sc.Reliable)
	}
	for _, id := range s.bots {
		s.Server.Request(id, lockstep.BotRequest(s.model.Brain(id, s.Server.Real)), nil, false)
	}

	s.Server.Update(func(yield func(lockstep.PlayerID, *lockstep.ClientData[I]) bool) {
		yield(s.Player, s.data)
	})
	frame, err := s.codec.EncodeUpdate(s.Server.ClientUpdate(s.Player, s.data))
	if err != nil {
		return fmt.Errorf("sim: update: %w", err)
	}
	s.down.Send(s.now, frame)

	s.Server.PostUpdate(nil)
	if s.Client.Loaded() {
		if _, ok := s.Server.Rewind(s.Client.LagCompensationLatency()); ok {
			s.report.Rewinds++
		}
	}

	tick := s.Server.TickID()
	s.sums[tick] = s.Server.Real.Checksum()
	if p, ok := s.Server.Real.Context.Player(s.Player); ok {
		s.truth[tick] = s.model.Position(p)
	}
	s.report.Ticks = tick
	return nil
}

// evaluate compares everything up to the client's confirmed tick with the
// server's record of it. Nothing at or before that tick can be predicted
// again.
func (s *Session[P, I, T]) evaluate() {
	rt := s.Client.Real.Context.TickID
	if s.loadedAt == 0 {
		s.loadedAt = rt
	}
	if sum, ok := s.sums[rt]; ok && sum != s.Client.Real.Checksum() {
		s.report.Mismatches++
	}
	for t := s.evaluated + 1; t <= rt; t++ {
		pv, havePrediction := s.predicted[t]
		tv, haveTruth := s.truth[t]
		if havePrediction && haveTruth && int(t) > int(s.loadedAt)+s.sc.Warmup {
			e := math.Abs(float64(pv - tv))
			s.report.MaxError = max(s.report.MaxError, e)
			s.errorSum += e
			s.report.Samples++
		}
		delete(s.predicted, t)
		delete(s.truth, t)
		delete(s.sums, t)
	}
	s.evaluated = max(s.evaluated, rt)
}

// Report summarizes the run so far.
func (s *Session[P, I, T]) Report() *Report {
	r := s.report
	r.Elapsed = s.now
	if r.Samples > 0 {
		r.MeanError = s.errorSum / float64(r.Samples)
	}
	r.Desyncs = s.Client.Desyncs()
	r.AveragePing = s.Client.AveragePingLatency()
	r.AverageTotal = s.Client.AverageTotalLatency()
	r.RequestsSent = s.up.Sent
	r.RequestsLost = s.up.Lost
	r.Stats = s.data.Stats
	r.DesyncEvents = append([]lockstep.Desync(nil), s.report.DesyncEvents...)
	return &r
}

// Frame is a snapshot of every player for display.
func (s *Session[P, I, T]) Frame() Frame {
	f := Frame{
		Tick:    s.Server.TickID(),
		Desyncs: s.Client.Desyncs(),
		PingMs:  s.Client.AveragePingLatencyMillis(),
		Min:     s.model.Min,
		Max:     s.model.Max,
	}
	if s.Client.Loaded() {
		f.Lead = int(s.Client.Predicted.Context.TickID - s.Client.Real.Context.TickID)
	}
	for id, p := range s.Server.Real.Context.Players.All() {
		lane := Lane{
			Player: id,
			Local:  id == s.Player,
			Server: s.model.Position(p.Inner),
		}
		lane.Real, lane.Known = s.position(s.Client.Real, id)
		lane.Predicted, _ = s.position(s.Client.Predicted, id)
		lane.Interpolated, _ = s.position(s.Client.Interpolated, id)
		f.Lanes = append(f.Lanes, lane)
	}
	return f
}

func (s *Session[P, I, T]) position(l *lockstep.Lockstep[P, I, T], id lockstep.PlayerID) (float32, bool) {
	p, ok := l.Context.Player(id)
	if !ok {
		return 0, false
	}
	return s.model.Position(p), true
}

// Run steps a fresh session until the server has run sc.Ticks ticks.
func Run[P, I lockstep.Hashable, T any](m Model[P, I, T], sc Scenario, opts ...lockstep.Option) (*Report, error) {
	if sc.Ticks == 0 {
		return nil, fmt.Errorf("%w: no ticks to run", ErrInvalidScenario)
	}
	s, err := NewSession(m, sc, opts...)
	if err != nil {
		return nil, err
	}
	for int(s.Server.TickID()) < sc.Ticks {
		if err := s.Step(); err != nil {
			return nil, err
		}
	}
	return s.Report(), nil
}
