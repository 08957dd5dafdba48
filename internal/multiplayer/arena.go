package multiplayer

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"

	"github.com/vovakirdan/lockstep/internal/lockstep"
	"github.com/vovakirdan/lockstep/internal/sim"
	"github.com/vovakirdan/lockstep/internal/wire"
)

type arenaOptions struct {
	logger     *log.Logger
	maxClients int
	intake     int
	engine     []lockstep.Option
}

// ArenaOption configures an arena.
type ArenaOption func(*arenaOptions)

func WithArenaLogger(l *log.Logger) ArenaOption {
	return func(o *arenaOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithMaxClients caps the number of sessions. Bots do not count.
func WithMaxClients(n int) ArenaOption {
	return func(o *arenaOptions) {
		if n > 0 {
			o.maxClients = min(n, lockstep.ClientLimit)
		}
	}
}

// WithIntake sizes the request channel.
func WithIntake(n int) ArenaOption {
	return func(o *arenaOptions) {
		if n > 0 {
			o.intake = n
		}
	}
}

// WithEngineOptions passes options through to the lockstep server.
func WithEngineOptions(opts ...lockstep.Option) ArenaOption {
	return func(o *arenaOptions) {
		o.engine = append(o.engine, opts...)
	}
}

type member[I any] struct {
	session Session
	player  lockstep.PlayerID
	data    *lockstep.ClientData[I]
}

type inbound struct {
	session SessionID
	frame   []byte
}

// Arena is the actor owning one lockstep server. Join, Leave, Deliver and
// AddBot may be called from any goroutine; everything else happens on the
// goroutine calling Run or Step.
type Arena[P, I lockstep.Hashable, T any] struct {
	name   string
	game   string
	model  sim.Model[P, I, T]
	server *lockstep.Server[P, I, T]
	codec  *wire.Codec[P, I, T]
	logger *log.Logger

	maxClients int
	requests   chan inbound

	mu      sync.Mutex
	joined  map[SessionID]lockstep.PlayerID
	slots   map[lockstep.PlayerID]bool
	joins   []*member[I]
	leaves  []SessionID
	botReqs int

	// Owned by the tick goroutine.
	active map[SessionID]*member[I]
	bots   []lockstep.PlayerID

	tick            atomic.Uint32
	nbots           atomic.Int32
	joinCount       atomic.Uint64
	leaveCount      atomic.Uint64
	kicks           atomic.Uint64
	requestCount    atomic.Uint64
	droppedRequests atomic.Uint64
	badFrames       atomic.Uint64
	updatesSent     atomic.Uint64
	infos           atomic.Uint64
}

// NewArena creates an arena for a game. Nothing ticks until Run.
func NewArena[P, I lockstep.Hashable, T any](name, game string, m sim.Model[P, I, T], opts ...ArenaOption) *Arena[P, I, T] {
	o := arenaOptions{
		logger:     log.New(io.Discard),
		maxClients: 16,
		intake:     256,
	}
	for _, opt := range opts {
		opt(&o)
	}
	logger := o.logger.With("arena", name)
	engine := append([]lockstep.Option{lockstep.WithLogger(logger)}, o.engine...)
	return &Arena[P, I, T]{
		name:       name,
		game:       game,
		model:      m,
		server:     lockstep.NewServer(m.NewWorld(), engine...),
		codec:      wire.New(m.NewWorld),
		logger:     logger,
		maxClients: o.maxClients,
		requests:   make(chan inbound, o.intake),
		joined:     make(map[SessionID]lockstep.PlayerID),
		slots:      make(map[lockstep.PlayerID]bool),
		active:     make(map[SessionID]*member[I]),
	}
}

func (a *Arena[P, I, T]) Name() string { return a.name }
func (a *Arena[P, I, T]) Game() string { return a.game }

func (a *Arena[P, I, T]) Join(s Session) (lockstep.PlayerID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.joined[s.ID()]; ok {
		return 0, ErrAlreadyIn
	}
	if len(a.slots) >= a.maxClients {
		return 0, ErrArenaFull
	}
	var id lockstep.PlayerID
	for n := range a.maxClients {
		if candidate := lockstep.NthClient(n); !a.slots[candidate] {
			id = candidate
			break
		}
	}
	a.slots[id] = true
	a.joined[s.ID()] = id
	a.joins = append(a.joins, &member[I]{
		session: s,
		player:  id,
		data:    lockstep.NewClientData[I](),
	})
	return id, nil
}

func (a *Arena[P, I, T]) Leave(id SessionID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.leaves = append(a.leaves, id)
}

func (a *Arena[P, I, T]) Deliver(id SessionID, frame []byte) {
	select {
	case a.requests <- inbound{session: id, frame: frame}:
	default:
		a.droppedRequests.Add(1)
	}
}

// AddBot queues a server-side player driven by the model's brain.
func (a *Arena[P, I, T]) AddBot() (lockstep.PlayerID, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := int(a.nbots.Load()) + a.botReqs
	if lockstep.ClientLimit+1+n > 0xFFFF {
		return 0, ErrArenaFull
	}
	a.botReqs++
	return lockstep.NthBot(n), nil
}

func (a *Arena[P, I, T]) Members() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.joined)
}

func (a *Arena[P, I, T]) Metrics() Metrics {
	return Metrics{
		Tick:            a.tick.Load(),
		Members:         a.Members(),
		Bots:            int(a.nbots.Load()),
		Joins:           a.joinCount.Load(),
		Leaves:          a.leaveCount.Load(),
		Kicks:           a.kicks.Load(),
		Requests:        a.requestCount.Load(),
		DroppedRequests: a.droppedRequests.Load(),
		BadFrames:       a.badFrames.Load(),
		UpdatesSent:     a.updatesSent.Load(),
		Infos:           a.infos.Load(),
	}
}

// Run ticks the arena at the world's rate until ctx is done.
func (a *Arena[P, I, T]) Run(ctx context.Context) {
	ticker := time.NewTicker(a.server.Config().TickPeriod())
	defer ticker.Stop()
	a.logger.Info("arena started", "game", a.game, "tps", a.server.Config().TPS)

	for {
		select {
		case <-ticker.C:
			a.Step()
		case <-ctx.Done():
			for _, m := range a.active {
				m.session.Close()
			}
			a.logger.Info("arena stopped", "tick", a.server.TickID())
			return
		}
	}
}

// Step runs one tick. Only the goroutine that would otherwise call Run may
// call it.
func (a *Arena[P, I, T]) Step() {
	a.applyMembership()
	a.drainRequests()

	for _, id := range a.bots {
		a.server.Request(id, lockstep.BotRequest(a.model.Brain(id, a.server.Real)), nil, false)
	}

	a.server.Update(func(yield func(lockstep.PlayerID, *lockstep.ClientData[I]) bool) {
		for _, m := range a.active {
			if !yield(m.player, m.data) {
				return
			}
		}
	})

	// Every client must receive the same tick, so slow sessions are only
	// dropped once the tick is sealed. Their departure goes into the next one.
	var slow []SessionID
	for sid, m := range a.active {
		frame, err := a.codec.EncodeUpdate(a.server.ClientUpdate(m.player, m.data))
		if err != nil {
			a.logger.Error("encode update", "player", m.player, "err", err)
			continue
		}
		if !m.session.Send(frame) {
			slow = append(slow, sid)
			continue
		}
		a.updatesSent.Add(1)
	}

	a.server.PostUpdate(func(lockstep.Info) { a.infos.Add(1) })
	a.tick.Store(a.server.TickID())

	for _, sid := range slow {
		m := a.active[sid]
		a.kicks.Add(1)
		a.logger.Warn("session too slow, dropping", "session", sid, "player", m.player)
		m.session.Close()
		a.drop(sid)
	}
}

// applyMembership admits queued joins before processing leaves, so a
// session that joins and leaves within one tick never appears.
func (a *Arena[P, I, T]) applyMembership() {
	a.mu.Lock()
	joins, leaves, botReqs := a.joins, a.leaves, a.botReqs
	a.joins, a.leaves, a.botReqs = nil, nil, 0
	a.mu.Unlock()

	for _, m := range joins {
		a.active[m.session.ID()] = m
		a.server.SetPlayer(m.player, a.model.Spawn(m.player))
		a.joinCount.Add(1)
		a.logger.Info("player joined", "session", m.session.ID(), "player", m.player)
	}
	for range botReqs {
		id := lockstep.NthBot(len(a.bots))
		a.bots = append(a.bots, id)
		a.server.SetPlayer(id, a.model.Spawn(id))
		a.nbots.Add(1)
	}

	for _, sid := range leaves {
		a.drop(sid)
	}
	for sid, m := range a.active {
		select {
		case <-m.session.Done():
			a.drop(sid)
		default:
		}
	}
}

// drop removes a session's player at the next tick and frees its slot. Its
// ClientData goes with it, so a reconnect starts from a fresh
// initialization.
func (a *Arena[P, I, T]) drop(sid SessionID) {
	m, ok := a.active[sid]
	if !ok {
		return
	}
	delete(a.active, sid)
	a.server.PlayerLeft(m.player)
	a.leaveCount.Add(1)

	a.mu.Lock()
	delete(a.slots, m.player)
	delete(a.joined, sid)
	a.mu.Unlock()
	a.logger.Info("player left", "session", sid, "player", m.player)
}

func (a *Arena[P, I, T]) drainRequests() {
	for {
		select {
		case in := <-a.requests:
			m, ok := a.active[in.session]
			if !ok {
				continue
			}
			req, err := a.codec.DecodeRequest(in.frame)
			if err != nil {
				a.badFrames.Add(1)
				a.logger.Debug("bad request frame", "session", in.session, "err", err)
				continue
			}
			a.requestCount.Add(1)
			a.server.Request(m.player, req, m.data, m.session.Unreliable())
		default:
			return
		}
	}
}
