package multiplayer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

// CoordinatorConfig holds configuration for the coordinator.
type CoordinatorConfig struct {
	EmptyTimeout  time.Duration // How long an arena may stay empty before it stops
	CleanupPeriod time.Duration // How often to look for empty arenas
	DefaultGame   string        // Game for arenas created without one
}

// DefaultCoordinatorConfig returns sensible defaults.
func DefaultCoordinatorConfig() CoordinatorConfig {
	return CoordinatorConfig{
		EmptyTimeout:  2 * time.Minute,
		CleanupPeriod: 30 * time.Second,
		DefaultGame:   "tracker",
	}
}

// RoomFactory creates the arena for a game.
type RoomFactory func(gameID, name string) (Room, error)

type arenaEntry struct {
	room       Room
	cancel     context.CancelFunc
	done       chan struct{}
	emptySince time.Time
}

// ArenaStats is one row of Coordinator.Stats.
type ArenaStats struct {
	Name    string  `json:"name"`
	Game    string  `json:"game"`
	Metrics Metrics `json:"metrics"`
}

// Coordinator owns every running arena, keyed by name.
type Coordinator struct {
	config  CoordinatorConfig
	factory RoomFactory
	logger  *log.Logger

	mu      sync.Mutex
	arenas  map[string]*arenaEntry
	ctx     context.Context
	stop    context.CancelFunc
	stopped bool
}

// NewCoordinator creates a coordinator. A nil logger discards output.
func NewCoordinator(cfg CoordinatorConfig, factory RoomFactory, logger *log.Logger) *Coordinator {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	ctx, stop := context.WithCancel(context.Background())
	return &Coordinator{
		config:  cfg,
		factory: factory,
		logger:  logger,
		arenas:  make(map[string]*arenaEntry),
		ctx:     ctx,
		stop:    stop,
	}
}

// Start begins the cleanup loop.
func (c *Coordinator) Start() {
	go c.cleanupLoop()
}

// Stop shuts down every arena and waits for them to finish.
func (c *Coordinator) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	entries := make([]*arenaEntry, 0, len(c.arenas))
	for _, e := range c.arenas {
		entries = append(entries, e)
	}
	c.arenas = make(map[string]*arenaEntry)
	c.mu.Unlock()

	c.stop()
	for _, e := range entries {
		<-e.done
	}
}

// GetOrCreate returns the arena called name, starting it with gameID if it
// does not exist. An empty gameID means the existing arena's game, or the
// default game for a new one.
func (c *Coordinator) GetOrCreate(name, gameID string) (Room, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, errors.New("multiplayer: empty arena name")
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stopped {
		return nil, ErrStopped
	}

	if e, ok := c.arenas[name]; ok {
		if gameID != "" && gameID != e.room.Game() {
			return nil, fmt.Errorf("%w: %q runs %s", ErrGameMismatch, name, e.room.Game())
		}
		return e.room, nil
	}

	if gameID == "" {
		gameID = c.config.DefaultGame
	}
	room, err := c.factory(gameID, name)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(c.ctx)
	e := &arenaEntry{room: room, cancel: cancel, done: make(chan struct{})}
	c.arenas[name] = e
	go func() {
		defer close(e.done)
		room.Run(ctx)
	}()
	c.logger.Info("arena created", "arena", name, "game", gameID)
	return room, nil
}

// Lookup returns a running arena.
func (c *Coordinator) Lookup(name string) (Room, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.arenas[name]
	if !ok {
		return nil, false
	}
	return e.room, true
}

// Stats lists every arena sorted by name.
func (c *Coordinator) Stats() []ArenaStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ArenaStats, 0, len(c.arenas))
	for name, e := range c.arenas {
		out = append(out, ArenaStats{Name: name, Game: e.room.Game(), Metrics: e.room.Metrics()})
	}
	slices.SortFunc(out, func(a, b ArenaStats) int { return strings.Compare(a.Name, b.Name) })
	return out
}

func (c *Coordinator) ArenaCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.arenas)
}

func (c *Coordinator) cleanupLoop() {
	ticker := time.NewTicker(c.config.CleanupPeriod)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			c.Sweep(now)
		case <-c.ctx.Done():
			return
		}
	}
}

// Sweep stops arenas that have had no members for EmptyTimeout as of now
// and returns how many it stopped.
func (c *Coordinator) Sweep(now time.Time) int {
	c.mu.Lock()
	var expired []*arenaEntry
	for name, e := range c.arenas {
		if e.room.Members() > 0 {
			e.emptySince = time.Time{}
			continue
		}
		if e.emptySince.IsZero() {
			e.emptySince = now
		}
		if now.Sub(e.emptySince) >= c.config.EmptyTimeout {
			expired = append(expired, e)
			delete(c.arenas, name)
			c.logger.Info("arena expired", "arena", name)
		}
	}
	c.mu.Unlock()

	for _, e := range expired {
		e.cancel()
		<-e.done
	}
	return len(expired)
}
