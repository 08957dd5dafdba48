// Package registry provides a global registry of lockstep worlds.
// Games register themselves in init() functions, allowing the CLI and the
// server to discover and run worlds without hardcoded dependencies.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/vovakirdan/lockstep/internal/lockstep"
	"github.com/vovakirdan/lockstep/internal/multiplayer"
	"github.com/vovakirdan/lockstep/internal/sim"
	"github.com/vovakirdan/lockstep/internal/transport/ws"
)

// Game erases the type parameters of a world so callers can drive it by ID.
type Game interface {
	// ID returns a unique identifier used on the command line and in URLs.
	ID() string

	// Title returns a human-readable name for display.
	Title() string

	// DefaultConfig is the engine configuration the world was tuned for.
	DefaultConfig() lockstep.Config

	// Simulate runs a scenario to completion on a virtual clock.
	Simulate(cfg lockstep.Config, sc sim.Scenario, opts ...lockstep.Option) (*sim.Report, error)

	// Watch prepares a scenario to be stepped frame by frame.
	Watch(cfg lockstep.Config, sc sim.Scenario, opts ...lockstep.Option) (sim.Viewer, error)

	// NewArena creates a server-side room for this world.
	NewArena(cfg lockstep.Config, name string, opts ...multiplayer.ArenaOption) multiplayer.Room

	// RunBot plays the world against a remote arena.
	RunBot(ctx context.Context, cfg lockstep.Config, bc ws.BotConfig) (ws.BotResult, error)
}

// GameInfo contains metadata about a registered game.
type GameInfo struct {
	ID    string
	Title string
}

// Def binds a world's types to the registry.
type Def[P, I lockstep.Hashable, T any] struct {
	ID     string
	Title  string
	Config lockstep.Config
	// Model builds the harness description for a given engine configuration.
	Model func(cfg lockstep.Config) sim.Model[P, I, T]
}

type defined[P, I lockstep.Hashable, T any] struct {
	def Def[P, I, T]
}

// Define turns a typed definition into a Game.
func Define[P, I lockstep.Hashable, T any](d Def[P, I, T]) Game {
	return defined[P, I, T]{def: d}
}

func (g defined[P, I, T]) ID() string { return g.def.ID }
func (g defined[P, I, T]) Title() string { return g.def.Title }
func (g defined[P, I, T]) DefaultConfig() lockstep.Config { return g.def.Config }

func (g defined[P, I, T]) Simulate(cfg lockstep.Config, sc sim.Scenario, opts ...lockstep.Option) (*sim.Report, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return sim.Run(g.def.Model(cfg), sc, opts...)
}

func (g defined[P, I, T]) Watch(cfg lockstep.Config, sc sim.Scenario, opts ...lockstep.Option) (sim.Viewer, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s, err := sim.NewSession(g.def.Model(cfg), sc, opts...)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (g defined[P, I, T]) NewArena(cfg lockstep.Config, name string, opts ...multiplayer.ArenaOption) multiplayer.Room {
	return multiplayer.NewArena(name, g.def.ID, g.def.Model(cfg), opts...)
}

func (g defined[P, I, T]) RunBot(ctx context.Context, cfg lockstep.Config, bc ws.BotConfig) (ws.BotResult, error) {
	return ws.RunBot(ctx, bc, g.def.Model(cfg))
}

var (
	games = make(map[string]Game)
	mu    sync.RWMutex
)

// ErrUnknownGame is returned by Create for unregistered IDs.
var ErrUnknownGame = errors.New("registry: unknown game")

// Register adds a game to the registry.
// Typically called from a game's init() function.
// Panics if a game with the same ID is already registered.
func Register(g Game) {
	mu.Lock()
	defer mu.Unlock()

	if _, exists := games[g.ID()]; exists {
		panic(fmt.Sprintf("registry: game %q already registered", g.ID()))
	}
	games[g.ID()] = g
}

// List returns information about all registered games, sorted by ID.
func List() []GameInfo {
	mu.RLock()
	defer mu.RUnlock()

	result := make([]GameInfo, 0, len(games))
	for id, g := range games {
		result = append(result, GameInfo{
			ID:    id,
			Title: g.Title(),
		})
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ID < result[j].ID
	})

	return result
}

// Create looks up a game by its ID.
// Returns an error if the game ID is not registered.
func Create(id string) (Game, error) {
	mu.RLock()
	defer mu.RUnlock()

	g, ok := games[id]
	if !ok {
		return nil, fmt.Errorf("%w %q", ErrUnknownGame, id)
	}
	return g, nil
}

// Exists checks if a game with the given ID is registered.
func Exists(id string) bool {
	mu.RLock()
	defer mu.RUnlock()

	_, ok := games[id]
	return ok
}

// RoomFactory builds arenas for the coordinator from registered games. The
// configure hook, if set, may override the engine configuration per game.
func RoomFactory(configure func(Game) lockstep.Config, opts ...multiplayer.ArenaOption) multiplayer.RoomFactory {
	return func(gameID, name string) (multiplayer.Room, error) {
		g, err := Create(gameID)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", multiplayer.ErrUnknownGame, gameID)
		}
		cfg := g.DefaultConfig()
		if configure != nil {
			cfg = configure(g)
		}
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return g.NewArena(cfg, name, opts...), nil
	}
}
