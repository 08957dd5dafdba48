package multiplayer_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/vovakirdan/lockstep/internal/games/tracker"
	"github.com/vovakirdan/lockstep/internal/multiplayer"
)

func trackerFactory(gameID, name string) (multiplayer.Room, error) {
	if gameID != "tracker" {
		return nil, fmt.Errorf("%w: %s", multiplayer.ErrUnknownGame, gameID)
	}
	return multiplayer.NewArena(name, gameID, tracker.Model(tracker.DefaultConfig())), nil
}

func newCoordinator(t *testing.T) *multiplayer.Coordinator {
	t.Helper()
	cfg := multiplayer.DefaultCoordinatorConfig()
	cfg.EmptyTimeout = time.Minute
	c := multiplayer.NewCoordinator(cfg, trackerFactory, nil)
	t.Cleanup(c.Stop)
	return c
}

func TestCoordinator_GetOrCreate(t *testing.T) {
	c := newCoordinator(t)

	a, err := c.GetOrCreate("lobby", "")
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if a.Game() != "tracker" || a.Name() != "lobby" {
		t.Errorf("arena = %s/%s", a.Name(), a.Game())
	}
	again, err := c.GetOrCreate("lobby", "tracker")
	if err != nil || again != a {
		t.Fatalf("second GetOrCreate returned a different arena: %v", err)
	}
	if _, err := c.GetOrCreate("lobby", "pong"); !errors.Is(err, multiplayer.ErrGameMismatch) {
		t.Errorf("mismatched game err = %v", err)
	}
	if _, err := c.GetOrCreate("other", "chess"); !errors.Is(err, multiplayer.ErrUnknownGame) {
		t.Errorf("unknown game err = %v", err)
	}
	if _, err := c.GetOrCreate("  ", ""); err == nil {
		t.Error("blank name accepted")
	}
	if _, ok := c.Lookup("lobby"); !ok {
		t.Error("Lookup missed running arena")
	}
}

func TestCoordinator_StatsSorted(t *testing.T) {
	c := newCoordinator(t)
	for _, name := range []string{"b", "c", "a"} {
		if _, err := c.GetOrCreate(name, ""); err != nil {
			t.Fatal(err)
		}
	}
	stats := c.Stats()
	if len(stats) != 3 || stats[0].Name != "a" || stats[2].Name != "c" {
		t.Fatalf("Stats = %+v", stats)
	}
}

func TestCoordinator_SweepStopsEmptyArenas(t *testing.T) {
	c := newCoordinator(t)
	empty, _ := c.GetOrCreate("empty", "")
	busy, _ := c.GetOrCreate("busy", "")
	if _, err := busy.Join(multiplayer.NewChannelSession("s", 1024, true)); err != nil {
		t.Fatal(err)
	}

	now := time.Now()
	if n := c.Sweep(now); n != 0 {
		t.Fatalf("first sweep stopped %d arenas", n)
	}
	if n := c.Sweep(now.Add(2 * time.Minute)); n != 1 {
		t.Fatalf("sweep after timeout stopped %d arenas, want 1", n)
	}
	if _, ok := c.Lookup(empty.Name()); ok {
		t.Error("empty arena still registered")
	}
	if _, ok := c.Lookup("busy"); !ok {
		t.Error("busy arena was stopped")
	}
}

func TestCoordinator_StopRejectsNewArenas(t *testing.T) {
	c := newCoordinator(t)
	if _, err := c.GetOrCreate("x", ""); err != nil {
		t.Fatal(err)
	}
	c.Stop()
	if c.ArenaCount() != 0 {
		t.Errorf("ArenaCount = %d after Stop", c.ArenaCount())
	}
	if _, err := c.GetOrCreate("y", ""); !errors.Is(err, multiplayer.ErrStopped) {
		t.Errorf("GetOrCreate after Stop err = %v", err)
	}
}
