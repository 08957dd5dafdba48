package main

import (
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/lockstep/internal/config"
)

func TestArenaURL(t *testing.T) {
	tests := []struct {
		base, arena, world string
		want               string
	}{
		{"ws://localhost:8080", "lobby", "pong", "ws://localhost:8080/arena/lobby?game=pong"},
		{"ws://host/", "my room", "tracker", "ws://host/arena/my%20room?game=tracker"},
	}
	for _, tt := range tests {
		if got := arenaURL(tt.base, tt.arena, tt.world); got != tt.want {
			t.Errorf("arenaURL(%q, %q, %q) = %q, want %q", tt.base, tt.arena, tt.world, got, tt.want)
		}
	}
}

func TestPortOf(t *testing.T) {
	for addr, want := range map[string]string{
		":2222":          "2222",
		"0.0.0.0:22":     "22",
		"[::1]:2022":     "2022",
		"no-port-at-all": "no-port-at-all",
	} {
		if got := portOf(addr); got != want {
			t.Errorf("portOf(%q) = %q, want %q", addr, got, want)
		}
	}
}

func TestScenarioForOnlyAppliesChangedFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "test"}
	addScenarioFlags(cmd)
	if err := cmd.Flags().Parse([]string{"--loss", "0.3", "--bots", "4"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	sc := scenarioFor(cmd, cfg)
	if sc.Loss != 0.3 || sc.Bots != 4 {
		t.Errorf("flags not applied: %+v", sc)
	}
	if sc.Latency != time.Duration(cfg.Network.LatencyMs)*time.Millisecond || sc.Ticks != cfg.Simulation.Ticks {
		t.Errorf("config values lost: %+v", sc)
	}
}

func TestEngineForAppliesOverlay(t *testing.T) {
	cfg := config.Default()
	cfg.Engine.MaxPrediction = 7
	g := lookupGame("tracker")

	got := engineFor(cfg)(g)
	if got.MaxPrediction != 7 || got.TPS != g.DefaultConfig().TPS {
		t.Errorf("engine = %+v", got)
	}
}
