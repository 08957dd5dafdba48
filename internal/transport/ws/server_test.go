package ws_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/vovakirdan/lockstep/internal/games/tracker"
	"github.com/vovakirdan/lockstep/internal/multiplayer"
	"github.com/vovakirdan/lockstep/internal/transport/ws"
)

func newTestServer(t *testing.T) (*httptest.Server, *multiplayer.Coordinator) {
	t.Helper()
	coord := multiplayer.NewCoordinator(multiplayer.DefaultCoordinatorConfig(),
		func(gameID, name string) (multiplayer.Room, error) {
			if gameID != "tracker" {
				return nil, fmt.Errorf("%w: %s", multiplayer.ErrUnknownGame, gameID)
			}
			return multiplayer.NewArena(name, gameID, tracker.Model(tracker.DefaultConfig())), nil
		}, nil)
	srv := httptest.NewServer(ws.NewServer(coord, nil, 64).Handler())
	t.Cleanup(func() {
		coord.Stop()
		srv.Close()
	})
	return srv, coord
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestServer_BotPlaysOverWebsocket(t *testing.T) {
	srv, coord := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 1500*time.Millisecond)
	defer cancel()

	res, err := ws.RunBot(ctx, ws.BotConfig{
		URL:           wsURL(srv, "/arena/duel?game=tracker"),
		FramesPerTick: 2,
	}, tracker.Model(tracker.DefaultConfig()))
	if err != nil {
		t.Fatalf("RunBot: %v", err)
	}
	if res.Player == 0 {
		t.Fatal("bot never initialized")
	}
	if res.Ticks < 5 {
		t.Errorf("bot saw %d ticks in 1.5s at 10 tps", res.Ticks)
	}
	if res.Desyncs != 0 {
		t.Errorf("Desyncs = %d", res.Desyncs)
	}
	if res.Requests == 0 {
		t.Error("bot sent no requests")
	}

	stats := coord.Stats()
	if len(stats) != 1 || stats[0].Name != "duel" || stats[0].Metrics.Requests == 0 {
		t.Errorf("Stats = %+v", stats)
	}
}

func TestServer_ReliableBot(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	res, err := ws.RunBot(ctx, ws.BotConfig{
		URL:      wsURL(srv, "/arena/calm"),
		Reliable: true,
	}, tracker.Model(tracker.DefaultConfig()))
	if err != nil {
		t.Fatalf("RunBot: %v", err)
	}
	if res.Player == 0 || res.Desyncs != 0 {
		t.Errorf("result = %+v", res)
	}
}

func TestServer_UnknownGameRejected(t *testing.T) {
	srv, _ := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := ws.Dial(ctx, wsURL(srv, "/arena/x?game=chess")); err == nil {
		t.Fatal("dial into unknown game succeeded")
	}
}

func TestServer_HealthAndStats(t *testing.T) {
	srv, coord := newTestServer(t)
	if _, err := coord.GetOrCreate("idle", ""); err != nil {
		t.Fatal(err)
	}

	resp, err := http.Get(srv.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "ok" {
		t.Errorf("healthz = %d %q", resp.StatusCode, body)
	}

	resp, err = http.Get(srv.URL + "/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var stats struct {
		Sessions int `json:"sessions"`
		Arenas   []struct {
			Name string `json:"name"`
			Game string `json:"game"`
		} `json:"arenas"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if len(stats.Arenas) != 1 || stats.Arenas[0].Name != "idle" || stats.Arenas[0].Game != "tracker" {
		t.Errorf("stats = %+v", stats)
	}
}
