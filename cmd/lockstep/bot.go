package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/lockstep/internal/lockstep"
	"github.com/vovakirdan/lockstep/internal/transport/ws"
)

var (
	flagServerURL   string
	flagArena       string
	flagDuration    time.Duration
	flagBotCount    int
	flagBotReliable bool
	flagBotFrames   int
)

var botCmd = &cobra.Command{
	Use:   "bot <world>",
	Short: "Play a world against a running server",
	Long: `Connect one or more predicting clients to an arena and let the world's
brain play. Desyncs the clients detect are recorded in the database.

Examples:
  lockstep bot tracker
  lockstep bot pong --arena duel --count 2 --duration 1m
  lockstep bot tracker --url ws://game.example.com:8080 --reliable`,
	Args: cobra.ExactArgs(1),
	Run:  runBot,
}

func init() {
	botCmd.Flags().StringVar(&flagServerURL, "url", "ws://localhost:8080", "Server base URL")
	botCmd.Flags().StringVar(&flagArena, "arena", "lobby", "Arena to join")
	botCmd.Flags().DurationVar(&flagDuration, "duration", 0, "How long to play (0 = until interrupted)")
	botCmd.Flags().IntVar(&flagBotCount, "count", 1, "Number of bots to connect")
	botCmd.Flags().BoolVar(&flagBotReliable, "reliable", false, "Declare the connection reliable")
	botCmd.Flags().IntVar(&flagBotFrames, "frames", 0, "Client frames per tick (default: simulation.frames_per_tick)")
}

// arenaURL builds the websocket URL of an arena for a world.
func arenaURL(base, arena, world string) string {
	return fmt.Sprintf("%s/arena/%s?game=%s",
		strings.TrimRight(base, "/"), url.PathEscape(arena), url.QueryEscape(world))
}

func runBot(cmd *cobra.Command, args []string) {
	g := lookupGame(args[0])

	cfg, err := loadConfig()
	if err != nil {
		fatalf("%v", err)
	}
	logger, closer, err := newLogger(cfg, "bot", os.Stderr)
	if err != nil {
		fatalf("%v", err)
	}
	defer closer.Close()

	store := openStore(cfg)
	if store != nil {
		defer store.Close()
	}

	frames := cfg.Simulation.FramesPerTick
	if flagBotFrames > 0 {
		frames = flagBotFrames
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if flagDuration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, flagDuration)
		defer cancel()
	}

	target := arenaURL(flagServerURL, flagArena, g.ID())
	ecfg := engineFor(cfg)(g)

	type outcome struct {
		result ws.BotResult
		err    error
	}
	results := make([]outcome, max(flagBotCount, 1))
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			botLogger := logger.With("bot", i)
			res, err := g.RunBot(ctx, ecfg, ws.BotConfig{
				URL:           target,
				Reliable:      flagBotReliable,
				FramesPerTick: frames,
				Logger:        botLogger,
				Options: []lockstep.Option{
					lockstep.WithDesyncHandler(func(d lockstep.Desync) {
						botLogger.Warn("desync", "tick", d.TickID, "expected", d.Expected, "actual", d.Actual)
						saveDesync(store, g.ID(), "bot", d)
					}),
				},
			})
			results[i] = outcome{res, err}
		}()
	}
	fmt.Printf("Playing %s in %s with %d bot(s). Press Ctrl+C to stop.\n", g.Title(), target, len(results))
	wg.Wait()

	failed := false
	fmt.Println()
	fmt.Printf("  %-4s  %-8s  %8s  %8s  %8s  %8s  %s\n", "Bot", "Player", "Ticks", "Desyncs", "Ping", "Requests", "Error")
	for i, o := range results {
		errText := ""
		if o.err != nil {
			errText = o.err.Error()
			failed = true
		}
		fmt.Printf("  %-4d  %-8s  %8d  %8d  %6dms  %8d  %s\n", i, o.result.Player, o.result.Ticks,
			o.result.Desyncs, o.result.PingMs, o.result.Requests, errText)
	}
	if failed {
		os.Exit(1)
	}
}
