package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/lockstep/internal/config"
	"github.com/vovakirdan/lockstep/internal/lockstep"
	"github.com/vovakirdan/lockstep/internal/registry"
	"github.com/vovakirdan/lockstep/internal/sim"
	"github.com/vovakirdan/lockstep/internal/storage"
)

var (
	flagTicks       int
	flagBots        int
	flagFrames      int
	flagLatency     int
	flagJitter      int
	flagLoss        float64
	flagReliable    bool
	flagDiagnostics bool
	flagNoSave      bool
	flagStrict      bool
)

var simCmd = &cobra.Command{
	Use:   "sim <world>",
	Short: "Simulate a session over a lossy virtual link",
	Long: `Run one predicting client and any number of bots against a server on a
virtual clock, then report how far prediction drifted from the truth.

Flags override the network and simulation sections of the config file.
Every run is recorded in the database unless --no-save is given.

Examples:
  lockstep sim tracker
  lockstep sim pong --ticks 1000 --latency 150 --jitter 40 --loss 0.25
  lockstep sim pong --reliable --bots 3
  lockstep sim tracker --diagnostics --strict`,
	Args: cobra.ExactArgs(1),
	Run:  runSim,
}

func init() {
	addScenarioFlags(simCmd)
	simCmd.Flags().IntVar(&flagTicks, "ticks", 0, "Server ticks to simulate (0 = config value)")
	simCmd.Flags().BoolVar(&flagDiagnostics, "diagnostics", false, "Attach snapshots to ticks and diff them on desync")
	simCmd.Flags().BoolVar(&flagNoSave, "no-save", false, "Do not record the run")
	simCmd.Flags().BoolVar(&flagStrict, "strict", false, "Exit with status 2 if the run desynced")
}

// addScenarioFlags registers the link flags shared by sim and watch.
func addScenarioFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&flagBots, "bots", 0, "Server-side bots")
	cmd.Flags().IntVar(&flagFrames, "frames", 0, "Client frames per server tick")
	cmd.Flags().IntVar(&flagLatency, "latency", 0, "One-way latency in milliseconds")
	cmd.Flags().IntVar(&flagJitter, "jitter", 0, "Latency jitter in milliseconds")
	cmd.Flags().Float64Var(&flagLoss, "loss", 0, "Fraction of requests lost (0 to <1)")
	cmd.Flags().BoolVar(&flagReliable, "reliable", false, "Deliver requests in order without loss")
}

// scenarioFor merges the config file with the flags the user set.
func scenarioFor(cmd *cobra.Command, cfg config.Config) sim.Scenario {
	flags := cmd.Flags()
	if flags.Changed("bots") {
		cfg.Simulation.Bots = flagBots
	}
	if flags.Changed("frames") {
		cfg.Simulation.FramesPerTick = flagFrames
	}
	if flags.Changed("latency") {
		cfg.Network.LatencyMs = flagLatency
	}
	if flags.Changed("jitter") {
		cfg.Network.JitterMs = flagJitter
	}
	if flags.Changed("loss") {
		cfg.Network.Loss = flagLoss
	}
	if flags.Changed("reliable") {
		cfg.Network.Reliable = flagReliable
	}
	if flags.Lookup("ticks") != nil && flags.Changed("ticks") {
		cfg.Simulation.Ticks = flagTicks
	}
	return cfg.Scenario()
}

// engineFor returns a world's engine constants with the config overlay.
func engineFor(cfg config.Config) func(registry.Game) lockstep.Config {
	return func(g registry.Game) lockstep.Config {
		return cfg.Engine.Apply(g.DefaultConfig())
	}
}

func runSim(cmd *cobra.Command, args []string) {
	g := lookupGame(args[0])

	cfg, err := loadConfig()
	if err != nil {
		fatalf("%v", err)
	}
	logger, closer, err := newLogger(cfg, "sim", os.Stderr)
	if err != nil {
		fatalf("%v", err)
	}
	defer closer.Close()

	ecfg := engineFor(cfg)(g)
	if flagDiagnostics {
		ecfg.DesyncDiagnostics = true
	}
	sc := scenarioFor(cmd, cfg)

	started := time.Now()
	rep, err := g.Simulate(ecfg, sc, lockstep.WithLogger(logger.With("world", g.ID())))
	if err != nil {
		fatalf("simulation failed: %v", err)
	}
	wall := time.Since(started)

	printReport(g, ecfg, rep, wall)

	if !flagNoSave {
		if store := openStore(cfg); store != nil {
			id, saveErr := store.SaveReport(g.ID(), rep)
			store.Close()
			if saveErr != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not record run: %v\n", saveErr)
			} else {
				fmt.Printf("Recorded as run #%d\n", id)
			}
		}
	}

	if flagStrict && !rep.Consistent() {
		os.Exit(2)
	}
}

// printReport writes a human-readable summary of a run.
func printReport(g registry.Game, ecfg lockstep.Config, rep *sim.Report, wall time.Duration) {
	sc := rep.Scenario
	mode := "unreliable"
	if sc.Reliable {
		mode = "reliable"
	}
	tick := ecfg.TickPeriod()

	fmt.Printf("%s - %d ticks at %d TPS\n", g.Title(), rep.Ticks, ecfg.TPS)
	fmt.Println()
	fmt.Printf("  %-12s %v simulated in %v\n", "Time", rep.Elapsed, wall.Round(time.Millisecond))
	fmt.Printf("  %-12s %v ±%v, %.0f%% loss, %s, seed %d\n", "Link", sc.Latency, sc.Jitter, sc.Loss*100, mode, sc.Seed)
	fmt.Printf("  %-12s %d\n", "Bots", sc.Bots)
	fmt.Printf("  %-12s %d detected, %d against server record\n", "Desyncs", rep.Desyncs, rep.Mismatches)
	fmt.Printf("  %-12s %d ticks (limit %d)\n", "Max lead", rep.MaxLead, ecfg.MaxPrediction)
	fmt.Printf("  %-12s max %.4f, mean %.4f over %d samples\n", "Error", rep.MaxError, rep.MeanError, rep.Samples)
	fmt.Printf("  %-12s %v round trip, %v with buffering\n", "Latency",
		time.Duration(rep.AveragePing)*tick, time.Duration(rep.AverageTotal)*tick)
	fmt.Printf("  %-12s %d sent, %d lost\n", "Requests", rep.RequestsSent, rep.RequestsLost)
	st := rep.Stats
	fmt.Printf("  %-12s %d accepted, %d stale, %d duplicate, %d invalid, %d overflow, %d oversized\n", "Inputs",
		st.Accepted, st.Stale, st.Duplicate, st.Invalid, st.Overflow, st.Oversized)
	fmt.Printf("  %-12s %d infos, %d rewinds\n", "Events", rep.Infos, rep.Rewinds)

	for _, d := range rep.DesyncEvents {
		fmt.Printf("  desync at tick %d: expected %08x, got %08x\n", d.TickID, d.Expected, d.Actual)
		if d.Diff != "" {
			fmt.Println(d.Diff)
		}
	}

	fmt.Println()
	if rep.Consistent() {
		fmt.Println("Result: consistent")
	} else {
		fmt.Println("Result: DESYNCED")
	}
}

// saveDesync records a live desync, logging instead of failing.
func saveDesync(store *storage.Store, gameID, source string, d lockstep.Desync) {
	if store == nil {
		return
	}
	if _, err := store.SaveDesync(storage.NewDesyncRecord(gameID, source, d)); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not record desync: %v\n", err)
	}
}
