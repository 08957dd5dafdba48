package main

import (
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/lockstep/internal/storage"
)

var (
	flagLimit     int
	flagRunStats  bool
	flagClearRuns bool
	flagRunID     int64
	flagShowDiff  bool
)

var runsCmd = &cobra.Command{
	Use:   "runs [world]",
	Short: "Show recorded simulation runs",
	Long: `Display the most recent simulation runs, optionally for one world.

Examples:
  lockstep runs
  lockstep runs pong --limit 50
  lockstep runs --stats
  lockstep runs tracker --clear`,
	Args: cobra.MaximumNArgs(1),
	Run:  runRuns,
}

var desyncsCmd = &cobra.Command{
	Use:   "desyncs",
	Short: "Show recorded desyncs",
	Long: `Display desyncs detected by simulations and bots, newest first.

Examples:
  lockstep desyncs
  lockstep desyncs --run 12 --diff`,
	Args: cobra.NoArgs,
	Run:  runDesyncs,
}

func init() {
	runsCmd.Flags().IntVar(&flagLimit, "limit", 20, "Maximum rows to show")
	runsCmd.Flags().BoolVar(&flagRunStats, "stats", false, "Show per-world totals instead of runs")
	runsCmd.Flags().BoolVar(&flagClearRuns, "clear", false, "Delete the runs of the given world")

	desyncsCmd.Flags().IntVar(&flagLimit, "limit", 20, "Maximum rows to show")
	desyncsCmd.Flags().Int64Var(&flagRunID, "run", 0, "Only desyncs of this run")
	desyncsCmd.Flags().BoolVar(&flagShowDiff, "diff", false, "Print state diffs when recorded")
}

// mustOpenStore opens the runs database or exits.
func mustOpenStore() *storage.Store {
	cfg, err := loadConfig()
	if err != nil {
		fatalf("%v", err)
	}
	store, err := storage.Open(cfg.Server.DatabasePath)
	if err != nil {
		fatalf("opening runs database: %v", err)
	}
	return store
}

func runRuns(cmd *cobra.Command, args []string) {
	gameID := ""
	if len(args) == 1 {
		gameID = args[0]
		lookupGame(gameID)
	}

	store := mustOpenStore()
	defer store.Close()

	switch {
	case flagClearRuns:
		if gameID == "" {
			fatalf("--clear needs a world")
		}
		if err := store.ClearRuns(gameID); err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("Cleared runs of %s.\n", gameID)
	case flagRunStats:
		printRunStats(store)
	default:
		printRuns(store, gameID)
	}
}

func printRuns(store *storage.Store, gameID string) {
	runs, err := store.RecentRuns(gameID, flagLimit)
	if err != nil {
		fatalf("retrieving runs: %v", err)
	}
	if len(runs) == 0 {
		fmt.Println("No runs recorded yet.")
		fmt.Println()
		fmt.Println("Run 'lockstep sim <world>' to record one.")
		return
	}

	fmt.Printf("  %-5s  %-8s  %6s  %-14s  %4s  %7s  %4s  %9s  %s\n",
		"Run", "World", "Ticks", "Link", "Bots", "Desyncs", "Lead", "MaxError", "Date")
	fmt.Printf("  %-5s  %-8s  %6s  %-14s  %4s  %7s  %4s  %9s  %s\n",
		"---", "-----", "-----", "----", "----", "-------", "----", "--------", "----")
	for _, r := range runs {
		link := fmt.Sprintf("%dms/%.0f%%", r.LatencyMs, r.Loss*100)
		if r.Reliable {
			link = fmt.Sprintf("%dms/rel", r.LatencyMs)
		}
		fmt.Printf("  %-5d  %-8s  %6d  %-14s  %4d  %7d  %4d  %9.4f  %s\n",
			r.ID, r.GameID, r.Ticks, link, r.Bots, r.Desyncs+r.Mismatches, r.MaxLead, r.MaxError,
			r.CreatedAt.Format("2006-01-02 15:04"))
	}
}

func printRunStats(store *storage.Store) {
	stats, err := store.GetAllRunStats()
	if err != nil {
		fatalf("retrieving stats: %v", err)
	}
	if len(stats) == 0 {
		fmt.Println("No runs recorded yet.")
		return
	}
	ids := make([]string, 0, len(stats))
	for id := range stats {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fmt.Printf("  %-8s  %5s  %7s  %10s  %10s  %s\n", "World", "Runs", "Desyncs", "WorstError", "MeanError", "Last run")
	fmt.Printf("  %-8s  %5s  %7s  %10s  %10s  %s\n", "-----", "----", "-------", "----------", "---------", "--------")
	for _, id := range ids {
		s := stats[id]
		fmt.Printf("  %-8s  %5d  %7d  %10.4f  %10.4f  %s\n",
			id, s.Runs, s.Desyncs, s.WorstError, s.AverageError, s.LastRun.Format("2006-01-02 15:04"))
	}
}

func runDesyncs(cmd *cobra.Command, args []string) {
	store := mustOpenStore()
	defer store.Close()

	var (
		desyncs []storage.DesyncRecord
		err     error
	)
	if flagRunID != 0 {
		run, runErr := store.RunByID(flagRunID)
		if runErr != nil {
			fatalf("%v", runErr)
		}
		if run == nil {
			fmt.Fprintf(os.Stderr, "Error: no run #%d\n", flagRunID)
			os.Exit(1)
		}
		desyncs, err = store.DesyncsForRun(flagRunID)
	} else {
		desyncs, err = store.RecentDesyncs(flagLimit)
	}
	if err != nil {
		fatalf("retrieving desyncs: %v", err)
	}

	if len(desyncs) == 0 {
		fmt.Println("No desyncs recorded.")
		return
	}

	fmt.Printf("  %-5s  %-8s  %-6s  %8s  %-8s  %-8s  %s\n", "Run", "World", "Source", "Tick", "Expected", "Actual", "Date")
	fmt.Printf("  %-5s  %-8s  %-6s  %8s  %-8s  %-8s  %s\n", "---", "-----", "------", "----", "--------", "------", "----")
	for _, d := range desyncs {
		run := "-"
		if d.RunID != 0 {
			run = fmt.Sprint(d.RunID)
		}
		fmt.Printf("  %-5s  %-8s  %-6s  %8d  %08x  %08x  %s\n",
			run, d.GameID, d.Source, d.TickID, d.Expected, d.Actual, d.CreatedAt.Format("2006-01-02 15:04"))
		if flagShowDiff && d.Diff != "" {
			fmt.Println(d.Diff)
		}
	}
}
