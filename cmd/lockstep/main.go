// lockstep runs, watches and serves deterministic lockstep worlds.
//
// Usage:
//
//	lockstep list              - List registered worlds
//	lockstep sim <world>       - Simulate a session over a lossy virtual link
//	lockstep watch <world>     - Watch a simulated session live in the terminal
//	lockstep serve             - Serve arenas over websockets and spectating over SSH
//	lockstep bot <world>       - Play a world against a running server
//	lockstep runs [world]      - Show recorded simulation runs
//	lockstep desyncs           - Show recorded desyncs
//
// Global flags:
//
//	--config <path> - Config file (default: search ~/.lockstep, ./configs, embedded)
//	--db <path>     - Database path (default: server.database_path)
//	--seed <value>  - Seed for simulated links (default: simulation.seed)
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/vovakirdan/lockstep/internal/config"
	"github.com/vovakirdan/lockstep/internal/logging"
	"github.com/vovakirdan/lockstep/internal/registry"
	"github.com/vovakirdan/lockstep/internal/storage"

	// Import worlds to register them
	_ "github.com/vovakirdan/lockstep/internal/games/pong"
	_ "github.com/vovakirdan/lockstep/internal/games/tracker"
)

var (
	// Global flags
	flagConfig string
	flagDBPath string
	flagSeed   uint64
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "lockstep",
	Short: "Deterministic lockstep worlds with client prediction",
	Long: `lockstep runs server-authoritative simulations where clients predict
ahead of the server and roll back when the server disagrees.

Available commands:
  list     - Show all registered worlds
  sim      - Simulate a session and report convergence
  watch    - Watch a simulated session in the terminal
  serve    - Serve arenas over websockets (and SSH spectating)
  bot      - Connect a bot to a running server
  runs     - Show recorded simulation runs
  desyncs  - Show recorded desyncs

Examples:
  lockstep list
  lockstep sim pong --loss 0.2 --latency 120
  lockstep watch tracker --bots 3
  lockstep serve --addr :8080 --ssh :2222
  lockstep bot pong --arena lobby --duration 30s`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to config YAML")
	rootCmd.PersistentFlags().StringVar(&flagDBPath, "db", "", "Path to the runs database")
	rootCmd.PersistentFlags().Uint64Var(&flagSeed, "seed", 0, "Seed for simulated links (0 = config value)")

	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(simCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(botCmd)
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(desyncsCmd)
}

// loadConfig reads the config file and applies global flag overrides.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return cfg, err
	}
	if flagDBPath != "" {
		cfg.Server.DatabasePath = flagDBPath
	}
	if flagSeed != 0 {
		cfg.Simulation.Seed = flagSeed
	}
	return cfg, nil
}

// newLogger builds a logger from the log section. The closer must be closed
// on exit when logging to a file.
func newLogger(cfg config.Config, prefix string, stderr io.Writer) (*log.Logger, io.Closer, error) {
	return logging.New(logging.Options{
		Level:      cfg.Log.Level,
		Prefix:     prefix,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		JSON:       cfg.Log.JSON,
		Stderr:     stderr,
	})
}

// lookupGame resolves a world id or exits with a hint.
func lookupGame(id string) registry.Game {
	g, err := registry.Create(id)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: unknown world %q\n", id)
		fmt.Fprintln(os.Stderr, "Run 'lockstep list' to see available worlds.")
		os.Exit(1)
	}
	return g
}

// openStore opens the runs database, returning nil with a warning on failure
// so commands still work without it.
func openStore(cfg config.Config) *storage.Store {
	store, err := storage.Open(cfg.Server.DatabasePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not open runs database: %v\n", err)
		return nil
	}
	return store
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
