package main

import (
	"fmt"
	"io"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/vovakirdan/lockstep/internal/lockstep"
	"github.com/vovakirdan/lockstep/internal/platform/tui"
)

var (
	flagStopAt int
	flagSave   bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <world>",
	Short: "Watch a simulated session live",
	Long: `Play a simulated session in real time and draw every player's position
as the server, the client's confirmed state, the client's prediction and
the interpolated view see it.

Controls:
  Space/P    - Pause
  N/Right    - Step one frame while paused
  +/-        - Faster/slower
  ?          - More keys
  Q/Ctrl+C   - Quit

Logs go to log.file from the config; without one they are discarded.

Examples:
  lockstep watch tracker
  lockstep watch pong --bots 1 --latency 200 --loss 0.3
  lockstep watch tracker --stop-at 500 --save`,
	Args: cobra.ExactArgs(1),
	Run:  runWatch,
}

func init() {
	addScenarioFlags(watchCmd)
	watchCmd.Flags().IntVar(&flagStopAt, "stop-at", 0, "Stop at this server tick (0 = run until quit)")
	watchCmd.Flags().BoolVar(&flagSave, "save", false, "Record the run when the view closes")
}

func runWatch(cmd *cobra.Command, args []string) {
	g := lookupGame(args[0])

	cfg, err := loadConfig()
	if err != nil {
		fatalf("%v", err)
	}
	// The terminal belongs to the view.
	logger, closer, err := newLogger(cfg, "watch", io.Discard)
	if err != nil {
		fatalf("%v", err)
	}
	defer closer.Close()

	ecfg := engineFor(cfg)(g)
	sc := scenarioFor(cmd, cfg)
	v, err := g.Watch(ecfg, sc, lockstep.WithLogger(logger.With("world", g.ID())))
	if err != nil {
		fatalf("%v", err)
	}

	width, height := 80, 24 // Defaults
	if w, h, termErr := term.GetSize(int(os.Stdout.Fd())); termErr == nil {
		width = w
		height = h
	}

	started := time.Now()
	model := tui.NewWatchModel(g.Title(), v, width, height, uint32(max(flagStopAt, 0)))
	final, err := tea.NewProgram(model, tea.WithAltScreen()).Run()
	if err != nil {
		fatalf("running view: %v", err)
	}

	wm, ok := final.(tui.WatchModel)
	if !ok {
		return
	}
	if wm.Err() != nil {
		fmt.Fprintf(os.Stderr, "Session stopped: %v\n", wm.Err())
	}
	rep := wm.Report()
	if rep.Ticks == 0 {
		return
	}
	printReport(g, ecfg, rep, time.Since(started))

	if flagSave {
		if store := openStore(cfg); store != nil {
			defer store.Close()
			if id, saveErr := store.SaveReport(g.ID(), rep); saveErr == nil {
				fmt.Printf("Recorded as run #%d\n", id)
			} else {
				fmt.Fprintf(os.Stderr, "Warning: could not record run: %v\n", saveErr)
			}
		}
	}
}
