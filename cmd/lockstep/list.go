package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/lockstep/internal/registry"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all registered worlds",
	Long:  `Shows every world compiled into this binary with its default tick rate.`,
	Run:   runList,
}

func runList(cmd *cobra.Command, args []string) {
	games := registry.List()

	if len(games) == 0 {
		fmt.Println("No worlds available.")
		return
	}

	fmt.Println("Available worlds:")
	fmt.Println()

	maxIDLen := 2 // "ID" header
	for _, g := range games {
		maxIDLen = max(maxIDLen, len(g.ID))
	}

	fmt.Printf("  %-*s  %4s  %s\n", maxIDLen, "ID", "TPS", "Title")
	fmt.Printf("  %-*s  %4s  %s\n", maxIDLen, "--", "---", "-----")

	for _, info := range games {
		g := lookupGame(info.ID)
		fmt.Printf("  %-*s  %4d  %s\n", maxIDLen, info.ID, g.DefaultConfig().TPS, info.Title)
	}

	fmt.Println()
	fmt.Println("Run 'lockstep watch <id>' to watch a simulated session.")
}
