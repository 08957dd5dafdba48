// Package tui renders a running simulation in the terminal, locally through
// Bubble Tea or remotely over SSH.
package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// TickMsg is sent to advance the watched session by one frame.
type TickMsg time.Time

// tickCmd returns a Bubble Tea command that sends one TickMsg after period.
func tickCmd(period time.Duration) tea.Cmd {
	return tea.Tick(period, func(t time.Time) tea.Msg {
		return TickMsg(t)
	})
}
