package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vovakirdan/lockstep/internal/core"
)

// colorStyles maps core.Color to lipgloss styles.
var colorStyles = map[core.Color]lipgloss.Style{
	core.ColorDefault:      lipgloss.NewStyle(),
	core.ColorServer:       lipgloss.NewStyle().Foreground(lipgloss.Color("10")),
	core.ColorReal:         lipgloss.NewStyle().Foreground(lipgloss.Color("12")),
	core.ColorPredicted:    lipgloss.NewStyle().Foreground(lipgloss.Color("11")),
	core.ColorInterpolated: lipgloss.NewStyle().Foreground(lipgloss.Color("15")).Bold(true),
	core.ColorLocal:        lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
	core.ColorAlert:        lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	core.ColorMuted:        lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
}

// RenderScreen converts a Screen buffer to a styled string for display.
// Adjacent cells with the same color share one style run.
func RenderScreen(s *core.Screen) string {
	var sb strings.Builder
	sb.Grow(s.Width()*s.Height()*2 + s.Height())

	for y := range s.Height() {
		if y > 0 {
			sb.WriteRune('\n')
		}

		x := 0
		for x < s.Width() {
			startColor := s.GetCell(x, y).Color

			var run strings.Builder
			for x < s.Width() {
				cell := s.GetCell(x, y)
				if cell.Color != startColor {
					break
				}
				run.WriteRune(cell.Rune)
				x++
			}

			style, ok := colorStyles[startColor]
			if !ok {
				style = colorStyles[core.ColorDefault]
			}
			sb.WriteString(style.Render(run.String()))
		}
	}
	return sb.String()
}
