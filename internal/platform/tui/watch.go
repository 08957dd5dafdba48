package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/vovakirdan/lockstep/internal/core"
	"github.com/vovakirdan/lockstep/internal/sim"
)

// Watch layout constants
const (
	minWatchWidth = 30 // Narrowest terminal the lanes can be drawn in
	labelWidth    = 8  // Columns reserved for the player label
	minSpeed      = -3 // Slowest: one step every 8 frames
	maxSpeed      = 4  // Fastest: 16 steps per frame
)

// WatchModel is the Bubble Tea model that plays a simulated session in real
// time and draws each player's position as every simulation sees it.
type WatchModel struct {
	title  string
	viewer sim.Viewer
	frame  sim.Frame
	screen *core.Screen
	help   help.Model
	keys   WatchKeyMap
	width  int
	height int
	limit  uint32 // Stop stepping once this tick is reached; 0 runs forever
	speed  int    // Steps per frame as a power of two
	skip   int    // Frames waited so far when speed is negative
	steps  int
	paused bool
	err    error

	quitting bool
}

// NewWatchModel creates a watch view over v. A non-zero limit pauses the view
// for good once the server reaches that tick.
func NewWatchModel(title string, v sim.Viewer, width, height int, limit uint32) WatchModel {
	h := help.New()
	h.Width = width
	return WatchModel{
		title:  title,
		viewer: v,
		frame:  v.Frame(),
		screen: core.NewScreen(width, 0),
		help:   h,
		keys:   DefaultWatchKeyMap(),
		width:  width,
		height: height,
		limit:  limit,
	}
}

// Init starts the frame loop.
func (m WatchModel) Init() tea.Cmd {
	return tickCmd(m.viewer.FramePeriod())
}

// Update handles messages.
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		return m, nil
	case TickMsg:
		if !m.paused {
			m.advance()
		}
		return m, tickCmd(m.viewer.FramePeriod())
	}
	return m, nil
}

func (m WatchModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Pause):
		if !m.Finished() {
			m.paused = !m.paused
		}
	case key.Matches(msg, m.keys.Step):
		if m.paused {
			m.step()
		}
	case key.Matches(msg, m.keys.Faster):
		m.speed = min(m.speed+1, maxSpeed)
		m.skip = 0
	case key.Matches(msg, m.keys.Slower):
		m.speed = max(m.speed-1, minSpeed)
		m.skip = 0
	case key.Matches(msg, m.keys.Help):
		m.help.ShowAll = !m.help.ShowAll
	}
	return m, nil
}

// advance runs the steps one frame is worth at the current speed.
func (m *WatchModel) advance() {
	if m.speed < 0 {
		m.skip++
		if m.skip < 1<<-m.speed {
			return
		}
		m.skip = 0
		m.step()
		return
	}
	for range 1 << m.speed {
		if !m.step() {
			return
		}
	}
}

// step advances the session once. It returns false when the view stopped.
func (m *WatchModel) step() bool {
	if m.err != nil || m.Finished() {
		return false
	}
	if err := m.viewer.Step(); err != nil {
		m.err = err
		m.paused = true
		return false
	}
	m.steps++
	m.frame = m.viewer.Frame()
	if m.Finished() {
		m.paused = true
		return false
	}
	return true
}

// Finished reports whether the tick limit has been reached.
func (m WatchModel) Finished() bool {
	return m.limit > 0 && m.frame.Tick >= m.limit
}

// Paused reports whether stepping is suspended.
func (m WatchModel) Paused() bool { return m.paused }

// Steps is the number of frames stepped so far.
func (m WatchModel) Steps() int { return m.steps }

// Err is the error that stopped the session, if any.
func (m WatchModel) Err() error { return m.err }

// Report summarizes the session so far.
func (m WatchModel) Report() *sim.Report { return m.viewer.Report() }

// View renders the lanes followed by the key help.
func (m WatchModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width < minWatchWidth {
		return fmt.Sprintf("terminal too narrow (%d columns, need %d)", m.width, minWatchWidth)
	}
	m.draw()
	return RenderScreen(m.screen) + "\n" + m.help.View(m.keys)
}

// draw lays out a header row, one boxed row per lane and a legend.
func (m WatchModel) draw() {
	lanes := m.frame.Lanes
	m.screen.Resize(m.width, len(lanes)+4)
	s := m.screen

	header := fmt.Sprintf("%s  tick %d  lead %d  ping %dms  x%s",
		m.title, m.frame.Tick, m.frame.Lead, m.frame.PingMs, speedLabel(m.speed))
	s.DrawText(0, 0, header, core.ColorDefault)
	x := len([]rune(header)) + 2
	desyncColor := core.ColorMuted
	if m.frame.Desyncs > 0 {
		desyncColor = core.ColorAlert
	}
	desyncs := fmt.Sprintf("desyncs %d", m.frame.Desyncs)
	s.DrawText(x, 0, desyncs, desyncColor)
	x += len(desyncs) + 2
	switch {
	case m.err != nil:
		s.DrawText(x, 0, "error: "+m.err.Error(), core.ColorAlert)
	case m.Finished():
		s.DrawText(x, 0, "done", core.ColorMuted)
	case m.paused:
		s.DrawText(x, 0, "paused", core.ColorPredicted)
	}

	box := core.NewRect(0, 1, m.width, len(lanes)+2)
	s.DrawBox(box, core.ColorMuted)
	inner := box.Inset(1)
	trackX := inner.X + labelWidth
	trackW := inner.Right() - trackX - 1
	for i, lane := range lanes {
		y := inner.Y + i
		label := lane.Player.String()
		labelColor := core.ColorDefault
		if lane.Local {
			label += "*"
			labelColor = core.ColorLocal
		}
		s.DrawText(inner.X+1, y, label, labelColor)
		s.DrawHLine(trackX, y, trackW, '·', core.ColorMuted)

		mark := func(v float32, r rune, c core.Color) {
			s.SetColored(trackX+core.Scale(v, m.frame.Min, m.frame.Max, trackW), y, r, c)
		}
		mark(lane.Server, 'S', core.ColorServer)
		if lane.Known {
			mark(lane.Real, 'R', core.ColorReal)
			mark(lane.Predicted, 'P', core.ColorPredicted)
			mark(lane.Interpolated, '●', core.ColorInterpolated)
		}
	}

	legendY := box.Bottom()
	x = 1
	for _, item := range []struct {
		mark  string
		label string
		color core.Color
	}{
		{"S", "server", core.ColorServer},
		{"R", "confirmed", core.ColorReal},
		{"P", "predicted", core.ColorPredicted},
		{"●", "shown", core.ColorInterpolated},
	} {
		s.DrawText(x, legendY, item.mark, item.color)
		s.DrawText(x+2, legendY, item.label, core.ColorMuted)
		x += len(item.label) + 5
	}
}

func speedLabel(speed int) string {
	if speed < 0 {
		return fmt.Sprintf("1/%d", 1<<-speed)
	}
	return fmt.Sprint(1 << speed)
}
