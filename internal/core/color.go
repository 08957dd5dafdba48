package core

// Color represents a foreground color for a screen cell.
type Color uint8

// Colors by what they mark in the watch view.
const (
	ColorDefault Color = iota
	ColorServer        // authoritative state
	ColorReal          // client's confirmed state
	ColorPredicted     // client's predicted state
	ColorInterpolated  // what the player is shown
	ColorLocal         // the locally controlled lane
	ColorAlert         // desyncs and errors
	ColorMuted         // frames and help text
)
