// Package multiplayer hosts lockstep arenas. Each arena is an actor that owns
// one lockstep server and ticks it at the world's rate; sessions reach it
// through the transport-neutral Session interface.
package multiplayer

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/vovakirdan/lockstep/internal/lockstep"
)

// SessionID uniquely identifies a connection.
type SessionID string

var (
	ErrArenaFull    = errors.New("multiplayer: arena full")
	ErrAlreadyIn    = errors.New("multiplayer: session already in arena")
	ErrUnknownGame  = errors.New("multiplayer: unknown game")
	ErrGameMismatch = errors.New("multiplayer: arena runs a different game")
	ErrStopped      = errors.New("multiplayer: coordinator stopped")
)

// NewSessionID returns a random id.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// Room is an arena with its world type erased, so the coordinator and the
// transports can hold arenas of any game.
type Room interface {
	Name() string
	Game() string
	// Join admits a session; its player spawns on the next tick.
	Join(s Session) (lockstep.PlayerID, error)
	// Leave removes the session's player on the next tick.
	Leave(id SessionID)
	// Deliver queues an encoded request. It never blocks; a full intake
	// drops the frame, which the input window redundancy absorbs.
	Deliver(id SessionID, frame []byte)
	AddBot() (lockstep.PlayerID, error)
	// Run ticks the arena until ctx is done, then closes every session.
	Run(ctx context.Context)
	Members() int
	Metrics() Metrics
}

// Metrics are counters since the arena started.
type Metrics struct {
	Tick            uint32 `json:"tick"`
	Members         int    `json:"members"`
	Bots            int    `json:"bots"`
	Joins           uint64 `json:"joins"`
	Leaves          uint64 `json:"leaves"`
	Kicks           uint64 `json:"kicks"`
	Requests        uint64 `json:"requests"`
	DroppedRequests uint64 `json:"dropped_requests"`
	BadFrames       uint64 `json:"bad_frames"`
	UpdatesSent     uint64 `json:"updates_sent"`
	Infos           uint64 `json:"infos"`
}
