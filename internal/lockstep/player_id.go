package lockstep

import (
	"fmt"

	"github.com/vovakirdan/lockstep/internal/checksum"
)

// ClientLimit is the number of ids reserved for real clients. Bots are
// numbered after them.
const ClientLimit = 1024

// PlayerID identifies a player within one arena. Zero is never assigned.
type PlayerID uint16

// NthClient returns the id of the n-th (zero-based) client slot.
func NthClient(n int) PlayerID {
	if n < 0 || n >= ClientLimit {
		panic(fmt.Sprintf("lockstep: client index %d out of range", n))
	}
	return PlayerID(n + 1)
}

// NthBot returns the id of the n-th (zero-based) bot slot.
func NthBot(n int) PlayerID {
	id := ClientLimit + 1 + n
	if n < 0 || id > 0xFFFF {
		panic(fmt.Sprintf("lockstep: bot index %d out of range", n))
	}
	return PlayerID(id)
}

func (id PlayerID) IsClient() bool { return id != 0 && id <= ClientLimit }
func (id PlayerID) IsBot() bool { return id > ClientLimit }

func (id PlayerID) Hash(h *checksum.Hasher) {
	h.WriteUint16(uint16(id))
}

func (id PlayerID) String() string {
	if id.IsBot() {
		return fmt.Sprintf("bot%d", int(id)-ClientLimit-1)
	}
	return fmt.Sprintf("p%d", uint16(id))
}
