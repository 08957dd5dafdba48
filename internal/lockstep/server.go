package lockstep

import (
	"cmp"
	"iter"
	"slices"

	"github.com/charmbracelet/log"
)

// Server owns the authoritative simulation of one arena.
type Server[P, I Hashable, T any] struct {
	// Real is the state every client converges to.
	Real *Lockstep[P, I, T]
	// Current accumulates the next tick.
	Current Tick[P, I, T]

	cfg     Config
	history *LagCompensation[Context[P, I]]
	logger  *log.Logger
}

// NewServer starts an arena from world. It panics if the world's Config is
// invalid.
func NewServer[P, I Hashable, T any](world World[P, I, T], opts ...Option) *Server[P, I, T] {
	o := buildOptions(opts)
	truth := New(world)
	cfg := truth.Config()
	return &Server[P, I, T]{
		Real:    truth,
		cfg:     cfg,
		history: NewLagCompensation[Context[P, I]](cfg),
		logger:  o.logger,
	}
}

func (s *Server[P, I, T]) Config() Config { return s.cfg }

// TickID is the id of the last applied tick.
func (s *Server[P, I, T]) TickID() uint32 { return s.Real.Context.TickID }

// Player returns the player as it will be after the pending tick's
// overwrites.
func (s *Server[P, I, T]) Player(id PlayerID) (P, bool) {
	if p, ok := s.Current.Overwrites[id]; ok {
		if p == nil {
			var zero P
			return zero, false
		}
		return *p, true
	}
	return s.Real.Context.Player(id)
}

// Players iterates the ids of players that will exist after the pending
// tick.
func (s *Server[P, I, T]) Players() iter.Seq[PlayerID] {
	return func(yield func(PlayerID) bool) {
		for id := range s.Real.Context.Players.Keys() {
			if p, ok := s.Current.Overwrites[id]; ok && p == nil {
				continue
			}
			if !yield(id) {
				return
			}
		}
		for _, id := range s.Current.overwriteOrder() {
			if s.Current.Overwrites[id] == nil || s.Real.Context.Players.Contains(id) {
				continue
			}
			if !yield(id) {
				return
			}
		}
	}
}

// SetPlayer joins or replaces a player at the next tick.
func (s *Server[P, I, T]) SetPlayer(id PlayerID, p P) {
	if s.Current.Overwrites == nil {
		s.Current.Overwrites = make(map[PlayerID]*P)
	}
	s.Current.Overwrites[id] = &p
}

// MutPlayer returns a pointer to the pending overwrite for id, creating it
// from the real state if needed. It returns nil for an absent player.
func (s *Server[P, I, T]) MutPlayer(id PlayerID) *P {
	if p, ok := s.Current.Overwrites[id]; ok {
		return p
	}
	cur, ok := s.Real.Context.Player(id)
	if !ok {
		return nil
	}
	s.SetPlayer(id, cur)
	return s.Current.Overwrites[id]
}

// PlayerLeft removes the player at the next tick and drops its pending
// input. The caller discards the player's ClientData.
func (s *Server[P, I, T]) PlayerLeft(id PlayerID) {
	if s.Current.Overwrites == nil {
		s.Current.Overwrites = make(map[PlayerID]*P)
	}
	s.Current.Overwrites[id] = nil
	s.Current.Inputs.Remove(id)
}

// Request folds a client's input window into its reorder buffer. A nil
// client is a bot whose single input applies directly to the next tick.
func (s *Server[P, I, T]) Request(id PlayerID, req Request[I], client *ClientData[I], unreliable bool) {
	if client == nil {
		if _, ok := s.Player(id); !ok || len(req.Inputs.SlidingWindow) == 0 {
			return
		}
		in := req.Inputs.SlidingWindow[len(req.Inputs.SlidingWindow)-1]
		if s.Real.World.ValidInput(in) {
			s.Current.Inputs.Insert(id, in)
		}
		return
	}
	if !client.Initialized {
		return
	}

	window := req.Inputs
	if n := len(window.SlidingWindow); n > s.cfg.InputsPerEfficientPacket {
		client.Stats.Oversized++
		s.logger.Warn("oversized input window", "player", id, "len", n)
		window.SlidingWindow = window.SlidingWindow[n-s.cfg.InputsPerEfficientPacket:]
	}

	for _, in := range window.Dated() {
		if in.ID == 0 || !s.Real.World.ValidInput(in.Input) {
			client.Stats.Invalid++
			continue
		}
		if len(client.ReceiveBuffer) >= s.cfg.BufferedTicks {
			client.Stats.Overflow++
			s.logger.Debug("receive buffer full", "player", id, "input", in.ID)
			return
		}
		if in.ID <= client.LastAppliedInputID {
			client.Stats.Stale++
			if !unreliable {
				s.logger.Warn("stale input on reliable channel", "player", id, "input", in.ID, "applied", client.LastAppliedInputID)
			}
			continue
		}
		i, found := slices.BinarySearchFunc(client.ReceiveBuffer, in.ID, func(d DatedInput[I], id InputID) int {
			return cmp.Compare(d.ID, id)
		})
		if found {
			client.Stats.Duplicate++
			if !unreliable {
				s.logger.Warn("duplicate input on reliable channel", "player", id, "input", in.ID)
			}
			continue
		}
		client.LastReceivedInputID = max(client.LastReceivedInputID, in.ID)
		client.ReceiveBuffer = slices.Insert(client.ReceiveBuffer, i, in)
		client.Stats.Accepted++
	}
}

// Update pops at most one buffered input per connected client into the
// pending tick and stamps it with the checksum of the current state.
func (s *Server[P, I, T]) Update(clients iter.Seq2[PlayerID, *ClientData[I]]) {
	for id, client := range clients {
		if _, ok := s.Player(id); !ok {
			continue
		}
		in, ok := client.popFront()
		if !ok {
			continue
		}
		client.LastAppliedInputID = in.ID
		s.Current.Inputs.Insert(id, in.Input)
	}

	sum := s.Real.Checksum()
	s.Current.Checksum = &sum
	if s.cfg.DesyncDiagnostics {
		s.Current.Complete = s.Real.Clone()
	}
}

// ClientUpdate packages the pending tick for one client. The first call for
// a ClientData carries the initialization snapshot.
func (s *Server[P, I, T]) ClientUpdate(id PlayerID, client *ClientData[I]) Update[P, I, T] {
	var init *Initialization[P, I, T]
	if !client.Initialized {
		client.Initialized = true
		client.LastAppliedInputID = 0
		client.LastReceivedInputID = 0
		init = &Initialization[P, I, T]{PlayerID: id, Snapshot: s.Real.Clone()}
	}
	return Update[P, I, T]{
		Initialization:      init,
		LastAppliedInputID:  client.LastAppliedInputID,
		LastReceivedInputID: client.LastReceivedInputID,
		Tick:                s.Current.Clone(),
		BufferedInputs:      client.Buffered(),
	}
}

// PostUpdate applies the pending tick as ground truth and starts a new one.
func (s *Server[P, I, T]) PostUpdate(emit func(Info)) {
	tick := s.Current
	s.Current = Tick[P, I, T]{}
	s.Real.Tick(tick, GroundTruthDisposition(), emit)
	s.history.Write(s.Real.Context.TickID, s.Real.Context.Clone())
}

// Rewind returns the authoritative context as it was latency ticks ago.
func (s *Server[P, I, T]) Rewind(latency int) (*Context[P, I], bool) {
	ctx, ok := s.history.Read(s.Real.Context.TickID, latency)
	if !ok {
		return nil, false
	}
	return &ctx, true
}
