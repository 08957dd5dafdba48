package lockstep

import (
	"maps"
	"math"
	"slices"
	"testing"
)

type chaserServer = Server[chaserPlayer, chaserInput, struct{}]

func newChaserServer(t *testing.T) *chaserServer {
	t.Helper()
	return NewServer[chaserPlayer, chaserInput, struct{}](newChaser())
}

func window(last InputID, targets ...float32) Request[chaserInput] {
	w := InputWindow[chaserInput]{LastInputID: last}
	for _, target := range targets {
		w.SlidingWindow = append(w.SlidingWindow, chaserInput{Target: target})
	}
	return Request[chaserInput]{Inputs: w}
}

func bufferIDs(c *ClientData[chaserInput]) []InputID {
	ids := make([]InputID, len(c.ReceiveBuffer))
	for i, in := range c.ReceiveBuffer {
		ids[i] = in.ID
	}
	return ids
}

func TestServer_RequestReordersAndDedups(t *testing.T) {
	s := newChaserServer(t)
	client := &ClientData[chaserInput]{Initialized: true}

	s.Request(1, window(5, 50), client, true)
	s.Request(1, window(3, 30), client, true)
	s.Request(1, window(5, 99), client, true)
	s.Request(1, window(4, 30, 40), client, true)

	if got := bufferIDs(client); !slices.Equal(got, []InputID{3, 4, 5}) {
		t.Fatalf("buffer ids = %v, want [3 4 5]", got)
	}
	if client.ReceiveBuffer[2].Input.Target != 50 {
		t.Errorf("duplicate replaced first-seen input: %v", client.ReceiveBuffer[2].Input)
	}
	if client.Stats.Duplicate != 2 {
		t.Errorf("Duplicate = %d, want 2", client.Stats.Duplicate)
	}
	if client.LastReceivedInputID != 5 {
		t.Errorf("LastReceivedInputID = %d, want 5", client.LastReceivedInputID)
	}
}

func TestServer_RequestDropsStaleAndInvalid(t *testing.T) {
	s := newChaserServer(t)
	client := &ClientData[chaserInput]{Initialized: true, LastAppliedInputID: 4}

	nan := float32(math.NaN())
	s.Request(1, window(6, 1, 2, nan, 4), client, true)

	if got := bufferIDs(client); !slices.Equal(got, []InputID{6}) {
		t.Fatalf("buffer ids = %v, want [6]", got)
	}
	if client.Stats.Stale != 2 || client.Stats.Invalid != 1 {
		t.Errorf("stats = %+v", client.Stats)
	}
}

func TestServer_RequestIgnoresUninitialized(t *testing.T) {
	s := newChaserServer(t)
	client := NewClientData[chaserInput]()
	s.Request(1, window(1, 1), client, false)
	if client.Buffered() != 0 {
		t.Fatal("uninitialized client buffered input")
	}
}

func TestServer_RequestFullBufferDropsRemainder(t *testing.T) {
	s := newChaserServer(t)
	client := &ClientData[chaserInput]{Initialized: true}
	limit := s.Config().BufferedTicks

	for i := 1; i <= limit; i++ {
		s.Request(1, window(InputID(i), float32(i)), client, false)
	}
	s.Request(1, window(InputID(limit+2), 1, 2), client, true)

	if client.Buffered() != limit {
		t.Fatalf("Buffered = %d, want %d", client.Buffered(), limit)
	}
	if client.Stats.Overflow != 1 {
		t.Errorf("Overflow = %d, want 1", client.Stats.Overflow)
	}
}

func TestServer_OversizedWindowTruncated(t *testing.T) {
	s := newChaserServer(t)
	client := &ClientData[chaserInput]{Initialized: true}
	targets := make([]float32, s.Config().InputsPerEfficientPacket+3)
	s.Request(1, window(InputID(len(targets)), targets...), client, true)

	if client.Buffered() != s.Config().InputsPerEfficientPacket {
		t.Errorf("Buffered = %d", client.Buffered())
	}
	if client.Stats.Oversized != 1 {
		t.Errorf("Oversized = %d", client.Stats.Oversized)
	}
}

func TestServer_UpdateAppliesOnePerClient(t *testing.T) {
	s := newChaserServer(t)
	s.SetPlayer(1, chaserPlayer{})
	s.SetPlayer(2, chaserPlayer{})

	clients := map[PlayerID]*ClientData[chaserInput]{
		1: NewClientData[chaserInput](),
		2: NewClientData[chaserInput](),
	}
	for id, c := range clients {
		u := s.ClientUpdate(id, c)
		if u.Initialization == nil || u.Initialization.PlayerID != id {
			t.Fatalf("first update for %s lacks initialization", id)
		}
	}
	s.PostUpdate(nil)

	s.Request(1, window(2, 1, 2), clients[1], true)

	s.Update(maps.All(clients))
	if got, _ := s.Current.Inputs.Get(1); got.Target != 1 {
		t.Errorf("applied input = %v, want oldest", got)
	}
	if s.Current.Inputs.Contains(2) {
		t.Error("client without input got one")
	}
	if clients[1].LastAppliedInputID != 1 {
		t.Errorf("LastAppliedInputID = %d", clients[1].LastAppliedInputID)
	}
	if s.Current.Checksum == nil || *s.Current.Checksum != s.Real.Checksum() {
		t.Error("checksum not stamped with pre-tick state")
	}

	u := s.ClientUpdate(1, clients[1])
	if u.Initialization != nil {
		t.Error("initialization sent twice")
	}
	if u.BufferedInputs != 1 || u.LastAppliedInputID != 1 || u.LastReceivedInputID != 2 {
		t.Errorf("update = %+v", u)
	}
	s.PostUpdate(nil)
	if s.TickID() != 2 {
		t.Errorf("TickID = %d, want 2", s.TickID())
	}
}

func TestServer_PlayerLeftPurgesInput(t *testing.T) {
	s := newChaserServer(t)
	s.SetPlayer(1, chaserPlayer{})
	s.PostUpdate(nil)

	s.Request(1, BotRequest(chaserInput{Target: 2}), nil, false)
	if !s.Current.Inputs.Contains(1) {
		t.Fatal("bot input not applied")
	}
	s.PlayerLeft(1)
	if s.Current.Inputs.Contains(1) {
		t.Error("input survived PlayerLeft")
	}
	if _, ok := s.Player(1); ok {
		t.Error("Player reports departed player")
	}
	s.Request(1, BotRequest(chaserInput{Target: 2}), nil, false)
	if s.Current.Inputs.Contains(1) {
		t.Error("late bot input resurrected departed player")
	}
	s.PostUpdate(nil)
	if s.Real.Context.Players.Contains(1) {
		t.Error("player still in real state")
	}
}

func TestServer_MutPlayerCopyOnWrite(t *testing.T) {
	s := newChaserServer(t)
	s.SetPlayer(1, chaserPlayer{Number: 1})
	s.PostUpdate(nil)

	p := s.MutPlayer(1)
	if p == nil {
		t.Fatal("MutPlayer returned nil for existing player")
	}
	p.Number = 42
	if cur, _ := s.Real.Context.Player(1); cur.Number == 42 {
		t.Error("MutPlayer mutated real state")
	}
	if got, _ := s.Player(1); got.Number != 42 {
		t.Errorf("Player = %v, want pending overwrite", got.Number)
	}
	if s.MutPlayer(7) != nil {
		t.Error("MutPlayer created absent player")
	}
	s.PostUpdate(nil)
	if got, _ := s.Real.Context.Player(1); got.Number == 1 {
		t.Error("overwrite not applied")
	}
}

func TestServer_Players(t *testing.T) {
	s := newChaserServer(t)
	s.SetPlayer(1, chaserPlayer{})
	s.SetPlayer(2, chaserPlayer{})
	s.PostUpdate(nil)
	s.PlayerLeft(1)
	s.SetPlayer(5, chaserPlayer{})

	if got := slices.Collect(s.Players()); !slices.Equal(got, []PlayerID{2, 5}) {
		t.Errorf("Players = %v, want [2 5]", got)
	}
}

func TestServer_Rewind(t *testing.T) {
	s := newChaserServer(t)
	s.SetPlayer(1, chaserPlayer{})
	s.PostUpdate(nil)
	for range 3 {
		s.Request(1, BotRequest(chaserInput{Target: 5}), nil, false)
		s.PostUpdate(nil)
	}

	now, ok := s.Rewind(0)
	if !ok || now.TickID != s.TickID() {
		t.Fatalf("Rewind(0) = %v,%v", now, ok)
	}
	back, ok := s.Rewind(2)
	if !ok || back.TickID != s.TickID()-2 {
		t.Fatalf("Rewind(2) tick = %v", back)
	}
	if _, ok := s.Rewind(s.Config().LagCompensation); ok {
		t.Error("rewind past retained depth succeeded")
	}
}
