package lockstep

import (
	"strings"
	"testing"
	"time"
)

type chaserClient = Client[chaserPlayer, chaserInput, struct{}]

// loop wires one server and one client together with instant delivery.
type loop struct {
	server *chaserServer
	client *chaserClient
	data   *ClientData[chaserInput]
	id     PlayerID
	target float32
	sent   int
	infos  int
}

func newLoop(t *testing.T, opts ...Option) *loop {
	t.Helper()
	l := &loop{
		server: newChaserServer(t),
		client: NewClient[chaserPlayer, chaserInput, struct{}](newChaser(), opts...),
		data:   NewClientData[chaserInput](),
		id:     NthClient(0),
		target: 2,
	}
	l.server.SetPlayer(l.id, chaserPlayer{})
	return l
}

func (l *loop) serverTick() {
	l.server.Update(func(yield func(PlayerID, *ClientData[chaserInput]) bool) {
		yield(l.id, l.data)
	})
	l.client.Receive(l.server.ClientUpdate(l.id, l.data))
	l.server.PostUpdate(nil)
}

func (l *loop) clientFrame(elapsed time.Duration) {
	infos := l.client.Update(elapsed, true,
		func(bool) chaserInput { return chaserInput{Target: l.target} },
		func(req Request[chaserInput], reliable bool) {
			l.sent++
			l.server.Request(l.id, req, l.data, true)
		})
	l.infos += len(infos)
}

func TestClient_NotLoadedUntilInitialization(t *testing.T) {
	l := newLoop(t)
	l.clientFrame(time.Second)
	if l.client.Loaded() || l.sent != 0 {
		t.Fatalf("unloaded client predicted: loaded=%v sent=%d", l.client.Loaded(), l.sent)
	}

	l.serverTick()
	if !l.client.Loaded() || l.client.PlayerID != l.id {
		t.Fatalf("PlayerID = %v after initialization", l.client.PlayerID)
	}
	if l.client.Real.Checksum() != l.server.Real.Checksum() {
		t.Error("client real state differs from server after initialization")
	}
}

func TestClient_TracksServer(t *testing.T) {
	l := newLoop(t)
	period := l.server.Config().TickPeriod()
	maxPrediction := uint32(l.server.Config().MaxPrediction)

	for range 60 {
		l.serverTick()
		for range 4 {
			l.clientFrame(period / 4)
			lead := l.client.Predicted.Context.TickID - l.client.Real.Context.TickID
			if lead > maxPrediction {
				t.Fatalf("predicted %d ticks ahead, limit %d", lead, maxPrediction)
			}
		}
		if l.client.Real.Checksum() != l.server.Real.Checksum() {
			t.Fatalf("real state diverged at tick %d", l.server.TickID())
		}
	}

	if l.client.Desyncs() != 0 {
		t.Errorf("Desyncs = %d", l.client.Desyncs())
	}
	if l.sent == 0 {
		t.Fatal("client sent no requests")
	}
	p, _ := l.server.Real.Context.Player(l.id)
	if p.Number < 1.5 {
		t.Errorf("server player did not follow inputs: %+v", p)
	}
	pred, _ := l.client.Predicted.Context.Player(l.id)
	if d := pred.Number - p.Number; d < -0.2 || d > 0.2 {
		t.Errorf("prediction %v too far from server %v", pred.Number, p.Number)
	}
	if want := int(l.client.Real.World.(*chaser).Ticks / 5); l.infos != want {
		t.Errorf("infos = %d, want %d", l.infos, want)
	}
	if l.client.AveragePingLatency() < 0 || l.client.LagCompensationLatency() > l.server.Config().MaxLatency() {
		t.Errorf("latency figures out of range: ping=%d lag=%d",
			l.client.AveragePingLatency(), l.client.LagCompensationLatency())
	}
}

func TestClient_StopsPredictingWhenQueueFull(t *testing.T) {
	l := newLoop(t)
	l.serverTick()
	cfg := l.server.Config()

	for range 5 {
		l.clientFrame(cfg.TickPeriod() * 20)
	}
	if l.sent != cfg.MaxPrediction {
		t.Fatalf("sent %d requests without acks, want %d", l.sent, cfg.MaxPrediction)
	}
	if !l.client.Queue.IsFull() {
		t.Fatal("queue not full")
	}
	if l.client.ClientBufferUsage() != 1 {
		t.Errorf("ClientBufferUsage = %v", l.client.ClientBufferUsage())
	}

	// Hearing from the server lets the client drop its oldest input and
	// predict again.
	l.data.ReceiveBuffer = nil
	l.data.LastReceivedInputID = 0
	l.serverTick()
	l.clientFrame(cfg.TickPeriod())
	if l.sent != cfg.MaxPrediction+1 {
		t.Errorf("sent = %d after hearing from server, want %d", l.sent, cfg.MaxPrediction+1)
	}
}

func TestClient_DesyncReportedNotFatal(t *testing.T) {
	var reports []Desync
	l := newLoop(t, WithDesyncHandler(func(d Desync) { reports = append(reports, d) }))
	l.server.cfg.DesyncDiagnostics = true

	l.serverTick()
	l.serverTick()

	l.client.Real.Context.Players.Ptr(l.id).Inner.Number = 99
	l.serverTick()

	if len(reports) != 1 || l.client.Desyncs() != 1 {
		t.Fatalf("reports = %d, Desyncs = %d", len(reports), l.client.Desyncs())
	}
	if !strings.Contains(reports[0].Diff, "Number") {
		t.Errorf("diff does not point at the field: %q", reports[0].Diff)
	}
	if reports[0].Expected == reports[0].Actual {
		t.Error("report checksums equal")
	}

	// The complete snapshot replaced the corrupted state.
	l.serverTick()
	if len(reports) != 1 {
		t.Errorf("desync persisted after resync: %d reports", len(reports))
	}
	if l.client.Real.Checksum() != l.server.Real.Checksum() {
		t.Error("client did not adopt server state")
	}
}

func TestClient_DivergenceReportedOnce(t *testing.T) {
	var reports []Desync
	l := newLoop(t, WithDesyncHandler(func(d Desync) { reports = append(reports, d) }))

	l.serverTick()
	l.client.Real.Context.Players.Ptr(l.id).Inner.Number = 99
	for range 5 {
		l.serverTick()
	}
	if len(reports) != 1 || l.client.Desyncs() != 1 {
		t.Fatalf("reports = %d, Desyncs = %d, want one per divergence", len(reports), l.client.Desyncs())
	}
	if reports[0].Diff != "" {
		t.Errorf("diff without diagnostics: %q", reports[0].Diff)
	}

	// A fresh initialization recovers, and the next divergence is reported.
	l.data.Initialized = false
	l.serverTick()
	l.serverTick()
	if l.client.Real.Checksum() != l.server.Real.Checksum() {
		t.Fatal("client did not recover from initialization")
	}
	if len(reports) != 1 {
		t.Fatalf("recovered client reported %d desyncs", len(reports))
	}
	l.client.Real.Context.Players.Ptr(l.id).Inner.Number = -99
	l.serverTick()
	l.serverTick()
	if len(reports) != 2 {
		t.Errorf("second divergence: reports = %d, want 2", len(reports))
	}
}

func TestClient_ReceiveUnsentAckPanics(t *testing.T) {
	l := newLoop(t)
	l.serverTick()
	defer func() {
		if recover() == nil {
			t.Fatal("ack of unsent input did not panic")
		}
	}()
	l.client.Receive(Update[chaserPlayer, chaserInput, struct{}]{LastAppliedInputID: 3})
}

func TestHistory(t *testing.T) {
	h := newHistory(3)
	if _, ok := h.recent(); ok {
		t.Fatal("empty history has a recent value")
	}
	for _, v := range []int{1, 2, 3, 4} {
		h.push(v)
	}
	if v, _ := h.recent(); v != 4 {
		t.Errorf("recent = %d, want 4", v)
	}
	if h.len() != 3 || h.sum() != 9 {
		t.Errorf("len=%d sum=%d, want 3 and 9", h.len(), h.sum())
	}
}
