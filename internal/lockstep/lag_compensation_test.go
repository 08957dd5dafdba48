package lockstep

import "testing"

func TestLagCompensation_ReadWrite(t *testing.T) {
	cfg := DefaultConfig(10)
	l := NewLagCompensation[string](cfg)
	if l.Len() != cfg.LagCompensation {
		t.Fatalf("Len = %d, want %d", l.Len(), cfg.LagCompensation)
	}

	l.Write(20, "a")
	if v, ok := l.Read(20, 0); !ok || v != "a" {
		t.Errorf("Read(20,0) = %q,%v", v, ok)
	}
	if _, ok := l.Read(20, cfg.LagCompensation); ok {
		t.Error("read at full depth succeeded")
	}
	if _, ok := l.Read(20, cfg.LagCompensation+3); ok {
		t.Error("read beyond depth succeeded")
	}
}

func TestLagCompensation_History(t *testing.T) {
	cfg := DefaultConfig(10)
	l := NewLagCompensation[uint32](cfg)
	for tick := uint32(1); tick <= 30; tick++ {
		l.Write(tick, tick*2)
	}
	for latency := range cfg.LagCompensation {
		v, ok := l.Read(30, latency)
		if want := (30 - uint32(latency)) * 2; !ok || v != want {
			t.Errorf("Read(30,%d) = %d,%v; want %d", latency, v, ok, want)
		}
	}
}

func TestLagCompensation_SlotReuse(t *testing.T) {
	cfg := DefaultConfig(10)
	l := NewLagCompensation[int](cfg)
	n := uint32(cfg.LagCompensation)

	l.Write(5, 1)
	l.Write(5+n, 2)
	if _, ok := l.Read(5, 0); ok {
		t.Error("overwritten slot still readable for old tick")
	}
	if v, ok := l.Read(5+n, 0); !ok || v != 2 {
		t.Errorf("Read new = %d,%v", v, ok)
	}
}

func TestLagCompensation_BeforeFirstTick(t *testing.T) {
	l := NewLagCompensation[int](DefaultConfig(10))
	l.Write(1, 9)
	if _, ok := l.Read(1, 2); ok {
		t.Error("read before tick zero succeeded")
	}
	l.Clear()
	if _, ok := l.Read(1, 0); ok {
		t.Error("read after Clear succeeded")
	}
}
