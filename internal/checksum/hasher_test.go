package checksum

import (
	"math"
	"strings"
	"testing"
)

func sumOf(write func(h *Hasher)) uint64 {
	h := New()
	write(h)
	return h.Sum64()
}

func TestWriteF32_NormalizesZeroAndNaN(t *testing.T) {
	negZero := float32(math.Copysign(0, -1))
	nan := float32(math.NaN())
	zero := sumOf(func(h *Hasher) { h.WriteF32(0) })

	tests := []struct {
		name string
		v    float32
	}{
		{"negative zero", negZero},
		{"NaN", nan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sumOf(func(h *Hasher) { h.WriteF32(tt.v) }); got != zero {
				t.Errorf("hash(%v) = %x, want %x", tt.v, got, zero)
			}
		})
	}

	if sumOf(func(h *Hasher) { h.WriteF32(1) }) == zero {
		t.Error("1.0 hashed like 0.0")
	}
}

func TestWriteF64_NormalizesZeroAndNaN(t *testing.T) {
	zero := sumOf(func(h *Hasher) { h.WriteF64(0) })
	if got := sumOf(func(h *Hasher) { h.WriteF64(math.Copysign(0, -1)) }); got != zero {
		t.Error("-0 differs from +0")
	}
	if got := sumOf(func(h *Hasher) { h.WriteF64(math.NaN()) }); got != zero {
		t.Error("NaN differs from 0")
	}
}

func TestUnordered_IndependentOfInsertionOrder(t *testing.T) {
	entry := func(h *Hasher, k string, v int) {
		h.WriteString(k)
		h.WriteInt64(int64(v))
	}

	a := map[string]int{}
	b := map[string]int{}
	keys := []string{"alpha", "beta", "gamma", "delta", "epsilon"}
	for i, k := range keys {
		a[k] = i
	}
	for i := len(keys) - 1; i >= 0; i-- {
		b[keys[i]] = i
	}

	ha := sumOf(func(h *Hasher) { Unordered(h, a, entry) })
	hb := sumOf(func(h *Hasher) { Unordered(h, b, entry) })
	if ha != hb {
		t.Fatalf("map hashes differ: %x vs %x", ha, hb)
	}

	b["zeta"] = 9
	if hc := sumOf(func(h *Hasher) { Unordered(h, b, entry) }); hc == ha {
		t.Error("adding an entry did not change the hash")
	}
}

func TestUnorderedSet_EmptyVersusSingleZero(t *testing.T) {
	elem := func(h *Hasher, k uint32) { h.WriteUint32(k) }
	empty := sumOf(func(h *Hasher) { UnorderedSet(h, map[uint32]struct{}{}, elem) })
	one := sumOf(func(h *Hasher) { UnorderedSet(h, map[uint32]struct{}{0: {}}, elem) })
	if empty == one {
		t.Error("length is not part of the set hash")
	}
}

func TestSum32_Deterministic(t *testing.T) {
	write := func(h *Hasher) {
		h.WriteLen(3)
		h.WriteBool(true)
		h.WriteUint16(7)
		h.WriteString("tick")
	}
	h1, h2 := New(), New()
	write(h1)
	write(h2)
	if h1.Sum32() != h2.Sum32() {
		t.Fatal("identical writes produced different digests")
	}
}

func TestDiff(t *testing.T) {
	type state struct {
		Tick  uint32
		score int
	}
	if d := Diff(state{1, 2}, state{1, 2}); d != "" {
		t.Errorf("equal values diff = %q", d)
	}
	d := Diff(state{1, 2}, state{1, 3})
	if !strings.Contains(d, "score") {
		t.Errorf("diff does not mention unexported field: %q", d)
	}
}
