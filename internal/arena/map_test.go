package arena

import (
	"slices"
	"testing"
)

type id uint16

func TestMap_InsertGetRemove(t *testing.T) {
	var m Map[id, string]

	if _, had := m.Insert(3, "c"); had {
		t.Fatal("first insert reported previous value")
	}
	m.Insert(1, "a")
	if old, had := m.Insert(1, "A"); !had || old != "a" {
		t.Errorf("Insert replace = %q,%v; want a,true", old, had)
	}
	if m.Len() != 2 {
		t.Errorf("Len = %d, want 2", m.Len())
	}
	if v, ok := m.Get(3); !ok || v != "c" {
		t.Errorf("Get(3) = %q,%v", v, ok)
	}
	if _, ok := m.Get(2); ok {
		t.Error("Get(2) found a value in an empty slot")
	}
	if _, ok := m.Get(0); ok {
		t.Error("Get(0) must never find a value")
	}

	if v, ok := m.Remove(3); !ok || v != "c" {
		t.Errorf("Remove(3) = %q,%v", v, ok)
	}
	if len(m.slots) != 1 {
		t.Errorf("trailing slots not released: len=%d", len(m.slots))
	}
	if _, ok := m.Remove(3); ok {
		t.Error("double remove succeeded")
	}
}

func TestMap_IterationOrder(t *testing.T) {
	var m Map[id, int]
	for _, k := range []id{5, 2, 9, 1} {
		m.Insert(k, int(k)*10)
	}

	keys := slices.Collect(m.Keys())
	if !slices.Equal(keys, []id{1, 2, 5, 9}) {
		t.Errorf("Keys = %v", keys)
	}

	var peers []id
	for k := range m.Peers(5) {
		peers = append(peers, k)
	}
	if !slices.Equal(peers, []id{1, 2, 9}) {
		t.Errorf("Peers(5) = %v", peers)
	}
}

func TestMap_CloneIsIndependent(t *testing.T) {
	var m Map[id, int]
	m.Insert(1, 1)
	m.Insert(2, 2)

	c := m.Clone()
	c.Insert(1, 100)
	c.Remove(2)

	if v, _ := m.Get(1); v != 1 {
		t.Errorf("clone mutation leaked into original: %d", v)
	}
	if m.Len() != 2 || c.Len() != 1 {
		t.Errorf("Len original=%d clone=%d", m.Len(), c.Len())
	}
}

func TestMap_Retain(t *testing.T) {
	var m Map[id, int]
	for k := id(1); k <= 6; k++ {
		m.Insert(k, int(k))
	}
	m.Retain(func(k id, v *int) bool {
		*v *= 2
		return k%2 == 1
	})

	if m.Len() != 3 {
		t.Fatalf("Len = %d, want 3", m.Len())
	}
	if v, _ := m.Get(5); v != 10 {
		t.Errorf("Get(5) = %d, want 10", v)
	}
	if len(m.slots) != 5 {
		t.Errorf("slots = %d, want 5", len(m.slots))
	}
}

func TestMap_ZeroKeyPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("Insert(0) did not panic")
		}
	}()
	var m Map[id, int]
	m.Insert(0, 1)
}
