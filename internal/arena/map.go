// Package arena provides a dense map keyed by small nonzero integer ids.
package arena

import "iter"

// Map stores values in a slice indexed by key-1. Key 0 is reserved and
// never stored. Trailing empty slots are released on Remove so the slice
// length tracks the highest live key.
type Map[K ~uint16, V any] struct {
	slots []slot[V]
	n     int
}

type slot[V any] struct {
	value V
	ok    bool
}

func index[K ~uint16](k K) int {
	if k == 0 {
		panic("arena: zero key")
	}
	return int(k) - 1
}

// Len returns the number of live entries.
func (m *Map[K, V]) Len() int {
	return m.n
}

// Get returns the value stored for k.
func (m *Map[K, V]) Get(k K) (V, bool) {
	if p := m.Ptr(k); p != nil {
		return *p, true
	}
	var zero V
	return zero, false
}

// Ptr returns a pointer to the stored value, or nil. The pointer is
// invalidated by the next Insert.
func (m *Map[K, V]) Ptr(k K) *V {
	if k == 0 {
		return nil
	}
	i := index(k)
	if i >= len(m.slots) || !m.slots[i].ok {
		return nil
	}
	return &m.slots[i].value
}

func (m *Map[K, V]) Contains(k K) bool {
	return m.Ptr(k) != nil
}

// Insert stores v under k, returning the previous value if one existed.
func (m *Map[K, V]) Insert(k K, v V) (V, bool) {
	i := index(k)
	for len(m.slots) <= i {
		m.slots = append(m.slots, slot[V]{})
	}
	s := &m.slots[i]
	old, had := s.value, s.ok
	s.value, s.ok = v, true
	if !had {
		m.n++
	}
	return old, had
}

// Remove deletes k and returns the removed value.
func (m *Map[K, V]) Remove(k K) (V, bool) {
	var zero V
	if k == 0 {
		return zero, false
	}
	i := index(k)
	if i >= len(m.slots) || !m.slots[i].ok {
		return zero, false
	}
	old := m.slots[i].value
	m.slots[i] = slot[V]{}
	m.n--
	m.shrink()
	return old, true
}

func (m *Map[K, V]) shrink() {
	end := len(m.slots)
	for end > 0 && !m.slots[end-1].ok {
		end--
	}
	clear(m.slots[end:])
	m.slots = m.slots[:end]
}

// Retain keeps only the entries for which keep returns true. keep may
// mutate the value in place.
func (m *Map[K, V]) Retain(keep func(K, *V) bool) {
	for i := range m.slots {
		s := &m.slots[i]
		if s.ok && !keep(K(i+1), &s.value) {
			*s = slot[V]{}
			m.n--
		}
	}
	m.shrink()
}

// Clear removes every entry.
func (m *Map[K, V]) Clear() {
	m.slots = nil
	m.n = 0
}

// All iterates live entries in ascending key order.
func (m *Map[K, V]) All() iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for i := range m.slots {
			if s := m.slots[i]; s.ok {
				if !yield(K(i+1), s.value) {
					return
				}
			}
		}
	}
}

// Keys iterates live keys in ascending order.
func (m *Map[K, V]) Keys() iter.Seq[K] {
	return func(yield func(K) bool) {
		for k := range m.All() {
			if !yield(k) {
				return
			}
		}
	}
}

// Peers iterates every entry except the one keyed by self.
func (m *Map[K, V]) Peers(self K) iter.Seq2[K, V] {
	return func(yield func(K, V) bool) {
		for k, v := range m.All() {
			if k == self {
				continue
			}
			if !yield(k, v) {
				return
			}
		}
	}
}

// Clone returns a copy whose slot storage is independent of m. Values are
// copied by assignment.
func (m *Map[K, V]) Clone() Map[K, V] {
	c := Map[K, V]{n: m.n}
	if len(m.slots) > 0 {
		c.slots = make([]slot[V], len(m.slots))
		copy(c.slots, m.slots)
	}
	return c
}
