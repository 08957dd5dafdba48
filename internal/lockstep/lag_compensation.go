package lockstep

// LagCompensation retains one value per tick for the last N ticks, so an
// action can be evaluated against the state its sender saw.
type LagCompensation[T any] struct {
	slots []lagSlot[T]
}

type lagSlot[T any] struct {
	tick  uint32
	value T
	ok    bool
}

// NewLagCompensation allocates a ring of cfg.LagCompensation slots.
func NewLagCompensation[T any](cfg Config) *LagCompensation[T] {
	return &LagCompensation[T]{slots: make([]lagSlot[T], cfg.LagCompensation)}
}

func (l *LagCompensation[T]) Len() int { return len(l.slots) }

// Write stores v for tickID, replacing whatever tick last used the slot.
func (l *LagCompensation[T]) Write(tickID uint32, v T) {
	l.slots[tickID%uint32(len(l.slots))] = lagSlot[T]{tick: tickID, value: v, ok: true}
}

// Read returns the value written latency ticks before tickID. It is absent
// when latency reaches the ring depth or the slot has been reused.
func (l *LagCompensation[T]) Read(tickID uint32, latency int) (T, bool) {
	var zero T
	if latency < 0 || latency >= len(l.slots) || uint32(latency) > tickID {
		return zero, false
	}
	want := tickID - uint32(latency)
	s := l.slots[want%uint32(len(l.slots))]
	if !s.ok || s.tick != want {
		return zero, false
	}
	return s.value, true
}

// Clear forgets all history.
func (l *LagCompensation[T]) Clear() {
	clear(l.slots)
}
