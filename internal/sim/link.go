package sim

import (
	"cmp"
	"math/rand/v2"
	"slices"
	"time"
)

type flight[M any] struct {
	at  time.Duration
	seq int
	msg M
}

// Link is a one-way network path on a virtual clock. Messages are delayed by
// latency plus uniform jitter and dropped with probability loss. An ordered
// link never delivers a message before one sent earlier.
type Link[M any] struct {
	latency time.Duration
	jitter  time.Duration
	loss    float64
	ordered bool
	rng     *rand.Rand

	inFlight []flight[M]
	last     time.Duration
	seq      int

	Sent int
	Lost int
}

func NewLink[M any](latency, jitter time.Duration, loss float64, ordered bool, rng *rand.Rand) *Link[M] {
	return &Link[M]{
		latency: latency,
		jitter:  jitter,
		loss:    loss,
		ordered: ordered,
		rng:     rng,
	}
}

// Send schedules msg. It reports false when the message was lost.
func (l *Link[M]) Send(now time.Duration, msg M) bool {
	l.Sent++
	if l.loss > 0 && l.rng.Float64() < l.loss {
		l.Lost++
		return false
	}
	at := now + l.latency
	if l.jitter > 0 {
		at += time.Duration(l.rng.Int64N(int64(l.jitter) + 1))
	}
	if l.ordered {
		at = max(at, l.last)
		l.last = at
	}
	l.seq++
	l.inFlight = append(l.inFlight, flight[M]{at: at, seq: l.seq, msg: msg})
	return true
}

// Receive removes and returns every message due by now, earliest first.
func (l *Link[M]) Receive(now time.Duration) []M {
	slices.SortStableFunc(l.inFlight, func(a, b flight[M]) int {
		if c := cmp.Compare(a.at, b.at); c != 0 {
			return c
		}
		return cmp.Compare(a.seq, b.seq)
	})
	n := 0
	for n < len(l.inFlight) && l.inFlight[n].at <= now {
		n++
	}
	if n == 0 {
		return nil
	}
	out := make([]M, n)
	for i := range n {
		out[i] = l.inFlight[i].msg
	}
	l.inFlight = slices.Delete(l.inFlight, 0, n)
	return out
}

// Pending is the number of messages in flight.
func (l *Link[M]) Pending() int { return len(l.inFlight) }
