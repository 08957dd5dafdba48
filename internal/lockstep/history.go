package lockstep

// history keeps the most recent samples in a fixed ring.
type history struct {
	buf  []int
	next int
	n    int
}

func newHistory(size int) *history {
	return &history{buf: make([]int, max(size, 1))}
}

func (h *history) push(v int) {
	h.buf[h.next] = v
	h.next = (h.next + 1) % len(h.buf)
	h.n = min(h.n+1, len(h.buf))
}

func (h *history) recent() (int, bool) {
	if h.n == 0 {
		return 0, false
	}
	return h.buf[(h.next-1+len(h.buf))%len(h.buf)], true
}

func (h *history) sum() int {
	total := 0
	for i := range h.n {
		total += h.buf[i]
	}
	return total
}

func (h *history) len() int { return h.n }

