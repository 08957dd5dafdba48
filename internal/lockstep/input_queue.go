package lockstep

import (
	"fmt"
	"iter"
	"slices"
)

// InputQueue holds the client's inputs that the server has not applied yet.
type InputQueue[I any] struct {
	inputs []I
	// end is one past the id of the newest input.
	end    InputID
	window int
	limit  int
}

func NewInputQueue[I any](cfg Config) *InputQueue[I] {
	return &InputQueue[I]{
		inputs: make([]I, 0, cfg.MaxPrediction),
		end:    1,
		window: cfg.InputsPerEfficientPacket,
		limit:  cfg.MaxPrediction,
	}
}

// IsFull reports whether further local prediction must stop.
func (q *InputQueue[I]) IsFull() bool {
	return len(q.inputs) >= q.limit
}

func (q *InputQueue[I]) Len() int { return len(q.inputs) }

// End is the id the next pushed input will get.
func (q *InputQueue[I]) End() InputID { return q.end }

// PopFront discards the oldest input. End does not move.
func (q *InputQueue[I]) PopFront() {
	if len(q.inputs) > 0 {
		q.inputs = slices.Delete(q.inputs, 0, 1)
	}
}

// PushBack appends input and returns the window to send: just the new input
// over reliable transport, otherwise up to the last InputsPerEfficientPacket
// queued inputs. Panics if the queue is full.
func (q *InputQueue[I]) PushBack(input I, unreliable bool) InputWindow[I] {
	if q.IsFull() {
		panic("lockstep: push to full input queue")
	}
	id := q.end
	q.end++
	q.inputs = append(q.inputs, input)

	n := 1
	if unreliable {
		n = q.window
	}
	start := max(len(q.inputs)-n, 0)
	return InputWindow[I]{
		SlidingWindow: slices.Clone(q.inputs[start:]),
		LastInputID:   id,
	}
}

// Acknowledged drops every input with id up to and including lastApplied.
// Panics if the server acknowledges an input that was never sent.
func (q *InputQueue[I]) Acknowledged(lastApplied InputID) {
	start := q.end - InputID(len(q.inputs))
	if lastApplied < start {
		return
	}
	n := int(lastApplied-start) + 1
	if n > len(q.inputs) {
		panic(fmt.Sprintf("lockstep: server acknowledged unsent input %d (end %d)", lastApplied, q.end))
	}
	q.inputs = slices.Delete(q.inputs, 0, n)
}

// All iterates queued inputs, oldest first.
func (q *InputQueue[I]) All() iter.Seq[I] {
	return slices.Values(q.inputs)
}

// Latency is the number of inputs sent after the one the server last
// received.
func (q *InputQueue[I]) Latency(received InputID) int {
	return int((q.end - 1) - received)
}
