package lockstep

// InputID numbers a client's inputs. Zero is never sent.
type InputID uint32

// DatedInput is an input paired with its id.
type DatedInput[I any] struct {
	ID    InputID
	Input I
}

// InputWindow is the wire form of one or more consecutive inputs, newest
// last. The last input has LastInputID, the one before it LastInputID-1.
type InputWindow[I any] struct {
	SlidingWindow []I
	LastInputID   InputID
}

// Dated expands the window into dated inputs, oldest first. Ids saturate at
// zero for a malformed window longer than LastInputID.
func (w InputWindow[I]) Dated() []DatedInput[I] {
	out := make([]DatedInput[I], len(w.SlidingWindow))
	last := len(w.SlidingWindow) - 1
	for i, in := range w.SlidingWindow {
		back := InputID(last - i)
		id := InputID(0)
		if w.LastInputID > back {
			id = w.LastInputID - back
		}
		out[i] = DatedInput[I]{ID: id, Input: in}
	}
	return out
}

// Request carries a client's inputs to the server.
type Request[I any] struct {
	Inputs InputWindow[I]
}

// BotRequest wraps the single latest input of a bot. Bots have no
// acknowledgement stream, so the id is zero.
func BotRequest[I any](input I) Request[I] {
	return Request[I]{Inputs: InputWindow[I]{SlidingWindow: []I{input}}}
}
