package lockstep

// Stats counts what happened to a client's inputs on the server.
type Stats struct {
	Accepted  uint64
	Stale     uint64
	Duplicate uint64
	Invalid   uint64
	Overflow  uint64
	Oversized uint64
}

// ClientData is the server's per-connection state. Discard it when the
// connection closes; a new connection gets a fresh one and a fresh
// initialization.
type ClientData[I any] struct {
	Initialized         bool
	LastAppliedInputID  InputID
	LastReceivedInputID InputID
	// ReceiveBuffer is sorted by id with no duplicates.
	ReceiveBuffer []DatedInput[I]
	Stats         Stats
}

func NewClientData[I any]() *ClientData[I] {
	return &ClientData[I]{}
}

// Buffered is the number of inputs waiting to be applied.
func (c *ClientData[I]) Buffered() int {
	return len(c.ReceiveBuffer)
}

func (c *ClientData[I]) popFront() (DatedInput[I], bool) {
	if len(c.ReceiveBuffer) == 0 {
		return DatedInput[I]{}, false
	}
	in := c.ReceiveBuffer[0]
	c.ReceiveBuffer = c.ReceiveBuffer[1:]
	return in, true
}
