package lockstep

// Initialization is sent once per connection: the client's id and a full
// snapshot to start from.
type Initialization[P, I Hashable, T any] struct {
	PlayerID PlayerID
	Snapshot *Lockstep[P, I, T]
}

// Update is what the server sends each client after every tick.
type Update[P, I Hashable, T any] struct {
	Initialization      *Initialization[P, I, T]
	LastAppliedInputID  InputID
	LastReceivedInputID InputID
	Tick                Tick[P, I, T]
	// BufferedInputs is the size of the client's server-side backlog.
	BufferedInputs int
}
