package multiplayer

import "sync"

// Session is the transport-neutral handle of one connection. The arena
// sends it encoded updates, which must arrive in order and complete.
type Session interface {
	ID() SessionID

	// Send queues a frame without blocking. It reports false when the
	// session cannot keep up; the arena then drops the session, since a
	// missing update cannot be recovered.
	Send(frame []byte) bool

	// Done closes when the session ends.
	Done() <-chan struct{}

	// Unreliable reports whether requests from this session may be lost or
	// reordered, which selects the input window size.
	Unreliable() bool

	Close()
}

// ChannelSession is a Session backed by a buffered channel. Tests and
// in-process bots read frames from Frames.
type ChannelSession struct {
	id         SessionID
	unreliable bool
	frames     chan []byte
	done       chan struct{}
	doneOnce   sync.Once
}

// NewChannelSession creates a session that buffers up to bufferSize frames.
func NewChannelSession(id SessionID, bufferSize int, unreliable bool) *ChannelSession {
	if bufferSize < 1 {
		bufferSize = 64
	}
	return &ChannelSession{
		id:         id,
		unreliable: unreliable,
		frames:     make(chan []byte, bufferSize),
		done:       make(chan struct{}),
	}
}

func (s *ChannelSession) ID() SessionID { return s.id }

func (s *ChannelSession) Unreliable() bool { return s.unreliable }

func (s *ChannelSession) Send(frame []byte) bool {
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.frames <- frame:
		return true
	default:
		return false
	}
}

// Frames returns the channel frames are delivered on.
func (s *ChannelSession) Frames() <-chan []byte {
	return s.frames
}

func (s *ChannelSession) Done() <-chan struct{} {
	return s.done
}

// Close marks the session as done. Safe to call multiple times.
func (s *ChannelSession) Close() {
	s.doneOnce.Do(func() {
		close(s.done)
	})
}

// SessionRegistry tracks live sessions across arenas.
type SessionRegistry struct {
	mu       sync.RWMutex
	sessions map[SessionID]Session
}

func NewSessionRegistry() *SessionRegistry {
	return &SessionRegistry{
		sessions: make(map[SessionID]Session),
	}
}

func (r *SessionRegistry) Register(s Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID()] = s
}

func (r *SessionRegistry) Unregister(id SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *SessionRegistry) Get(id SessionID) (Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	return s, ok
}

func (r *SessionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}
