// Package ws carries lockstep frames over websockets. Every frame is one
// binary message; the arena never sees the socket, only a Session.
package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/vovakirdan/lockstep/internal/multiplayer"
)

const (
	writeWait  = 5 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
	maxMessage = 1 << 20
)

// conn is the server side of one websocket, seen by the arena as a Session.
type conn struct {
	ws         *websocket.Conn
	id         multiplayer.SessionID
	unreliable bool
	send       chan []byte
	done       chan struct{}
	closeOnce  sync.Once
}

var _ multiplayer.Session = (*conn)(nil)

func newConn(ws *websocket.Conn, id multiplayer.SessionID, queue int, unreliable bool) *conn {
	return &conn{
		ws:         ws,
		id:         id,
		unreliable: unreliable,
		send:       make(chan []byte, queue),
		done:       make(chan struct{}),
	}
}

func (c *conn) ID() multiplayer.SessionID { return c.id }
func (c *conn) Unreliable() bool { return c.unreliable }
func (c *conn) Done() <-chan struct{} { return c.done }

// Send queues a frame for the write pump without blocking.
func (c *conn) Send(frame []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

func (c *conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// writePump owns every write to the socket.
func (c *conn) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.BinaryMessage, msg); err != nil {
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				c.Close()
				return
			}
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return
		}
	}
}

// readPump hands every binary message to deliver until the socket fails.
func (c *conn) readPump(deliver func([]byte)) {
	defer c.Close()
	c.ws.SetReadLimit(maxMessage)
	_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		kind, payload, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(pongWait))
		deliver(payload)
	}
}
