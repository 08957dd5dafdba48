package ws

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is the dialing side of a websocket session.
type Client struct {
	ws      *websocket.Conn
	writeMu sync.Mutex
}

// Dial connects to an arena URL such as ws://host/arena/name?game=tracker.
func Dial(ctx context.Context, url string) (*Client, error) {
	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("ws: dial %s: %s: %w", url, resp.Status, err)
		}
		return nil, fmt.Errorf("ws: dial %s: %w", url, err)
	}
	ws.SetReadLimit(maxMessage)
	return &Client{ws: ws}, nil
}

// Send writes one frame. Safe for concurrent use.
func (c *Client) Send(frame []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}

// Receive blocks for the next binary frame. Only one goroutine may call it.
func (c *Client) Receive() ([]byte, error) {
	for {
		kind, payload, err := c.ws.ReadMessage()
		if err != nil {
			return nil, err
		}
		if kind == websocket.BinaryMessage {
			return payload, nil
		}
	}
}

// Close says goodbye and closes the socket.
func (c *Client) Close() error {
	c.writeMu.Lock()
	_ = c.ws.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
	c.writeMu.Unlock()
	return c.ws.Close()
}
