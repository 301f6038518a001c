package relay

import (
	"context"
	"sync"
	"time"

	"github.com/coder/websocket"
)

const (
	sendBuffer   = 32 // Small buffer per connection
	writeTimeout = 3 * time.Second
)

// Client is one attached socket, host's or player's. Outbound frames
// queue on send and a single pump goroutine writes them; the queue is
// never closed, the pump exits with the connection context.
type Client struct {
	conn      *websocket.Conn
	send      chan []byte
	closeOnce sync.Once
}

func NewClient(conn *websocket.Conn) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
}

// TrySend queues a frame without blocking. A full queue means the peer
// is slow; the frame is dropped and the caller decides what to log.
func (c *Client) TrySend(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// WritePump drains the queue onto the socket until ctx ends or a write
// fails. Run it as a goroutine right after accepting the connection.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := c.conn.Write(wctx, websocket.MessageText, frame)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// Close shuts the underlying socket. Safe to call more than once.
func (c *Client) Close(code websocket.StatusCode, reason string) {
	c.closeOnce.Do(func() {
		if c.conn != nil {
			_ = c.conn.Close(code, reason)
		}
	})
}
