package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	maxMessageSize = 4096
	sendBufferSize = 256
)

var timeNow = time.Now

// Client is one websocket connection owned by an authenticated user.
type Client struct {
	ID      uuid.UUID
	UserID  uuid.UUID
	StoreID *uuid.UUID
	Role    string

	conn *websocket.Conn
	send chan []byte
	done chan struct{}

	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, userID uuid.UUID, storeID *uuid.UUID, role string) *Client {
	return &Client{
		ID:      uuid.New(),
		UserID:  userID,
		StoreID: storeID,
		Role:    role,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		done:    make(chan struct{}),
	}
}

// trySend queues a payload without blocking. Returns false when the client
// is closed or its buffer is full; the hub treats either as a dead client.
func (c *Client) trySend(payload []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// Close signals shutdown exactly once. The send channel stays open because
// hub broadcast snapshots may still call trySend; writePump observes done
// and tears down the socket.
func (c *Client) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
	})
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
