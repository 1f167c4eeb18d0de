package ws

import (
	"sync"
	"time"

	"orchestrator-service/src/schemas"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Client is one connected party. It implements models.Sender; writes are
// serialized with a mutex because the orchestrator, timer callbacks and the
// read loop may all deliver events concurrently.
type Client struct {
	conn    *websocket.Conn
	partyID string

	mu sync.Mutex
}

// NewClient wraps an upgraded connection.
func NewClient(conn *websocket.Conn) *Client {
	return &Client{conn: conn}
}

// PartyID returns the identity bound by the register event, or "" before
// registration.
func (c *Client) PartyID() string {
	return c.partyID
}

// Send writes one event frame to the party.
func (c *Client) Send(event schemas.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return c.conn.WriteJSON(event)
}

// Close tears down the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}
