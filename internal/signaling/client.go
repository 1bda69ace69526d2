package signaling

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer. Large enough for a
	// base64-encoded file-message payload.
	maxMessageSize = 8 * 1024 * 1024

	// Outbound queue depth per client.
	sendBufferSize = 256
)

// Client is a wrapper for a single websocket connection (a peer).
type Client struct {
	// ID is the identity assigned by the registry at connect time.
	ID string

	// hub is the hub that manages this client.
	hub *Hub

	// conn is the websocket connection.
	conn *websocket.Conn

	// send is the buffered channel of outbound messages. The hub
	// enqueues pre-marshaled frames and WritePump drains them, so
	// there is exactly one writer per connection.
	send chan []byte
}

// enqueue offers a frame to the client's send queue without blocking.
// Reports false when the queue is full.
func (c *Client) enqueue(data []byte) bool {
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// ReadPump pumps messages from the websocket connection to the hub.
//
// The application runs ReadPump in a per-connection goroutine, so all
// reads happen from a single goroutine. Frames that fail to decode are
// logged and skipped; the connection stays open.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Warn("read error", "client", c.ID, "error", err)
			}
			break
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.hub.logger.Warn("malformed message", "client", c.ID, "error", err)
			continue
		}

		env.client = c
		c.hub.inbound <- &env
	}
}

// WritePump pumps messages from the hub to the websocket connection.
//
// A goroutine running WritePump is started for each connection, so all
// writes happen from a single goroutine. It exits when the hub closes
// the send channel, which in turn closes the connection and ends
// ReadPump.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// The hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Warn("write error", "client", c.ID, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
