package hub

import (
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

// Connection timing. Pings go out well inside the read deadline so an idle
// dashboard tab is not mistaken for a dead one.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	// Clients only send pongs and close frames.
	maxMessageSize = 4 * 1024

	// A client more than sendBuffer messages behind is dropped by the hub.
	sendBuffer = 32
)

// Client is one websocket subscriber.
type Client struct {
	ID        string
	hub       *Hub
	conn      *websocket.Conn
	send      chan Message
	connected time.Time
}

// Serve registers conn and pumps messages until either side closes. hello
// messages are queued ahead of any broadcast. It blocks, so call it from the
// websocket handler.
func (h *Hub) Serve(conn *websocket.Conn, hello ...Message) {
	c := &Client{
		ID:        uuid.NewString(),
		hub:       h,
		conn:      conn,
		send:      make(chan Message, sendBuffer),
		connected: time.Now(),
	}
	for _, m := range hello {
		c.send <- m
	}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	err := c.readPump()

	attrs := []any{"client", c.ID, "connected_for", time.Since(c.connected).Round(time.Second)}
	if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
		h.logger.Debug("client dropped", append(attrs, "error", err)...)
		return
	}
	h.logger.Debug("client left", attrs...)
}

// readPump consumes pongs and close frames and returns the read error that
// ended the connection.
func (c *Client) readPump() error {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return err
		}
	}
}

// writePump owns all writes to the connection. It exits when the hub closes
// send or a write fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	defer c.conn.Close()

	for {
		select {
		case m, ok := <-c.send:
			if !ok {
				c.write(websocket.CloseMessage, nil)
				return
			}
			if err := c.write(m.Type.frameType(), m.Data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) write(frameType int, data []byte) error {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteMessage(frameType, data)
}

func (t MessageType) frameType() int {
	if t == BinaryMessage {
		return websocket.BinaryMessage
	}
	return websocket.TextMessage
}
