package realtime

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"

	"github.com/opensocial/backend/internal/logger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
	sendBufferSize = 64
)

// Client is one websocket connection bound to an authenticated user.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	connID string
	send   chan []byte
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, connID string) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		connID: connID,
		send:   make(chan []byte, sendBufferSize),
	}
}

// ReadPump reads inbound frames and dispatches them until the connection
// closes, then detaches the client from the hub.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Detach(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn(context.Background(), "websocket closed unexpectedly", map[string]interface{}{
					"user_id": c.userID,
					"error":   err.Error(),
				})
			}
			return
		}

		c.dispatch(raw)
	}
}

func (c *Client) dispatch(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		logger.Debug(context.Background(), "dropping malformed realtime frame", map[string]interface{}{
			"user_id": c.userID,
		})
		return
	}

	switch env.Event {
	case EventAddUser:
		// The payload's userId is ignored; identity comes from the token
		// the connection authenticated with.
		c.hub.Register(c)

	case EventSendMessage:
		var msg MessagePayload
		if err := json.Unmarshal(env.Data, &msg); err != nil || msg.Receiver == "" {
			return
		}
		msg.Sender = c.userID
		c.hub.DeliverMessage(&msg)

	case EventTyping, EventStopTyping:
		var sig TypingPayload
		if err := json.Unmarshal(env.Data, &sig); err != nil || sig.Receiver == "" {
			return
		}
		sig.Sender = c.userID
		c.hub.DeliverTyping(env.Event, &sig)
	}
}

// WritePump writes outbound frames and keeps the connection alive with
// pings. It exits when the hub closes the send channel or a write fails.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
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
