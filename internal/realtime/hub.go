package realtime

import (
	"context"
	"sync"

	"github.com/opensocial/backend/internal/logger"
	"github.com/opensocial/backend/internal/metrics"
)

// Hub owns the set of active clients and routes events between them using
// the presence registry. All maps are mutex-guarded; client goroutines call
// into the hub concurrently.
type Hub struct {
	mu       sync.RWMutex
	clients  map[string]*Client // by connection id
	registry *Registry
	log      *logger.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		registry: NewRegistry(),
		log:      logger.Default().WithComponent("realtime"),
	}
}

// Registry exposes presence lookups to other packages.
func (h *Hub) Registry() *Registry {
	return h.registry
}

// Attach adds a freshly-upgraded connection. The client is not visible in
// the presence registry until its addUser event arrives.
func (h *Hub) Attach(c *Client) {
	h.mu.Lock()
	h.clients[c.connID] = c
	h.mu.Unlock()

	metrics.Default().ConnectionOpened()
}

// Register makes an attached client's identity visible and broadcasts the
// updated presence list to everyone.
func (h *Hub) Register(c *Client) {
	h.registry.Register(c.userID, c.connID)
	h.log.Debug(context.Background(), "user registered", map[string]interface{}{
		"user_id": c.userID,
		"conn_id": c.connID,
	})
	h.broadcastPresence()
}

// Detach removes a closing connection. Presence is updated and broadcast
// only if the connection had registered.
func (h *Hub) Detach(c *Client) {
	h.mu.Lock()
	_, attached := h.clients[c.connID]
	if attached {
		delete(h.clients, c.connID)
		close(c.send)
	}
	h.mu.Unlock()

	if !attached {
		return
	}

	metrics.Default().ConnectionClosed()

	if userID, _ := h.registry.Unregister(c.connID); userID != "" {
		h.broadcastPresence()
	}
}

// DeliverMessage pushes a chat message to every connection of the receiver.
// An offline receiver is not an error: the event is silently dropped, and
// durability is the message store's job.
func (h *Hub) DeliverMessage(msg *MessagePayload) {
	frame, err := marshalEvent(EventGetMessage, DeliveredMessage{
		Sender:    msg.Sender,
		Text:      msg.Text,
		Delivered: true,
	})
	if err != nil {
		h.log.Error(context.Background(), "failed to marshal message event", err)
		return
	}
	h.pushToUser(msg.Receiver, frame)
}

// DeliverTyping relays a typing or stopTyping signal, carrying only the
// sender id. No buffering and no timeout auto-clear.
func (h *Hub) DeliverTyping(event string, sig *TypingPayload) {
	frame, err := marshalEvent(event, sig.Sender)
	if err != nil {
		h.log.Error(context.Background(), "failed to marshal typing event", err)
		return
	}
	h.pushToUser(sig.Receiver, frame)
}

func (h *Hub) pushToUser(userID string, frame []byte) {
	conns := h.registry.Connections(userID)
	if len(conns) == 0 {
		metrics.Default().MessageDropped()
		return
	}

	var slow []*Client
	h.mu.RLock()
	for _, connID := range conns {
		client, ok := h.clients[connID]
		if !ok {
			continue
		}
		select {
		case client.send <- frame:
			metrics.Default().MessageDelivered()
		default:
			// Send buffer full: the client cannot keep up. Drop the
			// frame and disconnect it.
			metrics.Default().MessageDropped()
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.Detach(client)
	}
}

// broadcastPresence emits the full online-user list to every connection.
// Clients whose buffers are full are disconnected, same as on the message
// path.
func (h *Hub) broadcastPresence() {
	frame, err := marshalEvent(EventGetUsers, PresenceList{Users: h.registry.OnlineUsers()})
	if err != nil {
		h.log.Error(context.Background(), "failed to marshal presence event", err)
		return
	}

	var slow []*Client
	h.mu.RLock()
	for _, client := range h.clients {
		select {
		case client.send <- frame:
		default:
			slow = append(slow, client)
		}
	}
	h.mu.RUnlock()

	for _, client := range slow {
		h.Detach(client)
	}
}

// ClientCount returns the number of attached connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
