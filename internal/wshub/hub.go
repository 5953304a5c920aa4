package wshub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/coder/websocket"
	"github.com/rs/zerolog/log"

	"codeduel/internal/events"
)

// ClientMessage is the JSON command envelope received from clients. Seq is
// echoed on the ack for commands that expect one.
type ClientMessage struct {
	Type       string `json:"type"`
	Seq        int    `json:"seq,omitempty"`
	Token      string `json:"token,omitempty"`
	RoomID     string `json:"roomId,omitempty"`
	QuestionID string `json:"questionId,omitempty"`
	TimeLimit  int    `json:"timeLimit,omitempty"`
	Output     string `json:"output,omitempty"`
	Passed     bool   `json:"passed,omitempty"`
	Message    string `json:"message,omitempty"`
}

// Client represents a single WebSocket connection in the hub.
type Client struct {
	ID       string
	UID      string
	Username string
	Conn     *websocket.Conn
	Send     chan []byte
}

// WritePump reads from the Send channel and writes to the WebSocket connection.
func (c *Client) WritePump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-c.Send:
			if !ok {
				return
			}
			if err := c.Conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}
}

// Enqueue marshals an event onto the client's send queue. Non-blocking:
// drops if the queue is full.
func (c *Client) Enqueue(ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("marshal event")
		return
	}
	select {
	case c.Send <- data:
	default:
		log.Warn().Str("client_id", c.ID).Str("type", ev.Type).Msg("send queue full, dropping event")
	}
}

// Hub manages connections and their per-room groups. Group membership is
// server-side state, separate from the room entity itself.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client
	rooms   map[string]map[string]*Client
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		rooms:   make(map[string]map[string]*Client),
	}
}

// Register adds a client to the hub.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c.ID] = c
}

// Unregister removes a client from the hub and from every room group, and
// closes its Send channel.
func (h *Hub) Unregister(clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[clientID]
	if !ok {
		return
	}
	delete(h.clients, clientID)
	for roomID, group := range h.rooms {
		if _, in := group[clientID]; in {
			delete(group, clientID)
			if len(group) == 0 {
				delete(h.rooms, roomID)
			}
		}
	}
	close(c.Send)
}

// Join adds a client to a room group.
func (h *Hub) Join(roomID string, c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[roomID] == nil {
		h.rooms[roomID] = make(map[string]*Client)
	}
	h.rooms[roomID][c.ID] = c
}

// Leave removes a client from a room group.
func (h *Hub) Leave(roomID, clientID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if group, ok := h.rooms[roomID]; ok {
		delete(group, clientID)
		if len(group) == 0 {
			delete(h.rooms, roomID)
		}
	}
}

// CloseRoom drops a room group. The connections themselves stay open.
func (h *Hub) CloseRoom(roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms, roomID)
}

// Broadcast sends an event to everyone in a room, the sender included.
// The event is marshaled once; slow clients are skipped, not waited on.
func (h *Hub) Broadcast(roomID string, ev events.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Error().Err(err).Str("type", ev.Type).Msg("marshal broadcast")
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, c := range h.rooms[roomID] {
		select {
		case c.Send <- data:
		default:
			// Drop message if channel full
		}
	}
}

// Counts reports live connections and room groups, for the health endpoint.
func (h *Hub) Counts() (clients, rooms int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients), len(h.rooms)
}
