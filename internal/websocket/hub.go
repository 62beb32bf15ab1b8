package websocket

import (
	"encoding/json"
	"log"
)

// Envelope is the frame pushed to clients. Type names the event
// ("recipes:updated", "friends:updated"), Data carries the optional payload.
type Envelope struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// userMessage targets every open session of a single user.
type userMessage struct {
	userID  uint
	payload []byte
}

// Hub maintains the set of active clients and routes pushes to them.
// A user may hold several sessions at once (multiple tabs or devices),
// so clients are kept as a set per user ID.
type Hub struct {
	clients map[uint]map[*Client]struct{}

	// Register requests from the clients.
	register chan *Client

	// Unregister requests from clients.
	unregister chan *Client

	// Messages aimed at all sessions of a specific user.
	direct chan *userMessage
}

// NewHub creates a new Hub.
func NewHub() *Hub {
	return &Hub{
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[uint]map[*Client]struct{}),
		direct:     make(chan *userMessage, 256),
	}
}

// PushToUser serializes the envelope and delivers it to every open session
// of the user. Delivery is best-effort; clients that fall behind are dropped.
func (h *Hub) PushToUser(userID uint, env Envelope) {
	payload, err := json.Marshal(env)
	if err != nil {
		log.Printf("Failed to serialize %s push for user %d: %v", env.Type, userID, err)
		return
	}
	// Non-blocking send so callers (services, the sync consumer) never stall.
	select {
	case h.direct <- &userMessage{userID: userID, payload: payload}:
	default:
		log.Printf("Warning: hub direct channel is full, dropping %s push for user %d", env.Type, userID)
	}
}

// Run starts the hub and listens for messages on its channels.
func (h *Hub) Run() {
	log.Println("WebSocket Hub Run loop started.")
	for {
		select {
		case client := <-h.register:
			sessions, ok := h.clients[client.UserID]
			if !ok {
				sessions = make(map[*Client]struct{})
				h.clients[client.UserID] = sessions
			}
			sessions[client] = struct{}{}
			log.Printf("Client registered: UserID %d (%d open sessions)", client.UserID, len(sessions))

		case client := <-h.unregister:
			if sessions, ok := h.clients[client.UserID]; ok {
				if _, stored := sessions[client]; stored {
					delete(sessions, client)
					close(client.send)
					if len(sessions) == 0 {
						delete(h.clients, client.UserID)
					}
					log.Printf("Client unregistered: UserID %d", client.UserID)
				}
			}

		case msg := <-h.direct:
			sessions, ok := h.clients[msg.userID]
			if !ok {
				// User not connected; pushes are advisory, nothing to do.
				continue
			}
			for client := range sessions {
				select {
				case client.send <- msg.payload:
				default:
					// A full send buffer means a slow or dead session.
					log.Printf("Warning: send channel full for UserID %d, dropping session.", msg.userID)
					close(client.send)
					delete(sessions, client)
					if len(sessions) == 0 {
						delete(h.clients, msg.userID)
					}
				}
			}
		}
	}
}
