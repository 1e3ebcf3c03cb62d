package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/domain"
	"github.com/msarczar/TimeGuessr-Tracker-for-Discord/internal/stats"
)

// Message types
const (
	MessageTypeScoreRecorded = "score_recorded"
	MessageTypeSubscribe     = "subscribe"
	MessageTypeUnsubscribe   = "unsubscribe"
	MessageTypePing          = "ping"
	MessageTypePong          = "pong"
	MessageTypeError         = "error"
)

// Message represents a WebSocket message
type Message struct {
	Type      string      `json:"type"`
	GroupID   string      `json:"group_id,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ScoreAck carries a newly recorded score and the player's updated streaks.
type ScoreAck struct {
	GroupID    string             `json:"group_id"`
	PlayerID   string             `json:"player_id"`
	PlayerName string             `json:"player_name"`
	GameNumber int                `json:"game_number"`
	Score      int                `json:"score"`
	MaxScore   int                `json:"max_score"`
	GameDate   string             `json:"game_date"`
	Streaks    stats.StreakResult `json:"streaks"`
}

// Hub maintains the set of active clients and broadcasts messages
type Hub struct {
	// Registered clients by group ID
	clients map[string]map[*Client]bool

	// All connected clients
	allClients map[*Client]bool

	// Register requests from clients
	register chan *Client

	// Unregister requests from clients
	unregister chan *Client

	// Inbound messages from clients
	broadcast chan *Message

	// Subscription requests
	subscribe chan *subscriptionRequest

	// Unsubscription requests
	unsubscribe chan *subscriptionRequest

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Logger
	logger *slog.Logger

	// Context for shutdown
	ctx    context.Context
	cancel context.CancelFunc
}

type subscriptionRequest struct {
	client  *Client
	groupID string
}

// NewHub creates a new Hub
func NewHub(logger *slog.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:     make(map[string]map[*Client]bool),
		allClients:  make(map[*Client]bool),
		register:    make(chan *Client),
		unregister:  make(chan *Client),
		broadcast:   make(chan *Message, 256),
		subscribe:   make(chan *subscriptionRequest, 64),
		unsubscribe: make(chan *subscriptionRequest, 64),
		logger:      logger,
		ctx:         ctx,
		cancel:      cancel,
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")
	for {
		select {
		case <-h.ctx.Done():
			h.logger.Info("WebSocket hub stopping")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.allClients[client] = true
			h.mu.Unlock()
			h.logger.Debug("client registered", "client_id", client.id)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.allClients[client]; ok {
				delete(h.allClients, client)
				// Remove from all group subscriptions
				for groupID, clients := range h.clients {
					if _, ok := clients[client]; ok {
						delete(clients, client)
						if len(clients) == 0 {
							delete(h.clients, groupID)
						}
					}
				}
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug("client unregistered", "client_id", client.id)

		case req := <-h.subscribe:
			h.mu.Lock()
			if _, ok := h.clients[req.groupID]; !ok {
				h.clients[req.groupID] = make(map[*Client]bool)
			}
			h.clients[req.groupID][req.client] = true
			h.mu.Unlock()
			h.logger.Debug("client subscribed", "client_id", req.client.id, "group_id", req.groupID)

		case req := <-h.unsubscribe:
			h.mu.Lock()
			if clients, ok := h.clients[req.groupID]; ok {
				delete(clients, req.client)
				if len(clients) == 0 {
					delete(h.clients, req.groupID)
				}
			}
			h.mu.Unlock()
			h.logger.Debug("client unsubscribed", "client_id", req.client.id, "group_id", req.groupID)

		case message := <-h.broadcast:
			h.broadcastMessage(message)
		}
	}
}

// Stop stops the hub
func (h *Hub) Stop() {
	h.cancel()
}

// broadcastMessage sends a message to all subscribed clients
func (h *Hub) broadcastMessage(message *Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("failed to marshal message", "error", err)
		return
	}

	// If message has a group ID, only send to subscribed clients
	if message.GroupID != "" {
		if clients, ok := h.clients[message.GroupID]; ok {
			for client := range clients {
				select {
				case client.send <- data:
				default:
					// Client's buffer is full, skip
					h.logger.Warn("client buffer full, skipping", "client_id", client.id)
				}
			}
		}
	} else {
		// Broadcast to all clients
		for client := range h.allClients {
			select {
			case client.send <- data:
			default:
				h.logger.Warn("client buffer full, skipping", "client_id", client.id)
			}
		}
	}
}

// NotifyScoreRecorded sends a score acknowledgement to clients subscribed to
// the group. It satisfies the service notifier and never blocks the caller.
func (h *Hub) NotifyScoreRecorded(groupID string, rec domain.ScoreRecord, streaks stats.StreakResult) {
	message := &Message{
		Type:    MessageTypeScoreRecorded,
		GroupID: groupID,
		Data: ScoreAck{
			GroupID:    rec.GroupID,
			PlayerID:   rec.PlayerID,
			PlayerName: rec.PlayerName,
			GameNumber: rec.GameNumber,
			Score:      rec.Score,
			MaxScore:   rec.MaxScore,
			GameDate:   rec.GameDate,
			Streaks:    streaks,
		},
		Timestamp: time.Now(),
	}

	select {
	case h.broadcast <- message:
	default:
		h.logger.Warn("broadcast channel full, dropping message")
	}
}

// Register adds a client to the hub
func (h *Hub) Register(client *Client) {
	h.register <- client
}

// Unregister removes a client from the hub
func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Subscribe adds a client to a group subscription
func (h *Hub) Subscribe(client *Client, groupID string) {
	h.subscribe <- &subscriptionRequest{
		client:  client,
		groupID: groupID,
	}
}

// Unsubscribe removes a client from a group subscription
func (h *Hub) Unsubscribe(client *Client, groupID string) {
	h.unsubscribe <- &subscriptionRequest{
		client:  client,
		groupID: groupID,
	}
}

// GetSubscriberCount returns the number of subscribers for a group
func (h *Hub) GetSubscriberCount(groupID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if clients, ok := h.clients[groupID]; ok {
		return len(clients)
	}
	return 0
}

// GetTotalConnections returns the total number of connected clients
func (h *Hub) GetTotalConnections() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.allClients)
}
