package services

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// WSMessage represents a WebSocket activity event. Events never carry
// chronicle content; the concealment gate is the only content path.
type WSMessage struct {
	Type         string      `json:"type"`
	ConnectionID string      `json:"connection_id,omitempty"`
	ChronicleID  string      `json:"chronicle_id,omitempty"`
	SentAt       *time.Time  `json:"sent_at,omitempty"`
	Online       *bool       `json:"online,omitempty"`
	Data         interface{} `json:"data,omitempty"`
}

// WSHub manages WebSocket connections keyed by user id.
type WSHub struct {
	mu          sync.RWMutex
	connections map[string]*websocket.Conn
}

// NewWSHub creates a new WebSocket hub
func NewWSHub() *WSHub {
	return &WSHub{
		connections: make(map[string]*websocket.Conn),
	}
}

// Register registers a new WebSocket connection for a user
func (h *WSHub) Register(userID string, conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Close existing connection if any
	if existing, exists := h.connections[userID]; exists {
		existing.Close()
	}
	h.connections[userID] = conn

	log.Info().Str("user_id", userID).Msg("WebSocket connection registered")
}

// Unregister removes a WebSocket connection for a user
func (h *WSHub) Unregister(userID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if conn, exists := h.connections[userID]; exists {
		conn.Close()
		delete(h.connections, userID)
		log.Info().Str("user_id", userID).Msg("WebSocket connection unregistered")
	}
}

// SendToUser sends a message to a specific user
func (h *WSHub) SendToUser(userID string, message WSMessage) error {
	h.mu.RLock()
	conn, exists := h.connections[userID]
	h.mu.RUnlock()

	if !exists {
		return fmt.Errorf("user %s is not connected", userID)
	}

	data, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		h.Unregister(userID)
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// IsOnline checks if a user is online
func (h *WSHub) IsOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, exists := h.connections[userID]
	return exists
}

// NotifyConnectionCreated tells a user someone started a connection with
// them. Best-effort; offline users simply miss the event.
func (h *WSHub) NotifyConnectionCreated(userID, connectionID string) {
	if !h.IsOnline(userID) {
		return
	}
	err := h.SendToUser(userID, WSMessage{
		Type:         "connection_created",
		ConnectionID: connectionID,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to notify connection created")
	}
}

// NotifyChronicleSent tells the receiver a chronicle is on its way. The
// event identifies the chronicle but carries none of its content.
func (h *WSHub) NotifyChronicleSent(receiverID, connectionID, chronicleID string, sentAt time.Time) {
	if !h.IsOnline(receiverID) {
		return
	}
	err := h.SendToUser(receiverID, WSMessage{
		Type:         "chronicle_sent",
		ConnectionID: connectionID,
		ChronicleID:  chronicleID,
		SentAt:       &sentAt,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", receiverID).Msg("Failed to notify chronicle sent")
	}
}

// NotifyCounterpartStatus pushes an online/offline event for a counterpart.
func (h *WSHub) NotifyCounterpartStatus(userID string, online bool) {
	if !h.IsOnline(userID) {
		return
	}
	err := h.SendToUser(userID, WSMessage{
		Type:   "counterpart_status",
		Online: &online,
	})
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to notify counterpart status")
	}
}
