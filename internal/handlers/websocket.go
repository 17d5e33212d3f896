package handlers

import (
	"net/http"

	"github.com/actuallyakshat/chrona/internal/middleware"
	"github.com/actuallyakshat/chrona/internal/services"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler handles the activity event stream. The stream only
// carries content-free events; chronicle content is served exclusively by
// the connection read endpoint.
type WebSocketHandler struct {
	hub               *services.WSHub
	userService       *services.UserService
	connectionService *services.ConnectionService
}

// NewWebSocketHandler creates a new WebSocket handler
func NewWebSocketHandler(
	hub *services.WSHub,
	userService *services.UserService,
	connectionService *services.ConnectionService,
) *WebSocketHandler {
	return &WebSocketHandler{
		hub:               hub,
		userService:       userService,
		connectionService: connectionService,
	}
}

// HandleWebSocket handles GET /ws?token=
func (h *WebSocketHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		respondError(w, "token required", http.StatusUnauthorized)
		return
	}

	userID, err := middleware.ValidateWebSocketToken(r.Context(), token, h.userService)
	if err != nil {
		respondError(w, "invalid token", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}

	h.hub.Register(userID, conn)
	defer h.hub.Unregister(userID)

	h.notifyCounterparts(r, userID, true)
	defer h.notifyCounterparts(r, userID, false)

	log.Info().Str("user_id", userID).Msg("WebSocket connection established")

	// The stream is server-to-client only; the read loop exists to detect
	// disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Error().Err(err).Str("user_id", userID).Msg("WebSocket error")
			}
			break
		}
	}
}

// notifyCounterparts pushes the user's presence change to every connected
// counterpart currently online.
func (h *WebSocketHandler) notifyCounterparts(r *http.Request, userID string, online bool) {
	summaries, err := h.connectionService.ListForUser(r.Context(), userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to list connections for presence")
		return
	}
	for _, summary := range summaries {
		if summary.Counterpart != nil {
			h.hub.NotifyCounterpartStatus(summary.Counterpart.ID, online)
		}
	}
}
