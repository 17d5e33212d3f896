package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/actuallyakshat/chrona/internal/middleware"
	"github.com/actuallyakshat/chrona/internal/services"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// ConnectionHandler handles connection and chronicle HTTP requests
type ConnectionHandler struct {
	connectionService *services.ConnectionService
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(connectionService *services.ConnectionService) *ConnectionHandler {
	return &ConnectionHandler{
		connectionService: connectionService,
	}
}

// CreateConnectionRequest is the body for POST /api/v1/connections. The
// first chronicle rides along so a connection never exists without one.
type CreateConnectionRequest struct {
	RecipientID string `json:"recipient_id"`
	Content     string `json:"content"`
}

// CreateConnection handles POST /api/v1/connections
func (h *ConnectionHandler) CreateConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req CreateConnectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.RecipientID == "" {
		respondError(w, "recipient_id is required", http.StatusBadRequest)
		return
	}

	conn, err := h.connectionService.CreateConnection(ctx, userID, req.RecipientID, req.Content)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("recipient_id", req.RecipientID).
			Msg("Failed to create connection")
		respondAppError(w, err)
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("connection_id", conn.ID).
		Float64("delay_in_hours", conn.DelayInHours).
		Msg("Connection created")

	respondJSON(w, http.StatusCreated, conn)
}

// ListConnections handles GET /api/v1/connections
func (h *ConnectionHandler) ListConnections(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	summaries, err := h.connectionService.ListForUser(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to list connections")
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, summaries)
}

// GetConnection handles GET /api/v1/connections/{connection_id}. Chronicle
// content passes through the concealment gate per viewer per request.
func (h *ConnectionHandler) GetConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	connectionID := chi.URLParam(r, "connection_id")

	if connectionID == "" {
		respondError(w, "connection_id is required", http.StatusBadRequest)
		return
	}

	detail, err := h.connectionService.GetConnectionWithChronicles(ctx, connectionID, userID)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("connection_id", connectionID).
			Msg("Failed to get connection")
		respondAppError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// SendChronicleRequest is the body for posting a chronicle
type SendChronicleRequest struct {
	Content string `json:"content"`
}

// SendChronicleResponse returns the created chronicle id
type SendChronicleResponse struct {
	ChronicleID string `json:"chronicle_id"`
}

// SendChronicle handles POST /api/v1/connections/{connection_id}/chronicles
func (h *ConnectionHandler) SendChronicle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	connectionID := chi.URLParam(r, "connection_id")

	if connectionID == "" {
		respondError(w, "connection_id is required", http.StatusBadRequest)
		return
	}

	var req SendChronicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	chronicleID, err := h.connectionService.SendChronicle(ctx, connectionID, userID, req.Content)
	if err != nil {
		log.Error().
			Err(err).
			Str("user_id", userID).
			Str("connection_id", connectionID).
			Msg("Failed to send chronicle")
		respondAppError(w, err)
		return
	}

	log.Info().
		Str("user_id", userID).
		Str("connection_id", connectionID).
		Str("chronicle_id", chronicleID).
		Msg("Chronicle sent")

	respondJSON(w, http.StatusCreated, SendChronicleResponse{ChronicleID: chronicleID})
}
