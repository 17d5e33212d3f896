package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/actuallyakshat/chrona/internal/middleware"
	"github.com/actuallyakshat/chrona/internal/services"

	"github.com/rs/zerolog/log"
)

// MediaHandler handles profile image upload requests
type MediaHandler struct {
	mediaService *services.MediaService
}

// NewMediaHandler creates a new media handler
func NewMediaHandler(mediaService *services.MediaService) *MediaHandler {
	return &MediaHandler{
		mediaService: mediaService,
	}
}

// UploadRequest is the body for POST /api/v1/media/upload
type UploadRequest struct {
	ContentType string `json:"content_type"`
}

// Upload handles POST /api/v1/media/upload
func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	resp, err := h.mediaService.GetPresignedUploadURL(ctx, userID, req.ContentType)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to generate upload URL")
		respondAppError(w, err)
		return
	}

	log.Info().Str("user_id", userID).Msg("Upload URL generated")
	respondJSON(w, http.StatusOK, resp)
}

// ConfirmRequest is the body for POST /api/v1/media/confirm
type ConfirmRequest struct {
	Key string `json:"key"`
}

// Confirm handles POST /api/v1/media/confirm, called by the client after a
// successful PUT to the pre-signed URL.
func (h *MediaHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	var req ConfirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	imageURL, err := h.mediaService.ConfirmUpload(ctx, userID, req.Key)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to confirm upload")
		respondAppError(w, err)
		return
	}

	log.Info().Str("user_id", userID).Msg("Profile image updated")
	respondJSON(w, http.StatusOK, map[string]string{"image_url": imageURL})
}
