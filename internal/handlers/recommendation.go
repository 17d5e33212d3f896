package handlers

import (
	"net/http"

	"github.com/actuallyakshat/chrona/internal/middleware"
	"github.com/actuallyakshat/chrona/internal/services"

	"github.com/rs/zerolog/log"
)

// RecommendationHandler handles recommendation HTTP requests
type RecommendationHandler struct {
	recommendationService *services.RecommendationService
}

// NewRecommendationHandler creates a new recommendation handler
func NewRecommendationHandler(recommendationService *services.RecommendationService) *RecommendationHandler {
	return &RecommendationHandler{
		recommendationService: recommendationService,
	}
}

// Recommend handles GET /api/v1/recommendations
func (h *RecommendationHandler) Recommend(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)

	users, err := h.recommendationService.Recommend(ctx, userID)
	if err != nil {
		log.Error().Err(err).Str("user_id", userID).Msg("Failed to compute recommendations")
		respondAppError(w, err)
		return
	}

	log.Info().Str("user_id", userID).Int("count", len(users)).Msg("Recommendations served")
	respondJSON(w, http.StatusOK, users)
}
