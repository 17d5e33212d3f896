package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/actuallyakshat/chrona/internal/apperrors"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// respondJSON writes a JSON body with the given status
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	respondJSON(w, statusCode, ErrorResponse{Error: message})
}

// respondAppError maps a service error to an HTTP status. Unclassified
// errors become opaque 500s so internals never leak to clients.
func respondAppError(w http.ResponseWriter, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		respondJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error: "internal server error",
			Code:  string(apperrors.CodeInternal),
		})
		return
	}
	respondJSON(w, statusForCode(appErr.Code), ErrorResponse{
		Error: appErr.Message,
		Code:  string(appErr.Code),
	})
}

func statusForCode(code apperrors.Code) int {
	switch code {
	case apperrors.CodeNotAuthenticated:
		return http.StatusUnauthorized
	case apperrors.CodeNotAuthorized:
		return http.StatusForbidden
	case apperrors.CodeNotFound:
		return http.StatusNotFound
	case apperrors.CodeValidation:
		return http.StatusBadRequest
	case apperrors.CodeAlreadyExists:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
