package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/actuallyakshat/chrona/internal/services"

	"github.com/rs/zerolog/log"
)

// WebhookHandler processes identity provider events (svix delivery format).
// Events drive the full user lifecycle; nothing else creates users.
type WebhookHandler struct {
	userService *services.UserService
	secret      []byte
}

// NewWebhookHandler creates a webhook handler. The signing secret is
// base64-encoded, optionally with the provider's "whsec_" prefix.
func NewWebhookHandler(userService *services.UserService, signingSecret string) (*WebhookHandler, error) {
	raw := strings.TrimPrefix(signingSecret, "whsec_")
	secret, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return nil, err
	}
	return &WebhookHandler{
		userService: userService,
		secret:      secret,
	}, nil
}

type webhookEvent struct {
	Type string `json:"type"`
	Data struct {
		ID             string  `json:"id"`
		ImageURL       *string `json:"image_url"`
		FirstName      string  `json:"first_name"`
		LastName       string  `json:"last_name"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

// HandleIdentityEvent handles POST /webhooks/identity
func (h *WebhookHandler) HandleIdentityEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		respondError(w, "failed to read body", http.StatusBadRequest)
		return
	}

	msgID := r.Header.Get("svix-id")
	timestamp := r.Header.Get("svix-timestamp")
	signature := r.Header.Get("svix-signature")
	if msgID == "" || timestamp == "" || signature == "" {
		respondError(w, "missing signature headers", http.StatusBadRequest)
		return
	}

	if !h.verifySignature(body, msgID, timestamp, signature) {
		log.Warn().Str("svix_id", msgID).Msg("Webhook signature verification failed")
		respondError(w, "invalid signature", http.StatusUnauthorized)
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil || event.Type == "" {
		respondError(w, "invalid webhook payload", http.StatusBadRequest)
		return
	}

	wu := services.WebhookUser{
		ExternalID: event.Data.ID,
		FirstName:  event.Data.FirstName,
		LastName:   event.Data.LastName,
		ImageURL:   event.Data.ImageURL,
	}
	if len(event.Data.EmailAddresses) > 0 {
		wu.Email = event.Data.EmailAddresses[0].EmailAddress
	}

	ctx := r.Context()
	switch event.Type {
	case "user.created":
		_, err = h.userService.CreateFromWebhook(ctx, wu)
	case "user.updated":
		err = h.userService.UpdateFromWebhook(ctx, wu)
	case "user.deleted":
		err = h.userService.DeleteFromWebhook(ctx, event.Data.ID)
	default:
		log.Info().Str("type", event.Type).Msg("Ignoring unhandled webhook event")
		w.WriteHeader(http.StatusOK)
		return
	}

	if err != nil {
		log.Error().Err(err).Str("type", event.Type).Str("external_id", event.Data.ID).Msg("Failed to process webhook event")
		respondAppError(w, err)
		return
	}

	log.Info().Str("type", event.Type).Str("external_id", event.Data.ID).Msg("Webhook event processed")
	w.WriteHeader(http.StatusOK)
}

// verifySignature checks the svix HMAC-SHA256 over "id.timestamp.body"
// against each candidate in the (possibly space-separated) signature header.
func (h *WebhookHandler) verifySignature(body []byte, msgID, timestamp, signatureHeader string) bool {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(msgID + "." + timestamp + "."))
	mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	for _, candidate := range strings.Fields(signatureHeader) {
		// Each entry is "v1,<base64 signature>".
		parts := strings.SplitN(candidate, ",", 2)
		if len(parts) != 2 {
			continue
		}
		if hmac.Equal([]byte(parts[1]), []byte(expected)) {
			return true
		}
	}
	return false
}
