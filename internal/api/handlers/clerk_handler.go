package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"companion-api/internal/logger"
	"companion-api/internal/services"

	"github.com/sirupsen/logrus"
)

// ClerkHandler ingests identity-provider webhooks and mirrors user state
// into local rows: user.created/user.updated upsert, user.deleted removes
// the account. Payloads are svix-signed (HMAC-SHA256 over id.timestamp.body).
type ClerkHandler struct {
	authService   services.AuthService
	webhookEvents services.WebhookEventService
}

func NewClerkHandler(authService services.AuthService, webhookEvents services.WebhookEventService) *ClerkHandler {
	return &ClerkHandler{
		authService:   authService,
		webhookEvents: webhookEvents,
	}
}

type clerkEvent struct {
	Type string `json:"type"`
	Data struct {
		ID             string `json:"id"`
		Username       string `json:"username"`
		FirstName      string `json:"first_name"`
		LastName       string `json:"last_name"`
		EmailAddresses []struct {
			EmailAddress string `json:"email_address"`
		} `json:"email_addresses"`
	} `json:"data"`
}

func (h *ClerkHandler) HandleClerkWebhook(w http.ResponseWriter, r *http.Request) {
	signature := r.Header.Get("svix-signature")
	timestamp := r.Header.Get("svix-timestamp")
	messageID := r.Header.Get("svix-id")

	if signature == "" || timestamp == "" || messageID == "" {
		http.Error(w, "Missing webhook headers", http.StatusBadRequest)
		return
	}

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, 65536))
	if err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}

	if !verifySvixSignature(os.Getenv("CLERK_WEBHOOK_SIGNING_SECRET"), messageID, timestamp, payload, signature) {
		logger.Logger.WithFields(logrus.Fields{"message_id": messageID}).Error("Clerk webhook signature verification failed")
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	var event clerkEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	email := ""
	if len(event.Data.EmailAddresses) > 0 {
		email = event.Data.EmailAddresses[0].EmailAddress
	}

	switch event.Type {
	case "user.created", "user.updated":
		_, created, err := h.authService.SyncClerkUser(r.Context(), event.Data.ID, email, event.Data.Username, event.Data.FirstName, event.Data.LastName)
		if err != nil {
			logger.Logger.WithFields(logrus.Fields{"error": err, "clerk_user": event.Data.ID}).Error("Failed to sync Clerk user")
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if created {
			logger.Logger.WithFields(logrus.Fields{"clerk_user": event.Data.ID}).Info("Created user from Clerk webhook")
		}

	case "user.deleted":
		if err := h.authService.DeleteClerkUser(r.Context(), event.Data.ID); err != nil {
			logger.Logger.WithFields(logrus.Fields{"error": err, "clerk_user": event.Data.ID}).Warn("Clerk delete for unknown user")
		}

	default:
		logger.Logger.WithFields(logrus.Fields{"type": event.Type}).Info("Unhandled Clerk event type")
	}

	if h.webhookEvents != nil {
		_ = h.webhookEvents.RecordEvent(r.Context(), "clerk", event.Type, messageID, event.Data.ID, "")
	}

	w.WriteHeader(http.StatusOK)
}

// verifySvixSignature checks the svix scheme: base64(HMAC-SHA256(secret,
// "id.timestamp.payload")), with the header carrying space-separated
// "v1,<sig>" candidates. Timestamps older than 5 minutes are rejected.
func verifySvixSignature(secret, messageID, timestamp string, payload []byte, signatureHeader string) bool {
	if secret == "" {
		return false
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	if d := time.Since(time.Unix(ts, 0)); d > 5*time.Minute || d < -5*time.Minute {
		return false
	}

	key := secret
	if strings.HasPrefix(key, "whsec_") {
		key = strings.TrimPrefix(key, "whsec_")
	}
	decodedKey, err := base64.StdEncoding.DecodeString(key)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, decodedKey)
	mac.Write([]byte(messageID + "." + timestamp + "."))
	mac.Write(payload)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	for _, candidate := range strings.Split(signatureHeader, " ") {
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
