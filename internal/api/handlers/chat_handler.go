package handlers

import (
	"encoding/json"
	"net/http"

	"companion-api/internal/pkg/errors"
	"companion-api/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// ChatHandler exposes conversations, messages, and the credit-gated chat
// send endpoint.
type ChatHandler struct {
	chatService   services.ChatService
	creditService services.CreditService
}

func NewChatHandler(chatService services.ChatService, creditService services.CreditService) *ChatHandler {
	return &ChatHandler{
		chatService:   chatService,
		creditService: creditService,
	}
}

type createConversationRequest struct {
	Title string `json:"title"`
}

type sendMessageRequest struct {
	Text     string `json:"text"`
	ImageURL string `json:"image_url,omitempty"`
}

func (h *ChatHandler) ListConversations(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversations, err := h.chatService.ListConversations(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, conversations)
}

func (h *ChatHandler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	conversation, err := h.chatService.CreateConversation(r.Context(), user.ID, req.Title)
	if err == errors.ErrInvalidInput {
		http.Error(w, "Title is required", http.StatusBadRequest)
		return
	}
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusCreated, conversation)
}

func (h *ChatHandler) RenameConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	var req createConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if err := h.chatService.RenameConversation(r.Context(), user.ID, conversationID, req.Title); err != nil {
		switch err {
		case errors.ErrInvalidInput:
			http.Error(w, "Title is required", http.StatusBadRequest)
		case errors.ErrNotFound:
			http.Error(w, "Conversation not found", http.StatusNotFound)
		default:
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) DeleteConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	if err := h.chatService.DeleteConversation(r.Context(), user.ID, conversationID); err != nil {
		if err == errors.ErrNotFound {
			http.Error(w, "Conversation not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	messages, err := h.chatService.ListMessages(r.Context(), user.ID, conversationID)
	if err != nil {
		if err == errors.ErrNotFound {
			http.Error(w, "Conversation not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, messages)
}

func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	message, err := h.chatService.SendMessage(r.Context(), user.ID, conversationID, services.AnalysisInput{
		Text:     req.Text,
		ImageURL: req.ImageURL,
	})
	if err != nil {
		h.respondSendError(w, r, user.ID, err)
		return
	}

	respondWithJSON(w, http.StatusOK, message)
}

func (h *ChatHandler) FavoriteConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	if err := h.chatService.FavoriteConversation(r.Context(), user.ID, conversationID); err != nil {
		if err == errors.ErrNotFound {
			http.Error(w, "Conversation not found", http.StatusNotFound)
			return
		}
		if err == errors.ErrAlreadyExists {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) UnfavoriteConversation(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conversationID, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	if err := h.chatService.UnfavoriteConversation(r.Context(), user.ID, conversationID); err != nil {
		if err == errors.ErrNotFound {
			http.Error(w, "Favorite not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *ChatHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	favorites, err := h.chatService.ListFavorites(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, favorites)
}

// respondSendError maps credit outcomes onto HTTP statuses: plain
// insufficiency is 402, a thread-depth-locked depletion is 429. Both carry
// next_refill_at so the client can show when credits return.
func (h *ChatHandler) respondSendError(w http.ResponseWriter, r *http.Request, userID uuid.UUID, err error) {
	switch err {
	case errors.ErrNotFound:
		http.Error(w, "Conversation not found", http.StatusNotFound)
	case errors.ErrInsufficientCredits:
		h.respondDepleted(w, r, userID, http.StatusPaymentRequired, "Insufficient credits")
	case errors.ErrThreadDepthLocked:
		h.respondDepleted(w, r, userID, http.StatusTooManyRequests, "Account temporarily rate limited")
	case errors.ErrAnalysisProviderDown:
		http.Error(w, "Analysis provider unavailable", http.StatusBadGateway)
	default:
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (h *ChatHandler) respondDepleted(w http.ResponseWriter, r *http.Request, userID uuid.UUID, status int, message string) {
	body := map[string]interface{}{
		"error": message,
	}
	if snap, err := h.creditService.Status(r.Context(), userID); err == nil {
		body["next_refill_at"] = snap.NextRefillAt
	}
	respondWithJSON(w, status, body)
}

func respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
