package handlers

import (
	"encoding/json"
	"net/http"

	"companion-api/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// AnalysisHandler exposes the analysis endpoints: text analysis and image
// analysis, both credit-gated the same way as chat send.
type AnalysisHandler struct {
	chatService   services.ChatService
	creditService services.CreditService
}

func NewAnalysisHandler(chatService services.ChatService, creditService services.CreditService) *AnalysisHandler {
	return &AnalysisHandler{
		chatService:   chatService,
		creditService: creditService,
	}
}

type analyzeRequest struct {
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
	Mode     string `json:"mode,omitempty"`
}

func (h *AnalysisHandler) Analyze(w http.ResponseWriter, r *http.Request) {
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

	var req analyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Text == "" && req.ImageURL == "" {
		http.Error(w, "Text or image_url is required", http.StatusBadRequest)
		return
	}

	message, err := h.chatService.Analyze(r.Context(), user.ID, conversationID, services.AnalysisInput{
		Text:     req.Text,
		ImageURL: req.ImageURL,
		Mode:     req.Mode,
	})
	if err != nil {
		chat := ChatHandler{creditService: h.creditService}
		chat.respondSendError(w, r, user.ID, err)
		return
	}

	respondWithJSON(w, http.StatusOK, message)
}
