package handlers

import (
	"net/http"

	"companion-api/internal/services"
)

// CreditHandler serves the account credit status endpoint.
type CreditHandler struct {
	creditService services.CreditService
}

func NewCreditHandler(creditService services.CreditService) *CreditHandler {
	return &CreditHandler{
		creditService: creditService,
	}
}

// GetStatus reports the caller's credit balance, usage counters, and the
// next refill time. A refill that came due since the last request is
// applied before the snapshot is taken.
func (h *CreditHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	user, ok := services.UserFromContext(r.Context())
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	snapshot, err := h.creditService.Status(r.Context(), user.ID)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, snapshot)
}
