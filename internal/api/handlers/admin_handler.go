package handlers

import (
	"net/http"
	"strconv"
	"time"

	"companion-api/internal/repository"
	"companion-api/internal/services"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
)

// AdminHandler serves the operator endpoints: request logs, the credit
// usage ledger, and received webhook events. All routes sit behind the
// admin middleware.
type AdminHandler struct {
	requestLogService services.RequestLogService
	creditUsage       repository.CreditUsageRepository
	webhookEvents     services.WebhookEventService
}

func NewAdminHandler(requestLogService services.RequestLogService, creditUsage repository.CreditUsageRepository, webhookEvents services.WebhookEventService) *AdminHandler {
	return &AdminHandler{
		requestLogService: requestLogService,
		creditUsage:       creditUsage,
		webhookEvents:     webhookEvents,
	}
}

func (h *AdminHandler) GetUserLogs(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]
	from, to := parseTimeRange(r)

	logs, err := h.requestLogService.GetUserLogs(userID, from, to)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, logs)
}

func (h *AdminHandler) GetEndpointLogs(w http.ResponseWriter, r *http.Request) {
	endpoint := r.URL.Query().Get("endpoint")
	if endpoint == "" {
		http.Error(w, "endpoint query parameter is required", http.StatusBadRequest)
		return
	}
	from, to := parseTimeRange(r)

	logs, err := h.requestLogService.GetEndpointLogs(endpoint, from, to)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, logs)
}

// GetUserLedger lists the append-only usage ledger for one account, newest
// first.
func (h *AdminHandler) GetUserLedger(w http.ResponseWriter, r *http.Request) {
	userID, err := uuid.Parse(mux.Vars(r)["userID"])
	if err != nil {
		http.Error(w, "Invalid user ID", http.StatusBadRequest)
		return
	}
	page, pageSize := parsePagination(r)

	entries, total, err := h.creditUsage.ListByUser(r.Context(), userID, page, pageSize)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"entries":   entries,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetRecentLedger lists ledger entries across all accounts since the given
// time (default: last 24h).
func (h *AdminHandler) GetRecentLedger(w http.ResponseWriter, r *http.Request) {
	since := time.Now().Add(-24 * time.Hour)
	if raw := r.URL.Query().Get("since"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			http.Error(w, "Invalid since parameter", http.StatusBadRequest)
			return
		}
		since = parsed
	}
	page, pageSize := parsePagination(r)

	entries, total, err := h.creditUsage.ListSince(r.Context(), since, page, pageSize)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"entries":   entries,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func (h *AdminHandler) GetWebhookEvents(w http.ResponseWriter, r *http.Request) {
	provider := r.URL.Query().Get("provider")
	page, pageSize := parsePagination(r)

	events, total, err := h.webhookEvents.ListEvents(r.Context(), provider, page, pageSize)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]interface{}{
		"events":    events,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

func parseTimeRange(r *http.Request) (time.Time, time.Time) {
	from := time.Now().AddDate(0, 0, -7)
	to := time.Now()

	if raw := r.URL.Query().Get("from"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			from = parsed
		}
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			to = parsed
		}
	}
	return from, to
}

func parsePagination(r *http.Request) (int, int) {
	page := 1
	pageSize := 50

	if raw := r.URL.Query().Get("page"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			page = parsed
		}
	}
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 && parsed <= 200 {
			pageSize = parsed
		}
	}
	return page, pageSize
}
