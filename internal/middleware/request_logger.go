package middleware

import (
	"bytes"
	"net/http"
	"strings"

	"companion-api/internal/logger"
	"companion-api/internal/models"
	"companion-api/internal/services"

	"github.com/sirupsen/logrus"
)

type ResponseWriter struct {
	http.ResponseWriter
	status int
	body   bytes.Buffer
}

func (rw *ResponseWriter) WriteHeader(status int) {
	rw.status = status
	rw.ResponseWriter.WriteHeader(status)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	rw.body.Write(b)
	return rw.ResponseWriter.Write(b)
}

type RequestLogger struct {
	logService services.RequestLogService
}

func NewRequestLogger(logService services.RequestLogService) *RequestLogger {
	return &RequestLogger{
		logService: logService,
	}
}

func (rl *RequestLogger) LogRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Create custom response writer to capture status code
		rw := &ResponseWriter{
			ResponseWriter: w,
			status:         http.StatusOK,
		}

		// Get user from context
		user, ok := services.UserFromContext(r.Context())
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		summary := createRequestSummary(r)

		// Execute the request
		next.ServeHTTP(rw, r)

		status := models.StatusSuccess
		if rw.status >= 400 {
			status = models.StatusError
		}

		// Log to database
		err := rl.logService.LogRequest(
			user.ClerkUserID,
			r.URL.Path,
			r.Method,
			rw.status,
			status,
			summary,
		)

		if err != nil {
			logger.Logger.WithFields(logrus.Fields{
				"error": err,
				"user":  user.ID,
				"path":  r.URL.Path,
			}).Error("Failed to log request")
		}
	})
}

func createRequestSummary(r *http.Request) string {
	parts := strings.Split(strings.TrimPrefix(r.URL.Path, "/api/v1/"), "/")
	summary := "API request"

	if len(parts) == 0 {
		return summary
	}

	switch parts[0] {
	case "conversations":
		switch {
		case len(parts) >= 3 && parts[2] == "messages" && r.Method == http.MethodPost:
			summary = "Chat message sent"
		case len(parts) >= 3 && parts[2] == "analyze":
			summary = "Analysis requested"
		case r.Method == http.MethodPost:
			summary = "Conversation created"
		default:
			summary = "Conversation read"
		}
	case "credits":
		summary = "Credit status check"
	case "favorites":
		summary = "Favorites access"
	}

	return summary
}
