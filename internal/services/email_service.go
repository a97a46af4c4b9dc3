package services

import (
	"fmt"
	"os"
	"time"

	"companion-api/internal/logger"
	"companion-api/internal/models"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"
)

// EmailService sends account notifications. Callers treat it as fire and
// forget; a delivery failure never affects the triggering request.
type EmailService interface {
	SendThreadLockNotice(user *models.User, nextRefillAt *time.Time)
}

type sendgridEmailService struct {
	fromName  string
	fromEmail string
}

func NewEmailService() EmailService {
	return &sendgridEmailService{
		fromName:  "Companion",
		fromEmail: "noreply@companion-api.com",
	}
}

func (s *sendgridEmailService) SendThreadLockNotice(user *models.User, nextRefillAt *time.Time) {
	if user.Email == "" {
		return
	}

	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(user.Username, user.Email)
	subject := "Your account has been temporarily rate limited"

	refillLine := "Your credits will come back after the cooldown period."
	if nextRefillAt != nil {
		refillLine = fmt.Sprintf("Your credits will come back on %s.", nextRefillAt.Format(time.RFC1123))
	}

	htmlContent := fmt.Sprintf(`
		<html>
		<body style="font-family: Arial, sans-serif; padding: 20px;">
			<h1>Heavy usage detected</h1>
			<p>Your account hit the 14-day usage limit and has been placed on a longer cooldown.</p>
			<p>%s</p>
			<p>Upgrade to Premium for a larger daily allotment with no usage lock.</p>
		</body>
		</html>
	`, refillLine)

	message := mail.NewSingleEmail(from, subject, to, "", htmlContent)
	client := sendgrid.NewSendClient(os.Getenv("SENDGRID_API_KEY"))
	response, err := client.Send(message)
	if err != nil {
		logger.Logger.WithFields(logrus.Fields{
			"error":   err,
			"user_id": user.ID,
		}).Error("Failed to send thread lock notice")
		return
	}

	if response.StatusCode >= 400 {
		logger.Logger.WithFields(logrus.Fields{
			"status":  response.StatusCode,
			"user_id": user.ID,
		}).Error("Sendgrid rejected thread lock notice")
	}
}
