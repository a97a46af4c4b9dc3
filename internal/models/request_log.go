package models

import (
	"time"

	"gorm.io/gorm"
)

type RequestStatus string

const (
	StatusSuccess RequestStatus = "SUCCESS"
	StatusError   RequestStatus = "ERROR"
)

// RequestLog is one audited API request, keyed by the caller's external
// identity so rows survive account deletion. Summaries are human-readable
// ("Chat message sent", "Credit status check"), filled in by the request
// logging middleware.
type RequestLog struct {
	ID         uint           `gorm:"primarykey" json:"id"`
	UserID     string         `gorm:"index" json:"user_id"`
	Endpoint   string         `gorm:"index" json:"endpoint"`
	Method     string         `json:"method"`
	Status     RequestStatus  `json:"status"`
	StatusCode int            `json:"status_code"`
	Summary    string         `json:"summary"`
	Timestamp  time.Time      `gorm:"index" json:"timestamp"`
	CreatedAt  time.Time      `json:"-"`
	UpdatedAt  time.Time      `json:"-"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`
}

func (RequestLog) TableName() string {
	return "request_logs"
}
