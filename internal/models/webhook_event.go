package models

import (
	"time"

	"gorm.io/gorm"
)

// WebhookEvent records every external provider event we processed, so the
// membership state mirrored from Stripe/Clerk can be audited after the fact.
type WebhookEvent struct {
	gorm.Model
	Provider   string    `gorm:"type:varchar(20);index" json:"provider"`
	EventType  string    `gorm:"type:varchar(100);index" json:"event_type"`
	ExternalID string    `gorm:"type:varchar(255)" json:"external_id"`
	UserID     string    `gorm:"type:varchar(255);index" json:"user_id"`
	Details    string    `gorm:"type:text" json:"details"`
	ReceivedAt time.Time `json:"received_at"`
}

func (WebhookEvent) TableName() string {
	return "webhook_events"
}
