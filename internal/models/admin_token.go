package models

import "time"

// AdminToken is the rotating operations token accepted by the admin
// endpoints via the x-admin-token header. Tokens expire after 24 hours;
// the newest row is the only valid one.
type AdminToken struct {
	ID        uint      `gorm:"primarykey"`
	Token     string    `gorm:"uniqueIndex"`
	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (AdminToken) TableName() string {
	return "admin_tokens"
}
