package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// UsageEventType categorizes what a credit was spent on.
type UsageEventType string

const (
	EventTypeMessage       UsageEventType = "MESSAGE"
	EventTypeAnalysis      UsageEventType = "ANALYSIS"
	EventTypeImageAnalysis UsageEventType = "IMAGE_ANALYSIS"
	EventTypeOther         UsageEventType = "OTHER"
)

// UsageKind is the billing bucket a debit was charged against.
type UsageKind string

const (
	KindMonthlyCredits UsageKind = "MONTHLY_CREDITS"
	KindPayAsYouGo     UsageKind = "PAY_AS_YOU_GO"
	KindOther          UsageKind = "OTHER"
)

// ParseEventType maps free-form strings from callers onto the closed set,
// falling back to OTHER rather than rejecting the debit.
func ParseEventType(s string) UsageEventType {
	switch UsageEventType(s) {
	case EventTypeMessage, EventTypeAnalysis, EventTypeImageAnalysis:
		return UsageEventType(s)
	default:
		return EventTypeOther
	}
}

func ParseUsageKind(s string) UsageKind {
	switch UsageKind(s) {
	case KindMonthlyCredits, KindPayAsYouGo:
		return UsageKind(s)
	default:
		return KindOther
	}
}

// CreditUsage is the append-only ledger: exactly one row per successful
// debit. Rows are never updated or deleted.
type CreditUsage struct {
	ID        uint            `gorm:"primarykey" json:"id"`
	UserID    uuid.UUID       `gorm:"type:uuid;not null;index" json:"user_id"`
	EventType UsageEventType  `gorm:"type:varchar(50);not null" json:"event_type"`
	Cost      decimal.Decimal `gorm:"type:decimal(6,2);not null" json:"cost"`
	Kind      UsageKind       `gorm:"type:varchar(50);not null;default:'MONTHLY_CREDITS'" json:"kind"`
	Model     string          `gorm:"type:varchar(50)" json:"model,omitempty"`
	CreatedAt time.Time       `gorm:"not null;index" json:"created_at"`
	User      User            `gorm:"foreignKey:UserID" json:"-"`
}

func (c *CreditUsage) BeforeCreate(tx *gorm.DB) error {
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	return nil
}

func (CreditUsage) TableName() string {
	return "credit_usages"
}
