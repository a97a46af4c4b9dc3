package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Membership string

const (
	FreeMembership    Membership = "FREE"
	PremiumMembership Membership = "PREMIUM"
)

type User struct {
	ID               uuid.UUID  `gorm:"type:uuid;primaryKey" json:"id"`
	ClerkUserID      string     `gorm:"type:varchar(255);uniqueIndex;not null" json:"clerk_user_id"`
	StripeCustomerID string     `gorm:"type:varchar(255);index" json:"-"`
	Email            string     `gorm:"type:varchar(255);index" json:"email"`
	Username         string     `gorm:"type:varchar(150)" json:"username"`
	FirstName        string     `gorm:"type:varchar(150)" json:"first_name"`
	LastName         string     `gorm:"type:varchar(150)" json:"last_name"`
	IsActive         bool       `gorm:"not null;default:true" json:"is_active"`
	IsAdmin          bool       `gorm:"not null;default:false" json:"-"`
	Membership       Membership `gorm:"type:varchar(10);not null;default:'FREE'" json:"membership"`

	// Credit metering state. Credits never goes negative; LastDepletedAt is
	// set only on the 1->0 transition and cleared by refill.
	Credits           int        `gorm:"not null;default:50" json:"credits"`
	LastDepletedAt    *time.Time `gorm:"default:null" json:"last_depleted_at"`
	TotalUsage14d     int        `gorm:"not null;default:0" json:"total_usage_14d"`
	LastUsageAt       *time.Time `gorm:"default:null" json:"last_usage_at"`
	ThreadDepthLocked bool       `gorm:"not null;default:false" json:"thread_depth_locked"`

	CreatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = now
	}

	return nil
}

func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}

func (User) TableName() string {
	return "users"
}
