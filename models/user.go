package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is the local profile row for a HackPot player.
// Identity fields are mirrored from the profile service by the sync worker;
// experience_points, level and total_spent are owned by this service.
type User struct {
	ID             string  `gorm:"primaryKey;type:varchar(64)" json:"id"`
	Email          string  `gorm:"index" json:"email,omitempty"`
	DisplayName    *string `json:"display_name,omitempty"`
	ReferralCode   string  `gorm:"type:varchar(16);uniqueIndex;not null" json:"referral_code"`
	ReferredByCode *string `gorm:"type:varchar(16);index" json:"referred_by_code,omitempty"`

	ExperiencePoints int64 `gorm:"not null" json:"experience_points"`
	Level            int   `gorm:"not null" json:"level"`

	TotalSpent    decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"total_spent"`
	TotalEarnings decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"total_earnings"`

	LastActivity *time.Time `json:"last_activity,omitempty"`
	CreatedAt    time.Time  `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time  `json:"updated_at" gorm:"autoUpdateTime"`
}
