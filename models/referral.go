package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type ReferralStatus string

const (
	ReferralPending   ReferralStatus = "pending"
	ReferralConfirmed ReferralStatus = "confirmed"
	ReferralPaid      ReferralStatus = "paid"
)

// ReferralStats is the per-referrer aggregate. Created lazily on first read or referral.
type ReferralStats struct {
	UserID                string          `gorm:"primaryKey;type:varchar(64)" json:"user_id"`
	TotalReferrals        int64           `gorm:"not null" json:"total_referrals"`
	TotalCommissionEarned decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"total_commission_earned"`
	CurrentTier           int             `gorm:"not null" json:"current_tier"`
	ThisMonthReferrals    int64           `gorm:"not null" json:"this_month_referrals"`
	CreatedAt             time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt             time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ReferralStats) TableName() string {
	return "referral_stats"
}

// ReferralHistory records one referred signup. A user can be referred once.
type ReferralHistory struct {
	ID               string          `gorm:"primaryKey;type:uuid" json:"id"`
	ReferrerID       string          `gorm:"type:varchar(64);not null;index" json:"referrer_id"`
	ReferredID       string          `gorm:"type:varchar(64);not null;uniqueIndex" json:"referred_id"`
	CommissionEarned decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"commission_earned"`
	Status           ReferralStatus  `gorm:"type:varchar(16);not null" json:"status"`
	CreatedAt        time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt        time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
}

func (ReferralHistory) TableName() string {
	return "referral_history"
}

type ReferralTier struct {
	TierLevel            int             `gorm:"primaryKey;autoIncrement:false" json:"tier_level"`
	TierName             string          `gorm:"not null" json:"tier_name"`
	CommissionPercentage decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"commission_percentage"`
	MinReferrals         int64           `gorm:"not null" json:"min_referrals"`
	BonusMultiplier      decimal.Decimal `gorm:"type:numeric(5,2);not null" json:"bonus_multiplier"`
}

// DefaultReferralTiers seeds referral_tiers when the table is empty.
var DefaultReferralTiers = []ReferralTier{
	{TierLevel: 1, TierName: "Bronze", CommissionPercentage: decimal.NewFromInt(5), MinReferrals: 0, BonusMultiplier: decimal.NewFromInt(1)},
	{TierLevel: 2, TierName: "Silver", CommissionPercentage: decimal.NewFromFloat(7.5), MinReferrals: 5, BonusMultiplier: decimal.NewFromFloat(1.1)},
	{TierLevel: 3, TierName: "Gold", CommissionPercentage: decimal.NewFromInt(10), MinReferrals: 15, BonusMultiplier: decimal.NewFromFloat(1.25)},
	{TierLevel: 4, TierName: "Diamond", CommissionPercentage: decimal.NewFromInt(15), MinReferrals: 50, BonusMultiplier: decimal.NewFromFloat(1.5)},
}
