package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"hackpot-service/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ReferralService struct {
	DB           *gorm.DB
	Achievements *AchievementService
}

func NewReferralService(db *gorm.DB, achievements *AchievementService) *ReferralService {
	return &ReferralService{DB: db, Achievements: achievements}
}

func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// SeedTiers inserts the default tiers when none exist.
func (s *ReferralService) SeedTiers(ctx context.Context) error {
	var n int64
	if err := s.DB.WithContext(ctx).Model(&models.ReferralTier{}).Count(&n).Error; err != nil {
		return err
	}
	if n > 0 {
		return nil
	}
	tiers := make([]models.ReferralTier, len(models.DefaultReferralTiers))
	copy(tiers, models.DefaultReferralTiers)
	return s.DB.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(&tiers).Error
}

func (s *ReferralService) ListTiers(ctx context.Context) ([]models.ReferralTier, error) {
	var tiers []models.ReferralTier
	err := s.DB.WithContext(ctx).Order("tier_level ASC").Find(&tiers).Error
	return tiers, err
}

// ValidateCode looks up the owner of a referral code, case-insensitively.
func (s *ReferralService) ValidateCode(ctx context.Context, code string) (*models.User, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, ErrInvalidReferralCode
	}
	var referrer models.User
	if err := s.DB.WithContext(ctx).Where("referral_code = ?", code).Take(&referrer).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInvalidReferralCode
		}
		return nil, err
	}
	return &referrer, nil
}

// ProcessSignup attributes a new user to the owner of code and bumps the
// referrer's stats and tier, then fires the referral achievement check.
func (s *ReferralService) ProcessSignup(ctx context.Context, newUserID, code string) (*models.ReferralHistory, error) {
	referrer, err := s.ValidateCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if referrer.ID == newUserID {
		return nil, ErrSelfReferral
	}

	var history models.ReferralHistory
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.User{}).
			Where("id = ? AND (referred_by_code IS NULL OR referred_by_code = '')", newUserID).
			Update("referred_by_code", referrer.ReferralCode)
		if res.Error != nil {
			return fmt.Errorf("set referred_by_code: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.User{}).Where("id = ?", newUserID).Count(&n).Error; err != nil {
				return err
			}
			if n == 0 {
				return ErrUserNotFound
			}
			return ErrAlreadyReferred
		}

		history = models.ReferralHistory{
			ID:               uuid.NewString(),
			ReferrerID:       referrer.ID,
			ReferredID:       newUserID,
			CommissionEarned: decimal.Zero,
			Status:           models.ReferralPending,
		}
		if err := tx.Create(&history).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrAlreadyReferred
			}
			return fmt.Errorf("record referral: %w", err)
		}

		stats := models.ReferralStats{
			UserID:                referrer.ID,
			TotalReferrals:        1,
			ThisMonthReferrals:    1,
			TotalCommissionEarned: decimal.Zero,
			CurrentTier:           1,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"total_referrals":      gorm.Expr("referral_stats.total_referrals + 1"),
				"this_month_referrals": gorm.Expr("referral_stats.this_month_referrals + 1"),
			}),
		}).Create(&stats).Error; err != nil {
			return fmt.Errorf("update referral stats: %w", err)
		}

		return s.recomputeTier(tx, referrer.ID)
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🤝 [REFERRALS] %s referred %s with code %s", referrer.ID, newUserID, referrer.ReferralCode)

	if s.Achievements != nil {
		s.Achievements.CheckProgress(ctx, referrer.ID, ReferralEvent{ReferredUserID: newUserID})
	}
	return &history, nil
}

// recomputeTier sets current_tier to the highest tier whose threshold the
// referrer has reached.
func (s *ReferralService) recomputeTier(tx *gorm.DB, userID string) error {
	var stats models.ReferralStats
	if err := tx.Where("user_id = ?", userID).Take(&stats).Error; err != nil {
		return fmt.Errorf("load referral stats: %w", err)
	}

	var tier models.ReferralTier
	err := tx.Where("min_referrals <= ?", stats.TotalReferrals).
		Order("tier_level DESC").
		First(&tier).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load tier: %w", err)
	}
	if tier.TierLevel == stats.CurrentTier {
		return nil
	}
	return tx.Model(&models.ReferralStats{}).
		Where("user_id = ?", userID).
		Update("current_tier", tier.TierLevel).Error
}

// GetStats returns the referrer's stats, creating an empty row on first read.
func (s *ReferralService) GetStats(ctx context.Context, userID string) (*models.ReferralStats, error) {
	stats := models.ReferralStats{
		UserID:                userID,
		TotalCommissionEarned: decimal.Zero,
		CurrentTier:           1,
	}
	if err := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&stats).Error; err != nil {
		return nil, fmt.Errorf("ensure referral stats: %w", err)
	}
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Take(&stats).Error; err != nil {
		return nil, err
	}
	return &stats, nil
}

type ReferralHistoryItem struct {
	models.ReferralHistory
	ReferredEmail       string  `json:"referred_email"`
	ReferredDisplayName *string `json:"referred_display_name,omitempty"`
}

func (s *ReferralService) GetHistory(ctx context.Context, userID string) ([]ReferralHistoryItem, error) {
	var items []ReferralHistoryItem
	err := s.DB.WithContext(ctx).
		Table("referral_history AS h").
		Select("h.*, u.email AS referred_email, u.display_name AS referred_display_name").
		Joins("LEFT JOIN users AS u ON u.id = h.referred_id").
		Where("h.referrer_id = ?", userID).
		Order("h.created_at DESC").
		Scan(&items).Error
	if err != nil {
		return nil, fmt.Errorf("referral history: %w", err)
	}
	return items, nil
}

// ConfirmCommission records the commission for a referral and adds it to
// the referrer's total. Paid referrals are final.
func (s *ReferralService) ConfirmCommission(ctx context.Context, historyID string, amount decimal.Decimal) (*models.ReferralHistory, error) {
	if amount.IsNegative() {
		return nil, fmt.Errorf("%w: %s is negative", ErrInvalidCommission, amount)
	}

	var history models.ReferralHistory
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", historyID).Take(&history).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReferralNotFound
			}
			return err
		}
		if history.Status == models.ReferralPaid {
			return ErrCommissionPaid
		}

		delta := amount.Sub(history.CommissionEarned)
		res := tx.Model(&models.ReferralHistory{}).
			Where("id = ? AND status <> ?", history.ID, models.ReferralPaid).
			Updates(map[string]interface{}{
				"commission_earned": amount,
				"status":            models.ReferralConfirmed,
			})
		if res.Error != nil {
			return fmt.Errorf("update referral: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrCommissionPaid
		}
		history.CommissionEarned = amount
		history.Status = models.ReferralConfirmed

		return tx.Model(&models.ReferralStats{}).
			Where("user_id = ?", history.ReferrerID).
			Update("total_commission_earned", gorm.Expr("total_commission_earned + ?", delta)).Error
	})
	if err != nil {
		return nil, err
	}
	return &history, nil
}

// ClaimCommission marks a confirmed commission as paid out to its referrer.
// Other users' referrals read as not found.
func (s *ReferralService) ClaimCommission(ctx context.Context, userID, historyID string) (*models.ReferralHistory, error) {
	var history models.ReferralHistory
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND referrer_id = ?", historyID, userID).Take(&history).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrReferralNotFound
			}
			return err
		}
		switch history.Status {
		case models.ReferralPaid:
			return ErrCommissionPaid
		case models.ReferralPending:
			return ErrCommissionPending
		}

		res := tx.Model(&models.ReferralHistory{}).
			Where("id = ? AND status = ?", history.ID, models.ReferralConfirmed).
			Update("status", models.ReferralPaid)
		if res.Error != nil {
			return fmt.Errorf("claim commission: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrCommissionPaid
		}
		history.Status = models.ReferralPaid
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("💸 [REFERRALS] %s claimed %s commission for %s", userID, history.CommissionEarned, history.ReferredID)
	return &history, nil
}

type ReferralSummary struct {
	TotalReferrals  int64                           `json:"total_referrals"`
	TotalCommission decimal.Decimal                 `json:"total_commission"`
	ActiveReferrers int64                           `json:"active_referrers"`
	ByStatus        map[models.ReferralStatus]int64 `json:"by_status"`
	Recent          []models.ReferralHistory        `json:"recent"`
}

const summaryRecentLimit = 50

// GetSummary aggregates referral activity across all referrers.
func (s *ReferralService) GetSummary(ctx context.Context) (*ReferralSummary, error) {
	var totals struct {
		TotalReferrals  int64
		TotalCommission decimal.Decimal
		ActiveReferrers int64
	}
	err := s.DB.WithContext(ctx).
		Model(&models.ReferralStats{}).
		Select(`COALESCE(SUM(total_referrals), 0) AS total_referrals,
			COALESCE(SUM(total_commission_earned), 0) AS total_commission,
			COUNT(CASE WHEN total_referrals > 0 THEN 1 END) AS active_referrers`).
		Scan(&totals).Error
	if err != nil {
		return nil, fmt.Errorf("referral totals: %w", err)
	}

	var counts []struct {
		Status models.ReferralStatus
		N      int64
	}
	if err := s.DB.WithContext(ctx).
		Model(&models.ReferralHistory{}).
		Select("status, COUNT(*) AS n").
		Group("status").
		Scan(&counts).Error; err != nil {
		return nil, fmt.Errorf("referral status counts: %w", err)
	}

	summary := &ReferralSummary{
		TotalReferrals:  totals.TotalReferrals,
		TotalCommission: totals.TotalCommission,
		ActiveReferrers: totals.ActiveReferrers,
		ByStatus:        make(map[models.ReferralStatus]int64, len(counts)),
	}
	for _, c := range counts {
		summary.ByStatus[c.Status] = c.N
	}
	if err := s.DB.WithContext(ctx).
		Order("created_at DESC").
		Limit(summaryRecentLimit).
		Find(&summary.Recent).Error; err != nil {
		return nil, fmt.Errorf("recent referrals: %w", err)
	}
	return summary, nil
}

// ResetMonthlyReferrals zeroes this_month_referrals for every referrer.
func (s *ReferralService) ResetMonthlyReferrals(ctx context.Context) (int64, error) {
	res := s.DB.WithContext(ctx).
		Model(&models.ReferralStats{}).
		Where("this_month_referrals <> 0").
		Update("this_month_referrals", 0)
	return res.RowsAffected, res.Error
}
