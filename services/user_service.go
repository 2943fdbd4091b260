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
)

const referralCodeLength = 8

func newReferralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:referralCodeLength]
}

type UserService struct {
	DB           *gorm.DB
	Achievements *AchievementService
}

func NewUserService(db *gorm.DB, achievements *AchievementService) *UserService {
	return &UserService{DB: db, Achievements: achievements}
}

// EnsureUser returns the profile row, creating it on first contact. A new
// profile fires the account achievement check.
func (s *UserService) EnsureUser(ctx context.Context, userID, email string) (*models.User, error) {
	var user models.User
	err := s.DB.WithContext(ctx).Where("id = ?", userID).Take(&user).Error
	if err == nil {
		return &user, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("load user: %w", err)
	}

	// A referral code collision is retried with a fresh code; an id collision
	// means another request created the profile first.
	for attempt := 0; attempt < 3; attempt++ {
		user = models.User{
			ID:            userID,
			Email:         email,
			ReferralCode:  newReferralCode(),
			Level:         1,
			TotalSpent:    decimal.Zero,
			TotalEarnings: decimal.Zero,
		}
		err = s.DB.WithContext(ctx).Create(&user).Error
		if err == nil {
			break
		}
		if !isUniqueViolation(err) {
			return nil, fmt.Errorf("create user: %w", err)
		}
		var existing models.User
		if lookupErr := s.DB.WithContext(ctx).Where("id = ?", userID).Take(&existing).Error; lookupErr == nil {
			return &existing, nil
		}
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}

	log.Printf("👤 [USERS] Created profile %s (referral code %s)", userID, user.ReferralCode)
	if s.Achievements != nil {
		s.Achievements.CheckProgress(ctx, userID, AccountEvent{})
	}

	// reload: the account check may have credited XP
	if err := s.DB.WithContext(ctx).Where("id = ?", userID).Take(&user).Error; err != nil {
		return nil, fmt.Errorf("reload user: %w", err)
	}
	return &user, nil
}

type Profile struct {
	models.User
	XPToNextLevel int64 `json:"xp_to_next_level"`
	LevelProgress int64 `json:"level_progress"`
}

func (s *UserService) GetProfile(ctx context.Context, userID string) (*Profile, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", userID).Take(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	summary := summarize(&user)
	user.Level = summary.Level
	return &Profile{User: user, XPToNextLevel: summary.XPToNextLevel, LevelProgress: summary.LevelProgress}, nil
}

// ListWallets returns the user's mirrored wallets, primary first.
func (s *UserService) ListWallets(ctx context.Context, userID string) ([]models.ConnectedWallet, error) {
	var wallets []models.ConnectedWallet
	err := s.DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("is_primary DESC, created_at ASC").
		Find(&wallets).Error
	if err != nil {
		return nil, fmt.Errorf("list wallets: %w", err)
	}
	return wallets, nil
}
