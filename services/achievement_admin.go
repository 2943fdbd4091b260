package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"hackpot-service/models"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

// AchievementInput is the admin payload for creating or editing a definition.
type AchievementInput struct {
	Name           string                     `json:"name"`
	Description    string                     `json:"description"`
	Icon           string                     `json:"icon"`
	Category       models.AchievementCategory `json:"category"`
	Rarity         models.AchievementRarity   `json:"rarity"`
	RewardPoints   int64                      `json:"reward_points"`
	UnlockCriteria models.UnlockCriteria      `json:"unlock_criteria"`
	IsActive       *bool                      `json:"is_active,omitempty"`
}

func (in *AchievementInput) normalize() error {
	in.Name = strings.TrimSpace(in.Name)
	in.UnlockCriteria.Type = strings.TrimSpace(in.UnlockCriteria.Type)
	if in.Rarity == "" {
		in.Rarity = models.RarityCommon
	}

	switch {
	case in.Name == "":
		return fmt.Errorf("%w: name is required", ErrInvalidAchievement)
	case !in.Category.Valid():
		return fmt.Errorf("%w: unknown category %q", ErrInvalidAchievement, in.Category)
	case !in.Rarity.Valid():
		return fmt.Errorf("%w: unknown rarity %q", ErrInvalidAchievement, in.Rarity)
	case in.RewardPoints < 0:
		return fmt.Errorf("%w: reward_points must not be negative", ErrInvalidAchievement)
	}
	if err := in.UnlockCriteria.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidAchievement, err)
	}
	return nil
}

func (in *AchievementInput) apply(a *models.Achievement) error {
	a.Name = in.Name
	a.Code = slug.Make(in.Name)
	a.Description = in.Description
	if in.Icon != "" {
		a.Icon = in.Icon
	}
	a.Category = in.Category
	a.Rarity = in.Rarity
	a.RewardPoints = in.RewardPoints
	if in.IsActive != nil {
		a.IsActive = *in.IsActive
	}
	return a.SetCriteria(in.UnlockCriteria)
}

func (s *AchievementService) CreateAchievement(ctx context.Context, in AchievementInput) (*models.Achievement, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}
	a := models.Achievement{ID: uuid.NewString(), IsActive: true}
	if err := in.apply(&a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAchievement, err)
	}

	if err := s.DB.WithContext(ctx).Create(&a).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: code %q already exists", ErrInvalidAchievement, a.Code)
		}
		return nil, fmt.Errorf("create achievement: %w", err)
	}
	log.Printf("✅ [ACHIEVEMENTS] Created %q (%s, %s ≥ %d)", a.Name, a.Code, in.UnlockCriteria.Type, in.UnlockCriteria.Target)
	return &a, nil
}

// UpdateAchievement edits a definition. Targets already copied into
// progress rows are left as they are.
func (s *AchievementService) UpdateAchievement(ctx context.Context, id string, in AchievementInput) (*models.Achievement, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var a models.Achievement
	if err := s.DB.WithContext(ctx).Where("id = ?", id).Take(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrAchievementNotFound
		}
		return nil, err
	}
	if err := in.apply(&a); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAchievement, err)
	}
	if err := s.DB.WithContext(ctx).Save(&a).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: code %q already exists", ErrInvalidAchievement, a.Code)
		}
		return nil, fmt.Errorf("update achievement: %w", err)
	}
	return &a, nil
}

// DeactivateAchievement hides a definition from evaluation and the catalogue.
// Existing progress rows and unlocks are kept.
func (s *AchievementService) DeactivateAchievement(ctx context.Context, id string) error {
	res := s.DB.WithContext(ctx).
		Model(&models.Achievement{}).
		Where("id = ?", id).
		Update("is_active", false)
	if res.Error != nil {
		return fmt.Errorf("deactivate achievement: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAchievementNotFound
	}
	return nil
}

// SetIcon replaces the icon URL of a definition.
func (s *AchievementService) SetIcon(ctx context.Context, id, iconURL string) error {
	res := s.DB.WithContext(ctx).
		Model(&models.Achievement{}).
		Where("id = ?", id).
		Update("icon", iconURL)
	if res.Error != nil {
		return fmt.Errorf("set icon: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrAchievementNotFound
	}
	return nil
}
