package services

import (
	"context"
	"errors"
	"fmt"
	"log"

	"hackpot-service/models"

	"gorm.io/gorm"
)

// XPPerLevel is the flat amount of experience per level.
const XPPerLevel = 1000

// LevelForXP returns floor(xp / 1000) + 1. Negative XP counts as zero.
func LevelForXP(xp int64) int {
	if xp < 0 {
		xp = 0
	}
	return int(xp/XPPerLevel) + 1
}

// XPToNextLevel returns the XP still missing to reach the next level.
func XPToNextLevel(xp int64) int64 {
	if xp < 0 {
		xp = 0
	}
	return XPPerLevel - xp%XPPerLevel
}

type LevelSummary struct {
	UserID           string `json:"user_id"`
	ExperiencePoints int64  `json:"experience_points"`
	Level            int    `json:"level"`
	XPToNextLevel    int64  `json:"xp_to_next_level"`
	LevelProgress    int64  `json:"level_progress"` // XP earned inside the current level
}

func summarize(user *models.User) LevelSummary {
	xp := user.ExperiencePoints
	if xp < 0 {
		xp = 0
	}
	return LevelSummary{
		UserID:           user.ID,
		ExperiencePoints: user.ExperiencePoints,
		Level:            LevelForXP(xp),
		XPToNextLevel:    XPToNextLevel(xp),
		LevelProgress:    xp % XPPerLevel,
	}
}

type ProgressionService struct {
	DB *gorm.DB
}

func NewProgressionService(db *gorm.DB) *ProgressionService {
	return &ProgressionService{DB: db}
}

// RecalculateLevel derives the level from the stored XP and persists it. Idempotent.
func (s *ProgressionService) RecalculateLevel(ctx context.Context, userID string) (int, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).
		Select("id", "experience_points", "level").
		Where("id = ?", userID).
		First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("load user xp: %w", err)
	}

	level := LevelForXP(user.ExperiencePoints)
	if level == user.Level {
		return level, nil
	}

	if err := s.DB.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", userID).
		Update("level", level).Error; err != nil {
		return 0, fmt.Errorf("persist level: %w", err)
	}

	log.Printf("🎮 [LEVEL] %s → level %d (xp=%d)", userID, level, user.ExperiencePoints)
	return level, nil
}

// GetLevelSummary returns the user's XP and level figures.
func (s *ProgressionService) GetLevelSummary(ctx context.Context, userID string) (*LevelSummary, error) {
	var user models.User
	if err := s.DB.WithContext(ctx).Where("id = ?", userID).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	summary := summarize(&user)
	return &summary, nil
}
