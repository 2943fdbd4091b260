package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type AchievementCategory string

const (
	CategoryGameplay  AchievementCategory = "gameplay"
	CategorySocial    AchievementCategory = "social"
	CategoryMilestone AchievementCategory = "milestone"
	CategorySpecial   AchievementCategory = "special"
)

func (c AchievementCategory) Valid() bool {
	switch c {
	case CategoryGameplay, CategorySocial, CategoryMilestone, CategorySpecial:
		return true
	}
	return false
}

type AchievementRarity string

const (
	RarityCommon    AchievementRarity = "common"
	RarityRare      AchievementRarity = "rare"
	RarityEpic      AchievementRarity = "epic"
	RarityLegendary AchievementRarity = "legendary"
)

func (r AchievementRarity) Valid() bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	}
	return false
}

var ErrInvalidCriteria = errors.New("invalid unlock criteria")

// UnlockCriteria is the JSON stored in achievements.unlock_criteria,
// e.g. {"type": "loop_entries", "target": 5}
type UnlockCriteria struct {
	Type   string `json:"type"`
	Target int64  `json:"target"`
}

func (c UnlockCriteria) Validate() error {
	if c.Type == "" {
		return fmt.Errorf("%w: missing type", ErrInvalidCriteria)
	}
	if c.Target < 0 {
		return fmt.Errorf("%w: negative target %d", ErrInvalidCriteria, c.Target)
	}
	return nil
}

// Achievement is an admin-defined goal. Definitions are deactivated, never deleted.
type Achievement struct {
	ID             string              `gorm:"primaryKey;type:uuid" json:"id"`
	Code           string              `gorm:"type:varchar(128);uniqueIndex;not null" json:"code"`
	Name           string              `gorm:"not null" json:"name"`
	Description    string              `gorm:"type:text" json:"description"`
	Icon           string              `gorm:"type:text" json:"icon"`
	Category       AchievementCategory `gorm:"type:varchar(16);not null;index" json:"category"`
	Rarity         AchievementRarity   `gorm:"type:varchar(16);not null" json:"rarity"`
	RewardPoints   int64               `gorm:"not null" json:"reward_points"`
	UnlockCriteria datatypes.JSON      `gorm:"not null" json:"unlock_criteria"`
	IsActive       bool                `gorm:"not null;index" json:"is_active"`
	CreatedAt      time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

// Criteria parses UnlockCriteria. A definition that fails here is skipped by evaluation.
func (a *Achievement) Criteria() (UnlockCriteria, error) {
	var c UnlockCriteria
	if len(a.UnlockCriteria) == 0 {
		return c, fmt.Errorf("%w: empty", ErrInvalidCriteria)
	}
	if err := json.Unmarshal(a.UnlockCriteria, &c); err != nil {
		return c, fmt.Errorf("%w: %v", ErrInvalidCriteria, err)
	}
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// SetCriteria encodes c into UnlockCriteria.
func (a *Achievement) SetCriteria(c UnlockCriteria) error {
	if err := c.Validate(); err != nil {
		return err
	}
	raw, err := json.Marshal(c)
	if err != nil {
		return err
	}
	a.UnlockCriteria = datatypes.JSON(raw)
	return nil
}

type ProgressState string

const (
	StateLocked   ProgressState = "locked"
	StateUnlocked ProgressState = "unlocked"
	StateClaimed  ProgressState = "claimed"
)

// UserAchievementProgress is the per-user tracking row for one achievement.
// UnlockedAt is set once and never cleared.
type UserAchievementProgress struct {
	ID            string       `gorm:"primaryKey;type:uuid" json:"id"`
	UserID        string       `gorm:"not null;uniqueIndex:idx_progress_user_achievement" json:"user_id"`
	AchievementID string       `gorm:"type:uuid;not null;uniqueIndex:idx_progress_user_achievement;index" json:"achievement_id"`
	Achievement   *Achievement `gorm:"foreignKey:AchievementID" json:"achievement,omitempty"`
	Progress      int64        `gorm:"not null" json:"progress"`
	Target        int64        `gorm:"not null" json:"target"`
	UnlockedAt    *time.Time   `json:"unlocked_at"`
	IsClaimed     bool         `gorm:"not null" json:"is_claimed"`
	CreatedAt     time.Time    `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time    `gorm:"autoUpdateTime" json:"updated_at"`
}

func (UserAchievementProgress) TableName() string {
	return "user_achievement_progress"
}

func (p *UserAchievementProgress) State() ProgressState {
	switch {
	case p.UnlockedAt == nil:
		return StateLocked
	case p.IsClaimed:
		return StateClaimed
	default:
		return StateUnlocked
	}
}
