package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"hackpot-service/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DefaultEarlyUserCutoff: accounts created before this instant count as early users.
var DefaultEarlyUserCutoff = time.Date(2025, time.March, 1, 0, 0, 0, 0, time.UTC)

// errProgressRowRace signals a concurrent insert of the same progress row.
var errProgressRowRace = errors.New("progress row created concurrently")

type AchievementService struct {
	DB              *gorm.DB
	Progression     *ProgressionService
	Notifier        *UnlockNotifier
	EarlyUserCutoff time.Time

	now func() time.Time
}

func NewAchievementService(db *gorm.DB, progression *ProgressionService, notifier *UnlockNotifier) *AchievementService {
	return &AchievementService{
		DB:              db,
		Progression:     progression,
		Notifier:        notifier,
		EarlyUserCutoff: DefaultEarlyUserCutoff,
		now:             time.Now,
	}
}

type candidate struct {
	achievement models.Achievement
	target      int64
}

// ComputeProgress returns the user's current cumulative value for the event's
// metric. It always reads the absolute figure from storage, never a delta.
func (s *AchievementService) ComputeProgress(ctx context.Context, userID string, ev Event) (int64, error) {
	if err := validateEvent(ev); err != nil {
		return 0, err
	}
	db := s.DB.WithContext(ctx)

	switch e := ev.(type) {
	case LoopEntryEvent:
		var n int64
		if err := db.Model(&models.LoopEntry{}).
			Where("wallet_address = ?", e.WalletAddress).
			Count(&n).Error; err != nil {
			return 0, fmt.Errorf("count loop entries: %w", err)
		}
		return n, nil

	case LoopWinEvent:
		var n int64
		if err := db.Model(&models.Loop{}).
			Where("winner_address = ? AND status = ?", e.WalletAddress, models.LoopCompleted).
			Count(&n).Error; err != nil {
			return 0, fmt.Errorf("count loop wins: %w", err)
		}
		return n, nil

	case ReferralEvent:
		var stats models.ReferralStats
		err := db.Select("user_id", "total_referrals").Where("user_id = ?", userID).Take(&stats).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("load referral stats: %w", err)
		}
		return stats.TotalReferrals, nil

	case SpendEvent:
		var user models.User
		err := db.Select("id", "total_spent").Where("id = ?", userID).Take(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("load total spent: %w", err)
		}
		return user.TotalSpent.Floor().IntPart(), nil

	case AccountEvent:
		var user models.User
		err := db.Select("id", "created_at").Where("id = ?", userID).Take(&user).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("load account age: %w", err)
		}
		if user.CreatedAt.Before(s.EarlyUserCutoff) {
			return 1, nil
		}
		return 0, nil

	case CustomEvent:
		return e.Value, nil
	}

	return 0, fmt.Errorf("%w: unsupported event %T", ErrInvalidEvent, ev)
}

// matching loads active achievements whose criteria type equals kind.
// Definitions with unparseable criteria are logged and skipped.
func (s *AchievementService) matching(ctx context.Context, kind EventKind) ([]candidate, error) {
	var active []models.Achievement
	if err := s.DB.WithContext(ctx).Where("is_active = ?", true).Find(&active).Error; err != nil {
		return nil, fmt.Errorf("load active achievements: %w", err)
	}

	var out []candidate
	for _, a := range active {
		criteria, err := a.Criteria()
		if err != nil {
			log.Printf("⚠️ [ACHIEVEMENTS] skipping %s (%s): %v", a.Code, a.ID, err)
			continue
		}
		if EventKind(criteria.Type) != kind {
			continue
		}
		out = append(out, candidate{achievement: a, target: criteria.Target})
	}
	return out, nil
}

// Evaluate recomputes progress for every active achievement matching the
// event and returns the ones this call unlocked. On a storage error it
// returns what was unlocked so far together with the error.
func (s *AchievementService) Evaluate(ctx context.Context, userID string, ev Event) ([]models.Achievement, error) {
	if err := validateEvent(ev); err != nil {
		return nil, err
	}

	candidates, err := s.matching(ctx, ev.Kind())
	if err != nil {
		return nil, err
	}
	unlocked := make([]models.Achievement, 0)
	if len(candidates) == 0 {
		return unlocked, nil
	}

	current, err := s.ComputeProgress(ctx, userID, ev)
	if err != nil {
		return unlocked, err
	}

	for _, c := range candidates {
		ok, err := s.trackProgress(ctx, userID, c.achievement, c.target, current)
		if err != nil {
			return unlocked, fmt.Errorf("achievement %s: %w", c.achievement.Code, err)
		}
		if ok {
			unlocked = append(unlocked, c.achievement)
		}
	}
	return unlocked, nil
}

// CheckProgress is the entry point for gameplay code. It never fails the
// caller: errors and panics are logged.
func (s *AchievementService) CheckProgress(ctx context.Context, userID string, ev Event) (unlocked []models.Achievement) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("❌ [ACHIEVEMENTS] panic while checking %v for %s: %v", ev, userID, r)
			unlocked = nil
		}
	}()

	unlocked, err := s.EvaluateAndNotify(ctx, userID, ev)
	if err != nil {
		log.Printf("❌ [ACHIEVEMENTS] check %T for %s failed: %v", ev, userID, err)
	}
	return unlocked
}

// EvaluateAndNotify runs Evaluate, queues whatever it unlocked for the user
// and recalculates the level. Unlocks committed before a failure are
// delivered too, so the error comes back alongside them.
func (s *AchievementService) EvaluateAndNotify(ctx context.Context, userID string, ev Event) ([]models.Achievement, error) {
	unlocked, err := s.Evaluate(ctx, userID, ev)
	if len(unlocked) == 0 {
		return unlocked, err
	}

	if s.Notifier != nil {
		s.Notifier.Push(userID, unlocked...)
	}
	if s.Progression != nil {
		if _, lvlErr := s.Progression.RecalculateLevel(ctx, userID); lvlErr != nil {
			log.Printf("⚠️ [ACHIEVEMENTS] level recalculation for %s failed: %v", userID, lvlErr)
		}
	}
	return unlocked, err
}

func (s *AchievementService) trackProgress(ctx context.Context, userID string, a models.Achievement, target, current int64) (bool, error) {
	unlocked, err := s.trackProgressOnce(ctx, userID, a, target, current)
	if errors.Is(err, errProgressRowRace) {
		// the row exists now; the retry takes the update path
		unlocked, err = s.trackProgressOnce(ctx, userID, a, target, current)
	}
	return unlocked, err
}

// trackProgressOnce writes the fresh progress value and, when the target is
// reached, sets unlocked_at and credits the reward in the same transaction.
// The unlock is a conditional update so only one caller can win it.
func (s *AchievementService) trackProgressOnce(ctx context.Context, userID string, a models.Achievement, target, current int64) (bool, error) {
	var unlocked bool
	now := s.now()

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row models.UserAchievementProgress
		err := tx.Where("user_id = ? AND achievement_id = ?", userID, a.ID).Take(&row).Error

		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = models.UserAchievementProgress{
				ID:            uuid.NewString(),
				UserID:        userID,
				AchievementID: a.ID,
				Progress:      current,
				Target:        target,
			}
			if current >= target {
				row.UnlockedAt = &now
			}
			if err := tx.Create(&row).Error; err != nil {
				if isUniqueViolation(err) {
					return errProgressRowRace
				}
				return fmt.Errorf("create progress: %w", err)
			}
			unlocked = row.UnlockedAt != nil

		case err != nil:
			return fmt.Errorf("load progress: %w", err)

		default:
			if err := tx.Model(&row).Update("progress", current).Error; err != nil {
				return fmt.Errorf("update progress: %w", err)
			}
			res := tx.Model(&models.UserAchievementProgress{}).
				Where("id = ? AND unlocked_at IS NULL AND progress >= target", row.ID).
				Update("unlocked_at", now)
			if res.Error != nil {
				return fmt.Errorf("unlock: %w", res.Error)
			}
			unlocked = res.RowsAffected == 1
		}

		if !unlocked {
			return nil
		}
		return s.applyReward(tx, userID, a)
	})
	if err != nil {
		return false, err
	}

	if unlocked {
		log.Printf("🏆 [ACHIEVEMENTS] Unlocked %q for %s (+%d XP)", a.Name, userID, a.RewardPoints)
	}
	return unlocked, nil
}

// applyReward credits reward_points to the user's experience. Runs inside the
// unlocking transaction; a missing user rolls the unlock back.
func (s *AchievementService) applyReward(tx *gorm.DB, userID string, a models.Achievement) error {
	res := tx.Model(&models.User{}).
		Where("id = ?", userID).
		Update("experience_points", gorm.Expr("experience_points + ?", a.RewardPoints))
	if res.Error != nil {
		return fmt.Errorf("credit xp: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("credit xp: %w", ErrUserNotFound)
	}
	return nil
}

// ListActive returns the visible catalogue.
func (s *AchievementService) ListActive(ctx context.Context) ([]models.Achievement, error) {
	var list []models.Achievement
	err := s.DB.WithContext(ctx).
		Where("is_active = ?", true).
		Order("category ASC, name ASC").
		Find(&list).Error
	return list, err
}

// GetUserProgress returns the user's progress rows with their definitions, newest first.
func (s *AchievementService) GetUserProgress(ctx context.Context, userID string) ([]models.UserAchievementProgress, error) {
	var rows []models.UserAchievementProgress
	err := s.DB.WithContext(ctx).
		Preload("Achievement").
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&rows).Error
	return rows, err
}

// Claim marks an unlocked achievement as acknowledged by the user. It grants
// nothing; claiming twice is a no-op.
func (s *AchievementService) Claim(ctx context.Context, userID, achievementID string) (*models.UserAchievementProgress, error) {
	var row models.UserAchievementProgress
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ? AND achievement_id = ?", userID, achievementID).Take(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrProgressNotFound
			}
			return err
		}
		if row.UnlockedAt == nil {
			return ErrNotUnlocked
		}
		if row.IsClaimed {
			return nil
		}
		if err := tx.Model(&models.UserAchievementProgress{}).
			Where("id = ? AND unlocked_at IS NOT NULL", row.ID).
			Update("is_claimed", true).Error; err != nil {
			return fmt.Errorf("claim: %w", err)
		}
		row.IsClaimed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &row, nil
}

// AwardAchievement unlocks an achievement for a user by hand. It goes through
// the same conditional unlock as evaluation, so an achievement the user
// already holds is not rewarded twice.
func (s *AchievementService) AwardAchievement(ctx context.Context, userID, achievementID string) (bool, error) {
	var a models.Achievement
	if err := s.DB.WithContext(ctx).Where("id = ?", achievementID).Take(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, ErrAchievementNotFound
		}
		return false, err
	}
	criteria, err := a.Criteria()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidAchievement, err)
	}

	progress := criteria.Target
	var existing models.UserAchievementProgress
	if err := s.DB.WithContext(ctx).
		Where("user_id = ? AND achievement_id = ?", userID, a.ID).
		Take(&existing).Error; err == nil && existing.Progress > progress {
		progress = existing.Progress
	}

	unlocked, err := s.trackProgress(ctx, userID, a, criteria.Target, progress)
	if err != nil {
		return false, err
	}
	if unlocked {
		if s.Notifier != nil {
			s.Notifier.Push(userID, a)
		}
		if s.Progression != nil {
			if _, err := s.Progression.RecalculateLevel(ctx, userID); err != nil {
				log.Printf("⚠️ [ACHIEVEMENTS] level recalculation for %s failed: %v", userID, err)
			}
		}
	}
	return unlocked, nil
}

type AchievementStat struct {
	AchievementID string                     `json:"achievement_id"`
	Code          string                     `json:"code"`
	Name          string                     `json:"name"`
	Category      models.AchievementCategory `json:"category"`
	Unlocks       int64                      `json:"unlocks"`
	Claims        int64                      `json:"claims"`
}

// GetAchievementStats counts unlocks and claims per achievement.
func (s *AchievementService) GetAchievementStats(ctx context.Context) ([]AchievementStat, error) {
	var stats []AchievementStat
	err := s.DB.WithContext(ctx).
		Table("achievements AS a").
		Select(`a.id AS achievement_id, a.code, a.name, a.category,
			COUNT(p.unlocked_at) AS unlocks,
			COALESCE(SUM(CASE WHEN p.is_claimed THEN 1 ELSE 0 END), 0) AS claims`).
		Joins("LEFT JOIN user_achievement_progress AS p ON p.achievement_id = a.id").
		Group("a.id, a.code, a.name, a.category").
		Order("unlocks DESC, a.name ASC").
		Scan(&stats).Error
	if err != nil {
		return nil, fmt.Errorf("achievement stats: %w", err)
	}
	return stats, nil
}
