package services

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"hackpot-service/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var testNow = time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

// newTestDB opens a private in-memory database. One connection only, so
// code under test must use tx inside transactions.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_", "#", "_").Replace(t.Name())
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", name)

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.User{},
		&models.ConnectedWallet{},
		&models.Achievement{},
		&models.UserAchievementProgress{},
		&models.Loop{},
		&models.LoopEntry{},
		&models.ReferralTier{},
		&models.ReferralStats{},
		&models.ReferralHistory{},
	); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newTestAchievementService(t *testing.T) (*gorm.DB, *AchievementService) {
	t.Helper()
	db := newTestDB(t)
	svc := NewAchievementService(db, NewProgressionService(db), NewUnlockNotifier())
	svc.now = func() time.Time { return testNow }
	return db, svc
}

func seedUser(t *testing.T, db *gorm.DB, id string, createdAt time.Time) models.User {
	t.Helper()
	u := models.User{
		ID:            id,
		Email:         id + "@example.com",
		ReferralCode:  newReferralCode(),
		Level:         1,
		TotalSpent:    decimal.Zero,
		TotalEarnings: decimal.Zero,
		CreatedAt:     createdAt,
	}
	if err := db.Create(&u).Error; err != nil {
		t.Fatalf("seed user %s: %v", id, err)
	}
	return u
}

func seedAchievement(t *testing.T, db *gorm.DB, name string, kind EventKind, target, reward int64) models.Achievement {
	t.Helper()
	raw, _ := json.Marshal(models.UnlockCriteria{Type: string(kind), Target: target})
	a := models.Achievement{
		ID:             uuid.NewString(),
		Code:           strings.ToLower(strings.ReplaceAll(name, " ", "-")),
		Name:           name,
		Category:       models.CategoryGameplay,
		Rarity:         models.RarityCommon,
		RewardPoints:   reward,
		UnlockCriteria: datatypes.JSON(raw),
		IsActive:       true,
	}
	if err := db.Create(&a).Error; err != nil {
		t.Fatalf("seed achievement %s: %v", name, err)
	}
	return a
}

func seedWallet(t *testing.T, db *gorm.DB, userID, address string) {
	t.Helper()
	w := models.ConnectedWallet{
		ID:            uuid.NewString(),
		UserID:        userID,
		WalletAddress: address,
		WalletType:    models.WalletPera,
		IsPrimary:     true,
		CreatedAt:     testNow,
		UpdatedAt:     testNow,
	}
	if err := db.Create(&w).Error; err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
}

func loadUser(t *testing.T, db *gorm.DB, id string) models.User {
	t.Helper()
	var u models.User
	if err := db.Where("id = ?", id).Take(&u).Error; err != nil {
		t.Fatalf("load user %s: %v", id, err)
	}
	return u
}

func loadProgress(t *testing.T, db *gorm.DB, userID, achievementID string) models.UserAchievementProgress {
	t.Helper()
	var p models.UserAchievementProgress
	if err := db.Where("user_id = ? AND achievement_id = ?", userID, achievementID).Take(&p).Error; err != nil {
		t.Fatalf("load progress: %v", err)
	}
	return p
}

func countProgressRows(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var n int64
	if err := db.Model(&models.UserAchievementProgress{}).Count(&n).Error; err != nil {
		t.Fatalf("count progress: %v", err)
	}
	return n
}
