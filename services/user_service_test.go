package services

import (
	"context"
	"strings"
	"testing"
	"time"

	"hackpot-service/models"
)

func TestEnsureUserIsIdempotent(t *testing.T) {
	db, achievements := newTestAchievementService(t)
	users := NewUserService(db, achievements)
	ctx := context.Background()

	first, err := users.EnsureUser(ctx, "u1", "u1@example.com")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if len(first.ReferralCode) != referralCodeLength || first.ReferralCode != strings.ToUpper(first.ReferralCode) {
		t.Fatalf("referral code %q", first.ReferralCode)
	}
	if first.Level != 1 {
		t.Fatalf("level = %d", first.Level)
	}

	again, err := users.EnsureUser(ctx, "u1", "changed@example.com")
	if err != nil {
		t.Fatalf("second EnsureUser: %v", err)
	}
	if again.ReferralCode != first.ReferralCode || again.Email != "u1@example.com" {
		t.Fatalf("profile changed on second call: %+v", again)
	}
}

func TestEnsureUserFiresAccountCheck(t *testing.T) {
	db, achievements := newTestAchievementService(t)
	achievements.EarlyUserCutoff = time.Now().Add(24 * time.Hour)
	pioneer := seedAchievement(t, db, "Pioneer", KindEarlyUser, 1, 1200)
	users := NewUserService(db, achievements)

	u, err := users.EnsureUser(context.Background(), "early", "early@example.com")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if u.ExperiencePoints != 1200 || u.Level != 2 {
		t.Fatalf("xp=%d level=%d, want 1200 and 2", u.ExperiencePoints, u.Level)
	}
	if row := loadProgress(t, db, "early", pioneer.ID); row.UnlockedAt == nil {
		t.Fatalf("pioneer not unlocked: %+v", row)
	}

	profile, err := users.GetProfile(context.Background(), "early")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if profile.XPToNextLevel != 800 || profile.LevelProgress != 200 {
		t.Fatalf("profile: to_next=%d progress=%d", profile.XPToNextLevel, profile.LevelProgress)
	}
}

func TestEnsureUserAfterCutoffIsNotEarly(t *testing.T) {
	db, achievements := newTestAchievementService(t)
	pioneer := seedAchievement(t, db, "Pioneer", KindEarlyUser, 1, 1200)
	users := NewUserService(db, achievements)

	u, err := users.EnsureUser(context.Background(), "late", "late@example.com")
	if err != nil {
		t.Fatalf("EnsureUser: %v", err)
	}
	if u.ExperiencePoints != 0 {
		t.Fatalf("xp = %d, want 0", u.ExperiencePoints)
	}
	if row := loadProgress(t, db, "late", pioneer.ID); row.UnlockedAt != nil || row.Progress != 0 {
		t.Fatalf("late row: %+v", row)
	}
}

func TestListWalletsPrimaryFirst(t *testing.T) {
	db, achievements := newTestAchievementService(t)
	users := NewUserService(db, achievements)
	seedUser(t, db, "u1", testNow)
	seedUser(t, db, "u2", testNow)

	secondary := models.ConnectedWallet{
		ID:            "w-secondary",
		UserID:        "u1",
		WalletAddress: "SECONDARY",
		WalletType:    models.WalletPera,
		CreatedAt:     testNow.Add(-time.Hour),
		UpdatedAt:     testNow,
	}
	if err := db.Create(&secondary).Error; err != nil {
		t.Fatalf("seed secondary wallet: %v", err)
	}
	seedWallet(t, db, "u1", "PRIMARY")
	seedWallet(t, db, "u2", "OTHER")

	wallets, err := users.ListWallets(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListWallets: %v", err)
	}
	if len(wallets) != 2 || wallets[0].WalletAddress != "PRIMARY" || wallets[1].WalletAddress != "SECONDARY" {
		t.Fatalf("wallets: %+v", wallets)
	}

	none, err := users.ListWallets(context.Background(), "nobody")
	if err != nil || len(none) != 0 {
		t.Fatalf("unknown user wallets: %+v, %v", none, err)
	}
}
