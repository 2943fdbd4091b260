package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"hackpot-service/models"

	"github.com/shopspring/decimal"
)

func newTestReferralService(t *testing.T) *ReferralService {
	t.Helper()
	db, achievements := newTestAchievementService(t)
	s := NewReferralService(db, achievements)
	if err := s.SeedTiers(context.Background()); err != nil {
		t.Fatalf("SeedTiers: %v", err)
	}
	return s
}

func TestSeedTiersOnlyOnce(t *testing.T) {
	s := newTestReferralService(t)
	if err := s.SeedTiers(context.Background()); err != nil {
		t.Fatalf("second SeedTiers: %v", err)
	}
	tiers, err := s.ListTiers(context.Background())
	if err != nil {
		t.Fatalf("ListTiers: %v", err)
	}
	if len(tiers) != len(models.DefaultReferralTiers) {
		t.Fatalf("got %d tiers", len(tiers))
	}
	if tiers[0].TierName != "Bronze" || tiers[len(tiers)-1].TierName != "Diamond" {
		t.Fatalf("unexpected order: %s..%s", tiers[0].TierName, tiers[len(tiers)-1].TierName)
	}
}

func TestProcessSignupUnlocksReferralAchievements(t *testing.T) {
	s := newTestReferralService(t)
	db := s.DB
	ctx := context.Background()

	referrer := seedUser(t, db, "ref", testNow)
	first := seedAchievement(t, db, "First Friend", KindReferrals, 1, 50)
	five := seedAchievement(t, db, "Recruiter", KindReferrals, 5, 200)

	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("new-%d", i)
		seedUser(t, db, id, testNow)
		// lower case codes are accepted
		if _, err := s.ProcessSignup(ctx, id, strings.ToLower(referrer.ReferralCode)); err != nil {
			t.Fatalf("signup %d: %v", i, err)
		}
		if i == 1 {
			if row := loadProgress(t, db, "ref", first.ID); row.UnlockedAt == nil {
				t.Fatalf("first referral did not unlock: %+v", row)
			}
			if row := loadProgress(t, db, "ref", five.ID); row.UnlockedAt != nil || row.Progress != 1 {
				t.Fatalf("five-referral row after one signup: %+v", row)
			}
		}
	}

	if row := loadProgress(t, db, "ref", five.ID); row.UnlockedAt == nil || row.Progress != 5 {
		t.Fatalf("five-referral row: %+v", row)
	}
	if xp := loadUser(t, db, "ref").ExperiencePoints; xp != 250 {
		t.Fatalf("referrer xp = %d, want 250", xp)
	}

	stats, err := s.GetStats(ctx, "ref")
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalReferrals != 5 || stats.ThisMonthReferrals != 5 || stats.CurrentTier != 2 {
		t.Fatalf("stats: %+v", stats)
	}

	history, err := s.GetHistory(ctx, "ref")
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if len(history) != 5 {
		t.Fatalf("history has %d rows", len(history))
	}
	if history[0].ReferredEmail == "" {
		t.Fatalf("history row missing referred email: %+v", history[0])
	}

	if got := loadUser(t, db, "new-3"); got.ReferredByCode == nil || *got.ReferredByCode != referrer.ReferralCode {
		t.Fatalf("referred_by_code = %v", got.ReferredByCode)
	}
}

func TestProcessSignupRejections(t *testing.T) {
	s := newTestReferralService(t)
	db := s.DB
	ctx := context.Background()
	referrer := seedUser(t, db, "ref", testNow)
	seedUser(t, db, "other", testNow)
	seedUser(t, db, "newbie", testNow)

	cases := []struct {
		name   string
		userID string
		code   string
		want   error
	}{
		{"empty code", "newbie", "  ", ErrInvalidReferralCode},
		{"unknown code", "newbie", "NOPE1234", ErrInvalidReferralCode},
		{"self referral", "ref", referrer.ReferralCode, ErrSelfReferral},
		{"missing user", "ghost", referrer.ReferralCode, ErrUserNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.ProcessSignup(ctx, tc.userID, tc.code); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}

	if _, err := s.ProcessSignup(ctx, "newbie", referrer.ReferralCode); err != nil {
		t.Fatalf("signup: %v", err)
	}
	other := loadUser(t, db, "other")
	if _, err := s.ProcessSignup(ctx, "newbie", other.ReferralCode); !errors.Is(err, ErrAlreadyReferred) {
		t.Fatalf("second signup: %v", err)
	}

	stats, err := s.GetStats(ctx, "ref")
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalReferrals != 1 {
		t.Fatalf("total_referrals = %d, want 1", stats.TotalReferrals)
	}
}

func TestGetStatsCreatesEmptyRow(t *testing.T) {
	s := newTestReferralService(t)
	stats, err := s.GetStats(context.Background(), "lonely")
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if stats.TotalReferrals != 0 || stats.CurrentTier != 1 || !stats.TotalCommissionEarned.IsZero() {
		t.Fatalf("stats: %+v", stats)
	}
	var n int64
	s.DB.Model(&models.ReferralStats{}).Where("user_id = ?", "lonely").Count(&n)
	if n != 1 {
		t.Fatalf("expected one stats row, got %d", n)
	}
}

func TestConfirmCommissionAddsDelta(t *testing.T) {
	s := newTestReferralService(t)
	db := s.DB
	ctx := context.Background()
	referrer := seedUser(t, db, "ref", testNow)
	seedUser(t, db, "newbie", testNow)

	h, err := s.ProcessSignup(ctx, "newbie", referrer.ReferralCode)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := s.ConfirmCommission(ctx, h.ID, decimal.RequireFromString("2.5")); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	// re-confirming with a new amount replaces, not adds
	confirmed, err := s.ConfirmCommission(ctx, h.ID, decimal.RequireFromString("4"))
	if err != nil {
		t.Fatalf("reconfirm: %v", err)
	}
	if confirmed.Status != models.ReferralConfirmed {
		t.Fatalf("status = %s", confirmed.Status)
	}

	stats, err := s.GetStats(ctx, "ref")
	if err != nil {
		t.Fatalf("GetStats: %v", err)
	}
	if !stats.TotalCommissionEarned.Equal(decimal.NewFromInt(4)) {
		t.Fatalf("total commission = %s, want 4", stats.TotalCommissionEarned)
	}

	if _, err := s.ConfirmCommission(ctx, "missing", decimal.NewFromInt(1)); !errors.Is(err, ErrReferralNotFound) {
		t.Fatalf("missing referral: %v", err)
	}
	if _, err := s.ConfirmCommission(ctx, h.ID, decimal.NewFromInt(-1)); !errors.Is(err, ErrInvalidCommission) {
		t.Fatalf("negative amount: %v", err)
	}
}

func TestClaimCommissionLifecycle(t *testing.T) {
	s := newTestReferralService(t)
	db := s.DB
	ctx := context.Background()
	referrer := seedUser(t, db, "ref", testNow)
	seedUser(t, db, "newbie", testNow)
	seedUser(t, db, "other", testNow)

	h, err := s.ProcessSignup(ctx, "newbie", referrer.ReferralCode)
	if err != nil {
		t.Fatalf("signup: %v", err)
	}

	if _, err := s.ClaimCommission(ctx, "ref", h.ID); !errors.Is(err, ErrCommissionPending) {
		t.Fatalf("claim while pending: %v", err)
	}
	if _, err := s.ConfirmCommission(ctx, h.ID, decimal.NewFromInt(3)); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := s.ClaimCommission(ctx, "other", h.ID); !errors.Is(err, ErrReferralNotFound) {
		t.Fatalf("claim by non-referrer: %v", err)
	}

	paid, err := s.ClaimCommission(ctx, "ref", h.ID)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if paid.Status != models.ReferralPaid {
		t.Fatalf("status = %s", paid.Status)
	}
	if _, err := s.ClaimCommission(ctx, "ref", h.ID); !errors.Is(err, ErrCommissionPaid) {
		t.Fatalf("second claim: %v", err)
	}

	// a paid row cannot be re-confirmed back to confirmed
	if _, err := s.ConfirmCommission(ctx, h.ID, decimal.NewFromInt(9)); !errors.Is(err, ErrCommissionPaid) {
		t.Fatalf("confirm after paid: %v", err)
	}
	var row models.ReferralHistory
	if err := db.Where("id = ?", h.ID).Take(&row).Error; err != nil {
		t.Fatalf("load history: %v", err)
	}
	if row.Status != models.ReferralPaid || !row.CommissionEarned.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("history after paid: %+v", row)
	}
	stats, _ := s.GetStats(ctx, "ref")
	if !stats.TotalCommissionEarned.Equal(decimal.NewFromInt(3)) {
		t.Fatalf("total commission = %s, want 3", stats.TotalCommissionEarned)
	}
}

func TestGetSummaryAggregatesReferrers(t *testing.T) {
	s := newTestReferralService(t)
	db := s.DB
	ctx := context.Background()
	alice := seedUser(t, db, "alice", testNow)
	bob := seedUser(t, db, "bob", testNow)
	seedUser(t, db, "carol", testNow)
	for _, id := range []string{"n1", "n2", "n3"} {
		seedUser(t, db, id, testNow)
	}

	h1, err := s.ProcessSignup(ctx, "n1", alice.ReferralCode)
	if err != nil {
		t.Fatalf("signup n1: %v", err)
	}
	if _, err := s.ProcessSignup(ctx, "n2", alice.ReferralCode); err != nil {
		t.Fatalf("signup n2: %v", err)
	}
	h3, err := s.ProcessSignup(ctx, "n3", bob.ReferralCode)
	if err != nil {
		t.Fatalf("signup n3: %v", err)
	}
	if _, err := s.ConfirmCommission(ctx, h1.ID, decimal.RequireFromString("1.5")); err != nil {
		t.Fatalf("confirm h1: %v", err)
	}
	if _, err := s.ConfirmCommission(ctx, h3.ID, decimal.NewFromInt(2)); err != nil {
		t.Fatalf("confirm h3: %v", err)
	}
	if _, err := s.ClaimCommission(ctx, "bob", h3.ID); err != nil {
		t.Fatalf("claim h3: %v", err)
	}
	// a stats row with no referrals is not an active referrer
	if _, err := s.GetStats(ctx, "carol"); err != nil {
		t.Fatalf("stats carol: %v", err)
	}

	summary, err := s.GetSummary(ctx)
	if err != nil {
		t.Fatalf("GetSummary: %v", err)
	}
	if summary.TotalReferrals != 3 || summary.ActiveReferrers != 2 {
		t.Fatalf("summary counts: %+v", summary)
	}
	if !summary.TotalCommission.Equal(decimal.RequireFromString("3.5")) {
		t.Fatalf("total commission = %s", summary.TotalCommission)
	}
	want := map[models.ReferralStatus]int64{
		models.ReferralPending:   1,
		models.ReferralConfirmed: 1,
		models.ReferralPaid:      1,
	}
	for status, n := range want {
		if summary.ByStatus[status] != n {
			t.Errorf("%s = %d, want %d", status, summary.ByStatus[status], n)
		}
	}
	if len(summary.Recent) != 3 {
		t.Fatalf("recent has %d rows", len(summary.Recent))
	}
}

func TestResetMonthlyReferrals(t *testing.T) {
	s := newTestReferralService(t)
	db := s.DB
	ctx := context.Background()
	referrer := seedUser(t, db, "ref", testNow)
	seedUser(t, db, "a", testNow)
	seedUser(t, db, "b", testNow)
	for _, id := range []string{"a", "b"} {
		if _, err := s.ProcessSignup(ctx, id, referrer.ReferralCode); err != nil {
			t.Fatalf("signup %s: %v", id, err)
		}
	}

	n, err := s.ResetMonthlyReferrals(ctx)
	if err != nil {
		t.Fatalf("reset: %v", err)
	}
	if n != 1 {
		t.Fatalf("reset %d rows, want 1", n)
	}
	stats, _ := s.GetStats(ctx, "ref")
	if stats.ThisMonthReferrals != 0 || stats.TotalReferrals != 2 {
		t.Fatalf("stats after reset: %+v", stats)
	}
}
