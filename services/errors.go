package services

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

var (
	ErrInvalidEvent        = errors.New("invalid achievement event")
	ErrUserNotFound        = errors.New("user not found")
	ErrAchievementNotFound = errors.New("achievement not found")
	ErrProgressNotFound    = errors.New("achievement progress not found")
	ErrNotUnlocked         = errors.New("achievement is not unlocked")
	ErrInvalidAchievement  = errors.New("invalid achievement definition")

	ErrLoopNotFound     = errors.New("loop not found")
	ErrLoopClosed       = errors.New("loop is not active")
	ErrLoopSoldOut      = errors.New("loop is sold out")
	ErrInvalidLoop      = errors.New("invalid loop")
	ErrDuplicateEntry   = errors.New("loop entry already recorded")
	ErrWalletNotLinked  = errors.New("wallet is not linked to user")
	ErrWinnerNotEntrant = errors.New("winner has no ticket in loop")
	ErrNoEntries        = errors.New("loop has no entries")

	ErrInvalidReferralCode = errors.New("invalid referral code")
	ErrSelfReferral        = errors.New("cannot use own referral code")
	ErrAlreadyReferred     = errors.New("user already referred")
	ErrReferralNotFound    = errors.New("referral not found")
	ErrInvalidCommission   = errors.New("invalid commission amount")
	ErrCommissionPaid      = errors.New("commission already paid")
	ErrCommissionPending   = errors.New("commission is not confirmed")
)

// isUniqueViolation reports a duplicate key from either a translated gorm
// error or a raw postgres error.
func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
