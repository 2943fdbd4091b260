package services

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// EventKind names the metric an achievement counts. It matches unlock_criteria.type.
type EventKind string

const (
	KindLoopEntries EventKind = "loop_entries"
	KindLoopWins    EventKind = "loop_wins"
	KindReferrals   EventKind = "referrals"
	KindTotalSpent  EventKind = "total_spent"
	KindEarlyUser   EventKind = "early_user"
)

func (k EventKind) builtin() bool {
	switch k {
	case KindLoopEntries, KindLoopWins, KindReferrals, KindTotalSpent, KindEarlyUser:
		return true
	}
	return false
}

// Event is a gameplay occurrence that may advance achievement progress.
type Event interface {
	Kind() EventKind
}

// LoopEntryEvent fires after a ticket is recorded.
type LoopEntryEvent struct {
	WalletAddress string
	Amount        decimal.Decimal
}

func (LoopEntryEvent) Kind() EventKind { return KindLoopEntries }

// LoopWinEvent fires after a loop is completed with this wallet as winner.
type LoopWinEvent struct {
	WalletAddress string
	LoopID        string
}

func (LoopWinEvent) Kind() EventKind { return KindLoopWins }

// ReferralEvent fires for the referrer after a referred signup.
type ReferralEvent struct {
	ReferredUserID string
}

func (ReferralEvent) Kind() EventKind { return KindReferrals }

type SpendEvent struct {
	Amount decimal.Decimal
}

func (SpendEvent) Kind() EventKind { return KindTotalSpent }

// AccountEvent fires once when the profile is created.
type AccountEvent struct{}

func (AccountEvent) Kind() EventKind { return KindEarlyUser }

// CustomEvent carries an admin-defined kind whose progress is the supplied value.
type CustomEvent struct {
	Type  string
	Value int64
}

func (e CustomEvent) Kind() EventKind { return EventKind(e.Type) }

func validateEvent(ev Event) error {
	switch e := ev.(type) {
	case nil:
		return fmt.Errorf("%w: nil event", ErrInvalidEvent)
	case LoopEntryEvent:
		if strings.TrimSpace(e.WalletAddress) == "" {
			return fmt.Errorf("%w: loop entry without wallet address", ErrInvalidEvent)
		}
	case LoopWinEvent:
		if strings.TrimSpace(e.WalletAddress) == "" {
			return fmt.Errorf("%w: loop win without wallet address", ErrInvalidEvent)
		}
	case ReferralEvent, SpendEvent, AccountEvent:
	case CustomEvent:
		if strings.TrimSpace(e.Type) == "" {
			return fmt.Errorf("%w: custom event without type", ErrInvalidEvent)
		}
		if e.Kind().builtin() {
			return fmt.Errorf("%w: custom event cannot use builtin kind %q", ErrInvalidEvent, e.Type)
		}
		if e.Value < 0 {
			return fmt.Errorf("%w: negative value", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unsupported event %T", ErrInvalidEvent, ev)
	}
	return nil
}
