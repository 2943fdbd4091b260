package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type LoopStatus string

const (
	LoopActive    LoopStatus = "active"
	LoopCompleted LoopStatus = "completed"
	LoopCancelled LoopStatus = "cancelled"
)

func (s LoopStatus) Valid() bool {
	switch s {
	case LoopActive, LoopCompleted, LoopCancelled:
		return true
	}
	return false
}

// Loop is one prediction round: numbered tickets into a shared prize pool.
type Loop struct {
	ID            string          `gorm:"primaryKey;type:uuid" json:"id"`
	Name          string          `gorm:"not null" json:"name"`
	Difficulty    string          `gorm:"type:varchar(16);not null" json:"difficulty"`
	TicketPrice   decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"ticket_price"`
	MaxTickets    int             `gorm:"not null" json:"max_tickets"`
	PrizePool     decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"prize_pool"`
	Status        LoopStatus      `gorm:"type:varchar(16);not null;index" json:"status"`
	WinnerAddress *string         `gorm:"type:varchar(128);index" json:"winner_address,omitempty"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt     time.Time       `gorm:"autoUpdateTime" json:"updated_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty"`
}

// LoopEntry is one purchased ticket. TransactionID is the on-chain payment id.
type LoopEntry struct {
	ID            string          `gorm:"primaryKey;type:uuid" json:"id"`
	LoopID        string          `gorm:"type:uuid;not null;uniqueIndex:idx_loop_ticket" json:"loop_id"`
	UserID        string          `gorm:"type:varchar(64);not null;index" json:"user_id"`
	WalletAddress string          `gorm:"type:varchar(128);not null;index" json:"wallet_address"`
	TicketNumber  int             `gorm:"not null;uniqueIndex:idx_loop_ticket" json:"ticket_number"`
	AmountPaid    decimal.Decimal `gorm:"type:numeric(20,6);not null" json:"amount_paid"`
	TransactionID string          `gorm:"type:varchar(128);not null;uniqueIndex" json:"transaction_id"`
	CreatedAt     time.Time       `gorm:"autoCreateTime" json:"created_at"`
}
