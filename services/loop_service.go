package services

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strings"
	"time"

	"hackpot-service/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type LoopService struct {
	DB           *gorm.DB
	Achievements *AchievementService
}

func NewLoopService(db *gorm.DB, achievements *AchievementService) *LoopService {
	return &LoopService{DB: db, Achievements: achievements}
}

type CreateLoopInput struct {
	Name        string          `json:"name"`
	Difficulty  string          `json:"difficulty"`
	TicketPrice decimal.Decimal `json:"ticket_price"`
	MaxTickets  int             `json:"max_tickets"`
}

func (s *LoopService) CreateLoop(ctx context.Context, in CreateLoopInput) (*models.Loop, error) {
	in.Name = strings.TrimSpace(in.Name)
	switch {
	case in.Name == "":
		return nil, fmt.Errorf("%w: name is required", ErrInvalidLoop)
	case !in.TicketPrice.IsPositive():
		return nil, fmt.Errorf("%w: ticket_price must be positive", ErrInvalidLoop)
	case in.MaxTickets <= 0:
		return nil, fmt.Errorf("%w: max_tickets must be positive", ErrInvalidLoop)
	}
	if in.Difficulty == "" {
		in.Difficulty = "easy"
	}

	loop := models.Loop{
		ID:          uuid.NewString(),
		Name:        in.Name,
		Difficulty:  in.Difficulty,
		TicketPrice: in.TicketPrice,
		MaxTickets:  in.MaxTickets,
		PrizePool:   decimal.Zero,
		Status:      models.LoopActive,
	}
	if err := s.DB.WithContext(ctx).Create(&loop).Error; err != nil {
		return nil, fmt.Errorf("create loop: %w", err)
	}
	log.Printf("🎰 [LOOPS] Opened %q (%s ALGO × %d)", loop.Name, loop.TicketPrice, loop.MaxTickets)
	return &loop, nil
}

// GetActiveLoop returns the most recently opened active loop.
func (s *LoopService) GetActiveLoop(ctx context.Context) (*models.Loop, error) {
	var loop models.Loop
	err := s.DB.WithContext(ctx).
		Where("status = ?", models.LoopActive).
		Order("created_at DESC").
		First(&loop).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrLoopNotFound
	}
	if err != nil {
		return nil, err
	}
	return &loop, nil
}

type EnterLoopInput struct {
	LoopID        string `json:"loop_id"`
	WalletAddress string `json:"wallet_address"`
	TransactionID string `json:"transaction_id"`
}

// EnterLoop records one ticket paid from a wallet linked to the user.
// Achievement checks run after commit and cannot fail the entry.
func (s *LoopService) EnterLoop(ctx context.Context, userID string, in EnterLoopInput) (*models.LoopEntry, error) {
	in.WalletAddress = strings.TrimSpace(in.WalletAddress)
	in.TransactionID = strings.TrimSpace(in.TransactionID)
	if in.WalletAddress == "" || in.TransactionID == "" {
		return nil, fmt.Errorf("%w: wallet_address and transaction_id are required", ErrInvalidLoop)
	}

	var entry models.LoopEntry
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var wallet models.ConnectedWallet
		if err := tx.Where("wallet_address = ? AND user_id = ?", in.WalletAddress, userID).Take(&wallet).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWalletNotLinked
			}
			return fmt.Errorf("load wallet: %w", err)
		}

		var loop models.Loop
		if err := tx.Where("id = ?", in.LoopID).Take(&loop).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLoopNotFound
			}
			return fmt.Errorf("load loop: %w", err)
		}
		if loop.Status != models.LoopActive {
			return ErrLoopClosed
		}

		var sold int64
		if err := tx.Model(&models.LoopEntry{}).Where("loop_id = ?", loop.ID).Count(&sold).Error; err != nil {
			return fmt.Errorf("count tickets: %w", err)
		}
		if sold >= int64(loop.MaxTickets) {
			return ErrLoopSoldOut
		}

		entry = models.LoopEntry{
			ID:            uuid.NewString(),
			LoopID:        loop.ID,
			UserID:        userID,
			WalletAddress: in.WalletAddress,
			TicketNumber:  int(sold) + 1,
			AmountPaid:    loop.TicketPrice,
			TransactionID: in.TransactionID,
		}
		if err := tx.Create(&entry).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateEntry
			}
			return fmt.Errorf("record entry: %w", err)
		}

		if err := tx.Model(&models.Loop{}).
			Where("id = ?", loop.ID).
			Update("prize_pool", gorm.Expr("prize_pool + ?", loop.TicketPrice)).Error; err != nil {
			return fmt.Errorf("update prize pool: %w", err)
		}

		res := tx.Model(&models.User{}).
			Where("id = ?", userID).
			Updates(map[string]interface{}{
				"total_spent":   gorm.Expr("total_spent + ?", loop.TicketPrice),
				"last_activity": time.Now(),
			})
		if res.Error != nil {
			return fmt.Errorf("update total spent: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrUserNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🎟️ [LOOPS] %s bought ticket #%d in %s from %s", userID, entry.TicketNumber, entry.LoopID, entry.WalletAddress)

	if s.Achievements != nil {
		s.Achievements.CheckProgress(ctx, userID, LoopEntryEvent{WalletAddress: entry.WalletAddress, Amount: entry.AmountPaid})
		s.Achievements.CheckProgress(ctx, userID, SpendEvent{Amount: entry.AmountPaid})
	}
	return &entry, nil
}

// ListEntries returns the tickets bought from one of the user's wallets,
// newest first.
func (s *LoopService) ListEntries(ctx context.Context, userID, walletAddress string) ([]models.LoopEntry, error) {
	walletAddress = strings.TrimSpace(walletAddress)
	var linked int64
	if err := s.DB.WithContext(ctx).Model(&models.ConnectedWallet{}).
		Where("wallet_address = ? AND user_id = ?", walletAddress, userID).
		Count(&linked).Error; err != nil {
		return nil, fmt.Errorf("load wallet: %w", err)
	}
	if linked == 0 {
		return nil, ErrWalletNotLinked
	}

	var entries []models.LoopEntry
	err := s.DB.WithContext(ctx).
		Where("wallet_address = ?", walletAddress).
		Order("created_at DESC").
		Find(&entries).Error
	return entries, err
}

// ListLoops returns every loop, newest first, optionally filtered by status.
func (s *LoopService) ListLoops(ctx context.Context, status models.LoopStatus) ([]models.Loop, error) {
	q := s.DB.WithContext(ctx).Order("created_at DESC")
	if status != "" {
		if !status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidLoop, status)
		}
		q = q.Where("status = ?", status)
	}
	var loops []models.Loop
	if err := q.Find(&loops).Error; err != nil {
		return nil, fmt.Errorf("list loops: %w", err)
	}
	return loops, nil
}

// CancelLoop closes an active loop without a winner. Tickets and the pool are
// left as recorded; refunds happen on-chain.
func (s *LoopService) CancelLoop(ctx context.Context, loopID string) (*models.Loop, error) {
	var loop models.Loop
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", loopID).Take(&loop).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLoopNotFound
			}
			return fmt.Errorf("load loop: %w", err)
		}
		res := tx.Model(&models.Loop{}).
			Where("id = ? AND status = ?", loop.ID, models.LoopActive).
			Update("status", models.LoopCancelled)
		if res.Error != nil {
			return fmt.Errorf("cancel loop: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrLoopClosed
		}
		loop.Status = models.LoopCancelled
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("🛑 [LOOPS] Cancelled %q (pool %s)", loop.Name, loop.PrizePool)
	return &loop, nil
}

// CompleteLoop closes an active loop with the given winner, credits the pool
// to the winner's earnings and fires the win check for the wallet's owner.
func (s *LoopService) CompleteLoop(ctx context.Context, loopID, winnerAddress string) (*models.Loop, error) {
	winnerAddress = strings.TrimSpace(winnerAddress)
	var loop models.Loop
	var winner models.LoopEntry

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", loopID).Take(&loop).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrLoopNotFound
			}
			return fmt.Errorf("load loop: %w", err)
		}
		if loop.Status != models.LoopActive {
			return ErrLoopClosed
		}

		if err := tx.Where("loop_id = ? AND wallet_address = ?", loop.ID, winnerAddress).
			Order("ticket_number ASC").
			First(&winner).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrWinnerNotEntrant
			}
			return fmt.Errorf("load winning entry: %w", err)
		}

		now := time.Now()
		res := tx.Model(&models.Loop{}).
			Where("id = ? AND status = ?", loop.ID, models.LoopActive).
			Updates(map[string]interface{}{
				"status":         models.LoopCompleted,
				"winner_address": winnerAddress,
				"completed_at":   now,
			})
		if res.Error != nil {
			return fmt.Errorf("complete loop: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrLoopClosed
		}

		if err := tx.Model(&models.User{}).
			Where("id = ?", winner.UserID).
			Update("total_earnings", gorm.Expr("total_earnings + ?", loop.PrizePool)).Error; err != nil {
			return fmt.Errorf("credit earnings: %w", err)
		}

		loop.Status = models.LoopCompleted
		loop.WinnerAddress = &winnerAddress
		loop.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Printf("🏁 [LOOPS] %q won by %s (pool %s)", loop.Name, winnerAddress, loop.PrizePool)

	if s.Achievements != nil {
		if ownerID, ok := s.walletOwner(ctx, winnerAddress, winner.UserID); ok {
			s.Achievements.CheckProgress(ctx, ownerID, LoopWinEvent{WalletAddress: winnerAddress, LoopID: loop.ID})
		}
	}
	return &loop, nil
}

// DrawWinner completes the loop with a uniformly random ticket.
func (s *LoopService) DrawWinner(ctx context.Context, loopID string) (*models.Loop, error) {
	var entries []models.LoopEntry
	if err := s.DB.WithContext(ctx).
		Where("loop_id = ?", loopID).
		Order("ticket_number ASC").
		Find(&entries).Error; err != nil {
		return nil, fmt.Errorf("load entries: %w", err)
	}
	if len(entries) == 0 {
		return nil, ErrNoEntries
	}

	n, err := rand.Int(rand.Reader, big.NewInt(int64(len(entries))))
	if err != nil {
		return nil, fmt.Errorf("draw: %w", err)
	}
	return s.CompleteLoop(ctx, loopID, entries[n.Int64()].WalletAddress)
}

// walletOwner resolves the user behind a wallet through connected_wallets,
// falling back to the user recorded on the ticket.
func (s *LoopService) walletOwner(ctx context.Context, address, fallback string) (string, bool) {
	var wallet models.ConnectedWallet
	err := s.DB.WithContext(ctx).Select("user_id").Where("wallet_address = ?", address).Take(&wallet).Error
	if err == nil {
		return wallet.UserID, true
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		log.Printf("⚠️ [LOOPS] wallet owner lookup for %s failed: %v", address, err)
	}
	return fallback, fallback != ""
}
