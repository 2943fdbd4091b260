package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"

	"hackpot-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WalletSyncClient mirrors connected wallets from the sync service into connected_wallets.
type WalletSyncClient struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
	DB         *gorm.DB
}

func NewWalletSyncClient(db *gorm.DB, baseURL, token string, httpClient *http.Client) *WalletSyncClient {
	return &WalletSyncClient{
		BaseURL:    baseURL,
		Token:      token,
		DB:         db,
		HTTPClient: httpClient,
	}
}

type remoteWallet struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	WalletAddress string    `json:"wallet_address"`
	WalletType    string    `json:"wallet_type"`
	IsPrimary     bool      `json:"is_primary"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func (c *WalletSyncClient) GetChangedWallets(ctx context.Context, since time.Time) ([]models.ConnectedWallet, error) {
	u, err := url.Parse(c.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse base URL: %w", err)
	}
	u = u.JoinPath("/api/v1/public/wallets")

	q := u.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", c.Token)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call sync service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sync service returned status %d: %s", resp.StatusCode, string(body))
	}

	var response struct {
		Wallets []remoteWallet `json:"wallets"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode sync service response: %w", err)
	}

	wallets := make([]models.ConnectedWallet, 0, len(response.Wallets))
	for _, w := range response.Wallets {
		if w.ID == "" || w.WalletAddress == "" || w.UserID == "" {
			log.Printf("⚠️ Skipping incomplete wallet record %+v", w)
			continue
		}
		wallets = append(wallets, models.ConnectedWallet{
			ID:            w.ID,
			UserID:        w.UserID,
			WalletAddress: w.WalletAddress,
			WalletType:    models.WalletType(w.WalletType),
			IsPrimary:     w.IsPrimary,
			CreatedAt:     w.CreatedAt,
			UpdatedAt:     w.UpdatedAt,
		})
	}
	return wallets, nil
}

// UpsertWallets writes a batch keyed by wallet address.
func UpsertWallets(db *gorm.DB, wallets []models.ConnectedWallet) error {
	if len(wallets) == 0 {
		return nil
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "wallet_address"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"user_id",
			"wallet_type",
			"is_primary",
			"updated_at",
		}),
	}).Create(&wallets).Error
}

// PollWallets runs until ctx is cancelled.
func PollWallets(ctx context.Context, client *WalletSyncClient, pollInterval time.Duration) {
	log.Println("Starting wallet polling (DB-backed)...")
	lastSyncTime := time.Now().UTC().Add(-24 * time.Hour)

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Wallet polling stopped.")
			return
		case <-ticker.C:
			pollStarted := time.Now().UTC()

			wallets, err := client.GetChangedWallets(ctx, lastSyncTime)
			if err != nil {
				log.Printf("❌ Error polling wallets: %v", err)
				continue
			}
			if len(wallets) == 0 {
				lastSyncTime = pollStarted
				continue
			}

			if err := UpsertWallets(client.DB.WithContext(ctx), wallets); err != nil {
				// keep the window; retried next tick
				log.Printf("❌ Failed to upsert %d wallet(s) into connected_wallets: %v", len(wallets), err)
				continue
			}

			lastSyncTime = pollStarted
			log.Printf("✅ Upserted %d wallet(s) into connected_wallets.", len(wallets))
		}
	}
}
