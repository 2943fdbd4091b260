// workers/profile_sync_worker.go
package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"hackpot-service/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// RemoteProfile matches the profile records returned by the sync service.
type RemoteProfile struct {
	ExternalID     string    `json:"external_id"`
	Email          string    `json:"email"`
	DisplayName    *string   `json:"display_name,omitempty"`
	ReferralCode   string    `json:"referral_code"`
	ReferredByCode *string   `json:"referred_by_code,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type GetProfileChangesResponse struct {
	Users []RemoteProfile `json:"users"`
}

// NewUserHook runs for each profile that did not exist locally before a sync.
type NewUserHook func(ctx context.Context, userID string)

// ProfileSyncWorker mirrors identity fields into users. It never writes
// experience, level or spend, which this service owns.
type ProfileSyncWorker struct {
	db           *gorm.DB
	interval     time.Duration
	baseURL      string
	endpointPath string
	serviceToken string
	httpClient   *http.Client
	onNewUser    NewUserHook

	// lastSync is the newest upstream updated_at applied so far. Local
	// writes bump users.updated_at too, so the cursor cannot come from there.
	lastSync time.Time
}

func NewProfileSyncWorker(db *gorm.DB, baseURL, serviceToken string, httpClient *http.Client, onNewUser NewUserHook) *ProfileSyncWorker {
	return &ProfileSyncWorker{
		db:           db,
		interval:     1 * time.Minute,
		baseURL:      baseURL,
		endpointPath: "/api/v1/public/profiles",
		serviceToken: serviceToken,
		httpClient:   httpClient,
		onNewUser:    onNewUser,
	}
}

func (w *ProfileSyncWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting Profile Sync Worker (sync-service → users)…")
	go w.run(ctx)
}

func (w *ProfileSyncWorker) run(ctx context.Context) {
	if err := w.syncBatch(ctx); err != nil {
		log.Printf("⚠️ Initial profile sync failed: %v", err)
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := w.syncBatch(ctx); err != nil {
				log.Printf("❌ Profile sync batch failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Profile Sync Worker stopped")
			return
		}
	}
}

func (w *ProfileSyncWorker) fetch(ctx context.Context, since time.Time) ([]RemoteProfile, error) {
	base, err := url.Parse(w.baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid sync service URL %q: %w", w.baseURL, err)
	}
	endpoint := base.JoinPath(w.endpointPath)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Service-Token", w.serviceToken)

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request to sync service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("sync service non-200 response: %d %s", resp.StatusCode, string(body))
	}

	var response GetProfileChangesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return nil, fmt.Errorf("failed to decode sync service response: %w", err)
	}
	return response.Users, nil
}

// syncBatch pulls profiles changed since the cursor and advances it to the
// newest updated_at that was written.
func (w *ProfileSyncWorker) syncBatch(ctx context.Context) error {
	profiles, err := w.fetch(ctx, w.lastSync)
	if err != nil {
		return err
	}
	if len(profiles) == 0 {
		return nil
	}

	latestUpdate := w.lastSync
	var upserted, failed int
	for _, p := range profiles {
		created, err := w.upsert(ctx, p)
		if err != nil {
			failed++
			log.Printf("[SYNC] ⚠️ Failed to upsert user %q: %v", p.ExternalID, err)
			continue
		}
		upserted++
		if p.UpdatedAt.After(latestUpdate) {
			latestUpdate = p.UpdatedAt
		}
		if created && w.onNewUser != nil {
			w.onNewUser(ctx, p.ExternalID)
		}
	}
	w.lastSync = latestUpdate

	log.Printf("[SYNC] ✅ Synced %d profile(s) (%d upserted, %d errors), cursor %s",
		len(profiles), upserted, failed, latestUpdate.UTC().Format(time.RFC3339))
	return nil
}

// upsert writes one profile and reports whether it was new.
func (w *ProfileSyncWorker) upsert(ctx context.Context, p RemoteProfile) (bool, error) {
	if p.ExternalID == "" || p.ReferralCode == "" {
		return false, fmt.Errorf("incomplete profile record")
	}

	var existing int64
	if err := w.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", p.ExternalID).Count(&existing).Error; err != nil {
		return false, err
	}

	user := models.User{
		ID:             p.ExternalID,
		Email:          p.Email,
		DisplayName:    p.DisplayName,
		ReferralCode:   strings.ToUpper(strings.TrimSpace(p.ReferralCode)),
		ReferredByCode: p.ReferredByCode,
		Level:          1,
		TotalSpent:     decimal.Zero,
		TotalEarnings:  decimal.Zero,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
	err := w.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"email", "display_name", "referral_code", "created_at", "updated_at",
		}),
	}).Create(&user).Error
	if err != nil {
		return false, err
	}
	return existing == 0, nil
}
