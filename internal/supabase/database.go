package supabase

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"creative-studio-backend/internal/credits"
	"creative-studio-backend/internal/models"
)

// DatabaseClient is the Postgres profile repository. The tables are created
// by the migrations in internal/database.
type DatabaseClient struct {
	db *sql.DB
}

func NewDatabaseClient(connectionString string) (*DatabaseClient, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DatabaseClient{db: db}, nil
}

func (d *DatabaseClient) Get(ctx context.Context, userID string) (*models.UserState, error) {
	var (
		state models.UserState
		plan  string
	)
	err := d.db.QueryRowContext(ctx, `
		SELECT plan, credits, last_credit_reset, rewarded_ads_watched_today, last_ad_reset, is_admin
		FROM user_profiles
		WHERE user_id = $1
	`, userID).Scan(&plan, &state.Credits, &state.LastCreditReset,
		&state.RewardedAdsWatchedToday, &state.LastAdReset, &state.IsAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, credits.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	state.Plan = models.Plan(plan)
	return &state, nil
}

func (d *DatabaseClient) UsageLog(ctx context.Context, userID string) ([]models.UsageRecord, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT id, feature_used, credits_spent, created_at
		FROM usage_records
		WHERE user_id = $1
		ORDER BY created_at ASC, seq ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage log: %w", err)
	}
	defer rows.Close()

	records := []models.UsageRecord{}
	for rows.Next() {
		var (
			rec     models.UsageRecord
			feature string
		)
		if err := rows.Scan(&rec.ID, &feature, &rec.CreditsSpent, &rec.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		rec.UserID = userID
		rec.FeatureUsed = models.Feature(feature)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read usage log: %w", err)
	}
	return records, nil
}

// Put upserts the profile and appends records in one transaction.
func (d *DatabaseClient) Put(ctx context.Context, userID string, state *models.UserState, records ...models.UsageRecord) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, plan, credits, last_credit_reset, rewarded_ads_watched_today, last_ad_reset, is_admin, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			credits = EXCLUDED.credits,
			last_credit_reset = EXCLUDED.last_credit_reset,
			rewarded_ads_watched_today = EXCLUDED.rewarded_ads_watched_today,
			last_ad_reset = EXCLUDED.last_ad_reset,
			is_admin = EXCLUDED.is_admin,
			updated_at = EXCLUDED.updated_at
	`, userID, string(state.Plan), state.Credits, state.LastCreditReset,
		state.RewardedAdsWatchedToday, state.LastAdReset, state.IsAdmin, time.Now())
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	for _, rec := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO usage_records (id, user_id, feature_used, credits_spent, created_at)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (id) DO NOTHING
		`, rec.ID, userID, string(rec.FeatureUsed), rec.CreditsSpent, rec.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to insert usage record: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit profile: %w", err)
	}

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"credits": state.Credits,
	}).Debug("Profile saved to postgres")
	return nil
}

func (d *DatabaseClient) Close() error {
	return d.db.Close()
}
