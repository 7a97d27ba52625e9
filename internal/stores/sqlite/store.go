package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"creative-studio-backend/internal/credits"
	"creative-studio-backend/internal/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS user_profiles (
	user_id TEXT PRIMARY KEY,
	plan TEXT NOT NULL,
	credits INTEGER NOT NULL,
	last_credit_reset INTEGER NOT NULL,
	rewarded_ads_watched_today INTEGER NOT NULL DEFAULT 0,
	last_ad_reset INTEGER NOT NULL,
	is_admin INTEGER NOT NULL DEFAULT 0,
	updated_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS usage_records (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	feature_used TEXT NOT NULL,
	credits_spent INTEGER NOT NULL,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_usage_records_user ON usage_records(user_id, created_at);
`

// Store persists profiles in a local sqlite database file, one row per user.
type Store struct {
	db *sql.DB
}

// NewStore opens (creating when needed) the database at dataSourceName.
func NewStore(dataSourceName string) (*Store, error) {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Get(ctx context.Context, userID string) (*models.UserState, error) {
	var (
		state                                 models.UserState
		plan                                  string
		lastCreditReset, lastAdReset, isAdmin int64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT plan, credits, last_credit_reset, rewarded_ads_watched_today, last_ad_reset, is_admin
		FROM user_profiles
		WHERE user_id = ?
	`, userID).Scan(&plan, &state.Credits, &lastCreditReset, &state.RewardedAdsWatchedToday, &lastAdReset, &isAdmin)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, credits.ErrProfileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}
	state.Plan = models.Plan(plan)
	state.LastCreditReset = time.UnixMilli(lastCreditReset)
	state.LastAdReset = time.UnixMilli(lastAdReset)
	state.IsAdmin = isAdmin != 0
	return &state, nil
}

func (s *Store) UsageLog(ctx context.Context, userID string) ([]models.UsageRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, feature_used, credits_spent, created_at
		FROM usage_records
		WHERE user_id = ?
		ORDER BY created_at ASC, rowid ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get usage log: %w", err)
	}
	defer rows.Close()

	records := []models.UsageRecord{}
	for rows.Next() {
		var (
			rec       models.UsageRecord
			feature   string
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &feature, &rec.CreditsSpent, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage record: %w", err)
		}
		rec.UserID = userID
		rec.FeatureUsed = models.Feature(feature)
		rec.Timestamp = time.UnixMilli(createdAt)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read usage log: %w", err)
	}
	return records, nil
}

// Put upserts the profile row and inserts records in the same
// transaction. Stored usage records are never updated or deleted.
func (s *Store) Put(ctx context.Context, userID string, state *models.UserState, records ...models.UsageRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	isAdmin := 0
	if state.IsAdmin {
		isAdmin = 1
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO user_profiles (user_id, plan, credits, last_credit_reset, rewarded_ads_watched_today, last_ad_reset, is_admin, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			plan = excluded.plan,
			credits = excluded.credits,
			last_credit_reset = excluded.last_credit_reset,
			rewarded_ads_watched_today = excluded.rewarded_ads_watched_today,
			last_ad_reset = excluded.last_ad_reset,
			is_admin = excluded.is_admin,
			updated_at = excluded.updated_at
	`, userID, string(state.Plan), state.Credits, state.LastCreditReset.UnixMilli(),
		state.RewardedAdsWatchedToday, state.LastAdReset.UnixMilli(), isAdmin, time.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to upsert profile: %w", err)
	}

	for _, rec := range records {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO usage_records (id, user_id, feature_used, credits_spent, created_at)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(id) DO NOTHING
		`, rec.ID, userID, string(rec.FeatureUsed), rec.CreditsSpent, rec.Timestamp.UnixMilli())
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
	}).Debug("Profile saved to sqlite")
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
