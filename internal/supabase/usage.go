package supabase

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/supabase-community/supabase-go"

	"creative-studio-backend/internal/models"
)

const usageEventsTable = "usage_events"

// UsageTracker mirrors usage records into a PostgREST table for analytics.
// Inserts run in the background and failures are only logged.
type UsageTracker struct {
	client *supabase.Client
	table  string
}

func NewUsageTracker(client *supabase.Client) *UsageTracker {
	return &UsageTracker{client: client, table: usageEventsTable}
}

type usageEvent struct {
	ID           string `json:"id"`
	UserID       string `json:"user_id"`
	FeatureUsed  string `json:"feature_used"`
	CreditsSpent int    `json:"credits_spent"`
	CreatedAt    string `json:"created_at"`
}

func (t *UsageTracker) Record(ctx context.Context, record models.UsageRecord) {
	event := usageEvent{
		ID:           record.ID,
		UserID:       record.UserID,
		FeatureUsed:  string(record.FeatureUsed),
		CreditsSpent: record.CreditsSpent,
		CreatedAt:    record.Timestamp.UTC().Format(time.RFC3339Nano),
	}

	go func() {
		_, _, err := t.client.From(t.table).Insert(event, false, "", "minimal", "").Execute()
		if err != nil {
			logrus.WithFields(logrus.Fields{
				"user_id": record.UserID,
				"feature": record.FeatureUsed,
			}).WithError(err).Warn("Failed to track usage event")
		}
	}()
}
