package credits

import (
	"context"
	"errors"

	"creative-studio-backend/internal/models"
)

var ErrProfileNotFound = errors.New("profile not found")

// ProfileRepository stores one UserState per user id and that user's
// append-only usage log. Profile reads never load the log.
type ProfileRepository interface {
	// Get returns ErrProfileNotFound when userID has no profile. The
	// returned state has no UsageLog.
	Get(ctx context.Context, userID string) (*models.UserState, error)
	// Put upserts the profile fields and appends records to the usage log.
	// state.UsageLog is ignored.
	Put(ctx context.Context, userID string, state *models.UserState, records ...models.UsageRecord) error
	// UsageLog returns userID's records, oldest first.
	UsageLog(ctx context.Context, userID string) ([]models.UsageRecord, error)
}

// UsageTracker receives every usage record. Record must not block the
// caller on slow storage.
type UsageTracker interface {
	Record(ctx context.Context, record models.UsageRecord)
}

type noopTracker struct{}

func (noopTracker) Record(context.Context, models.UsageRecord) {}
