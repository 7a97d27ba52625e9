// Package credits meters access to paid capabilities with a per-user plan
// and daily credit balance.
package credits

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"creative-studio-backend/internal/models"
)

const (
	FreeCreditsPerDay  = 5
	MaxAdRewardsPerDay = 5
	// ProCredits is the balance shown for pro users, who are never metered.
	ProCredits  = 999
	ResetWindow = 24 * time.Hour
)

// Ledger applies spend/earn/admin operations to profiles stored in a
// ProfileRepository. Mutations are serialized per ledger so a
// read-modify-write never interleaves with another.
type Ledger struct {
	repo    ProfileRepository
	tracker UsageTracker
	now     func() time.Time
	mu      sync.Mutex
}

type Option func(*Ledger)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// WithTracker forwards every new usage record to t.
func WithTracker(t UsageTracker) Option {
	return func(l *Ledger) { l.tracker = t }
}

func NewLedger(repo ProfileRepository, opts ...Option) *Ledger {
	l := &Ledger{
		repo:    repo,
		tracker: noopTracker{},
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// NewProfile returns the profile a freshly signed-up user starts with.
func NewProfile(now time.Time) *models.UserState {
	return &models.UserState{
		Plan:            models.PlanFree,
		Credits:         FreeCreditsPerDay,
		LastCreditReset: now,
		LastAdReset:     now,
	}
}

// DailyAllotment is the balance a plan is reset to every day.
func DailyAllotment(plan models.Plan) int {
	if plan == models.PlanPro {
		return ProCredits
	}
	return FreeCreditsPerDay
}

// ApplyDailyReset resets the credit balance and the ad counter when more
// than ResetWindow has passed since their respective reset timestamps.
// The two resets are independent. It reports whether state changed.
func ApplyDailyReset(state *models.UserState, now time.Time) bool {
	changed := false
	if now.Sub(state.LastCreditReset) > ResetWindow {
		state.Credits = DailyAllotment(state.Plan)
		state.LastCreditReset = now
		changed = true
	}
	if now.Sub(state.LastAdReset) > ResetWindow {
		state.RewardedAdsWatchedToday = 0
		state.LastAdReset = now
		changed = true
	}
	return changed
}

// Create stores a new free profile for userID, replacing any existing one.
func (l *Ledger) Create(ctx context.Context, userID string) (*models.UserState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state := NewProfile(l.now())
	if err := l.repo.Put(ctx, userID, state); err != nil {
		return nil, fmt.Errorf("failed to create profile: %w", err)
	}
	return state.Clone(), nil
}

// Get returns userID's profile after applying any due daily reset.
func (l *Ledger) Get(ctx context.Context, userID string) (*models.UserState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	return state.Clone(), nil
}

// Usage returns userID's usage log, oldest first.
func (l *Ledger) Usage(ctx context.Context, userID string) ([]models.UsageRecord, error) {
	records, err := l.repo.UsageLog(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to read usage log: %w", err)
	}
	return records, nil
}

// GetOrCreate returns userID's profile, creating a free one when none exists.
func (l *Ledger) GetOrCreate(ctx context.Context, userID string) (*models.UserState, error) {
	state, err := l.Get(ctx, userID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, ErrProfileNotFound) {
		return nil, err
	}
	return l.Create(ctx, userID)
}

// Spend debits amount credits for feature. Pro users always succeed and log
// a zero-cost record. Free users succeed only when their balance covers
// amount; otherwise nothing changes and Spend reports false.
func (l *Ledger) Spend(ctx context.Context, userID string, amount int, feature models.Feature) (bool, *models.UserState, error) {
	if amount < 0 {
		return false, nil, fmt.Errorf("spend amount must not be negative: %d", amount)
	}

	var spent bool
	state, err := l.mutate(ctx, userID, func(s *models.UserState) (*models.UsageRecord, bool) {
		if s.Plan == models.PlanPro {
			spent = true
			return l.record(userID, feature, 0), true
		}
		if s.Credits < amount {
			return nil, false
		}
		s.Credits -= amount
		spent = true
		return l.record(userID, feature, amount), true
	})
	if err != nil {
		return false, nil, err
	}

	if !spent {
		logrus.WithFields(logrus.Fields{
			"user_id": userID,
			"feature": feature,
			"amount":  amount,
			"credits": state.Credits,
		}).Warn("Rejected spend with insufficient credits")
	}
	return spent, state, nil
}

// EarnFromAd grants one credit unless the daily ad reward cap is reached.
func (l *Ledger) EarnFromAd(ctx context.Context, userID string) (bool, *models.UserState, error) {
	var granted bool
	state, err := l.mutate(ctx, userID, func(s *models.UserState) (*models.UsageRecord, bool) {
		if s.RewardedAdsWatchedToday >= MaxAdRewardsPerDay {
			return nil, false
		}
		s.Credits++
		s.RewardedAdsWatchedToday++
		granted = true
		return l.record(userID, models.FeatureRewardedAdCredit, -1), true
	})
	if err != nil {
		return false, nil, err
	}
	return granted, state, nil
}

// SetCredits overrides the balance.
func (l *Ledger) SetCredits(ctx context.Context, userID string, amount int) (*models.UserState, error) {
	if amount < 0 {
		amount = 0
	}
	return l.mutate(ctx, userID, func(s *models.UserState) (*models.UsageRecord, bool) {
		s.Credits = amount
		return l.record(userID, models.FeatureAdminCreditSet, 0), true
	})
}

// SetPlan switches plans. Pro gets the unmetered balance; free gets the
// daily allotment with both daily windows restarting now.
func (l *Ledger) SetPlan(ctx context.Context, userID string, plan models.Plan) (*models.UserState, error) {
	if !plan.Valid() {
		return nil, fmt.Errorf("unknown plan %q", plan)
	}
	return l.mutate(ctx, userID, func(s *models.UserState) (*models.UsageRecord, bool) {
		now := l.now()
		s.Plan = plan
		if plan == models.PlanPro {
			s.Credits = ProCredits
		} else {
			s.Credits = FreeCreditsPerDay
			s.LastCreditReset = now
			s.LastAdReset = now
			s.RewardedAdsWatchedToday = 0
		}
		return l.record(userID, models.FeatureAdminPlanChange, 0), true
	})
}

// SetAdmin records the outcome of a server-verified privilege elevation.
func (l *Ledger) SetAdmin(ctx context.Context, userID string, isAdmin bool) (*models.UserState, error) {
	return l.mutate(ctx, userID, func(s *models.UserState) (*models.UsageRecord, bool) {
		if s.IsAdmin == isAdmin {
			return nil, false
		}
		s.IsAdmin = isAdmin
		return nil, true
	})
}

// mutate loads the profile, applies fn and persists the result when fn
// reports a change. A non-nil record returned by fn is appended to the
// usage log and tracked. The returned state carries no usage log.
func (l *Ledger) mutate(ctx context.Context, userID string, fn func(*models.UserState) (*models.UsageRecord, bool)) (*models.UserState, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	state, err := l.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	rec, changed := fn(state)
	if !changed {
		return state.Clone(), nil
	}
	var records []models.UsageRecord
	if rec != nil {
		records = append(records, *rec)
	}

	if err := l.repo.Put(ctx, userID, state, records...); err != nil {
		return nil, fmt.Errorf("failed to save profile: %w", err)
	}
	if rec != nil {
		l.tracker.Record(ctx, *rec)
	}
	return state.Clone(), nil
}

// load reads the profile and persists a due daily reset. Caller holds mu.
func (l *Ledger) load(ctx context.Context, userID string) (*models.UserState, error) {
	state, err := l.repo.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if ApplyDailyReset(state, l.now()) {
		if err := l.repo.Put(ctx, userID, state); err != nil {
			return nil, fmt.Errorf("failed to save daily reset: %w", err)
		}
	}
	return state, nil
}

func (l *Ledger) record(userID string, feature models.Feature, credits int) *models.UsageRecord {
	return &models.UsageRecord{
		ID:           uuid.NewString(),
		UserID:       userID,
		FeatureUsed:  feature,
		CreditsSpent: credits,
		Timestamp:    l.now(),
	}
}
