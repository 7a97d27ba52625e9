package memory

import (
	"context"
	"sync"

	"github.com/sirupsen/logrus"

	"creative-studio-backend/internal/credits"
	"creative-studio-backend/internal/models"
)

// Store keeps profiles and usage logs in process memory, keyed by user id.
type Store struct {
	mu       sync.RWMutex
	profiles map[string]*models.UserState
	usage    map[string][]models.UsageRecord
}

// NewStore creates a new in-memory profile store.
func NewStore() *Store {
	return &Store{
		profiles: make(map[string]*models.UserState),
		usage:    make(map[string][]models.UsageRecord),
	}
}

func (s *Store) Get(ctx context.Context, userID string) (*models.UserState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.profiles[userID]
	if !ok {
		return nil, credits.ErrProfileNotFound
	}
	return state.Clone(), nil
}

func (s *Store) Put(ctx context.Context, userID string, state *models.UserState, records ...models.UsageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := state.Clone()
	stored.UsageLog = nil
	s.profiles[userID] = stored
	s.usage[userID] = append(s.usage[userID], records...)

	logrus.WithFields(logrus.Fields{
		"user_id": userID,
		"plan":    state.Plan,
		"credits": state.Credits,
		"records": len(records),
	}).Debug("Profile saved")
	return nil
}

func (s *Store) UsageLog(ctx context.Context, userID string) ([]models.UsageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return append([]models.UsageRecord{}, s.usage[userID]...), nil
}
