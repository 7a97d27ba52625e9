// Package stores selects the profile repository backing the credit ledger.
package stores

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"creative-studio-backend/internal/config"
	"creative-studio-backend/internal/credits"
	"creative-studio-backend/internal/stores/memory"
	"creative-studio-backend/internal/stores/sqlite"
	"creative-studio-backend/internal/supabase"
)

// Closer is implemented by repositories holding a connection.
type Closer interface {
	Close() error
}

// NewProfileRepository builds the repository named by cfg.StorageType.
func NewProfileRepository(cfg *config.Config) (credits.ProfileRepository, error) {
	fields := logrus.Fields{"storageType": cfg.StorageType}

	var repo credits.ProfileRepository
	switch cfg.StorageType {
	case config.StoragePostgres:
		db, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		repo = db
	case config.StorageSQLite:
		fields["path"] = cfg.SQLitePath
		store, err := sqlite.NewStore(cfg.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite store: %w", err)
		}
		repo = store
	default:
		fields["storageType"] = config.StorageMemory
		repo = memory.NewStore()
	}

	logrus.WithFields(fields).Info("Use profile storage")
	return repo, nil
}
