package catalog

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"strainscan/internal"
	"strainscan/internal/config"
	"strainscan/internal/storage"
)

const LastSyncKey = "catalog.last_sync"

type strainSource interface {
	GetStrainsAll(ctx context.Context) ([]internal.StrainRecord, error)
}

type SyncService struct {
	db     *storage.DB
	client strainSource
	logger *zap.Logger
}

func NewSyncService(db *storage.DB, cfg config.Config, logger *zap.Logger) *SyncService {
	return &SyncService{db: db, client: NewClient(cfg), logger: logger}
}

// Sync mirrors the remote strains table into local storage.
func (s *SyncService) Sync(ctx context.Context) (int, error) {
	started := time.Now()
	strains, err := s.client.GetStrainsAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("fetch strains: %w", err)
	}
	if err := s.db.UpsertStrains(strains); err != nil {
		return 0, fmt.Errorf("store strains: %w", err)
	}
	if err := s.db.SetMetadata(LastSyncKey, time.Now().UTC().Format(time.RFC3339)); err != nil {
		return 0, err
	}
	s.logger.Info("catalog synced",
		zap.Int("strains", len(strains)),
		zap.Duration("elapsed", time.Since(started)),
	)
	return len(strains), nil
}

// LoadIndex builds a lookup index from the locally stored catalog.
func LoadIndex(db *storage.DB, threshold float64) (*Index, error) {
	strains, err := db.ListStrains()
	if err != nil {
		return nil, err
	}
	return BuildIndex(strains, threshold), nil
}
