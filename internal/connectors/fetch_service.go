package connectors

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"strainscan/internal/storage"
)

type FetchService struct {
	db     *storage.DB
	source ScanSource
	store  *ScanStoreService
	logger *zap.Logger
}

type FetchResult struct {
	Fetched int
	Stored  int
}

func NewFetchService(db *storage.DB, rawScanDir string, source ScanSource, logger *zap.Logger) *FetchService {
	return &FetchService{
		db:     db,
		source: source,
		store:  NewScanStoreService(db, rawScanDir),
		logger: logger,
	}
}

func (s *FetchService) FetchAndStore(ctx context.Context, max int) (FetchResult, error) {
	scans, err := s.source.FetchScans(ctx, max)
	if err != nil {
		return FetchResult{}, fmt.Errorf("fetch from %s: %w", s.source.Name(), err)
	}

	stored := 0
	for _, scan := range scans {
		if _, err := s.store.Store(scan); err != nil {
			return FetchResult{Fetched: len(scans), Stored: stored}, err
		}
		stored++
	}

	if len(scans) > 0 {
		if err := s.source.Commit(ctx, scans); err != nil {
			return FetchResult{Fetched: len(scans), Stored: stored}, fmt.Errorf("commit %s: %w", s.source.Name(), err)
		}
	}

	s.logger.Debug("scans fetched",
		zap.String("source", s.source.Name()),
		zap.Int("fetched", len(scans)),
		zap.Int("stored", stored),
	)
	return FetchResult{Fetched: len(scans), Stored: stored}, nil
}
