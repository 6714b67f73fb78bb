package connectors

import (
	"os"
	"path/filepath"

	"strainscan/internal"
	"strainscan/internal/storage"
)

type ScanStoreService struct {
	db         *storage.DB
	rawScanDir string
}

func NewScanStoreService(db *storage.DB, rawScanDir string) *ScanStoreService {
	return &ScanStoreService{db: db, rawScanDir: rawScanDir}
}

// Store writes the raw record once under its content hash and upserts the
// scan row.
func (s *ScanStoreService) Store(scan internal.FetchedScan) (internal.ScanRow, error) {
	hash := HashRaw(scan.Raw)

	if err := os.MkdirAll(s.rawScanDir, 0o755); err != nil {
		return internal.ScanRow{}, err
	}

	rawPath := filepath.Join(s.rawScanDir, hash+".json")
	if _, err := os.Stat(rawPath); os.IsNotExist(err) {
		if err := os.WriteFile(rawPath, scan.Raw, 0o644); err != nil {
			return internal.ScanRow{}, err
		}
	}

	return s.db.UpsertScan(scan.Source, scan.ExternalID, scan.CreatedAt, hash, rawPath, internal.ScanFetched)
}
