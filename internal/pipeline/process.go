package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"strainscan/internal"
	"strainscan/internal/catalog"
	"strainscan/internal/config"
	"strainscan/internal/resolver"
	"strainscan/internal/storage"
)

type ProcessingService struct {
	db       *storage.DB
	cfg      config.Config
	resolver *resolver.Resolver
	logger   *zap.Logger
}

func NewProcessingService(db *storage.DB, cfg config.Config, r *resolver.Resolver, logger *zap.Logger) *ProcessingService {
	if r == nil {
		r = resolver.Default()
	}
	return &ProcessingService{db: db, cfg: cfg, resolver: r, logger: logger}
}

type ProcessResult struct {
	ScanID   int
	Status   internal.ScanStatus
	ScanKind string
	Enriched int
}

type ProcessSummary struct {
	TraceID    string
	Processed  int
	Normalized int
	Awaiting   int
	Failed     int
}

func (s *ProcessingService) ProcessBySourceExternalID(ctx context.Context, source, externalID string) (ProcessResult, error) {
	row, err := s.db.MustScanBySourceExternalID(source, externalID)
	if err != nil {
		return ProcessResult{}, err
	}
	index, err := catalog.LoadIndex(s.db, s.cfg.CatalogFuzzyThreshold)
	if err != nil {
		return ProcessResult{}, err
	}
	return s.ProcessScan(ctx, row, index)
}

// ProcessPending normalizes up to limit fetched scans. A scan whose raw
// record is missing or cannot be decoded is marked failed and does not stop
// the batch.
func (s *ProcessingService) ProcessPending(ctx context.Context, limit int) (ProcessSummary, error) {
	start := time.Now()
	summary := ProcessSummary{TraceID: uuid.NewString()}

	pending, err := s.db.ListScansByStatus(internal.ScanFetched, limit)
	if err != nil {
		return summary, err
	}
	if len(pending) == 0 {
		return summary, nil
	}

	index, err := catalog.LoadIndex(s.db, s.cfg.CatalogFuzzyThreshold)
	if err != nil {
		return summary, err
	}

	enriched := 0
	for _, row := range pending {
		if err := ctx.Err(); err != nil {
			return summary, err
		}
		res, err := s.ProcessScan(ctx, row, index)
		if err != nil {
			return summary, err
		}
		summary.Processed++
		enriched += res.Enriched
		switch res.Status {
		case internal.ScanNormalized:
			summary.Normalized++
		case internal.ScanAwaitingResult:
			summary.Awaiting++
		case internal.ScanFailed:
			summary.Failed++
		}
	}

	counts := map[string]int{
		"scans":      summary.Processed,
		"normalized": summary.Normalized,
		"awaiting":   summary.Awaiting,
		"failed":     summary.Failed,
		"enriched":   enriched,
	}
	if err := s.db.InsertRun(summary.TraceID, 0, map[string]float64{"totalMs": float64(time.Since(start).Milliseconds())}, counts); err != nil {
		s.logger.Warn("record run failed", zap.String("trace_id", summary.TraceID), zap.Error(err))
	}

	s.logger.Info("scans processed",
		zap.String("trace_id", summary.TraceID),
		zap.Int("processed", summary.Processed),
		zap.Int("normalized", summary.Normalized),
		zap.Int("awaiting", summary.Awaiting),
		zap.Int("failed", summary.Failed),
		zap.Int("catalog_strains", index.Len()),
	)
	return summary, nil
}

func (s *ProcessingService) ProcessScan(_ context.Context, row internal.ScanRow, index *catalog.Index) (ProcessResult, error) {
	out := ProcessResult{ScanID: row.ID}

	raw, err := os.ReadFile(row.RawRef)
	if err != nil {
		s.logger.Warn("unreadable raw scan",
			zap.Int("scan_id", row.ID),
			zap.String("external_id", row.ExternalID),
			zap.String("raw_ref", row.RawRef),
			zap.Error(err),
		)
		out.Status = internal.ScanFailed
		return out, s.db.UpdateScanStatus(row.ID, out.Status)
	}

	var scan internal.RawScanRecord
	if err := json.Unmarshal(raw, &scan); err != nil {
		s.logger.Warn("undecodable scan",
			zap.Int("scan_id", row.ID),
			zap.String("external_id", row.ExternalID),
			zap.Error(err),
		)
		out.Status = internal.ScanFailed
		return out, s.db.UpdateScanStatus(row.ID, out.Status)
	}

	rm := s.resolver.Normalize(&scan)
	if rm == nil {
		out.Status = internal.ScanAwaitingResult
		return out, s.db.UpdateScanStatus(row.ID, out.Status)
	}

	out.Enriched = EnrichMatches(rm, index)
	out.ScanKind = resolver.ScanKind(rm)
	if err := s.db.SaveNormalized(row.ID, rm, out.ScanKind); err != nil {
		return out, err
	}

	out.Status = internal.ScanNormalized
	return out, s.db.UpdateScanStatus(row.ID, out.Status)
}
