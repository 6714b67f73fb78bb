package listener

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"strainscan/internal"
	"strainscan/internal/config"
	"strainscan/internal/connectors"
	"strainscan/internal/connectors/localfs"
	"strainscan/internal/connectors/supabase"
	"strainscan/internal/pipeline"
	"strainscan/internal/resolver"
	"strainscan/internal/storage"
)

type Service struct {
	db       *storage.DB
	cfg      config.Config
	resolver *resolver.Resolver
	logger   *zap.Logger
	now      func() time.Time
}

func NewService(db *storage.DB, cfg config.Config, r *resolver.Resolver, logger *zap.Logger) *Service {
	return &Service{db: db, cfg: cfg, resolver: r, logger: logger, now: time.Now}
}

// Run polls the scan source until ctx is cancelled. A failed cycle is
// logged and retried on the next tick. With the localfs source a new inbox
// file also starts a cycle without waiting for the tick.
func (s *Service) Run(ctx context.Context) error {
	interval := time.Duration(s.cfg.ListenerIntervalSec) * time.Second
	if interval <= 0 {
		interval = 30 * time.Second
	}

	var wake <-chan struct{}
	if strings.EqualFold(strings.TrimSpace(s.cfg.ScanSource), localfs.SourceName) {
		iw, err := newInboxWatcher(s.cfg.ScanInboxDir, s.logger)
		if err != nil {
			s.logger.Warn("inbox watch disabled", zap.String("dir", s.cfg.ScanInboxDir), zap.Error(err))
		} else {
			watchCtx, stop := context.WithCancel(ctx)
			go iw.run(watchCtx)
			defer func() {
				stop()
				<-iw.done
			}()
			wake = iw.wake
		}
	}

	for {
		if err := s.RunCycle(ctx); err != nil && ctx.Err() == nil {
			s.logger.Error("listener cycle failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		case <-wake:
		}
	}
}

type CycleResult struct {
	Fetched  int
	Stored   int
	Summary  pipeline.ProcessSummary
	Exported int
	Export   string
}

func (s *Service) RunCycle(ctx context.Context) error {
	_, err := s.runCycle(ctx)
	return err
}

func (s *Service) runCycle(ctx context.Context) (CycleResult, error) {
	var out CycleResult

	source, err := NewScanSource(s.cfg, s.db, s.logger)
	if err != nil {
		return out, err
	}

	fetchService := connectors.NewFetchService(s.db, s.cfg.RawScanDir, source, s.logger)
	fetchResult, err := fetchService.FetchAndStore(ctx, s.cfg.ListenerFetchMax)
	if err != nil {
		return out, err
	}
	out.Fetched, out.Stored = fetchResult.Fetched, fetchResult.Stored

	processor := pipeline.NewProcessingService(s.db, s.cfg, s.resolver, s.logger)
	out.Summary, err = processor.ProcessPending(ctx, s.cfg.ListenerProcessBatch)
	if err != nil {
		return out, err
	}

	if s.cfg.ListenerAutoExport {
		out.Exported, out.Export, err = s.exportNormalized()
		if err != nil {
			return out, err
		}
	}

	s.logger.Info("listener cycle done",
		zap.String("source", source.Name()),
		zap.Int("fetched", out.Fetched),
		zap.Int("stored", out.Stored),
		zap.Int("processed", out.Summary.Processed),
		zap.Int("exported", out.Exported),
	)
	return out, nil
}

// exportNormalized writes every scan normalized since the last export into
// one workbook and marks those scans exported.
func (s *Service) exportNormalized() (int, string, error) {
	rows, err := s.db.GetExportRows(internal.ScanNormalized)
	if err != nil {
		return 0, "", err
	}
	if len(rows) == 0 {
		return 0, "", nil
	}

	filename := fmt.Sprintf("scans_%s.xlsx", sanitizeFileStamp(s.now().UTC().Format(time.RFC3339)))
	outputPath := filepath.Join(s.cfg.OutputDir, "listener", filename)
	if err := pipeline.ExportRowsToXLSX(rows, outputPath); err != nil {
		return 0, "", err
	}
	for _, row := range rows {
		if err := s.db.UpdateScanStatus(row.ScanID, internal.ScanExported); err != nil {
			return 0, "", err
		}
	}
	return len(rows), outputPath, nil
}

// NewScanSource builds the connector selected by SCAN_SOURCE.
func NewScanSource(cfg config.Config, db *storage.DB, logger *zap.Logger) (connectors.ScanSource, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.ScanSource)) {
	case supabase.SourceName:
		return supabase.NewConnector(cfg, db)
	case localfs.SourceName:
		return localfs.NewConnector(cfg, logger)
	default:
		return nil, fmt.Errorf("unsupported scan source: %s", cfg.ScanSource)
	}
}

func sanitizeFileStamp(input string) string {
	repl := strings.NewReplacer(":", "", "-", "", " ", "_", "/", "_", "\\", "_")
	out := repl.Replace(input)
	if len(out) > 120 {
		out = out[:120]
	}
	return out
}
