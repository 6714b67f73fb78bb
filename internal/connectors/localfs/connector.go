package localfs

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"

	"strainscan/internal"
	"strainscan/internal/config"
	"strainscan/internal/connectors"
	"strainscan/internal/util"
)

const (
	SourceName   = "localfs"
	processedDir = "processed"
	rejectedDir  = "rejected"
)

// Connector reads scan exports dropped into an inbox directory. Files are
// consumed whole and moved to processed/ once their scans are stored. Files
// that do not parse are moved to rejected/ so they cannot stall the inbox.
type Connector struct {
	inbox  string
	logger *zap.Logger
}

func NewConnector(cfg config.Config, logger *zap.Logger) (*Connector, error) {
	if err := cfg.Require("SCAN_INBOX_DIR", cfg.ScanInboxDir); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Connector{inbox: cfg.ScanInboxDir, logger: logger}, nil
}

func (c *Connector) Name() string { return SourceName }

func (c *Connector) FetchScans(ctx context.Context, max int) ([]internal.FetchedScan, error) {
	entries, err := os.ReadDir(c.inbox)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext == ".json" || ext == ".ndjson" {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	var out []internal.FetchedScan
	for _, name := range files {
		if len(out) >= max {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		path := filepath.Join(c.inbox, name)
		blob, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		records, err := util.SplitRecords(blob)
		if err != nil {
			if moveErr := c.reject(path); moveErr != nil {
				return nil, fmt.Errorf("%s: %w", name, moveErr)
			}
			c.logger.Warn("inbox file rejected",
				zap.String("file", name),
				zap.String("moved_to", rejectedDir),
				zap.Error(err),
			)
			continue
		}
		for _, raw := range records {
			id, createdAt := connectors.Identify(raw)
			out = append(out, internal.FetchedScan{
				Source:     SourceName,
				ExternalID: id,
				CreatedAt:  createdAt,
				Raw:        raw,
				Origin:     path,
			})
		}
	}
	return out, nil
}

func (c *Connector) reject(path string) error {
	dir := filepath.Join(c.inbox, rejectedDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.Rename(path, filepath.Join(dir, filepath.Base(path)))
}

func (c *Connector) Commit(_ context.Context, scans []internal.FetchedScan) error {
	done := filepath.Join(c.inbox, processedDir)
	if err := os.MkdirAll(done, 0o755); err != nil {
		return err
	}

	moved := map[string]struct{}{}
	for _, s := range scans {
		if _, ok := moved[s.Origin]; ok || s.Origin == "" {
			continue
		}
		moved[s.Origin] = struct{}{}
		if err := os.Rename(s.Origin, filepath.Join(done, filepath.Base(s.Origin))); err != nil {
			return err
		}
	}
	return nil
}
