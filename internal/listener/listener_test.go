package listener

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"strainscan/internal"
	"strainscan/internal/config"
	"strainscan/internal/resolver"
	"strainscan/internal/storage"
)

func newTestService(t *testing.T) (*Service, *storage.DB, config.Config) {
	t.Helper()
	tmp := t.TempDir()
	db, err := storage.Open(filepath.Join(tmp, "app.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	cfg := config.Config{
		ScanSource:           "localfs",
		ScanInboxDir:         filepath.Join(tmp, "inbox"),
		RawScanDir:           filepath.Join(tmp, "raw"),
		OutputDir:            filepath.Join(tmp, "out"),
		ListenerIntervalSec:  1,
		ListenerFetchMax:     10,
		ListenerProcessBatch: 10,
		ListenerAutoExport:   true,
	}
	require.NoError(t, os.MkdirAll(cfg.ScanInboxDir, 0o755))

	svc := NewService(db, cfg, resolver.Default(), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, 5, 1, 12, 30, 0, 0, time.UTC) }
	return svc, db, cfg
}

func TestRunCycleFetchesProcessesAndExports(t *testing.T) {
	svc, db, cfg := newTestService(t)
	scan := `{"id":"s1","created_at":"2026-05-01T10:00:00Z","result":{"match":{"name":"Wedding Cake","confidence":0.8}},"matched_strain_name":"Wedding Cake","match_quality":"visual","match_confidence":0.8}`
	require.NoError(t, os.WriteFile(filepath.Join(cfg.ScanInboxDir, "s1.json"), []byte(scan), 0o644))

	res, err := svc.runCycle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Stored)
	assert.Equal(t, 1, res.Summary.Normalized)
	assert.Equal(t, 1, res.Exported)
	assert.Equal(t, filepath.Join(cfg.OutputDir, "listener", "scans_20260501T123000Z.xlsx"), res.Export)

	_, err = os.Stat(res.Export)
	require.NoError(t, err)

	row, err := db.MustScanBySourceExternalID("localfs", "s1")
	require.NoError(t, err)
	assert.Equal(t, internal.ScanExported, row.Status)

	again, err := svc.runCycle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Fetched)
	assert.Zero(t, again.Exported)
}

func TestRunStopsOnCancel(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, svc.Run(ctx))
}

func TestRunWakesOnInboxFile(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"))

	svc, db, cfg := newTestService(t)
	svc.cfg.ListenerIntervalSec = 3600

	writeScan := func(id string) {
		scan := `{"id":"` + id + `","created_at":"2026-05-01T10:00:00Z","result":{"match":{"name":"Gelato","confidence":0.9}},"matched_strain_name":"Gelato","match_quality":"visual","match_confidence":0.9}`
		require.NoError(t, os.WriteFile(filepath.Join(cfg.ScanInboxDir, id+".json"), []byte(scan), 0o644))
	}
	exported := func(id string) func() bool {
		return func() bool {
			row, err := db.GetScanBySourceExternalID("localfs", id)
			return err == nil && row != nil && row.Status == internal.ScanExported
		}
	}

	writeScan("first")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	require.Eventually(t, exported("first"), 5*time.Second, 20*time.Millisecond)

	writeScan("second")
	require.Eventually(t, exported("second"), 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestNewScanSource(t *testing.T) {
	_, err := NewScanSource(config.Config{ScanSource: "gmail"}, nil, zap.NewNop())
	require.Error(t, err)

	src, err := NewScanSource(config.Config{ScanSource: "LocalFS", ScanInboxDir: t.TempDir()}, nil, zap.NewNop())
	require.NoError(t, err)
	assert.Equal(t, "localfs", src.Name())
}
