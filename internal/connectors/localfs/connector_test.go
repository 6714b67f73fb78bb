package localfs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"strainscan/internal/config"
)

func TestFetchAndCommit(t *testing.T) {
	inbox := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "a.json"), []byte(`[{"id":"a1"},{"id":"a2"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "b.ndjson"), []byte("{\"id\":\"b1\",\"created_at\":\"2026-03-01\"}\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "notes.txt"), []byte("ignored"), 0o644))

	c, err := NewConnector(config.Config{ScanInboxDir: inbox}, nil)
	require.NoError(t, err)
	assert.Equal(t, SourceName, c.Name())

	scans, err := c.FetchScans(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, scans, 3)
	assert.Equal(t, "a1", scans[0].ExternalID)
	assert.Equal(t, "b1", scans[2].ExternalID)
	assert.Equal(t, "2026-03-01", scans[2].CreatedAt)

	require.NoError(t, c.Commit(context.Background(), scans))
	_, err = os.Stat(filepath.Join(inbox, "processed", "a.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(inbox, "b.ndjson"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(inbox, "notes.txt"))
	require.NoError(t, err)

	again, err := c.FetchScans(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, again)
}

func TestFetchStopsAtMaxOnFileBoundary(t *testing.T) {
	inbox := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "1.json"), []byte(`[{"id":"x"},{"id":"y"}]`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "2.json"), []byte(`{"id":"z"}`), 0o644))

	c, err := NewConnector(config.Config{ScanInboxDir: inbox}, nil)
	require.NoError(t, err)

	scans, err := c.FetchScans(context.Background(), 1)
	require.NoError(t, err)
	assert.Len(t, scans, 2)
}

func TestFetchMissingInbox(t *testing.T) {
	c, err := NewConnector(config.Config{ScanInboxDir: filepath.Join(t.TempDir(), "nope")}, nil)
	require.NoError(t, err)
	scans, err := c.FetchScans(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, scans)

	_, err = NewConnector(config.Config{}, nil)
	require.Error(t, err)
}

func TestMalformedFileIsRejectedAndDoesNotBlockInbox(t *testing.T) {
	inbox := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "a.json"), []byte(`{bad`), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(inbox, "b.json"), []byte(`{"id":"b1","created_at":"2026-03-02"}`), 0o644))

	c, err := NewConnector(config.Config{ScanInboxDir: inbox}, zap.NewNop())
	require.NoError(t, err)

	scans, err := c.FetchScans(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, scans, 1)
	assert.Equal(t, "b1", scans[0].ExternalID)

	_, err = os.Stat(filepath.Join(inbox, "rejected", "a.json"))
	require.NoError(t, err)
	_, err = os.Stat(filepath.Join(inbox, "a.json"))
	assert.True(t, os.IsNotExist(err))

	require.NoError(t, c.Commit(context.Background(), scans))
	again, err := c.FetchScans(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, again)
}
