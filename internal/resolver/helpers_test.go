package resolver

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"strainscan/internal"
)

func decodeScan(t *testing.T, raw string) *internal.RawScanRecord {
	t.Helper()
	var scan internal.RawScanRecord
	require.NoError(t, json.Unmarshal([]byte(raw), &scan))
	return &scan
}

func snapshot(t *testing.T, v any) string {
	t.Helper()
	blob, err := json.Marshal(v)
	require.NoError(t, err)
	return string(blob)
}
