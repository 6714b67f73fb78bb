package pipeline

import (
	"encoding/json"
	"fmt"
	"os"

	"strainscan/internal"
	"strainscan/internal/resolver"
	"strainscan/internal/util"
)

// NormalizeFile reads scan records from a JSON object, JSON array or NDJSON
// file and normalizes each one. Records without a result are skipped.
func NormalizeFile(r *resolver.Resolver, path string) ([]*internal.NormalizedScanResult, error) {
	if r == nil {
		r = resolver.Default()
	}
	blob, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	records, err := util.SplitRecords(blob)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	out := make([]*internal.NormalizedScanResult, 0, len(records))
	for i, raw := range records {
		var scan internal.RawScanRecord
		if err := json.Unmarshal(raw, &scan); err != nil {
			return nil, fmt.Errorf("%s: record %d: %w", path, i+1, err)
		}
		if rm := r.Normalize(&scan); rm != nil {
			out = append(out, rm)
		}
	}
	return out, nil
}
