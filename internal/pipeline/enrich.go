package pipeline

import (
	"strainscan/internal"
	"strainscan/internal/catalog"
	"strainscan/internal/util"
)

// EnrichMatches fills the dbMeta of matches the backend left bare with the
// local catalog entry they resolve to. It returns how many matches were
// enriched.
func EnrichMatches(rm *internal.NormalizedScanResult, index *catalog.Index) int {
	if rm == nil || index.Len() == 0 {
		return 0
	}

	enriched := 0
	for i := range rm.Matches {
		m := &rm.Matches[i]
		if len(m.DBMeta) > 0 {
			continue
		}
		hit, ok := index.Find(util.Deref(m.Slug), m.Name)
		if !ok {
			continue
		}
		m.DBMeta = hit.Meta()
		enriched++
	}

	// TopMatch and OtherMatches alias Matches unless the read-model was
	// rebuilt from JSON.
	if len(rm.Matches) > 0 {
		rm.TopMatch = &rm.Matches[0]
		rm.OtherMatches = rm.Matches[1:]
	}
	return enriched
}
