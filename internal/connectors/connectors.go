package connectors

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"

	"strainscan/internal"
)

// ContentKeyPrefix marks external ids derived from a record's content hash.
const ContentKeyPrefix = "sha256:"

// ScanSource yields raw scan records from upstream.
type ScanSource interface {
	Name() string
	FetchScans(ctx context.Context, max int) ([]internal.FetchedScan, error)
	// Commit acknowledges scans that were stored locally so the next fetch
	// does not return them again.
	Commit(ctx context.Context, scans []internal.FetchedScan) error
}

type scanHeader struct {
	ID        *internal.FlexString `json:"id"`
	CreatedAt *string              `json:"created_at"`
}

// Identify reads the id and creation time of a raw scan record. Records
// without an id are keyed by the hash of their content.
func Identify(raw []byte) (externalID, createdAt string) {
	var h scanHeader
	_ = json.Unmarshal(raw, &h)
	if h.CreatedAt != nil {
		createdAt = strings.TrimSpace(*h.CreatedAt)
	}
	if id := strings.TrimSpace(h.ID.String()); id != "" {
		return id, createdAt
	}
	return ContentKeyPrefix + HashRaw(raw), createdAt
}

func HashRaw(raw []byte) string {
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:])
}
