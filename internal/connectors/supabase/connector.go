package supabase

import (
	"context"
	"encoding/json"
	"strings"

	"strainscan/internal"
	"strainscan/internal/catalog"
	"strainscan/internal/config"
	"strainscan/internal/connectors"
)

const (
	SourceName  = "supabase"
	CursorKey   = "connectors.supabase.cursor"
	CursorIDKey = "connectors.supabase.cursor_id"
)

type scanLister interface {
	GetScansAfter(ctx context.Context, after catalog.ScanCursor, limit int) ([]json.RawMessage, error)
	GetScansByIDs(ctx context.Context, ids []string) ([]json.RawMessage, error)
}

type stateStore interface {
	GetMetadata(key string) (*string, error)
	SetMetadata(key, value string) error
	ListStaleExternalIDs(source string, status internal.ScanStatus, limit int) ([]string, error)
}

// Connector pulls new rows from the scans table, resuming after the
// (created_at, id) of the newest committed row. Spare fetch capacity is
// spent re-reading scans still awaiting a result, since the backend fills
// in result on an existing row.
type Connector struct {
	client scanLister
	state  stateStore
	table  string

	next *catalog.ScanCursor
}

func NewConnector(cfg config.Config, state stateStore) (*Connector, error) {
	if err := cfg.Require("SUPABASE_URL", cfg.SupabaseURL); err != nil {
		return nil, err
	}
	if err := cfg.Require("SUPABASE_ANON_KEY", cfg.SupabaseAnonKey); err != nil {
		return nil, err
	}
	return &Connector{client: catalog.NewClient(cfg), state: state, table: cfg.SupabaseScansTable}, nil
}

func (c *Connector) Name() string { return SourceName }

func (c *Connector) FetchScans(ctx context.Context, max int) ([]internal.FetchedScan, error) {
	c.next = nil
	after, err := c.loadCursor()
	if err != nil {
		return nil, err
	}

	rows, err := c.client.GetScansAfter(ctx, after, max)
	if err != nil {
		return nil, err
	}

	out := make([]internal.FetchedScan, 0, len(rows))
	seen := map[string]struct{}{}
	for _, raw := range rows {
		scan := c.toFetched(raw)
		out = append(out, scan)
		seen[scan.ExternalID] = struct{}{}
		if scan.CreatedAt != "" {
			next := catalog.ScanCursor{CreatedAt: scan.CreatedAt}
			if !isContentKey(scan.ExternalID) {
				next.ID = scan.ExternalID
			}
			c.next = &next
		}
	}

	budget := max - len(out)
	if budget <= 0 {
		return out, nil
	}
	stale, err := c.state.ListStaleExternalIDs(SourceName, internal.ScanAwaitingResult, budget)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(stale))
	for _, id := range stale {
		if _, ok := seen[id]; ok || isContentKey(id) {
			continue
		}
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return out, nil
	}

	rechecked, err := c.client.GetScansByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, raw := range rechecked {
		out = append(out, c.toFetched(raw))
	}
	return out, nil
}

// Commit advances the cursor past the newest row of the last fetch.
// Rechecked rows never move it.
func (c *Connector) Commit(_ context.Context, _ []internal.FetchedScan) error {
	if c.next == nil {
		return nil
	}
	if err := c.state.SetMetadata(CursorKey, c.next.CreatedAt); err != nil {
		return err
	}
	if err := c.state.SetMetadata(CursorIDKey, c.next.ID); err != nil {
		return err
	}
	c.next = nil
	return nil
}

func (c *Connector) loadCursor() (catalog.ScanCursor, error) {
	var cursor catalog.ScanCursor
	createdAt, err := c.state.GetMetadata(CursorKey)
	if err != nil {
		return cursor, err
	}
	if createdAt == nil {
		return cursor, nil
	}
	cursor.CreatedAt = *createdAt

	id, err := c.state.GetMetadata(CursorIDKey)
	if err != nil {
		return cursor, err
	}
	if id != nil {
		cursor.ID = *id
	}
	return cursor, nil
}

func (c *Connector) toFetched(raw json.RawMessage) internal.FetchedScan {
	id, createdAt := connectors.Identify(raw)
	return internal.FetchedScan{
		Source:     SourceName,
		ExternalID: id,
		CreatedAt:  createdAt,
		Raw:        raw,
		Origin:     c.table,
	}
}

// isContentKey reports ids derived from a row's hash rather than its
// primary key; the backend cannot be queried by them.
func isContentKey(id string) bool {
	return strings.HasPrefix(id, connectors.ContentKeyPrefix)
}
