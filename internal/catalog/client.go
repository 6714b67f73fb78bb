package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker/v2"

	"strainscan/internal"
	"strainscan/internal/config"
	"strainscan/internal/util"
)

var ErrMissingCredentials = errors.New("missing SUPABASE_URL or SUPABASE_ANON_KEY")

const (
	pageSize    = 1000
	maxAttempts = 5
)

// StatusError is a non-2xx answer that survived the retry loop.
type StatusError struct {
	Table  string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("supabase api error: table=%s status=%d body=%s", e.Table, e.Status, e.Body)
}

// Client reads the scans and strains tables through the Supabase REST
// (PostgREST) endpoint.
type Client struct {
	cfg        config.Config
	httpClient *http.Client
	limiter    *RateLimiter
	breaker    *gobreaker.CircuitBreaker[[]byte]
}

func NewClient(cfg config.Config) *Client {
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.SupabaseTimeoutMs) * time.Millisecond},
		limiter:    NewRateLimiter(cfg.SupabaseRateLimitRPS),
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:        "supabase",
			MaxRequests: 1,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
			IsSuccessful: func(err error) bool {
				return err == nil || !isBackendFailure(err)
			},
		}),
	}
}

func (c *Client) GetStrainsAll(ctx context.Context) ([]internal.StrainRecord, error) {
	all := make([]internal.StrainRecord, 0)
	for offset := 0; ; offset += pageSize {
		rows, err := c.fetchRows(ctx, c.cfg.SupabaseStrainsTable, map[string]string{
			"select": "*",
			"order":  "name.asc",
		}, offset, pageSize)
		if err != nil {
			return nil, err
		}

		for _, raw := range rows {
			strain, err := toStrainRecord(raw)
			if err != nil {
				continue
			}
			all = append(all, strain)
		}

		if len(rows) < pageSize {
			break
		}
	}
	return all, nil
}

// ScanCursor is the keyset position after the newest committed scan row.
// ID may be empty for cursors written before ids were tracked.
type ScanCursor struct {
	CreatedAt string
	ID        string
}

// GetScansAfter returns up to limit scan rows that sort after the cursor
// by (created_at, id), oldest first. A zero cursor reads from the
// beginning.
func (c *Client) GetScansAfter(ctx context.Context, after ScanCursor, limit int) ([]json.RawMessage, error) {
	if limit <= 0 {
		return nil, nil
	}
	params := map[string]string{
		"select": "*",
		"order":  "created_at.asc,id.asc",
	}
	createdAt := strings.TrimSpace(after.CreatedAt)
	id := strings.TrimSpace(after.ID)
	switch {
	case createdAt != "" && id != "":
		params["or"] = fmt.Sprintf("(created_at.gt.%s,and(created_at.eq.%s,id.gt.%s))",
			quoteFilterValue(createdAt), quoteFilterValue(createdAt), quoteFilterValue(id))
	case createdAt != "":
		params["created_at"] = "gt." + createdAt
	}

	return c.fetchRaw(ctx, c.cfg.SupabaseScansTable, params, limit)
}

// GetScansByIDs re-reads specific scan rows. Unknown ids are skipped by the
// backend, so the result may be shorter than ids.
func (c *Client) GetScansByIDs(ctx context.Context, ids []string) ([]json.RawMessage, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	quoted := make([]string, 0, len(ids))
	for _, id := range ids {
		quoted = append(quoted, quoteFilterValue(id))
	}
	params := map[string]string{
		"select": "*",
		"order":  "created_at.asc,id.asc",
		"id":     "in.(" + strings.Join(quoted, ",") + ")",
	}
	return c.fetchRaw(ctx, c.cfg.SupabaseScansTable, params, len(ids))
}

func (c *Client) fetchRaw(ctx context.Context, table string, params map[string]string, limit int) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, limit)
	for offset := 0; len(out) < limit; offset += pageSize {
		want := min(pageSize, limit-len(out))
		rows, err := c.fetchRows(ctx, table, params, offset, want)
		if err != nil {
			return nil, err
		}
		for _, raw := range rows {
			blob, err := json.Marshal(raw)
			if err != nil {
				return nil, err
			}
			out = append(out, blob)
		}
		if len(rows) < want {
			break
		}
	}
	return out, nil
}

// quoteFilterValue double-quotes a PostgREST filter value so reserved
// characters such as ',', '.', ':' and parentheses are taken literally.
func quoteFilterValue(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}

func (c *Client) fetchRows(ctx context.Context, table string, params map[string]string, offset, count int) ([]map[string]any, error) {
	body, err := c.fetchJSON(ctx, table, params, offset, count)
	if err != nil {
		return nil, err
	}
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		return nil, fmt.Errorf("decode %s rows: %w", table, err)
	}
	return rows, nil
}

// fetchJSON reads one page. Repeated backend failures open the breaker so
// that a dead project fails fast instead of burning the retry budget.
func (c *Client) fetchJSON(ctx context.Context, table string, params map[string]string, offset, count int) ([]byte, error) {
	if strings.TrimSpace(c.cfg.SupabaseURL) == "" || strings.TrimSpace(c.cfg.SupabaseAnonKey) == "" {
		return nil, ErrMissingCredentials
	}

	baseURL := strings.TrimRight(c.cfg.SupabaseURL, "/") + "/rest/v1/"
	u, err := url.Parse(baseURL + table)
	if err != nil {
		return nil, err
	}

	q := u.Query()
	for k, v := range params {
		if strings.TrimSpace(v) != "" {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()

	return c.breaker.Execute(func() ([]byte, error) {
		return c.fetchWithRetry(ctx, table, u.String(), offset, count)
	})
}

func (c *Client) fetchWithRetry(ctx context.Context, table, target string, offset, count int) ([]byte, error) {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := c.limiter.WaitTurn(ctx); err != nil {
			return nil, err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("apikey", c.cfg.SupabaseAnonKey)
		req.Header.Set("Authorization", "Bearer "+c.cfg.SupabaseAnonKey)
		req.Header.Set("Accept", "application/json")
		req.Header.Set("Range-Unit", "items")
		req.Header.Set("Range", strconv.Itoa(offset)+"-"+strconv.Itoa(offset+count-1))

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			lastErr = err
			continue
		}

		body, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			lastErr = readErr
			continue
		}

		// 416 means the range starts past the last row.
		if resp.StatusCode == http.StatusRequestedRangeNotSatisfiable {
			return []byte("[]"), nil
		}
		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			statusErr := &StatusError{Table: table, Status: resp.StatusCode, Body: string(body)}
			if isRetryableStatus(resp.StatusCode) && attempt < maxAttempts {
				backoff := time.Duration(250*(1<<(attempt-1))+rand.Intn(100)) * time.Millisecond
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(backoff):
				}
				lastErr = statusErr
				continue
			}
			return nil, statusErr
		}

		return body, nil
	}

	if lastErr == nil {
		lastErr = errors.New("supabase request failed")
	}
	return nil, lastErr
}

// isBackendFailure reports whether err says something about the health of
// the remote project. Client mistakes and cancellations do not count.
func isBackendFailure(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return isRetryableStatus(statusErr.Status)
	}
	return true
}

func isRetryableStatus(status int) bool {
	switch status {
	case 429, 500, 502, 503, 504:
		return true
	default:
		return false
	}
}

func toStrainRecord(raw map[string]any) (internal.StrainRecord, error) {
	name := toStringPtr(raw["name"])
	if name == nil {
		return internal.StrainRecord{}, errors.New("empty name")
	}

	slug := toStringPtr(raw["strain_slug"])
	if slug == nil {
		slug = toStringPtr(raw["slug"])
	}
	if slug == nil {
		return internal.StrainRecord{}, errors.New("missing slug")
	}

	rawJSON, _ := json.Marshal(raw)
	strain := internal.StrainRecord{
		Slug:    *slug,
		Name:    *name,
		RawJSON: string(rawJSON),
	}
	strain.CatalogID = toIDPtr(raw["id"])
	strain.Type = toStringPtr(raw["type"])
	if strain.Type == nil {
		strain.Type = toStringPtr(raw["category"])
	}
	strain.Description = toStringPtr(raw["description"])
	strain.UpdatedAt = toStringPtr(raw["updated_at"])

	return strain, nil
}

func toIDPtr(v any) *string {
	switch t := v.(type) {
	case string:
		return toStringPtr(t)
	case float64:
		return util.StringPtr(strconv.FormatFloat(t, 'f', -1, 64))
	case json.Number:
		return util.StringPtr(t.String())
	}
	return nil
}

func toStringPtr(v any) *string {
	s, ok := v.(string)
	if !ok {
		return nil
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return util.StringPtr(s)
}
