package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"strainscan/internal"
	"strainscan/internal/catalog"
	"strainscan/internal/resolver"
)

func newTestHandler() http.Handler {
	index := catalog.BuildIndex([]internal.StrainRecord{{Slug: "gelato", Name: "Gelato"}}, 0)
	return NewRouter(resolver.Default(), index, NewMetrics(), zap.NewNop()).Handler()
}

func doRequest(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	h.ServeHTTP(res, req)
	return res
}

func TestHealthz(t *testing.T) {
	res := doRequest(t, newTestHandler(), http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, res.Code)

	var payload map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	assert.Equal(t, "ok", payload["status"])
	assert.EqualValues(t, 1, payload["catalog_strains"])
}

func TestNormalizeScan(t *testing.T) {
	body := `{"id":"s1","result":{"matches":[{"strain_slug":"gelato","name":"Gelato","confidence":0.9}]},"matched_strain_name":"Gelato","match_quality":"visual","match_confidence":0.9}`
	res := doRequest(t, newTestHandler(), http.MethodPost, "/v1/scans/normalize", body)
	require.Equal(t, http.StatusOK, res.Code)

	var payload struct {
		Scan     internal.NormalizedScanResult `json:"scan"`
		ScanKind string                        `json:"scanKind"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	assert.Equal(t, "Gelato", payload.Scan.StrainName)
	assert.Equal(t, internal.ResolutionKnown, payload.Scan.ResolutionStatus)
	assert.Equal(t, resolver.KindPlant, payload.ScanKind)
	require.NotNil(t, payload.Scan.TopMatch)
	assert.Equal(t, "gelato", payload.Scan.TopMatch.DBMeta["catalogSlug"])
}

func TestNormalizeScanWithoutResult(t *testing.T) {
	res := doRequest(t, newTestHandler(), http.MethodPost, "/v1/scans/normalize", `{"id":"s2","status":"pending"}`)
	assert.Equal(t, http.StatusNoContent, res.Code)
	assert.Empty(t, res.Body.String())
}

func TestNormalizeScanErrors(t *testing.T) {
	h := newTestHandler()

	res := doRequest(t, h, http.MethodPost, "/v1/scans/normalize", `{not json`)
	assert.Equal(t, http.StatusBadRequest, res.Code)

	res = doRequest(t, h, http.MethodGet, "/v1/scans/normalize", "")
	assert.Equal(t, http.StatusMethodNotAllowed, res.Code)
}

func TestExtractLabel(t *testing.T) {
	h := newTestHandler()

	res := doRequest(t, h, http.MethodPost, "/v1/labels/extract", `{"rawText":"NET WT 3.5g\nTHC 24.1%\nGarlic Cookies\nKeep out of reach of children"}`)
	require.Equal(t, http.StatusOK, res.Code)

	var payload struct {
		Name  *string             `json:"name"`
		Facts resolver.LabelFacts `json:"facts"`
	}
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	require.NotNil(t, payload.Name)
	assert.Equal(t, "Garlic Cookies", *payload.Name)
	require.NotNil(t, payload.Facts.THCPercent)
	assert.InDelta(t, 24.1, *payload.Facts.THCPercent, 1e-9)
	require.NotNil(t, payload.Facts.NetWeightGrams)
	assert.InDelta(t, 3.5, *payload.Facts.NetWeightGrams, 1e-9)

	res = doRequest(t, h, http.MethodPost, "/v1/labels/extract", `{}`)
	assert.Equal(t, http.StatusBadRequest, res.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler()
	doRequest(t, h, http.MethodPost, "/v1/scans/normalize", `{"id":"s2"}`)

	res := doRequest(t, h, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, res.Code)
	body := res.Body.String()
	assert.True(t, strings.Contains(body, `strainscan_resolver_normalize_total{outcome="no_result",resolution="none"} 1`), body)
	assert.Contains(t, body, "strainscan_http_requests_total")
}

func healthzStrains(t *testing.T, h http.Handler) float64 {
	t.Helper()
	res := doRequest(t, h, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, res.Code)
	var payload map[string]any
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &payload))
	n, _ := payload["catalog_strains"].(float64)
	return n
}

func TestSetIndexSwapsEnrichmentCatalog(t *testing.T) {
	rt := NewRouter(resolver.Default(), nil, NewMetrics(), zap.NewNop())
	h := rt.Handler()
	assert.Zero(t, healthzStrains(t, h))

	rt.SetIndex(catalog.BuildIndex([]internal.StrainRecord{
		{Slug: "gelato", Name: "Gelato"},
		{Slug: "runtz", Name: "Runtz"},
	}, 0))
	assert.EqualValues(t, 2, healthzStrains(t, h))
}

func TestReloadIndexPicksUpNewStrains(t *testing.T) {
	rt := NewRouter(resolver.Default(), catalog.BuildIndex(nil, 0), NewMetrics(), zap.NewNop())
	h := rt.Handler()

	var calls atomic.Int32
	load := func() (*catalog.Index, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("database is locked")
		}
		return catalog.BuildIndex([]internal.StrainRecord{{Slug: "gelato", Name: "Gelato"}}, 0), nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- rt.ReloadIndex(ctx, 5*time.Millisecond, load) }()

	assert.Eventually(t, func() bool { return rt.index.Load().Len() == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, healthzStrains(t, h))
	assert.GreaterOrEqual(t, calls.Load(), int32(2))

	cancel()
	require.NoError(t, <-done)
}
