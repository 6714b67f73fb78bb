package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"strainscan/internal"
	"strainscan/internal/catalog"
	"strainscan/internal/pipeline"
	"strainscan/internal/resolver"
)

const maxBodyBytes = 4 << 20

const (
	outcomeNormalized = "normalized"
	outcomeNoResult   = "no_result"
	outcomeInvalid    = "invalid"
)

type Router struct {
	resolver *resolver.Resolver
	index    atomic.Pointer[catalog.Index]
	metrics  *Metrics
	logger   *zap.Logger
}

// NewRouter wires the HTTP surface. index may be nil, in which case matches
// are returned without catalog enrichment.
func NewRouter(r *resolver.Resolver, index *catalog.Index, metrics *Metrics, logger *zap.Logger) *Router {
	if r == nil {
		r = resolver.Default()
	}
	if metrics == nil {
		metrics = NewMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	rt := &Router{resolver: r, metrics: metrics, logger: logger}
	rt.index.Store(index)
	return rt
}

// SetIndex swaps the catalog index used for enrichment. In-flight requests
// finish with the index they started with.
func (rt *Router) SetIndex(index *catalog.Index) {
	rt.index.Store(index)
}

// ReloadIndex calls load every interval and swaps in the result until ctx
// is done. A failed load keeps the current index.
func (rt *Router) ReloadIndex(ctx context.Context, interval time.Duration, load func() (*catalog.Index, error)) error {
	if interval <= 0 {
		<-ctx.Done()
		return nil
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			index, err := load()
			if err != nil {
				rt.logger.Warn("catalog index reload failed", zap.Error(err))
				continue
			}
			prev := rt.index.Swap(index)
			if prev.Len() != index.Len() {
				rt.logger.Info("catalog index reloaded", zap.Int("strains", index.Len()))
			}
		}
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/scans/normalize", rt.normalizeScan)
	mux.HandleFunc("/v1/labels/extract", rt.extractLabel)
	mux.Handle("/metrics", rt.metrics.Handler())
	return rt.loggingMiddleware(rt.metrics.Middleware(mux))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"blocklists":      rt.resolver.Blocklists().Version,
		"catalog_strains": rt.index.Load().Len(),
	})
}

type normalizeResponse struct {
	Scan     *internal.NormalizedScanResult `json:"scan"`
	ScanKind string                         `json:"scanKind"`
}

func (rt *Router) normalizeScan(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var scan internal.RawScanRecord
	if err := decodeBody(w, r, &scan); err != nil {
		rt.metrics.RecordNormalize(outcomeInvalid, "")
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	rm := rt.resolver.Normalize(&scan)
	if rm == nil {
		rt.metrics.RecordNormalize(outcomeNoResult, "")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	pipeline.EnrichMatches(rm, rt.index.Load())

	rt.metrics.RecordNormalize(outcomeNormalized, string(rm.ResolutionStatus))
	writeJSON(w, http.StatusOK, normalizeResponse{Scan: rm, ScanKind: resolver.ScanKind(rm)})
}

type extractLabelResponse struct {
	Name  *string             `json:"name"`
	Facts resolver.LabelFacts `json:"facts"`
}

func (rt *Router) extractLabel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		RawText *string `json:"rawText"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.RawText == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "rawText is required"})
		return
	}

	var resp extractLabelResponse
	if name, ok := rt.resolver.ExtractName(*req.RawText); ok {
		resp.Name = &name
	}
	resp.Facts = resolver.ExtractLabelFacts(*req.RawText)
	rt.metrics.RecordLabelExtract(resp.Name != nil)
	writeJSON(w, http.StatusOK, resp)
}

func (rt *Router) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		rt.logger.Debug("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("elapsed", time.Since(start)),
		)
	})
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return errors.New("request body too large")
		}
		return errors.New("invalid json")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
