package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	requestTotal      *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	requestInFlight   prometheus.Gauge
	normalizeOutcomes *prometheus.CounterVec
	labelNamesMined   *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "strainscan",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "strainscan",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "strainscan",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
		},
	)
	normalizeOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "strainscan",
			Subsystem: "resolver",
			Name:      "normalize_total",
			Help:      "Normalized scans by outcome and resolution status.",
		},
		[]string{"outcome", "resolution"},
	)
	labelNamesMined := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "strainscan",
			Subsystem: "resolver",
			Name:      "label_extract_total",
			Help:      "Label text extractions by whether a name was found.",
		},
		[]string{"found"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		normalizeOutcomes,
		labelNamesMined,
	)

	return &Metrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		normalizeOutcomes: normalizeOutcomes,
		labelNamesMined:   labelNamesMined,
	}
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(r.Method, r.URL.Path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, r.URL.Path).Observe(time.Since(start).Seconds())
	})
}

func (m *Metrics) RecordNormalize(outcome, resolution string) {
	if resolution == "" {
		resolution = "none"
	}
	m.normalizeOutcomes.WithLabelValues(outcome, resolution).Inc()
}

func (m *Metrics) RecordLabelExtract(found bool) {
	m.labelNamesMined.WithLabelValues(strconv.FormatBool(found)).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}
