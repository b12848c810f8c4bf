package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics instruments the JSON API.
type HTTPMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	requestErrors   *prometheus.CounterVec
}

var (
	httpMetricsInstance *HTTPMetrics
	httpMetricsOnce     sync.Once
)

// HTTP returns the process-wide API metrics.
func HTTP() *HTTPMetrics {
	httpMetricsOnce.Do(func() {
		httpMetricsInstance = NewHTTP(prometheus.DefaultRegisterer)
	})
	return httpMetricsInstance
}

// NewHTTP creates API metrics registered on registerer.
func NewHTTP(registerer prometheus.Registerer) *HTTPMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &HTTPMetrics{
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "coachkit",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "HTTP request duration observed at the API layer.",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"method", "route", "status"},
		),
		requestTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coachkit",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests handled by the API.",
			},
			[]string{"method", "route", "status"},
		),
		requestErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coachkit",
				Subsystem: "http",
				Name:      "request_errors_total",
				Help:      "Total number of HTTP errors surfaced to clients.",
			},
			[]string{"method", "route", "status_class"},
		),
	}

	m.requestDuration = registerHistogramVec(registerer, m.requestDuration)
	m.requestTotal = registerCounterVec(registerer, m.requestTotal)
	m.requestErrors = registerCounterVec(registerer, m.requestErrors)
	return m
}

func registerHistogramVec(registerer prometheus.Registerer, h *prometheus.HistogramVec) *prometheus.HistogramVec {
	if err := registerer.Register(h); err != nil {
		if alreadyRegisteredErr, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := alreadyRegisteredErr.ExistingCollector.(*prometheus.HistogramVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return h
}

// RecordRequest records one handled request. route should be the matched
// pattern, not the raw path, to keep label cardinality bounded.
func (m *HTTPMetrics) RecordRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	route = labelOr(route, "unmatched")
	statusCode := strconv.Itoa(status)

	m.requestDuration.WithLabelValues(method, route, statusCode).Observe(elapsed.Seconds())
	m.requestTotal.WithLabelValues(method, route, statusCode).Inc()
	if status >= 400 {
		m.requestErrors.WithLabelValues(method, route, classifyStatus(status)).Inc()
	}
}

func classifyStatus(status int) string {
	switch {
	case status >= 500:
		return "server_error"
	case status >= 400:
		return "client_error"
	default:
		return "none"
	}
}
