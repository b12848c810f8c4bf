// Package metrics holds Prometheus instrumentation for entitlement checks and
// the JSON API.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// EntitlementMetrics manages Prometheus instrumentation for resolution and
// gating.
type EntitlementMetrics struct {
	resolutionsTotal   *prometheus.CounterVec
	providerFailures   *prometheus.CounterVec
	gateDecisionsTotal *prometheus.CounterVec
	snapshotDuration   prometheus.Histogram
}

var (
	entitlementMetricsInstance *EntitlementMetrics
	entitlementMetricsOnce     sync.Once
	entitlementMetricsFactory  = defaultEntitlementMetricsFactory
)

// Get returns the singleton entitlement metrics instance.
func Get() *EntitlementMetrics {
	entitlementMetricsOnce.Do(func() {
		entitlementMetricsInstance = entitlementMetricsFactory()
	})
	return entitlementMetricsInstance
}

func defaultEntitlementMetricsFactory() *EntitlementMetrics {
	return New(prometheus.DefaultRegisterer)
}

// New creates metrics registered on registerer. Collectors already present
// on registerer are reused.
func New(registerer prometheus.Registerer) *EntitlementMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	m := &EntitlementMetrics{
		resolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coachkit",
				Subsystem: "entitlements",
				Name:      "resolutions_total",
				Help:      "Total feature resolutions by winning access source",
			},
			[]string{"source"},
		),
		providerFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coachkit",
				Subsystem: "entitlements",
				Name:      "provider_failures_total",
				Help:      "Total access source lookups that failed and were treated as empty",
			},
			[]string{"source"},
		),
		gateDecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "coachkit",
				Subsystem: "entitlements",
				Name:      "gate_decisions_total",
				Help:      "Total gate decisions by state and denial reason",
			},
			[]string{"state", "reason"},
		),
		snapshotDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: "coachkit",
				Subsystem: "entitlements",
				Name:      "snapshot_duration_seconds",
				Help:      "Time to query every access source for one user",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
		),
	}

	m.resolutionsTotal = registerCounterVec(registerer, m.resolutionsTotal)
	m.providerFailures = registerCounterVec(registerer, m.providerFailures)
	m.gateDecisionsTotal = registerCounterVec(registerer, m.gateDecisionsTotal)
	m.snapshotDuration = registerHistogram(registerer, m.snapshotDuration)

	return m
}

func registerCounterVec(registerer prometheus.Registerer, counter *prometheus.CounterVec) *prometheus.CounterVec {
	if err := registerer.Register(counter); err != nil {
		if alreadyRegisteredErr, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := alreadyRegisteredErr.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
		panic(err)
	}
	return counter
}

func registerHistogram(registerer prometheus.Registerer, h prometheus.Histogram) prometheus.Histogram {
	if err := registerer.Register(h); err != nil {
		if alreadyRegisteredErr, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := alreadyRegisteredErr.ExistingCollector.(prometheus.Histogram); ok {
				return existing
			}
		}
		panic(err)
	}
	return h
}

func labelOr(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// RecordResolution counts one resolved feature. An empty source means no
// source granted it.
func (m *EntitlementMetrics) RecordResolution(source string) {
	if m == nil || m.resolutionsTotal == nil {
		return
	}
	m.resolutionsTotal.WithLabelValues(labelOr(source, "none")).Inc()
}

// RecordProviderFailure counts one failed access source lookup.
func (m *EntitlementMetrics) RecordProviderFailure(source string) {
	if m == nil || m.providerFailures == nil {
		return
	}
	m.providerFailures.WithLabelValues(labelOr(source, "unknown")).Inc()
}

// RecordGateDecision counts one gate evaluation.
func (m *EntitlementMetrics) RecordGateDecision(state, reason string) {
	if m == nil || m.gateDecisionsTotal == nil {
		return
	}
	m.gateDecisionsTotal.WithLabelValues(labelOr(state, "unknown"), labelOr(reason, "none")).Inc()
}

// ObserveSnapshot records how long one provider fan-out took.
func (m *EntitlementMetrics) ObserveSnapshot(d time.Duration) {
	if m == nil || m.snapshotDuration == nil {
		return
	}
	m.snapshotDuration.Observe(d.Seconds())
}
