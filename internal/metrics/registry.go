package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Set is the collection of collectors one coachkit process exposes, on a
// registry of its own so /metrics carries nothing else a library registered
// globally.
type Set struct {
	Registry     *prometheus.Registry
	Entitlements *EntitlementMetrics
	HTTP         *HTTPMetrics
}

// NewSet creates a registry with the Go runtime and process collectors plus
// the entitlement and HTTP metrics.
func NewSet() *Set {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return &Set{
		Registry:     reg,
		Entitlements: New(reg),
		HTTP:         NewHTTP(reg),
	}
}
