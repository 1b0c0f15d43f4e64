// Package metrics defines the instrumentation surface for sync
// operations and owns the process-wide Prometheus registry. Consumers
// depend on the interfaces here; the prometheus subpackage provides
// the real collectors. A nil implementation disables instrumentation
// without any call-site checks.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SyncMetrics records the outcome of sync passes against identity
// sources.
type SyncMetrics interface {
	// RecordPass records one completed sync pass for a source with its
	// terminal status ("success", "error" or "locked") and duration.
	RecordPass(source, status string, duration time.Duration)

	// RecordPrincipals records the number of principals enumerated in
	// the latest pass.
	RecordPrincipals(source string, count int)

	// RecordPasswordPush records one upstream password write attempt.
	RecordPasswordPush(source string, err error)
}

var registry *prometheus.Registry

// InitRegistry creates the process registry with the standard Go and
// process collectors. Call once at startup before constructing
// collectors.
func InitRegistry() {
	registry = prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// IsEnabled reports whether InitRegistry has been called.
func IsEnabled() bool {
	return registry != nil
}

// GetRegistry returns the process registry, or nil when metrics are
// disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// Handler returns the HTTP handler exposing the registry.
func Handler() http.Handler {
	if registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
