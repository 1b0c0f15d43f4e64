// Package prometheus implements the metrics interfaces with Prometheus
// collectors.
package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/realmsync/realmsync/pkg/metrics"
)

type syncMetrics struct {
	passes         *prometheus.CounterVec
	duration       *prometheus.HistogramVec
	lastSuccess    *prometheus.GaugeVec
	principals     *prometheus.GaugeVec
	passwordPushes *prometheus.CounterVec
}

// NewSyncMetrics creates sync collectors registered with the process
// registry. When metrics are disabled the returned value is a no-op.
func NewSyncMetrics() metrics.SyncMetrics {
	if !metrics.IsEnabled() {
		return (*syncMetrics)(nil)
	}
	reg := metrics.GetRegistry()

	return &syncMetrics{
		passes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "realmsync_sync_passes_total",
			Help: "Completed sync passes by source and terminal status",
		}, []string{"source", "status"}),
		duration: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "realmsync_sync_duration_seconds",
			Help:    "Sync pass duration by source",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"source"}),
		lastSuccess: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "realmsync_sync_last_success_timestamp_seconds",
			Help: "Unix timestamp of the last successful sync pass by source",
		}, []string{"source"}),
		principals: promauto.With(reg).NewGaugeVec(prometheus.GaugeOpts{
			Name: "realmsync_sync_principals",
			Help: "Principals enumerated in the latest sync pass by source",
		}, []string{"source"}),
		passwordPushes: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "realmsync_sync_password_pushes_total",
			Help: "Upstream password write attempts by source and result",
		}, []string{"source", "result"}),
	}
}

func (m *syncMetrics) RecordPass(source, status string, duration time.Duration) {
	if m == nil {
		return
	}
	m.passes.WithLabelValues(source, status).Inc()
	m.duration.WithLabelValues(source).Observe(duration.Seconds())
	if status == "success" {
		m.lastSuccess.WithLabelValues(source).SetToCurrentTime()
	}
}

func (m *syncMetrics) RecordPrincipals(source string, count int) {
	if m == nil {
		return
	}
	m.principals.WithLabelValues(source).Set(float64(count))
}

func (m *syncMetrics) RecordPasswordPush(source string, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.passwordPushes.WithLabelValues(source, result).Inc()
}
