package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/semmidev/arxivsync/internal/domain"
)

const namespace = "arxivsync"

// Metrics exports run results on its own registry. A nil *Metrics records nothing.
type Metrics struct {
	registry     *prometheus.Registry
	runDuration  *prometheus.HistogramVec
	runFailures  *prometheus.CounterVec
	syncOutcomes *prometheus.CounterVec
	purgeDeleted prometheus.Counter
	purgeErrors  prometheus.Counter
	purgeScanned prometheus.Counter
}

func New() (*Metrics, error) {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		runDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of sync and purge runs.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}, []string{"operation"}),
		runFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "run_failures_total",
			Help:      "Runs aborted by a feed fetch or store listing failure.",
		}, []string{"operation"}),
		syncOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_records_total",
			Help:      "Feed records processed, by outcome.",
		}, []string{"status", "reason"}),
		purgeDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purge_deleted_objects_total",
			Help:      "Objects removed from the bucket by purge runs.",
		}),
		purgeErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purge_errors_total",
			Help:      "Per-key deletion failures reported during purge runs.",
		}),
		purgeScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "purge_scanned_objects_total",
			Help:      "Objects listed and evaluated against purge filters.",
		}),
	}

	collectors := []prometheus.Collector{
		m.runDuration, m.runFailures, m.syncOutcomes,
		m.purgeDeleted, m.purgeErrors, m.purgeScanned,
	}
	for _, c := range collectors {
		if err := m.registry.Register(c); err != nil {
			return nil, fmt.Errorf("register metric: %w", err)
		}
	}
	return m, nil
}

func (m *Metrics) RecordSync(report domain.SyncReport, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues("sync").Observe(duration.Seconds())
	if err != nil {
		m.runFailures.WithLabelValues("sync").Inc()
		return
	}
	for _, o := range report.Outcomes {
		m.syncOutcomes.WithLabelValues(string(o.Status), string(o.Reason)).Inc()
	}
}

func (m *Metrics) RecordPurge(report domain.PurgeReport, duration time.Duration, err error) {
	if m == nil {
		return
	}
	m.runDuration.WithLabelValues("purge").Observe(duration.Seconds())
	if err != nil {
		m.runFailures.WithLabelValues("purge").Inc()
	}
	m.purgeScanned.Add(float64(report.Scanned))
	m.purgeDeleted.Add(float64(report.Deleted))
	m.purgeErrors.Add(float64(len(report.Errors)))
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
