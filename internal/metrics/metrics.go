package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gallery"

// Publish outcomes used as the "result" label.
const (
	ResultPublished = "published"
	ResultSkipped   = "skipped"
	ResultFailed    = "failed"
)

// Metrics holds the gallery collectors on a private registry so tests can
// create as many instances as they like.
type Metrics struct {
	registry *prometheus.Registry

	publishes       *prometheus.CounterVec
	publishDuration prometheus.Histogram
	conflicts       prometheus.Counter
	recoveries      prometheus.Counter
	feedEntries     prometheus.Gauge
	catalogReloads  *prometheus.CounterVec
	uploadBytes     prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publishes_total",
			Help:      "Package publishes by result.",
		}, []string{"result"}),
		publishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publish_duration_seconds",
			Help:      "Time spent merging a package into the feed, retries included.",
			Buckets:   prometheus.DefBuckets,
		}),
		conflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_conflicts_total",
			Help:      "Feed writes rejected because another publish stored the feed first.",
		}),
		recoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_recoveries_total",
			Help:      "Publishes that replaced an unreadable feed with a fresh one.",
		}),
		feedEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "feed_entries",
			Help:      "Entries in the feed after the last publish or catalog reload.",
		}),
		catalogReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_reloads_total",
			Help:      "Catalog reloads by result.",
		}, []string{"result"}),
		uploadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upload_bytes_total",
			Help:      "Bytes of package uploads accepted.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.publishes,
		m.publishDuration,
		m.conflicts,
		m.recoveries,
		m.feedEntries,
		m.catalogReloads,
		m.uploadBytes,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry (tests, extra collectors).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) ObservePublish(result string, d time.Duration) {
	m.publishes.WithLabelValues(result).Inc()
	m.publishDuration.Observe(d.Seconds())
}

func (m *Metrics) IncConflict()         { m.conflicts.Inc() }
func (m *Metrics) IncRecovery()         { m.recoveries.Inc() }
func (m *Metrics) SetFeedEntries(n int) { m.feedEntries.Set(float64(n)) }
func (m *Metrics) AddUploadBytes(n int) { m.uploadBytes.Add(float64(n)) }

func (m *Metrics) ObserveReload(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	m.catalogReloads.WithLabelValues(result).Inc()
}
