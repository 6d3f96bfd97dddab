package metrics

import (
	"time"
	"vimeodl/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds Prometheus counters and histograms for segment downloads.
type Metrics struct {
	registry        *prometheus.Registry
	segmentsFetched *prometheus.CounterVec
	bytesFetched    *prometheus.CounterVec
	segmentFailures *prometheus.CounterVec
	fetchSeconds    *prometheus.HistogramVec
}

// New creates and registers the download metrics on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	segmentsFetched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vimeodl_segments_fetched_total",
		Help: "Total number of media segments fetched and written",
	}, []string{"kind"})
	bytesFetched := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vimeodl_bytes_fetched_total",
		Help: "Total number of bytes written, init segments included",
	}, []string{"kind"})
	segmentFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "vimeodl_segment_failures_total",
		Help: "Total number of segments whose fetch or write failed",
	}, []string{"kind"})
	fetchSeconds := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "vimeodl_segment_fetch_seconds",
		Help:    "Time spent fetching a single media segment",
		Buckets: prometheus.ExponentialBuckets(0.05, 2, 10),
	}, []string{"kind"})

	registry.MustRegister(
		segmentsFetched,
		bytesFetched,
		segmentFailures,
		fetchSeconds,
	)

	return &Metrics{
		registry:        registry,
		segmentsFetched: segmentsFetched,
		bytesFetched:    bytesFetched,
		segmentFailures: segmentFailures,
		fetchSeconds:    fetchSeconds,
	}
}

// ObserveSegment records a successfully written media segment.
func (m *Metrics) ObserveSegment(kind models.MediaKind, bytes int64, elapsed time.Duration) {
	m.segmentsFetched.WithLabelValues(string(kind)).Inc()
	m.bytesFetched.WithLabelValues(string(kind)).Add(float64(bytes))
	m.fetchSeconds.WithLabelValues(string(kind)).Observe(elapsed.Seconds())
}

// AddInitBytes records the bytes of a decoded init segment.
func (m *Metrics) AddInitBytes(kind models.MediaKind, bytes int64) {
	m.bytesFetched.WithLabelValues(string(kind)).Add(float64(bytes))
}

// IncSegmentFailures increments the failed segment counter.
func (m *Metrics) IncSegmentFailures(kind models.MediaKind) {
	m.segmentFailures.WithLabelValues(string(kind)).Inc()
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics to path in the text exposition format,
// suitable for the node_exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.registry)
}
