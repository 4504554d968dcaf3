package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for one
// ingestion run. They are registered on a private registry rather than the
// global default — there is no in-process HTTP server to expose them, so a
// private registry avoids "already registered" panics across test runs and
// makes clear that exposition happens by logging a snapshot, not scraping.
type Metrics struct {
	FilesFetched  prometheus.Counter
	FilesNotFound prometheus.Counter
	FilesFailed   prometheus.Counter

	BulkWrites prometheus.Counter
	BulkErrors prometheus.Counter

	ChunkSize         prometheus.Histogram
	FetchDuration     prometheus.Histogram
	BulkWriteDuration prometheus.Histogram

	FileQueueDepth prometheus.Gauge
	JSONQueueDepth prometheus.Gauge
}

// NewMetrics creates and registers all pipeline metrics on a fresh,
// private registry.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	m := newMetrics()

	reg.MustRegister(
		m.FilesFetched,
		m.FilesNotFound,
		m.FilesFailed,
		m.BulkWrites,
		m.BulkErrors,
		m.ChunkSize,
		m.FetchDuration,
		m.BulkWriteDuration,
		m.FileQueueDepth,
		m.JSONQueueDepth,
	)

	return m, reg
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// any shared-registry state across parallel tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FilesFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netatmo_ingest",
			Name:      "files_fetched_total",
			Help:      "Total archive files successfully fetched from object storage.",
		}),
		FilesNotFound: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netatmo_ingest",
			Name:      "files_not_found_total",
			Help:      "Total archive files that did not exist at their key.",
		}),
		FilesFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netatmo_ingest",
			Name:      "files_failed_total",
			Help:      "Total archive files whose fetch (other than not-found) or decode failed.",
		}),
		BulkWrites: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netatmo_ingest",
			Name:      "bulk_writes_total",
			Help:      "Total unordered bulk-upsert operations submitted.",
		}),
		BulkErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "netatmo_ingest",
			Name:      "bulk_write_errors_total",
			Help:      "Total bulk-upsert operations that returned an error.",
		}),
		ChunkSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "netatmo_ingest",
			Name:      "chunk_size",
			Help:      "Number of stations per chunk handed to a DB worker.",
			Buckets:   []float64{100, 500, 1000, 3000, 5000, 10000, 20000},
		}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "netatmo_ingest",
			Name:      "fetch_duration_seconds",
			Help:      "Duration of one successful object-store fetch.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		BulkWriteDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "netatmo_ingest",
			Name:      "bulk_write_duration_seconds",
			Help:      "Duration of one bulk-upsert call.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}),
		FileQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netatmo_ingest",
			Name:      "file_queue_depth",
			Help:      "Current number of unacknowledged items on the file queue.",
		}),
		JSONQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "netatmo_ingest",
			Name:      "json_queue_depth",
			Help:      "Current number of unacknowledged items on the json queue.",
		}),
	}
}
