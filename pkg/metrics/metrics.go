// Package metrics records source resolution activity as Prometheus metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Source outcomes.
const (
	OutcomeExcluded = "excluded"
	OutcomeEmbedded = "embedded"
	OutcomeFetched  = "fetched"
	OutcomeFailed   = "failed"
	OutcomeSkipped  = "skipped"
)

// Fetch kinds.
const (
	KindRemote = "remote"
	KindLocal  = "local"
	KindCache  = "cache"
)

// Recorder holds one registry of counters. A nil Recorder discards everything.
type Recorder struct {
	registry *prometheus.Registry

	sources       *prometheus.CounterVec
	fetches       *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
	cacheWrites   prometheus.Counter
	warnings      prometheus.Counter
	emitted       prometheus.Counter
}

// New creates a Recorder with its own registry.
func New() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		sources: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remote_sourcemap_sources_total",
				Help: "Number of source map entries processed, by outcome",
			},
			[]string{"outcome"},
		),
		fetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "remote_sourcemap_fetches_total",
				Help: "Number of source contents acquired, by kind",
			},
			[]string{"kind"},
		),
		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "remote_sourcemap_fetch_duration_seconds",
				Help:    "Source content acquisition duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"kind"},
		),
		cacheWrites: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "remote_sourcemap_cache_writes_total",
				Help: "Number of remote sources written to the disk cache",
			},
		),
		warnings: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "remote_sourcemap_warnings_total",
				Help: "Number of non-fatal warnings emitted",
			},
		),
		emitted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "remote_sourcemap_emitted_files_total",
				Help: "Number of source contents emitted as build output files",
			},
		),
	}
}

// Registry returns the registry holding the metrics.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Source counts one processed entry.
func (r *Recorder) Source(outcome string) {
	if r == nil {
		return
	}
	r.sources.WithLabelValues(outcome).Inc()
}

// Fetch counts one content acquisition of kind that started at start.
func (r *Recorder) Fetch(kind string, start time.Time) {
	if r == nil {
		return
	}
	r.fetches.WithLabelValues(kind).Inc()
	r.fetchDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
}

// CacheWrite counts one cache write.
func (r *Recorder) CacheWrite() {
	if r == nil {
		return
	}
	r.cacheWrites.Inc()
}

// Warning counts one warning.
func (r *Recorder) Warning() {
	if r == nil {
		return
	}
	r.warnings.Inc()
}

// Emitted counts one emitted file.
func (r *Recorder) Emitted() {
	if r == nil {
		return
	}
	r.emitted.Inc()
}

// WriteTextfile writes the metrics in the text exposition format, suitable
// for a node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, r.registry)
}
