package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// URL outcome label values.
const (
	OutcomeVisited = "visited"
	OutcomeFailed  = "failed"
	OutcomeSkipped = "skipped"
)

// Metrics holds the crawler's Prometheus collectors.
type Metrics struct {
	URLsTotal      *prometheus.CounterVec
	DocumentsSaved prometheus.Counter
	SaveErrors     prometheus.Counter
	FetchDuration  prometheus.Histogram
	FrontierSize   prometheus.Gauge
	Running        prometheus.Gauge
}

// New registers the collectors with reg. Each registry can hold one set.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		URLsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "infpoisk_urls_total",
			Help: "URLs processed by outcome.",
		}, []string{"outcome"}),
		DocumentsSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "infpoisk_documents_saved_total",
			Help: "Documents written to the corpus.",
		}),
		SaveErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "infpoisk_save_errors_total",
			Help: "Documents that could not be written.",
		}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "infpoisk_fetch_duration_seconds",
			Help:    "Page fetch latency including retries.",
			Buckets: prometheus.DefBuckets,
		}),
		FrontierSize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "infpoisk_frontier_size",
			Help: "URLs waiting in the frontier.",
		}),
		Running: factory.NewGauge(prometheus.GaugeOpts{
			Name: "infpoisk_crawl_running",
			Help: "1 while a crawl is in progress.",
		}),
	}
}

// IncURL counts one URL with the given outcome.
func (m *Metrics) IncURL(outcome string) {
	if m == nil {
		return
	}
	m.URLsTotal.WithLabelValues(outcome).Inc()
}

// IncSaved counts one saved document.
func (m *Metrics) IncSaved() {
	if m == nil {
		return
	}
	m.DocumentsSaved.Inc()
}

// IncSaveError counts one failed document write.
func (m *Metrics) IncSaveError() {
	if m == nil {
		return
	}
	m.SaveErrors.Inc()
}

// ObserveFetch records how long a fetch took.
func (m *Metrics) ObserveFetch(d time.Duration) {
	if m == nil {
		return
	}
	m.FetchDuration.Observe(d.Seconds())
}

// SetFrontierSize records the current queue length.
func (m *Metrics) SetFrontierSize(n int) {
	if m == nil {
		return
	}
	m.FrontierSize.Set(float64(n))
}

// SetRunning flips the running gauge.
func (m *Metrics) SetRunning(running bool) {
	if m == nil {
		return
	}
	if running {
		m.Running.Set(1)
		return
	}
	m.Running.Set(0)
}
