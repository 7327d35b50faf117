package crawler

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/umputun/eventscope/pkg/domain"
)

// Metrics holds crawl collectors, labeled by source id
type Metrics struct {
	runs     *prometheus.CounterVec
	pages    *prometheus.CounterVec
	rejected *prometheus.CounterVec
	ingested *prometheus.CounterVec
	duration *prometheus.HistogramVec
	inFlight prometheus.Gauge
}

// NewMetrics registers crawl collectors with reg, prometheus.DefaultRegisterer if nil
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventscope_crawl_runs_total",
			Help: "Total number of crawl runs, labeled by source and result.",
		}, []string{"source", "result"}),
		pages: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventscope_crawl_pages_total",
			Help: "Total number of documents fetched by crawl runs.",
		}, []string{"source"}),
		rejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventscope_candidates_rejected_total",
			Help: "Total number of rejected candidates, labeled by source and reason.",
		}, []string{"source", "reason"}),
		ingested: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "eventscope_events_ingested_total",
			Help: "Total number of ingest outcomes, labeled by source and kind.",
		}, []string{"source", "kind"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "eventscope_crawl_duration_seconds",
			Help:    "Duration of crawl runs.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 180},
		}, []string{"source"}),
		inFlight: factory.NewGauge(prometheus.GaugeOpts{
			Name: "eventscope_crawls_in_flight",
			Help: "Number of crawl runs in progress.",
		}),
	}
}

// observe records stats of a finished run, nil-safe
func (m *Metrics) observe(s *domain.RunStats) {
	if m == nil || s == nil {
		return
	}
	src := strconv.FormatInt(s.SourceID, 10)
	result := "success"
	if s.Failed {
		result = "failure"
	}
	m.runs.WithLabelValues(src, result).Inc()
	m.pages.WithLabelValues(src).Add(float64(s.Pages))
	for reason, n := range s.Rejected {
		m.rejected.WithLabelValues(src, reason).Add(float64(n))
	}
	for kind, n := range map[domain.IngestKind]int{domain.IngestInserted: s.Inserted, domain.IngestUpdated: s.Updated,
		domain.IngestUnchanged: s.Unchanged, domain.IngestSkipped: s.Skipped} {
		if n > 0 {
			m.ingested.WithLabelValues(src, string(kind)).Add(float64(n))
		}
	}
	m.duration.WithLabelValues(src).Observe(s.FinishedAt.Sub(s.StartedAt).Seconds())
}

func (m *Metrics) started() {
	if m != nil {
		m.inFlight.Inc()
	}
}

func (m *Metrics) finished() {
	if m != nil {
		m.inFlight.Dec()
	}
}

// elapsed is a helper for log lines
func elapsed(s *domain.RunStats) time.Duration {
	return s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond)
}
