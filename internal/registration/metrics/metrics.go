package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments of the registration pipeline.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	FetchOutcomes      *prometheus.CounterVec
	FetchLatency       prometheus.Histogram
	ItemsProcessed     *prometheus.CounterVec
	RedirectsAdmitted  prometheus.Counter
	RedirectsTruncated prometheus.Counter
	PrivacyRejections  *prometheus.CounterVec
	DrainPasses        prometheus.Counter
	ItemsEnqueued      *prometheus.CounterVec
}

// New registers the pipeline metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FetchOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_fetch_outcomes_total",
			Help: "Registration fetches by outcome",
		}, []string{"outcome"}),
		FetchLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "registrar_fetch_duration_seconds",
			Help:    "Latency of the registration endpoint exchange",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		ItemsProcessed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_work_items_processed_total",
			Help: "Work items processed by a drain pass, by outcome",
		}, []string{"outcome"}),
		RedirectsAdmitted: f.NewCounter(prometheus.CounterOpts{
			Name: "registrar_redirects_admitted_total",
			Help: "Redirect targets queued as new work items",
		}),
		RedirectsTruncated: f.NewCounter(prometheus.CounterOpts{
			Name: "registrar_redirects_truncated_total",
			Help: "Redirect targets dropped because the chain budget was exhausted",
		}),
		PrivacyRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_privacy_rejections_total",
			Help: "Candidates rejected by the privacy gate, by failing check",
		}, []string{"check"}),
		DrainPasses: f.NewCounter(prometheus.CounterOpts{
			Name: "registrar_drain_passes_total",
			Help: "Completed drain invocations",
		}),
		ItemsEnqueued: f.NewCounterVec(prometheus.CounterOpts{
			Name: "registrar_work_items_enqueued_total",
			Help: "Work items accepted by the enqueue API, by registration type",
		}, []string{"type"}),
	}
}

// ObserveFetch records one fetch outcome and its latency.
func (m *Metrics) ObserveFetch(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.FetchOutcomes.WithLabelValues(outcome).Inc()
	m.FetchLatency.Observe(elapsed.Seconds())
}

// IncProcessed counts a finished work item.
func (m *Metrics) IncProcessed(outcome string) {
	if m == nil {
		return
	}
	m.ItemsProcessed.WithLabelValues(outcome).Inc()
}

// AddRedirects records an expansion result.
func (m *Metrics) AddRedirects(admitted, truncated int) {
	if m == nil {
		return
	}
	m.RedirectsAdmitted.Add(float64(admitted))
	m.RedirectsTruncated.Add(float64(truncated))
}

// IncPrivacyRejection counts a rejection by the failing check.
func (m *Metrics) IncPrivacyRejection(check string) {
	if m == nil {
		return
	}
	m.PrivacyRejections.WithLabelValues(check).Inc()
}

// IncDrainPass counts a completed drain.
func (m *Metrics) IncDrainPass() {
	if m == nil {
		return
	}
	m.DrainPasses.Inc()
}

// IncEnqueued counts an accepted enqueue request.
func (m *Metrics) IncEnqueued(registrationType string) {
	if m == nil {
		return
	}
	m.ItemsEnqueued.WithLabelValues(registrationType).Inc()
}
