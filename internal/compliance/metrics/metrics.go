package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the compliance module.
// All methods are safe on a nil receiver.
type Metrics struct {
	// Validation outcomes by target country and outcome
	Validations *prometheus.CounterVec

	// Score distribution of produced reports
	Score prometheus.Histogram

	// Findings by kind ("error", "warning") and field
	Findings *prometheus.CounterVec

	EvaluateLatency prometheus.Histogram

	BatchSize prometheus.Histogram

	// Report event publish failures (publishing is fail-open)
	PublishFailures prometheus.Counter

	// Catalog refresh attempts by outcome ("success", "failure")
	CatalogRefreshes *prometheus.CounterVec

	CatalogCountries prometheus.Gauge
}

// New registers the compliance metrics with the default registerer.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the compliance metrics with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Validations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docbridge_compliance_validations_total",
			Help: "Total document validations by target country and outcome",
		}, []string{"target_country", "outcome"}), // outcome: "compliant", "non_compliant", "error"

		Score: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "docbridge_compliance_score",
			Help:    "Compliance score of evaluated documents",
			Buckets: []float64{0, 20, 40, 50, 60, 70, 80, 90, 95, 100},
		}),

		Findings: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docbridge_compliance_findings_total",
			Help: "Validation errors and warnings by field",
		}, []string{"kind", "field"}),

		EvaluateLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "docbridge_compliance_evaluate_duration_seconds",
			Help:    "Duration of a single document evaluation",
			Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),

		BatchSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "docbridge_compliance_batch_size",
			Help:    "Number of documents per batch validation",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100},
		}),

		PublishFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "docbridge_compliance_publish_failures_total",
			Help: "Report events that could not be published",
		}),

		CatalogRefreshes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docbridge_catalog_refreshes_total",
			Help: "Requirements catalog refresh attempts by outcome",
		}, []string{"outcome"}),

		CatalogCountries: f.NewGauge(prometheus.GaugeOpts{
			Name: "docbridge_catalog_countries",
			Help: "Number of jurisdictions in the active catalog snapshot",
		}),
	}
}

func (m *Metrics) IncrementValidation(targetCountry, outcome string) {
	if m != nil {
		m.Validations.WithLabelValues(targetCountry, outcome).Inc()
	}
}

func (m *Metrics) ObserveScore(score int) {
	if m != nil {
		m.Score.Observe(float64(score))
	}
}

func (m *Metrics) IncrementFinding(kind, field string) {
	if m != nil {
		m.Findings.WithLabelValues(kind, field).Inc()
	}
}

func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) ObserveBatchSize(n int) {
	if m != nil {
		m.BatchSize.Observe(float64(n))
	}
}

func (m *Metrics) IncrementPublishFailure() {
	if m != nil {
		m.PublishFailures.Inc()
	}
}

// RecordCatalogRefresh counts a refresh and, on success, records the new size.
func (m *Metrics) RecordCatalogRefresh(err error, countries int) {
	if m == nil {
		return
	}
	if err != nil {
		m.CatalogRefreshes.WithLabelValues("failure").Inc()
		return
	}
	m.CatalogRefreshes.WithLabelValues("success").Inc()
	m.CatalogCountries.Set(float64(countries))
}
