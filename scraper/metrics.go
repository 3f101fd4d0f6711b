package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for the scraper.
type Metrics struct {
	Registry           *prometheus.Registry
	NavigationsTotal   *prometheus.CounterVec
	NavigationDuration *prometheus.HistogramVec
	RecordsTotal       *prometheus.CounterVec
	FieldMissesTotal   *prometheus.CounterVec
	RetriesTotal       prometheus.Counter
	ErrorsTotal        *prometheus.CounterVec
	LettersTotal       *prometheus.CounterVec
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	navigations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gsa_navigations_total",
			Help: "Page navigations by page kind and result.",
		},
		[]string{"page", "result"},
	)
	navigationDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gsa_navigation_duration_seconds",
			Help:    "Time from navigation start to a settled document.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"page"},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gsa_records_total",
			Help: "Detail pages handled, by outcome.",
		},
		[]string{"outcome"},
	)
	fieldMisses := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gsa_field_misses_total",
			Help: "Fields whose locator matched nothing.",
		},
		[]string{"field"},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gsa_retries_total",
			Help: "Total number of navigation retries.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gsa_errors_total",
			Help: "Navigation errors by type.",
		},
		[]string{"error_type"},
	)
	letters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gsa_letters_total",
			Help: "Partition letters by result.",
		},
		[]string{"result"},
	)

	registry.MustRegister(navigations, navigationDuration, records, fieldMisses, retries, errorsTotal, letters)

	return &Metrics{
		Registry:           registry,
		NavigationsTotal:   navigations,
		NavigationDuration: navigationDuration,
		RecordsTotal:       records,
		FieldMissesTotal:   fieldMisses,
		RetriesTotal:       retries,
		ErrorsTotal:        errorsTotal,
		LettersTotal:       letters,
	}
}

// ObserveNavigation records one navigation attempt.
func (m *Metrics) ObserveNavigation(page, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.NavigationsTotal.WithLabelValues(page, result).Inc()
	m.NavigationDuration.WithLabelValues(page).Observe(d.Seconds())
}

// IncRecord increments the outcome counter.
func (m *Metrics) IncRecord(outcome string) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(outcome).Inc()
}

// IncFieldMiss increments the miss counter for field.
func (m *Metrics) IncFieldMiss(field string) {
	if m == nil {
		return
	}
	m.FieldMissesTotal.WithLabelValues(field).Inc()
}

// IncRetries increments the retries counter.
func (m *Metrics) IncRetries() {
	if m == nil {
		return
	}
	m.RetriesTotal.Inc()
}

// IncError increments the errors counter for a type label.
func (m *Metrics) IncError(errorType string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(errorType).Inc()
}

// IncLetter increments the letters counter for result.
func (m *Metrics) IncLetter(result string) {
	if m == nil {
		return
	}
	m.LettersTotal.WithLabelValues(result).Inc()
}
