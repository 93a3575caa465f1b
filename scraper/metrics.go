package scraper

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles Prometheus collectors for an export run.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	PagesTotal      prometheus.Counter
	ItemsTotal      prometheus.Counter
	DetailsTotal    prometheus.Counter
	RetriesTotal    prometheus.Counter
	ErrorsTotal     *prometheus.CounterVec
	ImagesTotal     *prometheus.CounterVec
	RowsTotal       prometheus.Counter
	BatchesTotal    prometheus.Counter
}

// NewMetrics constructs and registers all metrics on a dedicated registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exporter_requests_total",
			Help: "Total HTTP requests issued, by phase.",
		},
		[]string{"phase"},
	)
	requestDuration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "exporter_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		},
	)
	pages := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exporter_catalog_pages_total",
			Help: "Catalog pages crawled.",
		},
	)
	items := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exporter_catalog_items_total",
			Help: "New catalog items discovered.",
		},
	)
	details := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exporter_item_details_total",
			Help: "Item details collected.",
		},
	)
	retries := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exporter_retries_total",
			Help: "Total number of retry attempts scheduled.",
		},
	)
	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exporter_errors_total",
			Help: "Total number of errors by type.",
		},
		[]string{"error_type"},
	)
	images := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exporter_images_total",
			Help: "Images staged, by outcome.",
		},
		[]string{"outcome"},
	)
	rows := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exporter_rows_total",
			Help: "CSV rows written.",
		},
	)
	batches := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "exporter_batches_total",
			Help: "CSV and zip batch pairs written.",
		},
	)

	registry.MustRegister(requests, requestDuration, pages, items, details, retries, errorsTotal, images, rows, batches)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: requestDuration,
		PagesTotal:      pages,
		ItemsTotal:      items,
		DetailsTotal:    details,
		RetriesTotal:    retries,
		ErrorsTotal:     errorsTotal,
		ImagesTotal:     images,
		RowsTotal:       rows,
		BatchesTotal:    batches,
	}
}

// IncRequest increments the requests total counter.
func (m *Metrics) IncRequest(phase string) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(phase).Inc()
}

// ObserveDuration records an HTTP request duration.
func (m *Metrics) ObserveDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.RequestDuration.Observe(d.Seconds())
}

// IncPages increments the catalog pages counter.
func (m *Metrics) IncPages() {
	if m == nil {
		return
	}
	m.PagesTotal.Inc()
}

// IncItems increments the discovered items counter.
func (m *Metrics) IncItems() {
	if m == nil {
		return
	}
	m.ItemsTotal.Inc()
}

// IncDetails increments the collected details counter.
func (m *Metrics) IncDetails() {
	if m == nil {
		return
	}
	m.DetailsTotal.Inc()
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

// IncImage increments the images counter for an outcome: downloaded, cached or failed.
func (m *Metrics) IncImage(outcome string) {
	if m == nil {
		return
	}
	m.ImagesTotal.WithLabelValues(outcome).Inc()
}

// AddRows adds n to the written rows counter.
func (m *Metrics) AddRows(n int) {
	if m == nil {
		return
	}
	m.RowsTotal.Add(float64(n))
}

// IncBatches increments the batches counter.
func (m *Metrics) IncBatches() {
	if m == nil {
		return
	}
	m.BatchesTotal.Inc()
}
