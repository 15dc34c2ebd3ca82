package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles Prometheus collectors for a harvest run. All methods are
// safe to call on a nil *Metrics.
type Metrics struct {
	Registry        *prometheus.Registry
	RequestsTotal   *prometheus.CounterVec
	RequestDuration prometheus.Histogram
	RecordsFetched  *prometheus.CounterVec
	QueryStops      *prometheus.CounterVec
	RowsWritten     prometheus.Counter
}

// New constructs and registers all metrics on a dedicated registry
func New() *Metrics {
	registry := prometheus.NewRegistry()

	requests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixscrape_requests_total",
			Help: "Search page requests by outcome.",
		},
		[]string{"outcome"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "pixscrape_request_duration_seconds",
			Help:    "Latency of search page requests.",
			Buckets: prometheus.DefBuckets,
		},
	)
	records := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixscrape_records_fetched_total",
			Help: "Hits accumulated per query.",
		},
		[]string{"query"},
	)
	stops := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pixscrape_query_stops_total",
			Help: "Finished queries by stop reason.",
		},
		[]string{"reason"},
	)
	rows := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pixscrape_rows_written_total",
			Help: "Data rows written to the output file.",
		},
	)

	registry.MustRegister(requests, duration, records, stops, rows)

	return &Metrics{
		Registry:        registry,
		RequestsTotal:   requests,
		RequestDuration: duration,
		RecordsFetched:  records,
		QueryStops:      stops,
		RowsWritten:     rows,
	}
}

// ObserveRequest records one page request and its latency
func (m *Metrics) ObserveRequest(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(outcome).Inc()
	m.RequestDuration.Observe(d.Seconds())
}

// AddRecords counts hits appended for a query
func (m *Metrics) AddRecords(query string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RecordsFetched.WithLabelValues(query).Add(float64(n))
}

// IncStop counts a finished query by reason
func (m *Metrics) IncStop(reason string) {
	if m == nil {
		return
	}
	m.QueryStops.WithLabelValues(reason).Inc()
}

// AddRows counts rows written to the output file
func (m *Metrics) AddRows(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.RowsWritten.Add(float64(n))
}

// Handler serves the registry in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{})
}
