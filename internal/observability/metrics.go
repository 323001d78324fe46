package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and
// records nothing, which keeps tests free of registries.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Document write metrics
	DocumentWritesTotal *prometheus.CounterVec
	ChangeKindsTotal    *prometheus.CounterVec
	ArchiveRowsTotal    *prometheus.CounterVec
	AssociationChanges  *prometheus.CounterVec
	WriteDuration       *prometheus.HistogramVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on registry.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "v6api_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "v6api_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		DocumentWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "v6api_document_writes_total",
				Help: "Document writes by type, operation and outcome",
			},
			[]string{"type", "operation", "outcome"},
		),
		ChangeKindsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "v6api_document_change_kinds_total",
				Help: "Classified change kinds of committed writes",
			},
			[]string{"type", "kind"},
		),
		ArchiveRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "v6api_archive_rows_total",
				Help: "Rows appended to archive and version tables",
			},
			[]string{"table"},
		),
		AssociationChanges: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "v6api_association_changes_total",
				Help: "Association edges created or removed",
			},
			[]string{"action"},
		),
		WriteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "v6api_document_write_duration_seconds",
				Help:    "Duration of document write transactions",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "v6api_cache_hits_total",
				Help: "Cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "v6api_cache_misses_total",
				Help: "Cache misses",
			},
			[]string{"cache"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.DocumentWritesTotal,
		m.ChangeKindsTotal,
		m.ArchiveRowsTotal,
		m.AssociationChanges,
		m.WriteDuration,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordWrite records the outcome of a document write.
func (m *Metrics) RecordWrite(docType, operation, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.DocumentWritesTotal.WithLabelValues(docType, operation, outcome).Inc()
	m.WriteDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordChangeKind counts one classified change kind.
func (m *Metrics) RecordChangeKind(docType, kind string) {
	if m == nil {
		return
	}
	m.ChangeKindsTotal.WithLabelValues(docType, kind).Inc()
}

// RecordArchiveRows counts rows appended to an archive table.
func (m *Metrics) RecordArchiveRows(table string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.ArchiveRowsTotal.WithLabelValues(table).Add(float64(n))
}

// RecordAssociationChanges counts created and removed edges.
func (m *Metrics) RecordAssociationChanges(added, removed int) {
	if m == nil {
		return
	}
	if added > 0 {
		m.AssociationChanges.WithLabelValues("created").Add(float64(added))
	}
	if removed > 0 {
		m.AssociationChanges.WithLabelValues("removed").Add(float64(removed))
	}
}

// RecordCacheLookup counts a hit or a miss.
func (m *Metrics) RecordCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
	} else {
		m.CacheMissesTotal.WithLabelValues(cache).Inc()
	}
}
