package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Record(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordWrite("route", "update", "ok", 10*time.Millisecond)
	m.RecordWrite("route", "update", "conflict", time.Millisecond)
	m.RecordChangeKind("route", "LANG")
	m.RecordArchiveRows("archive_locales", 2)
	m.RecordArchiveRows("archive_documents", 0)
	m.RecordAssociationChanges(3, 1)
	m.RecordCacheLookup("documents", true)
	m.RecordCacheLookup("documents", false)
	m.RecordCacheLookup("documents", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DocumentWritesTotal.WithLabelValues("route", "update", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ChangeKindsTotal.WithLabelValues("route", "LANG")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ArchiveRowsTotal.WithLabelValues("archive_locales")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.AssociationChanges.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AssociationChanges.WithLabelValues("removed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("documents")))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordWrite("route", "create", "ok", time.Second)
		m.RecordChangeKind("route", "GEOM")
		m.RecordArchiveRows("archive_documents", 1)
		m.RecordAssociationChanges(1, 1)
		m.RecordCacheLookup("documents", true)
		m.RecordHTTPRequest("GET", "/health", 200, time.Millisecond)
	})
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.RecordHTTPRequest("GET", "/api/routes/{id}", 200, time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "v6api_http_requests_total"))
}
