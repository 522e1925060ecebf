package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorders(t *testing.T) {
	m := New()

	m.Operation("create", "ok")
	m.Operation("create", "ok")
	m.Operation("create", "conflict")
	m.Status("refresh", "valid")
	m.Notification("sent")
	m.SetEntries(7)
	m.ObserveHTTP(http.MethodGet, "/api/metakg", 200, 15*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Operations.WithLabelValues("create", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Operations.WithLabelValues("create", "conflict")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.StatusResults.WithLabelValues("refresh", "valid")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.Entries))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET", "/api/metakg", "200")))
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.Operation("create", "ok")
		m.ObserveFetch("refresh", time.Second)
		m.Status("uptime", "valid")
		m.Notification("failed")
		m.SetEntries(1)
		m.SetIndexedEntries(1)
		m.ObserveSweep("refresh", time.Second)
		m.ObserveHTTP("GET", "/", 200, time.Millisecond)
		m.ExpansionFailure()
	})
}

func TestHandlerExposesRegistry(t *testing.T) {
	m := New()
	m.Operation("delete", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `apiregistry_lifecycle_operations_total{op="delete",outcome="ok"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestIndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New()
		New()
	})
}
