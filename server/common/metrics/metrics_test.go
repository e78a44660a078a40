package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveUpstreamOutcomes(t *testing.T) {
	m := New()

	m.ObserveUpstream("qdrant", "search", time.Now(), nil)
	m.ObserveUpstream("qdrant", "search", time.Now(), errors.New("boom"))
	m.ObserveUpstream("qdrant", "search", time.Now(), nil)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("qdrant", "search", OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UpstreamRequests.WithLabelValues("qdrant", "search", OutcomeError)))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveHTTP("GET", "/api/health", "200", time.Millisecond)
		m.ObserveUpstream("hamsa", "stt", time.Now(), nil)
	})
	assert.Nil(t, m.Registry())
}

func TestHandlerExposesCollectors(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", "/api/health", "200", 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `gateway_http_requests_total{method="GET",route="/api/health",status="200"} 1`)
}
