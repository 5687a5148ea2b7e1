package service

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsServiceSnapshot(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveHTTPRequest(http.MethodGet, "/api/v1/dashboard/datasets", http.StatusOK, 20*time.Millisecond)
	metrics.ObserveUpstream("list_datasets", http.StatusOK, 10*time.Millisecond)
	metrics.ObserveUpstream("list_jobs", 0, 30*time.Millisecond)
	metrics.ObserveUpstream("list_jobs", http.StatusBadGateway, 20*time.Millisecond)
	metrics.RecordRefresh(true)
	metrics.RecordRefresh(false)

	snapshot := metrics.Snapshot()
	assert.Equal(t, uint64(1), snapshot.RequestsTotal)
	assert.InDelta(t, 20, snapshot.AverageRequestDurationMs, 0.001)
	assert.Equal(t, uint64(3), snapshot.UpstreamCalls)
	assert.Equal(t, uint64(2), snapshot.UpstreamFailures)
	assert.InDelta(t, 20, snapshot.AverageUpstreamDurationMs, 0.001)
	assert.Equal(t, uint64(1), snapshot.RefreshesCompleted)
	assert.Equal(t, uint64(1), snapshot.RefreshesFailed)
}

func TestMetricsServiceHandlerExposesUpstreamSeries(t *testing.T) {
	metrics := NewMetricsService()
	metrics.ObserveUpstream("review_job", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `coop_upstream_requests_total{operation="review_job",status="200"} 1`)
}

func TestMetricsServiceNilSafe(t *testing.T) {
	var metrics *MetricsService
	metrics.ObserveUpstream("x", 200, time.Millisecond)
	metrics.RecordRefresh(true)
	assert.Zero(t, metrics.Snapshot().UpstreamCalls)

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
