package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coop-dashboard-api/internal/models"
	"github.com/noah-isme/coop-dashboard-api/pkg/middleware/requestid"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type observation struct {
	method, path string
	status       int
}

type recordingHTTPObserver struct {
	mu  sync.Mutex
	obs []observation
}

func (r *recordingHTTPObserver) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.obs = append(r.obs, observation{method, path, status})
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	observer := &recordingHTTPObserver{}
	r := gin.New()
	r.Use(Metrics(observer))
	r.DELETE("/datasets/:name", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, path := range []string{"/datasets/sales.csv", "/wp-login.php"} {
		method := http.MethodDelete
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	}

	require.Len(t, observer.obs, 2)
	assert.Equal(t, observation{http.MethodDelete, "/datasets/:name", http.StatusOK}, observer.obs[0])
	assert.Equal(t, unmatchedRoute, observer.obs[1].path)
	assert.Equal(t, http.StatusNotFound, observer.obs[1].status)
}

func TestResponseMetaCarriesRequestIDAndCacheHit(t *testing.T) {
	var meta map[string]interface{}
	r := gin.New()
	r.Use(requestid.Middleware(), WithResponseMeta())
	r.GET("/x", func(c *gin.Context) {
		SetCacheHit(c, true)
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(requestid.HeaderKey, "req-7")
	r.ServeHTTP(httptest.NewRecorder(), req)

	require.NotNil(t, meta)
	assert.Equal(t, "req-7", meta["request_id"])
	assert.Equal(t, true, meta[cacheHitKey])
	assert.Contains(t, meta, "processing_time_ms")
}

type auditStub struct {
	entries []*models.AuditLog
	err     error
}

func (a *auditStub) Create(_ context.Context, entry *models.AuditLog) error {
	a.entries = append(a.entries, entry)
	return a.err
}

func TestAuditorRecordsSuccessAndFailure(t *testing.T) {
	recorder := &auditStub{}
	auditor := NewAuditor(recorder, nil)
	r := gin.New()
	r.Use(requestid.Middleware())
	r.DELETE("/datasets/:name", auditor.Record(models.AuditActionDatasetDelete, "dataset", "name"), func(c *gin.Context) {
		if c.Param("name") == "missing" {
			_ = c.Error(errors.New("Dataset not found"))
			c.Status(http.StatusNotFound)
			return
		}
		c.Status(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodDelete, "/datasets/sales.csv", nil)
	req.Header.Set(requestid.HeaderKey, "req-1")
	req.Header.Set("User-Agent", "dashboard")
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodDelete, "/datasets/missing", nil))

	require.Len(t, recorder.entries, 2)
	ok := recorder.entries[0]
	assert.Equal(t, models.AuditActionDatasetDelete, ok.Action)
	assert.Equal(t, "dataset", ok.Resource)
	require.NotNil(t, ok.ResourceID)
	assert.Equal(t, "sales.csv", *ok.ResourceID)
	require.NotNil(t, ok.RequestID)
	assert.Equal(t, "req-1", *ok.RequestID)
	assert.Equal(t, http.StatusOK, ok.Status)
	assert.Equal(t, "dashboard", ok.UserAgent)

	failed := recorder.entries[1]
	assert.Equal(t, http.StatusNotFound, failed.Status)
	assert.Contains(t, string(failed.Details), "Dataset not found")
}

func TestAuditorDisabledWithoutRecorder(t *testing.T) {
	called := false
	r := gin.New()
	r.POST("/x", NewAuditor(nil, nil).Record("X", "x", ""), func(c *gin.Context) {
		called = true
		c.Status(http.StatusNoContent)
	})
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/x", nil))
	assert.True(t, called)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
