package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderCountsBackendOutcomes(t *testing.T) {
	rec := New(true)
	p, ok := rec.(*Provider)
	require.True(t, ok)

	p.ObserveBackend("questions", "sheet", "read", errors.New("quota"), time.Millisecond)
	p.ObserveBackend("questions", "sheet", "read", nil, time.Millisecond)
	p.ObserveBackend("questions", "sheet", "read", nil, time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(p.backendOps.WithLabelValues("questions", "sheet", "read", OutcomeError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(p.backendOps.WithLabelValues("questions", "sheet", "read", OutcomeOK)))
}

func TestProvidersDoNotShareRegistries(t *testing.T) {
	a := New(true).(*Provider)
	b := New(true).(*Provider)

	a.ObserveRequest("/api/questions", http.StatusOK)

	assert.Equal(t, 1.0, testutil.ToFloat64(a.requestsTotal.WithLabelValues("/api/questions", "2xx")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.requestsTotal.WithLabelValues("/api/questions", "2xx")))
}

func TestGinMiddlewareAndHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	rec := New(true)

	r := gin.New()
	r.Use(GinMiddleware(rec))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.GET("/metrics", gin.WrapH(rec.Handler()))

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/ping", nil))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)

	body, _ := io.ReadAll(w.Body)
	assert.Contains(t, string(body), `questionbox_http_requests_total{route="/ping",status="2xx"} 1`)
}

func TestDisabledRecorderIsNoop(t *testing.T) {
	rec := New(false)
	rec.ObserveBackend("visits", "table", "write", nil, time.Second)
	rec.ObserveRequest("/", http.StatusOK)

	w := httptest.NewRecorder()
	rec.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}
