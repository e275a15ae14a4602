package metrics

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Recorder is what the storage chain and the router report into.
type Recorder interface {
	ObserveBackend(entity, backend, op string, err error, duration time.Duration)
	ObserveRequest(route string, status int)
	Handler() http.Handler
}

// Provider keeps its own registry so several instances can coexist in tests.
type Provider struct {
	registry        *prometheus.Registry
	backendOps      *prometheus.CounterVec
	backendDuration *prometheus.HistogramVec
	requestsTotal   *prometheus.CounterVec
}

// New returns a Prometheus-backed recorder, or a no-op one when disabled.
func New(enabled bool) Recorder {
	if !enabled {
		return noop{}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Provider{
		registry: reg,
		backendOps: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "questionbox_backend_operations_total",
			Help: "Storage backend calls by entity, backend, operation and outcome",
		}, []string{"entity", "backend", "op", "outcome"}),
		backendDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "questionbox_backend_operation_seconds",
			Help:    "Storage backend call duration in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"entity", "backend", "op"}),
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "questionbox_http_requests_total",
			Help: "HTTP requests by route and status class",
		}, []string{"route", "status"}),
	}
}

func (p *Provider) ObserveBackend(entity, backend, op string, err error, duration time.Duration) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	p.backendOps.WithLabelValues(entity, backend, op, outcome).Inc()
	p.backendDuration.WithLabelValues(entity, backend, op).Observe(duration.Seconds())
}

func (p *Provider) ObserveRequest(route string, status int) {
	p.requestsTotal.WithLabelValues(route, statusBucket(status)).Inc()
}

func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for assertions.
func (p *Provider) Registry() *prometheus.Registry {
	return p.registry
}

func statusBucket(code int) string {
	switch {
	case code < 200:
		return "1xx"
	case code < 300:
		return "2xx"
	case code < 400:
		return "3xx"
	case code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}

// GinMiddleware counts requests per matched route.
func GinMiddleware(rec Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		rec.ObserveRequest(route, c.Writer.Status())
	}
}

type noop struct{}

func (noop) ObserveBackend(string, string, string, error, time.Duration) {}
func (noop) ObserveRequest(string, int)                                  {}

func (noop) Handler() http.Handler {
	return http.NotFoundHandler()
}
