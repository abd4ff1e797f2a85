package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"
)

type PrometheusMetrics struct {
	httpHandler func(*fasthttp.RequestCtx)
	logger      *zap.Logger

	dispatchTotal      *prometheus.CounterVec
	dispatchDuration   *prometheus.HistogramVec
	invalidationsTotal *prometheus.CounterVec
	linkRendersTotal   *prometheus.CounterVec
	publishPurgesTotal *prometheus.CounterVec
}

// NewPrometheusMetrics registers collectors on a fresh registry, including
// Go runtime and process collectors.
func NewPrometheusMetrics(namespace string, logger *zap.Logger) *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return NewPrometheusMetricsWithRegistry(namespace, registry, logger)
}

func NewPrometheusMetricsWithRegistry(namespace string, registry *prometheus.Registry, logger *zap.Logger) *PrometheusMetrics {
	if namespace == "" {
		namespace = "pagepurge"
	}

	pm := &PrometheusMetrics{
		logger: logger,
	}

	pm.dispatchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dispatch_total",
			Help:      "Purge dispatches that reached authorization, by effective action, origin and result",
		},
		[]string{"action", "origin", "result"},
	)

	pm.dispatchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of purge dispatches in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"result"},
	)

	pm.invalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_invalidations_total",
			Help:      "Cache engine invalidation calls",
		},
		[]string{"operation", "status"},
	)

	pm.linkRendersTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "toolbar_links_total",
			Help:      "Purge links rendered into toolbars, by scope",
		},
		[]string{"scope"},
	)

	pm.publishPurgesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_purges_total",
			Help:      "Publish-triggered purges by status",
		},
		[]string{"status"},
	)

	registry.MustRegister(pm.dispatchTotal)
	registry.MustRegister(pm.dispatchDuration)
	registry.MustRegister(pm.invalidationsTotal)
	registry.MustRegister(pm.linkRendersTotal)
	registry.MustRegister(pm.publishPurgesTotal)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		ErrorHandling: promhttp.ContinueOnError,
	})
	pm.httpHandler = fasthttpadaptor.NewFastHTTPHandler(handler)

	logger.Debug("Prometheus metrics initialized", zap.String("namespace", namespace))

	return pm
}

func (pm *PrometheusMetrics) RecordDispatch(action, origin, result string, duration time.Duration) {
	pm.dispatchTotal.WithLabelValues(action, origin, result).Inc()
	pm.dispatchDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func (pm *PrometheusMetrics) RecordLinkRender(scope string) {
	pm.linkRendersTotal.WithLabelValues(scope).Inc()
}

func (pm *PrometheusMetrics) RecordInvalidation(operation, status string) {
	pm.invalidationsTotal.WithLabelValues(operation, status).Inc()
}

func (pm *PrometheusMetrics) RecordPublishPurge(status string) {
	pm.publishPurgesTotal.WithLabelValues(status).Inc()
}

func (pm *PrometheusMetrics) ServeHTTP(ctx *fasthttp.RequestCtx) {
	pm.httpHandler(ctx)
}
