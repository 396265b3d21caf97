package monitoring

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector owns the service's Prometheus registry plus the
// standard HTTP metrics. Custom metrics are created through it so every
// metric shares the service name prefix and the same registry.
type MetricsCollector struct {
	prefix   string
	registry *prometheus.Registry

	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	inFlight        prometheus.Gauge
}

// NewMetricsCollector builds a collector with its own registry. The
// service name becomes the metric prefix; hyphens are not legal in
// Prometheus names and are mapped to underscores.
func NewMetricsCollector(serviceName, version, commit string) *MetricsCollector {
	mc := &MetricsCollector{
		prefix:   strings.ReplaceAll(serviceName, "-", "_"),
		registry: prometheus.NewRegistry(),
	}

	mc.requestsTotal = mc.NewCounter("http_requests_total", "Total HTTP requests", []string{"method", "endpoint", "status"})
	mc.requestDuration = mc.NewHistogram("http_request_duration_seconds", "HTTP request duration in seconds", []string{"method", "endpoint"}, nil)

	mc.inFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: mc.prefix + "_http_requests_in_flight",
		Help: "HTTP requests currently being served",
	})
	mc.registry.MustRegister(mc.inFlight)

	info := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: mc.prefix + "_service_info",
		Help: "Service build information",
	}, []string{"version", "commit"})
	mc.registry.MustRegister(info)
	info.WithLabelValues(version, commit).Set(1)

	return mc
}

// NewCounter registers a prefixed counter vector.
func (mc *MetricsCollector) NewCounter(name, help string, labels []string) *prometheus.CounterVec {
	counter := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: mc.prefix + "_" + name,
		Help: help,
	}, labels)
	mc.registry.MustRegister(counter)
	return counter
}

// NewHistogram registers a prefixed histogram vector. Nil buckets mean
// the Prometheus defaults.
func (mc *MetricsCollector) NewHistogram(name, help string, labels []string, buckets []float64) *prometheus.HistogramVec {
	if buckets == nil {
		buckets = prometheus.DefBuckets
	}
	histogram := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    mc.prefix + "_" + name,
		Help:    help,
		Buckets: buckets,
	}, labels)
	mc.registry.MustRegister(histogram)
	return histogram
}

// MetricsMiddleware records request counts, durations and in-flight load.
func (mc *MetricsCollector) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		mc.inFlight.Inc()
		defer mc.inFlight.Dec()

		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unknown"
		}
		status := strconv.Itoa(c.Writer.Status())
		mc.requestsTotal.WithLabelValues(c.Request.Method, endpoint, status).Inc()
		mc.requestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the collector's registry.
func (mc *MetricsCollector) Handler() gin.HandlerFunc {
	handler := promhttp.HandlerFor(mc.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		handler.ServeHTTP(c.Writer, c.Request)
	}
}
