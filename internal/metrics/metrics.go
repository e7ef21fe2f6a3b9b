package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "robotscan",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total HTTP requests processed",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "robotscan",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency in seconds",
		Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "path"})

	// ScanTransitions counts operator commands by outcome.
	ScanTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "robotscan",
		Subsystem: "scan",
		Name:      "transitions_total",
		Help:      "Scan commands received, labeled by command and result",
	}, []string{"command", "result"})

	ScanResultsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "robotscan",
		Subsystem: "scan",
		Name:      "results_total",
		Help:      "Completed scan reports, labeled by risk level",
	}, []string{"risk"})

	ScanProgress = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "robotscan",
		Subsystem: "scan",
		Name:      "progress_percent",
		Help:      "Progress of the current scan run",
	})

	TargetDragsClamped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "robotscan",
		Subsystem: "area",
		Name:      "target_drags_clamped_total",
		Help:      "Scan target drags that had to be pulled back inside the boundary",
	})

	ActiveStreams = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "robotscan",
		Subsystem: "events",
		Name:      "active_streams",
		Help:      "Current number of live event subscribers",
	}, []string{"transport"})
)

// Middleware records request metrics.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
		httpRequestDuration.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the Prometheus /metrics endpoint.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
