package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SearchCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travelbooking_search_cache_lookups_total",
			Help: "Search cache lookups by result",
		},
		[]string{"result"},
	)

	SearchCacheSwept = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "travelbooking_search_cache_swept_total",
			Help: "Search cache entries marked inactive by the sweep",
		},
	)

	VaultWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travelbooking_vault_writes_total",
			Help: "Payment vault writes by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	PaymentSourceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travelbooking_payment_source_failures_total",
			Help: "Payment method source failures during checkout",
		},
		[]string{"origin"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "travelbooking_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "travelbooking_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)
)

// Middleware records request count and latency per route template.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if strings.HasPrefix(c.Request.URL.Path, "/metrics") {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler exposes the default registry for scraping.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
