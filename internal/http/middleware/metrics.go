// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic. Labels are
// kept bounded:
//
//   - method: HTTP verb
//   - route:  registered Gin route (e.g. /organizations/:id), or the raw path
//     when nothing matched
//   - status: numeric status code as a string
//
// Metadata lookups additionally report whether the answer was a synthesized
// fallback (X-Metadata-Fallback response header set by the handler).
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HeaderMetadataFallback is set to "1" on metadata responses that carry a
// synthesized record.
const HeaderMetadataFallback = "X-Metadata-Fallback"

const metricsNamespace = "enricher"

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		},
		[]string{"method", "route", "status"},
	)

	// Status is left out to keep histogram cardinality down.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			// Metadata lookups can wait on a slow upstream for the full extractor timeout.
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 15},
		},
		[]string{"method", "route"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "http_requests_inflight",
			Help:      "Current number of in-flight HTTP requests.",
		},
	)

	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "http_response_size_bytes",
			Help:      "Size of HTTP responses in bytes.",
			Buckets:   prometheus.ExponentialBuckets(128, 2, 12), // 128B..256KiB
		},
		[]string{"method", "route"},
	)

	metadataResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "metadata_responses_total",
			Help:      "Successful metadata responses by origin (extracted or fallback).",
		},
		[]string{"origin"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, metadataResponses)
}

// Metrics returns a Gin middleware that instruments requests with Prometheus.
//
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		method := c.Request.Method
		status := c.Writer.Status()

		httpReqs.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
		httpLat.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, route).Observe(float64(size))
		}

		if status == http.StatusOK && route == metadataRoute(c) {
			origin := "extracted"
			if c.Writer.Header().Get(HeaderMetadataFallback) == "1" {
				origin = "fallback"
			}
			metadataResponses.WithLabelValues(origin).Inc()
		}
	}
}

// metadataRoute reports the route a metadata handler registered itself under
// (see MarkMetadataRoute), or "" when this request was not one.
func metadataRoute(c *gin.Context) string {
	if v, ok := c.Get(metadataRouteKey); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

const metadataRouteKey = "metadataRoute"

// MarkMetadataRoute flags the request as a metadata lookup so Metrics can
// split responses by origin. Mount it on the metadata route only.
func MarkMetadataRoute() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(metadataRouteKey, c.FullPath())
		c.Next()
	}
}
