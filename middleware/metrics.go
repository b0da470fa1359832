package middleware

import (
	"strconv"
	"time"
	"video-gate/pkg/metrics"

	"github.com/gin-gonic/gin"
)

var skipMetricsRoutes = map[string]bool{
	"/metrics": true,
	"/health":  true,
}

// Metrics records request metrics labelled by route template, keeping video ids out of label values.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		route := c.FullPath()
		if skipMetricsRoutes[route] {
			c.Next()
			return
		}
		if route == "" {
			route = "unmatched"
		}

		metrics.HTTPRequestsInFlight.Inc()
		defer metrics.HTTPRequestsInFlight.Dec()

		start := time.Now()
		c.Next()

		status := strconv.Itoa(c.Writer.Status())
		metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, route, status).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
