// metrics.go records per-request Prometheus series. The router registers it
// globally, after gin.Recovery and RequestIDMiddleware, so error responses
// carry their final status when the counter is bumped.
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/aroha-app/aroha-backend/internal/telemetry"
)

// noRouteLabel stands in for the path label on 404/405 responses. Using the
// raw URL there would let scanners mint unbounded label cardinality.
const noRouteLabel = "<no-route>"

// MetricsMiddleware observes every request into
// http_requests_total{method, path, status} and
// http_request_duration_seconds{method, path}. The path label is the matched
// route template, for example /v1/orgs/:orgID/appointments/:apptID, never the
// concrete URL.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = noRouteLabel
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		telemetry.HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
		telemetry.HTTPRequestDuration.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
	}
}
