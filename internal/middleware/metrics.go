package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/codetrack/backend/internal/infrastructure"
)

// MetricsMiddleware creates a middleware that records HTTP metrics
func MetricsMiddleware(metrics *infrastructure.TelemetryMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := c.Writer.Status()
		method := c.Request.Method

		// Route pattern, not the concrete path, to keep cardinality bounded
		path := c.FullPath()
		if path == "" {
			path = "unknown"
		}

		attrs := []attribute.KeyValue{
			attribute.String("http.method", method),
			attribute.String("http.route", path),
			attribute.Int("http.status_code", status),
		}

		metrics.HTTPRequestDuration.Record(c.Request.Context(), duration,
			metric.WithAttributes(attrs...),
		)
		metrics.HTTPRequestCount.Add(c.Request.Context(), 1,
			metric.WithAttributes(attrs...),
		)
	}
}
