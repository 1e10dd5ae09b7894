package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"trades-api/internal/monitoring"
)

// Metrics records request count and latency by route template.
func Metrics(metrics monitoring.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.RecordHTTPRequest(c.Request.Method, endpoint, c.Writer.Status(), time.Since(start))
	}
}
