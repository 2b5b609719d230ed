package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"flashsale/internal/monitor"
)

// Metrics records HTTP request counts and latencies. The route template is
// used as the path label so campaign ids do not explode the cardinality.
func Metrics(mc *monitor.MetricsCollector) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		mc.RecordHTTPRequest(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)
	}
}
