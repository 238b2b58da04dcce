package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/entigo/internal/infrastructure/monitoring/prometheus"
)

// unmatchedPath labels requests that hit no route, keeping label cardinality
// bounded.
const unmatchedPath = "unmatched"

// Metrics records request counts, durations and in-flight requests.  The
// path label is the route template ("/api/v1/entities/:name/value").
func Metrics(m *prometheus.AppMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		active := m.HTTPActiveRequests.WithLabelValues()
		active.Inc()
		defer active.Dec()

		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedPath
		}
		prometheus.RecordHTTPRequest(m, c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}

//Personal.AI order the ending
