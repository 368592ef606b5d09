package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/irfndi/econ-trends/internal/metrics"
)

// Metrics records request counts and latency by templated route.
// Unmatched paths are grouped under "unmatched".
func Metrics(recorder *metrics.Recorder) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		recorder.RecordHTTPRequest(route, c.Request.Method, strconv.Itoa(c.Writer.Status()), time.Since(start))
	}
}
