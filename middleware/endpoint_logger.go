package middleware

import (
	"fmt"
	"time"

	"github.com/danursasmita/bengkel-ops/util"
	"github.com/gin-gonic/gin"
)

// EndpointCallLogger records one security event per request with timing and
// outcome. Persistence goes through the security logger, so it picks up
// whatever sink util.SetSecurityLoggerDB installed at startup.
func EndpointCallLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		status := c.Writer.Status()
		details := map[string]interface{}{
			"method":      c.Request.Method,
			"route":       c.FullPath(),
			"status":      status,
			"duration_ms": time.Since(start).Milliseconds(),
			"bytes_out":   c.Writer.Size(),
		}
		if q := c.Request.URL.RawQuery; q != "" {
			details["query"] = q
		}
		if len(c.Errors) > 0 {
			details["errors"] = c.Errors.String()
		}

		util.LogSecurityEvent(util.SecurityEvent{
			EventType: util.EventEndpointCall,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
			Message:   fmt.Sprintf("%s %s -> %d", c.Request.Method, c.Request.URL.Path, status),
			Details:   details,
		})
	}
}
