package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// RequestObserver records the outcome of a handled request.
type RequestObserver interface {
	ObserveRequest(route, method string, status int, elapsed time.Duration)
}

// RequestMetrics reports every request to observer, labelled by the matched route template
// so that path parameters do not explode label cardinality.
func RequestMetrics(observer RequestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		observer.ObserveRequest(route, c.Request.Method, c.Writer.Status(), time.Since(start))
	}
}
