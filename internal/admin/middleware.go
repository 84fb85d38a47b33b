package admin

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-logr/logr"
)

// requestLogger logs every request once it has been served.
func requestLogger(logger logr.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		logger.V(1).Info("HTTP request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"query", c.Request.URL.RawQuery,
			"status", c.Writer.Status(),
			"latency", time.Since(start),
		)
	}
}

func recovery(logger logr.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}

			logger.Error(fmt.Errorf("panic: %v", r), "Panic recovered", "method", c.Request.Method, "path", c.Request.URL.Path)

			c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse{Error: "internal server error"})
		}()

		c.Next()
	}
}
