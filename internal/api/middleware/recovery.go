package middleware

import (
	"errors"
	"net/http"
	"net/http/httputil"
	"runtime/debug"
	"syscall"

	"esimsync/internal/apperr"
	"esimsync/internal/logger"
	"esimsync/internal/metrics"

	"github.com/gin-gonic/gin"
)

// Recovery converts a panic in a handler into a JSON 500 carrying the
// unexpected error kind. Panics caused by the client hanging up are dropped
// without a response.
func Recovery(logger *logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		if clientGone(recovered) {
			c.Abort()
			return
		}

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPPanicsTotal.WithLabelValues(route).Inc()

		log := logger.With("request_id", c.GetString(RequestIDKey), "route", route)
		if gin.IsDebugging() {
			dump, _ := httputil.DumpRequest(c.Request, false)
			log.Error("Panic recovered: %v\n%s\n%s", recovered, dump, debug.Stack())
		} else {
			log.Error("Panic recovered: %v", recovered)
		}

		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
			"error": "internal server error",
			"kind":  apperr.KindUnexpected,
		})
	})
}

// clientGone reports whether the panic value is a write to a connection the
// client already closed.
func clientGone(recovered interface{}) bool {
	err, ok := recovered.(error)
	if !ok {
		return false
	}
	return errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET)
}
