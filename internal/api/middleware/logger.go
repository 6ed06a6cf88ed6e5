package middleware

import (
	"fmt"
	"time"

	"esimsync/internal/logger"

	"github.com/gin-gonic/gin"
)

// Logger writes one access line per request through the application logger.
// Probe endpoints are not logged.
func Logger(logger *logger.Logger) gin.HandlerFunc {
	return gin.LoggerWithConfig(gin.LoggerConfig{
		SkipPaths: []string{"/health", "/metrics"},
		Output:    accessWriter{logger},
		Formatter: func(param gin.LogFormatterParams) string {
			return fmt.Sprintf("[%s] %s %s %d %s %s %v",
				param.TimeStamp.Format(time.RFC3339),
				param.Method,
				param.Path,
				param.StatusCode,
				param.Latency,
				param.ClientIP,
				param.Keys[RequestIDKey],
			)
		},
	})
}

type accessWriter struct {
	logger *logger.Logger
}

func (w accessWriter) Write(p []byte) (int, error) {
	w.logger.Info("%s", p)
	return len(p), nil
}
