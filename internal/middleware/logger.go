package middleware

import (
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/gin-gonic/gin"

	"bookingflow/internal/pkg/response"
)

// ErrorLogger logs every request, with error details for failures, and recovers from panics.
func ErrorLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		defer func() {
			if recovered := recover(); recovered != nil {
				err := fmt.Errorf("%v", recovered)
				logger.Error("request panic",
					append(requestAttrs(c, start), "error", err.Error(), "stack", string(debug.Stack()))...)
				response.Abort(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Internal server error")
				return
			}

			attrs := requestAttrs(c, start)
			for _, e := range c.Errors {
				attrs = append(attrs, "error", e.Error())
				if e.Meta != nil {
					attrs = append(attrs, "meta", e.Meta)
				}
			}

			switch status := c.Writer.Status(); {
			case status >= http.StatusInternalServerError:
				logger.Error("request failed", attrs...)
			case len(c.Errors) > 0 || status >= http.StatusBadRequest:
				logger.Warn("request rejected", attrs...)
			default:
				logger.Info("request", attrs...)
			}
		}()

		c.Next()
	}
}

func requestAttrs(c *gin.Context, start time.Time) []any {
	return []any{
		"request_id", RequestIDFrom(c),
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"query", c.Request.URL.RawQuery,
		"status", c.Writer.Status(),
		"client_ip", c.ClientIP(),
		"role", c.GetString(ctxRole),
		"duration_ms", time.Since(start).Milliseconds(),
	}
}
