package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cv-tailor/internal/shared/telemetry"
)

// Logging writes one "request.complete" line per request. 5xx responses log
// at error level, 4xx at warn.
func Logging() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		fields := map[string]any{
			"request_id":  RequestIDFromContext(c),
			"method":      c.Request.Method,
			"route":       route,
			"path":        c.Request.URL.Path,
			"status":      c.Writer.Status(),
			"bytes":       c.Writer.Size(),
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000.0,
			"client_ip":   c.ClientIP(),
		}
		if accountID := UserIDFromContext(c); accountID != "" {
			fields["account_id"] = accountID
		}
		if key, id := resourceID(route, c.Param("id")); key != "" {
			fields[key] = id
		}
		if len(c.Errors) > 0 {
			fields["errors"] = c.Errors.String()
		}

		switch status := c.Writer.Status(); {
		case status >= http.StatusInternalServerError:
			telemetry.Error("request.complete", fields)
		case status >= http.StatusBadRequest:
			telemetry.Warn("request.complete", fields)
		default:
			telemetry.Info("request.complete", fields)
		}
	}
}

// resourceID names the :id path parameter after the resource it addresses.
func resourceID(route, id string) (string, string) {
	if id == "" {
		return "", ""
	}
	switch {
	case strings.Contains(route, "/tailorings/"):
		return "tailoring_id", id
	case strings.Contains(route, "/documents/"):
		return "document_id", id
	default:
		return "resource_id", id
	}
}
