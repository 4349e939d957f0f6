package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"cv-tailor/internal/shared/server/respond"
	"cv-tailor/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 envelope and a "panic" log line
// carrying the route, account and stack.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			route := c.FullPath()
			if route == "" {
				route = c.Request.URL.Path
			}
			telemetry.Error("panic", map[string]any{
				"request_id": RequestIDFromContext(c),
				"account_id": UserIDFromContext(c),
				"method":     c.Request.Method,
				"route":      route,
				"error":      rec,
				"stack":      string(debug.Stack()),
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "internal_error", "unexpected server error", nil)
			c.Abort()
		}()
		c.Next()
	}
}
