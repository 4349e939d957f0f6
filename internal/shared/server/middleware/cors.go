package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

const corsMaxAge = 600

var (
	corsMethods = strings.Join([]string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions,
	}, ",")
	corsHeaders = strings.Join([]string{
		"Content-Type", "Authorization", requestIDHeader, "Stripe-Signature",
	}, ", ")
)

// CORS echoes allowed origins back with credentials enabled. A "*" entry
// allows any origin. Preflight requests end here with 204.
func CORS(allowedOrigins []string) gin.HandlerFunc {
	origins := make(map[string]struct{}, len(allowedOrigins))
	anyOrigin := false
	for _, o := range allowedOrigins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			anyOrigin = true
		default:
			origins[o] = struct{}{}
		}
	}
	allowed := func(origin string) bool {
		if anyOrigin {
			return true
		}
		_, ok := origins[origin]
		return ok
	}

	return func(c *gin.Context) {
		h := c.Writer.Header()
		h.Add("Vary", "Origin")
		if origin := c.GetHeader("Origin"); origin != "" && allowed(origin) {
			h.Set("Access-Control-Allow-Origin", origin)
			h.Set("Access-Control-Allow-Credentials", "true")
			h.Set("Access-Control-Allow-Methods", corsMethods)
			h.Set("Access-Control-Allow-Headers", corsHeaders)
			h.Set("Access-Control-Expose-Headers", requestIDHeader+", Content-Disposition")
			h.Set("Access-Control-Max-Age", strconv.Itoa(corsMaxAge))
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
