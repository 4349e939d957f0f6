package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cv-tailor/internal/shared/auth"
	"cv-tailor/internal/shared/server/respond"
)

const (
	userIDKey   = "userId"
	identityKey = "identity"
)

// Identity is the authenticated account behind a request.
type Identity struct {
	AccountID string
	Email     string
	Name      string
	Plan      string
}

// Auth requires a Bearer session token on every path except those starting
// with one of publicPrefixes. Preflight requests are never challenged.
func Auth(publicPrefixes ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.Method == http.MethodOptions || isPublic(c.Request.URL.Path, publicPrefixes) {
			c.Next()
			return
		}

		token, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			unauthorized(c)
			return
		}
		claims, err := auth.VerifyJWT(token)
		if err != nil {
			unauthorized(c)
			return
		}

		c.Set(userIDKey, claims.Sub)
		c.Set(identityKey, Identity{
			AccountID: claims.Sub,
			Email:     claims.Email,
			Name:      claims.Name,
			Plan:      claims.Plan,
		})
		c.Next()
	}
}

func isPublic(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if prefix != "" && strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// bearerToken extracts the credential of an "Authorization: Bearer" header.
// The scheme is case-insensitive.
func bearerToken(header string) (string, bool) {
	scheme, token, found := strings.Cut(strings.TrimSpace(header), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized(c *gin.Context) {
	c.Header("WWW-Authenticate", `Bearer realm="cv-tailor"`)
	respond.Error(c, http.StatusUnauthorized, "unauthorized", "missing or invalid token", nil)
}

// IdentityFromContext returns the identity stored by Auth.
func IdentityFromContext(c *gin.Context) (Identity, bool) {
	if c == nil {
		return Identity{}, false
	}
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

// UserIDFromContext returns the authenticated account id, or "".
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	return c.GetString(userIDKey)
}

// UserEmailFromContext returns the authenticated account's email, or "".
func UserEmailFromContext(c *gin.Context) string {
	id, _ := IdentityFromContext(c)
	return id.Email
}

// UserPlanFromContext returns the authenticated account's plan, or "".
func UserPlanFromContext(c *gin.Context) string {
	id, _ := IdentityFromContext(c)
	return id.Plan
}
