package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"cv-tailor/internal/shared/auth"
)

func newAuthRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Auth("/api/v1/auth/", "/api/v1/health"))
	router.GET("/api/v1/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"id": UserIDFromContext(c), "email": UserEmailFromContext(c), "plan": UserPlanFromContext(c)})
	})
	router.GET("/api/v1/health", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	router.OPTIONS("/api/v1/documents/current", func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestAuthAllowsOptionsWithoutIdentity(t *testing.T) {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/documents/current", nil)
	resp := httptest.NewRecorder()
	newAuthRouter().ServeHTTP(resp, req)

	if resp.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", resp.Code)
	}
}

func TestAuthPublicPrefix(t *testing.T) {
	resp := httptest.NewRecorder()
	newAuthRouter().ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.Code)
	}
}

func TestAuthRejectsMissingOrBadToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	tests := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "garbage", header: "Bearer not.a.jwt"},
		{name: "empty bearer", header: "Bearer   "},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp := httptest.NewRecorder()
			newAuthRouter().ServeHTTP(resp, req)
			if resp.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", resp.Code)
			}
			if resp.Header().Get("WWW-Authenticate") == "" {
				t.Fatalf("expected WWW-Authenticate challenge")
			}
		})
	}
}

func TestAuthAcceptsSignedToken(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	token, err := auth.SignJWT(auth.Claims{Sub: "acct-1", Email: "a@example.com", Plan: "free"})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	req := httptest.NewRequest(http.MethodGet, "/api/v1/me", nil)
	req.Header.Set("Authorization", "bearer "+token)
	resp := httptest.NewRecorder()
	newAuthRouter().ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.Code, resp.Body.String())
	}
	if body := resp.Body.String(); body != `{"email":"a@example.com","id":"acct-1","plan":"free"}` {
		t.Fatalf("unexpected body %s", body)
	}
}
