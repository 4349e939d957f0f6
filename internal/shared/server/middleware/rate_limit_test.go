package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
)

func limitedRouter(limiter *RateLimiter, rules map[string]RateLimitRule) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(userIDKey, "acct-1")
		c.Next()
	})
	r.Use(RateLimit(RateLimitConfig{
		GroupFor: RouteGroups(map[string]string{
			"GET /api/v1/tailorings/:id": "POLLING",
			"POST /api/v1/tailorings":    "LLM",
		}),
		Limiter: limiter,
		Rules:   rules,
	}))
	ok := func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) }
	r.POST("/api/v1/tailorings", ok)
	r.GET("/api/v1/tailorings/:id", ok)
	r.POST("/api/v1/documents", ok)
	return r
}

func TestRateLimitGroupsByRoute(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	r := limitedRouter(NewRateLimiter(func() time.Time { return now }), map[string]RateLimitRule{
		"DEFAULT": {Rate: 1, Burst: 2},
		"LLM":     {Rate: 0.1, Burst: 1},
		"POLLING": {Rate: 5, Burst: 10},
	})

	steps := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/v1/tailorings/t-1", http.StatusOK},
		{http.MethodGet, "/api/v1/tailorings/t-1", http.StatusOK},
		{http.MethodGet, "/api/v1/tailorings/t-1", http.StatusOK},
		{http.MethodPost, "/api/v1/documents", http.StatusOK},
		{http.MethodPost, "/api/v1/documents", http.StatusOK},
		{http.MethodPost, "/api/v1/documents", http.StatusTooManyRequests},
		{http.MethodPost, "/api/v1/tailorings", http.StatusOK},
		{http.MethodPost, "/api/v1/tailorings", http.StatusTooManyRequests},
	}
	for i, s := range steps {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(s.method, s.path, nil))
		if resp.Code != s.want {
			t.Fatalf("step %d %s %s: expected %d, got %d", i+1, s.method, s.path, s.want, resp.Code)
		}
	}
}

func TestRateLimitRefillsOverTime(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	r := limitedRouter(NewRateLimiter(func() time.Time { return now }), map[string]RateLimitRule{
		"LLM": {Rate: 0.2, Burst: 1},
	})
	send := func() int {
		resp := httptest.NewRecorder()
		r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/tailorings", nil))
		return resp.Code
	}

	if got := send(); got != http.StatusOK {
		t.Fatalf("first request: %d", got)
	}
	if got := send(); got != http.StatusTooManyRequests {
		t.Fatalf("second request: %d", got)
	}
	now = now.Add(5 * time.Second)
	if got := send(); got != http.StatusOK {
		t.Fatalf("after refill: %d", got)
	}
}

func TestRateLimit429IncludesRetryAfter(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	r := limitedRouter(NewRateLimiter(func() time.Time { return now }), map[string]RateLimitRule{
		"DEFAULT": {Rate: 0.5, Burst: 1},
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/v1/documents", nil))
	resp := httptest.NewRecorder()
	r.ServeHTTP(resp, httptest.NewRequest(http.MethodPost, "/api/v1/documents", nil))

	if resp.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.Code)
	}
	if got := resp.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After 2, got %q", got)
	}

	var payload struct {
		Error struct {
			Code    string         `json:"code"`
			Details map[string]any `json:"details"`
		} `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Error.Code != "rate_limited" {
		t.Fatalf("expected code rate_limited, got %q", payload.Error.Code)
	}
	if payload.Error.Details["retryAfterMs"] != float64(2000) {
		t.Fatalf("expected retryAfterMs 2000, got %v", payload.Error.Details["retryAfterMs"])
	}
	if payload.Error.Details["group"] != "DEFAULT" {
		t.Fatalf("expected group DEFAULT, got %v", payload.Error.Details["group"])
	}
}

func TestRateLimiterSweepsIdleBuckets(t *testing.T) {
	now := time.Date(2026, time.January, 1, 0, 0, 0, 0, time.UTC)
	limiter := NewRateLimiter(func() time.Time { return now })
	rule := RateLimitRule{Rate: 1, Burst: 1}

	limiter.Allow("stale|DEFAULT", rule)
	now = now.Add(bucketIdleTTL + time.Minute)
	for i := 1; i < sweepEvery; i++ {
		limiter.Allow("fresh|DEFAULT", rule)
	}

	if got := limiter.Len(); got != 1 {
		t.Fatalf("expected only the fresh bucket, got %d", got)
	}
}
