package middleware

import (
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"cv-tailor/internal/shared/server/respond"
)

const (
	defaultRateLimitGroup = "DEFAULT"
	bucketIdleTTL         = 10 * time.Minute
	sweepEvery            = 1024
)

// RateLimitRule is a token bucket: Rate tokens per second up to Burst.
type RateLimitRule struct {
	Rate  float64
	Burst int
}

func (r RateLimitRule) unlimited() bool {
	return r.Rate <= 0 || r.Burst <= 0
}

// RateLimitConfig selects a rule per request. Requests whose group has no
// rule pass through.
type RateLimitConfig struct {
	Rules        map[string]RateLimitRule
	DefaultGroup string
	GroupFor     func(*gin.Context) string
	Limiter      *RateLimiter
}

// RateLimiter holds one bucket per principal and group. Idle buckets are
// swept periodically.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*rateBucket
	now     func() time.Time
	calls   int
}

type rateBucket struct {
	tokens float64
	last   time.Time
}

// take refills the bucket up to now and consumes one token if available.
// Otherwise it reports how long until one is.
func (b *rateBucket) take(now time.Time, rule RateLimitRule) (bool, time.Duration) {
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens = math.Min(float64(rule.Burst), b.tokens+elapsed*rule.Rate)
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true, 0
	}
	wait := (1 - b.tokens) / rule.Rate
	return false, time.Duration(math.Ceil(wait*1000)) * time.Millisecond
}

func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		buckets: make(map[string]*rateBucket),
		now:     now,
	}
}

// Allow consumes a token from key's bucket.
func (l *RateLimiter) Allow(key string, rule RateLimitRule) (bool, time.Duration) {
	if l == nil || rule.unlimited() {
		return true, 0
	}
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.calls++
	if l.calls%sweepEvery == 0 {
		l.sweep(now)
	}
	bucket, ok := l.buckets[key]
	if !ok {
		bucket = &rateBucket{tokens: float64(rule.Burst), last: now}
		l.buckets[key] = bucket
	}
	return bucket.take(now, rule)
}

// Len reports the number of live buckets.
func (l *RateLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *RateLimiter) sweep(now time.Time) {
	for key, b := range l.buckets {
		if now.Sub(b.last) > bucketIdleTTL {
			delete(l.buckets, key)
		}
	}
}

// RouteGroups maps "METHOD /full/:path" keys to rate limit groups.
func RouteGroups(groups map[string]string) func(*gin.Context) string {
	return func(c *gin.Context) string {
		return groups[c.Request.Method+" "+c.FullPath()]
	}
}

// RateLimit applies per-principal token buckets keyed by route group. The
// principal is the authenticated account, or the client IP for public routes.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limiter == nil {
		cfg.Limiter = NewRateLimiter(nil)
	}
	if cfg.DefaultGroup == "" {
		cfg.DefaultGroup = defaultRateLimitGroup
	}
	return func(c *gin.Context) {
		group := cfg.DefaultGroup
		if cfg.GroupFor != nil {
			if g := strings.TrimSpace(cfg.GroupFor(c)); g != "" {
				group = g
			}
		}
		rule, ok := cfg.Rules[group]
		if !ok {
			c.Next()
			return
		}
		principal := UserIDFromContext(c)
		if principal == "" {
			principal = "ip:" + c.ClientIP()
		}

		allowed, retryAfter := cfg.Limiter.Allow(principal+"|"+group, rule)
		if allowed {
			c.Next()
			return
		}
		retryMs := max(int(retryAfter/time.Millisecond), 1)
		c.Header("Retry-After", strconv.Itoa(int(math.Ceil(float64(retryMs)/1000))))
		respond.Error(c, http.StatusTooManyRequests, "rate_limited", "too many requests", gin.H{
			"group":        group,
			"retryAfterMs": retryMs,
		})
	}
}
