package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cv-tailor/internal/accounts"
	googleauth "cv-tailor/internal/auth"
	"cv-tailor/internal/billing"
	"cv-tailor/internal/credits"
	"cv-tailor/internal/documents"
	"cv-tailor/internal/jobdesc"
	"cv-tailor/internal/shared/config"
	"cv-tailor/internal/shared/metrics"
	"cv-tailor/internal/shared/server/middleware"
	"cv-tailor/internal/shared/server/respond"
	"cv-tailor/internal/tailorings"
)

const apiBase = "/api/v1"

// RouterDeps carries the handlers mounted by NewRouter. Nil handlers are skipped.
type RouterDeps struct {
	Config          config.Config
	Accounts        *accounts.Handler
	Credits         *credits.Handler
	Documents       *documents.Handler
	Tailorings      *tailorings.Handler
	JobDescriptions *jobdesc.Handler
	Billing         *billing.Handler
	GoogleAuth      *googleauth.GoogleService
}

// PublicPrefixes are served without a Bearer token.
var PublicPrefixes = []string{
	apiBase + "/health",
	apiBase + "/metrics",
	apiBase + "/auth/",
	apiBase + "/billing/webhook",
}

// RateLimitRules are the token buckets per route group.
var RateLimitRules = map[string]middleware.RateLimitRule{
	"DEFAULT": {Rate: 5, Burst: 20},
	"POLLING": {Rate: 5, Burst: 30},
	"LLM":     {Rate: 0.2, Burst: 3},
}

var routeGroups = map[string]string{
	"POST " + apiBase + "/tailorings":                 "LLM",
	"POST " + apiBase + "/job-descriptions/breakdown": "LLM",
	"GET " + apiBase + "/tailorings/:id":              "POLLING",
	"GET " + apiBase + "/tailorings":                  "POLLING",
	"GET " + apiBase + "/credits":                     "POLLING",
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Auth(PublicPrefixes...),
		middleware.RateLimit(middleware.RateLimitConfig{
			Rules:    RateLimitRules,
			GroupFor: middleware.RouteGroups(routeGroups),
		}),
	)

	api := r.Group(apiBase)
	api.GET("/health", func(c *gin.Context) {
		respond.JSON(c, http.StatusOK, gin.H{"ok": true})
	})
	api.GET("/metrics", metrics.Handler())

	if deps.GoogleAuth != nil {
		deps.GoogleAuth.RegisterRoutes(api)
	}
	if deps.Accounts != nil {
		deps.Accounts.RegisterPublicRoutes(api)
		deps.Accounts.RegisterRoutes(api)
	}
	if deps.Credits != nil {
		deps.Credits.RegisterRoutes(api)
	}
	if deps.Documents != nil {
		deps.Documents.RegisterRoutes(api)
	}
	if deps.Tailorings != nil {
		deps.Tailorings.RegisterRoutes(api)
	}
	if deps.JobDescriptions != nil {
		deps.JobDescriptions.RegisterRoutes(api)
	}
	if deps.Billing != nil {
		deps.Billing.RegisterPublicRoutes(api)
		deps.Billing.RegisterRoutes(api)
	}
	if deps.Config.Env == "dev" && deps.Credits != nil {
		deps.Credits.RegisterDevRoutes(api.Group("/dev"))
	}

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
