package jobdesc

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"

	"cv-tailor/internal/shared/server/respond"
	"cv-tailor/internal/tailor"
)

// Handler exposes job description helpers over HTTP.
type Handler struct {
	Fetcher  *Fetcher
	Analyzer *Analyzer
}

// RegisterRoutes attaches job description routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/job-descriptions/fetch", h.fetch)
	rg.POST("/job-descriptions/breakdown", h.breakdown)
	rg.GET("/job-descriptions/search-url", h.searchURL)
}

type fetchRequest struct {
	URL string `json:"url"`
}

func (h *Handler) fetch(c *gin.Context) {
	var req fetchRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.URL) == "" {
		respond.Invalid(c, "url is required")
		return
	}
	text, err := h.Fetcher.Fetch(c.Request.Context(), req.URL)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidURL):
			respond.Invalid(c, err.Error())
		case errors.Is(err, context.Canceled):
			respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
		default:
			respond.Error(c, http.StatusBadGateway, "job_fetch_failed", err.Error(), nil)
		}
		return
	}
	respond.OK(c, gin.H{"text": text})
}

type breakdownRequest struct {
	Text string `json:"text"`
}

func (h *Handler) breakdown(c *gin.Context) {
	var req breakdownRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
		respond.Invalid(c, "text is required")
		return
	}
	out, err := h.Analyzer.Breakdown(c.Request.Context(), req.Text)
	if err != nil {
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
		case errors.Is(err, tailor.ErrMalformedResponse):
			respond.Error(c, http.StatusBadGateway, "llm_schema_mismatch", err.Error(), nil)
		default:
			respond.Error(c, http.StatusBadGateway, "llm_error", err.Error(), nil)
		}
		return
	}
	respond.OK(c, out)
}

func (h *Handler) searchURL(c *gin.Context) {
	keywords := strings.TrimSpace(c.Query("keywords"))
	if keywords == "" {
		respond.Invalid(c, "keywords is required")
		return
	}
	respond.OK(c, gin.H{"url": LinkedInSearchURL(keywords, c.Query("location"))})
}
