package tailorings

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"cv-tailor/internal/credits"
	"cv-tailor/internal/documents"
	"cv-tailor/internal/shared/server/middleware"
	"cv-tailor/internal/shared/server/respond"
)

// Handler exposes tailorings over HTTP.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches tailoring routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/tailorings", h.create)
	rg.GET("/tailorings", h.list)
	rg.GET("/tailorings/:id", h.get)
	rg.GET("/tailorings/:id/diff", h.diff)
	rg.GET("/tailorings/:id/tailored_cv.pdf", h.artifact(ArtifactTailoredCV))
	rg.GET("/tailorings/:id/cover_letter.pdf", h.artifact(ArtifactCoverLetter))
}

type createRequest struct {
	DocumentID     string   `json:"documentId"`
	JobDescription string   `json:"jobDescription"`
	JobURL         string   `json:"jobUrl"`
	Temperature    *float64 `json:"temperature"`
	Async          bool     `json:"async"`
}

func (h *Handler) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Invalid(c, "invalid request body")
		return
	}

	t, err := h.Svc.Create(requestContext(c), CreateInput{
		AccountID:      middleware.UserIDFromContext(c),
		DocumentID:     req.DocumentID,
		JobDescription: req.JobDescription,
		JobURL:         req.JobURL,
		Temperature:    req.Temperature,
		Async:          req.Async,
	})
	if err != nil {
		h.fail(c, err, "failed to create tailoring")
		return
	}
	status := http.StatusOK
	if req.Async {
		status = http.StatusAccepted
	}
	respond.JSON(c, status, t)
}

func (h *Handler) list(c *gin.Context) {
	limit := 20
	offset := 0
	if v := c.Query("limit"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			limit = parsed
		}
	}
	if limit < 1 {
		limit = 1
	}
	if limit > 50 {
		limit = 50
	}
	if v := c.Query("offset"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			offset = parsed
		}
	}
	items, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		h.fail(c, err, "failed to list tailorings")
		return
	}
	respond.OK(c, items)
}

func (h *Handler) get(c *gin.Context) {
	t, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to load tailoring")
		return
	}
	respond.OK(c, t)
}

func (h *Handler) diff(c *gin.Context) {
	html, err := h.Svc.Diff(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to build diff")
		return
	}
	respond.HTML(c, html)
}

func (h *Handler) artifact(kind ArtifactKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		rc, name, err := h.Svc.Artifact(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"), kind)
		if err != nil {
			h.fail(c, err, "failed to load artifact")
			return
		}
		defer rc.Close()
		respond.Attachment(c, name, "application/pdf", rc)
	}
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	var ferr *FailureError
	if errors.As(err, &ferr) {
		status, code := failureStatus(ferr.Code)
		respond.Error(c, status, code, sanitizeError(ferr.Err), gin.H{
			"tailoringId": ferr.TailoringID,
			"errorCode":   ferr.Code,
			"refunded":    true,
		})
		return
	}
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	case errors.Is(err, credits.ErrInsufficientCredits):
		respond.Error(c, http.StatusPaymentRequired, "insufficient_credits", "not enough credits", nil)
	case errors.Is(err, documents.ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "tailoring not found", nil)
	case errors.Is(err, ErrNotReady):
		respond.Error(c, http.StatusConflict, "not_ready", "tailoring has not completed", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Invalid(c, strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": "))
	case errors.Is(err, ErrJobFetch):
		respond.Error(c, http.StatusBadGateway, "job_fetch_failed", strings.TrimPrefix(err.Error(), ErrJobFetch.Error()+": "), nil)
	case errors.Is(err, documents.ErrExtraction):
		respond.Error(c, http.StatusUnprocessableEntity, "extraction_failed", err.Error(), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", msg, nil)
	}
}

func failureStatus(code string) (int, string) {
	switch code {
	case ErrorCodeValidation:
		return http.StatusBadRequest, "validation_error"
	case ErrorCodeExtraction:
		return http.StatusUnprocessableEntity, "extraction_failed"
	case ErrorCodeLLM, ErrorCodeLLMSchemaMismatch:
		return http.StatusBadGateway, "llm_error"
	case ErrorCodeLLMTimeout:
		return http.StatusGatewayTimeout, "llm_timeout"
	default:
		return http.StatusInternalServerError, strings.ToLower(code)
	}
}

func requestContext(c *gin.Context) context.Context {
	return WithRequestID(c.Request.Context(), middleware.RequestIDFromContext(c))
}
