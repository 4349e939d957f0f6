package documents

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"cv-tailor/internal/shared/server/middleware"
	"cv-tailor/internal/shared/server/respond"
)

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches document routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/documents", h.upload)
	rg.POST("/documents/presign", h.presign)
	rg.POST("/documents/from-storage", h.createFromStorage)
	rg.GET("/documents/current", h.current)
	rg.GET("/documents", h.list)
	rg.DELETE("/documents/:id", h.delete)
	rg.GET("/documents/:id/profile", h.profile)
}

func (h *Handler) upload(c *gin.Context) {
	accountID := middleware.UserIDFromContext(c)
	// Multipart framing needs headroom over the file limit.
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, MaxUploadSize+1<<20)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds 10MB", nil)
			return
		}
		respond.Invalid(c, "file is required")
		return
	}
	if fileHeader.Size > MaxUploadSize {
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds 10MB", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Invalid(c, "unable to read file")
		return
	}
	defer file.Close()

	doc, err := h.Svc.Upload(c.Request.Context(), accountID, fileHeader.Filename, file)
	if err != nil {
		h.fail(c, err, "failed to upload document")
		return
	}

	respond.Created(c, toResponse(doc))
}

type presignRequest struct {
	FileName    string `json:"fileName"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

func (h *Handler) presign(c *gin.Context) {
	var req presignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Invalid(c, "invalid request body")
		return
	}
	upload, err := h.Svc.Presign(c.Request.Context(), middleware.UserIDFromContext(c),
		strings.TrimSpace(req.FileName), strings.TrimSpace(req.ContentType), req.SizeBytes)
	if err != nil {
		h.fail(c, err, "failed to generate upload url")
		return
	}
	respond.OK(c, upload)
}

type createFromStorageRequest struct {
	StorageKey string `json:"storageKey"`
	FileName   string `json:"fileName"`
}

func (h *Handler) createFromStorage(c *gin.Context) {
	var req createFromStorageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Invalid(c, "invalid request body")
		return
	}
	req.StorageKey = strings.TrimSpace(req.StorageKey)
	if req.StorageKey == "" {
		respond.Invalid(c, "storageKey is required")
		return
	}

	doc, err := h.Svc.CreateFromStorage(c.Request.Context(), middleware.UserIDFromContext(c), req.StorageKey, strings.TrimSpace(req.FileName))
	if err != nil {
		h.fail(c, err, "failed to create document")
		return
	}
	respond.Created(c, toResponse(doc))
}

func (h *Handler) current(c *gin.Context) {
	doc, err := h.Svc.Current(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		h.fail(c, err, "failed to fetch document")
		return
	}
	respond.OK(c, toResponse(doc))
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

	docs, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), limit, offset)
	if err != nil {
		h.fail(c, err, "failed to list documents")
		return
	}
	respond.OK(c, toResponses(docs))
}

func (h *Handler) delete(c *gin.Context) {
	if err := h.Svc.Delete(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id")); err != nil {
		h.fail(c, err, "failed to delete document")
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) profile(c *gin.Context) {
	p, err := h.Svc.Profile(c.Request.Context(), middleware.UserIDFromContext(c), c.Param("id"))
	if err != nil {
		h.fail(c, err, "failed to extract profile")
		return
	}
	respond.OK(c, p)
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "document not found", nil)
	case errors.Is(err, ErrInvalidInput):
		respond.Invalid(c, strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": "))
	case errors.Is(err, ErrTooLarge):
		respond.Error(c, http.StatusRequestEntityTooLarge, "file_too_large", "file exceeds 10MB", nil)
	case errors.Is(err, ErrExtraction):
		respond.Error(c, http.StatusUnprocessableEntity, "extraction_failed", strings.TrimPrefix(err.Error(), ErrExtraction.Error()+": "), nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", msg, nil)
	}
}
