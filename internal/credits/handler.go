package credits

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"cv-tailor/internal/shared/server/middleware"
	"cv-tailor/internal/shared/server/respond"
)

// Handler exposes credit endpoints.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches credit routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/credits", h.getCredits)
}

// RegisterDevRoutes attaches dev-only credit routes.
func (h *Handler) RegisterDevRoutes(rg *gin.RouterGroup) {
	rg.POST("/credits/adjust", h.adjust)
}

func (h *Handler) getCredits(c *gin.Context) {
	accountID := middleware.UserIDFromContext(c)
	limit, _ := strconv.Atoi(c.Query("limit"))

	balance, err := h.Svc.Balance(c.Request.Context(), accountID)
	if err != nil {
		h.fail(c, err, "failed to fetch credits")
		return
	}
	entries, err := h.Svc.Entries(c.Request.Context(), accountID, limit)
	if err != nil {
		h.fail(c, err, "failed to fetch credit history")
		return
	}
	if entries == nil {
		entries = []Entry{}
	}
	respond.OK(c, gin.H{
		"balance": balance,
		"entries": entries,
	})
}

type adjustRequest struct {
	Account string `json:"account"`
	Delta   int    `json:"delta"`
	Note    string `json:"note"`
}

func (h *Handler) adjust(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Invalid(c, "invalid json body")
		return
	}
	if req.Delta == 0 {
		respond.Invalid(c, "delta must be non-zero")
		return
	}

	var (
		entry Entry
		err   error
	)
	if req.Account != "" {
		entry, err = h.Svc.AdjustByEmailOrID(c.Request.Context(), req.Account, req.Delta, req.Note)
	} else {
		entry, err = h.Svc.AdjustCredits(c.Request.Context(), middleware.UserIDFromContext(c), req.Delta, KindAdjust, req.Note)
	}
	if err != nil {
		h.fail(c, err, "failed to adjust credits")
		return
	}
	respond.OK(c, gin.H{
		"balance": entry.BalanceAfter,
		"entry":   entry,
	})
}

func (h *Handler) fail(c *gin.Context, err error, msg string) {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		respond.Error(c, http.StatusRequestTimeout, "timeout", "request canceled", nil)
	case errors.Is(err, ErrAccountNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "account not found", nil)
	case errors.Is(err, ErrInsufficientCredits):
		respond.Error(c, http.StatusPaymentRequired, "insufficient_credits", "not enough credits", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", msg, nil)
	}
}
