package billing

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"cv-tailor/internal/shared/server/middleware"
	"cv-tailor/internal/shared/server/respond"
)

const maxWebhookBytes = 64 << 10

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/billing/checkout", h.checkout)
}

// RegisterPublicRoutes attaches the signature-verified webhook.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/billing/webhook", h.webhook)
}

type checkoutRequest struct {
	Credits int `json:"credits"`
}

func (h *Handler) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Invalid(c, "invalid json body")
		return
	}
	sess, err := h.Svc.StartCheckout(c.Request.Context(), middleware.UserIDFromContext(c), middleware.UserEmailFromContext(c), req.Credits)
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidInput):
			respond.Invalid(c, strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": "))
		case errors.Is(err, ErrNotConfigured):
			respond.Error(c, http.StatusServiceUnavailable, "billing_not_configured", "billing not configured", nil)
		default:
			respond.Error(c, http.StatusBadGateway, "payment_provider_error", "failed to create checkout session", nil)
		}
		return
	}
	respond.OK(c, sess)
}

func (h *Handler) webhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes))
	if err != nil {
		respond.Invalid(c, "failed to read body")
		return
	}
	if err := h.Svc.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature")); err != nil {
		switch {
		case errors.Is(err, ErrInvalidSignature):
			respond.Error(c, http.StatusBadRequest, "invalid_signature", "invalid webhook signature", nil)
		case errors.Is(err, ErrNotConfigured):
			respond.Error(c, http.StatusServiceUnavailable, "billing_not_configured", "billing not configured", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Invalid(c, err.Error())
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to process webhook", nil)
		}
		return
	}
	respond.OK(c, gin.H{"received": true})
}
