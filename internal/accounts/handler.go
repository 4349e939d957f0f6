package accounts

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	sharedauth "cv-tailor/internal/shared/auth"
	"cv-tailor/internal/shared/server/middleware"
	"cv-tailor/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterPublicRoutes attaches the routes that do not require a token.
func (h *Handler) RegisterPublicRoutes(rg *gin.RouterGroup) {
	rg.POST("/auth/register", h.register)
	rg.POST("/auth/login", h.login)
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
}

// IssueToken signs a session token for the account.
func IssueToken(account Account) (string, error) {
	return sharedauth.SignJWT(sharedauth.Claims{
		Sub:   account.ID,
		Email: account.Email,
		Name:  account.Name,
		Plan:  account.Plan,
	})
}

type registerRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Name     string `json:"name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Invalid(c, "invalid json body")
		return
	}
	account, err := h.Svc.Register(c.Request.Context(), req.Email, req.Password, req.Name)
	if err != nil {
		switch {
		case errors.Is(err, ErrEmailTaken):
			respond.Error(c, http.StatusConflict, "email_taken", "email already registered", nil)
		case errors.Is(err, ErrInvalidInput):
			respond.Invalid(c, strings.TrimPrefix(err.Error(), ErrInvalidInput.Error()+": "))
		default:
			respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to register", nil)
		}
		return
	}
	h.session(c, http.StatusCreated, account)
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Invalid(c, "invalid json body")
		return
	}
	account, err := h.Svc.Authenticate(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, ErrInvalidCredentials) {
			respond.Error(c, http.StatusUnauthorized, "invalid_credentials", "invalid email or password", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to log in", nil)
		return
	}
	h.session(c, http.StatusOK, account)
}

func (h *Handler) session(c *gin.Context, status int, account Account) {
	token, err := IssueToken(account)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to issue token", nil)
		return
	}
	respond.JSON(c, status, gin.H{
		"token":   token,
		"account": account,
	})
}

func (h *Handler) me(c *gin.Context) {
	if h.Svc == nil {
		respond.Error(c, http.StatusInternalServerError, "internal_error", "service unavailable", nil)
		return
	}
	account, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, "not_found", "account not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load account", nil)
		return
	}
	respond.OK(c, account)
}
