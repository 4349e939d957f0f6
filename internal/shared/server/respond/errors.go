package respond

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"cv-tailor/internal/shared/telemetry"
)

// ErrorBody is the error envelope payload: a stable code, a human message
// and optional structured details.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorResponse wraps ErrorBody under "error".
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// Error aborts the request with the error envelope. Server errors log at
// error level, everything else at warn.
func Error(c *gin.Context, status int, code, message string, details any) {
	fields := map[string]any{
		"status":     status,
		"code":       code,
		"message":    message,
		"route":      c.FullPath(),
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if accountID := c.GetString("userId"); accountID != "" {
		fields["account_id"] = accountID
	}
	if status >= http.StatusInternalServerError {
		telemetry.Error("http.error", fields)
	} else {
		telemetry.Warn("http.error", fields)
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		Error: ErrorBody{Code: code, Message: message, Details: details},
	})
}

// Invalid is a 400 validation_error.
func Invalid(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, "validation_error", message, nil)
}
