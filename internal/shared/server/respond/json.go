package respond

import (
	"io"
	"mime"
	"net/http"

	"github.com/gin-gonic/gin"
)

// JSON writes a JSON response with the given status.
func JSON(c *gin.Context, status int, payload any) {
	c.JSON(status, payload)
}

// OK writes a 200 OK JSON response.
func OK(c *gin.Context, payload any) {
	JSON(c, http.StatusOK, payload)
}

// Created writes a 201 JSON response.
func Created(c *gin.Context, payload any) {
	JSON(c, http.StatusCreated, payload)
}

// HTML writes an HTML fragment.
func HTML(c *gin.Context, body string) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(body))
}

// Attachment streams r as a download named fileName.
func Attachment(c *gin.Context, fileName, contentType string, r io.Reader) {
	c.Header("Content-Type", contentType)
	c.Header("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": fileName}))
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, r)
}
