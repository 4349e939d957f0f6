package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
)

// captureStdout runs fn and returns the last JSON log line written to stdout.
func captureStdout(t *testing.T, fn func()) map[string]any {
	t.Helper()
	origStdout := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w
	defer func() {
		os.Stdout = origStdout
	}()

	fn()

	_ = w.Close()
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		t.Fatalf("read log output: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	var payload map[string]any
	if err := json.Unmarshal([]byte(lines[len(lines)-1]), &payload); err != nil {
		t.Fatalf("decode log json: %v (%q)", err, buf.String())
	}
	return payload
}

func TestLoggingIncludesRequestFields(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(RequestID(), func(c *gin.Context) {
		c.Set(userIDKey, "acct-1")
		c.Next()
	}, Logging())
	router.GET("/api/v1/tailorings/:id", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	payload := captureStdout(t, func() {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/tailorings/t-1", nil)
		req.Header.Set("X-Request-Id", "req-1")
		router.ServeHTTP(httptest.NewRecorder(), req)
	})

	want := map[string]any{
		"msg":          "request.complete",
		"level":        "info",
		"request_id":   "req-1",
		"account_id":   "acct-1",
		"route":        "/api/v1/tailorings/:id",
		"tailoring_id": "t-1",
	}
	for key, val := range want {
		if payload[key] != val {
			t.Fatalf("%s = %v, want %v", key, payload[key], val)
		}
	}
	if _, ok := payload["duration_ms"]; !ok {
		t.Fatalf("missing duration_ms")
	}
}

func TestLoggingLevelFollowsStatus(t *testing.T) {
	gin.SetMode(gin.TestMode)

	router := gin.New()
	router.Use(Logging())
	router.GET("/bad", func(c *gin.Context) { c.Status(http.StatusBadRequest) })
	router.GET("/boom", func(c *gin.Context) { c.Status(http.StatusBadGateway) })

	cases := map[string]string{"/bad": "warn", "/boom": "error"}
	for path, level := range cases {
		payload := captureStdout(t, func() {
			router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
		})
		if payload["level"] != level {
			t.Fatalf("%s: level = %v, want %s", path, payload["level"], level)
		}
		if _, ok := payload["account_id"]; ok {
			t.Fatalf("%s: unexpected account_id for anonymous request", path)
		}
	}
}
