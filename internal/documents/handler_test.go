package documents

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
)

func multipartBody(t *testing.T, name, content string) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	fileWriter, err := writer.CreateFormFile("file", name)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fileWriter.Write([]byte(content)); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return body, writer.FormDataContentType()
}

func TestDocumentsUploadAndCurrent(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(func(c *gin.Context) {
		c.Set("userId", "acct-1")
		c.Next()
	})
	NewHandler(newTestService(t)).RegisterRoutes(router.Group("/api/v1"))

	body, contentType := multipartBody(t, "hello.txt", "Jane Doe\n+44 7700 900123\n")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", resp.Code, resp.Body.String())
	}
	var created DocumentResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.DocumentID == "" || !created.Extracted {
		t.Fatalf("unexpected response %+v", created)
	}

	respGet := httptest.NewRecorder()
	router.ServeHTTP(respGet, httptest.NewRequest(http.MethodGet, "/api/v1/documents/current", nil))
	if respGet.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", respGet.Code)
	}
	var current DocumentResponse
	if err := json.NewDecoder(respGet.Body).Decode(&current); err != nil {
		t.Fatalf("decode current response: %v", err)
	}
	if current.FileName != "hello.txt" {
		t.Fatalf("expected fileName hello.txt, got %s", current.FileName)
	}

	respProfile := httptest.NewRecorder()
	router.ServeHTTP(respProfile, httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+created.DocumentID+"/profile", nil))
	if respProfile.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", respProfile.Code)
	}

	respDelete := httptest.NewRecorder()
	router.ServeHTTP(respDelete, httptest.NewRequest(http.MethodDelete, "/api/v1/documents/"+created.DocumentID, nil))
	if respDelete.Code != http.StatusNoContent {
		t.Fatalf("expected status 204, got %d", respDelete.Code)
	}
	respGone := httptest.NewRecorder()
	router.ServeHTTP(respGone, httptest.NewRequest(http.MethodGet, "/api/v1/documents/current", nil))
	if respGone.Code != http.StatusNotFound {
		t.Fatalf("expected status 404 after delete, got %d", respGone.Code)
	}
}

func TestDocumentsUploadRejectsExtension(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewHandler(newTestService(t)).RegisterRoutes(router.Group("/api/v1"))

	body, contentType := multipartBody(t, "cv.png", "png")
	req := httptest.NewRequest(http.MethodPost, "/api/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", resp.Code)
	}
}
