package s3

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"

	"cv-tailor/internal/shared/storage/object"
)

// fakeS3 is a path-style S3 endpoint holding objects in memory.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
}

func (f *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := r.URL.Path
	switch r.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(r.Body)
		f.objects[key] = body
		f.types[key] = r.Header.Get("Content-Type")
		w.Header().Set("ETag", `"etag"`)
		w.WriteHeader(http.StatusOK)
	case http.MethodGet, http.MethodHead:
		body, ok := f.objects[key]
		if !ok {
			if r.Method == http.MethodHead {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = io.WriteString(w, `<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code><Message>missing</Message></Error>`)
			return
		}
		w.Header().Set("Content-Type", f.types[key])
		w.Header().Set("Content-Length", strconv.Itoa(len(body)))
		w.WriteHeader(http.StatusOK)
		if r.Method == http.MethodGet {
			_, _ = w.Write(body)
		}
	case http.MethodDelete:
		delete(f.objects, key)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func newFakeStore(t *testing.T) (*Store, *fakeS3) {
	t.Helper()
	t.Setenv("AWS_REQUEST_CHECKSUM_CALCULATION", "when_required")
	t.Setenv("AWS_RESPONSE_CHECKSUM_VALIDATION", "when_required")
	fake := &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
	server := httptest.NewServer(fake)
	t.Cleanup(server.Close)

	store, err := New(context.Background(), Options{
		Region:    "eu-west-1",
		Bucket:    "cvs",
		Prefix:    "/tenant/",
		Endpoint:  server.URL,
		AccessKey: "test",
		SecretKey: "test",
	})
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return store, fake
}

func TestStoreRoundTripAgainstCompatibleEndpoint(t *testing.T) {
	store, fake := newFakeStore(t)
	ctx := context.Background()

	key, size, mimeType, err := store.Save(ctx, "acct-1", "cv.txt", strings.NewReader("plain résumé text"))
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if size != int64(len("plain résumé text")) || !strings.HasPrefix(mimeType, "text/plain") {
		t.Fatalf("unexpected size %d / type %q", size, mimeType)
	}
	if _, ok := fake.objects["/cvs/tenant/"+key]; !ok {
		t.Fatalf("expected object under bucket and prefix, have %v", fake.objects)
	}

	rc, err := store.Open(ctx, key)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	got, _ := io.ReadAll(rc)
	rc.Close()
	if string(got) != "plain résumé text" {
		t.Fatalf("read back %q", got)
	}

	info, err := store.Stat(ctx, key)
	if err != nil || info.SizeBytes != size {
		t.Fatalf("stat = %+v, %v", info, err)
	}

	if err := store.Delete(ctx, key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Open(ctx, key); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
	if _, err := store.Stat(ctx, key); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound from stat, got %v", err)
	}
}

func TestPresignUploadTargetsUploadsPrefix(t *testing.T) {
	store, _ := newFakeStore(t)
	up, err := store.PresignUpload(context.Background(), "acct-1", "cv.pdf", "application/pdf", time.Minute)
	if err != nil {
		t.Fatalf("presign: %v", err)
	}
	if !strings.HasPrefix(up.StorageKey, "uploads/") || up.Method != http.MethodPut {
		t.Fatalf("unexpected presign %+v", up)
	}
	if !strings.Contains(up.URL, "/cvs/tenant/uploads/") || up.Headers["Content-Type"] != "application/pdf" {
		t.Fatalf("unexpected presigned url %s headers %v", up.URL, up.Headers)
	}
}

func TestApplyPrefix(t *testing.T) {
	for in, want := range map[[2]string]string{
		{"", "acct/cv.pdf"}:        "acct/cv.pdf",
		{"root", "acct/cv.pdf"}:    "root/acct/cv.pdf",
		{"/root/", "/acct/cv.pdf"}: "root/acct/cv.pdf",
		{"root/sub", "cv.pdf"}:     "root/sub/cv.pdf",
		{"root", ""}:               "root",
	} {
		if got := applyPrefix(in[0], in[1]); got != want {
			t.Fatalf("applyPrefix(%q, %q) = %q, want %q", in[0], in[1], got, want)
		}
	}
}

func TestApplySSE(t *testing.T) {
	in := &s3.PutObjectInput{}
	(&Store{sse: true, kmsKeyID: "key-1"}).applySSE(in)
	if in.ServerSideEncryption != s3types.ServerSideEncryptionAwsKms || aws.ToString(in.SSEKMSKeyId) != "key-1" {
		t.Fatalf("expected kms encryption, got %q", in.ServerSideEncryption)
	}

	in = &s3.PutObjectInput{}
	(&Store{sse: true}).applySSE(in)
	if in.ServerSideEncryption != s3types.ServerSideEncryptionAes256 {
		t.Fatalf("expected AES256 without a kms key, got %q", in.ServerSideEncryption)
	}

	in = &s3.PutObjectInput{}
	(&Store{}).applySSE(in)
	if in.ServerSideEncryption != "" {
		t.Fatalf("expected no sse for custom endpoint, got %q", in.ServerSideEncryption)
	}
}
