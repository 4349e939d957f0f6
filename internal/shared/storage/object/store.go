package object

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrNotFound is returned when a storage key does not exist.
var ErrNotFound = errors.New("object not found")

// Store defines the contract for saving and retrieving binary objects.
type Store interface {
	// Save writes r under the owner's namespace with a random prefix and sniffs its mime type.
	Save(ctx context.Context, ownerID string, fileName string, r io.Reader) (storageKey string, sizeBytes int64, mimeType string, err error)
	// Put writes r at an exact storage key.
	Put(ctx context.Context, storageKey string, contentType string, r io.Reader) (int64, error)
	Open(ctx context.Context, storageKey string) (io.ReadCloser, error)
	Delete(ctx context.Context, storageKey string) error
}

// PresignedUpload describes a direct client upload target.
type PresignedUpload struct {
	StorageKey string            `json:"storageKey"`
	URL        string            `json:"uploadUrl"`
	Method     string            `json:"method"`
	Headers    map[string]string `json:"headers"`
	ExpiresAt  time.Time         `json:"expiresAt"`
}

// ObjectInfo is the metadata of a stored object.
type ObjectInfo struct {
	SizeBytes   int64
	ContentType string
}

// Presigner is implemented by stores that accept direct uploads from clients.
type Presigner interface {
	PresignUpload(ctx context.Context, ownerID, fileName, contentType string, ttl time.Duration) (PresignedUpload, error)
	Stat(ctx context.Context, storageKey string) (ObjectInfo, error)
}

// ReadAll opens a key and reads it fully.
func ReadAll(ctx context.Context, store Store, storageKey string) ([]byte, error) {
	rc, err := store.Open(ctx, storageKey)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
