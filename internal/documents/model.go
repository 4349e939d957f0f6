package documents

import (
	"errors"
	"time"
)

var (
	ErrNotFound     = errors.New("document not found")
	ErrInvalidInput = errors.New("invalid document input")
	ErrTooLarge     = errors.New("document exceeds size limit")
	// ErrExtraction wraps the extractor's error for files that cannot be read as text.
	ErrExtraction = errors.New("document text extraction failed")
)

// Document represents an uploaded résumé owned by an account.
type Document struct {
	ID               string
	AccountID        string
	FileName         string
	MimeType         string
	SizeBytes        int64
	StorageKey       string
	ExtractedTextKey string
	ExtractedAt      *time.Time
	CreatedAt        time.Time
	DeletedAt        *time.Time
}
