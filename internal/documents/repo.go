package documents

import (
	"context"
	"time"
)

// DocumentsRepo defines persistence operations for documents. Soft-deleted rows are invisible to every read.
type DocumentsRepo interface {
	Create(ctx context.Context, doc Document) error
	GetByID(ctx context.Context, accountID, documentID string) (Document, error)
	GetCurrentByAccount(ctx context.Context, accountID string) (Document, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Document, error)
	UpdateExtraction(ctx context.Context, accountID, documentID, extractedKey string, extractedAt time.Time) error
	SoftDelete(ctx context.Context, accountID, documentID string, at time.Time) error
}
