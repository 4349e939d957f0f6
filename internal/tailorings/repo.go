package tailorings

import (
	"context"
	"time"
)

// Repo persists tailorings.
type Repo interface {
	Create(ctx context.Context, t Tailoring) error
	GetByID(ctx context.Context, id string) (Tailoring, error)
	ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Tailoring, error)
	// MarkProcessing moves a queued tailoring to processing and reports whether it did.
	MarkProcessing(ctx context.Context, id string, startedAt time.Time) (bool, error)
	Complete(ctx context.Context, id string, c Completion) error
	Fail(ctx context.Context, id, code, message string, completedAt time.Time) error
}
