package tailorings

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-memory Repo implementation.
type MemoryRepo struct {
	mu    sync.RWMutex
	items map[string]Tailoring
}

// NewMemoryRepo constructs an in-memory repo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{items: make(map[string]Tailoring)}
}

func (r *MemoryRepo) Create(ctx context.Context, t Tailoring) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[t.ID] = t
	return nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, id string) (Tailoring, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.items[id]
	if !ok {
		return Tailoring{}, ErrNotFound
	}
	return t, nil
}

func (r *MemoryRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Tailoring, error) {
	limit, offset = clampPage(limit, offset)
	r.mu.RLock()
	var out []Tailoring
	for _, t := range r.items {
		if t.AccountID == accountID {
			out = append(out, t)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []Tailoring{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *MemoryRepo) MarkProcessing(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return false, ErrNotFound
	}
	if t.Status != StatusQueued {
		return false, nil
	}
	t.Status = StatusProcessing
	t.StartedAt = &startedAt
	r.items[id] = t
	return true, nil
}

func (r *MemoryRepo) Complete(ctx context.Context, id string, c Completion) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	result := c.Result
	result.MissingKeywords = append([]string(nil), c.Result.MissingKeywords...)
	t.Status = StatusCompleted
	t.Result = &result
	t.MergedCV = c.MergedCV
	t.CVKey = c.CVKey
	t.CoverLetterKey = c.CoverLetterKey
	t.CVTruncated = c.CVTruncated
	t.CoverLetterTruncated = c.CoverLetterTruncated
	completedAt := c.CompletedAt
	t.CompletedAt = &completedAt
	r.items[id] = t
	return nil
}

func (r *MemoryRepo) Fail(ctx context.Context, id, code, message string, completedAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.items[id]
	if !ok {
		return ErrNotFound
	}
	t.Status = StatusFailed
	t.ErrorCode = &code
	t.ErrorMessage = &message
	t.CompletedAt = &completedAt
	r.items[id] = t
	return nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
