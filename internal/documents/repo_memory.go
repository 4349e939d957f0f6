package documents

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"
)

// MemoryRepo keeps documents in process memory for dev runs and tests.
type MemoryRepo struct {
	mu   sync.RWMutex
	byID map[string]*memDoc
	seq  uint64
}

// memDoc remembers insertion order to break CreatedAt ties.
type memDoc struct {
	Document
	seq uint64
}

// NewMemoryRepo constructs an empty MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{byID: make(map[string]*memDoc)}
}

func (r *MemoryRepo) Create(ctx context.Context, doc Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byID[doc.ID]; exists {
		return fmt.Errorf("document %s already exists", doc.ID)
	}
	r.seq++
	r.byID[doc.ID] = &memDoc{Document: doc, seq: r.seq}
	return nil
}

// live returns the caller's live document. Documents of other accounts are
// reported as missing. r.mu must be held.
func (r *MemoryRepo) live(accountID, documentID string) (*Document, error) {
	m, ok := r.byID[documentID]
	if !ok || m.AccountID != accountID || m.DeletedAt != nil {
		return nil, ErrNotFound
	}
	return &m.Document, nil
}

func (r *MemoryRepo) GetByID(ctx context.Context, accountID, documentID string) (Document, error) {
	if err := ctx.Err(); err != nil {
		return Document{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	doc, err := r.live(accountID, documentID)
	if err != nil {
		return Document{}, err
	}
	return *doc, nil
}

func (r *MemoryRepo) GetCurrentByAccount(ctx context.Context, accountID string) (Document, error) {
	docs, err := r.ListByAccount(ctx, accountID, 1, 0)
	if err != nil {
		return Document{}, err
	}
	if len(docs) == 0 {
		return Document{}, ErrNotFound
	}
	return docs[0], nil
}

// UpdateExtraction records the extracted text key once; later calls keep the first key.
func (r *MemoryRepo) UpdateExtraction(ctx context.Context, accountID, documentID, extractedKey string, extractedAt time.Time) error {
	return r.mutate(ctx, accountID, documentID, func(doc *Document) {
		if doc.ExtractedTextKey == "" {
			doc.ExtractedTextKey = extractedKey
			doc.ExtractedAt = &extractedAt
		}
	})
}

func (r *MemoryRepo) SoftDelete(ctx context.Context, accountID, documentID string, at time.Time) error {
	return r.mutate(ctx, accountID, documentID, func(doc *Document) {
		doc.DeletedAt = &at
	})
}

func (r *MemoryRepo) mutate(ctx context.Context, accountID, documentID string, fn func(*Document)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	doc, err := r.live(accountID, documentID)
	if err != nil {
		return err
	}
	fn(doc)
	return nil
}

// ListByAccount returns live documents newest first, honoring limit/offset.
// Ties on CreatedAt fall back to insertion order.
func (r *MemoryRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Document, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	var live []memDoc
	for _, m := range r.byID {
		if m.AccountID == accountID && m.DeletedAt == nil {
			live = append(live, *m)
		}
	}
	r.mu.RUnlock()

	slices.SortFunc(live, func(a, b memDoc) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return int(b.seq) - int(a.seq)
	})

	offset = max(offset, 0)
	if offset >= len(live) {
		return []Document{}, nil
	}
	end := len(live)
	if limit > 0 {
		end = min(end, offset+limit)
	}
	docs := make([]Document, 0, end-offset)
	for _, m := range live[offset:end] {
		docs = append(docs, m.Document)
	}
	return docs, nil
}
