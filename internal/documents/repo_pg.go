package documents

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// PGRepo implements DocumentsRepo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const documentColumns = `id, account_id, file_name, mime_type, size_bytes, storage_key, extracted_text_key, extracted_at, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts a new document.
func (r *PGRepo) Create(ctx context.Context, doc Document) error {
	const query = `
INSERT INTO documents (id, account_id, file_name, mime_type, size_bytes, storage_key, extracted_text_key, extracted_at, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	var extractedKey sql.NullString
	if doc.ExtractedTextKey != "" {
		extractedKey = sql.NullString{String: doc.ExtractedTextKey, Valid: true}
	}
	var extractedAt sql.NullTime
	if doc.ExtractedAt != nil {
		extractedAt = sql.NullTime{Time: *doc.ExtractedAt, Valid: true}
	}

	_, err := r.DB.ExecContext(ctx, query,
		doc.ID,
		doc.AccountID,
		doc.FileName,
		doc.MimeType,
		doc.SizeBytes,
		doc.StorageKey,
		extractedKey,
		extractedAt,
		doc.CreatedAt,
	)
	return err
}

// GetCurrentByAccount returns the latest live document for an account.
func (r *PGRepo) GetCurrentByAccount(ctx context.Context, accountID string) (Document, error) {
	query := `
SELECT ` + documentColumns + `
FROM documents
WHERE account_id = $1 AND deleted_at IS NULL
ORDER BY created_at DESC
LIMIT 1`
	return scanOne(r.DB.QueryRowContext(ctx, query, accountID))
}

// GetByID fetches a live document by ID for an account.
func (r *PGRepo) GetByID(ctx context.Context, accountID, documentID string) (Document, error) {
	query := `
SELECT ` + documentColumns + `
FROM documents
WHERE account_id = $1 AND id = $2 AND deleted_at IS NULL
LIMIT 1`
	return scanOne(r.DB.QueryRowContext(ctx, query, accountID, documentID))
}

// ListByAccount lists documents ordered newest-first.
func (r *PGRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	if offset < 0 {
		offset = 0
	}
	query := `
SELECT ` + documentColumns + `
FROM documents
WHERE account_id = $1 AND deleted_at IS NULL
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, rows.Err()
}

// UpdateExtraction stores the extracted text metadata for a document.
func (r *PGRepo) UpdateExtraction(ctx context.Context, accountID, documentID, extractedKey string, extractedAt time.Time) error {
	const query = `
UPDATE documents
SET extracted_text_key = $1, extracted_at = $2
WHERE account_id = $3 AND id = $4 AND extracted_text_key IS NULL`
	_, err := r.DB.ExecContext(ctx, query, extractedKey, extractedAt, accountID, documentID)
	return err
}

// SoftDelete hides a document from every read.
func (r *PGRepo) SoftDelete(ctx context.Context, accountID, documentID string, at time.Time) error {
	const query = `
UPDATE documents
SET deleted_at = $1
WHERE account_id = $2 AND id = $3 AND deleted_at IS NULL`
	res, err := r.DB.ExecContext(ctx, query, at, accountID, documentID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanOne(row *sql.Row) (Document, error) {
	doc, err := scanDocument(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, ErrNotFound
	}
	return doc, err
}

func scanDocument(row rowScanner) (Document, error) {
	var doc Document
	var extractedKey sql.NullString
	var extractedAt sql.NullTime
	if err := row.Scan(
		&doc.ID,
		&doc.AccountID,
		&doc.FileName,
		&doc.MimeType,
		&doc.SizeBytes,
		&doc.StorageKey,
		&extractedKey,
		&extractedAt,
		&doc.CreatedAt,
	); err != nil {
		return Document{}, err
	}
	if extractedKey.Valid {
		doc.ExtractedTextKey = extractedKey.String
	}
	if extractedAt.Valid {
		doc.ExtractedAt = &extractedAt.Time
	}
	return doc, nil
}

var _ DocumentsRepo = (*PGRepo)(nil)
