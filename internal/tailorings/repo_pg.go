package tailorings

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"

	"cv-tailor/internal/tailor"
)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

const tailoringColumns = `id, account_id, document_id, job_description, job_url, temperature, response_format, provider, model, status,
matching_score, missing_keywords, tailored_cv, merged_cv, cover_letter, cv_key, cover_letter_key, cv_truncated, cover_letter_truncated,
reservation_id, error_code, error_message, created_at, started_at, completed_at`

type rowScanner interface {
	Scan(dest ...any) error
}

// Create inserts a queued tailoring.
func (r *PGRepo) Create(ctx context.Context, t Tailoring) error {
	const query = `
INSERT INTO tailorings (id, account_id, document_id, job_description, job_url, temperature, response_format, provider, model, status, reservation_id, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	_, err := r.DB.ExecContext(ctx, query,
		t.ID,
		t.AccountID,
		t.DocumentID,
		t.JobDescription,
		nullString(t.JobURL),
		t.Temperature,
		t.ResponseFormat,
		t.Provider,
		t.Model,
		t.Status,
		nullString(t.ReservationID),
		t.CreatedAt,
	)
	return err
}

func (r *PGRepo) GetByID(ctx context.Context, id string) (Tailoring, error) {
	query := `SELECT ` + tailoringColumns + ` FROM tailorings WHERE id = $1`
	t, err := scanTailoring(r.DB.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Tailoring{}, ErrNotFound
	}
	return t, err
}

func (r *PGRepo) ListByAccount(ctx context.Context, accountID string, limit, offset int) ([]Tailoring, error) {
	limit, offset = clampPage(limit, offset)
	query := `
SELECT ` + tailoringColumns + `
FROM tailorings
WHERE account_id = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3`

	rows, err := r.DB.QueryContext(ctx, query, accountID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []Tailoring{}
	for rows.Next() {
		t, err := scanTailoring(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *PGRepo) MarkProcessing(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	const query = `UPDATE tailorings SET status = $2, started_at = $3 WHERE id = $1 AND status = $4`
	res, err := r.DB.ExecContext(ctx, query, id, StatusProcessing, startedAt, StatusQueued)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (r *PGRepo) Complete(ctx context.Context, id string, c Completion) error {
	const query = `
UPDATE tailorings
SET status = $2, matching_score = $3, missing_keywords = $4, tailored_cv = $5, merged_cv = $6, cover_letter = $7,
    cv_key = $8, cover_letter_key = $9, cv_truncated = $10, cover_letter_truncated = $11, completed_at = $12
WHERE id = $1`

	var score sql.NullInt64
	if c.Result.MatchingScore != nil {
		score = sql.NullInt64{Int64: int64(*c.Result.MatchingScore), Valid: true}
	}
	keywords := c.Result.MissingKeywords
	if keywords == nil {
		keywords = []string{}
	}
	res, err := r.DB.ExecContext(ctx, query,
		id,
		StatusCompleted,
		score,
		pq.Array(keywords),
		c.Result.TailoredCV,
		c.MergedCV,
		c.Result.CoverLetter,
		c.CVKey,
		c.CoverLetterKey,
		c.CVTruncated,
		c.CoverLetterTruncated,
		c.CompletedAt,
	)
	return affectedOne(res, err)
}

func (r *PGRepo) Fail(ctx context.Context, id, code, message string, completedAt time.Time) error {
	const query = `UPDATE tailorings SET status = $2, error_code = $3, error_message = $4, completed_at = $5 WHERE id = $1`
	res, err := r.DB.ExecContext(ctx, query, id, StatusFailed, code, message, completedAt)
	return affectedOne(res, err)
}

func affectedOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTailoring(row rowScanner) (Tailoring, error) {
	var (
		t                                 Tailoring
		jobURL, reservationID             sql.NullString
		tailoredCV, mergedCV, coverLetter sql.NullString
		cvKey, coverLetterKey             sql.NullString
		errorCode, errorMessage           sql.NullString
		score                             sql.NullInt64
		keywords                          []string
		startedAt, completedAt            sql.NullTime
	)
	err := row.Scan(
		&t.ID,
		&t.AccountID,
		&t.DocumentID,
		&t.JobDescription,
		&jobURL,
		&t.Temperature,
		&t.ResponseFormat,
		&t.Provider,
		&t.Model,
		&t.Status,
		&score,
		pq.Array(&keywords),
		&tailoredCV,
		&mergedCV,
		&coverLetter,
		&cvKey,
		&coverLetterKey,
		&t.CVTruncated,
		&t.CoverLetterTruncated,
		&reservationID,
		&errorCode,
		&errorMessage,
		&t.CreatedAt,
		&startedAt,
		&completedAt,
	)
	if err != nil {
		return Tailoring{}, err
	}
	t.JobURL = jobURL.String
	t.ReservationID = reservationID.String
	t.MergedCV = mergedCV.String
	t.CVKey = cvKey.String
	t.CoverLetterKey = coverLetterKey.String
	if t.Status == StatusCompleted {
		result := tailor.Result{
			MissingKeywords: keywords,
			TailoredCV:      tailoredCV.String,
			CoverLetter:     coverLetter.String,
		}
		if score.Valid {
			v := int(score.Int64)
			result.MatchingScore = &v
		}
		t.Result = &result
	}
	if errorCode.Valid {
		t.ErrorCode = &errorCode.String
	}
	if errorMessage.Valid {
		t.ErrorMessage = &errorMessage.String
	}
	if startedAt.Valid {
		t.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
