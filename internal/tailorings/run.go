package tailorings

import (
	"time"

	"cv-tailor/internal/render"
	"cv-tailor/internal/tailor"
)

// Run carries one tailoring through the pipeline. Each step reads what
// earlier steps filled in and adds its own output.
type Run struct {
	Tailoring   Tailoring
	RequestID   string
	Format      tailor.Format
	Temperature float64
	Resume      string
	Job         string

	Raw         string
	Result      tailor.Result
	MergedCV    string
	CV          render.Output
	CoverLetter render.Output
	CVKey       string
	LetterKey   string

	startedAt time.Time
}

func newRun(t Tailoring, requestID string, startedAt time.Time) *Run {
	return &Run{
		Tailoring:   t,
		RequestID:   requestID,
		Format:      tailor.Format(t.ResponseFormat),
		Temperature: t.Temperature,
		Job:         t.JobDescription,
		startedAt:   startedAt,
	}
}

func (r *Run) fields() map[string]any {
	return map[string]any{
		"request_id":   r.RequestID,
		"account_id":   r.Tailoring.AccountID,
		"document_id":  r.Tailoring.DocumentID,
		"tailoring_id": r.Tailoring.ID,
	}
}
