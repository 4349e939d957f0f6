package tailorings

import (
	"time"

	"cv-tailor/internal/tailor"
)

const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// ArtifactKind names one generated PDF.
type ArtifactKind string

const (
	ArtifactTailoredCV  ArtifactKind = "tailored_cv"
	ArtifactCoverLetter ArtifactKind = "cover_letter"
)

// FileName is the attachment name used for downloads.
func (k ArtifactKind) FileName() string {
	return string(k) + ".pdf"
}

// Tailoring is one CV tailoring request and its outcome.
type Tailoring struct {
	ID                   string         `json:"id"`
	AccountID            string         `json:"accountId"`
	DocumentID           string         `json:"documentId"`
	JobDescription       string         `json:"jobDescription"`
	JobURL               string         `json:"jobUrl,omitempty"`
	Temperature          float64        `json:"temperature"`
	ResponseFormat       string         `json:"responseFormat"`
	Provider             string         `json:"provider"`
	Model                string         `json:"model"`
	Status               string         `json:"status"`
	Result               *tailor.Result `json:"result,omitempty"`
	MergedCV             string         `json:"mergedCv,omitempty"`
	CVKey                string         `json:"-"`
	CoverLetterKey       string         `json:"-"`
	CVTruncated          bool           `json:"cvTruncated"`
	CoverLetterTruncated bool           `json:"coverLetterTruncated"`
	ReservationID        string         `json:"-"`
	ErrorCode            *string        `json:"errorCode,omitempty"`
	ErrorMessage         *string        `json:"errorMessage,omitempty"`
	CreatedAt            time.Time      `json:"createdAt"`
	StartedAt            *time.Time     `json:"startedAt,omitempty"`
	CompletedAt          *time.Time     `json:"completedAt,omitempty"`
}

// Completion is everything a successful run writes back.
type Completion struct {
	Result               tailor.Result
	MergedCV             string
	CVKey                string
	CoverLetterKey       string
	CVTruncated          bool
	CoverLetterTruncated bool
	CompletedAt          time.Time
}

// ArtifactKey returns the storage key for an artifact kind.
func (t Tailoring) ArtifactKey(kind ArtifactKind) string {
	switch kind {
	case ArtifactTailoredCV:
		return t.CVKey
	case ArtifactCoverLetter:
		return t.CoverLetterKey
	default:
		return ""
	}
}
