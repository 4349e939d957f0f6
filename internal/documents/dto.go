package documents

import (
	"time"

	"cv-tailor/internal/extract"
)

// DocumentResponse is a document as the API shows it. Storage keys stay
// internal.
type DocumentResponse struct {
	DocumentID  string     `json:"documentId"`
	FileName    string     `json:"fileName"`
	MimeType    string     `json:"mimeType"`
	Format      string     `json:"format"`
	SizeBytes   int64      `json:"sizeBytes"`
	Extracted   bool       `json:"extracted"`
	ExtractedAt *time.Time `json:"extractedAt,omitempty"`
	UploadedAt  time.Time  `json:"uploadedAt"`
}

func toResponse(doc Document) DocumentResponse {
	return DocumentResponse{
		DocumentID:  doc.ID,
		FileName:    doc.FileName,
		MimeType:    doc.MimeType,
		Format:      formatOf(doc.MimeType),
		SizeBytes:   doc.SizeBytes,
		Extracted:   doc.ExtractedTextKey != "",
		ExtractedAt: doc.ExtractedAt,
		UploadedAt:  doc.CreatedAt,
	}
}

func toResponses(docs []Document) []DocumentResponse {
	out := make([]DocumentResponse, len(docs))
	for i, doc := range docs {
		out[i] = toResponse(doc)
	}
	return out
}

// formatOf is the short name the UI shows for a MIME type.
func formatOf(mimeType string) string {
	switch mimeType {
	case extract.MimePDF:
		return "pdf"
	case extract.MimeDOCX:
		return "docx"
	case extract.MimeText:
		return "text"
	default:
		return "other"
	}
}
