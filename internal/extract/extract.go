package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"cv-tailor/internal/shared/storage/object"
)

const (
	MimePDF  = "application/pdf"
	MimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	MimeText = "text/plain"
)

// ErrUnsupportedType is returned for files that are not PDF, DOCX or plain text.
var ErrUnsupportedType = errors.New("unsupported document type")

// AllowedExtensions is the upload extension filter.
var AllowedExtensions = map[string]string{
	".pdf":  MimePDF,
	".docx": MimeDOCX,
	".txt":  MimeText,
}

// FromStore reads a stored document, extracts its text and persists a derived
// <key>.extracted.txt object. It returns the text and the derived key.
func FromStore(ctx context.Context, store object.Store, fileKey, mimeType, fileName string) (string, string, error) {
	raw, err := object.ReadAll(ctx, store, fileKey)
	if err != nil {
		return "", "", fmt.Errorf("extract text key=%s mime=%s: read: %w", fileKey, mimeType, err)
	}

	text, err := Text(ctx, raw, mimeType, fileName)
	if err != nil {
		return "", "", fmt.Errorf("extract text key=%s mime=%s: %w", fileKey, mimeType, err)
	}

	textKey := fileKey + ".extracted.txt"
	if _, err := store.Put(ctx, textKey, "text/plain; charset=utf-8", strings.NewReader(text)); err != nil {
		return "", "", fmt.Errorf("extract text key=%s: save: %w", fileKey, err)
	}
	return text, textKey, nil
}

// Text extracts text from an in-memory payload, dispatching on mime type and extension.
func Text(ctx context.Context, data []byte, mimeType string, fileName string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	switch normalized := NormalizeMimeType(mimeType, fileName, data); normalized {
	case MimePDF:
		return PDFText(data)
	case MimeDOCX:
		return DOCXText(data)
	case MimeText:
		return string(data), nil
	default:
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, normalized)
	}
}

// NormalizeMimeType resolves the effective type from the declared mime type,
// zip contents for OOXML, and finally the file extension.
func NormalizeMimeType(mimeType string, fileName string, data []byte) string {
	clean := strings.ToLower(strings.TrimSpace(strings.Split(mimeType, ";")[0]))
	switch clean {
	case MimePDF, MimeDOCX, MimeText:
		return clean
	case "application/zip":
		if mapped := mapOOXMLFromZip(data); mapped != "" {
			return mapped
		}
		return clean
	}
	if mapped, ok := AllowedExtensions[strings.ToLower(filepath.Ext(fileName))]; ok {
		return mapped
	}
	if clean == "" {
		return "application/octet-stream"
	}
	return clean
}

func mapOOXMLFromZip(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return ""
	}
	for _, f := range zr.File {
		if strings.ReplaceAll(f.Name, "\\", "/") == "word/document.xml" {
			return MimeDOCX
		}
	}
	return ""
}
