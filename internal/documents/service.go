package documents

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"cv-tailor/internal/extract"
	"cv-tailor/internal/profile"
	"cv-tailor/internal/shared/storage/object"
	"cv-tailor/internal/shared/telemetry"
	"cv-tailor/internal/shared/util"
)

const (
	// MaxUploadSize is the largest résumé accepted, direct or presigned.
	MaxUploadSize = 10 << 20
	presignTTL    = 15 * time.Minute
)

// Service contains business logic for documents.
type Service struct {
	Store     object.Store
	Presigner object.Presigner
	Repo      DocumentsRepo
}

// Upload stores the file, extracts its text and records the document.
// Files whose text cannot be extracted are removed again.
func (s *Service) Upload(ctx context.Context, accountID, fileName string, r io.Reader) (Document, error) {
	mimeType, err := checkExtension(fileName)
	if err != nil {
		return Document{}, err
	}

	storageKey, size, _, err := s.Store.Save(ctx, accountID, fileName, io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return Document{}, err
	}
	if size > MaxUploadSize {
		_ = s.Store.Delete(ctx, storageKey)
		return Document{}, ErrTooLarge
	}
	return s.register(ctx, accountID, fileName, mimeType, size, storageKey)
}

// Presign returns a direct upload target when the store supports it.
func (s *Service) Presign(ctx context.Context, accountID, fileName, contentType string, size int64) (object.PresignedUpload, error) {
	if s.Presigner == nil {
		return object.PresignedUpload{}, fmt.Errorf("%w: direct uploads are not enabled", ErrInvalidInput)
	}
	mimeType, err := checkExtension(fileName)
	if err != nil {
		return object.PresignedUpload{}, err
	}
	if size <= 0 || size > MaxUploadSize {
		return object.PresignedUpload{}, ErrTooLarge
	}
	if contentType == "" {
		contentType = mimeType
	}
	return s.Presigner.PresignUpload(ctx, accountID, fileName, contentType, presignTTL)
}

// CreateFromStorage registers an object uploaded through a presigned URL.
func (s *Service) CreateFromStorage(ctx context.Context, accountID, storageKey, fileName string) (Document, error) {
	if s.Presigner == nil {
		return Document{}, fmt.Errorf("%w: direct uploads are not enabled", ErrInvalidInput)
	}
	mimeType, err := checkExtension(fileName)
	if err != nil {
		return Document{}, err
	}
	ownerPrefix := path.Join("uploads", util.AccountKey(accountID)) + "/"
	if !strings.HasPrefix(storageKey, ownerPrefix) || strings.Contains(storageKey, "..") {
		return Document{}, fmt.Errorf("%w: storage key does not belong to this account", ErrInvalidInput)
	}

	info, err := s.Presigner.Stat(ctx, storageKey)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Document{}, fmt.Errorf("%w: uploaded object not found", ErrInvalidInput)
		}
		return Document{}, err
	}
	if info.SizeBytes > MaxUploadSize {
		_ = s.Store.Delete(ctx, storageKey)
		return Document{}, ErrTooLarge
	}
	return s.register(ctx, accountID, fileName, mimeType, info.SizeBytes, storageKey)
}

func (s *Service) register(ctx context.Context, accountID, fileName, mimeType string, size int64, storageKey string) (Document, error) {
	_, textKey, err := extract.FromStore(ctx, s.Store, storageKey, mimeType, fileName)
	if err != nil {
		_ = s.Store.Delete(ctx, storageKey)
		telemetry.Warn("documents.extraction_failed", map[string]any{
			"account_id": accountID,
			"mime_type":  mimeType,
			"error":      telemetry.Truncate(err.Error(), 300),
		})
		return Document{}, fmt.Errorf("%w: %v", ErrExtraction, err)
	}

	now := time.Now().UTC()
	doc := Document{
		ID:               uuid.NewString(),
		AccountID:        accountID,
		FileName:         fileName,
		MimeType:         mimeType,
		SizeBytes:        size,
		StorageKey:       storageKey,
		ExtractedTextKey: textKey,
		ExtractedAt:      &now,
		CreatedAt:        now,
	}
	if err := s.Repo.Create(ctx, doc); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Current returns the latest document for an account.
func (s *Service) Current(ctx context.Context, accountID string) (Document, error) {
	if accountID == "" {
		return Document{}, fmt.Errorf("%w: account id required", ErrInvalidInput)
	}
	return s.Repo.GetCurrentByAccount(ctx, accountID)
}

// Get returns one live document.
func (s *Service) Get(ctx context.Context, accountID, documentID string) (Document, error) {
	if strings.TrimSpace(documentID) == "" {
		return Document{}, fmt.Errorf("%w: document id required", ErrInvalidInput)
	}
	return s.Repo.GetByID(ctx, accountID, documentID)
}

// List returns live documents newest first.
func (s *Service) List(ctx context.Context, accountID string, limit, offset int) ([]Document, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: account id required", ErrInvalidInput)
	}
	return s.Repo.ListByAccount(ctx, accountID, limit, offset)
}

// Delete discards a document; stored objects stay for existing tailorings.
func (s *Service) Delete(ctx context.Context, accountID, documentID string) error {
	return s.Repo.SoftDelete(ctx, accountID, documentID, time.Now().UTC())
}

// Text returns the extracted text, extracting and caching it when missing.
func (s *Service) Text(ctx context.Context, doc Document) (string, error) {
	if doc.ExtractedTextKey != "" {
		raw, err := object.ReadAll(ctx, s.Store, doc.ExtractedTextKey)
		if err == nil {
			return string(raw), nil
		}
		if !errors.Is(err, object.ErrNotFound) {
			return "", err
		}
	}
	text, textKey, err := extract.FromStore(ctx, s.Store, doc.StorageKey, doc.MimeType, doc.FileName)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrExtraction, err)
	}
	if err := s.Repo.UpdateExtraction(ctx, doc.AccountID, doc.ID, textKey, time.Now().UTC()); err != nil {
		telemetry.Warn("documents.extraction_cache_failed", map[string]any{
			"document_id": doc.ID,
			"error":       err.Error(),
		})
	}
	return text, nil
}

// Profile extracts contact details from the document text.
func (s *Service) Profile(ctx context.Context, accountID, documentID string) (profile.Profile, error) {
	doc, err := s.Get(ctx, accountID, documentID)
	if err != nil {
		return profile.Profile{}, err
	}
	text, err := s.Text(ctx, doc)
	if err != nil {
		return profile.Profile{}, err
	}
	return profile.Extract(text), nil
}

// checkExtension applies the upload filter and returns the mime type implied by the extension.
func checkExtension(fileName string) (string, error) {
	if strings.TrimSpace(fileName) == "" {
		return "", fmt.Errorf("%w: file name is required", ErrInvalidInput)
	}
	mimeType, ok := extract.AllowedExtensions[strings.ToLower(filepath.Ext(fileName))]
	if !ok {
		return "", fmt.Errorf("%w: only .pdf, .docx and .txt files are accepted", ErrInvalidInput)
	}
	return mimeType, nil
}
