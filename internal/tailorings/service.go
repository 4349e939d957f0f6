package tailorings

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/google/uuid"

	"cv-tailor/internal/credits"
	"cv-tailor/internal/documents"
	"cv-tailor/internal/llm"
	"cv-tailor/internal/queue"
	"cv-tailor/internal/render"
	"cv-tailor/internal/shared/metrics"
	"cv-tailor/internal/shared/storage/object"
	"cv-tailor/internal/shared/telemetry"
	"cv-tailor/internal/shared/util"
	"cv-tailor/internal/tailor"
)

// Documents is the part of the document service the pipeline reads from.
type Documents interface {
	Get(ctx context.Context, accountID, documentID string) (documents.Document, error)
	Text(ctx context.Context, doc documents.Document) (string, error)
}

// Ledger reserves and settles credits.
type Ledger interface {
	Reserve(ctx context.Context, accountID string, amount int, reference string) (credits.Reservation, error)
	Commit(ctx context.Context, reservationID string) error
	Release(ctx context.Context, reservationID string) error
}

// JobFetcher turns a job posting URL into plain text.
type JobFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Service runs the tailoring pipeline.
type Service struct {
	Repo       Repo
	Documents  Documents
	Credits    Ledger
	Store      object.Store
	LLM        llm.Completer
	Provider   string
	Model      string
	Format     tailor.Format
	Render     render.Options
	CreditCost int
	// Temperature is used when a request does not set one.
	Temperature float64
	Jobs        JobFetcher
	Queue       queue.Client
}

// CreateInput is a tailoring request.
type CreateInput struct {
	AccountID      string
	DocumentID     string
	JobDescription string
	JobURL         string
	Temperature    *float64
	Async          bool
}

// Create validates the request, reserves credits and runs or schedules the pipeline.
// A synchronous run that fails returns the failed tailoring with a *FailureError.
func (s *Service) Create(ctx context.Context, in CreateInput) (Tailoring, error) {
	in.AccountID = strings.TrimSpace(in.AccountID)
	in.DocumentID = strings.TrimSpace(in.DocumentID)
	in.JobURL = strings.TrimSpace(in.JobURL)
	if in.AccountID == "" || in.DocumentID == "" {
		return Tailoring{}, fmt.Errorf("%w: documentId is required", ErrInvalidInput)
	}
	if strings.TrimSpace(in.JobDescription) == "" && in.JobURL == "" {
		return Tailoring{}, fmt.Errorf("%w: jobDescription or jobUrl is required", ErrInvalidInput)
	}
	temperature := s.Temperature
	if in.Temperature != nil {
		temperature = *in.Temperature
	}
	if err := llm.ValidateTemperature(temperature); err != nil {
		return Tailoring{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if _, err := s.Documents.Get(ctx, in.AccountID, in.DocumentID); err != nil {
		return Tailoring{}, err
	}

	job := in.JobDescription
	if strings.TrimSpace(job) == "" {
		if s.Jobs == nil {
			return Tailoring{}, fmt.Errorf("%w: job url fetching is not available", ErrInvalidInput)
		}
		fetched, err := s.Jobs.Fetch(ctx, in.JobURL)
		if err != nil {
			return Tailoring{}, fmt.Errorf("%w: %v", ErrJobFetch, err)
		}
		job = fetched
	}

	t := Tailoring{
		ID:             uuid.NewString(),
		AccountID:      in.AccountID,
		DocumentID:     in.DocumentID,
		JobDescription: job,
		JobURL:         in.JobURL,
		Temperature:    temperature,
		ResponseFormat: string(s.format()),
		Provider:       s.Provider,
		Model:          s.Model,
		Status:         StatusQueued,
		CreatedAt:      time.Now().UTC(),
	}

	reservation, err := s.Credits.Reserve(ctx, t.AccountID, s.creditCost(), "tailoring:"+t.ID)
	if err != nil {
		return Tailoring{}, err
	}
	t.ReservationID = reservation.ID

	if err := s.Repo.Create(ctx, t); err != nil {
		s.release(ctx, t.ReservationID, t.ID)
		return Tailoring{}, err
	}
	telemetry.Info("tailoring.status", map[string]any{
		"request_id":        requestIDFromContext(ctx),
		"account_id":        t.AccountID,
		"document_id":       t.DocumentID,
		"tailoring_id":      t.ID,
		"status":            StatusQueued,
		"status_transition": "none->queued",
		"async":             in.Async,
	})

	if !in.Async {
		procErr := s.Process(ctx, t.ID)
		var ferr *FailureError
		if procErr != nil && !errors.As(procErr, &ferr) {
			run := newRun(t, requestIDFromContext(ctx), time.Now().UTC())
			procErr = s.fail(ctx, run, failure(ErrorCodeStorage, procErr))
		}
		stored, err := s.Repo.GetByID(detach(ctx), t.ID)
		if err != nil {
			return t, err
		}
		return stored, procErr
	}

	if s.Queue != nil {
		msg := queue.NewMessage(t.ID, requestIDFromContext(ctx), time.Now())
		if err := s.Queue.Send(ctx, msg); err != nil {
			run := newRun(t, requestIDFromContext(ctx), time.Now().UTC())
			return t, s.fail(ctx, run, failure(ErrorCodeInternal, fmt.Errorf("enqueue: %w", err)))
		}
		return t, nil
	}

	go func(bg context.Context, id string) {
		_ = s.Process(bg, id)
	}(detach(ctx), t.ID)
	return t, nil
}

// Process runs a queued tailoring to completion. Tailorings that are no
// longer queued are skipped, so redelivered messages are harmless.
func (s *Service) Process(ctx context.Context, id string) (err error) {
	t, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return err
	}
	startedAt := time.Now().UTC()
	claimed, err := s.Repo.MarkProcessing(ctx, id, startedAt)
	if err != nil {
		return fmt.Errorf("set processing: %w", err)
	}
	run := newRun(t, requestIDFromContext(ctx), startedAt)
	if !claimed {
		telemetry.Info("tailoring.skip", run.fields())
		return nil
	}
	run.Tailoring.Status = StatusProcessing
	run.Tailoring.StartedAt = &startedAt

	defer func() {
		if r := recover(); r != nil {
			err = s.fail(ctx, run, failure(ErrorCodeInternal, fmt.Errorf("panic: %v", r)))
		}
	}()

	metrics.IncTailoringStarted()
	fields := run.fields()
	fields["status"] = StatusProcessing
	fields["status_transition"] = "queued->processing"
	telemetry.Info("tailoring.status", fields)

	steps := []func(context.Context, *Run) *FailureError{
		s.loadResume,
		s.complete,
		s.parse,
		s.renderArtifacts,
		s.storeArtifacts,
	}
	for _, step := range steps {
		if ferr := step(ctx, run); ferr != nil {
			return s.fail(ctx, run, ferr)
		}
	}

	completedAt := time.Now().UTC()
	completion := Completion{
		Result:               run.Result,
		MergedCV:             run.MergedCV,
		CVKey:                run.CVKey,
		CoverLetterKey:       run.LetterKey,
		CVTruncated:          run.CV.Layout.Truncated,
		CoverLetterTruncated: run.CoverLetter.Layout.Truncated,
		CompletedAt:          completedAt,
	}
	if err := s.Repo.Complete(ctx, id, completion); err != nil {
		return s.fail(ctx, run, failure(ErrorCodeStorage, fmt.Errorf("save result: %w", err)))
	}
	if run.Tailoring.ReservationID != "" {
		if err := s.Credits.Commit(detach(ctx), run.Tailoring.ReservationID); err != nil {
			warn := run.fields()
			warn["reservation_id"] = run.Tailoring.ReservationID
			warn["error"] = err.Error()
			telemetry.Warn("credits.commit_failed", warn)
		}
	}

	duration := durationMs(&startedAt, &completedAt)
	metrics.IncTailoringCompleted()
	metrics.ObserveTailoringDurationMs(duration)
	fields = run.fields()
	fields["status"] = StatusCompleted
	fields["status_transition"] = "processing->completed"
	fields["duration_ms"] = duration
	fields["cv_truncated"] = completion.CVTruncated
	fields["cover_letter_truncated"] = completion.CoverLetterTruncated
	telemetry.Info("tailoring.status", fields)
	return nil
}

func (s *Service) loadResume(ctx context.Context, run *Run) *FailureError {
	if s.Documents == nil {
		return failure(ErrorCodeInternal, errors.New("document service not configured"))
	}
	doc, err := s.Documents.Get(ctx, run.Tailoring.AccountID, run.Tailoring.DocumentID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return failure(ErrorCodeValidation, fmt.Errorf("document %s no longer available", run.Tailoring.DocumentID))
		}
		return failure(ErrorCodeStorage, fmt.Errorf("document lookup: %w", err))
	}
	text, err := s.Documents.Text(ctx, doc)
	if err != nil {
		if errors.Is(err, documents.ErrExtraction) {
			return failure(ErrorCodeExtraction, err)
		}
		return failure(ErrorCodeStorage, fmt.Errorf("document text: %w", err))
	}
	if strings.TrimSpace(text) == "" {
		return failure(ErrorCodeExtraction, errors.New("document has no extractable text"))
	}
	run.Resume = text
	return nil
}

func (s *Service) complete(ctx context.Context, run *Run) *FailureError {
	if s.LLM == nil {
		return failure(ErrorCodeLLM, llm.ErrNotConfigured)
	}
	req := llm.Request{
		System:      tailor.SystemInstruction,
		Prompt:      tailor.Prompt(run.Format, run.Resume, run.Job),
		Temperature: run.Temperature,
		JSON:        run.Format == tailor.FormatJSON,
	}
	start := time.Now()
	resp, err := s.LLM.Complete(ctx, req)
	elapsed := float64(time.Since(start).Microseconds()) / 1000.0
	metrics.ObserveLLMDurationMs(elapsed)
	if err != nil {
		if isTimeout(err) {
			return failure(ErrorCodeLLMTimeout, err)
		}
		return failure(ErrorCodeLLM, err)
	}
	fields := run.fields()
	fields["provider"] = run.Tailoring.Provider
	fields["model"] = resp.Model
	fields["llm_duration_ms"] = elapsed
	fields["prompt_tokens"] = resp.PromptTokens
	fields["completion_tokens"] = resp.CompletionTokens
	fields["preview"] = telemetry.Truncate(resp.Text, 200)
	telemetry.Info("tailoring.llm", fields)
	run.Raw = resp.Text
	return nil
}

func (s *Service) parse(ctx context.Context, run *Run) *FailureError {
	result, err := tailor.Parse(run.Format, run.Raw)
	if err != nil {
		return failure(ErrorCodeLLMSchemaMismatch, err)
	}
	run.Result = result
	run.MergedCV = tailor.MergeKeywords(result.TailoredCV, result.MissingKeywords)
	return nil
}

func (s *Service) renderArtifacts(ctx context.Context, run *Run) *FailureError {
	r := render.New(s.Render)
	cv, err := r.Render(run.MergedCV)
	if err != nil {
		return failure(ErrorCodeRender, fmt.Errorf("tailored cv: %w", err))
	}
	letter, err := r.Render(run.Result.CoverLetter)
	if err != nil {
		return failure(ErrorCodeRender, fmt.Errorf("cover letter: %w", err))
	}
	for kind, out := range map[ArtifactKind]render.Output{ArtifactTailoredCV: cv, ArtifactCoverLetter: letter} {
		if !out.Layout.Truncated {
			continue
		}
		metrics.IncRenderTruncated()
		fields := run.fields()
		fields["artifact"] = string(kind)
		fields["dropped_lines"] = out.Layout.DroppedLines
		telemetry.Warn("tailoring.render_truncated", fields)
	}
	run.CV = cv
	run.CoverLetter = letter
	return nil
}

func (s *Service) storeArtifacts(ctx context.Context, run *Run) *FailureError {
	if s.Store == nil {
		return failure(ErrorCodeStorage, errors.New("object store not configured"))
	}
	cvKey := artifactKey(run.Tailoring, ArtifactTailoredCV)
	if _, err := s.Store.Put(ctx, cvKey, "application/pdf", bytes.NewReader(run.CV.PDF)); err != nil {
		return failure(ErrorCodeStorage, fmt.Errorf("store %s: %w", ArtifactTailoredCV, err))
	}
	letterKey := artifactKey(run.Tailoring, ArtifactCoverLetter)
	if _, err := s.Store.Put(ctx, letterKey, "application/pdf", bytes.NewReader(run.CoverLetter.PDF)); err != nil {
		return failure(ErrorCodeStorage, fmt.Errorf("store %s: %w", ArtifactCoverLetter, err))
	}
	run.CVKey = cvKey
	run.LetterKey = letterKey
	return nil
}

// fail records the failure, releases the reservation and returns ferr.
func (s *Service) fail(ctx context.Context, run *Run, ferr *FailureError) error {
	ferr.TailoringID = run.Tailoring.ID
	bg := detach(ctx)
	previous := run.Tailoring.Status
	msg := sanitizeError(ferr.Err)
	completedAt := time.Now().UTC()
	if err := s.Repo.Fail(bg, run.Tailoring.ID, ferr.Code, msg, completedAt); err != nil {
		fields := run.fields()
		fields["error"] = err.Error()
		fields["original_error"] = msg
		telemetry.Error("tailoring.fail_update_failed", fields)
	}
	if run.Tailoring.ReservationID != "" {
		s.release(bg, run.Tailoring.ReservationID, run.Tailoring.ID)
	}
	run.Tailoring.Status = StatusFailed
	run.Tailoring.ErrorCode = &ferr.Code
	run.Tailoring.ErrorMessage = &msg
	run.Tailoring.CompletedAt = &completedAt

	duration := durationMs(&run.startedAt, &completedAt)
	metrics.IncTailoringFailed()
	metrics.ObserveTailoringDurationMs(duration)
	fields := run.fields()
	fields["status"] = StatusFailed
	fields["status_transition"] = previous + "->failed"
	fields["error_code"] = ferr.Code
	fields["error"] = msg
	fields["duration_ms"] = duration
	telemetry.Info("tailoring.status", fields)
	return ferr
}

func (s *Service) release(ctx context.Context, reservationID, tailoringID string) {
	if err := s.Credits.Release(ctx, reservationID); err != nil {
		telemetry.Error("credits.release_failed", map[string]any{
			"request_id":     requestIDFromContext(ctx),
			"tailoring_id":   tailoringID,
			"reservation_id": reservationID,
			"error":          err.Error(),
		})
	}
}

// Get returns a tailoring owned by the account.
func (s *Service) Get(ctx context.Context, accountID, id string) (Tailoring, error) {
	t, err := s.Repo.GetByID(ctx, id)
	if err != nil {
		return Tailoring{}, err
	}
	if t.AccountID != accountID {
		return Tailoring{}, ErrNotFound
	}
	return t, nil
}

// List returns the account's tailorings, newest first.
func (s *Service) List(ctx context.Context, accountID string, limit, offset int) ([]Tailoring, error) {
	return s.Repo.ListByAccount(ctx, accountID, limit, offset)
}

// Artifact opens a generated PDF. The caller closes the reader.
func (s *Service) Artifact(ctx context.Context, accountID, id string, kind ArtifactKind) (io.ReadCloser, string, error) {
	t, err := s.Get(ctx, accountID, id)
	if err != nil {
		return nil, "", err
	}
	if t.Status != StatusCompleted {
		return nil, "", ErrNotReady
	}
	key := t.ArtifactKey(kind)
	if key == "" {
		return nil, "", ErrNotFound
	}
	rc, err := s.Store.Open(ctx, key)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	return rc, kind.FileName(), nil
}

// Diff renders the line diff between the original résumé and the merged CV as HTML.
func (s *Service) Diff(ctx context.Context, accountID, id string) (string, error) {
	t, err := s.Get(ctx, accountID, id)
	if err != nil {
		return "", err
	}
	if t.Status != StatusCompleted {
		return "", ErrNotReady
	}
	doc, err := s.Documents.Get(ctx, accountID, t.DocumentID)
	if err != nil {
		return "", err
	}
	original, err := s.Documents.Text(ctx, doc)
	if err != nil {
		return "", err
	}
	return tailor.DiffHTML(original, t.MergedCV), nil
}

func (s *Service) format() tailor.Format {
	if s.Format == "" {
		return tailor.FormatJSON
	}
	return s.Format
}

func (s *Service) creditCost() int {
	if s.CreditCost <= 0 {
		return 1
	}
	return s.CreditCost
}

func artifactKey(t Tailoring, kind ArtifactKind) string {
	return "tailorings/" + util.AccountKey(t.AccountID) + "/" + t.ID + "/" + kind.FileName()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func durationMs(startedAt, completedAt *time.Time) float64 {
	if startedAt == nil || completedAt == nil || startedAt.IsZero() {
		return 0
	}
	return float64(completedAt.Sub(*startedAt).Microseconds()) / 1000.0
}

const maxErrorMessageLen = 500

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return util.SanitizeMessage(err.Error(), maxErrorMessageLen)
}
