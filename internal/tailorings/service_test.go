package tailorings

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"cv-tailor/internal/credits"
	"cv-tailor/internal/documents"
	"cv-tailor/internal/llm"
	"cv-tailor/internal/queue"
	"cv-tailor/internal/render"
	"cv-tailor/internal/shared/storage/object/local"
	"cv-tailor/internal/tailor"
)

const structuredReply = `{"matchingScore": 82, "missingKeywords": ["Docker", "Kubernetes"], "tailoredCv": "Jane Doe\nSkills: Go, SQL\nExperience\nBuilt services.", "coverLetter": "Dear hiring team,\nI would love to join."}`

type fakeDocs struct {
	doc  documents.Document
	text string
	err  error
}

func (f fakeDocs) Get(ctx context.Context, accountID, documentID string) (documents.Document, error) {
	if f.doc.AccountID != accountID || f.doc.ID != documentID {
		return documents.Document{}, documents.ErrNotFound
	}
	return f.doc, nil
}

func (f fakeDocs) Text(ctx context.Context, doc documents.Document) (string, error) {
	return f.text, f.err
}

type stubCompleter struct {
	mu    sync.Mutex
	calls int
	last  llm.Request
	text  string
	err   error
}

func (s *stubCompleter) Complete(ctx context.Context, req llm.Request) (llm.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.last = req
	if s.err != nil {
		return llm.Response{}, s.err
	}
	return llm.Response{Text: s.text, Model: "stub-model"}, nil
}

func (s *stubCompleter) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type captureQueue struct {
	msgs []queue.Message
	err  error
}

func (q *captureQueue) Send(ctx context.Context, msg queue.Message) error {
	if q.err != nil {
		return q.err
	}
	q.msgs = append(q.msgs, msg)
	return nil
}

type fixedFetcher struct {
	text string
	err  error
	urls []string
}

func (f *fixedFetcher) Fetch(ctx context.Context, url string) (string, error) {
	f.urls = append(f.urls, url)
	return f.text, f.err
}

func newTestService(t *testing.T, balance int, completer *stubCompleter) *Service {
	t.Helper()
	ledger := credits.NewService()
	if balance > 0 {
		if _, err := ledger.AdjustCredits(context.Background(), "acct-1", balance, credits.KindGrant, "signup:acct-1"); err != nil {
			t.Fatalf("seed credits: %v", err)
		}
	}
	return &Service{
		Repo: NewMemoryRepo(),
		Documents: fakeDocs{
			doc:  documents.Document{ID: "doc-1", AccountID: "acct-1", FileName: "cv.pdf"},
			text: "Jane Doe\nSkills: Go, SQL\nExperience\nBuilt services.",
		},
		Credits:     ledger,
		Store:       local.New(t.TempDir()),
		LLM:         completer,
		Provider:    "stub",
		Model:       "stub-model",
		Format:      tailor.FormatJSON,
		Render:      render.DefaultOptions(),
		CreditCost:  1,
		Temperature: llm.DefaultTemperature,
	}
}

func balanceOf(t *testing.T, svc *Service) int {
	t.Helper()
	bal, err := svc.Credits.(*credits.Service).Balance(context.Background(), "acct-1")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	return bal
}

func validInput() CreateInput {
	return CreateInput{
		AccountID:      "acct-1",
		DocumentID:     "doc-1",
		JobDescription: "We need Go, Docker and Kubernetes.",
	}
}

func TestCreateSyncCompletes(t *testing.T) {
	completer := &stubCompleter{text: structuredReply}
	svc := newTestService(t, 3, completer)

	got, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.Result == nil || got.Result.MatchingScore == nil || *got.Result.MatchingScore != 82 {
		t.Fatalf("unexpected result %+v", got.Result)
	}
	if !strings.Contains(got.MergedCV, "Docker") || !strings.Contains(got.MergedCV, "Kubernetes") {
		t.Fatalf("expected merged keywords, got %q", got.MergedCV)
	}
	if !completer.last.JSON || completer.last.System != tailor.SystemInstruction {
		t.Fatalf("unexpected request %+v", completer.last)
	}
	if completer.last.Temperature != llm.DefaultTemperature {
		t.Fatalf("expected default temperature, got %v", completer.last.Temperature)
	}
	if bal := balanceOf(t, svc); bal != 2 {
		t.Fatalf("expected balance 2, got %d", bal)
	}

	for _, kind := range []ArtifactKind{ArtifactTailoredCV, ArtifactCoverLetter} {
		rc, name, err := svc.Artifact(context.Background(), "acct-1", got.ID, kind)
		if err != nil {
			t.Fatalf("artifact %s: %v", kind, err)
		}
		data, _ := io.ReadAll(rc)
		rc.Close()
		if name != string(kind)+".pdf" {
			t.Fatalf("unexpected file name %s", name)
		}
		if !strings.HasPrefix(string(data), "%PDF") {
			t.Fatalf("expected pdf bytes for %s", kind)
		}
	}
}

func TestCreditGateRejectsBeforeCompletion(t *testing.T) {
	completer := &stubCompleter{text: structuredReply}
	svc := newTestService(t, 0, completer)

	_, err := svc.Create(context.Background(), validInput())
	if !errors.Is(err, credits.ErrInsufficientCredits) {
		t.Fatalf("expected ErrInsufficientCredits, got %v", err)
	}
	if completer.count() != 0 {
		t.Fatalf("expected no completion calls, got %d", completer.count())
	}
	items, _ := svc.List(context.Background(), "acct-1", 10, 0)
	if len(items) != 0 {
		t.Fatalf("expected no tailorings, got %d", len(items))
	}
}

func TestLLMFailureRefundsReservation(t *testing.T) {
	completer := &stubCompleter{err: errors.New("openai http status 500")}
	svc := newTestService(t, 1, completer)

	got, err := svc.Create(context.Background(), validInput())
	var ferr *FailureError
	if !errors.As(err, &ferr) || ferr.Code != ErrorCodeLLM {
		t.Fatalf("expected LLM_ERROR failure, got %v", err)
	}
	if got.Status != StatusFailed || got.ErrorCode == nil || *got.ErrorCode != ErrorCodeLLM {
		t.Fatalf("expected failed tailoring, got %+v", got)
	}
	if bal := balanceOf(t, svc); bal != 1 {
		t.Fatalf("expected refund to restore balance 1, got %d", bal)
	}
	entries, _ := svc.Credits.(*credits.Service).Entries(context.Background(), "acct-1", 10)
	var refunds int
	for _, e := range entries {
		if e.Kind == credits.KindRefund {
			refunds++
		}
	}
	if refunds != 1 {
		t.Fatalf("expected one refund entry, got %d", refunds)
	}
}

type claimFailRepo struct {
	*MemoryRepo
}

func (r claimFailRepo) MarkProcessing(ctx context.Context, id string, startedAt time.Time) (bool, error) {
	return false, errors.New("connection reset")
}

func TestSyncClaimErrorFailsAndRefunds(t *testing.T) {
	completer := &stubCompleter{text: structuredReply}
	svc := newTestService(t, 1, completer)
	svc.Repo = claimFailRepo{MemoryRepo: NewMemoryRepo()}

	got, err := svc.Create(context.Background(), validInput())
	var ferr *FailureError
	if !errors.As(err, &ferr) || ferr.Code != ErrorCodeStorage {
		t.Fatalf("expected STORAGE_ERROR failure, got %v", err)
	}
	if got.Status != StatusFailed {
		t.Fatalf("expected failed tailoring, got %s", got.Status)
	}
	if completer.count() != 0 {
		t.Fatalf("expected no completion calls, got %d", completer.count())
	}
	if bal := balanceOf(t, svc); bal != 1 {
		t.Fatalf("expected balance restored to 1, got %d", bal)
	}
}

func TestFailureCodes(t *testing.T) {
	tests := []struct {
		name      string
		completer *stubCompleter
		format    tailor.Format
		docErr    error
		want      string
	}{
		{name: "timeout", completer: &stubCompleter{err: context.DeadlineExceeded}, want: ErrorCodeLLMTimeout},
		{name: "malformed json", completer: &stubCompleter{text: "not json"}, want: ErrorCodeLLMSchemaMismatch},
		{name: "extraction", completer: &stubCompleter{text: structuredReply}, docErr: documents.ErrExtraction, want: ErrorCodeExtraction},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			svc := newTestService(t, 1, tt.completer)
			if tt.docErr != nil {
				docs := svc.Documents.(fakeDocs)
				docs.err = tt.docErr
				svc.Documents = docs
			}
			_, err := svc.Create(context.Background(), validInput())
			var ferr *FailureError
			if !errors.As(err, &ferr) || ferr.Code != tt.want {
				t.Fatalf("expected %s, got %v", tt.want, err)
			}
			if bal := balanceOf(t, svc); bal != 1 {
				t.Fatalf("expected refunded balance 1, got %d", bal)
			}
		})
	}
}

func TestHeaderFormatDegradesWithoutFailure(t *testing.T) {
	completer := &stubCompleter{text: "Sorry, I can only answer briefly."}
	svc := newTestService(t, 1, completer)
	svc.Format = tailor.FormatHeaders

	got, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", got.Status)
	}
	if got.Result.MatchingScore != nil || len(got.Result.MissingKeywords) != 0 {
		t.Fatalf("expected empty fields, got %+v", got.Result)
	}
	if completer.last.JSON {
		t.Fatalf("header format should not request json")
	}
}

func TestCreateValidatesInput(t *testing.T) {
	hot := 1.5
	tests := []struct {
		name string
		in   CreateInput
	}{
		{name: "missing document", in: CreateInput{AccountID: "acct-1", JobDescription: "job"}},
		{name: "missing job", in: CreateInput{AccountID: "acct-1", DocumentID: "doc-1"}},
		{name: "temperature", in: CreateInput{AccountID: "acct-1", DocumentID: "doc-1", JobDescription: "job", Temperature: &hot}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			completer := &stubCompleter{text: structuredReply}
			svc := newTestService(t, 1, completer)
			if _, err := svc.Create(context.Background(), tt.in); !errors.Is(err, ErrInvalidInput) {
				t.Fatalf("expected ErrInvalidInput, got %v", err)
			}
			if completer.count() != 0 || balanceOf(t, svc) != 1 {
				t.Fatalf("expected nothing attempted")
			}
		})
	}
}

func TestCreateUnknownDocument(t *testing.T) {
	svc := newTestService(t, 1, &stubCompleter{text: structuredReply})
	in := validInput()
	in.DocumentID = "doc-missing"
	if _, err := svc.Create(context.Background(), in); !errors.Is(err, documents.ErrNotFound) {
		t.Fatalf("expected documents.ErrNotFound, got %v", err)
	}
	if balanceOf(t, svc) != 1 {
		t.Fatalf("expected no reservation")
	}
}

func TestCreateFetchesJobURL(t *testing.T) {
	completer := &stubCompleter{text: structuredReply}
	svc := newTestService(t, 1, completer)
	fetcher := &fixedFetcher{text: "Platform engineer with Terraform."}
	svc.Jobs = fetcher

	in := validInput()
	in.JobDescription = ""
	in.JobURL = "https://jobs.example.com/1"
	got, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if len(fetcher.urls) != 1 || fetcher.urls[0] != in.JobURL {
		t.Fatalf("unexpected fetches %v", fetcher.urls)
	}
	if got.JobDescription != fetcher.text || !strings.Contains(completer.last.Prompt, "Terraform") {
		t.Fatalf("expected fetched text in tailoring and prompt")
	}
}

func TestCreateJobFetchFailureChargesNothing(t *testing.T) {
	svc := newTestService(t, 1, &stubCompleter{text: structuredReply})
	svc.Jobs = &fixedFetcher{err: errors.New("status 404")}
	in := validInput()
	in.JobDescription = ""
	in.JobURL = "https://jobs.example.com/gone"
	if _, err := svc.Create(context.Background(), in); !errors.Is(err, ErrJobFetch) {
		t.Fatalf("expected ErrJobFetch, got %v", err)
	}
	if balanceOf(t, svc) != 1 {
		t.Fatalf("expected balance untouched")
	}
}

func TestAsyncEnqueuesAndProcessOnce(t *testing.T) {
	completer := &stubCompleter{text: structuredReply}
	svc := newTestService(t, 2, completer)
	q := &captureQueue{}
	svc.Queue = q

	in := validInput()
	in.Async = true
	ctx := WithRequestID(context.Background(), "req-1")
	got, err := svc.Create(ctx, in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if got.Status != StatusQueued {
		t.Fatalf("expected queued, got %s", got.Status)
	}
	if len(q.msgs) != 1 || q.msgs[0].TailoringID != got.ID || q.msgs[0].RequestID != "req-1" {
		t.Fatalf("unexpected messages %+v", q.msgs)
	}
	if bal := balanceOf(t, svc); bal != 1 {
		t.Fatalf("expected reservation held, got balance %d", bal)
	}

	if err := svc.Process(ctx, got.ID); err != nil {
		t.Fatalf("process: %v", err)
	}
	if err := svc.Process(ctx, got.ID); err != nil {
		t.Fatalf("second process: %v", err)
	}
	if completer.count() != 1 {
		t.Fatalf("expected one completion, got %d", completer.count())
	}
	stored, _ := svc.Get(context.Background(), "acct-1", got.ID)
	if stored.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", stored.Status)
	}
	if bal := balanceOf(t, svc); bal != 1 {
		t.Fatalf("expected committed balance 1, got %d", bal)
	}
}

func TestAsyncEnqueueFailureRefunds(t *testing.T) {
	svc := newTestService(t, 1, &stubCompleter{text: structuredReply})
	svc.Queue = &captureQueue{err: errors.New("queue down")}
	in := validInput()
	in.Async = true

	_, err := svc.Create(context.Background(), in)
	var ferr *FailureError
	if !errors.As(err, &ferr) || ferr.Code != ErrorCodeInternal {
		t.Fatalf("expected INTERNAL_ERROR failure, got %v", err)
	}
	if balanceOf(t, svc) != 1 {
		t.Fatalf("expected refund")
	}
}

func TestGetIsScopedToAccount(t *testing.T) {
	svc := newTestService(t, 1, &stubCompleter{text: structuredReply})
	got, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Get(context.Background(), "acct-2", got.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other account, got %v", err)
	}
	if _, _, err := svc.Artifact(context.Background(), "acct-2", got.ID, ArtifactTailoredCV); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound artifact for other account, got %v", err)
	}
}

func TestDiffMarksChangedLines(t *testing.T) {
	svc := newTestService(t, 1, &stubCompleter{text: structuredReply})
	got, err := svc.Create(context.Background(), validInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	html, err := svc.Diff(context.Background(), "acct-1", got.ID)
	if err != nil {
		t.Fatalf("diff: %v", err)
	}
	if !strings.Contains(html, "❌") || !strings.Contains(html, "✅") {
		t.Fatalf("expected removed and added markers, got %s", html)
	}
}

func TestArtifactNotReady(t *testing.T) {
	svc := newTestService(t, 1, &stubCompleter{text: structuredReply})
	svc.Queue = &captureQueue{}
	in := validInput()
	in.Async = true
	got, err := svc.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, _, err := svc.Artifact(context.Background(), "acct-1", got.ID, ArtifactCoverLetter); !errors.Is(err, ErrNotReady) {
		t.Fatalf("expected ErrNotReady, got %v", err)
	}
}
