package workerproc

import (
	"context"
	"errors"
	"testing"

	"cv-tailor/internal/queue"
	"cv-tailor/internal/tailorings"
)

type fakeProcessor struct {
	err error
	ids []string
}

func (f *fakeProcessor) Process(ctx context.Context, tailoringID string) error {
	f.ids = append(f.ids, tailoringID)
	return f.err
}

func body(t *testing.T, msg queue.Message) string {
	t.Helper()
	payload, err := queue.EncodeMessage(msg)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	return string(payload)
}

func TestParseMessageErrors(t *testing.T) {
	if _, _, err := ParseMessage("  "); !errors.As(err, &ErrEmptyBody{}) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
	if _, meta, err := ParseMessage("{bad"); !errors.As(err, &ErrDecode{}) || meta.BodyLen != 4 || meta.BodySHA == "" {
		t.Fatalf("expected ErrDecode with meta, got %v %+v", err, meta)
	}
	var missing ErrMissingTailoringID
	if _, _, err := ParseMessage(`{"requestId":"req-1"}`); !errors.As(err, &missing) || missing.RequestID != "req-1" {
		t.Fatalf("expected ErrMissingTailoringID, got %v", err)
	}
}

func TestSettle(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		err      error
		want     bool
		wantCall bool
	}{
		{name: "success", body: `{"tailoringId":"t-1","requestId":"r-1"}`, want: true, wantCall: true},
		{name: "recorded failure", body: `{"tailoringId":"t-1"}`, err: &tailorings.FailureError{Code: tailorings.ErrorCodeLLM, Err: errors.New("boom")}, want: true, wantCall: true},
		{name: "unknown tailoring", body: `{"tailoringId":"t-9"}`, err: tailorings.ErrNotFound, want: true, wantCall: true},
		{name: "transient failure", body: `{"tailoringId":"t-1"}`, err: errors.New("db down"), want: false, wantCall: true},
		{name: "invalid json", body: "{bad-json", want: true},
		{name: "missing id", body: `{"requestId":"r-2"}`, want: true},
		{name: "empty", body: "", want: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			p := &fakeProcessor{err: tt.err}
			got := Settle(context.Background(), p, tt.body, map[string]any{"queue": "test"})
			if got != tt.want {
				t.Fatalf("expected settle=%v, got %v", tt.want, got)
			}
			if called := len(p.ids) > 0; called != tt.wantCall {
				t.Fatalf("expected processor called=%v, got %v", tt.wantCall, called)
			}
		})
	}
}

func TestHandleMessageWrapsProcessErrors(t *testing.T) {
	p := &fakeProcessor{err: errors.New("db down")}
	err := HandleMessage(context.Background(), p, body(t, queue.Message{TailoringID: "t-1", RequestID: "r-1"}))
	var procErr ErrProcess
	if !errors.As(err, &procErr) || procErr.TailoringID != "t-1" || procErr.RequestID != "r-1" {
		t.Fatalf("expected ErrProcess, got %v", err)
	}
	if err := HandleMessage(context.Background(), nil, "{}"); err == nil {
		t.Fatalf("expected error without processor")
	}
}
