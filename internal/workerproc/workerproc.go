package workerproc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"cv-tailor/internal/queue"
	"cv-tailor/internal/shared/metrics"
	"cv-tailor/internal/shared/telemetry"
	"cv-tailor/internal/tailorings"
)

// Processor runs one queued tailoring.
type Processor interface {
	Process(ctx context.Context, tailoringID string) error
}

// MessageMeta captures details useful for logging and diagnostics.
type MessageMeta struct {
	BodyLen int
	BodySHA string
}

// ComputeMeta returns the body length and SHA-256 hash.
func ComputeMeta(body string) MessageMeta {
	if body == "" {
		return MessageMeta{}
	}
	sum := sha256.Sum256([]byte(body))
	return MessageMeta{BodyLen: len(body), BodySHA: hex.EncodeToString(sum[:])}
}

// ErrEmptyBody indicates an empty queue payload.
type ErrEmptyBody struct {
	Meta MessageMeta
}

func (e ErrEmptyBody) Error() string { return "empty message body" }

// ErrDecode indicates a JSON decode failure.
type ErrDecode struct {
	Meta MessageMeta
	Err  error
}

func (e ErrDecode) Error() string {
	if e.Err == nil {
		return "decode message"
	}
	return "decode message: " + e.Err.Error()
}

// ErrMissingTailoringID indicates a message without a tailoring id.
type ErrMissingTailoringID struct {
	Meta      MessageMeta
	RequestID string
}

func (e ErrMissingTailoringID) Error() string { return "missing tailoring id" }

// ErrProcess indicates processing failed after successful parsing and the
// message should be retried.
type ErrProcess struct {
	TailoringID string
	RequestID   string
	Err         error
}

func (e ErrProcess) Error() string {
	if e.Err == nil {
		return "process tailoring"
	}
	return "process tailoring: " + e.Err.Error()
}

func (e ErrProcess) Unwrap() error { return e.Err }

// ParseMessage validates and decodes the queue payload.
func ParseMessage(body string) (queue.Message, MessageMeta, error) {
	meta := ComputeMeta(body)
	if strings.TrimSpace(body) == "" {
		return queue.Message{}, meta, ErrEmptyBody{Meta: meta}
	}

	msg, err := queue.DecodeMessage([]byte(body))
	if err != nil {
		return queue.Message{}, meta, ErrDecode{Meta: meta, Err: err}
	}
	if strings.TrimSpace(msg.TailoringID) == "" {
		return msg, meta, ErrMissingTailoringID{Meta: meta, RequestID: msg.RequestID}
	}
	return msg, meta, nil
}

// HandleMessage parses and processes a message payload. A pipeline failure
// that was recorded on the tailoring counts as handled.
func HandleMessage(ctx context.Context, p Processor, body string) error {
	if p == nil {
		return errors.New("tailoring processor not configured")
	}
	msg, _, err := ParseMessage(body)
	if err != nil {
		return err
	}
	return process(ctx, p, msg)
}

func process(ctx context.Context, p Processor, msg queue.Message) error {
	err := p.Process(tailorings.WithRequestID(ctx, msg.RequestID), msg.TailoringID)
	var ferr *tailorings.FailureError
	if err == nil || errors.As(err, &ferr) {
		return nil
	}
	if errors.Is(err, tailorings.ErrNotFound) {
		return nil
	}
	return ErrProcess{TailoringID: msg.TailoringID, RequestID: msg.RequestID, Err: err}
}

// Settle handles one delivery and reports whether the message should be
// removed from the queue. Malformed messages are dropped; processing errors
// keep the message for redelivery. fields are merged into every log line.
func Settle(ctx context.Context, p Processor, body string, fields map[string]any) bool {
	metrics.IncJobsReceived()
	logFields := func(extra map[string]any) map[string]any {
		out := make(map[string]any, len(fields)+len(extra))
		for k, v := range fields {
			out[k] = v
		}
		for k, v := range extra {
			out[k] = v
		}
		return out
	}

	msg, meta, err := ParseMessage(body)
	if err != nil {
		event := "worker.tailoring.decode_failed"
		extra := map[string]any{"body_len": meta.BodyLen, "error": err.Error()}
		if meta.BodySHA != "" {
			extra["body_sha256"] = meta.BodySHA
		}
		var emptyErr ErrEmptyBody
		var missingErr ErrMissingTailoringID
		switch {
		case errors.As(err, &emptyErr):
			event = "worker.tailoring.empty_body"
		case errors.As(err, &missingErr):
			event = "worker.tailoring.missing_id"
			extra["request_id"] = missingErr.RequestID
		}
		telemetry.Error(event, logFields(extra))
		metrics.IncJobsUnrecoverable()
		return true
	}

	ids := map[string]any{"tailoring_id": msg.TailoringID, "request_id": msg.RequestID}
	telemetry.Info("worker.tailoring.received", logFields(ids))
	if err := process(ctx, p, msg); err != nil {
		failed := logFields(ids)
		failed["error"] = err.Error()
		telemetry.Error("worker.tailoring.failed", failed)
		metrics.IncJobsFailed()
		return false
	}
	telemetry.Info("worker.tailoring.completed", logFields(ids))
	metrics.IncJobsCompleted()
	return true
}
