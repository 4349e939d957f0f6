package llm

import (
	"context"
	"errors"
	"net"
	"strings"
	"time"

	"cv-tailor/internal/shared/telemetry"
)

const retryBaseDelay = 300 * time.Millisecond

type retrying struct {
	base  Completer
	delay time.Duration
}

// WithTransientRetry retries a completion once after a short delay when the
// first error looks transient (timeouts, 5xx, dropped connections).
func WithTransientRetry(base Completer) Completer {
	if base == nil {
		return nil
	}
	return retrying{base: base, delay: retryBaseDelay}
}

func (r retrying) Complete(ctx context.Context, req Request) (Response, error) {
	resp, err := r.base.Complete(ctx, req)
	if err == nil || !IsTransient(err) {
		return resp, err
	}

	telemetry.Warn("llm.retry", map[string]any{
		"attempt": 1,
		"error":   telemetry.Truncate(err.Error(), 300),
	})
	select {
	case <-time.After(r.delay):
	case <-ctx.Done():
		return Response{}, ctx.Err()
	}
	return r.base.Complete(ctx, req)
}

// IsTransient reports whether err is worth one more attempt.
func IsTransient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "http status 5") || strings.Contains(msg, "server_error") || strings.Contains(msg, "overloaded") {
		return true
	}
	if strings.Contains(msg, "http status 429") || strings.Contains(msg, "rate limit") {
		return true
	}
	for _, marker := range []string{"timeout", "connection reset", "connection refused", "connection closed", "broken pipe", "eof"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
