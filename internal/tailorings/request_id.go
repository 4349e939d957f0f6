package tailorings

import "context"

type requestIDKey struct{}

// WithRequestID tags ctx with the HTTP request or queue message id so
// pipeline logs and stored runs can be correlated.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// detach keeps ctx's values but drops its deadline and cancellation, for
// bookkeeping that must finish after the caller has gone.
func detach(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
