package llm

import (
	"context"
	"errors"
	"fmt"
)

// Request is one completion call: a fixed system instruction, the user prompt and sampling settings.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	// JSON asks the provider for a JSON object reply where it supports that.
	JSON bool
}

// Response is the single textual completion plus accounting details.
type Response struct {
	Text             string
	Model            string
	PromptTokens     int
	CompletionTokens int
}

// Completer abstracts hosted model providers.
type Completer interface {
	Complete(ctx context.Context, req Request) (Response, error)
}

const (
	MinTemperature     = 0.0
	MaxTemperature     = 1.0
	DefaultTemperature = 0.3
)

var (
	// ErrNotConfigured is returned by the placeholder client when no provider is set up.
	ErrNotConfigured = errors.New("llm provider not configured")
	// ErrEmptyCompletion is returned when a provider answers with no text.
	ErrEmptyCompletion = errors.New("llm returned empty completion")
	// ErrInvalidTemperature is returned for temperatures outside [0, 1].
	ErrInvalidTemperature = errors.New("temperature out of range")
)

// ValidateTemperature checks t against the supported range.
func ValidateTemperature(t float64) error {
	if t < MinTemperature || t > MaxTemperature {
		return fmt.Errorf("%w: %.2f not in [%.1f, %.1f]", ErrInvalidTemperature, t, MinTemperature, MaxTemperature)
	}
	return nil
}

// Placeholder is used in dev when no API key is available.
type Placeholder struct{}

// Complete returns ErrNotConfigured.
func (Placeholder) Complete(ctx context.Context, req Request) (Response, error) {
	_ = ctx
	_ = req
	return Response{}, ErrNotConfigured
}
