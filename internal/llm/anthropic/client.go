package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"cv-tailor/internal/llm"
	"cv-tailor/internal/shared/telemetry"
)

const (
	// DefaultModel is used when LLM_MODEL is empty.
	DefaultModel     = "claude-sonnet-4-20250514"
	defaultMaxTokens = 4096
)

// Client implements llm.Completer on the Anthropic Messages API.
type Client struct {
	client anthropic.Client
	model  string
}

// NewClient creates an Anthropic client. Extra request options are applied after the defaults.
func NewClient(apiKey, model string, timeout time.Duration, opts ...option.RequestOption) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("ANTHROPIC_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey), option.WithMaxRetries(0)}
	if timeout > 0 {
		reqOpts = append(reqOpts, option.WithRequestTimeout(timeout))
	}
	reqOpts = append(reqOpts, opts...)
	return &Client{client: anthropic.NewClient(reqOpts...), model: model}, nil
}

// Complete sends one user message with the system prompt attached.
// JSON requests rely on the prompt; code fences around the reply are stripped.
func (c *Client) Complete(ctx context.Context, in llm.Request) (llm.Response, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(c.model),
		MaxTokens:   defaultMaxTokens,
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(in.Prompt))},
		Temperature: anthropic.Float(in.Temperature),
	}
	if strings.TrimSpace(in.System) != "" {
		params.System = []anthropic.TextBlockParam{{Text: in.System}}
	}

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return llm.Response{}, fmt.Errorf("anthropic messages: %w", err)
	}

	text := textFromMessage(msg)
	if in.JSON {
		text = stripCodeFences(text)
	}
	if text == "" {
		return llm.Response{}, fmt.Errorf("anthropic: %w", llm.ErrEmptyCompletion)
	}

	out := llm.Response{
		Text:             text,
		Model:            string(msg.Model),
		PromptTokens:     int(msg.Usage.InputTokens),
		CompletionTokens: int(msg.Usage.OutputTokens),
	}
	if out.Model == "" {
		out.Model = c.model
	}
	telemetry.Info("llm.response", map[string]any{
		"provider":          "anthropic",
		"model":             out.Model,
		"stop_reason":       string(msg.StopReason),
		"prompt_tokens":     out.PromptTokens,
		"completion_tokens": out.CompletionTokens,
	})
	return out, nil
}

func textFromMessage(msg *anthropic.Message) string {
	if msg == nil {
		return ""
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type != "text" {
			continue
		}
		b.WriteString(block.Text)
	}
	return strings.TrimSpace(b.String())
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if nl := strings.Index(s, "\n"); nl >= 0 {
		s = s[nl+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

var _ llm.Completer = (*Client)(nil)
