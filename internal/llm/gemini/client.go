package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"cv-tailor/internal/llm"
	"cv-tailor/internal/shared/telemetry"
)

// DefaultModel is used when LLM_MODEL is empty.
const DefaultModel = "gemini-2.5-flash"

// Client implements llm.Completer on the Gemini API.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient creates a Gemini client for the given API key.
func NewClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("GEMINI_API_KEY is required")
	}
	if strings.TrimSpace(model) == "" {
		model = DefaultModel
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if timeout > 0 {
		cfg.HTTPOptions.Timeout = &timeout
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

// Complete generates content for the prompt with the system instruction attached.
func (c *Client) Complete(ctx context.Context, in llm.Request) (llm.Response, error) {
	cfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(in.Temperature)),
	}
	if strings.TrimSpace(in.System) != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: in.System}}}
	}
	if in.JSON {
		cfg.ResponseMIMEType = "application/json"
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, genai.Text(in.Prompt), cfg)
	if err != nil {
		return llm.Response{}, fmt.Errorf("gemini generate content: %w", err)
	}

	text := textFromResponse(resp)
	if text == "" {
		return llm.Response{}, fmt.Errorf("gemini: %w", llm.ErrEmptyCompletion)
	}

	out := llm.Response{Text: text, Model: c.model}
	if resp.UsageMetadata != nil {
		out.PromptTokens = int(resp.UsageMetadata.PromptTokenCount)
		out.CompletionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}
	telemetry.Info("llm.response", map[string]any{
		"provider":          "gemini",
		"model":             out.Model,
		"prompt_tokens":     out.PromptTokens,
		"completion_tokens": out.CompletionTokens,
	})
	return out, nil
}

// textFromResponse joins the text parts of every candidate.
func textFromResponse(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	var builder strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil {
				continue
			}
			text := strings.TrimSpace(part.Text)
			if text == "" {
				continue
			}
			if builder.Len() > 0 {
				builder.WriteString("\n")
			}
			builder.WriteString(text)
		}
	}
	return strings.TrimSpace(builder.String())
}

var _ llm.Completer = (*Client)(nil)
