package openai

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"cv-tailor/internal/llm"
	"cv-tailor/internal/shared/telemetry"
)

var apiURL = "https://api.openai.com/v1/chat/completions"

const defaultTimeout = 120 * time.Second

// Client implements llm.Completer using OpenAI Chat Completions.
type Client struct {
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient constructs a new OpenAI client. A zero timeout uses 120s.
func NewClient(apiKey, model string, timeout time.Duration) (*Client, error) {
	if strings.TrimSpace(model) == "" {
		return nil, fmt.Errorf("LLM_MODEL is required for OpenAI")
	}
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("OPENAI_API_KEY is required")
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		apiKey: apiKey,
		model:  model,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []chatMessage   `json:"messages"`
	Temperature    *float32        `json:"temperature,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

// Complete sends the system instruction and prompt and returns the first choice.
func (c *Client) Complete(ctx context.Context, in llm.Request) (llm.Response, error) {
	messages := make([]chatMessage, 0, 2)
	if strings.TrimSpace(in.System) != "" {
		messages = append(messages, chatMessage{Role: "system", Content: in.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: in.Prompt})

	reqBody := chatRequest{
		Model:    c.model,
		Messages: messages,
	}
	// gpt-5 models only accept the default temperature.
	if !isGPT5(c.model) {
		temp := float32(in.Temperature)
		reqBody.Temperature = &temp
	}
	if in.JSON {
		reqBody.ResponseFormat = &responseFormat{Type: "json_object"}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return llm.Response{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL, bytes.NewReader(payload))
	if err != nil {
		return llm.Response{}, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || strings.Contains(err.Error(), "Client.Timeout") {
			return llm.Response{}, fmt.Errorf("openai request timeout: %w", err)
		}
		return llm.Response{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return llm.Response{}, err
	}

	if resp.StatusCode >= 400 || gjson.GetBytes(body, "error").Exists() {
		return llm.Response{}, statusError(resp.StatusCode, body)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return llm.Response{}, fmt.Errorf("openai response parse: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return llm.Response{}, fmt.Errorf("openai response missing choices")
	}

	content := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if content == "" {
		return llm.Response{}, fmt.Errorf("openai response empty content: %w", llm.ErrEmptyCompletion)
	}

	out := llm.Response{Text: content, Model: parsed.Model}
	if out.Model == "" {
		out.Model = c.model
	}
	if parsed.Usage != nil {
		out.PromptTokens = parsed.Usage.PromptTokens
		out.CompletionTokens = parsed.Usage.CompletionTokens
	}
	logUsage(out, hashPrompt(in.System+"\n\n"+in.Prompt))
	return out, nil
}

// statusError keeps the provider's own message so callers can surface it.
func statusError(status int, body []byte) error {
	msg := gjson.GetBytes(body, "error.message").String()
	kind := gjson.GetBytes(body, "error.type").String()
	if msg == "" {
		msg = strings.TrimSpace(string(body))
	}
	if kind != "" {
		return fmt.Errorf("openai http status %d: %s (%s)", status, msg, kind)
	}
	return fmt.Errorf("openai http status %d: %s", status, msg)
}

func logUsage(resp llm.Response, promptHash string) {
	telemetry.Info("llm.response", map[string]any{
		"provider":          "openai",
		"model":             resp.Model,
		"prompt_hash":       promptHash,
		"prompt_tokens":     resp.PromptTokens,
		"completion_tokens": resp.CompletionTokens,
	})
}

func isGPT5(model string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(model)), "gpt-5")
}

func hashPrompt(prompt string) string {
	sum := sha256.Sum256([]byte(prompt))
	return hex.EncodeToString(sum[:])
}

var _ llm.Completer = (*Client)(nil)
