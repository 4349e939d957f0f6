package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"ENV", "LLM_TEMPERATURE", "TAILOR_CREDIT_COST", "TAILOR_RESPONSE_FORMAT", "TAILOR_RENDER_MODE", "QUEUE_BACKEND", "LLM_PROVIDER"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.Env != "dev" {
		t.Fatalf("expected dev env, got %q", cfg.Env)
	}
	if cfg.LLMTemperature != 0.3 {
		t.Fatalf("expected default temperature 0.3, got %v", cfg.LLMTemperature)
	}
	if cfg.CreditCost != 1 {
		t.Fatalf("expected credit cost 1, got %d", cfg.CreditCost)
	}
	if cfg.ResponseFormat != "json" || cfg.RenderMode != "paginate" {
		t.Fatalf("unexpected formats: %q %q", cfg.ResponseFormat, cfg.RenderMode)
	}
	if cfg.QueueBackend != "sqs" || cfg.LLMProvider != "openai" {
		t.Fatalf("unexpected backends: %q %q", cfg.QueueBackend, cfg.LLMProvider)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ENV", "prod")
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("LLM_TEMPERATURE", "0.75")
	t.Setenv("TAILOR_CREDIT_COST", "2")
	t.Setenv("TAILOR_RESPONSE_FORMAT", "headers")
	t.Setenv("TAILOR_RENDER_MODE", "one_page")
	t.Setenv("QUEUE_BACKEND", "rabbitmq")
	t.Setenv("LLM_PROVIDER", "claude")
	t.Setenv("CORS_ALLOW_ORIGINS", " https://a.example , ,https://b.example")

	cfg := Load()
	if cfg.Env != "production" {
		t.Fatalf("expected production, got %q", cfg.Env)
	}
	if cfg.LLMTemperature != 0.75 || cfg.CreditCost != 2 {
		t.Fatalf("unexpected numeric overrides: %v %d", cfg.LLMTemperature, cfg.CreditCost)
	}
	if cfg.ResponseFormat != "headers" || cfg.RenderMode != "one_page" {
		t.Fatalf("unexpected formats: %q %q", cfg.ResponseFormat, cfg.RenderMode)
	}
	if cfg.QueueBackend != "amqp" || cfg.LLMProvider != "anthropic" {
		t.Fatalf("unexpected backends: %q %q", cfg.QueueBackend, cfg.LLMProvider)
	}
	if len(cfg.CORSAllowOrigin) != 2 || cfg.CORSAllowOrigin[1] != "https://b.example" {
		t.Fatalf("unexpected origins: %v", cfg.CORSAllowOrigin)
	}
}

func TestGetIntFallsBackOnGarbage(t *testing.T) {
	t.Setenv("SIGNUP_CREDITS", "lots")
	if got := getInt("SIGNUP_CREDITS", 3); got != 3 {
		t.Fatalf("expected fallback 3, got %d", got)
	}
}
