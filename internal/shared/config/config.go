package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds application configuration.
type Config struct {
	Port            string
	CORSAllowOrigin []string
	Env             string
	DatabaseURL     string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	S3Endpoint      string
	S3AccessKey     string
	S3SecretKey     string
	SSEKMSKeyID     string

	LLMProvider       string
	LLMModel          string
	LLMTemperature    float64
	LLMTimeoutSeconds int
	LLMRetryTransient bool
	OpenAIAPIKey      string
	GeminiAPIKey      string
	AnthropicAPIKey   string

	ResponseFormat string
	RenderMode     string
	CreditCost     int
	SignupCredits  int
	BcryptCost     int

	QueueBackend string
	SQSQueueURL  string
	AMQPURL      string
	AMQPQueue    string

	WorkerConcurrency      int
	SQSVisibilitySeconds   int
	ShutdownTimeoutSeconds int

	StripeSecretKey     string
	StripeWebhookSecret string
	CheckoutSuccessURL  string
	CheckoutCancelURL   string
	CreditPriceCents    int64
	CheckoutCurrency    string

	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	UIRedirectURL      string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")

	if env == "production" && dbURL == "" {
		log.Printf("DATABASE_URL is required in production")
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:5173")),
		Env:             env,
		DatabaseURL:     dbURL,

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", ""),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		S3Endpoint:      getEnv("S3_ENDPOINT", ""),
		S3AccessKey:     getEnv("S3_ACCESS_KEY", ""),
		S3SecretKey:     getEnv("S3_SECRET_KEY", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),

		LLMProvider:       normalizeProvider(getEnv("LLM_PROVIDER", "openai")),
		LLMModel:          getEnv("LLM_MODEL", ""),
		LLMTemperature:    getFloat("LLM_TEMPERATURE", 0.3),
		LLMTimeoutSeconds: getInt("LLM_TIMEOUT_SECONDS", 120),
		LLMRetryTransient: getBool("LLM_RETRY_TRANSIENT", false),
		OpenAIAPIKey:      getEnv("OPENAI_API_KEY", ""),
		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		AnthropicAPIKey:   getEnv("ANTHROPIC_API_KEY", ""),

		ResponseFormat: normalizeResponseFormat(getEnv("TAILOR_RESPONSE_FORMAT", "json")),
		RenderMode:     normalizeRenderMode(getEnv("TAILOR_RENDER_MODE", "paginate")),
		CreditCost:     getInt("TAILOR_CREDIT_COST", 1),
		SignupCredits:  getInt("SIGNUP_CREDITS", 3),
		BcryptCost:     getInt("BCRYPT_COST", 0),

		QueueBackend: normalizeQueueBackend(getEnv("QUEUE_BACKEND", "sqs")),
		SQSQueueURL:  getEnv("SQS_QUEUE_URL", ""),
		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPQueue:    getEnv("AMQP_QUEUE", "tailoring_jobs"),

		WorkerConcurrency:      getInt("WORKER_CONCURRENCY", 4),
		SQSVisibilitySeconds:   getInt("SQS_VISIBILITY_TIMEOUT_SECONDS", 1200),
		ShutdownTimeoutSeconds: getInt("SHUTDOWN_TIMEOUT_SECONDS", 30),

		StripeSecretKey:     getEnv("STRIPE_SECRET_KEY", ""),
		StripeWebhookSecret: getEnv("STRIPE_WEBHOOK_SECRET", ""),
		CheckoutSuccessURL:  getEnv("CHECKOUT_SUCCESS_URL", "http://localhost:5173/billing/success"),
		CheckoutCancelURL:   getEnv("CHECKOUT_CANCEL_URL", "http://localhost:5173/billing/cancel"),
		CreditPriceCents:    int64(getInt("CREDIT_PRICE_CENTS", 100)),
		CheckoutCurrency:    strings.ToLower(getEnv("CHECKOUT_CURRENCY", "usd")),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", ""),
		UIRedirectURL:      getEnv("UI_REDIRECT_URL", ""),
	}
}

// loadEnvFiles loads each file on its own so a missing .env does not skip cmd/.env.
// Variables already present in the environment win.
func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		_ = godotenv.Load(path)
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		log.Printf("invalid %s=%q, using %d", key, raw, def)
		return def
	}
	return v
}

func getFloat(key string, def float64) float64 {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		log.Printf("invalid %s=%q, using %v", key, raw, def)
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return def
	}
	return v
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	case "development", "dev":
		return "dev"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

func normalizeProvider(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "gemini", "google":
		return "gemini"
	case "anthropic", "claude":
		return "anthropic"
	default:
		return "openai"
	}
}

func normalizeResponseFormat(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "headers", "text", "legacy":
		return "headers"
	default:
		return "json"
	}
}

func normalizeRenderMode(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "one_page", "onepage", "single":
		return "one_page"
	default:
		return "paginate"
	}
}

func normalizeQueueBackend(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "amqp", "rabbitmq":
		return "amqp"
	default:
		return "sqs"
	}
}
