package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"cv-tailor/internal/accounts"
	googleauth "cv-tailor/internal/auth"
	"cv-tailor/internal/billing"
	"cv-tailor/internal/credits"
	"cv-tailor/internal/documents"
	"cv-tailor/internal/jobdesc"
	"cv-tailor/internal/llm"
	anthropic "cv-tailor/internal/llm/anthropic"
	gemini "cv-tailor/internal/llm/gemini"
	openai "cv-tailor/internal/llm/openai"
	"cv-tailor/internal/queue"
	"cv-tailor/internal/render"
	"cv-tailor/internal/shared/config"
	"cv-tailor/internal/shared/server"
	"cv-tailor/internal/shared/storage/db"
	"cv-tailor/internal/shared/storage/object"
	localstore "cv-tailor/internal/shared/storage/object/local"
	s3store "cv-tailor/internal/shared/storage/object/s3"
	"cv-tailor/internal/shared/telemetry"
	"cv-tailor/internal/tailor"
	"cv-tailor/internal/tailorings"
)

// App holds shared dependencies.
type App struct {
	Config     config.Config
	Router     *gin.Engine
	DB         *sql.DB
	Store      object.Store
	Presigner  object.Presigner
	Queue      queue.Client
	Consumer   *queue.AMQPQueue
	LLM        llm.Completer
	Accounts   *accounts.Service
	Credits    *credits.Service
	Documents  *documents.Service
	Tailorings *tailorings.Service
	Billing    *billing.Service
	// Processor runs queued tailorings. Tests may replace it.
	Processor Processor
}

// Processor runs one queued tailoring.
type Processor interface {
	Process(ctx context.Context, tailoringID string) error
}

// Build prepares shared dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{Config: cfg, DB: sqlDB}

	if err := buildStore(ctx, app); err != nil {
		return nil, err
	}
	if err := buildQueue(ctx, app); err != nil {
		return nil, err
	}
	completer, err := BuildLLM(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.LLM = completer

	deps, err := buildServices(app)
	if err != nil {
		return nil, err
	}
	app.Router = server.NewRouter(deps)

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "DATABASE_URL empty"})
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	sqlDB, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		if isDevLike(cfg.Env) {
			telemetry.Warn("bootstrap.memory_repos", map[string]any{"reason": "database connect failed", "error": err.Error()})
			return nil, nil
		}
		return nil, err
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, app *App) error {
	cfg := app.Config
	switch cfg.ObjectStoreType {
	case "s3":
		store, err := s3store.New(ctx, s3store.Options{
			Region:    cfg.AWSRegion,
			Bucket:    cfg.S3Bucket,
			Prefix:    cfg.S3Prefix,
			KMSKeyID:  cfg.SSEKMSKeyID,
			Endpoint:  cfg.S3Endpoint,
			AccessKey: cfg.S3AccessKey,
			SecretKey: cfg.S3SecretKey,
		})
		if err != nil {
			return err
		}
		app.Store = store
		app.Presigner = store
	default:
		app.Store = localstore.New(cfg.LocalStoreDir)
	}
	return nil
}

func buildQueue(ctx context.Context, app *App) error {
	cfg := app.Config
	switch cfg.QueueBackend {
	case "sqs":
		if strings.TrimSpace(cfg.SQSQueueURL) == "" {
			return nil
		}
		client, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.SQSQueueURL)
		if err != nil {
			return err
		}
		app.Queue = client
	case "amqp":
		if strings.TrimSpace(cfg.AMQPURL) == "" {
			return nil
		}
		q, err := queue.NewAMQPQueue(cfg.AMQPURL, cfg.AMQPQueue)
		if err != nil {
			return err
		}
		app.Queue = q
		app.Consumer = q
	}
	return nil
}

// BuildLLM selects the completion client for cfg.LLMProvider. Without an API key it
// returns llm.Placeholder so the API still starts.
func BuildLLM(ctx context.Context, cfg config.Config) (llm.Completer, error) {
	timeout := time.Duration(cfg.LLMTimeoutSeconds) * time.Second
	if providerKey(cfg) == "" {
		telemetry.Warn("bootstrap.llm_placeholder", map[string]any{"provider": cfg.LLMProvider})
		return llm.Placeholder{}, nil
	}

	var (
		completer llm.Completer
		err       error
	)
	switch cfg.LLMProvider {
	case "openai":
		completer, err = openai.NewClient(cfg.OpenAIAPIKey, cfg.LLMModel, timeout)
	case "gemini":
		completer, err = gemini.NewClient(ctx, cfg.GeminiAPIKey, cfg.LLMModel, timeout)
	case "anthropic":
		completer, err = anthropic.NewClient(cfg.AnthropicAPIKey, cfg.LLMModel, timeout)
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}
	if err != nil {
		return nil, err
	}
	if cfg.LLMRetryTransient {
		completer = llm.WithTransientRetry(completer)
	}
	return completer, nil
}

func providerKey(cfg config.Config) string {
	switch cfg.LLMProvider {
	case "gemini":
		return strings.TrimSpace(cfg.GeminiAPIKey)
	case "anthropic":
		return strings.TrimSpace(cfg.AnthropicAPIKey)
	default:
		return strings.TrimSpace(cfg.OpenAIAPIKey)
	}
}

func buildServices(app *App) (server.RouterDeps, error) {
	cfg := app.Config

	var (
		accountRepo accounts.Repo
		docRepo     documents.DocumentsRepo
		tailorRepo  tailorings.Repo
		creditSvc   *credits.Service
	)
	if app.DB != nil {
		accountRepo = &accounts.PGRepo{DB: app.DB}
		docRepo = &documents.PGRepo{DB: app.DB}
		tailorRepo = &tailorings.PGRepo{DB: app.DB}
		creditSvc = credits.NewPostgresService(credits.NewPGStore(app.DB))
	} else {
		accountRepo = accounts.NewMemoryRepo()
		docRepo = documents.NewMemoryRepo()
		tailorRepo = tailorings.NewMemoryRepo()
		creditSvc = credits.NewService()
	}

	accountSvc := accounts.NewService(accountRepo, creditSvc, cfg.SignupCredits, cfg.BcryptCost)
	creditSvc.Resolver = accountSvc

	docSvc := &documents.Service{
		Store:     app.Store,
		Presigner: app.Presigner,
		Repo:      docRepo,
	}

	format, err := tailor.ParseFormat(cfg.ResponseFormat)
	if err != nil {
		return server.RouterDeps{}, err
	}
	renderOpts := render.DefaultOptions()
	renderOpts.Mode = render.ParseMode(cfg.RenderMode)

	fetcher := jobdesc.NewFetcher(nil)
	tailorSvc := &tailorings.Service{
		Repo:        tailorRepo,
		Documents:   docSvc,
		Credits:     creditSvc,
		Store:       app.Store,
		LLM:         app.LLM,
		Provider:    cfg.LLMProvider,
		Model:       cfg.LLMModel,
		Format:      format,
		Render:      renderOpts,
		CreditCost:  cfg.CreditCost,
		Temperature: cfg.LLMTemperature,
		Jobs:        fetcher,
		Queue:       app.Queue,
	}

	jobHandler := &jobdesc.Handler{
		Fetcher:  fetcher,
		Analyzer: jobdesc.NewAnalyzer(app.LLM),
	}
	deps := server.RouterDeps{
		Config:          cfg,
		Accounts:        accounts.NewHandler(accountSvc),
		Credits:         credits.NewHandler(creditSvc),
		Documents:       documents.NewHandler(docSvc),
		Tailorings:      tailorings.NewHandler(tailorSvc),
		JobDescriptions: jobHandler,
	}

	if strings.TrimSpace(cfg.StripeSecretKey) != "" {
		app.Billing = billing.NewService(billing.NewStripeCheckout(cfg.StripeSecretKey), creditSvc, billing.Options{
			WebhookSecret: cfg.StripeWebhookSecret,
			UnitCents:     cfg.CreditPriceCents,
			Currency:      cfg.CheckoutCurrency,
			SuccessURL:    cfg.CheckoutSuccessURL,
			CancelURL:     cfg.CheckoutCancelURL,
		})
		deps.Billing = billing.NewHandler(app.Billing)
	}

	if strings.TrimSpace(cfg.GoogleClientID) != "" {
		deps.GoogleAuth = googleauth.NewGoogleService(
			accountSvc,
			cfg.GoogleClientID,
			cfg.GoogleClientSecret,
			cfg.GoogleRedirectURL,
			cfg.UIRedirectURL,
		)
	}

	app.Accounts = accountSvc
	app.Credits = creditSvc
	app.Documents = docSvc
	app.Tailorings = tailorSvc
	app.Processor = tailorSvc

	return deps, nil
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
