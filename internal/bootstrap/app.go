// Package bootstrap wires the application graph from configuration: storage
// and repositories pick Postgres or in-memory, the queue picks SQS or an
// in-process fallback, and both binaries share the same construction.
package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	"claimdocs-backend/internal/documents"
	"claimdocs-backend/internal/extract"
	"claimdocs-backend/internal/llm"
	"claimdocs-backend/internal/llm/openai"
	"claimdocs-backend/internal/ocr"
	"claimdocs-backend/internal/ocr/openrouter"
	"claimdocs-backend/internal/pipeline"
	"claimdocs-backend/internal/queue"
	"claimdocs-backend/internal/quota"
	"claimdocs-backend/internal/services/health"
	"claimdocs-backend/internal/shared/config"
	"claimdocs-backend/internal/shared/storage/db"
	"claimdocs-backend/internal/shared/storage/object"
	"claimdocs-backend/internal/shared/storage/object/local"
	"claimdocs-backend/internal/shared/storage/object/s3"
	"claimdocs-backend/internal/shared/telemetry"
)

// App is the assembled application graph.
type App struct {
	Config    config.Config
	DB        *sql.DB
	Store     object.ObjectStore
	Repo      documents.Repo
	Quota     *quota.Service
	Queue     *queue.SQSClient
	Processor *pipeline.Processor
	Documents *documents.Service
	Health    *health.Handler
}

// Build constructs the graph. dbOpts lets the API server and worker size
// their pools differently.
func Build(ctx context.Context, cfg config.Config, dbOpts db.Options) (*App, error) {
	app := &App{Config: cfg}

	if cfg.DatabaseURL != "" {
		database, err := db.Connect(ctx, cfg.DatabaseURL, dbOpts)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		app.DB = database
		app.Repo = documents.NewPGRepo(database)
		app.Quota = quota.NewPostgresService(quota.NewPGStore(database, quotaDefaults(cfg)))
	} else {
		telemetry.Warn("no DATABASE_URL, using in-memory repositories", nil)
		app.Repo = documents.NewMemoryRepo()
		app.Quota = quota.NewService(quotaDefaults(cfg))
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	app.Store = store

	var ocrEngine ocr.Engine
	if cfg.OCRAPIKey != "" {
		ocrEngine = openrouter.New(cfg.OCRAPIKey, cfg.OCRModel, cfg.OCRTimeout)
	} else {
		telemetry.Warn("no OCR key configured, scanned documents will fail extraction", nil)
	}

	var analyzer llm.Client = openai.New(cfg.LLMAPIKey, cfg.LLMModel, cfg.LLMTimeout)

	app.Processor = pipeline.NewProcessor(
		app.Repo,
		app.Store,
		&extract.Extractor{OCR: ocrEngine, MaxPages: cfg.MaxPages},
		analyzer,
		pipeline.Policy{MaxRetries: cfg.RetryMaxAttempts, BaseDelay: cfg.RetryBaseDelay},
		cfg.AnalysisTextLimit,
	)

	svc := &documents.Service{
		Repo:            app.Repo,
		Store:           app.Store,
		Quota:           app.Quota,
		Processor:       app.Processor,
		StorageProvider: cfg.ObjectStoreType,
		UserRetryLimit:  cfg.UserRetryLimit,
	}
	if cfg.QueueURL != "" {
		q, err := queue.NewSQSClient(ctx, cfg.QueueURL)
		if err != nil {
			return nil, fmt.Errorf("build queue client: %w", err)
		}
		app.Queue = q
		svc.Queue = q
	} else {
		telemetry.Warn("no SQS_QUEUE_URL, documents will be processed in-process", nil)
	}
	app.Documents = svc

	app.Health = &health.Handler{DB: app.DB, Version: Version}
	return app, nil
}

// Version is stamped at build time via -ldflags.
var Version = "dev"

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		store, err := s3.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
		if err != nil {
			return nil, fmt.Errorf("build s3 store: %w", err)
		}
		return store, nil
	default:
		return local.New(cfg.LocalStoreDir), nil
	}
}

func quotaDefaults(cfg config.Config) quota.Defaults {
	return quota.Defaults{
		DocLimit:   cfg.QuotaDocsPerMonth,
		BytesLimit: cfg.QuotaStorageBytes,
	}
}

// Close releases long-lived resources.
func (a *App) Close() {
	if a.DB != nil {
		if err := a.DB.Close(); err != nil {
			telemetry.Error("closing database", map[string]any{"error": err.Error()})
		}
	}
}
