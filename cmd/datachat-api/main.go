package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/datachat/datachat/internal/api"
	"github.com/datachat/datachat/internal/auth"
	"github.com/datachat/datachat/internal/config"
	"github.com/datachat/datachat/internal/database"
	"github.com/datachat/datachat/internal/demo"
	"github.com/datachat/datachat/internal/ingest"
	"github.com/datachat/datachat/internal/llm"
	"github.com/datachat/datachat/internal/observability"
	"github.com/datachat/datachat/internal/pipeline"
	"github.com/datachat/datachat/internal/query"
	"github.com/datachat/datachat/internal/schema"
	"github.com/datachat/datachat/internal/session"
	"github.com/datachat/datachat/internal/storage"
	"github.com/datachat/datachat/internal/storage/local"
	s3store "github.com/datachat/datachat/internal/storage/s3"
	"github.com/datachat/datachat/internal/suggest"
)

func main() {
	cfg, err := config.LoadFromEnv("datachat-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	db, dialect, err := database.Open(context.Background(), database.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		logger.Error("failed to open database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	objectStore, err := openObjectStore(cfg)
	if err != nil {
		logger.Error("failed to initialize object store", slog.Any("error", err))
		os.Exit(1)
	}

	completer, err := llm.NewOpenAIClient(llm.OpenAIConfig{
		BaseURL: cfg.AI.BaseURL,
		APIKey:  cfg.AI.APIKey,
		Model:   cfg.AI.Model,
		Timeout: cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize completion client", slog.Any("error", err))
		os.Exit(1)
	}
	if cfg.AI.APIKey == "" {
		logger.Warn("no completion API key configured; question suggestion and queries will fail")
	}

	catalog, err := demo.LoadCatalog(cfg.Demo.CatalogPath)
	if err != nil {
		logger.Error("failed to load demo catalog", slog.Any("error", err))
		os.Exit(1)
	}

	introspector := schema.NewIntrospector(db, dialect.CatalogSchema)
	ingestor := ingest.New(db, dialect, ingest.Options{
		Policy:             ingest.Policy(cfg.Ingest.CollisionPolicy),
		MaxConcurrentFiles: cfg.Ingest.MaxConcurrentFiles,
		Logger:             logger,
	})
	queryPipeline := pipeline.New(pipeline.Config{
		Schemas:      introspector,
		Completer:    completer,
		Engine:       query.NewExecutor(db, query.Options{ReadOnly: cfg.Query.ReadOnly}),
		DialectLabel: dialect.Label,
		Logger:       logger,
	})

	deps := api.Dependencies{
		Logger:        logger,
		Sessions:      session.NewRegistry(),
		Schemas:       introspector,
		Ingestor:      ingestor,
		Suggester:     suggest.New(completer, cfg.AI.SuggestionCount, logger),
		Pipeline:      queryPipeline,
		Demos:         demo.NewLoader(catalog, objectStore, ingestor, introspector, logger),
		WarmQuestions: true,
		Readiness: api.CombineReadinessChecks(
			api.CheckDatabase(database.Ping(db)),
			api.CheckObjectStoreConfig(cfg),
		),
		DependencyTimeout: time.Second,
	}
	if cfg.Ingest.ArchiveUploads {
		deps.Archive = objectStore
	}
	if cfg.Auth.Required {
		validator, err := auth.NewStaticAPIKeyValidator(cfg.Auth.StaticKeys)
		if err != nil {
			logger.Error("failed to parse static auth keys", slog.Any("error", err))
			os.Exit(1)
		}
		deps.AuthMiddleware = auth.Middleware(logger, validator)
	}

	handler := api.NewHandler(cfg, deps)
	server := &http.Server{
		Addr:         cfg.HTTP.Address,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		logger.Info("starting api server",
			slog.String("addr", cfg.HTTP.Address),
			slog.String("database", dialect.Label),
			slog.Int("demos", len(catalog.Demos)),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("api server failed", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	logger.Info("shutting down api server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", slog.Any("error", err))
		_ = server.Close()
		os.Exit(1)
	}
}

func openObjectStore(cfg config.Config) (storage.ObjectStore, error) {
	if !cfg.ObjectStore.Enabled {
		return local.New(cfg.Demo.FilesDir)
	}
	return s3store.New(context.Background(), s3store.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
}
