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

	"github.com/tablechat/tablechat/internal/api"
	"github.com/tablechat/tablechat/internal/audit"
	"github.com/tablechat/tablechat/internal/auth"
	"github.com/tablechat/tablechat/internal/chat"
	"github.com/tablechat/tablechat/internal/config"
	"github.com/tablechat/tablechat/internal/history"
	historypostgres "github.com/tablechat/tablechat/internal/history/postgres"
	"github.com/tablechat/tablechat/internal/nl2sql"
	"github.com/tablechat/tablechat/internal/observability"
	duckdbengine "github.com/tablechat/tablechat/internal/query/duckdb"
	"github.com/tablechat/tablechat/internal/schema"
	"github.com/tablechat/tablechat/internal/sqlcheck"
	s3store "github.com/tablechat/tablechat/internal/storage/s3"
)

func main() {
	cfg, err := config.LoadFromEnv("tablechat-api")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg, os.Stdout)
	engine, err := duckdbengine.Open(duckdbengine.Options{
		Path:         cfg.Database.Path,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		MaxIdleConns: cfg.Database.MaxIdleConns,
		MaxRows:      cfg.Chat.MaxResultRows,
		Timeout:      cfg.Chat.StatementTimeout,
	})
	if err != nil {
		logger.Error("failed to open serving database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = engine.Close() }()

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelStartup()

	catalog, err := schema.Load(startupCtx, engine.DB())
	if err != nil {
		logger.Error("failed to load schema catalog", slog.Any("error", err))
		os.Exit(1)
	}
	logger.Info("schema catalog loaded", slog.Int("tables", len(catalog.Tables())))

	validator, err := sqlcheck.New(cfg.Chat.MaxResultRows)
	if err != nil {
		logger.Error("failed to build validator", slog.Any("error", err))
		os.Exit(1)
	}

	store, err := history.NewStore(cfg.Chat.ContextWindow)
	if err != nil {
		logger.Error("failed to build context store", slog.Any("error", err))
		os.Exit(1)
	}

	readiness := []api.ReadinessCheck{engine.Ping}

	var recorder chat.TurnRecorder
	if cfg.Audit.DSN != "" {
		auditDB, err := historypostgres.Open(startupCtx, historypostgres.DBConfig{
			DSN:             cfg.Audit.DSN,
			MaxOpenConns:    cfg.Audit.MaxOpenConns,
			MaxIdleConns:    cfg.Audit.MaxIdleConns,
			ConnMaxIdleTime: cfg.Audit.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.Audit.ConnMaxLifetime,
		})
		if err != nil {
			logger.Error("failed to open audit db", slog.Any("error", err))
			os.Exit(1)
		}
		defer func() { _ = auditDB.Close() }()

		auditStore := historypostgres.NewStore(auditDB)
		recorder = auditStore
		readiness = append(readiness, auditStore.HealthCheck)
	}

	var uploader api.ExportUploader
	if cfg.ObjectStore.Endpoint != "" {
		objectStore, err := s3store.New(startupCtx, s3store.Config{
			Endpoint:         cfg.ObjectStore.Endpoint,
			Region:           cfg.ObjectStore.Region,
			Bucket:           cfg.ObjectStore.Bucket,
			AccessKeyID:      cfg.ObjectStore.AccessKeyID,
			SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
			UseSSL:           cfg.ObjectStore.UseSSL,
			Prefix:           cfg.ObjectStore.Prefix,
			AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
		})
		if err != nil {
			logger.Error("failed to initialize object store", slog.Any("error", err))
			os.Exit(1)
		}
		uploader, err = audit.NewUploader(objectStore)
		if err != nil {
			logger.Error("failed to build export uploader", slog.Any("error", err))
			os.Exit(1)
		}
		readiness = append(readiness, api.CheckObjectStoreConfig(cfg))
	}

	translator, err := nl2sql.NewOpenAITranslator(nl2sql.OpenAIConfig{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		Timeout:     cfg.AI.Timeout,
	})
	if err != nil {
		logger.Error("failed to initialize translator", slog.Any("error", err))
		os.Exit(1)
	}

	chatService, err := chat.New(chat.Options{
		Translator:       translator,
		Validator:        validator,
		Engine:           engine,
		Store:            store,
		Catalog:          catalog,
		Recorder:         recorder,
		Logger:           logger,
		MaxRetries:       cfg.Chat.MaxRetries,
		MaxResultRows:    cfg.Chat.MaxResultRows,
		StatementTimeout: cfg.Chat.StatementTimeout,
	})
	if err != nil {
		logger.Error("failed to build chat service", slog.Any("error", err))
		os.Exit(1)
	}

	deps := api.Dependencies{
		Logger:            logger,
		Readiness:         api.CombineReadinessChecks(readiness...),
		DependencyTimeout: time.Second,
		Chat:              chatService,
		Catalog:           catalog,
		Uploader:          uploader,
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
		logger.Info("starting api server", slog.String("addr", cfg.HTTP.Address))
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
