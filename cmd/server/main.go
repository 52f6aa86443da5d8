package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/leaddesk/internal/config"
	"github.com/JonMunkholm/leaddesk/internal/core"
	"github.com/JonMunkholm/leaddesk/internal/export"
	"github.com/JonMunkholm/leaddesk/internal/history"
	"github.com/JonMunkholm/leaddesk/internal/logging"
	"github.com/JonMunkholm/leaddesk/internal/messaging"
	"github.com/JonMunkholm/leaddesk/internal/observability"
	"github.com/JonMunkholm/leaddesk/internal/schema"
	"github.com/JonMunkholm/leaddesk/internal/sheets"
	"github.com/JonMunkholm/leaddesk/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"schema", cfg.Schema.Variant,
		"batch_max_concurrent", cfg.Batch.MaxConcurrent,
		"gate_enabled", cfg.Gate.Enabled(),
		"rate_limit_enabled", cfg.Rate.Enabled,
	)

	ctx := context.Background()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing)
	if err != nil {
		slog.Error("failed to init tracing", "error", err)
		os.Exit(1)
	}

	sch, err := schema.Load(cfg.Schema.Variant, cfg.Schema.File)
	if err != nil {
		slog.Error("failed to load schema", "error", err)
		os.Exit(1)
	}

	sheetClient, err := sheets.NewClient(ctx, sheets.Options{
		SpreadsheetID: cfg.Sheets.SpreadsheetID,
		SheetName:     cfg.Sheets.SheetName,
		Range:         cfg.Sheets.Range,
		APIKey:        cfg.Sheets.APIKey,
		Timeout:       cfg.Sheets.FetchTimeout,
	}, sch)
	if err != nil {
		slog.Error("failed to create sheets client", "error", err)
		os.Exit(1)
	}

	msgClient := messaging.NewClient(messaging.Options{
		BaseURL:       cfg.Messaging.BaseURL,
		PhoneNumberID: cfg.Messaging.PhoneNumberID,
		Token:         cfg.Messaging.Token,
		CountryCode:   cfg.Messaging.CountryCode,
		Language:      cfg.Messaging.Language,
		MaxImageSize:  cfg.Messaging.MaxImageSize,
		Timeout:       cfg.Messaging.Timeout,
	})

	// Reports are archived only when an object store is configured.
	var archive export.Archive
	if cfg.Export.S3Endpoint != "" {
		store, err := export.NewObjectStore(ctx, export.ObjectStoreConfig{
			Endpoint:  cfg.Export.S3Endpoint,
			Bucket:    cfg.Export.S3Bucket,
			AccessKey: cfg.Export.S3AccessKey,
			SecretKey: cfg.Export.S3SecretKey,
			UseSSL:    cfg.Export.S3UseSSL,
		})
		if err != nil {
			slog.Error("failed to connect to object store", "error", err)
			os.Exit(1)
		}
		archive = store
		slog.Info("archiving error reports", "bucket", store.Bucket())
	}

	var store history.Store
	if cfg.History.DatabaseURL != "" {
		poolConfig, err := pgxpool.ParseConfig(cfg.History.DatabaseURL)
		if err != nil {
			slog.Error("failed to parse database URL", "error", err)
			os.Exit(1)
		}
		poolConfig.MaxConns = int32(cfg.History.MaxConns)

		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			slog.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		if err := pool.Ping(ctx); err != nil {
			slog.Error("failed to ping database", "error", err)
			os.Exit(1)
		}

		pg := history.NewPostgresStore(pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			slog.Error("failed to create history table", "error", err)
			os.Exit(1)
		}
		store = pg
		slog.Info("batch history in postgres")
	} else {
		store = history.NewMemoryStore(cfg.History.MemoryLimit)
		slog.Info("batch history in memory", "limit", cfg.History.MemoryLimit)
	}

	service, err := core.NewService(core.Deps{
		Schema:       sch,
		Fetcher:      sheetClient,
		Senders:      core.MessagingSenders(msgClient),
		Reporter:     export.NewReporter(archive),
		History:      store,
		Limiter:      core.NewBatchLimiter(cfg.Batch.MaxConcurrent, cfg.Batch.MaxWait),
		BatchTimeout: cfg.Batch.Timeout,
		Retain:       cfg.Batch.Retain,
	})
	if err != nil {
		slog.Error("failed to create service", "error", err)
		os.Exit(1)
	}

	// A failed first load still starts the server; the page shows the error.
	loadCtx, cancelLoad := context.WithTimeout(ctx, cfg.Sheets.FetchTimeout)
	if err := service.Refresh(loadCtx); err != nil {
		slog.Warn("initial sheet load failed", "error", err)
	}
	cancelLoad()

	server := web.NewServer(service, cfg)

	jobCtx, cancelJobs := context.WithCancel(context.Background())
	go service.StartRefreshScheduler(jobCtx, cfg.Sheets.RefreshInterval, cfg.Sheets.FetchTimeout)

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if st := service.Limiter().Status(); st.Active > 0 {
			slog.Info("cancelling running batches", "active", st.Active)
		}
		if err := service.Shutdown(shutdownCtx); err != nil {
			slog.Warn("batches did not stop in time", "error", err)
		}

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}
		if err := shutdownTracing(shutdownCtx); err != nil {
			slog.Warn("tracing shutdown error", "error", err)
		}
	}()

	if err := server.Start(); err != nil {
		slog.Info("server stopped", "error", err)
	}
}
