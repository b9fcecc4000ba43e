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

	"github.com/joho/godotenv"

	"github.com/joseph-ayodele/auctions-etl/internal/common"
	"github.com/joseph-ayodele/auctions-etl/internal/coordinator"
	"github.com/joseph-ayodele/auctions-etl/internal/dispatch"
	"github.com/joseph-ayodele/auctions-etl/internal/extract/openai"
	"github.com/joseph-ayodele/auctions-etl/internal/office"
	"github.com/joseph-ayodele/auctions-etl/internal/repository"
	"github.com/joseph-ayodele/auctions-etl/internal/segment"
	"github.com/joseph-ayodele/auctions-etl/internal/server"
	"github.com/joseph-ayodele/auctions-etl/internal/storage"
	"github.com/joseph-ayodele/auctions-etl/internal/worker"
)

func main() {
	// Best effort; production config comes from the environment.
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg := common.LoadConfig()
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := repository.Open(ctx, cfg.Database, logger)
	if err != nil {
		logger.Error("failed to open database pool", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	if err := repository.HealthCheck(ctx, pool, cfg.Database.DialTimeout, logger); err != nil {
		logger.Error("database health check failed", "error", err)
		os.Exit(1)
	}
	auctionsRepo := repository.NewAuctionsRepository(pool, logger)

	objects, err := storage.New(ctx, cfg.Storage, logger)
	if err != nil {
		logger.Error("failed to build storage client", "error", err)
		os.Exit(1)
	}

	offices, err := office.Load(ctx, auctionsRepo,
		cfg.Pipeline.DefaultOfficeID, cfg.Pipeline.OfficeMatchThreshold, logger)
	if err != nil {
		logger.Error("failed to load office registry", "error", err)
		os.Exit(1)
	}

	extractor := openai.New(openai.Config{
		BaseURL:         cfg.LLM.BaseURL,
		APIKey:          cfg.LLM.APIKey,
		Model:           cfg.LLM.Model,
		Temperature:     cfg.LLM.Temperature,
		Timeout:         cfg.LLM.Timeout,
		LenientOptional: true,
	}, logger)

	budget := worker.NewBudget(cfg.Pipeline.TokenBudget)
	runner := worker.New(extractor, auctionsRepo, offices, budget,
		cfg.Pipeline.ExtractMaxRetries, cfg.Pipeline.Enabled, logger)

	statuses := dispatch.NewStatusStore()
	dispatcher := dispatch.New(runner, statuses, dispatch.Options{
		MaxConcurrent: cfg.Pipeline.MaxConcurrentBatches,
		BatchTimeout:  cfg.Pipeline.BatchTimeout,
	}, logger)
	defer dispatcher.Shutdown()

	segmenter := segment.NewSegmenter(cfg.Pipeline.SkipPages, logger)
	coord := coordinator.New(objects, segmenter, auctionsRepo, dispatcher,
		budget, cfg.Pipeline, cfg.Server.WebhookSecret, logger)

	srv := server.New(coord, objects, statuses, cfg.Server.WebhookSecret, cfg.Pipeline.Enabled, logger)
	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http serving", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown failed", "error", err)
	}
	logger.Info("stopped")
}
