package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"anchor/backend/internal/config"
	"anchor/backend/internal/db"
	"anchor/backend/internal/docstore"
	"anchor/backend/internal/enrichment"
	"anchor/backend/internal/logging"
	"anchor/backend/internal/server"
)

func main() {
	cfg := config.Load()
	logger := logging.New(logging.Options{Level: cfg.LogLevel, File: cfg.LogFile})
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	ctx := context.Background()

	var store docstore.Store
	switch cfg.StoreBackend {
	case config.StoreBackendMemory:
		logger.Warn("using in-memory document store; data is lost on restart")
		store = docstore.NewMemoryStore()
	default:
		pool, err := db.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("database connect failed", zap.Error(err))
		}
		defer pool.Close()
		if err := docstore.EnsureSchema(ctx, pool); err != nil {
			logger.Fatal("database schema mismatch", zap.Error(err))
		}
		store = docstore.NewPostgresStore(pool)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := enrichment.NewMetrics(registry)
	if err != nil {
		logger.Fatal("register enrichment metrics", zap.Error(err))
	}

	azureTimeout := time.Duration(cfg.AzureTimeoutSeconds) * time.Second
	safety := enrichment.NewAzureContentSafety(enrichment.AzureOptions{
		Endpoint: cfg.AzureContentSafetyEndpoint,
		Key:      cfg.AzureContentSafetyKey,
		Timeout:  azureTimeout,
		Logger:   logger,
		Metrics:  metrics,
	})
	sentiment := enrichment.NewAzureLanguage(enrichment.AzureOptions{
		Endpoint: cfg.AzureLanguageEndpoint,
		Key:      cfg.AzureLanguageKey,
		Timeout:  azureTimeout,
		Logger:   logger,
		Metrics:  metrics,
	})

	var models []enrichment.Model
	if cfg.AIMock {
		models = []enrichment.Model{enrichment.MockModel{}}
	} else {
		models, err = enrichment.BuildModels(ctx, cfg.ReflectionModels, enrichment.ModelCredentials{
			GeminiAPIKey:  cfg.GeminiAPIKey,
			GeminiBaseURL: cfg.GeminiBaseURL,
			OpenAIAPIKey:  cfg.OpenAIAPIKey,
			OpenAIBaseURL: cfg.OpenAIBaseURL,
		}, cfg.ReflectionRatePerMinute, logger)
		if err != nil {
			logger.Fatal("build reflection models", zap.Error(err))
		}
	}
	chain := enrichment.NewChain(models, enrichment.ChainOptions{
		Backoff:        time.Duration(cfg.ReflectionBackoffMS) * time.Millisecond,
		AttemptTimeout: time.Duration(cfg.ReflectionAttemptTimeoutSeconds) * time.Second,
		Logger:         logger,
		Metrics:        metrics,
	})
	if len(models) == 0 {
		logger.Warn("no reflection models configured; every entry gets the fallback reflection")
	} else {
		logger.Info("reflection chain ready", zap.Strings("models", chain.Models()))
	}
	pipeline := enrichment.NewPipeline(safety, sentiment, chain, metrics)

	app := server.New(cfg, server.Deps{
		Store:     store,
		Enricher:  pipeline,
		Safety:    safety,
		Reflector: pipeline.Reflector(),
		Gatherer:  registry,
		Logger:    logger,
	})
	httpServer := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("anchor api listening", zap.String("addr", "http://localhost:"+cfg.AppPort))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", zap.Error(err))
	}
}
