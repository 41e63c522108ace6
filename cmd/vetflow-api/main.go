// Vetflow API — HTTP API discharge workflow.
//
// API:
//   - Принимает discharge запросы (текст, structured, существующий case)
//   - Выполняет orchestration шагов синхронно
//   - Кэширует результаты по Idempotency-Key в Redis
//   - Архивирует результаты в object storage
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/Vetflow/internal/api"
	"github.com/shaiso/Vetflow/internal/app"
	"github.com/shaiso/Vetflow/internal/cache"
	"github.com/shaiso/Vetflow/internal/config"
	"github.com/shaiso/Vetflow/internal/repo"
	"github.com/shaiso/Vetflow/internal/telemetry"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting vetflow-api")

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, repo.PoolConfig{DSN: cfg.Database.DSN, MaxConns: cfg.Database.MaxConns})
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// RabbitMQ
	mqConn, publisher, err := app.ConnectMQ(ctx, cfg, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, follow-ups are stored without queueing", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")
	}

	// Archive
	archiver, err := app.OpenArchive(ctx, cfg)
	if err != nil {
		logger.Error("failed to open archive", "error", err)
		os.Exit(1)
	}
	if archiver != nil {
		defer archiver.Close()
		logger.Info("archive opened", "bucket", cfg.Archive.BucketURL)
	}

	metrics := telemetry.NewMetrics(prometheus.DefaultRegisterer)

	discharge, err := app.NewDischarge(app.Deps{
		Config:    cfg,
		Pool:      pool,
		Publisher: publisher,
		Archiver:  archiver,
		Metrics:   metrics,
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to build discharge workflow", "error", err)
		os.Exit(1)
	}

	apiCfg := api.Config{
		Orchestrator: discharge.Orchestrator,
		Cases:        discharge.Cases,
		Defaults:     app.DefaultOptions(cfg),
		Logger:       logger,
	}
	if archiver != nil {
		apiCfg.Archive = archiver
	}

	checks := []app.HealthCheck{{Name: "postgres", Check: pool.Ping}}

	// Redis: без него Idempotency-Key не поддерживается
	rdb, err := app.NewRedis(ctx, cfg)
	if err != nil {
		logger.Warn("Redis not available, idempotency disabled", "error", err)
	} else {
		defer rdb.Close()
		resultCache, err := cache.New(cache.Config{Client: rdb, TTL: cfg.Redis.ResultTTL, Logger: logger})
		if err != nil {
			logger.Error("failed to create result cache", "error", err)
			os.Exit(1)
		}
		apiCfg.Cache = resultCache
		checks = append(checks, app.HealthCheck{Name: "redis", Check: resultCache.Ping})
		logger.Info("Redis connected")
	}

	handler := api.NewHandler(apiCfg)

	// HTTP mux: /healthz + /metrics + API
	mux := app.OpsMux(startTime, checks...)
	handler.RegisterRoutes(mux)

	if err := app.Serve(ctx, cfg.HTTP.Addr, mux, cfg.HTTP.ShutdownTimeout, logger); err != nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	logger.Info("vetflow-api stopped")
}
