// Vetflow Scheduler — фоновая доработка cases.
//
// Scheduler периодически находит cases с извлечёнными сущностями,
// но без выписки, и прогоняет для них discharge workflow.
// Между экземплярами тик выполняет только лидер (pg advisory lock).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/Vetflow/internal/app"
	"github.com/shaiso/Vetflow/internal/batch"
	"github.com/shaiso/Vetflow/internal/config"
	"github.com/shaiso/Vetflow/internal/repo"
	"github.com/shaiso/Vetflow/internal/telemetry"
)

const schedLockKey int64 = 424242

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting vetflow-scheduler")

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

	archiver, err := app.OpenArchive(ctx, cfg)
	if err != nil {
		logger.Error("failed to open archive", "error", err)
		os.Exit(1)
	}
	if archiver != nil {
		defer archiver.Close()
	}

	discharge, err := app.NewDischarge(app.Deps{
		Config:    cfg,
		Pool:      pool,
		Publisher: publisher,
		Archiver:  archiver,
		Metrics:   telemetry.NewMetrics(prometheus.DefaultRegisterer),
		Logger:    logger,
	})
	if err != nil {
		logger.Error("failed to build discharge workflow", "error", err)
		os.Exit(1)
	}

	sched := batch.New(batch.Config{
		Cases:        repo.NewCaseRepo(pool),
		Orchestrator: discharge.Orchestrator,
		Leader:       repo.NewAdvisoryLock(pool, schedLockKey),
		Interval:     cfg.Batch.Interval,
		Size:         cfg.Batch.Size,
		ClinicID:     cfg.Batch.ClinicID,
		UserID:       cfg.Batch.UserID,
		Options:      app.DefaultOptions(cfg),
		Logger:       logger,
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		sched.Run(ctx)
	}()

	// HTTP mux: /healthz + /metrics
	addr := ":8081"
	if v := os.Getenv("SCHED_PORT"); v != "" {
		addr = ":" + v
	}
	if err := app.Serve(ctx, addr, app.OpsMux(startTime, app.HealthCheck{Name: "postgres", Check: pool.Ping}), cfg.HTTP.ShutdownTimeout, logger); err != nil {
		logger.Error("http server error", "error", err)
		cancel()
	}

	<-done
	logger.Info("vetflow-scheduler stopped")
}
