// Vetflow Dispatcher — доставляет запланированные follow-ups.
//
// Dispatcher:
//   - Получает письма и звонки из RabbitMQ, когда наступает их время
//   - Отправляет их через email и telephony провайдеров
//   - Реализует retry с exponential backoff
//   - Подбирает пропущенные записи polling'ом из PostgreSQL
//
// Dispatchers масштабируются горизонтально.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/Vetflow/internal/app"
	"github.com/shaiso/Vetflow/internal/config"
	"github.com/shaiso/Vetflow/internal/dispatcher"
	"github.com/shaiso/Vetflow/internal/repo"
	"github.com/shaiso/Vetflow/internal/telemetry"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting vetflow-dispatcher")

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

	dcfg := dispatcher.Config{
		Emails: repo.NewEmailRepo(pool),
		Calls:  repo.NewCallRepo(pool),
		Sender: dispatcher.NewHTTPEmailSender(dispatcher.ProviderConfig{
			URL:   cfg.Email.ProviderURL,
			Token: cfg.Email.ProviderToken,
		}, cfg.Email.From),
		Placer: dispatcher.NewHTTPCallPlacer(dispatcher.ProviderConfig{
			URL:   cfg.Telephony.URL,
			Token: cfg.Telephony.Token,
		}),
		Metrics:  telemetry.NewMetrics(prometheus.DefaultRegisterer),
		Prefetch: cfg.RabbitMQ.Prefetch,
		Logger:   logger,
	}

	// RabbitMQ
	mqConn, publisher, err := app.ConnectMQ(ctx, cfg, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in polling-only mode", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")
		dcfg.Conn = mqConn
		dcfg.Publisher = publisher
	}

	checks := []app.HealthCheck{{Name: "postgres", Check: pool.Ping}}
	if dcfg.Conn != nil {
		checks = append(checks, app.MQHealth(mqConn))
	}

	d := dispatcher.New(dcfg)
	if err := d.Start(ctx); err != nil {
		logger.Error("failed to start dispatcher", "error", err)
		os.Exit(1)
	}

	// HTTP mux: /healthz + /metrics
	addr := ":8082"
	if v := os.Getenv("DISPATCHER_PORT"); v != "" {
		addr = ":" + v
	}
	if err := app.Serve(ctx, addr, app.OpsMux(startTime, checks...), cfg.HTTP.ShutdownTimeout, logger); err != nil {
		logger.Error("http server error", "error", err)
		cancel()
	}

	// Останавливаем dispatcher
	d.Stop()
	logger.Info("vetflow-dispatcher stopped")
}
