package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/shaiso/Vetflow/internal/ai"
	"github.com/shaiso/Vetflow/internal/archive"
	"github.com/shaiso/Vetflow/internal/cases"
	"github.com/shaiso/Vetflow/internal/config"
	"github.com/shaiso/Vetflow/internal/domain"
	"github.com/shaiso/Vetflow/internal/followup"
	"github.com/shaiso/Vetflow/internal/mail"
	"github.com/shaiso/Vetflow/internal/mq"
	"github.com/shaiso/Vetflow/internal/orchestrator"
	"github.com/shaiso/Vetflow/internal/repo"
	"github.com/shaiso/Vetflow/internal/steps"
	"github.com/shaiso/Vetflow/internal/telemetry"
)

// Discharge — собранный discharge workflow.
type Discharge struct {
	Orchestrator *orchestrator.Orchestrator
	Cases        *cases.Service
}

// Deps — инфраструктура, общая для бинарников.
type Deps struct {
	Config *config.Config
	Pool   *pgxpool.Pool

	// Publisher — nil, если RabbitMQ недоступен: follow-ups сохраняются, но не ставятся в очередь.
	Publisher *mq.Publisher

	// Archiver — nil, если архив не настроен.
	Archiver *archive.Archiver

	Metrics *telemetry.Metrics
	Logger  *slog.Logger
}

// NewPlanner создаёт планировщик follow-ups из конфигурации.
func NewPlanner(cfg *config.Config) (*followup.Planner, error) {
	return followup.New(followup.Config{
		EmailDelayDays: cfg.FollowUp.EmailDelayDays,
		CallDelayDays:  cfg.FollowUp.CallDelayDays,
		EmailWindow:    cfg.Email.Window,
		CallWindow:     cfg.Telephony.Window,
		Timezone:       cfg.Email.Timezone,
	})
}

// NewDischarge собирает repos, AI, шаблоны писем, CaseService, реестр шагов и orchestrator.
// Без ai.token extractEntities (для text case) и generateSummary завершаются ошибкой.
func NewDischarge(d Deps) (*Discharge, error) {
	cfg := d.Config
	if d.Logger == nil {
		d.Logger = slog.Default()
	}

	planner, err := NewPlanner(cfg)
	if err != nil {
		return nil, fmt.Errorf("followup planner: %w", err)
	}

	catalog := mail.DefaultCatalog()
	if cfg.Email.TemplatesFile != "" {
		catalog, err = mail.LoadCatalog(cfg.Email.TemplatesFile)
		if err != nil {
			return nil, fmt.Errorf("email templates: %w", err)
		}
	}
	renderer := mail.NewRenderer(mail.Config{Catalog: catalog, ClinicName: cfg.Email.ClinicName})

	svcCfg := cases.Config{
		Cases:     repo.NewCaseRepo(d.Pool),
		Patients:  repo.NewPatientRepo(d.Pool),
		Summaries: repo.NewSummaryRepo(d.Pool),
		Emails:    repo.NewEmailRepo(d.Pool),
		Calls:     repo.NewCallRepo(d.Pool),
		Planner:   planner,
		Logger:    d.Logger,
	}
	// nil-указатели не должны попасть в интерфейсы
	if d.Publisher != nil {
		svcCfg.Publisher = d.Publisher
	}
	if d.Archiver != nil {
		svcCfg.Archiver = d.Archiver
	}
	svc := cases.New(svcCfg)

	deps := steps.Deps{
		Renderer: renderer,
		Records:  svc,
		Emails:   svc,
	}

	model, err := ai.NewModel(ai.Config{BaseURL: cfg.AI.BaseURL, Token: cfg.AI.Token, Model: cfg.AI.Model})
	if err != nil {
		d.Logger.Warn("AI model is not configured", "error", err)
	} else {
		deps.Extractor = ai.NewExtractor(model, d.Logger)
		deps.Summarizer = ai.NewSummarizer(model, cfg.AI.Model)
	}

	registry := steps.DefaultRegistry(deps)
	if missing := registry.Missing(); len(missing) > 0 {
		return nil, fmt.Errorf("no handlers for steps: %v", missing)
	}

	orch := orchestrator.New(orchestrator.Config{
		Registry: registry,
		Cases:    svc,
		Metrics:  d.Metrics,
		Logger:   d.Logger,
	})

	return &Discharge{Orchestrator: orch, Cases: svc}, nil
}

// DefaultOptions возвращает options orchestration из конфигурации.
func DefaultOptions(cfg *config.Config) *domain.OrchestrationOptions {
	parallel := cfg.Orchestrator.Parallel
	return &domain.OrchestrationOptions{
		Parallel:    &parallel,
		StopOnError: cfg.Orchestrator.StopOnError,
	}
}

// ConnectMQ подключается к RabbitMQ и объявляет топологию.
func ConnectMQ(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*mq.Connection, *mq.Publisher, error) {
	conn, err := mq.NewConnection(mq.ConnectionConfig{URL: cfg.RabbitMQ.URL, Logger: logger})
	if err != nil {
		return nil, nil, err
	}
	if err := mq.SetupTopology(ctx, conn); err != nil {
		_ = conn.Close()
		return nil, nil, fmt.Errorf("setup topology: %w", err)
	}
	logger.Debug("rabbitmq topology", "topology", mq.TopologyInfo())
	return conn, mq.NewPublisher(conn, logger), nil
}

// OpenArchive открывает архив. Пустой bucket_url — nil без ошибки.
func OpenArchive(ctx context.Context, cfg *config.Config) (*archive.Archiver, error) {
	if cfg.Archive.BucketURL == "" {
		return nil, nil
	}
	return archive.Open(ctx, cfg.Archive.BucketURL, cfg.Archive.Prefix)
}

// NewRedis создаёт клиент Redis и проверяет соединение.
func NewRedis(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

// HealthCheck — проверка зависимости для /healthz.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// OpsMux возвращает mux с /healthz и /metrics.
// Упавшая проверка даёт 503 с именем зависимости.
func OpsMux(started time.Time, checks ...HealthCheck) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for _, hc := range checks {
			if err := hc.Check(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				fmt.Fprintf(w, "%s: %v", hc.Name, err)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(started).Round(time.Second))
	})
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

// MQHealth проверяет соединение с RabbitMQ.
func MQHealth(conn *mq.Connection) HealthCheck {
	return HealthCheck{Name: "rabbitmq", Check: func(context.Context) error {
		if !conn.IsConnected() {
			return errors.New("not connected")
		}
		return nil
	}}
}

// Serve запускает HTTP сервер и останавливает его после отмены ctx.
func Serve(ctx context.Context, addr string, handler http.Handler, shutdownTimeout time.Duration, logger *slog.Logger) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
