package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Vetflow/internal/domain"
	"github.com/shaiso/Vetflow/internal/mq"
	"github.com/shaiso/Vetflow/internal/telemetry"
)

// Default configuration values.
const (
	defaultPollInterval   = time.Minute
	defaultBatchSize      = 50
	defaultPrefetch       = 5
	defaultEarlyTolerance = 5 * time.Second
)

// EmailStore — хранилище запланированных писем.
type EmailStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledEmail, error)
	Claim(ctx context.Context, id uuid.UUID) error
	Release(ctx context.Context, id uuid.UUID) error
	UpdateDelivery(ctx context.Context, e *domain.ScheduledEmail) error
	ListDue(ctx context.Context, before time.Time, limit int) ([]domain.ScheduledEmail, error)
}

// CallStore — хранилище запланированных звонков.
type CallStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.ScheduledCall, error)
	Claim(ctx context.Context, id uuid.UUID) error
	Release(ctx context.Context, id uuid.UUID) error
	UpdateDelivery(ctx context.Context, c *domain.ScheduledCall) error
	ListDue(ctx context.Context, before time.Time, limit int) ([]domain.ScheduledCall, error)
}

// Republisher возвращает в delay-очередь сообщения, пришедшие раньше срока.
type Republisher interface {
	PublishEmailScheduled(ctx context.Context, payload mq.FollowUpPayload) error
	PublishCallScheduled(ctx context.Context, payload mq.FollowUpPayload) error
}

// Dispatcher доставляет запланированные follow-ups.
//
// Dispatcher:
//   - Получает письма и звонки из followups.*.due (event-driven)
//   - Периодически ищет просроченные SCHEDULED записи в БД (polling fallback)
//   - Отправляет через провайдера с retry и exponential backoff
//   - Сохраняет итоговый статус SENT или FAILED
//
// Несколько экземпляров могут потреблять из одних очередей и опрашивать одну БД:
// перед запросом к провайдеру запись захватывается (SCHEDULED → SENDING),
// и отправляет её только тот, кто захватил.
type Dispatcher struct {
	emails    EmailStore
	calls     CallStore
	sender    EmailSender
	placer    CallPlacer
	publisher Republisher
	conn      *mq.Connection
	metrics   *telemetry.Metrics

	retry          RetryPolicy
	pollInterval   time.Duration
	batchSize      int
	prefetch       int
	earlyTolerance time.Duration

	consumers []*mq.Consumer

	logger     *slog.Logger
	now        func() time.Time
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
}

// Config — конфигурация Dispatcher.
type Config struct {
	Emails EmailStore
	Calls  CallStore

	Sender EmailSender
	Placer CallPlacer

	// MQ
	Publisher Republisher
	Conn      *mq.Connection

	// Metrics (опционально)
	Metrics *telemetry.Metrics

	Retry RetryPolicy

	// Polling configuration
	PollInterval time.Duration // default: 1m
	BatchSize    int           // default: 50
	Prefetch     int           // default: 5

	// EarlyTolerance — насколько раньше срока сообщение ещё обрабатывается. Default: 5s.
	EarlyTolerance time.Duration

	Logger *slog.Logger
}

// New создаёт новый Dispatcher.
func New(cfg Config) *Dispatcher {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = defaultPrefetch
	}
	if cfg.EarlyTolerance <= 0 {
		cfg.EarlyTolerance = defaultEarlyTolerance
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Dispatcher{
		emails:         cfg.Emails,
		calls:          cfg.Calls,
		sender:         cfg.Sender,
		placer:         cfg.Placer,
		publisher:      cfg.Publisher,
		conn:           cfg.Conn,
		metrics:        cfg.Metrics,
		retry:          cfg.Retry.withDefaults(),
		pollInterval:   cfg.PollInterval,
		batchSize:      cfg.BatchSize,
		prefetch:       cfg.Prefetch,
		earlyTolerance: cfg.EarlyTolerance,
		logger:         cfg.Logger.With("component", "dispatcher"),
		now:            time.Now,
	}
}

// Start запускает consumers для писем и звонков и polling горутину.
func (d *Dispatcher) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancelFunc = cancel

	d.logger.Info("starting dispatcher",
		"poll_interval", d.pollInterval,
		"batch_size", d.batchSize,
		"max_attempts", d.retry.MaxAttempts,
	)

	// без RabbitMQ работает только polling
	if d.conn == nil {
		d.logger.Warn("no RabbitMQ connection, polling-only mode")
	} else {
		d.startConsumers(ctx)
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.pollLoop(ctx)
	}()

	d.logger.Info("dispatcher started")
	return nil
}

func (d *Dispatcher) startConsumers(ctx context.Context) {
	d.consumers = []*mq.Consumer{
		mq.NewConsumer(d.conn, d.logger, mq.ConsumerConfig{
			Queue:    mq.QueueEmailsDue,
			Handler:  d.handleEmailDue,
			Prefetch: d.prefetch,
		}),
		mq.NewConsumer(d.conn, d.logger, mq.ConsumerConfig{
			Queue:    mq.QueueCallsDue,
			Handler:  d.handleCallDue,
			Prefetch: d.prefetch,
		}),
	}

	for _, c := range d.consumers {
		d.wg.Add(1)
		go func() {
			defer d.wg.Done()
			if err := c.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				d.logger.Error("consumer error", "error", err)
			}
		}()
	}
}

// Stop останавливает Dispatcher и ждёт завершения горутин.
func (d *Dispatcher) Stop() {
	d.logger.Info("stopping dispatcher...")

	if d.cancelFunc != nil {
		d.cancelFunc()
	}
	for _, c := range d.consumers {
		c.Stop()
	}

	d.wg.Wait()

	d.logger.Info("dispatcher stopped")
}

// pollLoop — цикл polling для fallback.
func (d *Dispatcher) pollLoop(ctx context.Context) {
	ticker := time.NewTicker(d.pollInterval)
	defer ticker.Stop()

	// Первый poll сразу: подхватываем follow-ups, пропущенные пока были выключены
	d.Poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			d.Poll(ctx)
		}
	}
}

// Poll доставляет просроченные SCHEDULED письма и звонки.
// Срок считается с запасом pollInterval, чтобы не перехватывать сообщения, которые ещё в пути.
func (d *Dispatcher) Poll(ctx context.Context) {
	before := d.now().Add(-d.pollInterval)

	emails, err := d.emails.ListDue(ctx, before, d.batchSize)
	if err != nil {
		d.logger.Error("failed to list due emails", "error", err)
	}
	for i := range emails {
		if err := d.deliverEmail(ctx, &emails[i]); err != nil {
			d.logger.Error("failed to deliver email from poll", "email_id", emails[i].ID, "error", err)
		}
	}

	calls, err := d.calls.ListDue(ctx, before, d.batchSize)
	if err != nil {
		d.logger.Error("failed to list due calls", "error", err)
	}
	for i := range calls {
		if err := d.placeCall(ctx, &calls[i]); err != nil {
			d.logger.Error("failed to place call from poll", "call_id", calls[i].ID, "error", err)
		}
	}

	if n := len(emails) + len(calls); n > 0 {
		d.logger.Debug("poll processed follow-ups", "emails", len(emails), "calls", len(calls))
	}
}
