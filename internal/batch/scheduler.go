package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Vetflow/internal/domain"
)

// Default configuration values.
const (
	defaultInterval = time.Minute
	defaultSize     = 50
	defaultUserID   = "vetflow-batch"
)

// CaseLister — источник cases, ожидающих выписки.
type CaseLister interface {
	ListAwaitingSummary(ctx context.Context, clinicID string, limit int) ([]domain.Case, error)
}

// Orchestrator выполняет discharge workflow.
type Orchestrator interface {
	Orchestrate(ctx context.Context, actor domain.Actor, req *domain.OrchestrationRequest) *domain.OrchestrationResult
}

// Leader — выбор лидера между экземплярами scheduler.
type Leader interface {
	TryAcquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// Scheduler периодически доводит до discharge cases, у которых уже извлечены
// сущности, но нет выписки.
type Scheduler struct {
	cases        CaseLister
	orchestrator Orchestrator
	leader       Leader
	interval     time.Duration
	size         int
	clinicID     string
	userID       string
	options      *domain.OrchestrationOptions
	logger       *slog.Logger
}

// Config — конфигурация Scheduler.
type Config struct {
	Cases        CaseLister
	Orchestrator Orchestrator

	// Leader — опционально. nil — тик выполняется всегда.
	Leader Leader

	Interval time.Duration // default: 1m
	Size     int           // cases за один тик (default: 50)

	// ClinicID — ограничить одной клиникой. Пустой — все клиники.
	ClinicID string

	// UserID — от чьего имени выполняется orchestration. Default: vetflow-batch.
	UserID string

	// Options — параметры orchestration для каждого case.
	Options *domain.OrchestrationOptions

	Logger *slog.Logger
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	if cfg.Interval <= 0 {
		cfg.Interval = defaultInterval
	}
	if cfg.Size <= 0 {
		cfg.Size = defaultSize
	}
	if cfg.UserID == "" {
		cfg.UserID = defaultUserID
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Scheduler{
		cases:        cfg.Cases,
		orchestrator: cfg.Orchestrator,
		leader:       cfg.Leader,
		interval:     cfg.Interval,
		size:         cfg.Size,
		clinicID:     cfg.ClinicID,
		userID:       cfg.UserID,
		options:      cfg.Options,
		logger:       cfg.Logger.With("component", "batch"),
	}
}

// Run выполняет тики до отмены ctx.
func (s *Scheduler) Run(ctx context.Context) {
	tk := time.NewTicker(s.interval)
	defer tk.Stop()

	defer func() {
		if s.leader != nil {
			if err := s.leader.Release(context.Background()); err != nil {
				s.logger.Warn("release leadership", "error", err)
			}
		}
	}()

	s.logger.Info("batch scheduler started", "interval", s.interval, "size", s.size)

	for {
		select {
		case <-tk.C:
			if !s.isLeader(ctx) {
				continue
			}
			if _, err := s.Tick(ctx); err != nil {
				s.logger.Error("batch tick failed", "error", err)
			}

		case <-ctx.Done():
			s.logger.Info("batch scheduler stopped")
			return
		}
	}
}

// isLeader пытается стать лидером (или подтвердить лидерство).
func (s *Scheduler) isLeader(ctx context.Context) bool {
	if s.leader == nil {
		return true
	}
	ok, err := s.leader.TryAcquire(ctx)
	if err != nil {
		s.logger.Error("leader election failed", "error", err)
		return false
	}
	return ok
}

// TickStats — итог одного тика.
type TickStats struct {
	Found     int
	Succeeded int
	Failed    int
}

// Tick выполняет один тик.
//
// 1. Находит cases в статусе EXTRACTED без выписки
// 2. Для каждого запускает workflow как existingCase (ingest засчитывается без выполнения)
//
// Неуспех одного case не блокирует обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) (TickStats, error) {
	var stats TickStats

	cases, err := s.cases.ListAwaitingSummary(ctx, s.clinicID, s.size)
	if err != nil {
		return stats, fmt.Errorf("list cases awaiting summary: %w", err)
	}
	stats.Found = len(cases)
	if len(cases) == 0 {
		return stats, nil
	}

	s.logger.Debug("found cases awaiting summary", "count", len(cases))

	for i := range cases {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		c := &cases[i]
		result := s.orchestrator.Orchestrate(ctx, s.actorFor(c), s.requestFor(c))
		if result.Success {
			stats.Succeeded++
			continue
		}

		stats.Failed++
		s.logger.Warn("batch discharge failed",
			"case_id", c.ID,
			"clinic_id", c.ClinicID,
			"failed_steps", result.FailedSteps,
		)
	}

	s.logger.Info("batch tick completed",
		"found", stats.Found,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
	)

	return stats, nil
}

func (s *Scheduler) actorFor(c *domain.Case) domain.Actor {
	return domain.Actor{UserID: s.userID, ClinicID: c.ClinicID}
}

// requestFor строит запрос для case. extractEntities переиспользует уже сохранённые сущности.
func (s *Scheduler) requestFor(c *domain.Case) *domain.OrchestrationRequest {
	return &domain.OrchestrationRequest{
		Input: domain.OrchestrationInput{
			ExistingCase: &domain.ExistingCase{CaseID: c.ID.String()},
		},
		Options: s.options,
	}
}
