package api

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/shaiso/Vetflow/internal/archive"
	"github.com/shaiso/Vetflow/internal/domain"
)

// Orchestrator выполняет discharge workflow.
type Orchestrator interface {
	Orchestrate(ctx context.Context, actor domain.Actor, req *domain.OrchestrationRequest) *domain.OrchestrationResult
}

// CaseReader читает case вместе с entities.
type CaseReader interface {
	GetCaseWithEntities(ctx context.Context, actor domain.Actor, caseID uuid.UUID) (*domain.Case, error)
}

// ResultCache — кэш результатов по Idempotency-Key.
type ResultCache interface {
	Get(ctx context.Context, clinicID, key string) (*domain.OrchestrationResult, error)
	Put(ctx context.Context, clinicID, key string, result *domain.OrchestrationResult) error
	Acquire(ctx context.Context, clinicID, key string) error
	Release(ctx context.Context, clinicID, key string)
}

// ResultArchive — долговременное хранилище результатов.
type ResultArchive interface {
	SaveResult(ctx context.Context, rec *archive.ResultRecord) error
	LoadResult(ctx context.Context, clinicID, key string) (*archive.ResultRecord, error)
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	orchestrator Orchestrator
	cases        CaseReader
	cache        ResultCache
	archive      ResultArchive
	defaults     *domain.OrchestrationOptions
	logger       *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Orchestrator Orchestrator
	Cases        CaseReader

	// Cache — опционально. nil — Idempotency-Key не поддерживается.
	Cache ResultCache

	// Archive — опционально. nil — результаты не архивируются.
	Archive ResultArchive

	// Defaults — options для запросов без options.
	Defaults *domain.OrchestrationOptions

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Handler{
		orchestrator: cfg.Orchestrator,
		cases:        cfg.Cases,
		cache:        cfg.Cache,
		archive:      cfg.Archive,
		defaults:     cfg.Defaults,
		logger:       logger,
	}
}
