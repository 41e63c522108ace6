package steps

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Vetflow/internal/domain"
	"github.com/shaiso/Vetflow/internal/engine"
)

// Ошибки шагов.
var (
	// ErrHandlerNotFound — для шага не зарегистрирован handler.
	ErrHandlerNotFound = errors.New("step handler not found")

	// ErrCaseIDMissing — ни ingest, ни запрос не дали caseId.
	ErrCaseIDMissing = errors.New("case id is not available")

	// ErrSummaryMissing — нет текста выписки для письма.
	ErrSummaryMissing = errors.New("discharge summary is not available")

	// ErrNoRecipient — у владельца нет email.
	ErrNoRecipient = errors.New("owner email is not available")

	// ErrNoPhone — у владельца нет телефона.
	ErrNoPhone = errors.New("owner phone is not available")
)

// Handler — исполнитель одного шага discharge workflow.
//
// Execute должен возвращать failed результат для ожидаемых ошибок
// (например, case не найден), а не паниковать.
// started — момент начала шага, от него считается duration.
type Handler interface {
	// Name возвращает шаг, который выполняет handler.
	Name() domain.StepName

	// Execute выполняет шаг.
	Execute(ctx context.Context, sc *Context, started time.Time) domain.StepResult
}

// HandlerFunc позволяет использовать функцию как Handler.
type HandlerFunc func(ctx context.Context, sc *Context, started time.Time) domain.StepResult

type funcHandler struct {
	name domain.StepName
	fn   HandlerFunc
}

// NewHandlerFunc создаёт Handler из функции.
func NewHandlerFunc(name domain.StepName, fn HandlerFunc) Handler {
	return &funcHandler{name: name, fn: fn}
}

func (h *funcHandler) Name() domain.StepName { return h.name }

func (h *funcHandler) Execute(ctx context.Context, sc *Context, started time.Time) domain.StepResult {
	return h.fn(ctx, sc, started)
}

// CaseService — узкая возможность работы с case, доступная шагам.
type CaseService interface {
	// Ingest создаёт case из сырых данных.
	Ingest(ctx context.Context, actor domain.Actor, raw *domain.RawData) (*domain.Case, error)

	// GetCaseWithEntities возвращает case клиники actor вместе с сущностями.
	GetCaseWithEntities(ctx context.Context, actor domain.Actor, caseID uuid.UUID) (*domain.Case, error)

	// EnrichEntitiesWithPatient дополняет сущности данными карточки пациента.
	EnrichEntitiesWithPatient(ctx context.Context, actor domain.Actor, c *domain.Case) (*domain.Entities, error)

	// ScheduleDischargeCall планирует follow-up звонок.
	ScheduleDischargeCall(ctx context.Context, actor domain.Actor, c *domain.Case, opts domain.CallOptions) (*domain.ScheduledCall, error)
}

// Context — всё, что нужно handler для выполнения шага.
//
// Plan и Results только для чтения: их меняет orchestrator
// между batch, пока handlers не выполняются.
type Context struct {
	// Actor — пользователь, от имени которого идёт orchestration.
	Actor domain.Actor

	// Cases — операции над case.
	Cases CaseService

	// Plan — текущий план (конфигурация соседних шагов).
	Plan *engine.ExecutionPlan

	// Results — снимок результатов на момент запуска batch.
	Results map[domain.StepName]domain.StepResult

	// Request — исходный запрос.
	Request *domain.OrchestrationRequest

	// Logger — логгер с полями run.
	Logger *slog.Logger
}

// Options возвращает opaque options шага из плана.
func (c *Context) Options(step domain.StepName) map[string]any {
	if c.Plan == nil {
		return nil
	}
	cfg, _ := c.Plan.StepConfig(step)
	return cfg.Options
}

// ResultData возвращает данные завершённого шага как map.
func (c *Context) ResultData(step domain.StepName) (map[string]any, bool) {
	r, ok := c.Results[step]
	if !ok || r.Status != domain.StepStatusCompleted {
		return nil, false
	}
	data, ok := r.Data.(map[string]any)
	return data, ok
}

// CaseID возвращает ID case: из результата ingest или из запроса.
func (c *Context) CaseID() (uuid.UUID, error) {
	raw := ""
	if data, ok := c.ResultData(domain.StepIngest); ok {
		raw = GetConfigString(data, "caseId")
	}
	if raw == "" && c.Request != nil {
		raw = c.Request.CaseID()
	}
	if raw == "" {
		return uuid.Nil, ErrCaseIDMissing
	}

	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid case id %q: %w", raw, err)
	}
	return id, nil
}

// log возвращает логгер контекста или slog.Default().
func (c *Context) log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// elapsed возвращает длительность шага в миллисекундах.
func elapsed(started time.Time) int64 {
	return time.Since(started).Milliseconds()
}

// completed создаёт успешный результат шага.
func completed(step domain.StepName, started time.Time, data map[string]any) domain.StepResult {
	return domain.Completed(step, elapsed(started), data)
}

// failed создаёт failed результат шага из ошибки.
func failed(step domain.StepName, started time.Time, err error) domain.StepResult {
	return domain.Failed(step, elapsed(started), err.Error())
}

// GetConfigString извлекает строковое значение из options.
func GetConfigString(config map[string]any, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetConfigInt извлекает числовое значение из options.
func GetConfigInt(config map[string]any, key string) int {
	if v, ok := config[key]; ok {
		switch n := v.(type) {
		case int:
			return n
		case int64:
			return int(n)
		case float64:
			return int(n)
		}
	}
	return 0
}

// GetConfigBool извлекает булево значение из options.
func GetConfigBool(config map[string]any, key string, defaultVal bool) bool {
	if v, ok := config[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return defaultVal
}
