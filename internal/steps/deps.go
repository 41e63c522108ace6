package steps

import (
	"context"

	"github.com/google/uuid"
	"github.com/shaiso/Vetflow/internal/domain"
)

// EntityExtractor извлекает сущности из свободного текста.
type EntityExtractor interface {
	Extract(ctx context.Context, text string) (*domain.Entities, error)
}

// SummaryGenerator генерирует текст выписки по case.
// Возвращает выписку с заполненными Content и Model.
type SummaryGenerator interface {
	Summarize(ctx context.Context, c *domain.Case) (*domain.DischargeSummary, error)
}

// EmailRenderer готовит письмо владельцу.
type EmailRenderer interface {
	// RenderDischarge рендерит письмо по шаблону template.
	// Пустой template означает шаблон по умолчанию.
	RenderDischarge(template string, c *domain.Case, summary string) (*domain.EmailContent, error)

	// Sanitize очищает HTML письма.
	Sanitize(html string) string
}

// RecordStore сохраняет результаты шагов.
type RecordStore interface {
	// SaveEntities сохраняет сущности и переводит case в EXTRACTED.
	SaveEntities(ctx context.Context, caseID uuid.UUID, entities *domain.Entities) error

	// SaveSummary сохраняет выписку и переводит case в SUMMARIZED.
	SaveSummary(ctx context.Context, summary *domain.DischargeSummary) error

	// LatestSummary возвращает последнюю выписку case.
	LatestSummary(ctx context.Context, caseID uuid.UUID) (*domain.DischargeSummary, error)
}

// EmailScheduler сохраняет и ставит в очередь follow-up письмо.
type EmailScheduler interface {
	ScheduleDischargeEmail(ctx context.Context, actor domain.Actor, email *domain.ScheduledEmail, delayDays int) (*domain.ScheduledEmail, error)
}

// Deps — зависимости стандартных handlers.
type Deps struct {
	Extractor  EntityExtractor
	Summarizer SummaryGenerator
	Renderer   EmailRenderer
	Records    RecordStore
	Emails     EmailScheduler
}
