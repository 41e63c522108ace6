package steps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Vetflow/internal/domain"
)

// PrepareEmailHandler — шаг prepareEmail: рендерит письмо по выписке.
//
// Текст выписки берётся из результата generateSummary,
// а если его там нет (например, summary засчитан seed-ом) — из хранилища.
//
// Options:
//
//	{"template": "discharge_default"}
//
// Outputs:
//
//	{"subject": "...", "html": "...", "text": "...", "recipient": "..."}
type PrepareEmailHandler struct {
	renderer EmailRenderer
	records  RecordStore
}

// NewPrepareEmailHandler создаёт PrepareEmailHandler.
func NewPrepareEmailHandler(renderer EmailRenderer, records RecordStore) *PrepareEmailHandler {
	return &PrepareEmailHandler{renderer: renderer, records: records}
}

// Name возвращает шаг.
func (h *PrepareEmailHandler) Name() domain.StepName {
	return domain.StepPrepareEmail
}

// Execute рендерит письмо.
func (h *PrepareEmailHandler) Execute(ctx context.Context, sc *Context, started time.Time) domain.StepResult {
	caseID, err := sc.CaseID()
	if err != nil {
		return failed(h.Name(), started, err)
	}

	c, err := sc.Cases.GetCaseWithEntities(ctx, sc.Actor, caseID)
	if err != nil {
		return failed(h.Name(), started, fmt.Errorf("load case: %w", err))
	}

	summary := ""
	if data, ok := sc.ResultData(domain.StepGenerateSummary); ok {
		summary = GetConfigString(data, "content")
	}
	if summary == "" {
		stored, err := h.records.LatestSummary(ctx, caseID)
		if err != nil {
			return failed(h.Name(), started, fmt.Errorf("%w: %v", ErrSummaryMissing, err))
		}
		summary = stored.Content
	}
	if summary == "" {
		return failed(h.Name(), started, ErrSummaryMissing)
	}

	content, err := h.renderer.RenderDischarge(GetConfigString(sc.Options(h.Name()), "template"), c, summary)
	if err != nil {
		return failed(h.Name(), started, fmt.Errorf("render email: %w", err))
	}

	data := emailData(content)
	if c.Entities != nil && c.Entities.Owner.Email != "" {
		data["recipient"] = c.Entities.Owner.Email
	}
	return completed(h.Name(), started, data)
}

// ScheduleEmailHandler — шаг scheduleEmail: сохраняет письмо и ставит в очередь отправки.
//
// Options:
//
//	{"delayDays": 2}
//
// Outputs:
//
//	{"emailId": "...", "scheduledFor": "2024-01-01T10:00:00Z", "recipient": "..."}
type ScheduleEmailHandler struct {
	renderer  EmailRenderer
	scheduler EmailScheduler
}

// NewScheduleEmailHandler создаёт ScheduleEmailHandler.
func NewScheduleEmailHandler(renderer EmailRenderer, scheduler EmailScheduler) *ScheduleEmailHandler {
	return &ScheduleEmailHandler{renderer: renderer, scheduler: scheduler}
}

// Name возвращает шаг.
func (h *ScheduleEmailHandler) Name() domain.StepName {
	return domain.StepScheduleEmail
}

// Execute планирует письмо.
func (h *ScheduleEmailHandler) Execute(ctx context.Context, sc *Context, started time.Time) domain.StepResult {
	prepared, ok := sc.ResultData(domain.StepPrepareEmail)
	if !ok {
		return failed(h.Name(), started, errors.New("prepared email is not available"))
	}

	caseID, err := sc.CaseID()
	if err != nil {
		return failed(h.Name(), started, err)
	}

	recipient := GetConfigString(prepared, "recipient")
	if recipient == "" {
		c, err := sc.Cases.GetCaseWithEntities(ctx, sc.Actor, caseID)
		if err != nil {
			return failed(h.Name(), started, fmt.Errorf("load case: %w", err))
		}
		if c.Entities != nil {
			recipient = c.Entities.Owner.Email
		}
	}
	if recipient == "" {
		return failed(h.Name(), started, ErrNoRecipient)
	}

	html := GetConfigString(prepared, "html")
	if h.renderer != nil {
		html = h.renderer.Sanitize(html)
	}

	email := &domain.ScheduledEmail{
		CaseID:    caseID,
		ClinicID:  sc.Actor.ClinicID,
		Recipient: recipient,
		Subject:   GetConfigString(prepared, "subject"),
		HTML:      html,
		Text:      GetConfigString(prepared, "text"),
	}

	delayDays := GetConfigInt(sc.Options(h.Name()), "delayDays")
	scheduled, err := h.scheduler.ScheduleDischargeEmail(ctx, sc.Actor, email, delayDays)
	if err != nil {
		return failed(h.Name(), started, fmt.Errorf("schedule email: %w", err))
	}

	return completed(h.Name(), started, map[string]any{
		"emailId":      scheduled.ID.String(),
		"scheduledFor": scheduled.ScheduledFor.UTC().Format(time.RFC3339),
		"recipient":    scheduled.Recipient,
	})
}

// emailData переводит EmailContent в outputs шага.
func emailData(content *domain.EmailContent) map[string]any {
	return map[string]any{
		"subject": content.Subject,
		"html":    content.HTML,
		"text":    content.Text,
	}
}

// EmailSeedData возвращает outputs prepareEmail для заранее готового письма.
func EmailSeedData(content *domain.EmailContent) map[string]any {
	return emailData(content)
}
