package steps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Vetflow/internal/domain"
)

// SummaryHandler — шаг generateSummary.
//
// Outputs:
//
//	{"caseId": "...", "summaryId": "...", "content": "...", "model": "..."}
type SummaryHandler struct {
	generator SummaryGenerator
	records   RecordStore
}

// NewSummaryHandler создаёт SummaryHandler.
func NewSummaryHandler(generator SummaryGenerator, records RecordStore) *SummaryHandler {
	return &SummaryHandler{generator: generator, records: records}
}

// Name возвращает шаг.
func (h *SummaryHandler) Name() domain.StepName {
	return domain.StepGenerateSummary
}

// Execute генерирует и сохраняет выписку.
func (h *SummaryHandler) Execute(ctx context.Context, sc *Context, started time.Time) domain.StepResult {
	caseID, err := sc.CaseID()
	if err != nil {
		return failed(h.Name(), started, err)
	}

	c, err := sc.Cases.GetCaseWithEntities(ctx, sc.Actor, caseID)
	if err != nil {
		return failed(h.Name(), started, fmt.Errorf("load case: %w", err))
	}

	if h.generator == nil {
		return failed(h.Name(), started, errors.New("summary generator is not configured"))
	}

	summary, err := h.generator.Summarize(ctx, c)
	if err != nil {
		return failed(h.Name(), started, fmt.Errorf("generate summary: %w", err))
	}
	summary.ID = uuid.New()
	summary.CaseID = c.ID
	summary.CreatedAt = time.Now().UTC()

	if err := h.records.SaveSummary(ctx, summary); err != nil {
		return failed(h.Name(), started, fmt.Errorf("save summary: %w", err))
	}

	return completed(h.Name(), started, map[string]any{
		"caseId":    c.ID.String(),
		"summaryId": summary.ID.String(),
		"content":   summary.Content,
		"model":     summary.Model,
	})
}
