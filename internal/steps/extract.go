package steps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Vetflow/internal/domain"
)

// ExtractHandler — шаг extractEntities.
//
// Для text case вызывает EntityExtractor, для structured case
// разбирает rawData. Затем дополняет сущности карточкой пациента
// и сохраняет их.
//
// Options:
//
//	{"force": true}  // переизвлечь, даже если сущности уже есть
//
// Outputs:
//
//	{"caseId": "...", "entities": {...}}
type ExtractHandler struct {
	extractor EntityExtractor
	records   RecordStore
}

// NewExtractHandler создаёт ExtractHandler.
func NewExtractHandler(extractor EntityExtractor, records RecordStore) *ExtractHandler {
	return &ExtractHandler{extractor: extractor, records: records}
}

// Name возвращает шаг.
func (h *ExtractHandler) Name() domain.StepName {
	return domain.StepExtractEntities
}

// Execute извлекает сущности.
func (h *ExtractHandler) Execute(ctx context.Context, sc *Context, started time.Time) domain.StepResult {
	caseID, err := sc.CaseID()
	if err != nil {
		return failed(h.Name(), started, err)
	}

	c, err := sc.Cases.GetCaseWithEntities(ctx, sc.Actor, caseID)
	if err != nil {
		return failed(h.Name(), started, fmt.Errorf("load case: %w", err))
	}

	force := GetConfigBool(sc.Options(h.Name()), "force", false)

	var entities *domain.Entities
	switch {
	case c.HasEntities() && !force:
		entities = c.Entities
	case c.Mode == domain.InputModeStructured:
		entities = domain.EntitiesFromMap(c.RawData)
	default:
		if h.extractor == nil {
			return failed(h.Name(), started, errors.New("entity extractor is not configured"))
		}
		entities, err = h.extractor.Extract(ctx, c.RawText)
		if err != nil {
			return failed(h.Name(), started, fmt.Errorf("extract entities: %w", err))
		}
	}

	c.Entities = entities
	enriched, err := sc.Cases.EnrichEntitiesWithPatient(ctx, sc.Actor, c)
	if err != nil {
		return failed(h.Name(), started, fmt.Errorf("enrich entities: %w", err))
	}

	if err := h.records.SaveEntities(ctx, c.ID, enriched); err != nil {
		return failed(h.Name(), started, fmt.Errorf("save entities: %w", err))
	}

	return completed(h.Name(), started, map[string]any{
		"caseId":   c.ID.String(),
		"entities": enriched,
	})
}
