package steps

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shaiso/Vetflow/internal/domain"
)

// IngestHandler — шаг ingest: создаёт case из rawData.
//
// Outputs:
//
//	{"caseId": "..."}
type IngestHandler struct{}

// NewIngestHandler создаёт IngestHandler.
func NewIngestHandler() *IngestHandler {
	return &IngestHandler{}
}

// Name возвращает шаг.
func (h *IngestHandler) Name() domain.StepName {
	return domain.StepIngest
}

// Execute создаёт case.
func (h *IngestHandler) Execute(ctx context.Context, sc *Context, started time.Time) domain.StepResult {
	raw := sc.Request.Input.RawData
	if raw == nil {
		return failed(h.Name(), started, errors.New("no raw data to ingest"))
	}

	c, err := sc.Cases.Ingest(ctx, sc.Actor, raw)
	if err != nil {
		return failed(h.Name(), started, fmt.Errorf("ingest case: %w", err))
	}

	sc.log().Debug("case ingested", "case_id", c.ID, "source", raw.Source, "mode", raw.Mode)

	return completed(h.Name(), started, map[string]any{
		"caseId": c.ID.String(),
	})
}
