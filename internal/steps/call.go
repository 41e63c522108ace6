package steps

import (
	"context"
	"fmt"
	"time"

	"github.com/shaiso/Vetflow/internal/domain"
)

// ScheduleCallHandler — шаг scheduleCall: планирует follow-up звонок владельцу.
//
// Options:
//
//	{"delayDays": 3, "script": "..."}
//
// Outputs:
//
//	{"callId": "...", "scheduledFor": "2024-01-01T10:00:00Z", "phone": "..."}
type ScheduleCallHandler struct{}

// NewScheduleCallHandler создаёт ScheduleCallHandler.
func NewScheduleCallHandler() *ScheduleCallHandler {
	return &ScheduleCallHandler{}
}

// Name возвращает шаг.
func (h *ScheduleCallHandler) Name() domain.StepName {
	return domain.StepScheduleCall
}

// Execute планирует звонок.
func (h *ScheduleCallHandler) Execute(ctx context.Context, sc *Context, started time.Time) domain.StepResult {
	caseID, err := sc.CaseID()
	if err != nil {
		return failed(h.Name(), started, err)
	}

	c, err := sc.Cases.GetCaseWithEntities(ctx, sc.Actor, caseID)
	if err != nil {
		return failed(h.Name(), started, fmt.Errorf("load case: %w", err))
	}
	if c.Entities == nil || c.Entities.Owner.Phone == "" {
		return failed(h.Name(), started, ErrNoPhone)
	}

	opts := sc.Options(h.Name())
	call, err := sc.Cases.ScheduleDischargeCall(ctx, sc.Actor, c, domain.CallOptions{
		DelayDays: GetConfigInt(opts, "delayDays"),
		Script:    GetConfigString(opts, "script"),
	})
	if err != nil {
		return failed(h.Name(), started, fmt.Errorf("schedule call: %w", err))
	}

	return completed(h.Name(), started, map[string]any{
		"callId":       call.ID.String(),
		"scheduledFor": call.ScheduledFor.UTC().Format(time.RFC3339),
		"phone":        call.Phone,
	})
}
