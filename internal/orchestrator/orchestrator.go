package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shaiso/Vetflow/internal/domain"
	"github.com/shaiso/Vetflow/internal/engine"
	"github.com/shaiso/Vetflow/internal/steps"
	"github.com/shaiso/Vetflow/internal/telemetry"
)

// Названия стратегий (для логов и метрик).
const (
	StrategyParallel   = "parallel"
	StrategySequential = "sequential"
)

// Orchestrator выполняет discharge workflow.
//
// Один вызов Orchestrate — один run: план создаётся заново,
// шаги выполняются выбранной стратегией, результат агрегируется.
// Orchestrator не хранит состояние между вызовами и может
// использоваться из нескольких горутин одновременно.
type Orchestrator struct {
	registry *steps.Registry
	cases    steps.CaseService
	metrics  *telemetry.Metrics
	logger   *slog.Logger
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Registry — handlers шагов.
	Registry *steps.Registry

	// Cases — CaseService, который получают handlers.
	Cases steps.CaseService

	// Metrics — Prometheus метрики (может быть nil).
	Metrics *telemetry.Metrics

	// Logger
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	registry := cfg.Registry
	if registry == nil {
		registry = steps.NewRegistry()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		registry: registry,
		cases:    cfg.Cases,
		metrics:  cfg.Metrics,
		logger:   logger,
	}
}

// run — состояние одного вызова Orchestrate.
type run struct {
	actor   domain.Actor
	request *domain.OrchestrationRequest
	plan    *engine.ExecutionPlan
	started time.Time
	logger  *slog.Logger
}

// Orchestrate выполняет запрос и возвращает агрегированный результат.
//
// Метод тотален: ошибки шагов и паники не выходят наружу,
// вызывающий код смотрит на result.Success, FailedSteps и Metadata.Errors.
func (o *Orchestrator) Orchestrate(ctx context.Context, actor domain.Actor, req *domain.OrchestrationRequest) (result *domain.OrchestrationResult) {
	r := &run{
		actor:   actor,
		request: req,
		started: time.Now(),
		logger:  telemetry.WithClinicID(o.logger, actor.ClinicID),
	}

	strategy := StrategyParallel
	if req != nil && !req.IsParallel() {
		strategy = StrategySequential
	}

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("%w: %v", ErrOrchestrationPanic, p)
			r.logger.Error("orchestration panicked", "error", err)
			result = buildErrorResult(r.started, r.results(), err)
		}
		o.metrics.ObserveOrchestration(strategy, result.Success, time.Since(r.started))
		r.logger.Info("orchestration finished",
			"strategy", strategy,
			"success", result.Success,
			"completed", len(result.CompletedSteps),
			"skipped", len(result.SkippedSteps),
			"failed", len(result.FailedSteps),
			"duration_ms", result.Metadata.TotalProcessingTime,
		)
	}()

	plan, err := engine.NewPlan(req)
	if err != nil {
		r.logger.Warn("invalid orchestration request", "error", err)
		return buildErrorResult(r.started, r.results(), err)
	}
	r.plan = plan

	if req.HasExistingCase() {
		r.logger = telemetry.WithCaseID(r.logger, req.CaseID())
	}
	r.logger.Info("orchestration started", "strategy", strategy, "stop_on_error", req.StopOnError())

	seed(plan, req)

	if strategy == StrategyParallel {
		o.runParallel(ctx, r)
	} else {
		o.runSequential(ctx, r)
	}

	fillMissing(plan)
	return buildResult(r.started, plan.Results())
}

// seed синтетически завершает шаги, данные которых уже переданы в запросе.
//
// existingCase — ingest считается выполненным.
// emailContent — generateSummary и prepareEmail тоже: prepareEmail нужен
// текст письма, а не факт запуска generateSummary.
func seed(plan *engine.ExecutionPlan, req *domain.OrchestrationRequest) {
	if !req.HasExistingCase() {
		return
	}

	plan.Seed(domain.StepIngest, map[string]any{"caseId": req.CaseID()})

	if req.HasPrecomputedEmail() {
		plan.Seed(domain.StepGenerateSummary, map[string]any{"source": "precomputed"})
		plan.Seed(domain.StepPrepareEmail, steps.EmailSeedData(req.Input.ExistingCase.EmailContent))
	}
}

// dispatch выполняет handler шага.
// Паника и отсутствие handler превращаются в failed результат.
func (o *Orchestrator) dispatch(ctx context.Context, r *run, step domain.StepName, results map[domain.StepName]domain.StepResult) (res domain.StepResult) {
	started := time.Now()
	logger := telemetry.WithStep(r.logger, step.String())

	defer func() {
		if p := recover(); p != nil {
			logger.Error("step handler panicked", "panic", p)
			res = domain.Failed(step, time.Since(started).Milliseconds(), panicMessage(p))
		}
	}()

	h, err := o.registry.Get(step)
	if err != nil {
		return domain.Failed(step, time.Since(started).Milliseconds(), err.Error())
	}

	logger.Debug("dispatching step")

	res = h.Execute(telemetry.WithLogger(ctx, logger), &steps.Context{
		Actor:   r.actor,
		Cases:   o.cases,
		Plan:    r.plan,
		Results: results,
		Request: r.request,
		Logger:  logger,
	}, started)

	res.Step = step
	switch res.Status {
	case domain.StepStatusCompleted, domain.StepStatusFailed, domain.StepStatusSkipped:
	default:
		res = domain.Failed(step, res.Duration, fmt.Sprintf("%v: %q", ErrInvalidStatus, res.Status))
	}
	return res
}

// record записывает результат выполненного шага.
func (o *Orchestrator) record(r *run, res domain.StepResult) {
	if !r.plan.Record(res) {
		return
	}

	o.metrics.ObserveStep(res.Step.String(), string(res.Status), res.Duration, true)

	if res.Status == domain.StepStatusFailed {
		r.logger.Warn("step failed", "step", res.Step, "error", res.Error, "duration_ms", res.Duration)
		return
	}
	r.logger.Debug("step finished", "step", res.Step, "status", res.Status, "duration_ms", res.Duration)
}

// results возвращает собранные результаты (пусто, если план не построен).
func (r *run) results() map[domain.StepName]domain.StepResult {
	if r.plan == nil {
		return map[domain.StepName]domain.StepResult{}
	}
	return r.plan.Results()
}

// panicMessage возвращает текст ошибки из значения паники.
func panicMessage(p any) string {
	if err, ok := p.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(p)
}
