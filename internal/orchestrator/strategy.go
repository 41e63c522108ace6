package orchestrator

import (
	"context"
	"sync"

	"github.com/shaiso/Vetflow/internal/domain"
	"github.com/shaiso/Vetflow/internal/engine"
)

// runSequential выполняет шаги строго в фиксированном порядке.
func (o *Orchestrator) runSequential(ctx context.Context, r *run) {
	plan := r.plan

	for _, step := range domain.AllSteps() {
		if !plan.ShouldExecuteStep(step) {
			switch {
			case plan.HasResult(step):
				// Уже есть результат (seed или propagation)
			case !plan.IsEnabled(step):
				plan.Record(domain.Skipped(step, ""))
			case hasFailedDependency(plan, step):
				// Запасной вариант: обычно propagate уже записал причину с именем шага
				plan.Record(domain.Skipped(step, ReasonDependencyFailed))
			}
			continue
		}

		res := o.dispatch(ctx, r, step, plan.Results())
		o.record(r, res)

		if res.Status != domain.StepStatusFailed {
			continue
		}
		propagate(plan)
		if r.request.StopOnError() {
			r.logger.Info("stopping after failure", "step", step)
			return
		}
	}
}

// runParallel выполняет шаги batch за batch.
//
// Шаги одного batch запускаются одновременно, ожидаются все (settle-all),
// результаты записываются только после ожидания, в порядке batch.
func (o *Orchestrator) runParallel(ctx context.Context, r *run) {
	plan := r.plan

	for plan.HasRemainingSteps() {
		batch := plan.NextBatch()
		if len(batch) == 0 {
			// Оставшиеся шаги заблокированы выключенными или пропущенными зависимостями
			break
		}

		r.logger.Debug("dispatching batch", "steps", batch)

		snapshot := plan.Results()
		outcomes := make([]domain.StepResult, len(batch))

		var wg sync.WaitGroup
		for i, step := range batch {
			wg.Add(1)
			go func() {
				defer wg.Done()
				outcomes[i] = o.dispatch(ctx, r, step, snapshot)
			}()
		}
		wg.Wait()

		batchFailed := false
		for _, res := range outcomes {
			o.record(r, res)
			if res.Status == domain.StepStatusFailed {
				batchFailed = true
			}
		}

		if !batchFailed {
			continue
		}
		propagate(plan)

		if r.request.StopOnError() {
			for _, step := range batch {
				if !plan.HasResult(step) {
					plan.Record(domain.Skipped(step, ReasonCancelled))
				}
			}
			r.logger.Info("stopping after failed batch", "steps", batch)
			return
		}
	}
}

// propagate пропускает включённые шаги без результата, у которых
// зависимость упала или сама пропущена из-за упавшей зависимости.
// Применяется до неподвижной точки, причина называет исходный упавший шаг.
func propagate(plan *engine.ExecutionPlan) {
	for changed := true; changed; {
		changed = false
		for _, step := range domain.AllSteps() {
			if !plan.IsEnabled(step) || plan.HasResult(step) {
				continue
			}
			cfg, _ := plan.StepConfig(step)
			for _, dep := range cfg.Dependencies {
				root, ok := failureRoot(plan, dep)
				if !ok {
					continue
				}
				if plan.Block(step, root, dependencyFailedReason(root)) {
					changed = true
				}
				break
			}
		}
	}
}

// failureRoot возвращает упавший шаг, из-за которого dep не может дать данные.
func failureRoot(plan *engine.ExecutionPlan, dep domain.StepName) (domain.StepName, bool) {
	if plan.IsFailed(dep) {
		return dep, true
	}
	return plan.BlockedBy(dep)
}

// hasFailedDependency проверяет, есть ли среди зависимостей шага упавшие.
func hasFailedDependency(plan *engine.ExecutionPlan, step domain.StepName) bool {
	cfg, _ := plan.StepConfig(step)
	for _, dep := range cfg.Dependencies {
		if plan.IsFailed(dep) {
			return true
		}
	}
	return false
}

// fillMissing записывает skipped для каждого шага без результата,
// чтобы результат покрывал все шаги.
func fillMissing(plan *engine.ExecutionPlan) {
	for _, step := range domain.AllSteps() {
		if !plan.HasResult(step) {
			plan.Record(domain.Skipped(step, ""))
		}
	}
}
