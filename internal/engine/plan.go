package engine

import (
	"fmt"

	"github.com/shaiso/Vetflow/internal/domain"
)

// StepConfig — конфигурация шага, вычисленная из запроса при создании плана.
// Не меняется до конца run.
type StepConfig struct {
	// Enabled — включён ли шаг.
	Enabled bool

	// Dependencies — объявленные зависимости (с учётом выключенных optional рёбер).
	Dependencies []domain.StepName

	// Options — opaque параметры шага из запроса.
	Options map[string]any
}

// ExecutionPlan — план выполнения одного orchestration run.
//
// Создаётся на каждый вызов Orchestrate и выбрасывается после.
// Все изменения состояния идут через Record, поэтому шаг
// попадает максимум в одно из множеств completed/failed.
//
// План не потокобезопасен: его меняет только orchestrator
// в точках синхронизации между batch. Handlers только читают.
type ExecutionPlan struct {
	configs map[domain.StepName]StepConfig

	// completed/failed — шаги с итоговым статусом.
	completed map[domain.StepName]bool
	failed    map[domain.StepName]bool

	// results — по одному StepResult на шаг.
	results map[domain.StepName]domain.StepResult

	// blockedBy — для шагов, пропущенных из-за зависимости: исходный упавший шаг.
	blockedBy map[domain.StepName]domain.StepName
}

// NewPlan валидирует запрос и строит план.
func NewPlan(req *domain.OrchestrationRequest) (*ExecutionPlan, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, fmt.Errorf("validate request: %w", err)
	}

	p := &ExecutionPlan{
		configs:   make(map[domain.StepName]StepConfig, len(canonicalDeps)),
		completed: make(map[domain.StepName]bool),
		failed:    make(map[domain.StepName]bool),
		results:   make(map[domain.StepName]domain.StepResult),
		blockedBy: make(map[domain.StepName]domain.StepName),
	}

	deps := make(map[domain.StepName][]domain.StepName, len(canonicalDeps))
	for _, step := range domain.AllSteps() {
		cfg := StepConfig{
			Enabled:      req.StepEnabled(step),
			Dependencies: resolveDependencies(step, req.StepEnabled),
			Options:      req.StepOptionsFor(step),
		}
		p.configs[step] = cfg
		deps[step] = cfg.Dependencies
	}

	if err := ValidateGraph(deps); err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	return p, nil
}

// StepConfig возвращает конфигурацию шага.
func (p *ExecutionPlan) StepConfig(step domain.StepName) (StepConfig, bool) {
	cfg, ok := p.configs[step]
	return cfg, ok
}

// IsEnabled возвращает true, если шаг включён.
func (p *ExecutionPlan) IsEnabled(step domain.StepName) bool {
	return p.configs[step].Enabled
}

// ShouldExecuteStep возвращает true, если шаг включён, ещё не имеет результата
// и все его зависимости завершены.
func (p *ExecutionPlan) ShouldExecuteStep(step domain.StepName) bool {
	cfg, ok := p.configs[step]
	if !ok || !cfg.Enabled {
		return false
	}
	if _, done := p.results[step]; done {
		return false
	}
	for _, dep := range cfg.Dependencies {
		if !p.completed[dep] {
			return false
		}
	}
	return true
}

// MarkCompleted помечает шаг завершённым. Идемпотентен.
// Шаг, уже помеченный failed, не меняется.
func (p *ExecutionPlan) MarkCompleted(step domain.StepName) {
	if p.failed[step] {
		return
	}
	p.completed[step] = true
}

// MarkFailed помечает шаг упавшим. Идемпотентен.
// Шаг, уже помеченный completed, не меняется.
func (p *ExecutionPlan) MarkFailed(step domain.StepName) {
	if p.completed[step] {
		return
	}
	p.failed[step] = true
}

// CompletedSteps возвращает завершённые шаги в фиксированном порядке.
func (p *ExecutionPlan) CompletedSteps() []domain.StepName {
	return p.collect(p.completed)
}

// FailedSteps возвращает упавшие шаги в фиксированном порядке.
func (p *ExecutionPlan) FailedSteps() []domain.StepName {
	return p.collect(p.failed)
}

func (p *ExecutionPlan) collect(set map[domain.StepName]bool) []domain.StepName {
	out := make([]domain.StepName, 0, len(set))
	for _, step := range domain.AllSteps() {
		if set[step] {
			out = append(out, step)
		}
	}
	return out
}

// IsFailed возвращает true, если шаг помечен failed.
func (p *ExecutionPlan) IsFailed(step domain.StepName) bool {
	return p.failed[step]
}

// HasRemainingSteps возвращает true, если есть включённый шаг без результата.
func (p *ExecutionPlan) HasRemainingSteps() bool {
	for _, step := range domain.AllSteps() {
		if !p.configs[step].Enabled {
			continue
		}
		if _, done := p.results[step]; !done {
			return true
		}
	}
	return false
}

// NextBatch возвращает все шаги, готовые к запуску прямо сейчас,
// в фиксированном порядке шагов.
func (p *ExecutionPlan) NextBatch() []domain.StepName {
	batch := make([]domain.StepName, 0)
	for _, step := range domain.AllSteps() {
		if p.ShouldExecuteStep(step) {
			batch = append(batch, step)
		}
	}
	return batch
}

// Record записывает результат шага и обновляет completed/failed.
// Это единственный путь изменения состояния плана.
// Возвращает false, если у шага уже есть результат (первый результат побеждает).
func (p *ExecutionPlan) Record(result domain.StepResult) bool {
	if _, exists := p.results[result.Step]; exists {
		return false
	}
	p.results[result.Step] = result

	switch result.Status {
	case domain.StepStatusCompleted:
		p.MarkCompleted(result.Step)
	case domain.StepStatusFailed:
		p.MarkFailed(result.Step)
	}
	return true
}

// Seed синтетически завершает шаг без запуска handler.
// Используется для short-circuit существующего case и готового письма.
func (p *ExecutionPlan) Seed(step domain.StepName, data any) bool {
	return p.Record(domain.Completed(step, 0, data))
}

// Block записывает шаг как skipped из-за упавшей зависимости root.
func (p *ExecutionPlan) Block(step, root domain.StepName, reason string) bool {
	if !p.Record(domain.Skipped(step, reason)) {
		return false
	}
	p.blockedBy[step] = root
	return true
}

// BlockedBy возвращает исходный упавший шаг, из-за которого step пропущен.
func (p *ExecutionPlan) BlockedBy(step domain.StepName) (domain.StepName, bool) {
	root, ok := p.blockedBy[step]
	return root, ok
}

// Result возвращает результат шага.
func (p *ExecutionPlan) Result(step domain.StepName) (domain.StepResult, bool) {
	r, ok := p.results[step]
	return r, ok
}

// HasResult возвращает true, если у шага есть результат.
func (p *ExecutionPlan) HasResult(step domain.StepName) bool {
	_, ok := p.results[step]
	return ok
}

// Results возвращает копию карты результатов.
func (p *ExecutionPlan) Results() map[domain.StepName]domain.StepResult {
	out := make(map[domain.StepName]domain.StepResult, len(p.results))
	for k, v := range p.results {
		out[k] = v
	}
	return out
}
