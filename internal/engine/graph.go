package engine

import (
	"github.com/shaiso/Vetflow/internal/domain"
)

// canonicalDeps — канонический DAG discharge workflow (шаг → зависимости).
//
// scheduleCall зависит только от generateSummary и не связан с email-веткой.
var canonicalDeps = map[domain.StepName][]domain.StepName{
	domain.StepIngest:          {},
	domain.StepExtractEntities: {domain.StepIngest},
	domain.StepGenerateSummary: {domain.StepIngest, domain.StepExtractEntities},
	domain.StepPrepareEmail:    {domain.StepGenerateSummary},
	domain.StepScheduleEmail:   {domain.StepPrepareEmail},
	domain.StepScheduleCall:    {domain.StepGenerateSummary},
}

// optionalDeps — рёбра, которые исчезают, если зависимость выключена.
// generateSummary может работать без extractEntities, если сущности уже известны.
var optionalDeps = map[domain.StepName]map[domain.StepName]bool{
	domain.StepGenerateSummary: {domain.StepExtractEntities: true},
}

// resolveDependencies возвращает зависимости шага с учётом выключенных optional рёбер.
func resolveDependencies(step domain.StepName, enabled func(domain.StepName) bool) []domain.StepName {
	deps := make([]domain.StepName, 0, len(canonicalDeps[step]))
	for _, dep := range canonicalDeps[step] {
		if optionalDeps[step][dep] && !enabled(dep) {
			continue
		}
		deps = append(deps, dep)
	}
	return deps
}

// topologicalOrder выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ErrCyclicDependency, если граф содержит цикл.
// Узлы с одинаковым уровнем идут в фиксированном порядке шагов.
func topologicalOrder(deps map[domain.StepName][]domain.StepName) ([]domain.StepName, error) {
	inDegree := make(map[domain.StepName]int, len(deps))
	dependents := make(map[domain.StepName][]domain.StepName, len(deps))

	for _, step := range domain.AllSteps() {
		for _, dep := range deps[step] {
			if _, ok := deps[dep]; !ok {
				return nil, NewValidationError(step, "dependencies",
					"depends on unknown step: "+dep.String(), ErrUnknownStep)
			}
			inDegree[step]++
			dependents[dep] = append(dependents[dep], step)
		}
	}

	// Очередь узлов с inDegree = 0
	queue := make([]domain.StepName, 0, len(deps))
	for _, step := range domain.AllSteps() {
		if inDegree[step] == 0 {
			queue = append(queue, step)
		}
	}

	order := make([]domain.StepName, 0, len(deps))
	for len(queue) > 0 {
		step := queue[0]
		queue = queue[1:]
		order = append(order, step)

		for _, dependent := range dependents[step] {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	// Если не все узлы обработаны — есть цикл
	if len(order) != len(deps) {
		return nil, ErrCyclicDependency
	}

	return order, nil
}

// ValidateGraph проверяет, что граф зависимостей ацикличен и ссылается только на известные шаги.
func ValidateGraph(deps map[domain.StepName][]domain.StepName) error {
	_, err := topologicalOrder(deps)
	return err
}
