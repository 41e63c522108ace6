// Package engine содержит модель выполнения discharge workflow.
//
// Включает:
//   - graph.go    — канонический DAG шагов и проверка ацикличности (алгоритм Кана)
//   - validate.go — валидация OrchestrationRequest
//   - plan.go     — ExecutionPlan: конфигурация шагов, готовность, batch
//
// Engine не запускает шаги сам: это делает orchestrator,
// используя ExecutionPlan для ответа на вопрос "что можно запустить сейчас".
package engine
