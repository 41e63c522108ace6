// Package orchestrator выполняет discharge workflow.
//
// Orchestrator отвечает за:
//   - Построение ExecutionPlan из запроса
//   - Seed шагов, данные которых уже есть в запросе (existingCase, emailContent)
//   - Выполнение шагов одной из стратегий: sequential или parallel (по batch)
//   - Пропуск шагов, зависимости которых упали (skip propagation)
//   - Агрегацию результатов в OrchestrationResult
//
// Orchestrate никогда не возвращает ошибку и не паникует:
// всё, что пошло не так, отражено в результате.
package orchestrator
