// Package steps содержит handlers шагов discharge workflow.
//
// # Интерфейс Handler
//
//	type Handler interface {
//	    Name() domain.StepName
//	    Execute(ctx context.Context, sc *Context, started time.Time) domain.StepResult
//	}
//
// Handler возвращает failed результат для ожидаемых ошибок
// ("case not found", нет email владельца). Панику перехватывает orchestrator.
//
// Context содержит:
//   - Actor — пользователь клиники
//   - Cases — CaseService (Ingest, GetCaseWithEntities, EnrichEntitiesWithPatient, ScheduleDischargeCall)
//   - Plan — ExecutionPlan run (options соседних шагов)
//   - Results — результаты предыдущих batch
//   - Request — исходный запрос
//
// # Registry
//
//	registry := steps.DefaultRegistry(steps.Deps{...})
//	h, err := registry.Get(domain.StepIngest)
//
// В тестах реестр собирается из NewHandlerFunc.
//
// # Шаги
//
//   - ingest.go  — ingest
//   - extract.go — extractEntities
//   - summary.go — generateSummary
//   - email.go   — prepareEmail, scheduleEmail
//   - call.go    — scheduleCall
package steps
