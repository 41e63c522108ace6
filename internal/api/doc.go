// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go           — Handler с DI (orchestrator, cases, cache, archive, logger)
//   - routes.go            — регистрация маршрутов
//   - middleware.go        — middleware (logging, recovery)
//   - actor.go             — actor из заголовков X-User-ID, X-Clinic-ID, X-User-Email
//   - response.go          — унифицированные JSON-ответы и обработка ошибок
//   - discharge_handler.go — запуск workflow и получение результата по ключу
//   - case_handler.go      — просмотр case
//
// Повторный POST с тем же Idempotency-Key возвращает сохранённый результат,
// параллельный — 409.
package api
