// Package cli реализует инструмент командной строки Vetflow.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Vetflow API.
// Работает через HTTP, из внутренних пакетов использует только domain-типы.
// Actor передаётся заголовками X-User-ID, X-Clinic-ID, X-User-Email.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Vetflow API. Инкапсулирует HTTP-запросы,
// парсинг ответов ({data} и {error}) и обработку ошибок.
//
//	client := cli.NewClient(cli.ClientConfig{BaseURL: "http://localhost:8080", UserID: "vet-1", ClinicID: "clinic-1"})
//	resp, err := client.Discharge(req, "visit-42")
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) с цветными статусами (fatih/color) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Warn/Error) — в stderr.
// Это позволяет использовать pipe: vetflow result show KEY --json | jq .
//
// ## Commands
//
//   - discharge: text, structured, case
//   - case: show
//   - result: show
//
// Каждая группа создаётся через фабричную функцию (NewDischargeCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
