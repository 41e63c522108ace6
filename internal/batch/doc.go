// Package batch реализует фоновый scheduler, который доводит до discharge
// cases без выписки.
//
// Каждый тик выбирает cases в статусе EXTRACTED без discharge_summaries
// и запускает для них workflow как existingCase. При нескольких экземплярах
// тик выполняет только лидер (pg_advisory_lock).
package batch
