package domain

// StepName — имя шага discharge workflow.
//
// Набор шагов закрыт: движок знает только эти шесть имён.
type StepName string

const (
	// StepIngest — приём данных и создание case.
	StepIngest StepName = "ingest"

	// StepExtractEntities — AI-извлечение сущностей из текста case.
	StepExtractEntities StepName = "extractEntities"

	// StepGenerateSummary — генерация discharge summary.
	StepGenerateSummary StepName = "generateSummary"

	// StepPrepareEmail — рендеринг письма владельцу.
	StepPrepareEmail StepName = "prepareEmail"

	// StepScheduleEmail — планирование отправки письма.
	StepScheduleEmail StepName = "scheduleEmail"

	// StepScheduleCall — планирование follow-up звонка.
	StepScheduleCall StepName = "scheduleCall"
)

// stepOrder — фиксированный полный порядок шагов.
// Используется sequential стратегией и для детерминированного порядка batch.
var stepOrder = []StepName{
	StepIngest,
	StepExtractEntities,
	StepGenerateSummary,
	StepPrepareEmail,
	StepScheduleEmail,
	StepScheduleCall,
}

// AllSteps возвращает все шаги в фиксированном порядке.
func AllSteps() []StepName {
	steps := make([]StepName, len(stepOrder))
	copy(steps, stepOrder)
	return steps
}

// Index возвращает позицию шага в фиксированном порядке (-1 для неизвестного).
func (s StepName) Index() int {
	for i, step := range stepOrder {
		if step == s {
			return i
		}
	}
	return -1
}

// IsValid проверяет, что имя шага входит в закрытый набор.
func (s StepName) IsValid() bool {
	return s.Index() >= 0
}

// String возвращает строковое представление StepName.
func (s StepName) String() string {
	return string(s)
}

// StepStatus — итоговый статус шага в рамках одного orchestration.
type StepStatus string

const (
	// StepStatusCompleted — шаг выполнен (или засчитан как выполненный seed-ом).
	StepStatusCompleted StepStatus = "completed"

	// StepStatusSkipped — шаг не выполнялся: выключен, зависимость упала или run остановлен.
	StepStatusSkipped StepStatus = "skipped"

	// StepStatusFailed — handler шага завершился ошибкой.
	StepStatusFailed StepStatus = "failed"
)

// StepResult — результат одного шага.
//
// После завершения orchestration для каждого StepName существует ровно один StepResult.
type StepResult struct {
	// Step — имя шага.
	Step StepName `json:"step"`

	// Status — итоговый статус.
	Status StepStatus `json:"status"`

	// Duration — длительность выполнения в миллисекундах.
	Duration int64 `json:"duration"`

	// Data — произвольные выходные данные шага.
	Data any `json:"data,omitempty"`

	// Error — сообщение об ошибке или причина пропуска.
	Error string `json:"error,omitempty"`
}

// Completed создаёт успешный StepResult.
func Completed(step StepName, durationMs int64, data any) StepResult {
	return StepResult{Step: step, Status: StepStatusCompleted, Duration: durationMs, Data: data}
}

// Failed создаёт StepResult со статусом failed.
func Failed(step StepName, durationMs int64, errMsg string) StepResult {
	return StepResult{Step: step, Status: StepStatusFailed, Duration: durationMs, Error: errMsg}
}

// Skipped создаёт StepResult со статусом skipped. reason может быть пустым.
func Skipped(step StepName, reason string) StepResult {
	return StepResult{Step: step, Status: StepStatusSkipped, Error: reason}
}
