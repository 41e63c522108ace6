package domain

// OrchestrationStep — псевдо-шаг для ошибок вне выполнения конкретного шага.
const OrchestrationStep = "orchestration"

// UnknownError — сообщение для failed шага без текста ошибки.
const UnknownError = "Unknown error"

// OrchestrationResult — итог orchestration. Единственный внешний контракт движка.
type OrchestrationResult struct {
	// Success — true, если нет ни одного failed шага.
	Success bool `json:"success"`

	CompletedSteps []StepName `json:"completedSteps"`
	SkippedSteps   []StepName `json:"skippedSteps"`
	FailedSteps    []StepName `json:"failedSteps"`

	// Data — выходные данные шагов (только для шагов с данными).
	Data map[StepName]any `json:"data"`

	Metadata ResultMetadata `json:"metadata"`
}

// ResultMetadata — тайминги и ошибки orchestration.
type ResultMetadata struct {
	// TotalProcessingTime — общее время в миллисекундах (минимум 1).
	TotalProcessingTime int64 `json:"totalProcessingTime"`

	// StepTimings — длительность каждого шага в миллисекундах.
	StepTimings map[StepName]int64 `json:"stepTimings"`

	Errors []StepError `json:"errors"`

	// SkipReasons — причины пропуска (только для skipped шагов с причиной).
	SkipReasons map[StepName]string `json:"skipReasons,omitempty"`
}

// StepError — ошибка шага (или "orchestration").
type StepError struct {
	Step  string `json:"step"`
	Error string `json:"error"`
}

// StepStatusOf возвращает статус шага по спискам результата.
func (r *OrchestrationResult) StepStatusOf(step StepName) (StepStatus, bool) {
	for _, s := range r.CompletedSteps {
		if s == step {
			return StepStatusCompleted, true
		}
	}
	for _, s := range r.FailedSteps {
		if s == step {
			return StepStatusFailed, true
		}
	}
	for _, s := range r.SkippedSteps {
		if s == step {
			return StepStatusSkipped, true
		}
	}
	return "", false
}

// ErrorFor возвращает сообщение об ошибке шага из metadata.
func (r *OrchestrationResult) ErrorFor(step string) string {
	for _, e := range r.Metadata.Errors {
		if e.Step == step {
			return e.Error
		}
	}
	return ""
}
