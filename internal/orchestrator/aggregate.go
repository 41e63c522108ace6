package orchestrator

import (
	"time"

	"github.com/shaiso/Vetflow/internal/domain"
)

// buildResult сворачивает результаты шагов в OrchestrationResult.
func buildResult(started time.Time, results map[domain.StepName]domain.StepResult) *domain.OrchestrationResult {
	out := &domain.OrchestrationResult{
		CompletedSteps: []domain.StepName{},
		SkippedSteps:   []domain.StepName{},
		FailedSteps:    []domain.StepName{},
		Data:           make(map[domain.StepName]any),
		Metadata: domain.ResultMetadata{
			StepTimings: make(map[domain.StepName]int64, len(results)),
			Errors:      []domain.StepError{},
		},
	}

	for _, step := range domain.AllSteps() {
		res, ok := results[step]
		if !ok {
			continue
		}

		duration := res.Duration
		switch res.Status {
		case domain.StepStatusCompleted:
			out.CompletedSteps = append(out.CompletedSteps, step)
			// 0 мс у выполненного шага отличаем от "не выполнялся"
			if duration == 0 {
				duration = 1
			}
			if res.Data != nil {
				out.Data[step] = res.Data
			}

		case domain.StepStatusFailed:
			out.FailedSteps = append(out.FailedSteps, step)
			msg := res.Error
			if msg == "" {
				msg = domain.UnknownError
			}
			out.Metadata.Errors = append(out.Metadata.Errors, domain.StepError{Step: step.String(), Error: msg})

		case domain.StepStatusSkipped:
			out.SkippedSteps = append(out.SkippedSteps, step)
			if res.Error != "" {
				if out.Metadata.SkipReasons == nil {
					out.Metadata.SkipReasons = make(map[domain.StepName]string)
				}
				out.Metadata.SkipReasons[step] = res.Error
			}
		}

		out.Metadata.StepTimings[step] = duration
	}

	total := time.Since(started).Milliseconds()
	if total < 1 {
		total = 1
	}
	out.Metadata.TotalProcessingTime = total
	out.Success = len(out.FailedSteps) == 0

	return out
}

// buildErrorResult строит результат для ошибки вне шагов.
// Собранные результаты шагов сохраняются.
func buildErrorResult(started time.Time, results map[domain.StepName]domain.StepResult, err error) *domain.OrchestrationResult {
	out := buildResult(started, results)
	out.Success = false
	out.Metadata.Errors = append(out.Metadata.Errors, domain.StepError{
		Step:  domain.OrchestrationStep,
		Error: err.Error(),
	})
	return out
}
