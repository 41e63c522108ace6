package orchestrator

import (
	"errors"
	"fmt"

	"github.com/shaiso/Vetflow/internal/domain"
)

// Ошибки оркестратора.
var (
	// ErrOrchestrationPanic — паника вне выполнения конкретного шага.
	ErrOrchestrationPanic = errors.New("orchestration panicked")

	// ErrInvalidStatus — handler вернул неизвестный статус.
	ErrInvalidStatus = errors.New("invalid step status")
)

// Причины пропуска шагов.
const (
	// ReasonDependencyFailed — sequential режим: упала объявленная зависимость.
	ReasonDependencyFailed = "Dependency failed"

	// ReasonCancelled — stopOnError остановил run.
	ReasonCancelled = "Cancelled due to previous step failure"
)

// dependencyFailedReason возвращает причину пропуска с именем упавшего шага.
func dependencyFailedReason(root domain.StepName) string {
	return fmt.Sprintf("Dependency '%s' failed", root)
}
