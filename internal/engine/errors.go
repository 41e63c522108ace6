package engine

import (
	"errors"

	"github.com/shaiso/Vetflow/internal/domain"
)

// Ошибки построения плана.
var (
	// ErrEmptyInput — не задан ни rawData, ни existingCase.
	ErrEmptyInput = errors.New("request has no input")

	// ErrAmbiguousInput — заданы одновременно rawData и existingCase.
	ErrAmbiguousInput = errors.New("request has both rawData and existingCase")

	// ErrInvalidMode — неизвестный режим rawData.
	ErrInvalidMode = errors.New("invalid input mode")

	// ErrMissingField — отсутствует обязательное поле.
	ErrMissingField = errors.New("missing required field")

	// ErrUnknownStep — шаг не входит в набор discharge workflow.
	ErrUnknownStep = errors.New("unknown step")

	// ErrCyclicDependency — обнаружен цикл в зависимостях.
	ErrCyclicDependency = errors.New("cyclic dependency detected")
)

// ValidationError — ошибка валидации запроса с контекстом.
type ValidationError struct {
	Step    domain.StepName // шаг, к которому относится ошибка (может быть пустым)
	Field   string          // поле, вызвавшее ошибку
	Message string          // описание ошибки
	Err     error           // базовая ошибка
}

// Error реализует интерфейс error.
func (e *ValidationError) Error() string {
	if e.Step != "" {
		return "step " + string(e.Step) + ": " + e.Message
	}
	if e.Field != "" {
		return e.Field + ": " + e.Message
	}
	return e.Message
}

// Unwrap возвращает базовую ошибку.
func (e *ValidationError) Unwrap() error {
	return e.Err
}

// NewValidationError создаёт новую ошибку валидации.
func NewValidationError(step domain.StepName, field, message string, err error) *ValidationError {
	return &ValidationError{
		Step:    step,
		Field:   field,
		Message: message,
		Err:     err,
	}
}
