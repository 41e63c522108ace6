package engine

import (
	"fmt"
	"strings"

	"github.com/shaiso/Vetflow/internal/domain"
)

// ValidateRequest выполняет валидацию OrchestrationRequest.
//
// Проверяет:
// - Ровно один вариант input (rawData или existingCase)
// - Режим и обязательные поля rawData
// - Наличие caseId у existingCase
// - Что в steps упомянуты только известные шаги
func ValidateRequest(req *domain.OrchestrationRequest) error {
	if req == nil {
		return ErrEmptyInput
	}

	raw := req.Input.RawData
	existing := req.Input.ExistingCase

	switch {
	case raw == nil && existing == nil:
		return ErrEmptyInput
	case raw != nil && existing != nil:
		return ErrAmbiguousInput
	case raw != nil:
		if err := validateRawData(raw); err != nil {
			return err
		}
	default:
		if strings.TrimSpace(existing.CaseID) == "" {
			return NewValidationError("", "input.existingCase.caseId",
				"caseId is required", ErrMissingField)
		}
	}

	for step := range req.Steps {
		if !step.IsValid() {
			return NewValidationError(step, "steps",
				fmt.Sprintf("unknown step: %s", step), ErrUnknownStep)
		}
	}

	return nil
}

// validateRawData проверяет rawData в зависимости от режима.
func validateRawData(raw *domain.RawData) error {
	if strings.TrimSpace(raw.Source) == "" {
		return NewValidationError("", "input.rawData.source", "source is required", ErrMissingField)
	}

	switch raw.Mode {
	case domain.InputModeText:
		if strings.TrimSpace(raw.Text) == "" {
			return NewValidationError("", "input.rawData.text",
				"text is required for text mode", ErrMissingField)
		}
	case domain.InputModeStructured:
		if len(raw.Data) == 0 {
			return NewValidationError("", "input.rawData.data",
				"data is required for structured mode", ErrMissingField)
		}
	default:
		return NewValidationError("", "input.rawData.mode",
			fmt.Sprintf("unknown mode: %q", raw.Mode), ErrInvalidMode)
	}

	return nil
}
