package domain

// InputMode — формат входных данных для ingest.
type InputMode string

const (
	// InputModeText — свободный текст (заметки врача, транскрипт).
	InputModeText InputMode = "text"

	// InputModeStructured — структурированные данные из PIMS.
	InputModeStructured InputMode = "structured"
)

// OrchestrationRequest — запрос на выполнение discharge workflow.
type OrchestrationRequest struct {
	// Input — либо сырые данные для нового case, либо ссылка на существующий case.
	Input OrchestrationInput `json:"input"`

	// Options — параметры выполнения.
	Options *OrchestrationOptions `json:"options,omitempty"`

	// Steps — конфигурация отдельных шагов (enabled + opaque options).
	// Шаг, не упомянутый здесь, включён.
	Steps map[StepName]StepOptions `json:"steps,omitempty"`
}

// OrchestrationInput — вход orchestration. Должно быть заполнено ровно одно поле.
type OrchestrationInput struct {
	RawData      *RawData      `json:"rawData,omitempty"`
	ExistingCase *ExistingCase `json:"existingCase,omitempty"`
}

// RawData — данные для создания нового case.
type RawData struct {
	Mode   InputMode      `json:"mode"`
	Source string         `json:"source"`
	Text   string         `json:"text,omitempty"`
	Data   map[string]any `json:"data,omitempty"`
}

// ExistingCase — ссылка на уже созданный case (ingest пропускается).
type ExistingCase struct {
	CaseID string `json:"caseId"`

	// EmailContent — заранее подготовленное письмо.
	// Если задано, generateSummary и prepareEmail засчитываются без выполнения.
	EmailContent *EmailContent `json:"emailContent,omitempty"`
}

// OrchestrationOptions — параметры выполнения orchestration.
type OrchestrationOptions struct {
	// Parallel — параллельное выполнение по batch (default: true).
	Parallel *bool `json:"parallel,omitempty"`

	// StopOnError — прекратить запуск новых шагов после первой ошибки.
	StopOnError bool `json:"stopOnError,omitempty"`
}

// StepOptions — конфигурация шага в запросе.
type StepOptions struct {
	// Enabled — nil означает "включён".
	Enabled *bool `json:"enabled,omitempty"`

	// Options — произвольные параметры, которые читает handler шага.
	Options map[string]any `json:"options,omitempty"`
}

// IsParallel возвращает выбранную стратегию (parallel по умолчанию).
func (r *OrchestrationRequest) IsParallel() bool {
	if r.Options == nil || r.Options.Parallel == nil {
		return true
	}
	return *r.Options.Parallel
}

// StopOnError возвращает значение флага stopOnError.
func (r *OrchestrationRequest) StopOnError() bool {
	return r.Options != nil && r.Options.StopOnError
}

// HasExistingCase возвращает true, если запрос ссылается на существующий case.
func (r *OrchestrationRequest) HasExistingCase() bool {
	return r.Input.ExistingCase != nil
}

// HasPrecomputedEmail возвращает true, если письмо передано в запросе.
func (r *OrchestrationRequest) HasPrecomputedEmail() bool {
	return r.Input.ExistingCase != nil && r.Input.ExistingCase.EmailContent != nil
}

// CaseID возвращает ID существующего case или пустую строку.
func (r *OrchestrationRequest) CaseID() string {
	if r.Input.ExistingCase == nil {
		return ""
	}
	return r.Input.ExistingCase.CaseID
}

// StepEnabled возвращает флаг enabled для шага (true, если не задан).
func (r *OrchestrationRequest) StepEnabled(step StepName) bool {
	opts, ok := r.Steps[step]
	if !ok || opts.Enabled == nil {
		return true
	}
	return *opts.Enabled
}

// StepOptionsFor возвращает opaque options шага (nil, если не заданы).
func (r *OrchestrationRequest) StepOptionsFor(step StepName) map[string]any {
	return r.Steps[step].Options
}
