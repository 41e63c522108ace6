package steps

import (
	"fmt"
	"sync"

	"github.com/shaiso/Vetflow/internal/domain"
)

// Registry — реестр handlers, по одному на шаг.
//
// Orchestrator получает handler по имени шага, без ветвления по строкам.
// Потокобезопасен.
type Registry struct {
	mu       sync.RWMutex
	handlers map[domain.StepName]Handler
}

// NewRegistry создаёт реестр с переданными handlers.
func NewRegistry(handlers ...Handler) *Registry {
	r := &Registry{
		handlers: make(map[domain.StepName]Handler, len(handlers)),
	}
	for _, h := range handlers {
		r.Register(h)
	}
	return r
}

// DefaultRegistry создаёт реестр со всеми шагами discharge workflow.
func DefaultRegistry(deps Deps) *Registry {
	return NewRegistry(
		NewIngestHandler(),
		NewExtractHandler(deps.Extractor, deps.Records),
		NewSummaryHandler(deps.Summarizer, deps.Records),
		NewPrepareEmailHandler(deps.Renderer, deps.Records),
		NewScheduleEmailHandler(deps.Renderer, deps.Emails),
		NewScheduleCallHandler(),
	)
}

// Register регистрирует handler.
// Если handler для шага уже существует, он будет перезаписан.
func (r *Registry) Register(h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[h.Name()] = h
}

// Get возвращает handler шага.
// Возвращает ErrHandlerNotFound, если handler не зарегистрирован.
func (r *Registry) Get(step domain.StepName) (Handler, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	h, exists := r.handlers[step]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrHandlerNotFound, step)
	}
	return h, nil
}

// Has проверяет, зарегистрирован ли handler.
func (r *Registry) Has(step domain.StepName) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.handlers[step]
	return exists
}

// Missing возвращает шаги workflow без handler в фиксированном порядке.
func (r *Registry) Missing() []domain.StepName {
	var out []domain.StepName
	for _, step := range domain.AllSteps() {
		if !r.Has(step) {
			out = append(out, step)
		}
	}
	return out
}
