package dispatcher

import "errors"

// Ошибки dispatcher.
var (
	// ErrNotScheduled — follow-up уже обработан или отменён.
	ErrNotScheduled = errors.New("follow-up is not in SCHEDULED status")

	// ErrProviderRequest — запрос к провайдеру не удался (сеть, 5xx, 429). Можно повторить.
	ErrProviderRequest = errors.New("provider request failed")

	// ErrProviderRejected — провайдер отклонил запрос (4xx). Повтор бессмысленен.
	ErrProviderRejected = errors.New("provider rejected request")

	// ErrProviderNotConfigured — URL провайдера не задан.
	ErrProviderNotConfigured = errors.New("provider is not configured")
)
