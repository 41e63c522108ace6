// Package ai реализует извлечение сущностей и генерацию выписок через
// OpenAI-совместимые модели (langchaingo).
//
// Extractor просит модель вернуть JSON и разбирает его gjson, поэтому
// лишние или частично заполненные поля ответа не ломают разбор.
package ai
