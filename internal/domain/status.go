package domain

// CaseStatus — статус ветеринарного case.
//
// Жизненный цикл:
//
//	NEW → EXTRACTED → SUMMARIZED → DISCHARGED
//	    ↘ FAILED (из любого нетерминального)
type CaseStatus string

const (
	// CaseStatusNew — case создан, сущности ещё не извлечены.
	CaseStatusNew CaseStatus = "NEW"

	// CaseStatusExtracted — сущности извлечены.
	CaseStatusExtracted CaseStatus = "EXTRACTED"

	// CaseStatusSummarized — discharge summary сгенерирован.
	CaseStatusSummarized CaseStatus = "SUMMARIZED"

	// CaseStatusDischarged — follow-up запланирован, case закрыт.
	CaseStatusDischarged CaseStatus = "DISCHARGED"

	// CaseStatusFailed — обработка case завершилась ошибкой.
	CaseStatusFailed CaseStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s CaseStatus) IsTerminal() bool {
	switch s {
	case CaseStatusDischarged, CaseStatusFailed:
		return true
	default:
		return false
	}
}

// AdvancesFrom возвращает статусы, из которых case может перейти в s.
// Переход из более позднего статуса не выполняется: параллельные шаги
// не должны откатывать case назад.
func (s CaseStatus) AdvancesFrom() []CaseStatus {
	switch s {
	case CaseStatusExtracted:
		return []CaseStatus{CaseStatusNew}
	case CaseStatusSummarized:
		return []CaseStatus{CaseStatusNew, CaseStatusExtracted}
	case CaseStatusDischarged, CaseStatusFailed:
		return []CaseStatus{CaseStatusNew, CaseStatusExtracted, CaseStatusSummarized}
	default:
		return nil
	}
}

// CanAdvance сообщает, допустим ли переход из from в s.
func (s CaseStatus) CanAdvance(from CaseStatus) bool {
	for _, st := range s.AdvancesFrom() {
		if st == from {
			return true
		}
	}
	return false
}

// DeliveryStatus — статус запланированного follow-up (письмо или звонок).
//
// Жизненный цикл:
//
//	SCHEDULED → SENDING → SENT
//	          ↘ CANCELLED ↘ FAILED
type DeliveryStatus string

const (
	// DeliveryStatusScheduled — ожидает отправки.
	DeliveryStatusScheduled DeliveryStatus = "SCHEDULED"

	// DeliveryStatusSending — запись захвачена dispatcher'ом, идёт запрос к провайдеру.
	DeliveryStatusSending DeliveryStatus = "SENDING"

	// DeliveryStatusSent — отправлено провайдеру.
	DeliveryStatusSent DeliveryStatus = "SENT"

	// DeliveryStatusFailed — провайдер вернул ошибку.
	DeliveryStatusFailed DeliveryStatus = "FAILED"

	// DeliveryStatusCancelled — отменено до отправки.
	DeliveryStatusCancelled DeliveryStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный.
func (s DeliveryStatus) IsTerminal() bool {
	return s != DeliveryStatusScheduled && s != DeliveryStatusSending
}
