// Package dispatcher доставляет запланированные follow-ups.
//
// Dispatcher потребляет очереди followups.emails.due и followups.calls.due,
// загружает запись из БД и отправляет её через HTTP провайдера:
// письма через EmailSender, звонки через CallPlacer.
//
// Жизненный цикл записи:
//
//	SCHEDULED → SENT     (провайдер принял)
//	SCHEDULED → FAILED   (4xx или исчерпаны попытки)
//
// Записи не в статусе SCHEDULED игнорируются, поэтому повторная доставка
// сообщения безопасна. Сообщение, пришедшее раньше срока, возвращается
// в delay-очередь. Polling подхватывает записи, сообщения которых потерялись.
package dispatcher
