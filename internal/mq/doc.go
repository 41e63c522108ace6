// Package mq предоставляет инфраструктуру RabbitMQ для отложенных follow-ups.
//
// Письмо или звонок публикуется в vetflow.delay с TTL до момента отправки.
// Очередь followups.delay не имеет consumer: истёкшее сообщение через
// dead-letter попадает в vetflow.followups и далее в due-очередь по routing key.
//
// Типы сообщений:
//   - followup.email — письмо владельцу пора отправить
//   - followup.call  — звонок владельцу пора совершить
//
// Exchanges:
//   - vetflow.delay     — ожидание
//   - vetflow.followups — к исполнению
//   - vetflow.dlq       — dead letter queue
package mq
