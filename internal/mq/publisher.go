package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeEmailDue MessageType = "followup.email"
	MessageTypeCallDue  MessageType = "followup.call"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		conn:   conn,
		logger: logger,
		now:    time.Now,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// FollowUpPayload — payload запланированного follow-up (письма или звонка).
type FollowUpPayload struct {
	// ID — ID записи scheduled_emails или scheduled_calls.
	ID           uuid.UUID `json:"id"`
	CaseID       uuid.UUID `json:"case_id"`
	ScheduledFor time.Time `json:"scheduled_for"`
}

// newMessage создаёт сообщение с новым ID.
func newMessage(msgType MessageType, payload any, now time.Time) *Message {
	return &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: now,
	}
}

// Publish публикует сообщение в указанный exchange с routing key.
// expiration > 0 задаёт per-message TTL.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message, expiration time.Duration) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Expiration:   expirationHeader(expiration),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
			"expiration", expiration,
		)

		return nil
	})
}

// PublishEmailScheduled ставит письмо в очередь отправки к моменту ScheduledFor.
// Потребитель: Dispatcher.
func (p *Publisher) PublishEmailScheduled(ctx context.Context, payload FollowUpPayload) error {
	return p.publishFollowUp(ctx, RoutingKeyEmail, MessageTypeEmailDue, payload)
}

// PublishCallScheduled ставит звонок в очередь к моменту ScheduledFor.
// Потребитель: Dispatcher.
func (p *Publisher) PublishCallScheduled(ctx context.Context, payload FollowUpPayload) error {
	return p.publishFollowUp(ctx, RoutingKeyCall, MessageTypeCallDue, payload)
}

// publishFollowUp публикует follow-up в delay exchange
// или сразу в followups, если время уже наступило.
func (p *Publisher) publishFollowUp(ctx context.Context, key RoutingKey, msgType MessageType, payload FollowUpPayload) error {
	now := p.now()
	msg := newMessage(msgType, payload, now)

	exchange, delay := routeFollowUp(payload.ScheduledFor, now)
	return p.Publish(ctx, exchange, key, msg, delay)
}

// routeFollowUp выбирает exchange и TTL для follow-up.
func routeFollowUp(scheduledFor, now time.Time) (Exchange, time.Duration) {
	delay := scheduledFor.Sub(now)
	if delay <= 0 {
		return ExchangeFollowUps, 0
	}
	return ExchangeDelay, delay
}

// expirationHeader форматирует TTL в миллисекундах для AMQP Expiration.
func expirationHeader(d time.Duration) string {
	if d <= 0 {
		return ""
	}
	ms := d.Milliseconds()
	if ms < 1 {
		ms = 1
	}
	return strconv.FormatInt(ms, 10)
}
