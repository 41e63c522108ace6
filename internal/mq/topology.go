package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	// ExchangeDelay — сюда публикуются follow-ups с per-message TTL.
	ExchangeDelay Exchange = "vetflow.delay"

	// ExchangeFollowUps — сюда попадают follow-ups, время которых пришло.
	ExchangeFollowUps Exchange = "vetflow.followups"

	ExchangeDLQ Exchange = "vetflow.dlq"
)

// Queues — имена очередей.
const (
	// QueueFollowUpsDelay — очередь ожидания без consumer.
	// Истёкшие сообщения уходят в vetflow.followups с исходным routing key.
	QueueFollowUpsDelay Queue = "followups.delay"

	QueueEmailsDue Queue = "followups.emails.due"
	QueueCallsDue  Queue = "followups.calls.due"
	QueueDLQ       Queue = "dlq.followups"
)

// Routing keys.
const (
	RoutingKeyEmail RoutingKey = "email"
	RoutingKeyCall  RoutingKey = "call"
	RoutingKeyDLQ   RoutingKey = "followups"
)

type queueDecl struct {
	name Queue
	args amqp.Table
}

type bindingDecl struct {
	queue      Queue
	routingKey RoutingKey
	exchange   Exchange
}

// topologyQueues возвращает объявления очередей.
func topologyQueues() []queueDecl {
	// Аргументы для очередей с DLQ
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQ),
	}

	return []queueDecl{
		// followups.delay — истёкшие по TTL сообщения возвращаются в followups (routing key сохраняется)
		{QueueFollowUpsDelay, amqp.Table{"x-dead-letter-exchange": string(ExchangeFollowUps)}},
		{QueueEmailsDue, dlqArgs},
		{QueueCallsDue, dlqArgs},
		{QueueDLQ, nil},
	}
}

// topologyBindings возвращает привязки очередей.
func topologyBindings() []bindingDecl {
	return []bindingDecl{
		{QueueFollowUpsDelay, RoutingKeyEmail, ExchangeDelay},
		{QueueFollowUpsDelay, RoutingKeyCall, ExchangeDelay},
		{QueueEmailsDue, RoutingKeyEmail, ExchangeFollowUps},
		{QueueCallsDue, RoutingKeyCall, ExchangeFollowUps},
		{QueueDLQ, RoutingKeyDLQ, ExchangeDLQ},
	}
}

// SetupTopology объявляет exchanges, queues и bindings.
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range []Exchange{ExchangeDelay, ExchangeFollowUps, ExchangeDLQ} {
			err := ch.ExchangeDeclare(
				string(ex), // name
				"direct",   // type
				true,       // durable
				false,      // auto-deleted
				false,      // internal
				false,      // no-wait
				nil,        // arguments
			)
			if err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex, err)
			}
		}

		for _, q := range topologyQueues() {
			_, err := ch.QueueDeclare(
				string(q.name), // name
				true,           // durable
				false,          // delete when unused
				false,          // exclusive
				false,          // no-wait
				q.args,         // arguments
			)
			if err != nil {
				return fmt.Errorf("declare queue %s: %w", q.name, err)
			}
		}

		for _, b := range topologyBindings() {
			err := ch.QueueBind(
				string(b.queue),      // queue name
				string(b.routingKey), // routing key
				string(b.exchange),   // exchange
				false,                // no-wait
				nil,                  // arguments
			)
			if err != nil {
				return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
			}
		}

		return nil
	})
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Vetflow RabbitMQ Topology:

    vetflow.delay (direct)
    └── followups.delay [routing: email, call]
            per-message TTL, dead-letter → vetflow.followups

    vetflow.followups (direct)
    ├── followups.emails.due [routing: email]
    │       Consumer: Dispatcher
    └── followups.calls.due [routing: call]
            Consumer: Dispatcher

    vetflow.dlq (direct)
    └── dlq.followups [routing: followups]
            Manual processing
  `
}
