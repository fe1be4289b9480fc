package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/billdesk/internal/lib/sl"
)

// maxInFlight ограничивает число одновременно обрабатываемых сообщений.
const maxInFlight = 10

// BindQueue объявляет устойчивую очередь и привязывает ее к exchange по ключу.
// Пустое имя создает временную очередь с именем от брокера.
func BindQueue(ch *amqp.Channel, queue, exchange, bindingKey string) (string, error) {
	const op = "rabbitmq.BindQueue"

	durable, autoDelete, exclusive := true, false, false
	if queue == "" {
		durable, autoDelete, exclusive = false, true, true
	}
	q, err := ch.QueueDeclare(queue, durable, autoDelete, exclusive, false, nil)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	if err = ch.QueueBind(q.Name, bindingKey, exchange, false, nil); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return q.Name, nil
}

// ConsumerMessage создает потребителя сообщений из очереди RabbitMQ.
// Ошибка handler возвращает сообщение в очередь.
func ConsumerMessage(ctx context.Context, log *slog.Logger, ch *amqp.Channel, queueName string,
	handler func(routingKey string, body []byte) error) error {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	sem := make(chan struct{}, maxInFlight)
	go func() {
		for {
			select {
			case d, ok := <-delivery:
				if !ok {
					return
				}
				sem <- struct{}{}
				go func(d amqp.Delivery) {
					defer func() { <-sem }()
					if err := handler(d.RoutingKey, d.Body); err != nil {
						log.Warn("handler failed, requeue", slog.String("op", op), sl.Err(err))
						if nackErr := d.Nack(false, true); nackErr != nil {
							log.Error("failed to nack message", sl.Err(nackErr))
						}
						return
					}
					if ackErr := d.Ack(false); ackErr != nil {
						log.Error("failed to ack message", sl.Err(ackErr))
					}
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
