package push

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"

	"fintrack/internal/log"
)

// AMQPTransport consumes notification events from a broker. Deployments that
// fan notifications out through AMQP publish one message per event to a
// direct exchange, routed by user id.
type AMQPTransport struct {
	url      string
	exchange string
	queue    string
	attempts int
	delay    time.Duration
	logger   *log.Logger
}

func NewAMQPTransport(url, exchange, queue string, attempts int, delay time.Duration, logger *log.Logger) *AMQPTransport {
	return &AMQPTransport{
		url:      url,
		exchange: exchange,
		queue:    queue,
		attempts: attempts,
		delay:    delay,
		logger:   logger.WithComponent(log.ComponentPush),
	}
}

// Connect dials the broker and consumes until the context is canceled.
// Connection failures count against the reconnect budget, with the same
// fixed-delay policy as the websocket transport.
func (t *AMQPTransport) Connect(ctx context.Context, creds Credentials, handler Handler) error {
	failures := 0
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := t.consumeOnce(ctx, creds, handler)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		failures++
		t.logger.WarnContext(ctx, "AMQP push channel dropped",
			log.FieldAttempt, failures,
			log.FieldError, err)
		if failures >= t.attempts {
			return fmt.Errorf("push channel: giving up after %d attempts: %w", failures, err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(t.delay):
		}
	}
}

func (t *AMQPTransport) consumeOnce(ctx context.Context, creds Credentials, handler Handler) error {
	conn, err := amqp091.Dial(t.url)
	if err != nil {
		return fmt.Errorf("dial AMQP: %w", err)
	}
	defer conn.Close()

	channel, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer channel.Close()

	if err := t.setup(channel, creds.UserID); err != nil {
		return err
	}

	queueName := t.queueName(creds.UserID)
	msgs, err := channel.Consume(
		queueName, // queue
		"",        // consumer
		false,     // auto-ack (we want manual ack)
		false,     // exclusive
		false,     // no-local
		false,     // no-wait
		nil,       // args
	)
	if err != nil {
		return fmt.Errorf("start consuming: %w", err)
	}

	t.logger.InfoContext(ctx, "Push channel connected",
		log.FieldTransport, "amqp",
		log.FieldUserID, creds.UserID)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-msgs:
			if !ok {
				return fmt.Errorf("message channel closed")
			}

			var ev event
			if err := json.Unmarshal(delivery.Body, &ev); err != nil {
				t.logger.WarnContext(ctx, "Discarding malformed push message", log.FieldError, err)
				delivery.Nack(false, false) // reject and don't requeue
				continue
			}
			if ev.Event != EventNotification {
				delivery.Ack(false)
				continue
			}

			handler(ev.Data)
			delivery.Ack(false)
		}
	}
}

func (t *AMQPTransport) queueName(userID string) string {
	return t.queue + "." + userID
}

// setup declares the exchange and the per-user queue, bound by user id as
// the routing key.
func (t *AMQPTransport) setup(channel *amqp091.Channel, userID string) error {
	err := channel.ExchangeDeclare(
		t.exchange, // name
		"direct",   // type
		true,       // durable
		false,      // auto-deleted
		false,      // internal
		false,      // no-wait
		nil,        // arguments
	)
	if err != nil {
		return fmt.Errorf("declare exchange: %w", err)
	}

	queueName := t.queueName(userID)
	_, err = channel.QueueDeclare(
		queueName, // name
		true,      // durable
		false,     // delete when unused
		false,     // exclusive
		false,     // no-wait
		nil,       // arguments
	)
	if err != nil {
		return fmt.Errorf("declare queue: %w", err)
	}

	err = channel.QueueBind(
		queueName,  // queue name
		userID,     // routing key
		t.exchange, // exchange
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("bind queue: %w", err)
	}

	return nil
}
