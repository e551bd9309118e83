package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/smallbiznis/freightdesk/internal/events/domain"
)

// Channel is the subset of *amqp.Channel the broker needs.
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type AMQPBroker struct {
	conn    *amqp.Connection
	channel Channel
	queue   string
}

func NewAMQPBroker(url string, queue string) (*AMQPBroker, error) {
	if queue == "" {
		return nil, errors.New("amqp queue is required")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}

	b := NewAMQPBrokerWithChannel(ch, queue)
	b.conn = conn
	return b, nil
}

func NewAMQPBrokerWithChannel(ch Channel, queue string) *AMQPBroker {
	return &AMQPBroker{channel: ch, queue: queue}
}

func (b *AMQPBroker) Name() string { return KindAMQP }

func (b *AMQPBroker) Publish(ctx context.Context, msg domain.Message) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	headers := amqp.Table{"topic": msg.Topic}
	for _, kv := range messageHeaders(ctx, msg) {
		headers[kv[0]] = kv[1]
	}

	return b.channel.PublishWithContext(ctx, "", b.queue, false, false, amqp.Publishing{
		ContentType:   "application/json",
		DeliveryMode:  amqp.Persistent,
		MessageId:     msg.ID,
		CorrelationId: msg.CorrelationID,
		Type:          msg.Topic,
		Timestamp:     msg.OccurredAt,
		Headers:       headers,
		Body:          body,
	})
}

func (b *AMQPBroker) Close() error {
	var errs []error
	if b.channel != nil {
		errs = append(errs, b.channel.Close())
	}
	if b.conn != nil {
		errs = append(errs, b.conn.Close())
	}
	return errors.Join(errs...)
}
