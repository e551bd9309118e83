package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	skafka "github.com/segmentio/kafka-go"
	"github.com/smallbiznis/freightdesk/internal/events/domain"
)

// Writer is the subset of kafka.Writer the broker needs.
type Writer interface {
	WriteMessages(ctx context.Context, msgs ...skafka.Message) error
	Close() error
}

type KafkaBroker struct {
	writer Writer
}

func NewKafkaBroker(brokers []string, topic string) (*KafkaBroker, error) {
	if len(brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if topic == "" {
		return nil, errors.New("kafka topic is required")
	}
	return NewKafkaBrokerWithWriter(&skafka.Writer{
		Addr:                   skafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &skafka.LeastBytes{},
		RequiredAcks:           skafka.RequireAll,
		AllowAutoTopicCreation: true,
	}), nil
}

func NewKafkaBrokerWithWriter(w Writer) *KafkaBroker {
	return &KafkaBroker{writer: w}
}

func (b *KafkaBroker) Name() string { return KindKafka }

func (b *KafkaBroker) Publish(ctx context.Context, msg domain.Message) error {
	value, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	headers := []skafka.Header{{Key: "topic", Value: []byte(msg.Topic)}}
	for _, kv := range messageHeaders(ctx, msg) {
		headers = append(headers, skafka.Header{Key: kv[0], Value: []byte(kv[1])})
	}

	return b.writer.WriteMessages(ctx, skafka.Message{
		Key:     []byte(msg.Key),
		Value:   value,
		Headers: headers,
		Time:    msg.OccurredAt,
	})
}

func (b *KafkaBroker) Close() error {
	return b.writer.Close()
}
