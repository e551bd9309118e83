package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	skafka "github.com/segmentio/kafka-go"
	"github.com/smallbiznis/freightdesk/internal/events/domain"
	"github.com/smallbiznis/freightdesk/pkg/telemetry/correlation"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeWriter struct {
	msgs   []skafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(_ context.Context, msgs ...skafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

type fakeChannel struct {
	exchange string
	key      string
	msgs     []amqp.Publishing
	closed   bool
}

func (c *fakeChannel) PublishWithContext(_ context.Context, exchange, key string, _, _ bool, msg amqp.Publishing) error {
	c.exchange = exchange
	c.key = key
	c.msgs = append(c.msgs, msg)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func sampleMessage() domain.Message {
	return domain.Message{
		ID:            "42",
		Topic:         "quotation.accepted",
		Key:           "inq-1",
		CorrelationID: "cid",
		OccurredAt:    time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC),
		Payload:       []byte(`{"quotation_id":"7"}`),
	}
}

func TestKafkaBrokerPublish(t *testing.T) {
	w := &fakeWriter{}
	b := NewKafkaBrokerWithWriter(w)

	require.NoError(t, b.Publish(context.Background(), sampleMessage()))
	require.Len(t, w.msgs, 1)
	require.Equal(t, "inq-1", string(w.msgs[0].Key))

	var decoded domain.Message
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &decoded))
	require.Equal(t, "quotation.accepted", decoded.Topic)
	require.JSONEq(t, `{"quotation_id":"7"}`, string(decoded.Payload))

	require.NoError(t, b.Close())
	require.True(t, w.closed)
}

func TestKafkaBrokerCarriesTraceHeaders(t *testing.T) {
	w := &fakeWriter{}
	b := NewKafkaBrokerWithWriter(w)
	ctx := correlation.ContextWithRemoteSpan(context.Background(), "4bf92f3577b34da6a3ce929d0e0e4736", "00f067aa0ba902b7")

	require.NoError(t, b.Publish(ctx, sampleMessage()))
	require.Len(t, w.msgs, 1)

	headers := map[string]string{}
	for _, h := range w.msgs[0].Headers {
		headers[h.Key] = string(h.Value)
	}
	require.Equal(t, map[string]string{
		"topic":          "quotation.accepted",
		"correlation_id": "cid",
		"trace_id":       "4bf92f3577b34da6a3ce929d0e0e4736",
		"span_id":        "00f067aa0ba902b7",
	}, headers)
}

func TestKafkaBrokerPropagatesWriteError(t *testing.T) {
	b := NewKafkaBrokerWithWriter(&fakeWriter{err: errors.New("leader not available")})
	require.Error(t, b.Publish(context.Background(), sampleMessage()))
}

func TestNewKafkaBrokerValidates(t *testing.T) {
	_, err := NewKafkaBroker(nil, "topic")
	require.Error(t, err)
	_, err = NewKafkaBroker([]string{"localhost:9092"}, "")
	require.Error(t, err)
}

func TestAMQPBrokerPublishPersistentJSON(t *testing.T) {
	ch := &fakeChannel{}
	b := NewAMQPBrokerWithChannel(ch, "freightdesk.events")

	require.NoError(t, b.Publish(context.Background(), sampleMessage()))
	require.Equal(t, "", ch.exchange)
	require.Equal(t, "freightdesk.events", ch.key)
	require.Len(t, ch.msgs, 1)
	require.Equal(t, "application/json", ch.msgs[0].ContentType)
	require.Equal(t, amqp.Persistent, ch.msgs[0].DeliveryMode)
	require.Equal(t, "cid", ch.msgs[0].CorrelationId)
	require.Equal(t, "cid", ch.msgs[0].Headers["correlation_id"])
	require.Equal(t, "quotation.accepted", ch.msgs[0].Headers["topic"])

	require.NoError(t, b.Close())
	require.True(t, ch.closed)
}

func TestLogBroker(t *testing.T) {
	b := NewLogBroker(zap.NewNop())
	require.Equal(t, KindLog, b.Name())
	require.NoError(t, b.Publish(context.Background(), sampleMessage()))
	require.NoError(t, b.Close())
}
