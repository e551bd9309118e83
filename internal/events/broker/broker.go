// Package broker implements the outbox relay targets.
package broker

import (
	"context"
	"fmt"
	"sort"

	"github.com/smallbiznis/freightdesk/internal/config"
	"github.com/smallbiznis/freightdesk/internal/events/domain"
	"github.com/smallbiznis/freightdesk/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	KindLog   = "log"
	KindKafka = "kafka"
	KindAMQP  = "amqp"
)

// New selects the broker configured for this process.
func New(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (domain.Broker, error) {
	var (
		b   domain.Broker
		err error
	)
	switch cfg.Events.Broker {
	case "", KindLog:
		b = NewLogBroker(log)
	case KindKafka:
		b, err = NewKafkaBroker(cfg.Events.KafkaBrokers, cfg.Events.KafkaTopic)
	case KindAMQP:
		b, err = NewAMQPBroker(cfg.Events.AMQPURL, cfg.Events.AMQPQueue)
	default:
		return nil, fmt.Errorf("unsupported events broker %q", cfg.Events.Broker)
	}
	if err != nil {
		return nil, err
	}

	log.Info("events broker ready", zap.String("broker", b.Name()))
	lc.Append(fx.StopHook(func() error {
		return b.Close()
	}))
	return b, nil
}

// messageHeaders returns the correlation and trace headers for msg in a stable
// order. The message's own correlation id wins over the context's.
func messageHeaders(ctx context.Context, msg domain.Message) [][2]string {
	headers := correlation.TraceHeaders(ctx)
	if msg.CorrelationID != "" {
		headers[correlation.HeaderCorrelationID] = msg.CorrelationID
	}
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([][2]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, [2]string{k, headers[k]})
	}
	return out
}
