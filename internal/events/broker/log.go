package broker

import (
	"context"

	"github.com/smallbiznis/freightdesk/internal/events/domain"
	"go.uber.org/zap"
)

// LogBroker writes relayed events to the process log. Used in development.
type LogBroker struct {
	log *zap.Logger
}

func NewLogBroker(log *zap.Logger) *LogBroker {
	return &LogBroker{log: log.Named("events.log_broker")}
}

func (b *LogBroker) Name() string { return KindLog }

func (b *LogBroker) Publish(_ context.Context, msg domain.Message) error {
	b.log.Info("event published",
		zap.String("event_id", msg.ID),
		zap.String("topic", msg.Topic),
		zap.String("key", msg.Key),
		zap.String("correlation_id", msg.CorrelationID),
		zap.ByteString("payload", msg.Payload),
	)
	return nil
}

func (b *LogBroker) Close() error { return nil }
