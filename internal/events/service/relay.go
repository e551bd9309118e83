package service

import (
	"context"
	"time"

	"github.com/smallbiznis/freightdesk/internal/config"
	"github.com/smallbiznis/freightdesk/internal/events/domain"
	"github.com/smallbiznis/freightdesk/pkg/db"
	"github.com/smallbiznis/freightdesk/pkg/telemetry/correlation"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	maxErrorLength     = 1024
	defaultMaxAttempts = 10
)

type RelayParams struct {
	fx.In

	DB     *gorm.DB
	Log    *zap.Logger
	Broker domain.Broker
	Cfg    config.Config
}

type relay struct {
	db          *gorm.DB
	log         *zap.Logger
	broker      domain.Broker
	maxAttempts int
}

func NewRelay(p RelayParams) domain.Relay {
	maxAttempts := p.Cfg.Events.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}
	return &relay{
		db:          p.DB,
		log:         p.Log.Named("events.relay"),
		broker:      p.Broker,
		maxAttempts: maxAttempts,
	}
}

// RelayPending claims up to limit unpublished rows and hands each to the broker.
// Rows stay claimed for the duration of the transaction, so concurrent relays
// on Postgres skip them. Fresh rows are claimed before retried ones, and a row
// that has failed maxAttempts times is parked until an operator resets it.
func (r *relay) RelayPending(ctx context.Context, limit int) (domain.RelayResult, error) {
	if limit <= 0 {
		limit = 100
	}

	var result domain.RelayResult
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var pending []domain.OutboxEvent
		if err := db.ForUpdateSkipLocked(tx.WithContext(ctx)).
			Where("published_at IS NULL AND attempts < ?", r.maxAttempts).
			Order("attempts ASC, created_at ASC, id ASC").
			Limit(limit).
			Find(&pending).Error; err != nil {
			return err
		}
		result.Claimed = len(pending)

		for _, evt := range pending {
			now := time.Now().UTC()
			msgCtx := correlation.ContextWithCorrelationID(ctx, evt.CorrelationID)
			msgCtx = correlation.ContextWithRemoteSpan(msgCtx, evt.TraceID, evt.SpanID)
			pubErr := r.broker.Publish(msgCtx, domain.Message{
				ID:            evt.ID.String(),
				Topic:         evt.Topic,
				Key:           evt.Key,
				CorrelationID: evt.CorrelationID,
				OccurredAt:    evt.CreatedAt,
				Payload:       evt.Payload,
			})
			if pubErr != nil {
				result.Failed++
				msg := pubErr.Error()
				if len(msg) > maxErrorLength {
					msg = msg[:maxErrorLength]
				}
				fields := []zap.Field{
					zap.String("event_id", evt.ID.String()),
					zap.String("topic", evt.Topic),
					zap.String("correlation_id", evt.CorrelationID),
					zap.Int("attempts", evt.Attempts+1),
					zap.Error(pubErr),
				}
				if evt.Attempts+1 >= r.maxAttempts {
					result.Parked++
					r.log.Error("parking outbox event after max attempts", fields...)
				} else {
					r.log.Warn("failed to publish outbox event", fields...)
				}
				if err := tx.Model(&domain.OutboxEvent{}).Where("id = ?", evt.ID).Updates(map[string]any{
					"attempts":   gorm.Expr("attempts + 1"),
					"last_error": msg,
				}).Error; err != nil {
					return err
				}
				continue
			}

			if err := tx.Model(&domain.OutboxEvent{}).Where("id = ?", evt.ID).Updates(map[string]any{
				"published_at": now,
				"attempts":     gorm.Expr("attempts + 1"),
				"last_error":   nil,
			}).Error; err != nil {
				return err
			}
			result.Published++
		}
		return nil
	})
	if err != nil {
		return domain.RelayResult{}, err
	}
	return result, nil
}
