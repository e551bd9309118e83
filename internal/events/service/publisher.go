package service

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/freightdesk/internal/events/domain"
	"github.com/smallbiznis/freightdesk/pkg/telemetry/correlation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type publisher struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func NewPublisher(db *gorm.DB, genID *snowflake.Node) domain.Publisher {
	return &publisher{db: db, genID: genID}
}

func (p *publisher) Enqueue(ctx context.Context, tx *gorm.DB, topic string, key string, payload any) error {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return domain.ErrInvalidTopic
	}

	var raw []byte
	switch v := payload.(type) {
	case nil:
		return domain.ErrInvalidPayload
	case []byte:
		raw = v
	case json.RawMessage:
		raw = v
	case datatypes.JSON:
		raw = v
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return domain.ErrInvalidPayload
		}
		raw = encoded
	}
	if !json.Valid(raw) {
		return domain.ErrInvalidPayload
	}

	conn := tx
	if conn == nil {
		conn = p.db
	}

	headers := correlation.TraceHeaders(ctx)
	evt := domain.OutboxEvent{
		ID:            p.genID.Generate(),
		Topic:         topic,
		Key:           strings.TrimSpace(key),
		Payload:       datatypes.JSON(raw),
		CorrelationID: headers[correlation.HeaderCorrelationID],
		TraceID:       headers[correlation.HeaderTraceID],
		SpanID:        headers[correlation.HeaderSpanID],
		CreatedAt:     time.Now().UTC(),
	}
	return conn.WithContext(ctx).Create(&evt).Error
}
