// Package domain holds the transactional outbox model.
package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OutboxEvent is a domain event waiting to be relayed to the broker.
type OutboxEvent struct {
	ID            snowflake.ID   `gorm:"primaryKey" json:"id"`
	Topic         string         `gorm:"type:text;not null;index" json:"topic"`
	Key           string         `gorm:"column:key;type:text;not null" json:"key"`
	Payload       datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	CorrelationID string         `gorm:"column:correlation_id;type:text" json:"correlation_id"`
	TraceID       string         `gorm:"column:trace_id;type:text" json:"trace_id,omitempty"`
	SpanID        string         `gorm:"column:span_id;type:text" json:"span_id,omitempty"`
	CreatedAt     time.Time      `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	PublishedAt   *time.Time     `gorm:"column:published_at;index" json:"published_at,omitempty"`
	Attempts      int            `gorm:"not null;default:0" json:"attempts"`
	LastError     *string        `gorm:"column:last_error;type:text" json:"last_error,omitempty"`
}

// TableName sets the database table name.
func (OutboxEvent) TableName() string { return "outbox_events" }

// Message is the envelope handed to a broker.
type Message struct {
	ID            string         `json:"id"`
	Topic         string         `json:"topic"`
	Key           string         `json:"key"`
	CorrelationID string         `json:"correlation_id,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
	Payload       datatypes.JSON `json:"payload"`
}

// Broker delivers relayed messages to an external system.
type Broker interface {
	Name() string
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// Publisher writes events to the outbox. A non-nil tx makes the insert part of
// the caller's transaction.
type Publisher interface {
	Enqueue(ctx context.Context, tx *gorm.DB, topic string, key string, payload any) error
}

// RelayResult summarizes one relay pass. Parked counts rows that hit the
// attempt cap on this pass and will not be claimed again.
type RelayResult struct {
	Claimed   int
	Published int
	Failed    int
	Parked    int
}

// Relay forwards unpublished outbox rows to the broker.
type Relay interface {
	RelayPending(ctx context.Context, limit int) (RelayResult, error)
}

var (
	ErrInvalidTopic   = errors.New("invalid_topic")
	ErrInvalidPayload = errors.New("invalid_payload")
)
