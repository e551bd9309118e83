package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	ForwarderOrgID snowflake.ID
	Status         Status
	Cursor         *Cursor
	Limit          int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, q *Quotation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Quotation, error)
	Lock(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Quotation, error)
	Update(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
	// FindBlocking returns the forwarder's newest quotation on the inquiry
	// that is not rejected.
	FindBlocking(ctx context.Context, db *gorm.DB, inquiryID, forwarderOrgID snowflake.ID) (*Quotation, error)
	ListByInquiry(ctx context.Context, db *gorm.DB, inquiryID snowflake.ID, statuses []Status, forwarderOrgID *snowflake.ID) ([]Quotation, error)
	ListByForwarder(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Quotation, error)
	// RejectSubmittedSiblings rejects every submitted quotation on the
	// inquiry other than keepID and returns the rows it changed.
	RejectSubmittedSiblings(ctx context.Context, db *gorm.DB, inquiryID, keepID snowflake.ID, now time.Time) ([]Quotation, error)
	CountNotRejected(ctx context.Context, db *gorm.DB, inquiryID snowflake.ID) (int64, error)

	// ListOverdue claims up to limit submitted quotations whose valid_until
	// is not after now.
	ListOverdue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Quotation, error)
	MarkExpired(ctx context.Context, db *gorm.DB, ids []snowflake.ID, now time.Time) (int64, error)
}
