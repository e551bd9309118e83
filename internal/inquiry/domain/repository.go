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
	OrgID  snowflake.ID
	Status Status
	Cursor *Cursor
	Limit  int
}

// Repository reads and writes inquiries. Every method runs on the given
// connection so callers control the transaction.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, inquiry *Inquiry) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Inquiry, error)
	// Lock loads the inquiry row with FOR UPDATE where the dialect supports it.
	Lock(ctx context.Context, db *gorm.DB, id snowflake.ID) (*Inquiry, error)
	Update(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error
	ReplacePackages(ctx context.Context, db *gorm.DB, inquiryID snowflake.ID, packages []Package) error
	ListByShipper(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Inquiry, error)
	ListInbox(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Inquiry, error)

	InsertRecipients(ctx context.Context, db *gorm.DB, recipients []Recipient) error
	ListRecipients(ctx context.Context, db *gorm.DB, inquiryIDs ...snowflake.ID) ([]Recipient, error)
	FindRecipient(ctx context.Context, db *gorm.DB, inquiryID, forwarderOrgID snowflake.ID) (*Recipient, error)
	UpdateRecipient(ctx context.Context, db *gorm.DB, id snowflake.ID, fields map[string]any) error

	InsertDocument(ctx context.Context, db *gorm.DB, doc *Document) error
	ListDocuments(ctx context.Context, db *gorm.DB, inquiryID snowflake.ID) ([]Document, error)

	// WithdrawOpenQuotations moves draft and submitted quotations on the
	// inquiry to withdrawn, optionally only those of one forwarder.
	WithdrawOpenQuotations(ctx context.Context, db *gorm.DB, inquiryID snowflake.ID, forwarderOrgID *snowflake.ID, now time.Time) (int64, error)
	CountActiveQuotations(ctx context.Context, db *gorm.DB, inquiryID snowflake.ID) (int64, error)

	// ListOverdue claims up to limit open inquiries whose validity date is
	// not after now, skipping rows locked by another sweeper.
	ListOverdue(ctx context.Context, db *gorm.DB, now time.Time, limit int) ([]Inquiry, error)
	MarkExpired(ctx context.Context, db *gorm.DB, ids []snowflake.ID, now time.Time) (int64, error)
}
