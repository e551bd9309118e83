package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/freightdesk/pkg/db/pagination"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	TypeOrganizationCreated = "organization.created"
	TypeMemberInvited       = "member.invited"
	TypeMemberJoined        = "member.joined"
	TypeMemberRoleChanged   = "member.role_changed"
	TypeMemberRemoved       = "member.removed"

	TypeConnectionRequested = "connection.requested"
	TypeConnectionAccepted  = "connection.accepted"
	TypeConnectionRemoved   = "connection.removed"

	TypeInquiryCreated   = "inquiry.created"
	TypeInquirySent      = "inquiry.sent"
	TypeInquiryCancelled = "inquiry.cancelled"
	TypeInquiryClosed    = "inquiry.closed"
	TypeInquiryRejected  = "inquiry.rejected"
	TypeInquiryExpired   = "inquiry.expired"

	TypeQuotationSubmitted = "quotation.submitted"
	TypeQuotationWithdrawn = "quotation.withdrawn"
	TypeQuotationAccepted  = "quotation.accepted"
	TypeQuotationRejected  = "quotation.rejected"
	TypeQuotationExpired   = "quotation.expired"

	TypeSubscriptionTierChanged = "subscription.tier_changed"
)

// Event is an append-only entry in an organization's activity feed.
type Event struct {
	ID         snowflake.ID      `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID      `gorm:"not null;index:ix_activity_org_created,priority:1" json:"org_id"`
	Type       string            `gorm:"type:text;not null" json:"type"`
	ActorType  string            `gorm:"type:text;not null" json:"actor_type"`
	ActorID    *string           `gorm:"type:text" json:"actor_id,omitempty"`
	TargetType string            `gorm:"type:text;not null" json:"target_type"`
	TargetID   *string           `gorm:"type:text" json:"target_id,omitempty"`
	Payload    datatypes.JSONMap `gorm:"type:jsonb;not null" json:"payload"`
	CreatedAt  time.Time         `gorm:"not null;index:ix_activity_org_created,priority:2" json:"created_at"`
}

// TableName sets the database table name.
func (Event) TableName() string { return "activity_events" }

// RecordRequest describes one state change worth showing in the feed.
type RecordRequest struct {
	OrgID      snowflake.ID
	Type       string
	TargetType string
	TargetID   string
	Payload    map[string]any
}

type ListRequest struct {
	pagination.Pagination
	Type string
}

type ListResponse struct {
	pagination.PageInfo
	Events []Event `json:"events"`
}

type Cursor struct {
	ID        snowflake.ID
	CreatedAt time.Time
}

type ListFilter struct {
	OrgID  snowflake.ID
	Type   string
	Cursor *Cursor
	Limit  int
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *Event) error
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Event, error)
}

// Service records and lists activity. Record with a non-nil tx joins the
// caller's transaction so the entry commits together with the state change.
type Service interface {
	Record(ctx context.Context, tx *gorm.DB, req RecordRequest) error
	List(ctx context.Context, orgID snowflake.ID, req ListRequest) (ListResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidPageToken    = errors.New("invalid_page_token")
	ErrInvalidType         = errors.New("invalid_type")
)
