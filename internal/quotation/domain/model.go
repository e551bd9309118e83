package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusSubmitted Status = "submitted"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusWithdrawn Status = "withdrawn"
	StatusExpired   Status = "expired"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusSubmitted, StatusAccepted, StatusRejected, StatusWithdrawn, StatusExpired:
		return true
	default:
		return false
	}
}

// Editable reports whether the forwarder may still change the offer.
func (s Status) Editable() bool {
	return s == StatusDraft || s == StatusSubmitted
}

// Charge is one extra line on top of the carriage legs, in minor units.
type Charge struct {
	Name   string `json:"name"`
	Amount int64  `json:"amount"`
}

// Quotation is a forwarder's price offer against an inquiry. Amounts are
// minor units of Currency.
type Quotation struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	QuotationNumber string       `gorm:"column:quotation_number;type:text;not null;uniqueIndex" json:"quotation_number"`
	InquiryID       snowflake.ID `gorm:"column:inquiry_id;not null;index:idx_quotations_inquiry_forwarder,priority:1" json:"inquiry_id"`
	ForwarderOrgID  snowflake.ID `gorm:"column:forwarder_org_id;not null;index:idx_quotations_inquiry_forwarder,priority:2" json:"forwarder_org_id"`
	CreatedBy       snowflake.ID `gorm:"column:created_by;not null" json:"created_by"`
	Status          Status       `gorm:"type:text;not null;index" json:"status"`

	Currency          string                      `gorm:"type:char(3);not null" json:"currency"`
	PreCarriage       int64                       `gorm:"column:pre_carriage;not null;default:0" json:"pre_carriage"`
	MainCarriage      int64                       `gorm:"column:main_carriage;not null;default:0" json:"main_carriage"`
	OnCarriage        int64                       `gorm:"column:on_carriage;not null;default:0" json:"on_carriage"`
	AdditionalCharges datatypes.JSONSlice[Charge] `gorm:"column:additional_charges;type:jsonb;not null" json:"additional_charges"`
	TotalPrice        int64                       `gorm:"column:total_price;not null;default:0" json:"total_price"`

	TransitTimeDays int        `gorm:"column:transit_time_days" json:"transit_time_days"`
	ValidUntil      *time.Time `gorm:"column:valid_until;index" json:"valid_until,omitempty"`
	Notes           string     `gorm:"type:text" json:"notes"`
	RejectReason    string     `gorm:"column:reject_reason;type:text" json:"reject_reason,omitempty"`

	SubmittedAt *time.Time `gorm:"column:submitted_at" json:"submitted_at,omitempty"`
	DecidedAt   *time.Time `gorm:"column:decided_at" json:"decided_at,omitempty"`
	WithdrawnAt *time.Time `gorm:"column:withdrawn_at" json:"withdrawn_at,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Quotation) TableName() string { return "quotations" }

// Recompute sets TotalPrice from the carriage legs and additional charges.
func (q *Quotation) Recompute() {
	total := q.PreCarriage + q.MainCarriage + q.OnCarriage
	for _, c := range q.AdditionalCharges {
		total += c.Amount
	}
	q.TotalPrice = total
}
