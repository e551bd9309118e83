package domain

import (
	"context"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/freightdesk/pkg/db/pagination"
)

type CreateRequest struct {
	Currency          string     `json:"currency"`
	PreCarriage       int64      `json:"pre_carriage"`
	MainCarriage      int64      `json:"main_carriage"`
	OnCarriage        int64      `json:"on_carriage"`
	AdditionalCharges []Charge   `json:"additional_charges"`
	TransitTimeDays   int        `json:"transit_time_days"`
	ValidUntil        *time.Time `json:"valid_until"`
	Notes             string     `json:"notes"`
}

type UpdateRequest struct {
	Currency          *string    `json:"currency"`
	PreCarriage       *int64     `json:"pre_carriage"`
	MainCarriage      *int64     `json:"main_carriage"`
	OnCarriage        *int64     `json:"on_carriage"`
	AdditionalCharges *[]Charge  `json:"additional_charges"`
	TransitTimeDays   *int       `json:"transit_time_days"`
	ValidUntil        *time.Time `json:"valid_until"`
	Notes             *string    `json:"notes"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type ListRequest struct {
	pagination.Pagination
	Status string `form:"status"`
}

type ListResponse struct {
	pagination.PageInfo
	Quotations []Quotation `json:"quotations"`
}

// Document is a rendered quotation export.
type Document struct {
	Filename    string
	ContentType string
	Body        io.Reader
}

type Service interface {
	Create(ctx context.Context, orgID, userID, inquiryID snowflake.ID, req CreateRequest) (*Quotation, error)
	Update(ctx context.Context, orgID, quotationID snowflake.ID, req UpdateRequest) (*Quotation, error)
	Get(ctx context.Context, orgID, quotationID snowflake.ID) (*Quotation, error)
	// ListForInquiry returns submitted and later quotations to the owning
	// shipper, and only its own to a forwarder.
	ListForInquiry(ctx context.Context, orgID, inquiryID snowflake.ID) ([]Quotation, error)
	List(ctx context.Context, orgID snowflake.ID, req ListRequest) (ListResponse, error)
	Submit(ctx context.Context, orgID, quotationID snowflake.ID) (*Quotation, error)
	Withdraw(ctx context.Context, orgID, quotationID snowflake.ID) (*Quotation, error)
	Accept(ctx context.Context, orgID, quotationID snowflake.ID) (*Quotation, error)
	Reject(ctx context.Context, orgID, quotationID snowflake.ID, req RejectRequest) (*Quotation, error)
	Export(ctx context.Context, orgID, quotationID snowflake.ID) (*Document, error)
}
