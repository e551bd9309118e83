package domain

import (
	"context"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/freightdesk/pkg/db/pagination"
)

type PackageInput struct {
	Quantity       int     `json:"quantity"`
	Kind           string  `json:"kind"`
	LengthCm       float64 `json:"length_cm"`
	WidthCm        float64 `json:"width_cm"`
	HeightCm       float64 `json:"height_cm"`
	WeightKg       float64 `json:"weight_kg"`
	VolumeM3       float64 `json:"volume_m3"`
	DangerousGoods bool    `json:"dangerous_goods"`
	UNNumber       string  `json:"un_number"`
	HazardClass    string  `json:"hazard_class"`
}

type CreateRequest struct {
	ServiceType        string         `json:"service_type"`
	OriginCountry      string         `json:"origin_country"`
	OriginCity         string         `json:"origin_city"`
	OriginPort         string         `json:"origin_port"`
	DestinationCountry string         `json:"destination_country"`
	DestinationCity    string         `json:"destination_city"`
	DestinationPort    string         `json:"destination_port"`
	Incoterm           string         `json:"incoterm"`
	CargoDescription   string         `json:"cargo_description"`
	Commodity          string         `json:"commodity"`
	DangerousGoods     bool           `json:"dangerous_goods"`
	Notes              string         `json:"notes"`
	ReadyDate          *time.Time     `json:"ready_date"`
	ValidityDate       *time.Time     `json:"validity_date"`
	Packages           []PackageInput `json:"packages"`
}

// UpdateRequest patches a draft; nil fields are left alone and a non-nil
// Packages replaces the whole list.
type UpdateRequest struct {
	ServiceType        *string         `json:"service_type"`
	OriginCountry      *string         `json:"origin_country"`
	OriginCity         *string         `json:"origin_city"`
	OriginPort         *string         `json:"origin_port"`
	DestinationCountry *string         `json:"destination_country"`
	DestinationCity    *string         `json:"destination_city"`
	DestinationPort    *string         `json:"destination_port"`
	Incoterm           *string         `json:"incoterm"`
	CargoDescription   *string         `json:"cargo_description"`
	Commodity          *string         `json:"commodity"`
	DangerousGoods     *bool           `json:"dangerous_goods"`
	Notes              *string         `json:"notes"`
	ReadyDate          *time.Time      `json:"ready_date"`
	ValidityDate       *time.Time      `json:"validity_date"`
	Packages           *[]PackageInput `json:"packages"`
}

type SendRequest struct {
	ForwarderIDs []string `json:"forwarder_ids"`
}

type RejectRequest struct {
	Reason string `json:"reason"`
}

type ListRequest struct {
	pagination.Pagination
	Status string `form:"status"`
}

// ListItem carries the caller's recipient row when listing a forwarder inbox.
type ListItem struct {
	Inquiry
	Recipient *Recipient `json:"recipient,omitempty"`
}

type ListResponse struct {
	pagination.PageInfo
	Inquiries []ListItem `json:"inquiries"`
}

// Detail is an inquiry with the recipients the caller may see.
type Detail struct {
	Inquiry
	Recipients []Recipient `json:"recipients"`
	Documents  []Document  `json:"documents"`
}

type DocumentUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type Service interface {
	Create(ctx context.Context, orgID, userID snowflake.ID, req CreateRequest) (*Inquiry, error)
	Update(ctx context.Context, orgID, inquiryID snowflake.ID, req UpdateRequest) (*Inquiry, error)
	// Get enforces visibility: the owning shipper, or a connected forwarder
	// that received the inquiry. A forwarder's first read records viewed_at.
	Get(ctx context.Context, orgID, inquiryID snowflake.ID) (*Detail, error)
	List(ctx context.Context, orgID snowflake.ID, req ListRequest) (ListResponse, error)
	Send(ctx context.Context, orgID, inquiryID snowflake.ID, req SendRequest) (*Inquiry, error)
	Cancel(ctx context.Context, orgID, inquiryID snowflake.ID) (*Inquiry, error)
	Close(ctx context.Context, orgID, inquiryID snowflake.ID) (*Inquiry, error)
	Reject(ctx context.Context, orgID, inquiryID snowflake.ID, req RejectRequest) (*Inquiry, error)
	UploadDocument(ctx context.Context, orgID, userID, inquiryID snowflake.ID, upload DocumentUpload) (*Document, error)
	ListDocuments(ctx context.Context, orgID, inquiryID snowflake.ID) ([]Document, error)
}
