package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusDraft     Status = "draft"
	StatusOpen      Status = "offen"
	StatusAwarded   Status = "awarded"
	StatusClosed    Status = "closed"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusRejected  Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusOpen, StatusAwarded, StatusClosed, StatusCancelled, StatusExpired, StatusRejected:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	switch s {
	case StatusAwarded, StatusClosed, StatusCancelled, StatusExpired, StatusRejected:
		return true
	default:
		return false
	}
}

type ServiceType string

const (
	ServiceSeaFCL     ServiceType = "sea_fcl"
	ServiceSeaLCL     ServiceType = "sea_lcl"
	ServiceAir        ServiceType = "air"
	ServiceRoad       ServiceType = "road"
	ServiceRail       ServiceType = "rail"
	ServiceMultimodal ServiceType = "multimodal"
)

var ServiceTypes = []ServiceType{ServiceSeaFCL, ServiceSeaLCL, ServiceAir, ServiceRoad, ServiceRail, ServiceMultimodal}

func (t ServiceType) Valid() bool {
	for _, known := range ServiceTypes {
		if t == known {
			return true
		}
	}
	return false
}

type ResponseStatus string

const (
	ResponsePending  ResponseStatus = "pending"
	ResponseQuoted   ResponseStatus = "quoted"
	ResponseRejected ResponseStatus = "rejected"
)

// Inquiry is a shipper's freight request.
type Inquiry struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	ReferenceNumber string       `gorm:"column:reference_number;type:text;not null;uniqueIndex" json:"reference_number"`
	ShipperOrgID    snowflake.ID `gorm:"column:shipper_org_id;not null;index" json:"shipper_org_id"`
	CreatedBy       snowflake.ID `gorm:"column:created_by;not null" json:"created_by"`
	Status          Status       `gorm:"type:text;not null;index" json:"status"`
	ServiceType     ServiceType  `gorm:"column:service_type;type:text;not null" json:"service_type"`

	OriginCountry      string `gorm:"column:origin_country;type:char(2);not null" json:"origin_country"`
	OriginCity         string `gorm:"column:origin_city;type:text" json:"origin_city"`
	OriginPort         string `gorm:"column:origin_port;type:text" json:"origin_port"`
	DestinationCountry string `gorm:"column:destination_country;type:char(2);not null" json:"destination_country"`
	DestinationCity    string `gorm:"column:destination_city;type:text" json:"destination_city"`
	DestinationPort    string `gorm:"column:destination_port;type:text" json:"destination_port"`
	Incoterm           string `gorm:"type:text" json:"incoterm"`

	CargoDescription string  `gorm:"column:cargo_description;type:text" json:"cargo_description"`
	Commodity        string  `gorm:"type:text" json:"commodity"`
	TotalWeightKg    float64 `gorm:"column:total_weight_kg;not null;default:0" json:"total_weight_kg"`
	TotalVolumeM3    float64 `gorm:"column:total_volume_m3;not null;default:0" json:"total_volume_m3"`
	DangerousGoods   bool    `gorm:"column:dangerous_goods;not null;default:false" json:"dangerous_goods"`
	Notes            string  `gorm:"type:text" json:"notes"`

	ReadyDate    *time.Time `gorm:"column:ready_date" json:"ready_date,omitempty"`
	ValidityDate *time.Time `gorm:"column:validity_date;index" json:"validity_date,omitempty"`
	SentAt       *time.Time `gorm:"column:sent_at" json:"sent_at,omitempty"`
	ClosedAt     *time.Time `gorm:"column:closed_at" json:"closed_at,omitempty"`
	CreatedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	Packages []Package `gorm:"foreignKey:InquiryID" json:"packages,omitempty"`
}

func (Inquiry) TableName() string { return "inquiries" }

// Expired reports whether the validity date has passed at now.
func (i Inquiry) Expired(now time.Time) bool {
	return i.ValidityDate != nil && !i.ValidityDate.After(now)
}

type Package struct {
	ID             snowflake.ID `gorm:"primaryKey" json:"id"`
	InquiryID      snowflake.ID `gorm:"column:inquiry_id;not null;index" json:"inquiry_id"`
	Quantity       int          `gorm:"not null;default:1" json:"quantity"`
	Kind           string       `gorm:"type:text" json:"kind"`
	LengthCm       float64      `gorm:"column:length_cm" json:"length_cm"`
	WidthCm        float64      `gorm:"column:width_cm" json:"width_cm"`
	HeightCm       float64      `gorm:"column:height_cm" json:"height_cm"`
	WeightKg       float64      `gorm:"column:weight_kg" json:"weight_kg"`
	VolumeM3       float64      `gorm:"column:volume_m3" json:"volume_m3"`
	DangerousGoods bool         `gorm:"column:dangerous_goods;not null;default:false" json:"dangerous_goods"`
	UNNumber       string       `gorm:"column:un_number;type:text" json:"un_number,omitempty"`
	HazardClass    string       `gorm:"column:hazard_class;type:text" json:"hazard_class,omitempty"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Package) TableName() string { return "inquiry_packages" }

// Recipient is a forwarder an inquiry has been sent to.
type Recipient struct {
	ID             snowflake.ID   `gorm:"primaryKey" json:"id"`
	InquiryID      snowflake.ID   `gorm:"column:inquiry_id;not null;uniqueIndex:ux_inquiry_forwarder,priority:1" json:"inquiry_id"`
	ForwarderOrgID snowflake.ID   `gorm:"column:forwarder_org_id;not null;index;uniqueIndex:ux_inquiry_forwarder,priority:2" json:"forwarder_org_id"`
	SentAt         time.Time      `gorm:"column:sent_at;not null" json:"sent_at"`
	ViewedAt       *time.Time     `gorm:"column:viewed_at" json:"viewed_at,omitempty"`
	ResponseStatus ResponseStatus `gorm:"column:response_status;type:text;not null" json:"response_status"`
	RespondedAt    *time.Time     `gorm:"column:responded_at" json:"responded_at,omitempty"`
	RejectReason   string         `gorm:"column:reject_reason;type:text" json:"reject_reason,omitempty"`
}

func (Recipient) TableName() string { return "inquiry_forwarders" }

type Document struct {
	ID          snowflake.ID `gorm:"primaryKey" json:"id"`
	InquiryID   snowflake.ID `gorm:"column:inquiry_id;not null;index" json:"inquiry_id"`
	Filename    string       `gorm:"type:text;not null" json:"filename"`
	ContentType string       `gorm:"column:content_type;type:text;not null" json:"content_type"`
	Size        int64        `gorm:"not null" json:"size"`
	StorageKey  string       `gorm:"column:storage_key;type:text;not null" json:"-"`
	URL         string       `gorm:"type:text;not null" json:"url"`
	UploadedBy  snowflake.ID `gorm:"column:uploaded_by;not null" json:"uploaded_by"`
	CreatedAt   time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

func (Document) TableName() string { return "inquiry_documents" }
