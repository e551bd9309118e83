package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
)

type Window string

const (
	Window7Days   Window = "7d"
	Window30Days  Window = "30d"
	Window90Days  Window = "90d"
	Window12Month Window = "12m"

	DefaultWindow = Window30Days
)

func (w Window) Valid() bool {
	switch w {
	case Window7Days, Window30Days, Window90Days, Window12Month:
		return true
	}
	return false
}

// Request selects the reporting window. From and To, when both set, win over
// Window and are inclusive calendar days.
type Request struct {
	Window Window
	From   *time.Time
	To     *time.Time
}

type Range struct {
	Window Window    `json:"window,omitempty"`
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
}

type StatusCount struct {
	Status string `json:"status"`
	Count  int64  `json:"count"`
}

type ServiceTypeShare struct {
	ServiceType string  `json:"service_type"`
	Count       int64   `json:"count"`
	Percentage  float64 `json:"percentage"`
}

type CurrencyAmount struct {
	Currency string `json:"currency"`
	Amount   int64  `json:"amount"`
}

type ShipperView struct {
	TotalInquiries              int64              `json:"total_inquiries"`
	InquiriesByStatus           []StatusCount      `json:"inquiries_by_status"`
	ServiceTypes                []ServiceTypeShare `json:"service_types"`
	SentInquiries               int64              `json:"sent_inquiries"`
	AverageQuotationsPerInquiry float64            `json:"average_quotations_per_inquiry"`
	Spend                       []CurrencyAmount   `json:"spend"`
}

type ForwarderView struct {
	ReceivedInquiries  int64              `json:"received_inquiries"`
	ServiceTypes       []ServiceTypeShare `json:"service_types"`
	QuotationsByStatus []StatusCount      `json:"quotations_by_status"`
	// WinRate is nil until at least one quotation has been decided.
	WinRate *float64         `json:"win_rate,omitempty"`
	Revenue []CurrencyAmount `json:"revenue"`
}

type Dashboard struct {
	OrgType   string         `json:"org_type"`
	Range     Range          `json:"range"`
	Shipper   *ShipperView   `json:"shipper,omitempty"`
	Forwarder *ForwarderView `json:"forwarder,omitempty"`
}

type Service interface {
	Get(ctx context.Context, orgID snowflake.ID, req Request) (*Dashboard, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidWindow       = errors.New("invalid_window")
	ErrInvalidRange        = errors.New("invalid_range")
)
