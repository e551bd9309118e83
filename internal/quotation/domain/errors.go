package domain

import "errors"

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidCurrency     = errors.New("invalid_currency")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInvalidCharge       = errors.New("invalid_charge")
	ErrInvalidValidUntil   = errors.New("invalid_valid_until")
	ErrInvalidTransitTime  = errors.New("invalid_transit_time")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidPageToken    = errors.New("invalid_page_token")

	ErrForwarderOnly = errors.New("forwarder_only")
	ErrShipperOnly   = errors.New("shipper_only")

	ErrQuotationNotFound    = errors.New("quotation_not_found")
	ErrQuotationExists      = errors.New("quotation_exists")
	ErrQuotationNotEditable = errors.New("quotation_not_editable")
	ErrInvalidTransition    = errors.New("invalid_quotation_transition")
	ErrQuotationExpired     = errors.New("quotation_expired")
	ErrInquiryNotOpen       = errors.New("inquiry_not_open")
	ErrInquiryExpired       = errors.New("inquiry_expired")
	ErrRateLimited          = errors.New("rate_limited")
)
