package domain

import "errors"

var (
	ErrInvalidOrganization   = errors.New("invalid_organization")
	ErrInvalidServiceType    = errors.New("invalid_service_type")
	ErrInvalidCountry        = errors.New("invalid_country")
	ErrInvalidPackage        = errors.New("invalid_package")
	ErrInvalidValidityDate   = errors.New("invalid_validity_date")
	ErrInvalidStatus         = errors.New("invalid_status")
	ErrInvalidPageToken      = errors.New("invalid_page_token")
	ErrNoForwarders          = errors.New("no_forwarders")
	ErrInvalidForwarder      = errors.New("invalid_forwarder")
	ErrForwarderNotConnected = errors.New("forwarder_not_connected")
	ErrShipperOnly           = errors.New("shipper_only")
	ErrForwarderOnly         = errors.New("forwarder_only")
	ErrInquiryNotFound       = errors.New("inquiry_not_found")
	ErrInquiryNotEditable    = errors.New("inquiry_not_editable")
	ErrInvalidTransition     = errors.New("invalid_transition")
	ErrAlreadyResponded      = errors.New("already_responded")
)
