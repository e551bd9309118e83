package domain

import "errors"

var (
	ErrInvalidOrganization  = errors.New("invalid_organization")
	ErrInvalidCounterpart   = errors.New("invalid_counterpart")
	ErrInvalidStatus        = errors.New("invalid_status")
	ErrConnectionNotFound   = errors.New("connection_not_found")
	ErrConnectionExists     = errors.New("connection_exists")
	ErrConnectionNotPending = errors.New("connection_not_pending")
	ErrForbidden            = errors.New("forbidden")
)
