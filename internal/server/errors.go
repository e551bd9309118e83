package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	activitydomain "github.com/smallbiznis/freightdesk/internal/activity/domain"
	authdomain "github.com/smallbiznis/freightdesk/internal/auth/domain"
	"github.com/smallbiznis/freightdesk/internal/authorization"
	connectiondomain "github.com/smallbiznis/freightdesk/internal/connection/domain"
	dashboarddomain "github.com/smallbiznis/freightdesk/internal/dashboard/domain"
	inquirydomain "github.com/smallbiznis/freightdesk/internal/inquiry/domain"
	organizationdomain "github.com/smallbiznis/freightdesk/internal/organization/domain"
	"github.com/smallbiznis/freightdesk/internal/providers/storage"
	quotationdomain "github.com/smallbiznis/freightdesk/internal/quotation/domain"
	subscriptiondomain "github.com/smallbiznis/freightdesk/internal/subscription/domain"
	"github.com/smallbiznis/freightdesk/pkg/db"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrNoActiveOrg        = errors.New("no_active_organization")
)

var validationErrors = []error{
	ErrInvalidRequest,
	ErrNoActiveOrg,
	authdomain.ErrWeakPassword,
	authdomain.ErrInvalidEmail,
	organizationdomain.ErrInvalidName,
	organizationdomain.ErrInvalidType,
	organizationdomain.ErrTypeImmutable,
	organizationdomain.ErrInvalidCountry,
	organizationdomain.ErrInvalidUser,
	organizationdomain.ErrInvalidOrganization,
	organizationdomain.ErrInvalidEmail,
	organizationdomain.ErrInvalidRole,
	organizationdomain.ErrInvalidInviteToken,
	organizationdomain.ErrInviteExpired,
	subscriptiondomain.ErrInvalidOrganization,
	subscriptiondomain.ErrInvalidTier,
	connectiondomain.ErrInvalidOrganization,
	connectiondomain.ErrInvalidCounterpart,
	connectiondomain.ErrInvalidStatus,
	inquirydomain.ErrInvalidOrganization,
	inquirydomain.ErrInvalidServiceType,
	inquirydomain.ErrInvalidCountry,
	inquirydomain.ErrInvalidPackage,
	inquirydomain.ErrInvalidValidityDate,
	inquirydomain.ErrInvalidStatus,
	inquirydomain.ErrInvalidPageToken,
	inquirydomain.ErrNoForwarders,
	inquirydomain.ErrInvalidForwarder,
	inquirydomain.ErrForwarderNotConnected,
	quotationdomain.ErrInvalidOrganization,
	quotationdomain.ErrInvalidCurrency,
	quotationdomain.ErrInvalidAmount,
	quotationdomain.ErrInvalidCharge,
	quotationdomain.ErrInvalidValidUntil,
	quotationdomain.ErrInvalidTransitTime,
	quotationdomain.ErrInvalidStatus,
	quotationdomain.ErrInvalidPageToken,
	activitydomain.ErrInvalidOrganization,
	activitydomain.ErrInvalidPageToken,
	activitydomain.ErrInvalidType,
	dashboarddomain.ErrInvalidOrganization,
	dashboarddomain.ErrInvalidWindow,
	dashboarddomain.ErrInvalidRange,
	storage.ErrUnsupportedContentType,
	storage.ErrTooLarge,
	storage.ErrEmptyFile,
	storage.ErrInvalidKey,
}

var unauthorizedErrors = []error{
	ErrUnauthorized,
	authdomain.ErrInvalidCredentials,
	authdomain.ErrInvalidSession,
	authdomain.ErrSessionNotFound,
	authdomain.ErrSessionExpired,
	authdomain.ErrSessionRevoked,
}

var forbiddenErrors = []error{
	ErrForbidden,
	authorization.ErrForbidden,
	authorization.ErrInvalidActor,
	organizationdomain.ErrForbidden,
	organizationdomain.ErrInviteEmailMismatch,
	connectiondomain.ErrForbidden,
	inquirydomain.ErrShipperOnly,
	inquirydomain.ErrForwarderOnly,
	quotationdomain.ErrShipperOnly,
	quotationdomain.ErrForwarderOnly,
}

var notFoundErrors = []error{
	ErrNotFound,
	authdomain.ErrUserNotFound,
	organizationdomain.ErrOrganizationNotFound,
	organizationdomain.ErrMemberNotFound,
	organizationdomain.ErrInviteNotFound,
	subscriptiondomain.ErrSubscriptionNotFound,
	connectiondomain.ErrConnectionNotFound,
	inquirydomain.ErrInquiryNotFound,
	quotationdomain.ErrQuotationNotFound,
	storage.ErrNotFound,
	gorm.ErrRecordNotFound,
}

var conflictErrors = []error{
	ErrConflict,
	authdomain.ErrUserExists,
	organizationdomain.ErrAlreadyMember,
	organizationdomain.ErrAlreadyOwnsOrganization,
	organizationdomain.ErrLastOwner,
	organizationdomain.ErrInviteExists,
	organizationdomain.ErrInviteNotPending,
	subscriptiondomain.ErrQuotationLimitReached,
	connectiondomain.ErrConnectionExists,
	connectiondomain.ErrConnectionNotPending,
	inquirydomain.ErrInquiryNotEditable,
	inquirydomain.ErrInvalidTransition,
	inquirydomain.ErrAlreadyResponded,
	quotationdomain.ErrQuotationExists,
	quotationdomain.ErrQuotationNotEditable,
	quotationdomain.ErrInvalidTransition,
	quotationdomain.ErrQuotationExpired,
	quotationdomain.ErrInquiryNotOpen,
	quotationdomain.ErrInquiryExpired,
}

var rateLimitErrors = []error{
	ErrRateLimited,
	quotationdomain.ErrRateLimited,
}

// validationFields names the request field for codes that do not follow the invalid_<field> form.
var validationFields = map[string]string{
	"invalid_request":          "request",
	"no_active_organization":   "X-Org-ID",
	"weak_password":            "password",
	"type_immutable":           "type",
	"invite_expired":           "token",
	"invalid_invite_token":     "token",
	"invalid_page_token":       "page_token",
	"invalid_counterpart":      "org_id",
	"no_forwarders":            "forwarder_ids",
	"invalid_forwarder":        "forwarder_ids",
	"forwarder_not_connected":  "forwarder_ids",
	"invalid_window":           "period",
	"invalid_range":            "from",
	"unsupported_content_type": "file",
	"file_too_large":           "file",
	"empty_file":               "file",
	"invalid_key":              "file",
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if sentinel, ok := matchSentinel(err, validationErrors); ok {
		code := sentinel.Error()
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	if _, ok := matchSentinel(err, unauthorizedErrors); ok {
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	}
	if sentinel, ok := matchSentinel(err, forbiddenErrors); ok {
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: sentinelMessage(sentinel, "forbidden"),
		}
	}
	if sentinel, ok := matchSentinel(err, notFoundErrors); ok {
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: sentinelMessage(sentinel, "not found"),
		}
	}
	if sentinel, ok := matchSentinel(err, conflictErrors); ok {
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: sentinelMessage(sentinel, "conflict"),
		}
	}
	if db.IsDuplicateKeyErr(err) {
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: "conflict",
		}
	}
	if _, ok := matchSentinel(err, rateLimitErrors); ok {
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	}
	if errors.Is(err, ErrServiceUnavailable) {
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	}

	return http.StatusInternalServerError, errorPayload{
		Type:    "internal_error",
		Message: "internal server error",
	}
}

// classifyErrorForLog feeds the request logger with the same type the client sees.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	code := payload.Type
	if len(payload.Errors) > 0 {
		code = payload.Errors[0].Code
	} else if status != http.StatusInternalServerError {
		code = payload.Message
	}
	return payload.Type, code
}

func matchSentinel(err error, sentinels []error) (error, bool) {
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return sentinel, true
		}
	}
	return nil, false
}

func sentinelMessage(sentinel error, generic string) string {
	switch sentinel {
	case ErrForbidden, ErrNotFound, ErrConflict, gorm.ErrRecordNotFound:
		return generic
	}
	return sentinel.Error()
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func validationErrorField(code string) string {
	if field, ok := validationFields[code]; ok {
		return field
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "no_active_organization":
		return "select an organization first"
	case "forwarder_not_connected":
		return "forwarder is not connected"
	case "file_too_large":
		return "file is too large"
	case "unsupported_content_type":
		return "file type is not allowed"
	default:
		return "invalid value"
	}
}
