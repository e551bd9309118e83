package domain

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
)

func ValidRole(role string) bool {
	switch role {
	case RoleOwner, RoleAdmin, RoleMember:
		return true
	default:
		return false
	}
}

type Service interface {
	Create(ctx context.Context, userID snowflake.ID, req CreateOrganizationRequest) (*Organization, error)
	Get(ctx context.Context, orgID snowflake.ID) (*Organization, error)
	Update(ctx context.Context, orgID snowflake.ID, req UpdateOrganizationRequest) (*Organization, error)
	UploadLogo(ctx context.Context, orgID snowflake.ID, upload LogoUpload) (*Organization, error)
	ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListResponseItem, error)

	GetMemberRole(ctx context.Context, orgID, userID snowflake.ID) (string, error)
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]MemberResponse, error)
	ChangeMemberRole(ctx context.Context, orgID, actorUserID, targetUserID snowflake.ID, role string) error
	RemoveMember(ctx context.Context, orgID, actorUserID, targetUserID snowflake.ID) error
	// ListRecipientEmails returns the emails of owners and admins, used for notifications.
	ListRecipientEmails(ctx context.Context, orgID snowflake.ID) ([]string, error)

	InviteMember(ctx context.Context, orgID, actorUserID snowflake.ID, req InviteRequest) (*InviteResponse, error)
	ListInvites(ctx context.Context, orgID snowflake.ID) ([]OrganizationInvite, error)
	RevokeInvite(ctx context.Context, orgID, inviteID snowflake.ID) error
	AcceptInvite(ctx context.Context, userID snowflake.ID, token string) (*OrganizationMember, error)
}

type CreateOrganizationRequest struct {
	Name           string           `json:"name"`
	Type           OrganizationType `json:"type"`
	CountryCode    string           `json:"country_code"`
	City           string           `json:"city"`
	Address        string           `json:"address"`
	ContactName    string           `json:"contact_name"`
	ContactEmail   string           `json:"contact_email"`
	ContactPhone   string           `json:"contact_phone"`
	Website        string           `json:"website"`
	TaxID          string           `json:"tax_id"`
	BillingEmail   string           `json:"billing_email"`
	BillingAddress string           `json:"billing_address"`
}

// UpdateOrganizationRequest patches profile fields; nil fields are left alone.
// The organization type cannot be changed.
type UpdateOrganizationRequest struct {
	Name           *string `json:"name"`
	CountryCode    *string `json:"country_code"`
	City           *string `json:"city"`
	Address        *string `json:"address"`
	ContactName    *string `json:"contact_name"`
	ContactEmail   *string `json:"contact_email"`
	ContactPhone   *string `json:"contact_phone"`
	Website        *string `json:"website"`
	TaxID          *string `json:"tax_id"`
	BillingEmail   *string `json:"billing_email"`
	BillingAddress *string `json:"billing_address"`
	Type           *string `json:"type"`
}

type LogoUpload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

type InviteRequest struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

type InviteResponse struct {
	Invite    OrganizationInvite `json:"invite"`
	Token     string             `json:"-"`
	AcceptURL string             `json:"-"`
}

type OrganizationListResponseItem struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Type      OrganizationType `json:"type"`
	Role      string           `json:"role"`
	CreatedAt time.Time        `json:"created_at"`
}

type MemberResponse struct {
	UserID      string    `json:"user_id"`
	Email       string    `json:"email"`
	DisplayName string    `json:"display_name"`
	Role        string    `json:"role"`
	JoinedAt    time.Time `json:"joined_at"`
}

var (
	ErrInvalidName             = errors.New("invalid_name")
	ErrInvalidType             = errors.New("invalid_type")
	ErrTypeImmutable           = errors.New("type_immutable")
	ErrInvalidCountry          = errors.New("invalid_country")
	ErrInvalidUser             = errors.New("invalid_user")
	ErrInvalidOrganization     = errors.New("invalid_organization")
	ErrInvalidEmail            = errors.New("invalid_email")
	ErrInvalidRole             = errors.New("invalid_role")
	ErrForbidden               = errors.New("forbidden")
	ErrOrganizationNotFound    = errors.New("organization_not_found")
	ErrMemberNotFound          = errors.New("member_not_found")
	ErrAlreadyMember           = errors.New("already_member")
	ErrAlreadyOwnsOrganization = errors.New("already_owns_organization")
	ErrLastOwner               = errors.New("last_owner")
	ErrInviteExists            = errors.New("invite_exists")
	ErrInviteNotFound          = errors.New("invite_not_found")
	ErrInviteNotPending        = errors.New("invite_not_pending")
	ErrInviteEmailMismatch     = errors.New("invite_email_mismatch")
	ErrInvalidInviteToken      = errors.New("invalid_invite_token")
	ErrInviteExpired           = errors.New("invite_expired")
)
