// Package domain contains persistence models for the org service.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type OrganizationType string

const (
	TypeShipper   OrganizationType = "shipper"
	TypeForwarder OrganizationType = "forwarder"
)

func (t OrganizationType) Valid() bool {
	return t == TypeShipper || t == TypeForwarder
}

// Organization is a tenant: a shipper that owns cargo or a forwarder that quotes on it.
type Organization struct {
	ID             snowflake.ID     `gorm:"primaryKey" json:"id"`
	Name           string           `gorm:"type:text;not null" json:"name"`
	Slug           string           `gorm:"type:text;not null;uniqueIndex:ux_organizations_slug" json:"slug"`
	Type           OrganizationType `gorm:"type:text;not null;index" json:"type"`
	CountryCode    string           `gorm:"column:country_code;type:char(2);not null" json:"country_code"`
	City           string           `gorm:"type:text" json:"city"`
	Address        string           `gorm:"type:text" json:"address"`
	ContactName    string           `gorm:"column:contact_name;type:text" json:"contact_name"`
	ContactEmail   string           `gorm:"column:contact_email;type:text" json:"contact_email"`
	ContactPhone   string           `gorm:"column:contact_phone;type:text" json:"contact_phone"`
	Website        string           `gorm:"type:text" json:"website"`
	TaxID          string           `gorm:"column:tax_id;type:text" json:"tax_id"`
	BillingEmail   string           `gorm:"column:billing_email;type:text" json:"billing_email"`
	BillingAddress string           `gorm:"column:billing_address;type:text" json:"billing_address"`
	LogoURL        *string          `gorm:"column:logo_url;type:text" json:"logo_url,omitempty"`
	CreatedBy      snowflake.ID     `gorm:"column:created_by;not null" json:"created_by"`
	CreatedAt      time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time        `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Organization) TableName() string { return "organizations" }

// OrganizationMember represents membership of a user in an organization.
type OrganizationMember struct {
	ID        snowflake.ID `gorm:"primaryKey" json:"id"`
	OrgID     snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_user,priority:1" json:"org_id"`
	UserID    snowflake.ID `gorm:"not null;index;uniqueIndex:ux_org_user,priority:2" json:"user_id"`
	Role      string       `gorm:"type:text;not null" json:"role"`
	CreatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (OrganizationMember) TableName() string { return "organization_members" }

type InviteStatus string

const (
	InviteStatusPending  InviteStatus = "pending"
	InviteStatusAccepted InviteStatus = "accepted"
	InviteStatusRevoked  InviteStatus = "revoked"
)

// OrganizationInvite tracks an invitation sent to an email address.
type OrganizationInvite struct {
	ID         snowflake.ID  `gorm:"primaryKey" json:"id"`
	OrgID      snowflake.ID  `gorm:"not null;index" json:"org_id"`
	Email      string        `gorm:"type:text;not null;index" json:"email"`
	Role       string        `gorm:"type:text;not null" json:"role"`
	Status     InviteStatus  `gorm:"type:text;not null" json:"status"`
	InvitedBy  snowflake.ID  `gorm:"column:invited_by;not null" json:"invited_by"`
	AcceptedBy *snowflake.ID `gorm:"column:accepted_by" json:"accepted_by,omitempty"`
	ExpiresAt  time.Time     `gorm:"column:expires_at;not null" json:"expires_at"`
	AcceptedAt *time.Time    `gorm:"column:accepted_at" json:"accepted_at,omitempty"`
	CreatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt  time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (OrganizationInvite) TableName() string { return "organization_invites" }
