package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type OrganizationListItem struct {
	ID        snowflake.ID
	Name      string
	Type      OrganizationType
	Role      string
	CreatedAt time.Time
}

type MemberListItem struct {
	UserID      snowflake.ID
	Email       string
	DisplayName string
	Role        string
	CreatedAt   time.Time
}

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateOrganization(ctx context.Context, org *Organization) error
	GetOrganization(ctx context.Context, id snowflake.ID) (*Organization, error)
	LockOrganization(ctx context.Context, id snowflake.ID) (*Organization, error)
	UpdateOrganization(ctx context.Context, id snowflake.ID, fields map[string]any) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	LockUser(ctx context.Context, userID snowflake.ID) (bool, error)
	OwnedOrganizationTypes(ctx context.Context, userID snowflake.ID) ([]OrganizationType, error)
	ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]OrganizationListItem, error)

	AddMember(ctx context.Context, member *OrganizationMember) error
	GetMember(ctx context.Context, orgID, userID snowflake.ID) (*OrganizationMember, error)
	ListMembers(ctx context.Context, orgID snowflake.ID) ([]MemberListItem, error)
	ListMemberEmailsByRole(ctx context.Context, orgID snowflake.ID, roles ...string) ([]string, error)
	UpdateMemberRole(ctx context.Context, orgID, userID snowflake.ID, role string, now time.Time) error
	DeleteMember(ctx context.Context, orgID, userID snowflake.ID) error
	CountOwners(ctx context.Context, orgID snowflake.ID) (int64, error)

	CreateInvite(ctx context.Context, invite *OrganizationInvite) error
	GetInvite(ctx context.Context, inviteID snowflake.ID) (*OrganizationInvite, error)
	FindPendingInvite(ctx context.Context, orgID snowflake.ID, email string, now time.Time) (*OrganizationInvite, error)
	ListPendingInvites(ctx context.Context, orgID snowflake.ID, now time.Time) ([]OrganizationInvite, error)
	UpdateInvite(ctx context.Context, invite *OrganizationInvite) error
}
