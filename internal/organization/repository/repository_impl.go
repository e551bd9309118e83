package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/freightdesk/internal/organization/domain"
	"github.com/smallbiznis/freightdesk/pkg/db"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) domain.Repository {
	return &repository{db: tx}
}

func (r *repository) CreateOrganization(ctx context.Context, org *domain.Organization) error {
	return r.db.WithContext(ctx).Create(org).Error
}

func (r *repository) GetOrganization(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := r.db.WithContext(ctx).First(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) LockOrganization(ctx context.Context, id snowflake.ID) (*domain.Organization, error) {
	var org domain.Organization
	err := db.ForUpdate(r.db.WithContext(ctx)).First(&org, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (r *repository) UpdateOrganization(ctx context.Context, id snowflake.ID, fields map[string]any) error {
	return r.db.WithContext(ctx).Model(&domain.Organization{}).Where("id = ?", id).Updates(fields).Error
}

func (r *repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&domain.Organization{}).Where("slug = ?", slug).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// LockUser takes a row lock on the user so concurrent creates for the same
// owner serialize. It reports false when the user does not exist.
func (r *repository) LockUser(ctx context.Context, userID snowflake.ID) (bool, error) {
	var row struct{ ID int64 }
	err := db.ForUpdate(r.db.WithContext(ctx)).Table("users").Select("id").Where("id = ?", userID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *repository) OwnedOrganizationTypes(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationType, error) {
	var types []domain.OrganizationType
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.type
		 FROM organization_members m
		 JOIN organizations o ON o.id = m.org_id
		 WHERE m.user_id = ? AND m.role = ?`,
		userID,
		domain.RoleOwner,
	).Scan(&types).Error
	return types, err
}

func (r *repository) ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListItem, error) {
	var items []domain.OrganizationListItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT o.id, o.name, o.type, m.role, o.created_at
		 FROM organizations o
		 JOIN organization_members m ON m.org_id = o.id
		 WHERE m.user_id = ?
		 ORDER BY o.created_at ASC`,
		userID,
	).Scan(&items).Error
	if err != nil {
		return nil, err
	}

	return items, nil
}

func (r *repository) AddMember(ctx context.Context, member *domain.OrganizationMember) error {
	return r.db.WithContext(ctx).Create(member).Error
}

func (r *repository) GetMember(ctx context.Context, orgID, userID snowflake.ID) (*domain.OrganizationMember, error) {
	var member domain.OrganizationMember
	err := r.db.WithContext(ctx).Where("org_id = ? AND user_id = ?", orgID, userID).First(&member).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &member, nil
}

func (r *repository) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.MemberListItem, error) {
	var items []domain.MemberListItem
	err := r.db.WithContext(ctx).Raw(
		`SELECT m.user_id, u.email, u.display_name, m.role, m.created_at
		 FROM organization_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.org_id = ?
		 ORDER BY m.created_at ASC`,
		orgID,
	).Scan(&items).Error
	return items, err
}

func (r *repository) ListMemberEmailsByRole(ctx context.Context, orgID snowflake.ID, roles ...string) ([]string, error) {
	var emails []string
	stmt := r.db.WithContext(ctx).
		Table("organization_members AS m").
		Select("u.email").
		Joins("JOIN users u ON u.id = m.user_id").
		Where("m.org_id = ?", orgID)
	if len(roles) > 0 {
		stmt = stmt.Where("m.role IN ?", roles)
	}
	err := stmt.Order("m.created_at ASC").Pluck("u.email", &emails).Error
	return emails, err
}

func (r *repository) UpdateMemberRole(ctx context.Context, orgID, userID snowflake.ID, role string, now time.Time) error {
	return r.db.WithContext(ctx).Exec(
		`UPDATE organization_members SET role = ?, updated_at = ? WHERE org_id = ? AND user_id = ?`,
		role,
		now,
		orgID,
		userID,
	).Error
}

func (r *repository) DeleteMember(ctx context.Context, orgID, userID snowflake.ID) error {
	return r.db.WithContext(ctx).Exec(
		`DELETE FROM organization_members WHERE org_id = ? AND user_id = ?`,
		orgID,
		userID,
	).Error
}

func (r *repository) CountOwners(ctx context.Context, orgID snowflake.ID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.OrganizationMember{}).
		Where("org_id = ? AND role = ?", orgID, domain.RoleOwner).
		Count(&count).Error
	return count, err
}

func (r *repository) CreateInvite(ctx context.Context, invite *domain.OrganizationInvite) error {
	return r.db.WithContext(ctx).Create(invite).Error
}

func (r *repository) GetInvite(ctx context.Context, inviteID snowflake.ID) (*domain.OrganizationInvite, error) {
	var invite domain.OrganizationInvite
	err := r.db.WithContext(ctx).First(&invite, "id = ?", inviteID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

// FindPendingInvite returns the pending invite for email regardless of expiry.
func (r *repository) FindPendingInvite(ctx context.Context, orgID snowflake.ID, email string, _ time.Time) (*domain.OrganizationInvite, error) {
	var invite domain.OrganizationInvite
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND email = ? AND status = ?", orgID, email, domain.InviteStatusPending).
		Order("created_at DESC").
		First(&invite).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &invite, nil
}

func (r *repository) ListPendingInvites(ctx context.Context, orgID snowflake.ID, now time.Time) ([]domain.OrganizationInvite, error) {
	var invites []domain.OrganizationInvite
	err := r.db.WithContext(ctx).
		Where("org_id = ? AND status = ? AND expires_at > ?", orgID, domain.InviteStatusPending, now).
		Order("created_at DESC").
		Find(&invites).Error
	return invites, err
}

func (r *repository) UpdateInvite(ctx context.Context, invite *domain.OrganizationInvite) error {
	return r.db.WithContext(ctx).Model(&domain.OrganizationInvite{}).
		Where("id = ?", invite.ID).
		Updates(map[string]any{
			"status":      invite.Status,
			"accepted_by": invite.AcceptedBy,
			"accepted_at": invite.AcceptedAt,
			"updated_at":  invite.UpdatedAt,
		}).Error
}
