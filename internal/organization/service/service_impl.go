package service

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	activitydomain "github.com/smallbiznis/freightdesk/internal/activity/domain"
	authdomain "github.com/smallbiznis/freightdesk/internal/auth/domain"
	"github.com/smallbiznis/freightdesk/internal/clock"
	"github.com/smallbiznis/freightdesk/internal/config"
	"github.com/smallbiznis/freightdesk/internal/organization/domain"
	"github.com/smallbiznis/freightdesk/internal/providers/email"
	"github.com/smallbiznis/freightdesk/internal/providers/storage"
	referencedomain "github.com/smallbiznis/freightdesk/internal/reference/domain"
	subscriptiondomain "github.com/smallbiznis/freightdesk/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Clock         clock.Clock
	Cfg           config.Config
	Repo          domain.Repository
	Reference     referencedomain.Service
	Subscriptions subscriptiondomain.Service
	Activity      activitydomain.Service
	Auth          authdomain.Service
	Email         email.Provider
	Storage       storage.Provider
}

type service struct {
	db            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	clock         clock.Clock
	repo          domain.Repository
	ref           referencedomain.Service
	subscriptions subscriptiondomain.Service
	activity      activitydomain.Service
	auth          authdomain.Service
	email         email.Provider
	storage       storage.Provider

	invites         inviteSigner
	inviteTTL       time.Duration
	inviteAcceptURL string
	maxUploadSize   int64
}

func NewService(p Params) domain.Service {
	ttl := p.Cfg.Invite.TokenTTL
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &service{
		db:              p.DB,
		log:             p.Log.Named("organization.service"),
		genID:           p.GenID,
		clock:           p.Clock,
		repo:            p.Repo,
		ref:             p.Reference,
		subscriptions:   p.Subscriptions,
		activity:        p.Activity,
		auth:            p.Auth,
		email:           p.Email,
		storage:         p.Storage,
		invites:         newInviteSigner(p.Cfg.Invite.TokenSecret),
		inviteTTL:       ttl,
		inviteAcceptURL: p.Cfg.Invite.AcceptURL,
		maxUploadSize:   p.Cfg.Storage.MaxUploadSize,
	}
}

// checkOwnership enforces that a shipper owns exactly one organization: an
// owner of a shipper org cannot own anything else, and a shipper org cannot be
// created by someone who already owns one.
func checkOwnership(ctx context.Context, repo domain.Repository, userID snowflake.ID, orgType domain.OrganizationType) error {
	found, err := repo.LockUser(ctx, userID)
	if err != nil {
		return err
	}
	if !found {
		return domain.ErrInvalidUser
	}

	owned, err := repo.OwnedOrganizationTypes(ctx, userID)
	if err != nil {
		return err
	}
	if len(owned) == 0 {
		return nil
	}
	if orgType == domain.TypeShipper {
		return domain.ErrAlreadyOwnsOrganization
	}
	for _, t := range owned {
		if t == domain.TypeShipper {
			return domain.ErrAlreadyOwnsOrganization
		}
	}
	return nil
}

func (s *service) Create(ctx context.Context, userID snowflake.ID, req domain.CreateOrganizationRequest) (*domain.Organization, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}
	orgType := domain.OrganizationType(strings.ToLower(strings.TrimSpace(string(req.Type))))
	if !orgType.Valid() {
		return nil, domain.ErrInvalidType
	}
	countryCode, err := s.validateCountry(ctx, req.CountryCode)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	org := &domain.Organization{
		ID:             s.genID.Generate(),
		Name:           name,
		Type:           orgType,
		CountryCode:    countryCode,
		City:           strings.TrimSpace(req.City),
		Address:        strings.TrimSpace(req.Address),
		ContactName:    strings.TrimSpace(req.ContactName),
		ContactEmail:   strings.TrimSpace(req.ContactEmail),
		ContactPhone:   strings.TrimSpace(req.ContactPhone),
		Website:        strings.TrimSpace(req.Website),
		TaxID:          strings.TrimSpace(req.TaxID),
		BillingEmail:   strings.TrimSpace(req.BillingEmail),
		BillingAddress: strings.TrimSpace(req.BillingAddress),
		CreatedBy:      userID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if err := checkOwnership(ctx, repo, userID, orgType); err != nil {
			return err
		}

		orgSlug, err := s.uniqueSlug(ctx, repo, name)
		if err != nil {
			return err
		}
		org.Slug = orgSlug

		if err := repo.CreateOrganization(ctx, org); err != nil {
			return err
		}

		member := &domain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     org.ID,
			UserID:    userID,
			Role:      domain.RoleOwner,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.AddMember(ctx, member); err != nil {
			return err
		}

		if _, err := s.subscriptions.CreateDefault(ctx, tx, org.ID); err != nil {
			return err
		}

		return s.activity.Record(ctx, tx, activitydomain.RecordRequest{
			OrgID:    org.ID,
			Type:     activitydomain.TypeOrganizationCreated,
			TargetID: org.ID.String(),
			Payload: map[string]any{
				"name": org.Name,
				"type": string(org.Type),
			},
		})
	})
	if err != nil {
		return nil, err
	}

	s.log.Info("organization created",
		zap.String("org_id", org.ID.String()),
		zap.String("type", string(org.Type)),
	)
	return org, nil
}

func (s *service) Get(ctx context.Context, orgID snowflake.ID) (*domain.Organization, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	org, err := s.repo.GetOrganization(ctx, orgID)
	if err != nil {
		return nil, err
	}
	if org == nil {
		return nil, domain.ErrOrganizationNotFound
	}
	return org, nil
}

func (s *service) Update(ctx context.Context, orgID snowflake.ID, req domain.UpdateOrganizationRequest) (*domain.Organization, error) {
	org, err := s.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}

	if req.Type != nil && domain.OrganizationType(strings.ToLower(strings.TrimSpace(*req.Type))) != org.Type {
		return nil, domain.ErrTypeImmutable
	}

	fields := map[string]any{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, domain.ErrInvalidName
		}
		fields["name"] = name
	}
	if req.CountryCode != nil {
		code, err := s.validateCountry(ctx, *req.CountryCode)
		if err != nil {
			return nil, err
		}
		fields["country_code"] = code
	}

	optional := map[string]*string{
		"city":            req.City,
		"address":         req.Address,
		"contact_name":    req.ContactName,
		"contact_email":   req.ContactEmail,
		"contact_phone":   req.ContactPhone,
		"website":         req.Website,
		"tax_id":          req.TaxID,
		"billing_email":   req.BillingEmail,
		"billing_address": req.BillingAddress,
	}
	for column, value := range optional {
		if value != nil {
			fields[column] = strings.TrimSpace(*value)
		}
	}

	if len(fields) == 0 {
		return org, nil
	}
	fields["updated_at"] = s.clock.Now().UTC()

	if err := s.repo.UpdateOrganization(ctx, orgID, fields); err != nil {
		return nil, err
	}
	return s.Get(ctx, orgID)
}

func (s *service) UploadLogo(ctx context.Context, orgID snowflake.ID, upload domain.LogoUpload) (*domain.Organization, error) {
	org, err := s.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}

	file := storage.Upload{
		Filename:    upload.Filename,
		ContentType: upload.ContentType,
		Size:        upload.Size,
		Body:        upload.Body,
	}
	contentType, ext, err := file.Validate(storage.LogoContentTypes, s.maxUploadSize)
	if err != nil {
		return nil, err
	}

	obj, err := s.storage.Put(ctx, storage.LogoKey(org.ID.String(), ext), contentType, file.Body, file.Size)
	if err != nil {
		return nil, err
	}

	err = s.repo.UpdateOrganization(ctx, orgID, map[string]any{
		"logo_url":   obj.URL,
		"updated_at": s.clock.Now().UTC(),
	})
	if err != nil {
		if delErr := s.storage.Delete(ctx, obj.Key); delErr != nil {
			s.log.Warn("failed to remove orphaned logo", zap.String("key", obj.Key), zap.Error(delErr))
		}
		return nil, err
	}

	return s.Get(ctx, orgID)
}

func (s *service) ListOrganizationsByUser(ctx context.Context, userID snowflake.ID) ([]domain.OrganizationListResponseItem, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	items, err := s.repo.ListOrganizationsByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.OrganizationListResponseItem, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.OrganizationListResponseItem{
			ID:        item.ID.String(),
			Name:      item.Name,
			Type:      item.Type,
			Role:      item.Role,
			CreatedAt: item.CreatedAt,
		})
	}

	return resp, nil
}

func (s *service) GetMemberRole(ctx context.Context, orgID, userID snowflake.ID) (string, error) {
	if orgID == 0 {
		return "", domain.ErrInvalidOrganization
	}
	if userID == 0 {
		return "", domain.ErrInvalidUser
	}
	member, err := s.repo.GetMember(ctx, orgID, userID)
	if err != nil {
		return "", err
	}
	if member == nil {
		return "", domain.ErrMemberNotFound
	}
	return member.Role, nil
}

func (s *service) ListMembers(ctx context.Context, orgID snowflake.ID) ([]domain.MemberResponse, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	items, err := s.repo.ListMembers(ctx, orgID)
	if err != nil {
		return nil, err
	}

	resp := make([]domain.MemberResponse, 0, len(items))
	for _, item := range items {
		resp = append(resp, domain.MemberResponse{
			UserID:      item.UserID.String(),
			Email:       item.Email,
			DisplayName: item.DisplayName,
			Role:        item.Role,
			JoinedAt:    item.CreatedAt,
		})
	}
	return resp, nil
}

func (s *service) ChangeMemberRole(ctx context.Context, orgID, actorUserID, targetUserID snowflake.ID, role string) error {
	role = strings.ToLower(strings.TrimSpace(role))
	if !domain.ValidRole(role) {
		return domain.ErrInvalidRole
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		org, err := repo.LockOrganization(ctx, orgID)
		if err != nil {
			return err
		}
		if org == nil {
			return domain.ErrOrganizationNotFound
		}

		actor, target, err := s.loadActorAndTarget(ctx, repo, orgID, actorUserID, targetUserID)
		if err != nil {
			return err
		}
		if actor.Role != domain.RoleOwner && (target.Role == domain.RoleOwner || role == domain.RoleOwner) {
			return domain.ErrForbidden
		}
		if target.Role == role {
			return nil
		}
		if target.Role == domain.RoleOwner {
			if err := ensureAnotherOwner(ctx, repo, orgID); err != nil {
				return err
			}
		}

		if err := repo.UpdateMemberRole(ctx, orgID, targetUserID, role, s.clock.Now().UTC()); err != nil {
			return err
		}

		return s.activity.Record(ctx, tx, activitydomain.RecordRequest{
			OrgID:      orgID,
			Type:       activitydomain.TypeMemberRoleChanged,
			TargetType: "user",
			TargetID:   targetUserID.String(),
			Payload: map[string]any{
				"from": target.Role,
				"to":   role,
			},
		})
	})
}

func (s *service) RemoveMember(ctx context.Context, orgID, actorUserID, targetUserID snowflake.ID) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		org, err := repo.LockOrganization(ctx, orgID)
		if err != nil {
			return err
		}
		if org == nil {
			return domain.ErrOrganizationNotFound
		}

		actor, target, err := s.loadActorAndTarget(ctx, repo, orgID, actorUserID, targetUserID)
		if err != nil {
			return err
		}
		// Members may leave on their own; removing others needs admin rights.
		if actorUserID != targetUserID {
			if actor.Role == domain.RoleMember {
				return domain.ErrForbidden
			}
			if actor.Role != domain.RoleOwner && target.Role == domain.RoleOwner {
				return domain.ErrForbidden
			}
		}
		if target.Role == domain.RoleOwner {
			if err := ensureAnotherOwner(ctx, repo, orgID); err != nil {
				return err
			}
		}

		if err := repo.DeleteMember(ctx, orgID, targetUserID); err != nil {
			return err
		}

		return s.activity.Record(ctx, tx, activitydomain.RecordRequest{
			OrgID:      orgID,
			Type:       activitydomain.TypeMemberRemoved,
			TargetType: "user",
			TargetID:   targetUserID.String(),
			Payload: map[string]any{
				"role": target.Role,
			},
		})
	})
}

func (s *service) ListRecipientEmails(ctx context.Context, orgID snowflake.ID) ([]string, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	return s.repo.ListMemberEmailsByRole(ctx, orgID, domain.RoleOwner, domain.RoleAdmin)
}

func (s *service) InviteMember(ctx context.Context, orgID, actorUserID snowflake.ID, req domain.InviteRequest) (*domain.InviteResponse, error) {
	address, err := normalizeEmail(req.Email)
	if err != nil {
		return nil, domain.ErrInvalidEmail
	}
	role := strings.ToLower(strings.TrimSpace(req.Role))
	if role == "" {
		role = domain.RoleMember
	}
	if !domain.ValidRole(role) {
		return nil, domain.ErrInvalidRole
	}

	org, err := s.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}

	actor, err := s.repo.GetMember(ctx, orgID, actorUserID)
	if err != nil {
		return nil, err
	}
	if actor == nil || actor.Role == domain.RoleMember {
		return nil, domain.ErrForbidden
	}
	if role == domain.RoleOwner && actor.Role != domain.RoleOwner {
		return nil, domain.ErrForbidden
	}

	existing, err := s.auth.FindUserByEmail(ctx, address)
	if err != nil && !errors.Is(err, authdomain.ErrUserNotFound) {
		return nil, err
	}
	if existing != nil {
		member, err := s.repo.GetMember(ctx, orgID, existing.ID)
		if err != nil {
			return nil, err
		}
		if member != nil {
			return nil, domain.ErrAlreadyMember
		}
	}

	now := s.clock.Now().UTC()
	invite := &domain.OrganizationInvite{
		ID:        s.genID.Generate(),
		OrgID:     orgID,
		Email:     address,
		Role:      role,
		Status:    domain.InviteStatusPending,
		InvitedBy: actorUserID,
		ExpiresAt: now.Add(s.inviteTTL),
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.LockOrganization(ctx, orgID); err != nil {
			return err
		}

		pending, err := repo.FindPendingInvite(ctx, orgID, address, now)
		if err != nil {
			return err
		}
		if pending != nil {
			if pending.ExpiresAt.After(now) {
				return domain.ErrInviteExists
			}
			pending.Status = domain.InviteStatusRevoked
			pending.UpdatedAt = now
			if err := repo.UpdateInvite(ctx, pending); err != nil {
				return err
			}
		}

		if err := repo.CreateInvite(ctx, invite); err != nil {
			return err
		}

		return s.activity.Record(ctx, tx, activitydomain.RecordRequest{
			OrgID:      orgID,
			Type:       activitydomain.TypeMemberInvited,
			TargetType: "invite",
			TargetID:   invite.ID.String(),
			Payload: map[string]any{
				"email": address,
				"role":  role,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	token, err := s.invites.Sign(*invite)
	if err != nil {
		return nil, err
	}
	acceptURL := s.acceptURL(token)

	inviterName := ""
	if inviter, err := s.auth.GetUser(ctx, actorUserID); err == nil && inviter != nil {
		inviterName = inviter.DisplayName
	}
	s.sendEmail(ctx, []string{address}, email.TemplateMemberInvite, map[string]any{
		"org_name":     org.Name,
		"inviter_name": inviterName,
		"role":         role,
		"accept_url":   acceptURL,
		"expires_at":   invite.ExpiresAt.Format(time.RFC1123),
	})

	return &domain.InviteResponse{
		Invite:    *invite,
		Token:     token,
		AcceptURL: acceptURL,
	}, nil
}

func (s *service) ListInvites(ctx context.Context, orgID snowflake.ID) ([]domain.OrganizationInvite, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	return s.repo.ListPendingInvites(ctx, orgID, s.clock.Now().UTC())
}

func (s *service) RevokeInvite(ctx context.Context, orgID, inviteID snowflake.ID) error {
	invite, err := s.repo.GetInvite(ctx, inviteID)
	if err != nil {
		return err
	}
	if invite == nil || invite.OrgID != orgID {
		return domain.ErrInviteNotFound
	}
	if invite.Status != domain.InviteStatusPending {
		return domain.ErrInviteNotPending
	}

	invite.Status = domain.InviteStatusRevoked
	invite.UpdatedAt = s.clock.Now().UTC()
	return s.repo.UpdateInvite(ctx, invite)
}

func (s *service) AcceptInvite(ctx context.Context, userID snowflake.ID, token string) (*domain.OrganizationMember, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidUser
	}

	now := s.clock.Now().UTC()
	inviteID, err := s.invites.Parse(strings.TrimSpace(token), now)
	if err != nil {
		return nil, err
	}

	user, err := s.auth.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, authdomain.ErrUserNotFound) {
			return nil, domain.ErrInvalidUser
		}
		return nil, err
	}

	var member *domain.OrganizationMember
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		invite, err := repo.GetInvite(ctx, inviteID)
		if err != nil {
			return err
		}
		if invite == nil {
			return domain.ErrInviteNotFound
		}
		if _, err := repo.LockOrganization(ctx, invite.OrgID); err != nil {
			return err
		}
		if invite.Status != domain.InviteStatusPending {
			return domain.ErrInviteNotPending
		}
		if !invite.ExpiresAt.After(now) {
			return domain.ErrInviteExpired
		}
		if !strings.EqualFold(invite.Email, user.Email) {
			return domain.ErrInviteEmailMismatch
		}

		existing, err := repo.GetMember(ctx, invite.OrgID, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return domain.ErrAlreadyMember
		}

		member = &domain.OrganizationMember{
			ID:        s.genID.Generate(),
			OrgID:     invite.OrgID,
			UserID:    userID,
			Role:      invite.Role,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := repo.AddMember(ctx, member); err != nil {
			return err
		}

		invite.Status = domain.InviteStatusAccepted
		invite.AcceptedBy = &userID
		invite.AcceptedAt = &now
		invite.UpdatedAt = now
		if err := repo.UpdateInvite(ctx, invite); err != nil {
			return err
		}

		return s.activity.Record(ctx, tx, activitydomain.RecordRequest{
			OrgID:      invite.OrgID,
			Type:       activitydomain.TypeMemberJoined,
			TargetType: "user",
			TargetID:   userID.String(),
			Payload: map[string]any{
				"invite_id": invite.ID.String(),
				"role":      invite.Role,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	return member, nil
}

func (s *service) loadActorAndTarget(ctx context.Context, repo domain.Repository, orgID, actorUserID, targetUserID snowflake.ID) (*domain.OrganizationMember, *domain.OrganizationMember, error) {
	actor, err := repo.GetMember(ctx, orgID, actorUserID)
	if err != nil {
		return nil, nil, err
	}
	if actor == nil {
		return nil, nil, domain.ErrForbidden
	}
	target, err := repo.GetMember(ctx, orgID, targetUserID)
	if err != nil {
		return nil, nil, err
	}
	if target == nil {
		return nil, nil, domain.ErrMemberNotFound
	}
	return actor, target, nil
}

func ensureAnotherOwner(ctx context.Context, repo domain.Repository, orgID snowflake.ID) error {
	owners, err := repo.CountOwners(ctx, orgID)
	if err != nil {
		return err
	}
	if owners <= 1 {
		return domain.ErrLastOwner
	}
	return nil
}

func (s *service) validateCountry(ctx context.Context, raw string) (string, error) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if len(code) != 2 {
		return "", domain.ErrInvalidCountry
	}
	ok, err := s.ref.HasCountry(ctx, code)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", domain.ErrInvalidCountry
	}
	return code, nil
}

func (s *service) uniqueSlug(ctx context.Context, repo domain.Repository, name string) (string, error) {
	base := slug.Make(name)
	if base == "" {
		base = "org"
	}
	exists, err := repo.SlugExists(ctx, base)
	if err != nil {
		return "", err
	}
	if !exists {
		return base, nil
	}
	return fmt.Sprintf("%s-%s", base, s.genID.Generate().Base36()), nil
}

func (s *service) acceptURL(token string) string {
	base := strings.TrimSpace(s.inviteAcceptURL)
	if base == "" {
		return token
	}
	u, err := url.Parse(base)
	if err != nil {
		return base + "?token=" + url.QueryEscape(token)
	}
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// sendEmail runs after commit; delivery failures never roll back the change.
func (s *service) sendEmail(ctx context.Context, to []string, template string, data map[string]any) {
	if s.email == nil || len(to) == 0 {
		return
	}
	if err := s.email.SendTemplate(ctx, to, template, data); err != nil {
		s.log.Warn("failed to send email",
			zap.String("template", template),
			zap.Int("recipients", len(to)),
			zap.Error(err),
		)
	}
}

func normalizeEmail(raw string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	return strings.ToLower(strings.TrimSpace(addr.Address)), nil
}
