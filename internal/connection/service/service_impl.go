package service

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/freightdesk/internal/activity/domain"
	"github.com/smallbiznis/freightdesk/internal/clock"
	"github.com/smallbiznis/freightdesk/internal/config"
	"github.com/smallbiznis/freightdesk/internal/connection/domain"
	orgdomain "github.com/smallbiznis/freightdesk/internal/organization/domain"
	"github.com/smallbiznis/freightdesk/internal/providers/email"
	"github.com/smallbiznis/freightdesk/pkg/db"
	"github.com/smallbiznis/freightdesk/pkg/db/option"
	"github.com/smallbiznis/freightdesk/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Cfg      config.Config
	Orgs     orgdomain.Service
	Activity activitydomain.Service
	Email    email.Provider
}

type service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	store    repository.Repository[domain.Connection]
	orgs     orgdomain.Service
	activity activitydomain.Service
	email    email.Provider
	appURL   string
}

func NewService(p Params) domain.Service {
	return &service{
		db:       p.DB,
		log:      p.Log.Named("connection.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		store:    repository.ProvideStore[domain.Connection](p.DB),
		orgs:     p.Orgs,
		activity: p.Activity,
		email:    p.Email,
		appURL:   strings.TrimRight(p.Cfg.AppURL, "/"),
	}
}

func (s *service) Invite(ctx context.Context, orgID, actorUserID snowflake.ID, req domain.InviteRequest) (*domain.Connection, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	counterpartID, err := snowflake.ParseString(strings.TrimSpace(req.OrgID))
	if err != nil || counterpartID == 0 || counterpartID == orgID {
		return nil, domain.ErrInvalidCounterpart
	}

	inviter, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		return nil, err
	}
	counterpart, err := s.orgs.Get(ctx, counterpartID)
	if err != nil {
		if errors.Is(err, orgdomain.ErrOrganizationNotFound) {
			return nil, domain.ErrInvalidCounterpart
		}
		return nil, err
	}
	if inviter.Type == counterpart.Type {
		return nil, domain.ErrInvalidCounterpart
	}

	shipperID, forwarderID := inviter.ID, counterpart.ID
	if inviter.Type == orgdomain.TypeForwarder {
		shipperID, forwarderID = counterpart.ID, inviter.ID
	}

	now := s.clock.Now().UTC()
	var conn *domain.Connection
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.store.WithTrx(tx)
		existing, err := store.FindOne(ctx,
			&domain.Connection{ShipperOrgID: shipperID, ForwarderOrgID: forwarderID},
			option.QueryOptionFunc(db.ForUpdate),
		)
		if err != nil {
			return err
		}

		switch {
		case existing == nil:
			conn = &domain.Connection{
				ID:             s.genID.Generate(),
				ShipperOrgID:   shipperID,
				ForwarderOrgID: forwarderID,
				Status:         domain.StatusPending,
				InvitedByOrgID: orgID,
				InvitedBy:      actorUserID,
				CreatedAt:      now,
				UpdatedAt:      now,
			}
			if err := store.Create(ctx, conn); err != nil {
				if db.IsDuplicateKeyErr(err) {
					return domain.ErrConnectionExists
				}
				return err
			}
		case existing.Status == domain.StatusRemoved:
			existing.Status = domain.StatusPending
			existing.InvitedByOrgID = orgID
			existing.InvitedBy = actorUserID
			existing.AcceptedBy = nil
			existing.AcceptedAt = nil
			existing.RemovedAt = nil
			existing.UpdatedAt = now
			err := store.Update(ctx, int64(existing.ID), map[string]any{
				"status":            existing.Status,
				"invited_by_org_id": existing.InvitedByOrgID,
				"invited_by":        existing.InvitedBy,
				"accepted_by":       nil,
				"accepted_at":       nil,
				"removed_at":        nil,
				"updated_at":        now,
			})
			if err != nil {
				return err
			}
			conn = existing
		default:
			return domain.ErrConnectionExists
		}

		return s.recordBoth(ctx, tx, conn, activitydomain.TypeConnectionRequested, nil)
	})
	if err != nil {
		return nil, err
	}

	recipients, err := s.orgs.ListRecipientEmails(ctx, counterpart.ID)
	if err != nil {
		s.log.Warn("failed to load connection invite recipients", zap.String("org_id", counterpart.ID.String()), zap.Error(err))
	}
	s.sendEmail(ctx, recipients, email.TemplateConnectionInvite, map[string]any{
		"org_name":        inviter.Name,
		"target_org_name": counterpart.Name,
		"inviter_type":    string(inviter.Type),
		"review_url":      s.appURL + "/connections",
	})

	return conn, nil
}

func (s *service) Accept(ctx context.Context, orgID, actorUserID, connectionID snowflake.ID) (*domain.Connection, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	now := s.clock.Now().UTC()
	var conn *domain.Connection
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.store.WithTrx(tx)
		var err error
		conn, err = store.FindOne(ctx, &domain.Connection{ID: connectionID}, option.QueryOptionFunc(db.ForUpdate))
		if err != nil {
			return err
		}
		if conn == nil || !conn.Involves(orgID) {
			return domain.ErrConnectionNotFound
		}
		if conn.Status != domain.StatusPending {
			return domain.ErrConnectionNotPending
		}
		if conn.InvitedByOrgID == orgID {
			return domain.ErrForbidden
		}

		conn.Status = domain.StatusConnected
		conn.AcceptedBy = &actorUserID
		conn.AcceptedAt = &now
		conn.UpdatedAt = now
		err = store.Update(ctx, int64(conn.ID), map[string]any{
			"status":      conn.Status,
			"accepted_by": actorUserID,
			"accepted_at": now,
			"updated_at":  now,
		})
		if err != nil {
			return err
		}

		return s.recordBoth(ctx, tx, conn, activitydomain.TypeConnectionAccepted, nil)
	})
	if err != nil {
		return nil, err
	}

	s.notifyAccepted(ctx, conn, orgID)
	return conn, nil
}

func (s *service) Remove(ctx context.Context, orgID, connectionID snowflake.ID) error {
	if orgID == 0 {
		return domain.ErrInvalidOrganization
	}

	now := s.clock.Now().UTC()
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		store := s.store.WithTrx(tx)
		conn, err := store.FindOne(ctx, &domain.Connection{ID: connectionID}, option.QueryOptionFunc(db.ForUpdate))
		if err != nil {
			return err
		}
		if conn == nil || !conn.Involves(orgID) || conn.Status == domain.StatusRemoved {
			return domain.ErrConnectionNotFound
		}

		previous := conn.Status
		conn.Status = domain.StatusRemoved
		conn.RemovedAt = &now
		err = store.Update(ctx, int64(conn.ID), map[string]any{
			"status":     domain.StatusRemoved,
			"removed_at": now,
			"updated_at": now,
		})
		if err != nil {
			return err
		}

		return s.recordBoth(ctx, tx, conn, activitydomain.TypeConnectionRemoved, map[string]any{
			"previous_status": string(previous),
			"removed_by_org":  orgID.String(),
		})
	})
}

func (s *service) List(ctx context.Context, orgID snowflake.ID, status string) ([]domain.View, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}

	opts := []option.QueryOption{
		option.WithWhere("shipper_org_id = ? OR forwarder_org_id = ?", orgID, orgID),
		option.WithOrder("created_at", true),
	}
	status = strings.ToLower(strings.TrimSpace(status))
	if status != "" {
		if !domain.Status(status).Valid() {
			return nil, domain.ErrInvalidStatus
		}
		opts = append(opts, option.WithStatusIn(status))
	} else {
		opts = append(opts, option.WithStatusIn(string(domain.StatusPending), string(domain.StatusConnected)))
	}

	items, err := s.store.Find(ctx, &domain.Connection{}, opts...)
	if err != nil {
		return nil, err
	}

	ids := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.Counterpart(orgID))
	}
	var orgs []orgdomain.Organization
	if len(ids) > 0 {
		if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&orgs).Error; err != nil {
			return nil, err
		}
	}
	byID := make(map[snowflake.ID]orgdomain.Organization, len(orgs))
	for _, org := range orgs {
		byID[org.ID] = org
	}

	views := make([]domain.View, 0, len(items))
	for _, item := range items {
		counterpart := byID[item.Counterpart(orgID)]
		views = append(views, domain.View{
			ID:              item.ID.String(),
			Status:          item.Status,
			CounterpartID:   item.Counterpart(orgID).String(),
			CounterpartName: counterpart.Name,
			CounterpartType: string(counterpart.Type),
			InvitedByUs:     item.InvitedByOrgID == orgID,
			AcceptedAt:      item.AcceptedAt,
			CreatedAt:       item.CreatedAt,
		})
	}
	return views, nil
}

func (s *service) IsConnected(ctx context.Context, shipperOrgID, forwarderOrgID snowflake.ID) (bool, error) {
	if shipperOrgID == 0 || forwarderOrgID == 0 {
		return false, nil
	}
	count, err := s.store.Count(ctx, &domain.Connection{
		ShipperOrgID:   shipperOrgID,
		ForwarderOrgID: forwarderOrgID,
		Status:         domain.StatusConnected,
	})
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// recordBoth writes the event into the feed of both parties.
func (s *service) recordBoth(ctx context.Context, tx *gorm.DB, conn *domain.Connection, eventType string, extra map[string]any) error {
	for _, orgID := range []snowflake.ID{conn.ShipperOrgID, conn.ForwarderOrgID} {
		payload := map[string]any{
			"counterpart_org_id": conn.Counterpart(orgID).String(),
			"status":             string(conn.Status),
		}
		for k, v := range extra {
			payload[k] = v
		}
		err := s.activity.Record(ctx, tx, activitydomain.RecordRequest{
			OrgID:      orgID,
			Type:       eventType,
			TargetType: "connection",
			TargetID:   conn.ID.String(),
			Payload:    payload,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *service) notifyAccepted(ctx context.Context, conn *domain.Connection, acceptingOrgID snowflake.ID) {
	accepting, err := s.orgs.Get(ctx, acceptingOrgID)
	if err != nil {
		s.log.Warn("failed to load accepting organization", zap.Error(err))
		return
	}
	inviter, err := s.orgs.Get(ctx, conn.InvitedByOrgID)
	if err != nil {
		s.log.Warn("failed to load inviting organization", zap.Error(err))
		return
	}
	recipients, err := s.orgs.ListRecipientEmails(ctx, inviter.ID)
	if err != nil {
		s.log.Warn("failed to load connection recipients", zap.String("org_id", inviter.ID.String()), zap.Error(err))
		return
	}
	s.sendEmail(ctx, recipients, email.TemplateConnectionAccepted, map[string]any{
		"org_name":        accepting.Name,
		"target_org_name": inviter.Name,
		"review_url":      s.appURL + "/connections",
	})
}

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
