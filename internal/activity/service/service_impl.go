package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/freightdesk/internal/activity/domain"
	"github.com/smallbiznis/freightdesk/internal/auditcontext"
	"github.com/smallbiznis/freightdesk/internal/clock"
	eventsdomain "github.com/smallbiznis/freightdesk/internal/events/domain"
	"github.com/smallbiznis/freightdesk/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Clock     clock.Clock
	Repo      domain.Repository
	Publisher eventsdomain.Publisher `optional:"true"`
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	genID     *snowflake.Node
	clock     clock.Clock
	repo      domain.Repository
	publisher eventsdomain.Publisher
}

func NewService(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("activity.service"),
		genID:     p.GenID,
		clock:     p.Clock,
		repo:      p.Repo,
		publisher: p.Publisher,
	}
}

func (s *Service) Record(ctx context.Context, tx *gorm.DB, req domain.RecordRequest) error {
	if req.OrgID == 0 {
		return domain.ErrInvalidOrganization
	}
	eventType := strings.TrimSpace(req.Type)
	if eventType == "" {
		return domain.ErrInvalidType
	}
	targetType := strings.TrimSpace(req.TargetType)
	if targetType == "" {
		targetType = strings.SplitN(eventType, ".", 2)[0]
	}

	actorType, actorID := s.resolveActor(ctx)

	payload := datatypes.JSONMap{}
	for key, value := range req.Payload {
		if key == "" {
			continue
		}
		payload[key] = value
	}
	if requestID := auditcontext.RequestIDFromContext(ctx); requestID != "" {
		payload["request_id"] = requestID
	}

	entry := domain.Event{
		ID:         s.genID.Generate(),
		OrgID:      req.OrgID,
		Type:       eventType,
		ActorType:  actorType,
		ActorID:    actorID,
		TargetType: targetType,
		TargetID:   normalize(req.TargetID),
		Payload:    payload,
		CreatedAt:  s.clock.Now().UTC(),
	}

	conn := tx
	if conn == nil {
		conn = s.db
	}
	if err := s.repo.Insert(ctx, conn, &entry); err != nil {
		s.log.Warn("failed to write activity event", zap.String("type", eventType), zap.Error(err))
		return err
	}

	if s.publisher == nil {
		return nil
	}
	return s.publisher.Enqueue(ctx, conn, eventType, req.TargetID, map[string]any{
		"activity_id": entry.ID.String(),
		"org_id":      entry.OrgID.String(),
		"actor_type":  entry.ActorType,
		"actor_id":    entry.ActorID,
		"target_type": entry.TargetType,
		"target_id":   entry.TargetID,
		"payload":     map[string]any(payload),
		"created_at":  entry.CreatedAt,
	})
}

func (s *Service) List(ctx context.Context, orgID snowflake.ID, req domain.ListRequest) (domain.ListResponse, error) {
	if orgID == 0 {
		return domain.ListResponse{}, domain.ErrInvalidOrganization
	}

	var cursor *domain.Cursor
	if token := strings.TrimSpace(req.PageToken); token != "" {
		decoded, err := pagination.DecodeCursor(token)
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		createdAt, err := decoded.CreatedAtTime()
		if err != nil {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		id, err := snowflake.ParseString(strings.TrimSpace(decoded.ID))
		if err != nil || id == 0 {
			return domain.ListResponse{}, domain.ErrInvalidPageToken
		}
		cursor = &domain.Cursor{ID: id, CreatedAt: createdAt}
	}

	pageSize := req.Limit()
	items, err := s.repo.List(ctx, s.db, domain.ListFilter{
		OrgID:  orgID,
		Type:   req.Type,
		Cursor: cursor,
		Limit:  pageSize,
	})
	if err != nil {
		return domain.ListResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, pageSize, func(item *domain.Event) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if len(items) > pageSize {
		items = items[:pageSize]
	}

	events := make([]domain.Event, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		events = append(events, *item)
	}

	return domain.ListResponse{PageInfo: *pageInfo, Events: events}, nil
}

func (s *Service) resolveActor(ctx context.Context) (string, *string) {
	actorType, actorID := auditcontext.ActorFromContext(ctx)
	if actorType == "" {
		actorType = auditcontext.ActorTypeSystem
	}
	return actorType, normalize(actorID)
}

func normalize(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
