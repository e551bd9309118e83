package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/freightdesk/internal/quotation/domain"
	"github.com/smallbiznis/freightdesk/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, q *domain.Quotation) error {
	return conn.WithContext(ctx).Create(q).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Quotation, error) {
	return first(conn.WithContext(ctx).Where("id = ?", id))
}

func (r *repo) Lock(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Quotation, error) {
	return first(db.ForUpdate(conn.WithContext(ctx)).Where("id = ?", id))
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, id snowflake.ID, fields map[string]any) error {
	return conn.WithContext(ctx).Model(&domain.Quotation{}).Where("id = ?", id).Updates(fields).Error
}

func (r *repo) FindBlocking(ctx context.Context, conn *gorm.DB, inquiryID, forwarderOrgID snowflake.ID) (*domain.Quotation, error) {
	return first(conn.WithContext(ctx).
		Where("inquiry_id = ? AND forwarder_org_id = ? AND status <> ?", inquiryID, forwarderOrgID, domain.StatusRejected).
		Order("created_at desc"))
}

func (r *repo) ListByInquiry(ctx context.Context, conn *gorm.DB, inquiryID snowflake.ID, statuses []domain.Status, forwarderOrgID *snowflake.ID) ([]domain.Quotation, error) {
	stmt := conn.WithContext(ctx).Where("inquiry_id = ?", inquiryID)
	if len(statuses) > 0 {
		stmt = stmt.Where("status IN ?", statuses)
	}
	if forwarderOrgID != nil {
		stmt = stmt.Where("forwarder_org_id = ?", *forwarderOrgID)
	}
	var items []domain.Quotation
	err := stmt.Order("total_price asc, created_at asc").Find(&items).Error
	return items, err
}

func (r *repo) ListByForwarder(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]*domain.Quotation, error) {
	stmt := conn.WithContext(ctx).Model(&domain.Quotation{}).
		Where("forwarder_org_id = ?", filter.ForwarderOrgID)
	if filter.Status != "" {
		stmt = stmt.Where("status = ?", filter.Status)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("(created_at < ?) OR (created_at = ? AND id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}
	stmt = stmt.Order("created_at desc").Order("id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var items []*domain.Quotation
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) RejectSubmittedSiblings(ctx context.Context, conn *gorm.DB, inquiryID, keepID snowflake.ID, now time.Time) ([]domain.Quotation, error) {
	var siblings []domain.Quotation
	err := conn.WithContext(ctx).
		Where("inquiry_id = ? AND id <> ? AND status = ?", inquiryID, keepID, domain.StatusSubmitted).
		Find(&siblings).Error
	if err != nil || len(siblings) == 0 {
		return nil, err
	}

	ids := make([]snowflake.ID, 0, len(siblings))
	for _, q := range siblings {
		ids = append(ids, q.ID)
	}
	err = conn.WithContext(ctx).Model(&domain.Quotation{}).
		Where("id IN ? AND status = ?", ids, domain.StatusSubmitted).
		Updates(map[string]any{
			"status":     domain.StatusRejected,
			"decided_at": now,
			"updated_at": now,
		}).Error
	if err != nil {
		return nil, err
	}
	return siblings, nil
}

func (r *repo) CountNotRejected(ctx context.Context, conn *gorm.DB, inquiryID snowflake.ID) (int64, error) {
	var count int64
	err := conn.WithContext(ctx).Model(&domain.Quotation{}).
		Where("inquiry_id = ? AND status <> ?", inquiryID, domain.StatusRejected).
		Count(&count).Error
	return count, err
}

func (r *repo) ListOverdue(ctx context.Context, conn *gorm.DB, now time.Time, limit int) ([]domain.Quotation, error) {
	var items []domain.Quotation
	err := db.ForUpdateSkipLocked(conn.WithContext(ctx)).
		Where("status = ? AND valid_until IS NOT NULL AND valid_until <= ?", domain.StatusSubmitted, now).
		Order("valid_until asc").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *repo) MarkExpired(ctx context.Context, conn *gorm.DB, ids []snowflake.ID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := conn.WithContext(ctx).Model(&domain.Quotation{}).
		Where("id IN ? AND status = ?", ids, domain.StatusSubmitted).
		Updates(map[string]any{
			"status":     domain.StatusExpired,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}

func first(stmt *gorm.DB) (*domain.Quotation, error) {
	var q domain.Quotation
	err := stmt.First(&q).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &q, nil
}
