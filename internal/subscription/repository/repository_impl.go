package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/freightdesk/internal/subscription/domain"
	"github.com/smallbiznis/freightdesk/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, sub *domain.Subscription) error {
	return db.WithContext(ctx).Create(sub).Error
}

func (r *repo) FindByOrgID(ctx context.Context, conn *gorm.DB, orgID snowflake.ID) (*domain.Subscription, error) {
	return r.byOrg(conn.WithContext(ctx), orgID)
}

func (r *repo) LockByOrgID(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (*domain.Subscription, error) {
	return r.byOrg(db.ForUpdate(tx.WithContext(ctx)), orgID)
}

func (r *repo) byOrg(q *gorm.DB, orgID snowflake.ID) (*domain.Subscription, error) {
	var sub domain.Subscription
	err := q.Where("org_id = ?", orgID).Take(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *repo) UpdateTier(ctx context.Context, db *gorm.DB, id snowflake.ID, tier string, limit int, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE subscriptions
		 SET tier = ?, monthly_quotation_limit = ?, updated_at = ?
		 WHERE id = ?`,
		tier,
		limit,
		now,
		id,
	).Error
}

func (r *repo) CountSubmittedQuotations(ctx context.Context, db *gorm.DB, orgID snowflake.ID, from, to time.Time) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1)
		 FROM quotations
		 WHERE forwarder_org_id = ?
		   AND submitted_at >= ?
		   AND submitted_at < ?`,
		orgID,
		from,
		to,
	).Scan(&count).Error
	return count, err
}
