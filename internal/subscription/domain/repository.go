package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, sub *Subscription) error
	FindByOrgID(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*Subscription, error)
	// LockByOrgID reads the subscription FOR UPDATE; db must be a transaction.
	LockByOrgID(ctx context.Context, db *gorm.DB, orgID snowflake.ID) (*Subscription, error)
	UpdateTier(ctx context.Context, db *gorm.DB, id snowflake.ID, tier string, limit int, now time.Time) error
	CountSubmittedQuotations(ctx context.Context, db *gorm.DB, orgID snowflake.ID, from, to time.Time) (int64, error)
}
