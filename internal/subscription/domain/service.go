package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Usage struct {
	Tier        string    `json:"tier"`
	Limit       int       `json:"limit"`
	Unlimited   bool      `json:"unlimited"`
	Used        int64     `json:"used"`
	Remaining   *int64    `json:"remaining,omitempty"`
	PeriodStart time.Time `json:"period_start"`
	PeriodEnd   time.Time `json:"period_end"`
}

//go:generate mockgen -source=service.go -destination=./mocks/mock_service.go -package=mocks
type Service interface {
	// CreateDefault provisions the default tier for a new organization inside tx.
	CreateDefault(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) (*Subscription, error)
	GetForOrg(ctx context.Context, orgID snowflake.ID) (*Subscription, error)
	Usage(ctx context.Context, orgID snowflake.ID) (*Usage, error)
	ChangeTier(ctx context.Context, orgID snowflake.ID, tier string) (*Subscription, error)
	// CheckQuotationLimit returns ErrQuotationLimitReached when submitting one
	// more quotation this month would exceed the plan.
	CheckQuotationLimit(ctx context.Context, tx *gorm.DB, orgID snowflake.ID) error
}

var (
	ErrSubscriptionNotFound  = errors.New("subscription_not_found")
	ErrInvalidOrganization   = errors.New("invalid_organization")
	ErrInvalidTier           = errors.New("invalid_tier")
	ErrQuotationLimitReached = errors.New("quotation_limit_reached")
)
