// Package domain contains the subscription model that caps forwarder quoting.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type SubscriptionStatus string

const (
	SubscriptionStatusActive SubscriptionStatus = "active"
)

// Subscription is the single plan an organization is on.
type Subscription struct {
	ID                    snowflake.ID       `gorm:"primaryKey" json:"id"`
	OrgID                 snowflake.ID       `gorm:"not null;uniqueIndex:ux_subscriptions_org" json:"org_id"`
	Tier                  string             `gorm:"type:text;not null" json:"tier"`
	Status                SubscriptionStatus `gorm:"type:text;not null" json:"status"`
	MonthlyQuotationLimit int                `gorm:"not null;default:0" json:"monthly_quotation_limit"`
	CreatedAt             time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt             time.Time          `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

// TableName sets the database table name.
func (Subscription) TableName() string { return "subscriptions" }

// Unlimited reports whether the plan has no monthly quotation cap.
func (s Subscription) Unlimited() bool { return s.MonthlyQuotationLimit <= 0 }
