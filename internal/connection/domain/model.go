package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConnected Status = "connected"
	StatusRemoved   Status = "removed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConnected, StatusRemoved:
		return true
	default:
		return false
	}
}

// Connection links one shipper organization with one forwarder organization.
// There is at most one row per pair; removing and re-inviting reuses it.
type Connection struct {
	ID             snowflake.ID  `gorm:"primaryKey" json:"id"`
	ShipperOrgID   snowflake.ID  `gorm:"column:shipper_org_id;not null;uniqueIndex:ux_connections_pair,priority:1" json:"shipper_org_id"`
	ForwarderOrgID snowflake.ID  `gorm:"column:forwarder_org_id;not null;index;uniqueIndex:ux_connections_pair,priority:2" json:"forwarder_org_id"`
	Status         Status        `gorm:"type:text;not null;index" json:"status"`
	InvitedByOrgID snowflake.ID  `gorm:"column:invited_by_org_id;not null" json:"invited_by_org_id"`
	InvitedBy      snowflake.ID  `gorm:"column:invited_by;not null" json:"invited_by"`
	AcceptedBy     *snowflake.ID `gorm:"column:accepted_by" json:"accepted_by,omitempty"`
	AcceptedAt     *time.Time    `gorm:"column:accepted_at" json:"accepted_at,omitempty"`
	RemovedAt      *time.Time    `gorm:"column:removed_at" json:"removed_at,omitempty"`
	CreatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt      time.Time     `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Connection) TableName() string { return "organization_connections" }

// Counterpart returns the org on the other side of the connection.
func (c Connection) Counterpart(orgID snowflake.ID) snowflake.ID {
	if c.ShipperOrgID == orgID {
		return c.ForwarderOrgID
	}
	return c.ShipperOrgID
}

// Involves reports whether orgID is one of the two parties.
func (c Connection) Involves(orgID snowflake.ID) bool {
	return c.ShipperOrgID == orgID || c.ForwarderOrgID == orgID
}
