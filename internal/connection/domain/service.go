package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

type InviteRequest struct {
	OrgID string `json:"org_id"`
}

// View is a connection as seen from one side.
type View struct {
	ID              string     `json:"id"`
	Status          Status     `json:"status"`
	CounterpartID   string     `json:"counterpart_org_id"`
	CounterpartName string     `json:"counterpart_name"`
	CounterpartType string     `json:"counterpart_type"`
	InvitedByUs     bool       `json:"invited_by_us"`
	AcceptedAt      *time.Time `json:"accepted_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

type Service interface {
	Invite(ctx context.Context, orgID, actorUserID snowflake.ID, req InviteRequest) (*Connection, error)
	Accept(ctx context.Context, orgID, actorUserID, connectionID snowflake.ID) (*Connection, error)
	Remove(ctx context.Context, orgID, connectionID snowflake.ID) error
	List(ctx context.Context, orgID snowflake.ID, status string) ([]View, error)
	// IsConnected reports whether the pair has a connected connection.
	IsConnected(ctx context.Context, shipperOrgID, forwarderOrgID snowflake.ID) (bool, error)
}
