package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
)

// Repository stores local user accounts. Emails are kept lower case.
type Repository interface {
	Create(ctx context.Context, user *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	FindByID(ctx context.Context, id snowflake.ID) (*User, error)
	SetPassword(ctx context.Context, id snowflake.ID, hash string, changedAt time.Time) error
}

type SessionRepository interface {
	CreateSession(ctx context.Context, session *Session) error
	GetSessionByTokenHash(ctx context.Context, tokenHash string) (*Session, error)
	// TouchSession bumps last_seen_at unless it was bumped within minInterval.
	TouchSession(ctx context.Context, sessionID snowflake.ID, seenAt time.Time, minInterval time.Duration) error
	UpdateOrgContext(ctx context.Context, sessionID snowflake.ID, activeOrgID *int64, orgIDs []int64) error
	RevokeSession(ctx context.Context, sessionID snowflake.ID, revokedAt time.Time) error
	// RevokeOtherSessions ends every live session of userID except keep.
	RevokeOtherSessions(ctx context.Context, userID, keep snowflake.ID, revokedAt time.Time) (int64, error)
}
