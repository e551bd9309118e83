package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/freightdesk/internal/auth/domain"
	"gorm.io/gorm"
)

type users struct {
	db *gorm.DB
}

type sessions struct {
	db *gorm.DB
}

func New(db *gorm.DB) (domain.Repository, domain.SessionRepository) {
	return &users{db: db}, &sessions{db: db}
}

func (r *users) Create(ctx context.Context, user *domain.User) error {
	user.Email = strings.ToLower(user.Email)
	return r.db.WithContext(ctx).Create(user).Error
}

func (r *users) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.first(ctx, "email = ?", strings.ToLower(strings.TrimSpace(email)))
}

func (r *users) FindByID(ctx context.Context, id snowflake.ID) (*domain.User, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *users) first(ctx context.Context, query string, args ...any) (*domain.User, error) {
	var user domain.User
	err := r.db.WithContext(ctx).Where(query, args...).Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *users) SetPassword(ctx context.Context, id snowflake.ID, hash string, changedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.User{}).Where("id = ?", id).Updates(map[string]any{
		"password_hash":         hash,
		"last_password_changed": changedAt,
		"is_default":            false,
		"updated_at":            changedAt,
	})
	return affected(res, domain.ErrUserNotFound)
}

func (r *sessions) CreateSession(ctx context.Context, session *domain.Session) error {
	if session.OrgIDs == nil {
		session.OrgIDs = []int64{}
	}
	return r.db.WithContext(ctx).Create(session).Error
}

func (r *sessions) GetSessionByTokenHash(ctx context.Context, tokenHash string) (*domain.Session, error) {
	var session domain.Session
	err := r.db.WithContext(ctx).Where("session_token_hash = ?", tokenHash).Take(&session).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	return &session, nil
}

// TouchSession skips the write when the session was seen recently; every API
// call authenticates, and most of them would otherwise rewrite the row.
func (r *sessions) TouchSession(ctx context.Context, sessionID snowflake.ID, seenAt time.Time, minInterval time.Duration) error {
	return r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ? AND last_seen_at < ?", sessionID, seenAt.Add(-minInterval)).
		Update("last_seen_at", seenAt).Error
}

func (r *sessions) UpdateOrgContext(ctx context.Context, sessionID snowflake.ID, activeOrgID *int64, orgIDs []int64) error {
	if orgIDs == nil {
		orgIDs = []int64{}
	}
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ?", sessionID).
		Select("active_org_id", "org_ids").
		Updates(&domain.Session{ActiveOrgID: activeOrgID, OrgIDs: orgIDs})
	return affected(res, domain.ErrSessionNotFound)
}

func (r *sessions) RevokeSession(ctx context.Context, sessionID snowflake.ID, revokedAt time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("id = ?", sessionID).
		Update("revoked_at", revokedAt)
	return affected(res, domain.ErrSessionNotFound)
}

func (r *sessions) RevokeOtherSessions(ctx context.Context, userID, keep snowflake.ID, revokedAt time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.Session{}).
		Where("user_id = ? AND id <> ? AND revoked_at IS NULL", userID, keep).
		Update("revoked_at", revokedAt)
	return res.RowsAffected, res.Error
}

func affected(res *gorm.DB, notFound error) error {
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return notFound
	}
	return nil
}
