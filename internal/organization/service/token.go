package service

import (
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/freightdesk/internal/organization/domain"
)

const inviteTokenIssuer = "freightdesk/invite"

type inviteClaims struct {
	InviteID string `json:"invite_id"`
	OrgID    string `json:"org_id"`
	jwt.RegisteredClaims
}

type inviteSigner struct {
	secret []byte
}

func newInviteSigner(secret string) inviteSigner {
	if secret == "" {
		secret = "freightdesk-dev-invite-secret"
	}
	return inviteSigner{secret: []byte(secret)}
}

func (s inviteSigner) Sign(invite domain.OrganizationInvite) (string, error) {
	claims := inviteClaims{
		InviteID: invite.ID.String(),
		OrgID:    invite.OrgID.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    inviteTokenIssuer,
			Subject:   invite.Email,
			IssuedAt:  jwt.NewNumericDate(invite.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(invite.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// Parse validates the signature and returns the invite id. Expiry is checked
// against now rather than wall time so tests can drive it.
func (s inviteSigner) Parse(raw string, now time.Time) (snowflake.ID, error) {
	claims := &inviteClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(inviteTokenIssuer),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return 0, domain.ErrInviteExpired
		}
		return 0, domain.ErrInvalidInviteToken
	}

	id, err := snowflake.ParseString(claims.InviteID)
	if err != nil || id == 0 {
		return 0, domain.ErrInvalidInviteToken
	}
	return id, nil
}
