package server

import (
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/freightdesk/internal/auditcontext"
	authdomain "github.com/smallbiznis/freightdesk/internal/auth/domain"
	obscontext "github.com/smallbiznis/freightdesk/internal/observability/context"
	organizationdomain "github.com/smallbiznis/freightdesk/internal/organization/domain"
)

const (
	HeaderOrg = "X-Org-ID"

	contextUserIDKey  = "user_id"
	contextSessionKey = "session"
	contextOrgIDKey   = "org_id"
	contextOrgKey     = "org"
	contextRoleKey    = "org_role"
)

// WebAuthRequired resolves the session cookie and binds the user as the request actor.
func (s *Server) WebAuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := s.sessions.ReadToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		session, err := s.authsvc.Authenticate(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		userID := session.UserID.String()
		ctx := auditcontext.WithActor(c.Request.Context(), auditcontext.ActorTypeUser, userID)
		ctx = obscontext.WithActor(ctx, auditcontext.ActorTypeUser, userID)
		c.Request = c.Request.WithContext(ctx)

		c.Set(contextUserIDKey, userID)
		c.Set(contextSessionKey, session)
		c.Next()
	}
}

// OrgContext picks the active organization from the X-Org-ID header, falling back
// to the session, and checks that the user belongs to it.
func (s *Server) OrgContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		session, ok := s.sessionFromContext(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		orgID, err := s.orgIDFromRequest(c, session)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		role, err := s.organizationSvc.GetMemberRole(c.Request.Context(), orgID, session.UserID)
		if err != nil {
			if errors.Is(err, organizationdomain.ErrMemberNotFound) {
				err = ErrForbidden
			}
			AbortWithError(c, err)
			return
		}
		org, err := s.organizationSvc.Get(c.Request.Context(), orgID)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		ctx := obscontext.WithOrgID(c.Request.Context(), orgID.String())
		c.Request = c.Request.WithContext(obscontext.WithOrgType(ctx, string(org.Type)))
		c.Set(contextOrgIDKey, orgID.String())
		c.Set(contextOrgKey, org)
		c.Set(contextRoleKey, role)
		c.Next()
	}
}

// RequireRole rejects members whose role is not listed.
func (s *Server) RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := c.GetString(contextRoleKey)
		for _, allowed := range roles {
			if role == allowed {
				c.Next()
				return
			}
		}
		AbortWithError(c, ErrForbidden)
	}
}

func (s *Server) orgIDFromRequest(c *gin.Context, session *authdomain.Session) (snowflake.ID, error) {
	if raw := strings.TrimSpace(c.GetHeader(HeaderOrg)); raw != "" {
		orgID, err := snowflake.ParseString(raw)
		if err != nil || orgID == 0 {
			return 0, newValidationError("X-Org-ID", "invalid_org_id", "invalid org id")
		}
		return orgID, nil
	}
	if session.ActiveOrgID != nil && *session.ActiveOrgID != 0 {
		return snowflake.ID(*session.ActiveOrgID), nil
	}
	return 0, ErrNoActiveOrg
}

func (s *Server) userIDFromSession(c *gin.Context) (snowflake.ID, bool) {
	raw := strings.TrimSpace(c.GetString(contextUserIDKey))
	if raw == "" {
		return 0, false
	}
	userID, err := snowflake.ParseString(raw)
	if err != nil || userID == 0 {
		return 0, false
	}
	return userID, true
}

func (s *Server) sessionFromContext(c *gin.Context) (*authdomain.Session, bool) {
	value, ok := c.Get(contextSessionKey)
	if !ok {
		return nil, false
	}
	session, ok := value.(*authdomain.Session)
	return session, ok && session != nil
}

func activeOrgID(c *gin.Context) snowflake.ID {
	orgID, err := snowflake.ParseString(c.GetString(contextOrgIDKey))
	if err != nil {
		return 0
	}
	return orgID
}

func activeOrg(c *gin.Context) *organizationdomain.Organization {
	value, ok := c.Get(contextOrgKey)
	if !ok {
		return nil
	}
	org, _ := value.(*organizationdomain.Organization)
	return org
}

func parseIDParam(c *gin.Context, name string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(c.Param(name)))
	if err != nil || id == 0 {
		return 0, newValidationError(name, "invalid_id", "invalid id")
	}
	return id, nil
}
