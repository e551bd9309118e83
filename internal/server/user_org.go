package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	authdomain "github.com/smallbiznis/freightdesk/internal/auth/domain"
	organizationdomain "github.com/smallbiznis/freightdesk/internal/organization/domain"
)

// ListUserOrgs lists the caller's memberships with their marketplace side and
// role, and marks the one the session currently acts for.
func (s *Server) ListUserOrgs(c *gin.Context) {
	session, ok := s.sessionFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgs, err := s.organizationSvc.ListOrganizationsByUser(c.Request.Context(), session.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := gin.H{"orgs": orgs}
	if session.ActiveOrgID != nil {
		resp["active_org_id"] = snowflake.ID(*session.ActiveOrgID).String()
	}
	c.JSON(http.StatusOK, resp)
}

// UseOrg switches the org the session acts for. Shipper and forwarder routes
// are gated on the active org's type, so the response carries it.
func (s *Server) UseOrg(c *gin.Context) {
	session, ok := s.sessionFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	orgID, err := snowflake.ParseString(strings.TrimSpace(c.Param("orgId")))
	if err != nil || orgID == 0 {
		AbortWithError(c, newValidationError("org_id", "invalid_org_id", "invalid org id"))
		return
	}

	orgs, err := s.organizationSvc.ListOrganizationsByUser(c.Request.Context(), session.UserID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	target, orgIDs := membershipOf(orgs, orgID)
	if target == nil {
		AbortWithError(c, ErrForbidden)
		return
	}

	active := int64(orgID)
	if err := s.authsvc.UpdateSessionOrgContext(c.Request.Context(), session.ID, &active, orgIDs); err != nil {
		AbortWithError(c, err)
		return
	}
	session.ActiveOrgID = &active
	session.OrgIDs = orgIDs

	view := sessionViewFromSession(session)
	view.Metadata["active_org_type"] = target.Type
	view.Metadata["active_org_role"] = target.Role
	c.JSON(http.StatusOK, view)
}

// membershipOf finds orgID among the user's orgs and returns all their ids.
func membershipOf(orgs []organizationdomain.OrganizationListResponseItem, orgID snowflake.ID) (*organizationdomain.OrganizationListResponseItem, []int64) {
	var target *organizationdomain.OrganizationListResponseItem
	ids := make([]int64, 0, len(orgs))
	for i := range orgs {
		id, err := snowflake.ParseString(orgs[i].ID)
		if err != nil {
			continue
		}
		ids = append(ids, int64(id))
		if id == orgID {
			target = &orgs[i]
		}
	}
	return target, ids
}

func sessionViewFromSession(session *authdomain.Session) *authdomain.SessionView {
	metadata := map[string]any{
		"user_id": session.UserID.String(),
		"org_ids": toOrgIDStrings(session.OrgIDs),
	}
	if session.ActiveOrgID != nil {
		metadata["active_org_id"] = snowflake.ID(*session.ActiveOrgID).String()
	}
	return &authdomain.SessionView{Metadata: metadata}
}

func toOrgIDStrings(orgIDs []int64) []string {
	out := make([]string, 0, len(orgIDs))
	for _, orgID := range orgIDs {
		out = append(out, snowflake.ID(orgID).String())
	}
	return out
}
