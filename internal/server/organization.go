package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	organizationdomain "github.com/smallbiznis/freightdesk/internal/organization/domain"
)

type changeMemberRoleRequest struct {
	Role string `json:"role"`
}

type acceptInviteRequest struct {
	Token string `json:"token"`
}

// CreateOrganization creates an organization owned by the session user and makes it active.
func (s *Server) CreateOrganization(c *gin.Context) {
	session, ok := s.sessionFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req organizationdomain.CreateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	org, err := s.organizationSvc.Create(c.Request.Context(), session.UserID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	orgIDs, err := s.loadUserOrgIDs(c.Request.Context(), session.UserID)
	if err == nil {
		active := int64(org.ID)
		_ = s.authsvc.UpdateSessionOrgContext(c.Request.Context(), session.ID, &active, orgIDs)
	}

	c.JSON(http.StatusCreated, org)
}

func (s *Server) GetOrganization(c *gin.Context) {
	org := activeOrg(c)
	if org == nil {
		AbortWithError(c, ErrNoActiveOrg)
		return
	}
	c.JSON(http.StatusOK, org)
}

func (s *Server) UpdateOrganization(c *gin.Context) {
	var req organizationdomain.UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	org, err := s.organizationSvc.Update(c.Request.Context(), activeOrgID(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

func (s *Server) UploadOrganizationLogo(c *gin.Context) {
	upload, err := s.readUpload(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer upload.Close()

	org, err := s.organizationSvc.UploadLogo(c.Request.Context(), activeOrgID(c), organizationdomain.LogoUpload{
		Filename:    upload.Filename,
		ContentType: upload.ContentType,
		Size:        upload.Size,
		Body:        upload.Body,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, org)
}

func (s *Server) ListMembers(c *gin.Context) {
	members, err := s.organizationSvc.ListMembers(c.Request.Context(), activeOrgID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": members})
}

func (s *Server) ChangeMemberRole(c *gin.Context) {
	actorID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	targetID, err := parseIDParam(c, "userId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req changeMemberRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	role := strings.ToLower(strings.TrimSpace(req.Role))
	if err := s.organizationSvc.ChangeMemberRole(c.Request.Context(), activeOrgID(c), actorID, targetID, role); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) RemoveMember(c *gin.Context) {
	actorID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	targetID, err := parseIDParam(c, "userId")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	if err := s.organizationSvc.RemoveMember(c.Request.Context(), activeOrgID(c), actorID, targetID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) InviteMember(c *gin.Context) {
	actorID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req organizationdomain.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.organizationSvc.InviteMember(c.Request.Context(), activeOrgID(c), actorID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp.Invite)
}

func (s *Server) ListInvites(c *gin.Context) {
	invites, err := s.organizationSvc.ListInvites(c.Request.Context(), activeOrgID(c))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": invites})
}

func (s *Server) RevokeInvite(c *gin.Context) {
	inviteID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.organizationSvc.RevokeInvite(c.Request.Context(), activeOrgID(c), inviteID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// AcceptInvite joins the session user to the inviting organization and switches to it.
func (s *Server) AcceptInvite(c *gin.Context) {
	session, ok := s.sessionFromContext(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req acceptInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Token) == "" {
		AbortWithError(c, newValidationError("token", "invalid_invite_token", "invite token is required"))
		return
	}

	member, err := s.organizationSvc.AcceptInvite(c.Request.Context(), session.UserID, strings.TrimSpace(req.Token))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	orgIDs, err := s.loadUserOrgIDs(c.Request.Context(), session.UserID)
	if err == nil {
		active := int64(member.OrgID)
		_ = s.authsvc.UpdateSessionOrgContext(c.Request.Context(), session.ID, &active, orgIDs)
	}

	c.JSON(http.StatusOK, gin.H{
		"org_id": member.OrgID.String(),
		"role":   member.Role,
	})
}
