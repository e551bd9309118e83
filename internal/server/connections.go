package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	connectiondomain "github.com/smallbiznis/freightdesk/internal/connection/domain"
)

func (s *Server) ListConnections(c *gin.Context) {
	views, err := s.connectionSvc.List(c.Request.Context(), activeOrgID(c), strings.TrimSpace(c.Query("status")))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": views})
}

func (s *Server) InviteConnection(c *gin.Context) {
	actorID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req connectiondomain.InviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	conn, err := s.connectionSvc.Invite(c.Request.Context(), activeOrgID(c), actorID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, conn)
}

func (s *Server) AcceptConnection(c *gin.Context) {
	actorID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	connID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	conn, err := s.connectionSvc.Accept(c.Request.Context(), activeOrgID(c), actorID, connID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, conn)
}

func (s *Server) RemoveConnection(c *gin.Context) {
	connID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if err := s.connectionSvc.Remove(c.Request.Context(), activeOrgID(c), connID); err != nil {
		AbortWithError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
