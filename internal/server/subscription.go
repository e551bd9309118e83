package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

type changeTierRequest struct {
	Tier string `json:"tier"`
}

func (s *Server) GetSubscription(c *gin.Context) {
	orgID := activeOrgID(c)
	sub, err := s.subscriptionSvc.GetForOrg(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	usage, err := s.subscriptionSvc.Usage(c.Request.Context(), orgID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"subscription": sub,
		"usage":        usage,
	})
}

// ChangeTier switches the plan. There is no payment step; any tier in the
// configured table is accepted.
func (s *Server) ChangeTier(c *gin.Context) {
	var req changeTierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	sub, err := s.subscriptionSvc.ChangeTier(c.Request.Context(), activeOrgID(c), strings.ToLower(strings.TrimSpace(req.Tier)))
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}
