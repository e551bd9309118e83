package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	dashboarddomain "github.com/smallbiznis/freightdesk/internal/dashboard/domain"
)

// GetDashboard accepts ?period=7d|30d|90d|12m or an explicit from/to pair of dates.
func (s *Server) GetDashboard(c *gin.Context) {
	from, err := parseOptionalTime(c.Query("from"), false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from date"))
		return
	}
	to, err := parseOptionalTime(c.Query("to"), true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to date"))
		return
	}

	req := dashboarddomain.Request{
		Window: dashboarddomain.Window(strings.TrimSpace(c.Query("period"))),
		From:   from,
		To:     to,
	}

	s.sweepExpired(c)
	dash, err := s.dashboardSvc.Get(c.Request.Context(), activeOrgID(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}
