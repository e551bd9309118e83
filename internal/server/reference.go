package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

func (s *Server) ListCountries(c *gin.Context) {
	countries, err := s.referenceSvc.ListCountries(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": countries})
}

func (s *Server) ListTimezones(c *gin.Context) {
	country := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if len(country) != 2 {
		AbortWithError(c, newValidationError("code", "invalid_country", "invalid country"))
		return
	}

	timezones, err := s.referenceSvc.ListTimezonesByCountry(c.Request.Context(), country)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": timezones})
}

func (s *Server) ListCurrencies(c *gin.Context) {
	currencies, err := s.referenceSvc.ListCurrencies(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": currencies})
}
