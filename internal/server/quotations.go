package server

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	quotationdomain "github.com/smallbiznis/freightdesk/internal/quotation/domain"
)

func (s *Server) CreateQuotation(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}
	inquiryID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req quotationdomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	s.sweepExpired(c)
	q, err := s.quotationSvc.Create(c.Request.Context(), activeOrgID(c), userID, inquiryID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, q)
}

func (s *Server) ListInquiryQuotations(c *gin.Context) {
	inquiryID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sweepExpired(c)
	items, err := s.quotationSvc.ListForInquiry(c.Request.Context(), activeOrgID(c), inquiryID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": items})
}

func (s *Server) ListQuotations(c *gin.Context) {
	var req quotationdomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	s.sweepExpired(c)
	resp, err := s.quotationSvc.List(c.Request.Context(), activeOrgID(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetQuotation(c *gin.Context) {
	quotationID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sweepExpired(c)
	q, err := s.quotationSvc.Get(c.Request.Context(), activeOrgID(c), quotationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (s *Server) UpdateQuotation(c *gin.Context) {
	quotationID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req quotationdomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	q, err := s.quotationSvc.Update(c.Request.Context(), activeOrgID(c), quotationID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

func (s *Server) SubmitQuotation(c *gin.Context) {
	s.quotationTransition(c, s.quotationSvc.Submit)
}

func (s *Server) WithdrawQuotation(c *gin.Context) {
	s.quotationTransition(c, s.quotationSvc.Withdraw)
}

func (s *Server) AcceptQuotation(c *gin.Context) {
	s.sweepExpired(c)
	s.quotationTransition(c, s.quotationSvc.Accept)
}

func (s *Server) RejectQuotation(c *gin.Context) {
	quotationID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req quotationdomain.RejectRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	q, err := s.quotationSvc.Reject(c.Request.Context(), activeOrgID(c), quotationID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}

// ExportQuotationPDF streams the rendered quotation as an attachment.
func (s *Server) ExportQuotationPDF(c *gin.Context) {
	quotationID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.quotationSvc.Export(c.Request.Context(), activeOrgID(c), quotationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if closer, ok := doc.Body.(io.Closer); ok {
		defer closer.Close()
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Header("Content-Type", doc.ContentType)
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, doc.Body)
}

type quotationTransitionFunc func(ctx context.Context, orgID, quotationID snowflake.ID) (*quotationdomain.Quotation, error)

func (s *Server) quotationTransition(c *gin.Context, fn quotationTransitionFunc) {
	quotationID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	q, err := fn(c.Request.Context(), activeOrgID(c), quotationID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, q)
}
