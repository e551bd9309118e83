package server

import (
	"context"

	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/freightdesk/internal/auditcontext"
	inquirydomain "github.com/smallbiznis/freightdesk/internal/inquiry/domain"
)

// sweepExpired runs the throttled expiry pass before reads that show status.
func (s *Server) sweepExpired(c *gin.Context) {
	if s.sweeper == nil {
		return
	}
	ctx := auditcontext.WithActor(c.Request.Context(), auditcontext.ActorTypeSystem, "scheduler")
	s.sweeper.CheckAndUpdateExpiredItems(ctx)
}

func (s *Server) CreateInquiry(c *gin.Context) {
	userID, ok := s.userIDFromSession(c)
	if !ok {
		AbortWithError(c, ErrUnauthorized)
		return
	}

	var req inquirydomain.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	inq, err := s.inquirySvc.Create(c.Request.Context(), activeOrgID(c), userID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, inq)
}

func (s *Server) ListInquiries(c *gin.Context) {
	var req inquirydomain.ListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	s.sweepExpired(c)
	resp, err := s.inquirySvc.List(c.Request.Context(), activeOrgID(c), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) GetInquiry(c *gin.Context) {
	inquiryID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	s.sweepExpired(c)
	detail, err := s.inquirySvc.Get(c.Request.Context(), activeOrgID(c), inquiryID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (s *Server) UpdateInquiry(c *gin.Context) {
	inquiryID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req inquirydomain.UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	inq, err := s.inquirySvc.Update(c.Request.Context(), activeOrgID(c), inquiryID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, inq)
}

func (s *Server) SendInquiry(c *gin.Context) {
	inquiryID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req inquirydomain.SendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	inq, err := s.inquirySvc.Send(c.Request.Context(), activeOrgID(c), inquiryID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, inq)
}

func (s *Server) CancelInquiry(c *gin.Context) {
	s.inquiryTransition(c, s.inquirySvc.Cancel)
}

func (s *Server) CloseInquiry(c *gin.Context) {
	s.inquiryTransition(c, s.inquirySvc.Close)
}

func (s *Server) RejectInquiry(c *gin.Context) {
	inquiryID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req inquirydomain.RejectRequest
	// the reason is optional, so an empty body is fine
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			AbortWithError(c, invalidRequestError())
			return
		}
	}

	inq, err := s.inquirySvc.Reject(c.Request.Context(), activeOrgID(c), inquiryID, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, inq)
}

func (s *Server) UploadInquiryDocument(c *gin.Context) {
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

	upload, err := s.readUpload(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer upload.Close()

	doc, err := s.inquirySvc.UploadDocument(c.Request.Context(), activeOrgID(c), userID, inquiryID, inquirydomain.DocumentUpload{
		Filename:    upload.Filename,
		ContentType: upload.ContentType,
		Size:        upload.Size,
		Body:        upload.Body,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (s *Server) ListInquiryDocuments(c *gin.Context) {
	inquiryID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	docs, err := s.inquirySvc.ListDocuments(c.Request.Context(), activeOrgID(c), inquiryID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": docs})
}

type inquiryTransitionFunc func(ctx context.Context, orgID, inquiryID snowflake.ID) (*inquirydomain.Inquiry, error)

func (s *Server) inquiryTransition(c *gin.Context, fn inquiryTransitionFunc) {
	inquiryID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	inq, err := fn(c.Request.Context(), activeOrgID(c), inquiryID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, inq)
}
