package server

import (
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/freightdesk/internal/providers/storage"
)

const uploadField = "file"

type uploadedFile struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	file        multipart.File
}

func (u *uploadedFile) Close() {
	if u != nil && u.file != nil {
		_ = u.file.Close()
	}
}

// readUpload opens the multipart "file" field. The caller closes the result.
func (s *Server) readUpload(c *gin.Context) (*uploadedFile, error) {
	if limit := s.cfg.Storage.MaxUploadSize; limit > 0 {
		// leave headroom for the multipart envelope; the provider enforces the exact limit
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+1<<20)
	}

	header, err := c.FormFile(uploadField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, storage.ErrTooLarge
		}
		return nil, newValidationError(uploadField, "required", "file is required")
	}

	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	return &uploadedFile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
		file:        file,
	}, nil
}

// ServePublicUpload serves organization logos.
func (s *Server) ServePublicUpload(c *gin.Context) {
	key := "orgs/" + strings.TrimPrefix(c.Param("path"), "/")
	s.serveObject(c, key)
}

// ServeInquiryDocument serves an inquiry attachment to orgs that can see the inquiry.
func (s *Server) ServeInquiryDocument(c *gin.Context) {
	inquiryID, err := parseIDParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	if _, err := s.inquirySvc.Get(c.Request.Context(), activeOrgID(c), inquiryID); err != nil {
		AbortWithError(c, err)
		return
	}

	s.serveObject(c, "inquiries/"+inquiryID.String()+"/"+c.Param("file"))
}

func (s *Server) serveObject(c *gin.Context, key string) {
	if s.storage == nil {
		AbortWithError(c, ErrNotFound)
		return
	}

	rc, err := s.storage.Open(c.Request.Context(), key)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(strings.ToLower(path.Ext(key)))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Type", contentType)
	c.Header("X-Content-Type-Options", "nosniff")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, rc)
}
