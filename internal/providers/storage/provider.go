// Package storage stores uploaded files behind a provider interface.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"strings"

	"github.com/oklog/ulid/v2"
)

var (
	ErrUnsupportedContentType = errors.New("unsupported_content_type")
	ErrTooLarge               = errors.New("file_too_large")
	ErrEmptyFile              = errors.New("empty_file")
	ErrInvalidKey             = errors.New("invalid_key")
	ErrNotFound               = errors.New("object_not_found")
)

// Object describes a stored file.
type Object struct {
	Key         string `json:"key"`
	URL         string `json:"url"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

type Provider interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader, size int64) (Object, error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

const (
	ContentTypePNG  = "image/png"
	ContentTypeJPEG = "image/jpeg"
	ContentTypeSVG  = "image/svg+xml"
	ContentTypePDF  = "application/pdf"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	ContentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
)

var (
	LogoContentTypes = map[string]string{
		ContentTypePNG:  ".png",
		ContentTypeJPEG: ".jpg",
		ContentTypeSVG:  ".svg",
	}
	DocumentContentTypes = map[string]string{
		ContentTypePDF:  ".pdf",
		ContentTypePNG:  ".png",
		ContentTypeJPEG: ".jpg",
		ContentTypeXLSX: ".xlsx",
		ContentTypeDOCX: ".docx",
	}
)

// Upload is a file received from a client.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Validate checks the upload against an allow list and size limit, and
// returns the normalized content type and the file extension to store under.
func (u Upload) Validate(allowed map[string]string, maxSize int64) (string, string, error) {
	if u.Size <= 0 || u.Body == nil {
		return "", "", ErrEmptyFile
	}
	if maxSize > 0 && u.Size > maxSize {
		return "", "", ErrTooLarge
	}
	contentType := normalizeContentType(u.ContentType)
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = normalizeContentType(mime.TypeByExtension(strings.ToLower(path.Ext(u.Filename))))
	}
	ext, ok := allowed[contentType]
	if !ok {
		return "", "", ErrUnsupportedContentType
	}
	return contentType, ext, nil
}

// LogoKey builds the object key for an organization logo.
func LogoKey(orgID string, ext string) string {
	return fmt.Sprintf("orgs/%s/logo/%s%s", orgID, ulid.Make().String(), ext)
}

// DocumentKey builds the object key for an inquiry attachment.
func DocumentKey(inquiryID string, ext string) string {
	return fmt.Sprintf("inquiries/%s/%s%s", inquiryID, ulid.Make().String(), ext)
}

func normalizeContentType(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(raw)
	if err != nil {
		return strings.ToLower(raw)
	}
	if mediaType == "image/jpg" {
		return ContentTypeJPEG
	}
	return strings.ToLower(mediaType)
}
