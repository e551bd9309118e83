package storage

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestUploadValidate(t *testing.T) {
	up := Upload{Filename: "logo.PNG", ContentType: "image/png", Size: 10, Body: strings.NewReader("x")}
	ct, ext, err := up.Validate(LogoContentTypes, 100)
	require.NoError(t, err)
	require.Equal(t, ContentTypePNG, ct)
	require.Equal(t, ".png", ext)

	up = Upload{Filename: "manifest.pdf", ContentType: "application/octet-stream", Size: 10, Body: strings.NewReader("x")}
	ct, _, err = up.Validate(DocumentContentTypes, 100)
	require.NoError(t, err)
	require.Equal(t, ContentTypePDF, ct)

	_, _, err = Upload{Filename: "a.pdf", ContentType: ContentTypePDF, Size: 10, Body: strings.NewReader("x")}.Validate(LogoContentTypes, 100)
	require.ErrorIs(t, err, ErrUnsupportedContentType)

	_, _, err = Upload{Filename: "a.png", ContentType: ContentTypePNG, Size: 101, Body: strings.NewReader("x")}.Validate(LogoContentTypes, 100)
	require.ErrorIs(t, err, ErrTooLarge)

	_, _, err = Upload{Filename: "a.png", ContentType: ContentTypePNG}.Validate(LogoContentTypes, 100)
	require.ErrorIs(t, err, ErrEmptyFile)
}

func TestKeys(t *testing.T) {
	require.True(t, strings.HasPrefix(LogoKey("42", ".png"), "orgs/42/logo/"))
	require.True(t, strings.HasSuffix(DocumentKey("7", ".pdf"), ".pdf"))
	require.True(t, strings.HasPrefix(DocumentKey("7", ".pdf"), "inquiries/7/"))
}

func TestLocalProviderRoundTrip(t *testing.T) {
	p, err := NewLocal(t.TempDir(), "/uploads/")
	require.NoError(t, err)
	ctx := context.Background()

	obj, err := p.Put(ctx, "inquiries/1/doc.pdf", ContentTypePDF, strings.NewReader("%PDF-1.4"), 8)
	require.NoError(t, err)
	require.Equal(t, "/uploads/inquiries/1/doc.pdf", obj.URL)
	require.Equal(t, int64(8), obj.Size)

	rc, err := p.Open(ctx, "inquiries/1/doc.pdf")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	require.Equal(t, "%PDF-1.4", string(data))

	require.NoError(t, p.Delete(ctx, "inquiries/1/doc.pdf"))
	_, err = p.Open(ctx, "inquiries/1/doc.pdf")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestLocalProviderRejectsTraversalAndOversize(t *testing.T) {
	p, err := NewLocal(t.TempDir(), "/uploads")
	require.NoError(t, err)
	ctx := context.Background()

	_, err = p.Put(ctx, "../escape.txt", "text/plain", strings.NewReader("x"), 1)
	require.ErrorIs(t, err, ErrInvalidKey)

	_, err = p.Put(ctx, "a/b.png", ContentTypePNG, strings.NewReader("too long"), 3)
	require.ErrorIs(t, err, ErrTooLarge)
}
