// Package pdf renders business documents with maroto.
package pdf

import (
	"context"
	"io"
)

type Provider interface {
	GenerateQuotation(ctx context.Context, data QuotationData) (io.Reader, error)
}

func New() Provider {
	return &MarotoProvider{}
}
