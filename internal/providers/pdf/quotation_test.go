package pdf

import (
	"bytes"
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGenerateQuotation(t *testing.T) {
	p := New()

	r, err := p.GenerateQuotation(context.Background(), QuotationData{
		QuotationNumber: "QUO-202503-ABC",
		InquiryNumber:   "INQ-202503-XYZ",
		Status:          "submitted",
		ForwarderName:   "Blue Cargo",
		ShipperName:     "Acme Shipping",
		Origin:          "CNSHA, CN",
		Destination:     "DEHAM, DE",
		ServiceType:     "sea_fcl",
		Incoterm:        "FOB",
		TransitTimeDays: 32,
		Currency:        "EUR",
		Lines: []QuotationLine{
			{Description: "Main carriage", Amount: "1,200.00"},
			{Description: "THC", Amount: "150.00"},
		},
		Total: "1,350.00",
		Notes: "Subject to space",
	})
	require.NoError(t, err)

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	require.True(t, bytes.HasPrefix(body, []byte("%PDF")))

	_, err = p.GenerateQuotation(context.Background(), QuotationData{})
	require.Error(t, err)
}
