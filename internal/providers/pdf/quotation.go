package pdf

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/props"
)

// QuotationData is a quotation with every amount already formatted.
type QuotationData struct {
	QuotationNumber string
	InquiryNumber   string
	Status          string
	IssueDate       string
	ValidUntil      string

	ForwarderName string
	ShipperName   string

	ServiceType     string
	Origin          string
	Destination     string
	Incoterm        string
	TransitTimeDays int

	Currency string
	Lines    []QuotationLine
	Total    string
	Notes    string
}

type QuotationLine struct {
	Description string
	Amount      string
}

type MarotoProvider struct{}

func (p *MarotoProvider) GenerateQuotation(ctx context.Context, q QuotationData) (io.Reader, error) {
	if q.QuotationNumber == "" {
		return nil, errors.New("quotation number is required")
	}

	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
		}).
		Build()

	m := maroto.New(cfg)

	m.AddRow(12,
		text.NewCol(8, "Freight quotation", props.Text{
			Size:  20,
			Style: fontstyle.Bold,
			Align: align.Left,
		}),
		text.NewCol(4, q.Status, props.Text{
			Size:  10,
			Style: fontstyle.Bold,
			Align: align.Right,
		}),
	)

	m.AddRow(20,
		col.New(6).Add(
			text.New("Quotation: "+q.QuotationNumber, props.Text{Top: 0}),
			text.New("Inquiry: "+q.InquiryNumber, props.Text{Top: 4}),
			text.New("Issued: "+q.IssueDate, props.Text{Top: 8}),
			text.New("Valid until: "+q.ValidUntil, props.Text{Top: 12}),
		),
		col.New(6).Add(
			text.New("From", props.Text{Style: fontstyle.Bold, Align: align.Right}),
			text.New(q.ForwarderName, props.Text{Top: 4, Align: align.Right}),
			text.New("To", props.Text{Top: 9, Style: fontstyle.Bold, Align: align.Right}),
			text.New(q.ShipperName, props.Text{Top: 13, Align: align.Right}),
		),
	)

	// Route
	m.AddRow(8, text.NewCol(12, "Route", props.Text{Size: 12, Style: fontstyle.Bold, Top: 2}))
	m.AddRow(16,
		col.New(4).Add(
			text.New("Origin", props.Text{Style: fontstyle.Bold, Size: 9}),
			text.New(q.Origin, props.Text{Top: 4, Size: 9}),
		),
		col.New(4).Add(
			text.New("Destination", props.Text{Style: fontstyle.Bold, Size: 9}),
			text.New(q.Destination, props.Text{Top: 4, Size: 9}),
		),
		col.New(4).Add(
			text.New("Service", props.Text{Style: fontstyle.Bold, Size: 9}),
			text.New(serviceLine(q), props.Text{Top: 4, Size: 9}),
		),
	)

	// Cost breakdown
	m.AddRow(10,
		text.NewCol(8, "Charge", props.Text{Style: fontstyle.Bold, Size: 9, Top: 3}),
		text.NewCol(4, "Amount ("+q.Currency+")", props.Text{Style: fontstyle.Bold, Size: 9, Top: 3, Align: align.Right}),
	)
	m.AddRow(2, line.NewCol(12))
	for _, item := range q.Lines {
		m.AddRow(7,
			text.NewCol(8, item.Description, props.Text{Size: 9}),
			text.NewCol(4, item.Amount, props.Text{Size: 9, Align: align.Right}),
		)
	}
	m.AddRow(2, line.NewCol(12))
	m.AddRow(10,
		col.New(6),
		text.NewCol(2, "Total", props.Text{Style: fontstyle.Bold, Size: 10}),
		text.NewCol(4, q.Currency+" "+q.Total, props.Text{Style: fontstyle.Bold, Size: 10, Align: align.Right}),
	)

	if q.Notes != "" {
		m.AddRow(8, text.NewCol(12, "Notes", props.Text{Style: fontstyle.Bold, Size: 9, Top: 3}))
		m.AddRow(20, text.NewCol(12, q.Notes, props.Text{Size: 9}))
	}

	doc, err := m.Generate()
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(doc.GetBytes()), nil
}

func serviceLine(q QuotationData) string {
	out := q.ServiceType
	if q.Incoterm != "" {
		out += " / " + q.Incoterm
	}
	if q.TransitTimeDays > 0 {
		out += fmt.Sprintf(" / %d days", q.TransitTimeDays)
	}
	return out
}
