package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	inquirydomain "github.com/smallbiznis/freightdesk/internal/inquiry/domain"
	"github.com/smallbiznis/freightdesk/internal/providers/pdf"
	"github.com/smallbiznis/freightdesk/internal/quotation/domain"
)

const defaultMinorUnit = 2

func (s *Service) Export(ctx context.Context, orgID, quotationID snowflake.ID) (*domain.Document, error) {
	quotation, err := s.Get(ctx, orgID, quotationID)
	if err != nil {
		return nil, err
	}
	inquiry, err := s.inquiries.FindByID(ctx, s.db, quotation.InquiryID)
	if err != nil {
		return nil, err
	}
	if inquiry == nil {
		return nil, inquirydomain.ErrInquiryNotFound
	}

	data := pdf.QuotationData{
		QuotationNumber: quotation.QuotationNumber,
		InquiryNumber:   inquiry.ReferenceNumber,
		Status:          strings.ToUpper(string(quotation.Status)),
		IssueDate:       formatDate(quotation.SubmittedAt, quotation.CreatedAt),
		ValidUntil:      formatDate(quotation.ValidUntil, time.Time{}),
		ForwarderName:   s.orgName(ctx, quotation.ForwarderOrgID),
		ShipperName:     s.orgName(ctx, inquiry.ShipperOrgID),
		ServiceType:     string(inquiry.ServiceType),
		Origin:          place(inquiry.OriginPort, inquiry.OriginCity, inquiry.OriginCountry),
		Destination:     place(inquiry.DestinationPort, inquiry.DestinationCity, inquiry.DestinationCountry),
		Incoterm:        inquiry.Incoterm,
		TransitTimeDays: quotation.TransitTimeDays,
		Currency:        quotation.Currency,
		Notes:           quotation.Notes,
	}

	minor := s.minorUnit(ctx, quotation.Currency)
	legs := []struct {
		name   string
		amount int64
	}{
		{"Pre-carriage", quotation.PreCarriage},
		{"Main carriage", quotation.MainCarriage},
		{"On-carriage", quotation.OnCarriage},
	}
	for _, leg := range legs {
		if leg.amount == 0 {
			continue
		}
		data.Lines = append(data.Lines, pdf.QuotationLine{Description: leg.name, Amount: FormatAmount(leg.amount, minor)})
	}
	for _, c := range quotation.AdditionalCharges {
		data.Lines = append(data.Lines, pdf.QuotationLine{Description: c.Name, Amount: FormatAmount(c.Amount, minor)})
	}
	data.Total = FormatAmount(quotation.TotalPrice, minor)

	body, err := s.pdf.GenerateQuotation(ctx, data)
	if err != nil {
		return nil, err
	}
	return &domain.Document{
		Filename:    quotation.QuotationNumber + ".pdf",
		ContentType: "application/pdf",
		Body:        body,
	}, nil
}

func (s *Service) orgName(ctx context.Context, orgID snowflake.ID) string {
	org, err := s.orgs.Get(ctx, orgID)
	if err != nil || org == nil {
		return orgID.String()
	}
	return org.Name
}

func (s *Service) minorUnit(ctx context.Context, code string) int {
	currencies, err := s.ref.ListCurrencies(ctx)
	if err != nil {
		return defaultMinorUnit
	}
	for _, c := range currencies {
		if strings.EqualFold(c.Code, code) {
			return int(c.MinorUnit)
		}
	}
	return defaultMinorUnit
}

// FormatAmount renders minor units with thousands separators, e.g.
// 123456 with two minor digits becomes "1,234.56".
func FormatAmount(amount int64, minorUnit int) string {
	negative := amount < 0
	if negative {
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	if minorUnit > 0 && len(digits) <= minorUnit {
		digits = strings.Repeat("0", minorUnit-len(digits)+1) + digits
	}
	whole, frac := digits, ""
	if minorUnit > 0 {
		whole, frac = digits[:len(digits)-minorUnit], digits[len(digits)-minorUnit:]
	}

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	for i, r := range whole {
		if i > 0 && (len(whole)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if frac != "" {
		b.WriteByte('.')
		b.WriteString(frac)
	}
	return b.String()
}

func formatDate(t *time.Time, fallback time.Time) string {
	if t != nil {
		return t.UTC().Format("2006-01-02")
	}
	if fallback.IsZero() {
		return "-"
	}
	return fallback.UTC().Format("2006-01-02")
}

func place(parts ...string) string {
	var out []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}
