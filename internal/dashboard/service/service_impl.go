package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/freightdesk/internal/clock"
	"github.com/smallbiznis/freightdesk/internal/dashboard/domain"
	orgdomain "github.com/smallbiznis/freightdesk/internal/organization/domain"
	quotationdomain "github.com/smallbiznis/freightdesk/internal/quotation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
	Orgs  orgdomain.Service
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
	orgs  orgdomain.Service
}

func NewService(p Params) domain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("dashboard.service"),
		clock: p.Clock,
		orgs:  p.Orgs,
	}
}

func (s *Service) Get(ctx context.Context, orgID snowflake.ID, req domain.Request) (*domain.Dashboard, error) {
	if orgID == 0 {
		return nil, domain.ErrInvalidOrganization
	}
	window, err := resolveRange(req, s.clock.Now())
	if err != nil {
		return nil, err
	}
	org, err := s.orgs.Get(ctx, orgID)
	if err != nil {
		if errors.Is(err, orgdomain.ErrOrganizationNotFound) {
			return nil, domain.ErrInvalidOrganization
		}
		return nil, err
	}

	out := &domain.Dashboard{OrgType: string(org.Type), Range: window}
	// Queries treat To as exclusive.
	start, end := window.From, window.To.AddDate(0, 0, 1)

	switch org.Type {
	case orgdomain.TypeShipper:
		view, err := s.shipperView(ctx, orgID, start, end)
		if err != nil {
			return nil, err
		}
		out.Shipper = view
	case orgdomain.TypeForwarder:
		view, err := s.forwarderView(ctx, orgID, start, end)
		if err != nil {
			return nil, err
		}
		out.Forwarder = view
	default:
		return nil, domain.ErrInvalidOrganization
	}
	return out, nil
}

func resolveRange(req domain.Request, now time.Time) (domain.Range, error) {
	if req.From != nil || req.To != nil {
		if req.From == nil || req.To == nil {
			return domain.Range{}, domain.ErrInvalidRange
		}
		from, to := truncateToDay(*req.From), truncateToDay(*req.To)
		if to.Before(from) {
			return domain.Range{}, domain.ErrInvalidRange
		}
		return domain.Range{From: from, To: to}, nil
	}

	window := req.Window
	if window == "" {
		window = domain.DefaultWindow
	}
	if !window.Valid() {
		return domain.Range{}, domain.ErrInvalidWindow
	}

	to := truncateToDay(now)
	var from time.Time
	switch window {
	case domain.Window7Days:
		from = to.AddDate(0, 0, -6)
	case domain.Window30Days:
		from = to.AddDate(0, 0, -29)
	case domain.Window90Days:
		from = to.AddDate(0, 0, -89)
	case domain.Window12Month:
		from = to.AddDate(-1, 0, 1)
	}
	return domain.Range{Window: window, From: from, To: to}, nil
}

func truncateToDay(value time.Time) time.Time {
	value = value.UTC()
	return time.Date(value.Year(), value.Month(), value.Day(), 0, 0, 0, 0, time.UTC)
}

type groupRow struct {
	Key   string `gorm:"column:group_key"`
	Count int64  `gorm:"column:total"`
}

type amountRow struct {
	Currency string `gorm:"column:currency"`
	Amount   int64  `gorm:"column:amount"`
}

func (s *Service) shipperView(ctx context.Context, orgID snowflake.ID, start, end time.Time) (*domain.ShipperView, error) {
	conn := s.db.WithContext(ctx)
	created := func() *gorm.DB {
		return conn.Table("inquiries").
			Where("shipper_org_id = ? AND created_at >= ? AND created_at < ?", orgID, start, end)
	}

	var byStatus []groupRow
	if err := created().Select("status AS group_key, COUNT(*) AS total").
		Group("status").Order("status").Scan(&byStatus).Error; err != nil {
		return nil, err
	}
	var byService []groupRow
	if err := created().Select("service_type AS group_key, COUNT(*) AS total").
		Group("service_type").Scan(&byService).Error; err != nil {
		return nil, err
	}

	var sent int64
	if err := conn.Table("inquiries").
		Where("shipper_org_id = ? AND sent_at >= ? AND sent_at < ?", orgID, start, end).
		Count(&sent).Error; err != nil {
		return nil, err
	}
	var received int64
	if err := conn.Table("quotations AS q").
		Joins("JOIN inquiries i ON i.id = q.inquiry_id").
		Where("i.shipper_org_id = ? AND i.sent_at >= ? AND i.sent_at < ?", orgID, start, end).
		Where("q.submitted_at IS NOT NULL").
		Count(&received).Error; err != nil {
		return nil, err
	}

	var spend []amountRow
	if err := conn.Table("quotations AS q").
		Select("q.currency AS currency, COALESCE(SUM(q.total_price), 0) AS amount").
		Joins("JOIN inquiries i ON i.id = q.inquiry_id").
		Where("i.shipper_org_id = ? AND q.status = ?", orgID, quotationdomain.StatusAccepted).
		Where("q.decided_at >= ? AND q.decided_at < ?", start, end).
		Group("q.currency").Order("q.currency").
		Scan(&spend).Error; err != nil {
		return nil, err
	}

	view := &domain.ShipperView{
		InquiriesByStatus: statusCounts(byStatus),
		ServiceTypes:      shares(byService),
		SentInquiries:     sent,
		Spend:             amounts(spend),
	}
	for _, row := range byStatus {
		view.TotalInquiries += row.Count
	}
	if sent > 0 {
		view.AverageQuotationsPerInquiry = round(float64(received)/float64(sent), 2)
	}
	return view, nil
}

func (s *Service) forwarderView(ctx context.Context, orgID snowflake.ID, start, end time.Time) (*domain.ForwarderView, error) {
	conn := s.db.WithContext(ctx)

	var byService []groupRow
	if err := conn.Table("inquiry_forwarders AS f").
		Select("i.service_type AS group_key, COUNT(*) AS total").
		Joins("JOIN inquiries i ON i.id = f.inquiry_id").
		Where("f.forwarder_org_id = ? AND f.sent_at >= ? AND f.sent_at < ?", orgID, start, end).
		Group("i.service_type").
		Scan(&byService).Error; err != nil {
		return nil, err
	}

	var byStatus []groupRow
	if err := conn.Table("quotations").
		Select("status AS group_key, COUNT(*) AS total").
		Where("forwarder_org_id = ? AND created_at >= ? AND created_at < ?", orgID, start, end).
		Group("status").Order("status").
		Scan(&byStatus).Error; err != nil {
		return nil, err
	}

	var decided []groupRow
	if err := conn.Table("quotations").
		Select("status AS group_key, COUNT(*) AS total").
		Where("forwarder_org_id = ? AND status IN ?", orgID,
			[]quotationdomain.Status{quotationdomain.StatusAccepted, quotationdomain.StatusRejected}).
		Where("decided_at >= ? AND decided_at < ?", start, end).
		Group("status").
		Scan(&decided).Error; err != nil {
		return nil, err
	}

	var revenue []amountRow
	if err := conn.Table("quotations").
		Select("currency, COALESCE(SUM(total_price), 0) AS amount").
		Where("forwarder_org_id = ? AND status = ?", orgID, quotationdomain.StatusAccepted).
		Where("decided_at >= ? AND decided_at < ?", start, end).
		Group("currency").Order("currency").
		Scan(&revenue).Error; err != nil {
		return nil, err
	}

	view := &domain.ForwarderView{
		ServiceTypes:       shares(byService),
		QuotationsByStatus: statusCounts(byStatus),
		Revenue:            amounts(revenue),
	}
	for _, row := range byService {
		view.ReceivedInquiries += row.Count
	}

	var won, lost int64
	for _, row := range decided {
		switch quotationdomain.Status(row.Key) {
		case quotationdomain.StatusAccepted:
			won = row.Count
		case quotationdomain.StatusRejected:
			lost = row.Count
		}
	}
	if won+lost > 0 {
		rate := round(float64(won)/float64(won+lost), 4)
		view.WinRate = &rate
	}
	return view, nil
}

func statusCounts(rows []groupRow) []domain.StatusCount {
	out := make([]domain.StatusCount, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.StatusCount{Status: row.Key, Count: row.Count})
	}
	return out
}

// shares orders by count desc then name, percentages to one decimal.
func shares(rows []groupRow) []domain.ServiceTypeShare {
	var total int64
	for _, row := range rows {
		total += row.Count
	}
	out := make([]domain.ServiceTypeShare, 0, len(rows))
	for _, row := range rows {
		share := domain.ServiceTypeShare{ServiceType: row.Key, Count: row.Count}
		if total > 0 {
			share.Percentage = round(float64(row.Count)*100/float64(total), 1)
		}
		out = append(out, share)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].ServiceType < out[j].ServiceType
	})
	return out
}

func amounts(rows []amountRow) []domain.CurrencyAmount {
	out := make([]domain.CurrencyAmount, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.CurrencyAmount{Currency: row.Currency, Amount: row.Amount})
	}
	return out
}

func round(value float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(value*pow) / pow
}
