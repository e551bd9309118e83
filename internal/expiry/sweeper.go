// Package expiry moves overdue inquiries and quotations into their expired
// status.
package expiry

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	activitydomain "github.com/smallbiznis/freightdesk/internal/activity/domain"
	"github.com/smallbiznis/freightdesk/internal/auditcontext"
	"github.com/smallbiznis/freightdesk/internal/clock"
	inquirydomain "github.com/smallbiznis/freightdesk/internal/inquiry/domain"
	"github.com/smallbiznis/freightdesk/internal/observability/metrics"
	quotationdomain "github.com/smallbiznis/freightdesk/internal/quotation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	DefaultInterval  = 5 * time.Minute
	DefaultBatchSize = 100

	kindInquiry   = "inquiry"
	kindQuotation = "quotation"
)

// Result counts the rows one sweep moved to expired.
type Result struct {
	Inquiries  int  `json:"inquiries"`
	Quotations int  `json:"quotations"`
	Skipped    bool `json:"skipped"`
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	Clock      clock.Clock
	Inquiries  inquirydomain.Repository
	Quotations quotationdomain.Repository
	Activity   activitydomain.Service
	Metrics    *metrics.Metrics `optional:"true"`
}

// Sweeper runs at most once per interval per process. Callers may invoke it
// as often as they like.
type Sweeper struct {
	db         *gorm.DB
	log        *zap.Logger
	clock      clock.Clock
	inquiries  inquirydomain.Repository
	quotations quotationdomain.Repository
	activity   activitydomain.Service
	metrics    *metrics.Metrics

	interval  time.Duration
	batchSize int

	mu      sync.Mutex
	lastRun time.Time
}

func NewSweeper(p Params) *Sweeper {
	return &Sweeper{
		db:         p.DB,
		log:        p.Log.Named("expiry"),
		clock:      p.Clock,
		inquiries:  p.Inquiries,
		quotations: p.Quotations,
		activity:   p.Activity,
		metrics:    p.Metrics,
		interval:   DefaultInterval,
		batchSize:  DefaultBatchSize,
	}
}

// CheckAndUpdateExpiredItems expires overdue open inquiries and submitted
// quotations. It never returns an error: failures are logged and reported
// as zero counts.
func (s *Sweeper) CheckAndUpdateExpiredItems(ctx context.Context) Result {
	now := s.clock.Now().UTC()

	s.mu.Lock()
	if !s.lastRun.IsZero() && now.Sub(s.lastRun) < s.interval {
		s.mu.Unlock()
		return Result{Skipped: true}
	}
	s.lastRun = now
	s.mu.Unlock()

	if actorType, _ := auditcontext.ActorFromContext(ctx); actorType == "" {
		ctx = auditcontext.WithActor(ctx, auditcontext.ActorTypeSystem, "scheduler")
	}

	var result Result
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		inquiries, err := s.expireInquiries(ctx, tx, now)
		if err != nil {
			return err
		}
		quotations, err := s.expireQuotations(ctx, tx, now)
		if err != nil {
			return err
		}
		result.Inquiries, result.Quotations = inquiries, quotations
		return nil
	})
	if err != nil {
		s.log.Warn("expiry sweep failed", zap.Error(err))
		return Result{}
	}

	s.metrics.RecordItemsExpired(ctx, kindInquiry, result.Inquiries)
	s.metrics.RecordItemsExpired(ctx, kindQuotation, result.Quotations)
	if result.Inquiries > 0 || result.Quotations > 0 {
		s.log.Info("expired overdue items",
			zap.Int("inquiries", result.Inquiries),
			zap.Int("quotations", result.Quotations),
		)
	}
	return result
}

func (s *Sweeper) expireInquiries(ctx context.Context, tx *gorm.DB, now time.Time) (int, error) {
	items, err := s.inquiries.ListOverdue(ctx, tx, now, s.batchSize)
	if err != nil || len(items) == 0 {
		return 0, err
	}
	ids := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	if _, err := s.inquiries.MarkExpired(ctx, tx, ids, now); err != nil {
		return 0, err
	}
	for _, item := range items {
		err := s.activity.Record(ctx, tx, activitydomain.RecordRequest{
			OrgID:    item.ShipperOrgID,
			Type:     activitydomain.TypeInquiryExpired,
			TargetID: item.ID.String(),
			Payload: map[string]any{
				"reference_number": item.ReferenceNumber,
				"validity_date":    item.ValidityDate,
			},
		})
		if err != nil {
			return 0, err
		}
	}
	return len(items), nil
}

func (s *Sweeper) expireQuotations(ctx context.Context, tx *gorm.DB, now time.Time) (int, error) {
	items, err := s.quotations.ListOverdue(ctx, tx, now, s.batchSize)
	if err != nil || len(items) == 0 {
		return 0, err
	}
	ids := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	if _, err := s.quotations.MarkExpired(ctx, tx, ids, now); err != nil {
		return 0, err
	}
	for _, item := range items {
		err := s.activity.Record(ctx, tx, activitydomain.RecordRequest{
			OrgID:    item.ForwarderOrgID,
			Type:     activitydomain.TypeQuotationExpired,
			TargetID: item.ID.String(),
			Payload: map[string]any{
				"quotation_number": item.QuotationNumber,
				"inquiry_id":       item.InquiryID.String(),
			},
		})
		if err != nil {
			return 0, err
		}
	}
	return len(items), nil
}
