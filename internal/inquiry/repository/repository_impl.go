package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/freightdesk/internal/inquiry/domain"
	"github.com/smallbiznis/freightdesk/pkg/db"
	"gorm.io/gorm"
)

const quotationsTable = "quotations"

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, inquiry *domain.Inquiry) error {
	return conn.WithContext(ctx).Create(inquiry).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Inquiry, error) {
	var inquiry domain.Inquiry
	err := conn.WithContext(ctx).
		Preload("Packages", func(tx *gorm.DB) *gorm.DB { return tx.Order("id asc") }).
		First(&inquiry, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inquiry, nil
}

func (r *repo) Lock(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Inquiry, error) {
	var inquiry domain.Inquiry
	err := db.ForUpdate(conn.WithContext(ctx)).First(&inquiry, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &inquiry, nil
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, id snowflake.ID, fields map[string]any) error {
	return conn.WithContext(ctx).Model(&domain.Inquiry{}).Where("id = ?", id).Updates(fields).Error
}

func (r *repo) ReplacePackages(ctx context.Context, conn *gorm.DB, inquiryID snowflake.ID, packages []domain.Package) error {
	if err := conn.WithContext(ctx).Where("inquiry_id = ?", inquiryID).Delete(&domain.Package{}).Error; err != nil {
		return err
	}
	if len(packages) == 0 {
		return nil
	}
	return conn.WithContext(ctx).Create(&packages).Error
}

func (r *repo) ListByShipper(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]*domain.Inquiry, error) {
	stmt := conn.WithContext(ctx).Model(&domain.Inquiry{}).
		Where("shipper_org_id = ?", filter.OrgID)
	return r.page(stmt, "", filter)
}

func (r *repo) ListInbox(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]*domain.Inquiry, error) {
	stmt := conn.WithContext(ctx).Model(&domain.Inquiry{}).
		Joins("JOIN inquiry_forwarders f ON f.inquiry_id = inquiries.id").
		Where("f.forwarder_org_id = ?", filter.OrgID).
		Where("inquiries.status <> ?", domain.StatusDraft)
	return r.page(stmt, "inquiries.", filter)
}

func (r *repo) page(stmt *gorm.DB, prefix string, filter domain.ListFilter) ([]*domain.Inquiry, error) {
	if filter.Status != "" {
		stmt = stmt.Where(prefix+"status = ?", filter.Status)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("("+prefix+"created_at < ?) OR ("+prefix+"created_at = ? AND "+prefix+"id < ?)",
			filter.Cursor.CreatedAt,
			filter.Cursor.CreatedAt,
			filter.Cursor.ID,
		)
	}
	stmt = stmt.Order(prefix + "created_at desc").Order(prefix + "id desc")
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit + 1)
	}

	var items []*domain.Inquiry
	if err := stmt.Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (r *repo) InsertRecipients(ctx context.Context, conn *gorm.DB, recipients []domain.Recipient) error {
	if len(recipients) == 0 {
		return nil
	}
	return conn.WithContext(ctx).Create(&recipients).Error
}

func (r *repo) ListRecipients(ctx context.Context, conn *gorm.DB, inquiryIDs ...snowflake.ID) ([]domain.Recipient, error) {
	if len(inquiryIDs) == 0 {
		return nil, nil
	}
	var recipients []domain.Recipient
	err := conn.WithContext(ctx).
		Where("inquiry_id IN ?", inquiryIDs).
		Order("sent_at asc, id asc").
		Find(&recipients).Error
	return recipients, err
}

func (r *repo) FindRecipient(ctx context.Context, conn *gorm.DB, inquiryID, forwarderOrgID snowflake.ID) (*domain.Recipient, error) {
	var recipient domain.Recipient
	err := conn.WithContext(ctx).
		Where("inquiry_id = ? AND forwarder_org_id = ?", inquiryID, forwarderOrgID).
		First(&recipient).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &recipient, nil
}

func (r *repo) UpdateRecipient(ctx context.Context, conn *gorm.DB, id snowflake.ID, fields map[string]any) error {
	return conn.WithContext(ctx).Model(&domain.Recipient{}).Where("id = ?", id).Updates(fields).Error
}

func (r *repo) InsertDocument(ctx context.Context, conn *gorm.DB, doc *domain.Document) error {
	return conn.WithContext(ctx).Create(doc).Error
}

func (r *repo) ListDocuments(ctx context.Context, conn *gorm.DB, inquiryID snowflake.ID) ([]domain.Document, error) {
	var docs []domain.Document
	err := conn.WithContext(ctx).
		Where("inquiry_id = ?", inquiryID).
		Order("created_at asc, id asc").
		Find(&docs).Error
	return docs, err
}

func (r *repo) WithdrawOpenQuotations(ctx context.Context, conn *gorm.DB, inquiryID snowflake.ID, forwarderOrgID *snowflake.ID, now time.Time) (int64, error) {
	stmt := conn.WithContext(ctx).Table(quotationsTable).
		Where("inquiry_id = ? AND status IN ?", inquiryID, []string{"draft", "submitted"})
	if forwarderOrgID != nil {
		stmt = stmt.Where("forwarder_org_id = ?", *forwarderOrgID)
	}
	res := stmt.Updates(map[string]any{
		"status":       "withdrawn",
		"withdrawn_at": now,
		"updated_at":   now,
	})
	return res.RowsAffected, res.Error
}

// CountActiveQuotations counts quotations still in play. Withdrawn and expired
// ones are left out.
func (r *repo) CountActiveQuotations(ctx context.Context, conn *gorm.DB, inquiryID snowflake.ID) (int64, error) {
	var count int64
	err := conn.WithContext(ctx).Table(quotationsTable).
		Where("inquiry_id = ? AND status IN ?", inquiryID, []string{"draft", "submitted", "accepted"}).
		Count(&count).Error
	return count, err
}

func (r *repo) ListOverdue(ctx context.Context, conn *gorm.DB, now time.Time, limit int) ([]domain.Inquiry, error) {
	var items []domain.Inquiry
	err := db.ForUpdateSkipLocked(conn.WithContext(ctx)).
		Where("status = ? AND validity_date IS NOT NULL AND validity_date <= ?", domain.StatusOpen, now).
		Order("validity_date asc").
		Limit(limit).
		Find(&items).Error
	return items, err
}

func (r *repo) MarkExpired(ctx context.Context, conn *gorm.DB, ids []snowflake.ID, now time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := conn.WithContext(ctx).Model(&domain.Inquiry{}).
		Where("id IN ? AND status = ?", ids, domain.StatusOpen).
		Updates(map[string]any{
			"status":     domain.StatusExpired,
			"closed_at":  now,
			"updated_at": now,
		})
	return res.RowsAffected, res.Error
}
