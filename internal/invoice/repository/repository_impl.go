package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/studioledger/internal/invoice/domain"
	"github.com/smallbiznis/studioledger/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, invoice *domain.Invoice) error {
	items := invoice.LineItems
	if err := conn.WithContext(ctx).Omit(clause.Associations).Create(invoice).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return conn.WithContext(ctx).Create(&items).Error
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, invoice *domain.Invoice) error {
	return conn.WithContext(ctx).
		Model(&domain.Invoice{}).
		Where("studio_id = ? AND id = ?", invoice.StudioID, invoice.ID).
		Select("*").
		Omit("id", "studio_id", "created_at", clause.Associations).
		Updates(invoice).Error
}

func (r *repo) ReplaceLineItems(ctx context.Context, conn *gorm.DB, invoiceID snowflake.ID, items []domain.LineItem) error {
	if err := conn.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Delete(&domain.LineItem{}).Error; err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}
	return conn.WithContext(ctx).Create(&items).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, studioID, id snowflake.ID) (*domain.Invoice, error) {
	return r.find(ctx, conn, conn.WithContext(ctx).Where("studio_id = ? AND id = ?", studioID, id))
}

// FindByIDForUpdate locks the invoice row for the rest of the transaction.
func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, studioID, id snowflake.ID) (*domain.Invoice, error) {
	return r.find(ctx, conn, db.ForUpdate(conn.WithContext(ctx)).Where("studio_id = ? AND id = ?", studioID, id))
}

func (r *repo) FindByPublicToken(ctx context.Context, conn *gorm.DB, token string) (*domain.Invoice, error) {
	return r.find(ctx, conn, conn.WithContext(ctx).Where("public_token = ?", token))
}

// find runs stmt for the invoice row, then loads its items on a fresh
// statement from conn so the invoice filters do not leak into that query.
func (r *repo) find(ctx context.Context, conn, stmt *gorm.DB) (*domain.Invoice, error) {
	var invoice domain.Invoice
	err := stmt.Take(&invoice).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	items, err := r.lineItems(ctx, conn, invoice.ID)
	if err != nil {
		return nil, err
	}
	invoice.LineItems = items
	return &invoice, nil
}

func (r *repo) lineItems(ctx context.Context, conn *gorm.DB, invoiceID snowflake.ID) ([]domain.LineItem, error) {
	var items []domain.LineItem
	err := conn.WithContext(ctx).
		Where("invoice_id = ?", invoiceID).
		Order("sort_order ASC").
		Order("id ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}

// List returns up to Limit+1 invoices, newest first.
func (r *repo) List(ctx context.Context, conn *gorm.DB, filter domain.ListFilter) ([]*domain.Invoice, error) {
	stmt := conn.WithContext(ctx).Model(&domain.Invoice{}).
		Where("studio_id = ?", filter.StudioID)
	if filter.Status != nil {
		stmt = stmt.Where("status = ?", *filter.Status)
	}
	if filter.ClientID != nil {
		stmt = stmt.Where("client_id = ?", *filter.ClientID)
	}
	if filter.Cursor != nil {
		stmt = stmt.Where("id < ?", *filter.Cursor)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var invoices []*domain.Invoice
	if err := stmt.Order("id DESC").Limit(limit + 1).Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}

func (r *repo) ListReminderCandidates(ctx context.Context, conn *gorm.DB, filter domain.ReminderFilter) ([]domain.Invoice, error) {
	// DaysPastDue floors whole days, so day d covers due dates in
	// (now-(d+1)*24h, now-d*24h].
	now := filter.Now.UTC()
	latest := now.Add(-time.Duration(filter.DaysPastDue) * 24 * time.Hour)
	earliest := latest.Add(-24 * time.Hour)

	stmt := conn.WithContext(ctx).
		Where("studio_id = ?", filter.StudioID).
		Where("status IN ?", filter.Statuses).
		Where("due_date > ? AND due_date <= ?", earliest, latest).
		Where("last_reminder_days < ?", filter.DaysPastDue).
		Where("id > ?", filter.AfterID)
	if filter.Limit > 0 {
		stmt = stmt.Limit(filter.Limit)
	}

	var invoices []domain.Invoice
	if err := stmt.Order("id ASC").Find(&invoices).Error; err != nil {
		return nil, err
	}
	return invoices, nil
}
