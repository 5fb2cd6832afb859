package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/studioledger/internal/studio/domain"
	"github.com/smallbiznis/studioledger/pkg/db"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindStudio(ctx context.Context, conn *gorm.DB, id snowflake.ID) (*domain.Studio, error) {
	var studio domain.Studio
	err := conn.WithContext(ctx).Where("id = ?", id).Take(&studio).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &studio, nil
}

func (r *repo) ListStudioIDs(ctx context.Context, conn *gorm.DB) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := conn.WithContext(ctx).Model(&domain.Studio{}).Order("id ASC").Pluck("id", &ids).Error
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// NextInvoiceNumber must run inside a transaction; the studio row stays locked
// until it commits so concurrent creations never share a number.
func (r *repo) NextInvoiceNumber(ctx context.Context, tx *gorm.DB, studioID snowflake.ID) (int64, error) {
	var studio domain.Studio
	err := db.ForUpdate(tx.WithContext(ctx)).
		Select("id", "next_invoice_number").
		Where("id = ?", studioID).
		Take(&studio).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, domain.ErrStudioNotFound
	}
	if err != nil {
		return 0, err
	}

	number := studio.NextInvoiceNumber
	if number <= 0 {
		number = 1
	}
	err = tx.WithContext(ctx).Model(&domain.Studio{}).
		Where("id = ?", studioID).
		Updates(map[string]any{
			"next_invoice_number": number + 1,
			"updated_at":          time.Now().UTC(),
		}).Error
	if err != nil {
		return 0, err
	}
	return number, nil
}

func (r *repo) FindClient(ctx context.Context, conn *gorm.DB, studioID, id snowflake.ID) (*domain.Client, error) {
	var client domain.Client
	err := conn.WithContext(ctx).
		Where("studio_id = ? AND id = ?", studioID, id).
		Take(&client).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &client, nil
}

func (r *repo) ListMarketingClients(ctx context.Context, conn *gorm.DB, studioID snowflake.ID) ([]domain.Client, error) {
	var clients []domain.Client
	err := conn.WithContext(ctx).
		Where("studio_id = ? AND email_opt_in = ? AND email <> ''", studioID, true).
		Order("id ASC").
		Find(&clients).Error
	if err != nil {
		return nil, err
	}
	return clients, nil
}

func (r *repo) SetStripeCustomerID(ctx context.Context, conn *gorm.DB, studioID, clientID snowflake.ID, customerID string) error {
	return conn.WithContext(ctx).Model(&domain.Client{}).
		Where("studio_id = ? AND id = ?", studioID, clientID).
		Updates(map[string]any{
			"stripe_customer_id": customerID,
			"updated_at":         time.Now().UTC(),
		}).Error
}

// RecalculateLifetimeSpend recomputes the client's billed total from its
// non-cancelled invoices instead of adjusting a running counter.
func (r *repo) RecalculateLifetimeSpend(ctx context.Context, conn *gorm.DB, studioID, clientID snowflake.ID) error {
	var totals []decimal.Decimal
	err := conn.WithContext(ctx).
		Table("invoices").
		Where("studio_id = ? AND client_id = ? AND status <> ?", studioID, clientID, "CANCELLED").
		Pluck("total", &totals).Error
	if err != nil {
		return fmt.Errorf("load client invoice totals: %w", err)
	}

	spend := decimal.Zero
	for _, total := range totals {
		spend = spend.Add(total)
	}

	return conn.WithContext(ctx).Model(&domain.Client{}).
		Where("studio_id = ? AND id = ?", studioID, clientID).
		Updates(map[string]any{
			"lifetime_spend": spend.Round(2),
			"updated_at":     time.Now().UTC(),
		}).Error
}
