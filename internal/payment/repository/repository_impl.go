package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/studioledger/internal/payment/domain"
	"github.com/smallbiznis/studioledger/pkg/db"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, conn *gorm.DB, payment *domain.Payment) error {
	return conn.WithContext(ctx).Create(payment).Error
}

func (r *repo) Update(ctx context.Context, conn *gorm.DB, payment *domain.Payment) error {
	return conn.WithContext(ctx).
		Model(&domain.Payment{}).
		Where("studio_id = ? AND id = ?", payment.StudioID, payment.ID).
		Select("*").
		Omit("id", "studio_id", "gateway", "gateway_transaction_id", "created_at").
		Updates(payment).Error
}

func (r *repo) FindByID(ctx context.Context, conn *gorm.DB, studioID, id snowflake.ID) (*domain.Payment, error) {
	return find(conn.WithContext(ctx).Where("studio_id = ? AND id = ?", studioID, id))
}

func (r *repo) FindByIDForUpdate(ctx context.Context, conn *gorm.DB, studioID, id snowflake.ID) (*domain.Payment, error) {
	return find(db.ForUpdate(conn.WithContext(ctx)).Where("studio_id = ? AND id = ?", studioID, id))
}

func (r *repo) FindByTransactionForUpdate(ctx context.Context, conn *gorm.DB, gateway, transactionID string) (*domain.Payment, error) {
	return find(db.ForUpdate(conn.WithContext(ctx)).
		Where("gateway = ? AND gateway_transaction_id = ?", gateway, transactionID))
}

func find(stmt *gorm.DB) (*domain.Payment, error) {
	var payment domain.Payment
	err := stmt.Take(&payment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

func (r *repo) ListByInvoice(ctx context.Context, conn *gorm.DB, studioID, invoiceID snowflake.ID) ([]domain.Payment, error) {
	var payments []domain.Payment
	err := conn.WithContext(ctx).
		Where("studio_id = ? AND invoice_id = ?", studioID, invoiceID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&payments).Error
	if err != nil {
		return nil, err
	}
	return payments, nil
}

func (r *repo) SettledTotal(ctx context.Context, conn *gorm.DB, studioID, invoiceID snowflake.ID) (decimal.Decimal, error) {
	var rows []struct {
		Amount       decimal.Decimal
		RefundAmount decimal.Decimal
	}
	err := conn.WithContext(ctx).
		Model(&domain.Payment{}).
		Select("amount", "refund_amount").
		Where("studio_id = ? AND invoice_id = ?", studioID, invoiceID).
		Where("status IN ?", []domain.PaymentStatus{domain.PaymentStatusCompleted, domain.PaymentStatusRefunded}).
		Scan(&rows).Error
	if err != nil {
		return decimal.Zero, err
	}

	total := decimal.Zero
	for _, row := range rows {
		total = total.Add(row.Amount.Sub(row.RefundAmount))
	}
	return total.Round(2), nil
}

func (r *repo) InsertWebhookEvent(ctx context.Context, conn *gorm.DB, event *domain.WebhookEvent) (bool, error) {
	res := conn.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "gateway"}, {Name: "event_id"}},
			DoNothing: true,
		}).
		Create(event)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repo) FindWebhookEvent(ctx context.Context, conn *gorm.DB, gateway, eventID string) (*domain.WebhookEvent, error) {
	var event domain.WebhookEvent
	err := conn.WithContext(ctx).
		Where("gateway = ? AND event_id = ?", gateway, eventID).
		Take(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &event, nil
}

func (r *repo) MarkWebhookProcessed(ctx context.Context, conn *gorm.DB, id snowflake.ID, processedAt time.Time) error {
	return conn.WithContext(ctx).
		Model(&domain.WebhookEvent{}).
		Where("id = ?", id).
		Update("processed_at", processedAt).Error
}
