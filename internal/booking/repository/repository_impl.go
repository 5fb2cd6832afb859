package repository

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/studioledger/internal/booking/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, studioID, id snowflake.ID) (*domain.Booking, error) {
	var booking domain.Booking
	err := db.WithContext(ctx).
		Where("studio_id = ? AND id = ?", studioID, id).
		Take(&booking).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &booking, nil
}

func (r *repo) ListRecurringUninvoiced(ctx context.Context, db *gorm.DB, studioID, afterID snowflake.ID, limit int) ([]domain.Booking, error) {
	var bookings []domain.Booking
	stmt := db.WithContext(ctx).
		Where("bookings.studio_id = ?", studioID).
		Where("bookings.is_recurring = ?", true).
		Where("bookings.status = ?", domain.BookingStatusCompleted).
		Where("NOT EXISTS (SELECT 1 FROM invoices WHERE invoices.booking_id = bookings.id)").
		Where("bookings.id > ?", afterID).
		Order("bookings.id ASC")
	if limit > 0 {
		stmt = stmt.Limit(limit)
	}
	if err := stmt.Find(&bookings).Error; err != nil {
		return nil, err
	}
	return bookings, nil
}

func (r *repo) UpdateStatus(ctx context.Context, db *gorm.DB, studioID, id snowflake.ID, status domain.BookingStatus, now time.Time) error {
	result := db.WithContext(ctx).Model(&domain.Booking{}).
		Where("studio_id = ? AND id = ?", studioID, id).
		Updates(map[string]any{
			"status":     status,
			"updated_at": now.UTC(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrBookingNotFound
	}
	return nil
}
