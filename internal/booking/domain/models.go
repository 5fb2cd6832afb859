package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/studioledger/internal/apperr"
	"gorm.io/gorm"
)

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCompleted BookingStatus = "COMPLETED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
)

type Booking struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	StudioID    snowflake.ID    `gorm:"not null;index" json:"studio_id"`
	ClientID    snowflake.ID    `gorm:"not null;index" json:"client_id"`
	Title       string          `gorm:"type:text;not null" json:"title"`
	StartTime   time.Time       `gorm:"not null" json:"start_time"`
	EndTime     time.Time       `gorm:"not null" json:"end_time"`
	Status      BookingStatus   `gorm:"type:text;not null" json:"status"`
	IsRecurring bool            `gorm:"not null;default:false" json:"is_recurring"`
	TotalPrice  decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"total_price"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Booking) TableName() string { return "bookings" }

type Repository interface {
	FindByID(ctx context.Context, db *gorm.DB, studioID, id snowflake.ID) (*Booking, error)
	// ListRecurringUninvoiced returns up to limit completed recurring
	// bookings with no invoice and an id above afterID, in id order.
	ListRecurringUninvoiced(ctx context.Context, db *gorm.DB, studioID, afterID snowflake.ID, limit int) ([]Booking, error)
	UpdateStatus(ctx context.Context, db *gorm.DB, studioID, id snowflake.ID, status BookingStatus, now time.Time) error
}

var (
	ErrBookingNotFound = apperr.New(apperr.ErrNotFound, "booking_not_found")
	ErrInvalidBooking  = apperr.New(apperr.ErrValidation, "invalid_booking_id")
)
