package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	bookingdomain "github.com/smallbiznis/studioledger/internal/booking/domain"
	invoicedomain "github.com/smallbiznis/studioledger/internal/invoice/domain"
	"go.uber.org/zap"
)

// SourceRecurring tags invoices created by the recurring sweep.
const SourceRecurring = "recurring"

// processRecurringInvoices invoices every completed recurring booking that
// has no invoice yet. Each booking is its own unit of work, and the sweep
// pages by booking id so bookings that keep failing never hide later ones.
func (s *Scheduler) processRecurringInvoices(ctx context.Context, studioID snowflake.ID) (int, error) {
	termDays := s.policy.Get().RecurringTermDays
	now := s.clock.Now().UTC()
	created := 0

	var afterID snowflake.ID
	for {
		bookings, err := s.bookingRepo.ListRecurringUninvoiced(ctx, s.db, studioID, afterID, s.cfg.BatchSize)
		if err != nil {
			return created, err
		}
		for _, booking := range bookings {
			if err := ctx.Err(); err != nil {
				return created, err
			}
			if s.invoiceBooking(ctx, booking, now, termDays) {
				created++
			}
		}
		if len(bookings) < s.cfg.BatchSize {
			return created, nil
		}
		afterID = bookings[len(bookings)-1].ID
	}
}

func (s *Scheduler) invoiceBooking(ctx context.Context, booking bookingdomain.Booking, now time.Time, termDays int) bool {
	invoice, err := s.invoiceSvc.CreateInvoice(ctx, invoicedomain.CreateInvoiceRequest{
		ClientID:  booking.ClientID.String(),
		BookingID: booking.ID.String(),
		DueDate:   now.AddDate(0, 0, termDays),
		LineItems: []invoicedomain.LineItemInput{{
			Description: booking.Title,
			Quantity:    decimal.NewFromInt(1),
			UnitPrice:   booking.TotalPrice,
		}},
		PaymentTerms: fmt.Sprintf("Net %d", termDays),
		Metadata:     map[string]any{"source": SourceRecurring},
	})
	if err != nil {
		if !errors.Is(err, invoicedomain.ErrBookingInvoiced) {
			s.logItemError(ctx, "failed to create recurring invoice", err,
				zap.String("booking_id", booking.ID.String()),
			)
		}
		return false
	}

	if _, err := s.invoiceSvc.SendInvoice(ctx, invoice.ID.String()); err != nil {
		s.logItemError(ctx, "failed to send recurring invoice", err,
			zap.String("booking_id", booking.ID.String()),
			zap.String("invoice_id", invoice.ID.String()),
		)
		return true
	}
	s.logger(ctx).Info("recurring invoice created",
		zap.String("booking_id", booking.ID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
	)
	return true
}
