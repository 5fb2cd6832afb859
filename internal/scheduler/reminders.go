package scheduler

import (
	"context"

	"github.com/bwmarrin/snowflake"
	invoicedomain "github.com/smallbiznis/studioledger/internal/invoice/domain"
	"github.com/smallbiznis/studioledger/internal/notification"
	studiodomain "github.com/smallbiznis/studioledger/internal/studio/domain"
	"go.uber.org/zap"
)

var reminderStatuses = []invoicedomain.InvoiceStatus{
	invoicedomain.InvoiceStatusSent,
	invoicedomain.InvoiceStatusViewed,
	invoicedomain.InvoiceStatusPartiallyPaid,
	invoicedomain.InvoiceStatusOverdue,
}

// sendPaymentReminders emails clients whose invoice is exactly one of the
// escalation offsets past due. The reminder is claimed on the invoice
// before the email goes out, so a rerun on the same day sends nothing.
func (s *Scheduler) sendPaymentReminders(ctx context.Context, studioID snowflake.ID) (int, error) {
	policy := s.policy.Get()
	now := s.clock.Now().UTC()

	var studio *studiodomain.Studio
	sent := 0
	for _, days := range policy.EscalationDays {
		filter := invoicedomain.ReminderFilter{
			StudioID:    studioID,
			Statuses:    reminderStatuses,
			DaysPastDue: days,
			Now:         now,
			Limit:       s.cfg.BatchSize,
		}
		for {
			candidates, err := s.invoiceRepo.ListReminderCandidates(ctx, s.db, filter)
			if err != nil {
				return sent, err
			}
			if len(candidates) == 0 {
				break
			}
			if studio == nil {
				if studio, err = s.studioRepo.FindStudio(ctx, s.db, studioID); err != nil {
					return sent, err
				}
				if studio == nil {
					return sent, studiodomain.ErrStudioNotFound
				}
			}

			for _, candidate := range candidates {
				if err := ctx.Err(); err != nil {
					return sent, err
				}
				if s.remind(ctx, studio, candidate.ID, days) {
					sent++
				}
			}

			if len(candidates) < filter.Limit {
				break
			}
			filter.AfterID = candidates[len(candidates)-1].ID
		}
	}
	return sent, nil
}

func (s *Scheduler) remind(ctx context.Context, studio *studiodomain.Studio, invoiceID snowflake.ID, days int) bool {
	claim, err := s.invoiceSvc.ClaimReminder(ctx, studio.ID, invoiceID, days)
	if err != nil {
		s.logItemError(ctx, "failed to record payment reminder", err,
			zap.String("invoice_id", invoiceID.String()),
			zap.Int("days_past_due", days),
		)
		return false
	}
	if claim == nil {
		return false
	}

	if err := s.deliverReminder(ctx, studio, claim); err != nil {
		s.logItemError(ctx, "failed to send payment reminder", err,
			zap.String("invoice_id", invoiceID.String()),
			zap.Int("days_past_due", days),
		)
		return false
	}
	s.metrics.RecordReminderSent(ctx, days)
	return true
}

func (s *Scheduler) deliverReminder(ctx context.Context, studio *studiodomain.Studio, claim *invoicedomain.ReminderClaim) error {
	invoice := claim.Invoice
	client, err := s.studioRepo.FindClient(ctx, s.db, invoice.StudioID, invoice.ClientID)
	if err != nil {
		return err
	}
	if client == nil {
		return studiodomain.ErrClientNotFound
	}

	return s.notifier.PaymentReminder(ctx, notification.ReminderMessage{
		Studio:        notification.Studio{Name: studio.Name, Email: studio.Email},
		To:            notification.Recipient{Name: client.Name, Email: client.Email},
		InvoiceNumber: invoice.InvoiceNumber,
		Currency:      invoice.Currency,
		AmountDue:     invoice.AmountDue,
		DueDate:       invoice.DueDate,
		DaysPastDue:   claim.DaysPastDue,
		ViewURL:       s.publicURL(&invoice),
	})
}

func (s *Scheduler) publicURL(invoice *invoicedomain.Invoice) string {
	if s.cfg.PublicBaseURL == "" || invoice.PublicToken == "" {
		return ""
	}
	return s.cfg.PublicBaseURL + "/public/invoices/" + invoice.PublicToken
}
