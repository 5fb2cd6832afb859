package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApplyBalance sets the paid amount and derives amountDue, creditAmount,
// status and paidAt from it. Cancelled invoices keep their status.
func (inv *Invoice) ApplyBalance(amountPaid decimal.Decimal, now time.Time) {
	if amountPaid.IsNegative() {
		amountPaid = decimal.Zero
	}
	amountPaid = amountPaid.Round(2)

	inv.AmountPaid = amountPaid
	inv.AmountDue = decimal.Max(decimal.Zero, inv.Total.Sub(amountPaid))
	inv.CreditAmount = decimal.Max(decimal.Zero, amountPaid.Sub(inv.Total))

	if inv.Status == InvoiceStatusCancelled {
		return
	}

	switch {
	case amountPaid.IsPositive() && !amountPaid.LessThan(inv.Total):
		inv.Status = InvoiceStatusPaid
		if inv.PaidAt == nil {
			paidAt := now.UTC()
			inv.PaidAt = &paidAt
		}
	case amountPaid.IsPositive():
		inv.Status = InvoiceStatusPartiallyPaid
		inv.PaidAt = nil
	default:
		inv.PaidAt = nil
		if inv.Status == InvoiceStatusPaid || inv.Status == InvoiceStatusPartiallyPaid {
			if inv.DueDate.Before(now) {
				inv.Status = InvoiceStatusOverdue
			} else {
				inv.Status = InvoiceStatusSent
			}
		}
	}
}

// DaysPastDue counts whole days elapsed since the due date.
func (inv *Invoice) DaysPastDue(now time.Time) int {
	if !inv.DueDate.Before(now) {
		return 0
	}
	return int(now.Sub(inv.DueDate) / (24 * time.Hour))
}

// Payable reports whether the invoice can still accept payments.
func (inv *Invoice) Payable() bool {
	return inv.Status != InvoiceStatusCancelled && inv.Status != InvoiceStatusPaid
}
