package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyBalance(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	future := now.Add(72 * time.Hour)
	past := now.Add(-72 * time.Hour)

	t.Run("full payment", func(t *testing.T) {
		inv := &Invoice{Status: InvoiceStatusSent, Total: d("270"), DueDate: future}
		inv.ApplyBalance(d("270"), now)
		assert.Equal(t, InvoiceStatusPaid, inv.Status)
		assert.True(t, inv.AmountDue.IsZero())
		require.NotNil(t, inv.PaidAt)
		assert.Equal(t, now, *inv.PaidAt)
	})

	t.Run("partial payment", func(t *testing.T) {
		inv := &Invoice{Status: InvoiceStatusViewed, Total: d("270"), DueDate: future}
		inv.ApplyBalance(d("170"), now)
		assert.Equal(t, InvoiceStatusPartiallyPaid, inv.Status)
		assert.True(t, inv.AmountDue.Equal(d("100")))
		assert.Nil(t, inv.PaidAt)
	})

	t.Run("overpayment becomes credit", func(t *testing.T) {
		inv := &Invoice{Status: InvoiceStatusSent, Total: d("100"), DueDate: future}
		inv.ApplyBalance(d("120"), now)
		assert.Equal(t, InvoiceStatusPaid, inv.Status)
		assert.True(t, inv.AmountDue.IsZero())
		assert.True(t, inv.CreditAmount.Equal(d("20")))
	})

	t.Run("paid to partial clears paidAt", func(t *testing.T) {
		paidAt := now.Add(-time.Hour)
		inv := &Invoice{Status: InvoiceStatusPaid, Total: d("270"), AmountPaid: d("270"), PaidAt: &paidAt, DueDate: future}
		inv.ApplyBalance(d("170"), now)
		assert.Equal(t, InvoiceStatusPartiallyPaid, inv.Status)
		assert.Nil(t, inv.PaidAt)
	})

	t.Run("fully refunded before due", func(t *testing.T) {
		inv := &Invoice{Status: InvoiceStatusPaid, Total: d("50"), DueDate: future}
		inv.ApplyBalance(d("0"), now)
		assert.Equal(t, InvoiceStatusSent, inv.Status)
		assert.True(t, inv.AmountDue.Equal(d("50")))
	})

	t.Run("fully refunded after due", func(t *testing.T) {
		inv := &Invoice{Status: InvoiceStatusPartiallyPaid, Total: d("50"), DueDate: past}
		inv.ApplyBalance(d("0"), now)
		assert.Equal(t, InvoiceStatusOverdue, inv.Status)
	})

	t.Run("zero balance keeps status", func(t *testing.T) {
		inv := &Invoice{Status: InvoiceStatusDraft, Total: d("50"), DueDate: past}
		inv.ApplyBalance(d("0"), now)
		assert.Equal(t, InvoiceStatusDraft, inv.Status)
	})

	t.Run("cancelled keeps status", func(t *testing.T) {
		inv := &Invoice{Status: InvoiceStatusCancelled, Total: d("50"), DueDate: future}
		inv.ApplyBalance(d("50"), now)
		assert.Equal(t, InvoiceStatusCancelled, inv.Status)
		assert.True(t, inv.AmountDue.IsZero())
	})
}

func TestDaysPastDue(t *testing.T) {
	now := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)
	inv := &Invoice{DueDate: now.AddDate(0, 0, -7)}
	assert.Equal(t, 7, inv.DaysPastDue(now))

	inv.DueDate = now.Add(-23 * time.Hour)
	assert.Equal(t, 0, inv.DaysPastDue(now))

	inv.DueDate = now.Add(time.Hour)
	assert.Equal(t, 0, inv.DaysPastDue(now))
}
