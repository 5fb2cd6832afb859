package repository

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/studioledger/internal/invoice/domain"
	"github.com/smallbiznis/studioledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func seedInvoice(t *testing.T, conn *gorm.DB, node *snowflake.Node, studioID snowflake.ID, token string, due time.Time) *domain.Invoice {
	t.Helper()

	id := node.Generate()
	invoice := &domain.Invoice{
		ID:            id,
		StudioID:      studioID,
		ClientID:      node.Generate(),
		InvoiceNumber: "INV-" + token,
		Status:        domain.InvoiceStatusSent,
		Currency:      "USD",
		IssueDate:     due.AddDate(0, 0, -30),
		DueDate:       due,
		Subtotal:      decimal.RequireFromString("250"),
		TaxRate:       decimal.RequireFromString("10"),
		TaxAmount:     decimal.RequireFromString("20"),
		Total:         decimal.RequireFromString("270"),
		AmountDue:     decimal.RequireFromString("270"),
		PublicToken:   token,
		LineItems: []domain.LineItem{
			{
				ID: node.Generate(), InvoiceID: id, Description: "Session",
				Quantity: decimal.NewFromInt(2), UnitPrice: decimal.NewFromInt(100), Total: decimal.NewFromInt(200),
				Taxable: true, TaxAmount: decimal.NewFromInt(20), SortOrder: 0,
			},
			{
				ID: node.Generate(), InvoiceID: id, Description: "Print credit",
				Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(50), Total: decimal.NewFromInt(50),
				Taxable: false, SortOrder: 1,
			},
		},
	}
	require.NoError(t, Provide().Insert(context.Background(), conn, invoice))
	return invoice
}

func assertItems(t *testing.T, got *domain.Invoice) {
	t.Helper()
	require.NotNil(t, got)
	require.Len(t, got.LineItems, 2)
	assert.Equal(t, "Session", got.LineItems[0].Description)
	assert.True(t, got.LineItems[0].Taxable)
	assert.Equal(t, "Print credit", got.LineItems[1].Description)
	assert.False(t, got.LineItems[1].Taxable)
}

func TestFindLoadsLineItems(t *testing.T) {
	conn := testutil.OpenDB(t, &domain.Invoice{}, &domain.LineItem{})
	node := testutil.Node(t)
	ctx := context.Background()
	studioID := node.Generate()
	invoice := seedInvoice(t, conn, node, studioID, "tok-1", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	r := Provide()

	got, err := r.FindByID(ctx, conn, studioID, invoice.ID)
	require.NoError(t, err)
	assertItems(t, got)

	got, err = r.FindByPublicToken(ctx, conn, "tok-1")
	require.NoError(t, err)
	assertItems(t, got)

	require.NoError(t, conn.Transaction(func(tx *gorm.DB) error {
		locked, err := r.FindByIDForUpdate(ctx, tx, studioID, invoice.ID)
		require.NoError(t, err)
		assertItems(t, locked)
		return nil
	}))

	missing, err := r.FindByID(ctx, conn, node.Generate(), invoice.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestReplaceLineItemsKeepsUntaxedFlag(t *testing.T) {
	conn := testutil.OpenDB(t, &domain.Invoice{}, &domain.LineItem{})
	node := testutil.Node(t)
	ctx := context.Background()
	studioID := node.Generate()
	invoice := seedInvoice(t, conn, node, studioID, "tok-1", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC))
	r := Provide()

	items := []domain.LineItem{{
		ID: node.Generate(), InvoiceID: invoice.ID, Description: "Travel",
		Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(30), Total: decimal.NewFromInt(30),
		Taxable: false,
	}}
	require.NoError(t, r.ReplaceLineItems(ctx, conn, invoice.ID, items))

	got, err := r.FindByID(ctx, conn, studioID, invoice.ID)
	require.NoError(t, err)
	require.Len(t, got.LineItems, 1)
	assert.Equal(t, "Travel", got.LineItems[0].Description)
	assert.False(t, got.LineItems[0].Taxable)
}

func TestListReminderCandidatesWindowsByDay(t *testing.T) {
	conn := testutil.OpenDB(t, &domain.Invoice{}, &domain.LineItem{})
	node := testutil.Node(t)
	ctx := context.Background()
	studioID := node.Generate()
	now := time.Date(2025, 4, 1, 12, 0, 0, 0, time.UTC)

	old := seedInvoice(t, conn, node, studioID, "tok-old", now.AddDate(0, 0, -20))
	due7 := seedInvoice(t, conn, node, studioID, "tok-7", now.AddDate(0, 0, -7).Add(-time.Hour))
	seedInvoice(t, conn, node, studioID, "tok-6", now.AddDate(0, 0, -6))

	filter := domain.ReminderFilter{
		StudioID:    studioID,
		Statuses:    []domain.InvoiceStatus{domain.InvoiceStatusSent},
		DaysPastDue: 7,
		Now:         now,
		Limit:       1,
	}
	got, err := Provide().ListReminderCandidates(ctx, conn, filter)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, due7.ID, got[0].ID, "older overdue invoices do not fill the window")

	filter.AfterID = due7.ID
	got, err = Provide().ListReminderCandidates(ctx, conn, filter)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, conn.Model(&domain.Invoice{}).Where("id = ?", old.ID).Update("last_reminder_days", 20).Error)
	filter.DaysPastDue = 20
	filter.AfterID = 0
	got, err = Provide().ListReminderCandidates(ctx, conn, filter)
	require.NoError(t, err)
	assert.Empty(t, got, "a stage already sent is not offered again")
}
