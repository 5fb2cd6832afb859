package pdf

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateInvoice(t *testing.T) {
	out, err := New().GenerateInvoice(context.Background(), InvoiceDocument{
		Studio:        Party{Name: "Clay House", Email: "hello@clay.house"},
		BillTo:        Party{Name: "Ana", Email: "ana@example.com"},
		InvoiceNumber: "INV-000001",
		Status:        "SENT",
		IssueDate:     "2025-01-01",
		DueDate:       "2025-01-31",
		Items: []LineItem{
			{Description: "Portrait session", Quantity: "2", UnitPrice: "USD 100.00", Amount: "USD 200.00"},
		},
		Subtotal:   "USD 250.00",
		Tax:        "USD 20.00",
		Total:      "USD 270.00",
		AmountPaid: "USD 0.00",
		AmountDue:  "USD 270.00",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestGenerateReceipt(t *testing.T) {
	out, err := New().GenerateReceipt(context.Background(), ReceiptDocument{
		Studio:        Party{Name: "Clay House"},
		BillTo:        Party{Name: "Ana"},
		ReceiptNumber: "1234",
		DatePaid:      "2025-01-15",
		Gateway:       "STRIPE",
		Amount:        "USD 270.00",
	})
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "clay-house-inv-000012.pdf", FileName("Clay House", "INV-000012"))
	assert.Equal(t, "document.pdf", FileName(" ", ""))
}
