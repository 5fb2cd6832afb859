package render

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderHTML(t *testing.T) {
	html, err := NewRenderer().RenderHTML(RenderInput{
		Studio: StudioView{Name: "Clay House", PrimaryColor: "red;}</style>"},
		Client: PartyView{Name: "Ana <script>", Email: "ana@example.com"},
		Invoice: InvoiceView{
			Number:         "INV-000003",
			Status:         "SENT",
			Currency:       "eur",
			IssueDate:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
			DueDate:        time.Date(2025, 1, 31, 0, 0, 0, 0, time.UTC),
			Subtotal:       decimal.RequireFromString("250"),
			DiscountAmount: decimal.Zero,
			TaxRate:        decimal.RequireFromString("10"),
			TaxAmount:      decimal.RequireFromString("20"),
			Total:          decimal.RequireFromString("270"),
			AmountDue:      decimal.RequireFromString("270"),
		},
		Items: []LineItemView{{
			Description: "Portrait session",
			Quantity:    decimal.RequireFromString("2"),
			UnitPrice:   decimal.RequireFromString("100"),
			Total:       decimal.RequireFromString("200"),
		}},
	})
	require.NoError(t, err)

	assert.Contains(t, html, "INV-000003")
	assert.Contains(t, html, "EUR 270.00 due")
	assert.Contains(t, html, "2025-01-31")
	assert.Contains(t, html, "#111827")
	assert.NotContains(t, html, "Ana <script>")
	assert.NotContains(t, html, "Discount")
}
