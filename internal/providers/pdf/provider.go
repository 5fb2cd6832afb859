package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/gosimple/slug"
)

type Provider interface {
	GenerateInvoice(ctx context.Context, doc InvoiceDocument) ([]byte, error)
	GenerateReceipt(ctx context.Context, doc ReceiptDocument) ([]byte, error)
}

// Party is either side of the document.
type Party struct {
	Name  string
	Email string
}

type LineItem struct {
	Description string
	Quantity    string
	UnitPrice   string
	Amount      string
}

// InvoiceDocument carries preformatted values; the provider does no money math.
type InvoiceDocument struct {
	Studio        Party
	BillTo        Party
	InvoiceNumber string
	Status        string
	IssueDate     string
	DueDate       string
	Items         []LineItem
	Subtotal      string
	Discount      string
	Tax           string
	Total         string
	AmountPaid    string
	AmountDue     string
	Notes         string
}

type ReceiptDocument struct {
	Studio        Party
	BillTo        Party
	ReceiptNumber string
	InvoiceNumber string
	DatePaid      string
	Gateway       string
	Amount        string
	Refunded      string
}

// FileName builds a download name such as "clay-house-inv-000012.pdf".
func FileName(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, part := range parts {
		if s := slug.Make(strings.TrimSpace(part)); s != "" {
			kept = append(kept, s)
		}
	}
	if len(kept) == 0 {
		return "document.pdf"
	}
	return fmt.Sprintf("%s.pdf", strings.Join(kept, "-"))
}

type NoOpProvider struct{}

func (p *NoOpProvider) GenerateInvoice(ctx context.Context, doc InvoiceDocument) ([]byte, error) {
	return nil, nil
}

func (p *NoOpProvider) GenerateReceipt(ctx context.Context, doc ReceiptDocument) ([]byte, error) {
	return nil, nil
}
