package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/studioledger/internal/invoice/domain"
	"github.com/smallbiznis/studioledger/internal/invoice/render"
	"github.com/smallbiznis/studioledger/internal/providers/pdf"
	studiodomain "github.com/smallbiznis/studioledger/internal/studio/domain"
)

// RenderPublicHTML marks the invoice viewed and renders the client page.
func (s *Service) RenderPublicHTML(ctx context.Context, publicToken string) (string, error) {
	public, err := s.MarkViewed(ctx, publicToken)
	if err != nil {
		return "", err
	}
	studio, client, err := s.parties(ctx, &public.Invoice)
	if err != nil {
		return "", err
	}
	return s.renderer.RenderHTML(buildRenderInput(&public.Invoice, studio, client))
}

// RenderPDF returns the invoice PDF and its download file name.
func (s *Service) RenderPDF(ctx context.Context, id string) (string, []byte, error) {
	invoice, err := s.GetInvoice(ctx, id)
	if err != nil {
		return "", nil, err
	}
	studio, client, err := s.parties(ctx, invoice)
	if err != nil {
		return "", nil, err
	}

	doc := pdf.InvoiceDocument{
		Studio:        pdf.Party{Name: studio.Name, Email: studio.Email},
		BillTo:        pdf.Party{Name: client.Name, Email: client.Email},
		InvoiceNumber: invoice.InvoiceNumber,
		Status:        string(invoice.Status),
		IssueDate:     invoice.IssueDate.UTC().Format("2006-01-02"),
		DueDate:       invoice.DueDate.UTC().Format("2006-01-02"),
		Subtotal:      money(invoice.Subtotal, invoice.Currency),
		Tax:           money(invoice.TaxAmount, invoice.Currency),
		Total:         money(invoice.Total, invoice.Currency),
		AmountPaid:    money(invoice.AmountPaid, invoice.Currency),
		AmountDue:     money(invoice.AmountDue, invoice.Currency),
		Notes:         invoice.Notes,
	}
	if invoice.DiscountAmount.IsPositive() {
		doc.Discount = money(invoice.DiscountAmount, invoice.Currency)
	}
	for _, item := range invoice.LineItems {
		doc.Items = append(doc.Items, pdf.LineItem{
			Description: item.Description,
			Quantity:    item.Quantity.String(),
			UnitPrice:   money(item.UnitPrice, invoice.Currency),
			Amount:      money(item.Total, invoice.Currency),
		})
	}

	out, err := s.pdf.GenerateInvoice(ctx, doc)
	if err != nil {
		return "", nil, err
	}
	return pdf.FileName(studio.Name, invoice.InvoiceNumber), out, nil
}

func buildRenderInput(invoice *invoicedomain.Invoice, studio *studiodomain.Studio, client *studiodomain.Client) render.RenderInput {
	input := render.RenderInput{
		Studio: render.StudioView{Name: studio.Name, Email: studio.Email},
		Client: render.PartyView{Name: client.Name, Email: client.Email},
		Invoice: render.InvoiceView{
			Number:         invoice.InvoiceNumber,
			Status:         string(invoice.Status),
			Currency:       invoice.Currency,
			IssueDate:      invoice.IssueDate,
			DueDate:        invoice.DueDate,
			Subtotal:       invoice.Subtotal,
			DiscountAmount: invoice.DiscountAmount,
			TaxRate:        invoice.TaxRate,
			TaxAmount:      invoice.TaxAmount,
			Total:          invoice.Total,
			AmountPaid:     invoice.AmountPaid,
			AmountDue:      invoice.AmountDue,
			Notes:          invoice.Notes,
		},
	}
	for _, item := range invoice.LineItems {
		input.Items = append(input.Items, render.LineItemView{
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Total:       item.Total,
		})
	}
	return input
}

func money(amount decimal.Decimal, currency string) string {
	return strings.ToUpper(currency) + " " + amount.StringFixed(2)
}
