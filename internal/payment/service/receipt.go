package service

import (
	"context"

	paymentdomain "github.com/smallbiznis/studioledger/internal/payment/domain"
	"github.com/smallbiznis/studioledger/internal/providers/pdf"
)

// RenderReceipt returns a PDF receipt for a settled payment.
func (s *Service) RenderReceipt(ctx context.Context, id string) (string, []byte, error) {
	payment, err := s.GetPayment(ctx, id)
	if err != nil {
		return "", nil, err
	}
	if !payment.Status.Settled() {
		return "", nil, paymentdomain.ErrPaymentNotSettled
	}

	studio, client, err := s.parties(ctx, payment.StudioID, payment.ClientID)
	if err != nil {
		return "", nil, err
	}

	doc := pdf.ReceiptDocument{
		Studio:        pdf.Party{Name: studio.Name, Email: studio.Email},
		BillTo:        pdf.Party{Name: client.Name, Email: client.Email},
		ReceiptNumber: payment.ID.String(),
		Gateway:       payment.Gateway,
		Amount:        money(payment.Amount, payment.Currency),
	}
	if payment.ProcessedAt != nil {
		doc.DatePaid = payment.ProcessedAt.UTC().Format("2006-01-02")
	}
	if payment.RefundAmount.IsPositive() {
		doc.Refunded = money(payment.RefundAmount, payment.Currency)
	}
	if payment.InvoiceID != nil {
		invoice, err := s.invoiceRepo.FindByID(ctx, s.db, payment.StudioID, *payment.InvoiceID)
		if err != nil {
			return "", nil, err
		}
		if invoice != nil {
			doc.InvoiceNumber = invoice.InvoiceNumber
		}
	}

	out, err := s.pdf.GenerateReceipt(ctx, doc)
	if err != nil {
		return "", nil, err
	}
	return pdf.FileName(studio.Name, "receipt", payment.ID.String()), out, nil
}
