package service

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/studioledger/internal/invoice/domain"
	"github.com/smallbiznis/studioledger/internal/notification"
	paymentdomain "github.com/smallbiznis/studioledger/internal/payment/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProcessRefund returns part or all of a completed payment through its
// gateway and re-derives the linked invoice balance. The payment row stays
// locked across the gateway call so concurrent refunds cannot exceed the
// refundable amount.
func (s *Service) ProcessRefund(ctx context.Context, req paymentdomain.RefundPaymentRequest) (*paymentdomain.Payment, error) {
	studioID, err := s.studioIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	paymentID, err := parseID(req.PaymentID)
	if err != nil {
		return nil, paymentdomain.ErrInvalidPaymentID
	}
	amount := req.Amount.Round(2)
	if !amount.IsPositive() {
		return nil, paymentdomain.ErrInvalidAmount
	}
	reason := strings.TrimSpace(req.Reason)

	current, err := s.repo.FindByID(ctx, s.db, studioID, paymentID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	gatewayName, gw, err := s.resolveGateway(ctx, studioID, current.Gateway)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	var (
		payment  *paymentdomain.Payment
		invoice  *invoicedomain.Invoice
		before   map[string]any
		refundID string
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.FindByIDForUpdate(ctx, tx, studioID, paymentID)
		if err != nil {
			return err
		}
		if locked == nil {
			return paymentdomain.ErrPaymentNotFound
		}
		if locked.Status != paymentdomain.PaymentStatusCompleted {
			return paymentdomain.ErrPaymentNotRefundable
		}
		if amount.GreaterThan(locked.Refundable()) {
			return paymentdomain.ErrRefundExceedsBalance
		}
		before = paymentSnapshot(locked)

		result, err := gw.Refund(ctx, paymentdomain.RefundRequest{
			TransactionID: locked.GatewayTransactionID,
			Amount:        amount,
			Currency:      locked.Currency,
			Reason:        reason,
			Metadata:      map[string]string{"payment_id": locked.ID.String()},
		})
		if err != nil {
			return err
		}
		refundID = result.ID

		locked.RefundAmount = locked.RefundAmount.Add(amount).Round(2)
		if !locked.Refundable().IsPositive() {
			locked.Status = paymentdomain.PaymentStatusRefunded
		}
		locked.UpdatedAt = now
		if locked.Metadata == nil {
			locked.Metadata = map[string]any{}
		}
		locked.Metadata["last_refund_id"] = refundID
		if err := s.repo.Update(ctx, tx, locked); err != nil {
			return err
		}
		payment = locked

		if locked.InvoiceID == nil {
			return nil
		}
		invoice, err = s.reconcile(ctx, tx, studioID, *locked.InvoiceID, now)
		return err
	})
	if err != nil {
		fields := []zap.Field{
			zap.String("studio_id", studioID.String()),
			zap.String("payment_id", paymentID.String()),
			zap.String("gateway", gatewayName),
			zap.String("amount", amount.StringFixed(2)),
			zap.Error(err),
		}
		if refundID != "" {
			// The gateway moved the money; the local record must be repaired by hand.
			s.log.Error("refund issued at gateway but not recorded", append(fields, zap.String("refund_id", refundID))...)
			return nil, err
		}
		s.log.Error("failed to refund payment", fields...)
		return nil, err
	}

	full := payment.Status == paymentdomain.PaymentStatusRefunded
	s.metrics.RecordRefundProcessed(ctx, gatewayName, full)
	metadata := map[string]any{
		"gateway":           gatewayName,
		"gateway_refund_id": refundID,
		"amount":            amount.StringFixed(2),
		"reason":            reason,
	}
	if invoice != nil {
		metadata["invoice_id"] = invoice.ID.String()
		metadata["invoice_status"] = string(invoice.Status)
	}
	s.audit(ctx, studioID, "payment.refunded", payment.ID.String(), before, paymentSnapshot(payment), metadata)
	s.sendRefundIssued(ctx, payment, amount, reason)
	return payment, nil
}

func (s *Service) sendRefundIssued(ctx context.Context, payment *paymentdomain.Payment, amount decimal.Decimal, reason string) {
	studio, client, err := s.parties(ctx, payment.StudioID, payment.ClientID)
	if err != nil {
		s.log.Warn("failed to load refund recipients", zap.String("payment_id", payment.ID.String()), zap.Error(err))
		return
	}
	err = s.notifier.RefundIssued(ctx, notification.RefundMessage{
		Studio:        notification.Studio{Name: studio.Name, Email: studio.Email},
		To:            notification.Recipient{Name: client.Name, Email: client.Email},
		Currency:      payment.Currency,
		Amount:        amount,
		RefundedTotal: payment.RefundAmount,
		Reason:        reason,
	})
	if err != nil {
		s.log.Warn("failed to send refund email",
			zap.String("payment_id", payment.ID.String()),
			zap.String("client_id", payment.ClientID.String()),
			zap.Error(err),
		)
	}
}
