package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/studioledger/internal/audit/domain"
	bookingdomain "github.com/smallbiznis/studioledger/internal/booking/domain"
	"github.com/smallbiznis/studioledger/internal/clock"
	gatewayconfigdomain "github.com/smallbiznis/studioledger/internal/gatewayconfig/domain"
	invoicedomain "github.com/smallbiznis/studioledger/internal/invoice/domain"
	"github.com/smallbiznis/studioledger/internal/notification"
	"github.com/smallbiznis/studioledger/internal/observability/metrics"
	"github.com/smallbiznis/studioledger/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/studioledger/internal/payment/domain"
	"github.com/smallbiznis/studioledger/internal/providers/pdf"
	studiodomain "github.com/smallbiznis/studioledger/internal/studio/domain"
	"github.com/smallbiznis/studioledger/internal/studiocontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Repo        paymentdomain.Repository
	InvoiceRepo invoicedomain.Repository
	StudioRepo  studiodomain.Repository
	BookingRepo bookingdomain.Repository
	Gateways    *adapters.Registry
	ConfigSvc   gatewayconfigdomain.Service
	AuditSvc    auditdomain.Service
	Notifier    notification.Notifier
	PDF         pdf.Provider
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	repo        paymentdomain.Repository
	invoiceRepo invoicedomain.Repository
	studioRepo  studiodomain.Repository
	bookingRepo bookingdomain.Repository
	gateways    *adapters.Registry
	configSvc   gatewayconfigdomain.Service
	auditSvc    auditdomain.Service
	notifier    notification.Notifier
	pdf         pdf.Provider
	metrics     *metrics.Metrics
}

func NewService(p Params) paymentdomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("payment.service"),
		genID: p.GenID,
		clock: p.Clock,

		repo:        p.Repo,
		invoiceRepo: p.InvoiceRepo,
		studioRepo:  p.StudioRepo,
		bookingRepo: p.BookingRepo,
		gateways:    p.Gateways,
		configSvc:   p.ConfigSvc,
		auditSvc:    p.AuditSvc,
		notifier:    p.Notifier,
		pdf:         p.PDF,
		metrics:     p.Metrics,
	}
}

func (s *Service) CreatePaymentIntent(ctx context.Context, req paymentdomain.CreateIntentRequest) (*paymentdomain.IntentResponse, error) {
	studioID, err := s.studioIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	if !req.Amount.IsPositive() {
		return nil, paymentdomain.ErrInvalidAmount
	}
	clientID, err := parseID(req.ClientID)
	if err != nil {
		return nil, studiodomain.ErrInvalidClient
	}
	invoiceID, err := parseOptionalID(req.InvoiceID, invoicedomain.ErrInvalidInvoiceID)
	if err != nil {
		return nil, err
	}
	bookingID, err := parseOptionalID(req.BookingID, bookingdomain.ErrInvalidBooking)
	if err != nil {
		return nil, err
	}

	studio, err := s.studioRepo.FindStudio(ctx, s.db, studioID)
	if err != nil {
		return nil, err
	}
	if studio == nil {
		return nil, studiodomain.ErrStudioNotFound
	}
	client, err := s.studioRepo.FindClient(ctx, s.db, studioID, clientID)
	if err != nil {
		return nil, err
	}
	if client == nil {
		return nil, studiodomain.ErrClientNotFound
	}

	currency := strings.ToUpper(strings.TrimSpace(req.Currency))
	if currency == "" {
		currency = strings.ToUpper(studio.Currency)
	}
	description := "Payment to " + studio.Name

	if invoiceID != nil {
		invoice, err := s.invoiceRepo.FindByID(ctx, s.db, studioID, *invoiceID)
		if err != nil {
			return nil, err
		}
		if invoice == nil {
			return nil, invoicedomain.ErrInvoiceNotFound
		}
		if invoice.ClientID != clientID {
			return nil, paymentdomain.ErrInvoiceMismatch
		}
		if !invoice.Payable() {
			return nil, paymentdomain.ErrInvoiceNotPayable
		}
		if currency != invoice.Currency {
			return nil, paymentdomain.ErrInvalidCurrency
		}
		description = "Invoice " + invoice.InvoiceNumber
	}

	gatewayName, gw, err := s.resolveGateway(ctx, studioID, req.Gateway)
	if err != nil {
		return nil, err
	}

	intentReq := paymentdomain.IntentRequest{
		StudioID:    studioID,
		ClientID:    clientID,
		InvoiceID:   invoiceID,
		BookingID:   bookingID,
		Amount:      req.Amount.Round(2),
		Currency:    currency,
		Description: description,
		ReturnURL:   strings.TrimSpace(req.ReturnURL),
		CancelURL:   strings.TrimSpace(req.CancelURL),
	}
	if provisioner, ok := gw.(paymentdomain.CustomerProvisioner); ok {
		ref, err := s.customerRef(ctx, provisioner, client)
		if err != nil {
			return nil, err
		}
		intentReq.CustomerRef = ref
	}

	intent, err := gw.CreateIntent(ctx, intentReq)
	if err != nil {
		s.log.Error("failed to create payment intent",
			zap.String("studio_id", studioID.String()),
			zap.String("client_id", clientID.String()),
			zap.String("gateway", gatewayName),
			zap.Error(err),
		)
		return nil, err
	}

	metadata := map[string]any{"gateway": gatewayName, "amount": intentReq.Amount.StringFixed(2), "currency": currency}
	if invoiceID != nil {
		metadata["invoice_id"] = invoiceID.String()
	}
	s.audit(ctx, studioID, "payment.intent_created", intent.ID, nil, nil, metadata)

	return &paymentdomain.IntentResponse{
		ID:           intent.ID,
		Gateway:      gatewayName,
		ClientSecret: intent.ClientSecret,
		ApprovalURL:  intent.ApprovalURL,
		Amount:       intent.Amount,
		Currency:     intent.Currency,
		Status:       intent.Status,
	}, nil
}

// customerRef reuses the client's stored gateway customer or creates one.
func (s *Service) customerRef(ctx context.Context, provisioner paymentdomain.CustomerProvisioner, client *studiodomain.Client) (string, error) {
	if client.StripeCustomerID != nil && strings.TrimSpace(*client.StripeCustomerID) != "" {
		return *client.StripeCustomerID, nil
	}
	ref, err := provisioner.EnsureCustomer(ctx, paymentdomain.CustomerRequest{
		StudioID: client.StudioID,
		ClientID: client.ID,
		Name:     client.Name,
		Email:    client.Email,
	})
	if err != nil {
		s.log.Error("failed to create gateway customer",
			zap.String("client_id", client.ID.String()),
			zap.Error(err),
		)
		return "", err
	}
	if err := s.studioRepo.SetStripeCustomerID(ctx, s.db, client.StudioID, client.ID, ref); err != nil {
		return "", err
	}
	return ref, nil
}

// ProcessPayment records the gateway's final state of an intent and, when the
// money was captured against an invoice, reconciles the invoice balance.
func (s *Service) ProcessPayment(ctx context.Context, req paymentdomain.ProcessPaymentRequest) (*paymentdomain.Payment, error) {
	studioID, err := s.studioIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	intentID := strings.TrimSpace(req.PaymentIntentID)
	if intentID == "" {
		return nil, paymentdomain.ErrInvalidIntentID
	}

	gatewayName, gw, err := s.resolveGateway(ctx, studioID, req.Gateway)
	if err != nil {
		return nil, err
	}

	charge, err := gw.Retrieve(ctx, intentID)
	if err != nil {
		s.log.Error("failed to retrieve payment from gateway",
			zap.String("studio_id", studioID.String()),
			zap.String("gateway", gatewayName),
			zap.String("payment_intent_id", intentID),
			zap.Error(err),
		)
		return nil, err
	}

	refs, err := chargeRefs(studioID, charge.Metadata)
	if err != nil {
		return nil, err
	}
	if !charge.Amount.IsPositive() {
		return nil, paymentdomain.ErrInvalidAmount
	}

	now := s.clock.Now().UTC()
	var (
		payment     *paymentdomain.Payment
		invoice     *invoicedomain.Invoice
		before      map[string]any
		newlySettle bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		existing, err := s.repo.FindByTransactionForUpdate(ctx, tx, gatewayName, charge.ID)
		if err != nil {
			return err
		}
		if existing != nil && existing.StudioID != studioID {
			return paymentdomain.ErrPaymentNotFound
		}
		if existing != nil && existing.Status.Settled() {
			payment = existing
			return nil
		}

		if existing == nil {
			payment = &paymentdomain.Payment{
				ID:                   s.genID.Generate(),
				StudioID:             studioID,
				ClientID:             refs.clientID,
				InvoiceID:            refs.invoiceID,
				BookingID:            refs.bookingID,
				Gateway:              gatewayName,
				GatewayTransactionID: charge.ID,
				CreatedAt:            now,
			}
		} else {
			payment = existing
			before = paymentSnapshot(existing)
		}

		payment.Amount = charge.Amount.Round(2)
		payment.Currency = strings.ToUpper(charge.Currency)
		payment.Status = charge.Status
		payment.FailureReason = charge.FailureReason
		payment.ProcessedBy = optionalString(studiocontext.UserIDFromContext(ctx))
		payment.ProcessedAt = &now
		payment.UpdatedAt = now
		payment.Metadata = datatypes.JSONMap{"actor": studiocontext.ActorFromContext(ctx)}

		if existing == nil {
			if err := s.repo.Insert(ctx, tx, payment); err != nil {
				return err
			}
		} else if err := s.repo.Update(ctx, tx, payment); err != nil {
			return err
		}

		if payment.Status != paymentdomain.PaymentStatusCompleted {
			return nil
		}
		newlySettle = true
		if payment.InvoiceID == nil {
			return nil
		}
		invoice, err = s.reconcile(ctx, tx, studioID, *payment.InvoiceID, now)
		return err
	})
	if err != nil {
		s.log.Error("failed to record payment",
			zap.String("studio_id", studioID.String()),
			zap.String("gateway", gatewayName),
			zap.String("payment_intent_id", intentID),
			zap.Error(err),
		)
		return nil, err
	}
	if !newlySettle && payment.Status.Settled() {
		return payment, nil
	}

	s.metrics.RecordPaymentProcessed(ctx, gatewayName, string(payment.Status))
	s.audit(ctx, studioID, "payment."+strings.ToLower(string(payment.Status)), payment.ID.String(),
		before, paymentSnapshot(payment), map[string]any{
			"gateway":                gatewayName,
			"gateway_transaction_id": payment.GatewayTransactionID,
		})
	if newlySettle {
		s.sendPaymentReceived(ctx, payment, invoice)
	}
	return payment, nil
}

func (s *Service) ApplyPaymentToInvoice(ctx context.Context, paymentID, invoiceID snowflake.ID) (*invoicedomain.Invoice, error) {
	studioID, err := s.studioIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now().UTC()
	var invoice *invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		payment, err := s.repo.FindByID(ctx, tx, studioID, paymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return paymentdomain.ErrPaymentNotFound
		}
		if payment.InvoiceID == nil || *payment.InvoiceID != invoiceID {
			return paymentdomain.ErrInvoiceMismatch
		}
		if !payment.Status.Settled() {
			return paymentdomain.ErrPaymentNotSettled
		}
		invoice, err = s.reconcile(ctx, tx, studioID, invoiceID, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	return invoice, nil
}

// reconcile locks the invoice and re-derives its balance from the settled
// payment set, so applying a payment twice is harmless. A booking attached to
// a fully paid invoice is confirmed.
func (s *Service) reconcile(ctx context.Context, tx *gorm.DB, studioID, invoiceID snowflake.ID, now time.Time) (*invoicedomain.Invoice, error) {
	invoice, err := s.invoiceRepo.FindByIDForUpdate(ctx, tx, studioID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}

	paid, err := s.repo.SettledTotal(ctx, tx, studioID, invoiceID)
	if err != nil {
		return nil, err
	}

	previous := invoice.Status
	previousPaid := invoice.AmountPaid
	invoice.ApplyBalance(paid, now)
	if invoice.Status == previous && invoice.AmountPaid.Equal(previousPaid) {
		return invoice, nil
	}

	invoice.UpdatedAt = now
	if err := s.invoiceRepo.Update(ctx, tx, invoice); err != nil {
		return nil, err
	}

	if invoice.Status == invoicedomain.InvoiceStatusPaid && invoice.BookingID != nil {
		booking, err := s.bookingRepo.FindByID(ctx, tx, studioID, *invoice.BookingID)
		if err != nil {
			return nil, err
		}
		if booking != nil && booking.Status == bookingdomain.BookingStatusPending {
			if err := s.bookingRepo.UpdateStatus(ctx, tx, studioID, booking.ID, bookingdomain.BookingStatusConfirmed, now); err != nil {
				return nil, err
			}
		}
	}

	s.log.Info("invoice balance reconciled",
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("status", string(invoice.Status)),
		zap.String("amount_paid", invoice.AmountPaid.StringFixed(2)),
	)
	return invoice, nil
}

func (s *Service) GetPayment(ctx context.Context, id string) (*paymentdomain.Payment, error) {
	studioID, err := s.studioIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	paymentID, err := parseID(id)
	if err != nil {
		return nil, paymentdomain.ErrInvalidPaymentID
	}
	payment, err := s.repo.FindByID(ctx, s.db, studioID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, paymentdomain.ErrPaymentNotFound
	}
	return payment, nil
}

func (s *Service) ListInvoicePayments(ctx context.Context, invoiceID string) ([]paymentdomain.Payment, error) {
	studioID, err := s.studioIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	id, err := parseID(invoiceID)
	if err != nil {
		return nil, invoicedomain.ErrInvalidInvoiceID
	}
	return s.repo.ListByInvoice(ctx, s.db, studioID, id)
}

// resolveGateway maps a gateway name to the studio's configured account.
func (s *Service) resolveGateway(ctx context.Context, studioID snowflake.ID, name string) (string, paymentdomain.PaymentGateway, error) {
	name = strings.ToUpper(strings.TrimSpace(name))
	if !s.gateways.Supports(name) {
		return "", nil, paymentdomain.ErrUnsupportedGateway
	}
	cfg, err := s.configSvc.Resolve(ctx, studioID, name)
	if err != nil {
		return "", nil, err
	}
	gw, err := s.gateways.New(name, cfg)
	if err != nil {
		return "", nil, err
	}
	return name, gw, nil
}

func (s *Service) sendPaymentReceived(ctx context.Context, payment *paymentdomain.Payment, invoice *invoicedomain.Invoice) {
	studio, client, err := s.parties(ctx, payment.StudioID, payment.ClientID)
	if err != nil {
		s.log.Warn("failed to load payment recipients", zap.String("payment_id", payment.ID.String()), zap.Error(err))
		return
	}
	msg := notification.PaymentMessage{
		Studio:   notification.Studio{Name: studio.Name, Email: studio.Email},
		To:       notification.Recipient{Name: client.Name, Email: client.Email},
		Currency: payment.Currency,
		Amount:   payment.Amount,
	}
	if invoice != nil {
		msg.InvoiceNumber = invoice.InvoiceNumber
		msg.AmountDue = invoice.AmountDue
	}
	if err := s.notifier.PaymentReceived(ctx, msg); err != nil {
		s.log.Warn("failed to send payment confirmation",
			zap.String("payment_id", payment.ID.String()),
			zap.String("client_id", payment.ClientID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) parties(ctx context.Context, studioID, clientID snowflake.ID) (*studiodomain.Studio, *studiodomain.Client, error) {
	studio, err := s.studioRepo.FindStudio(ctx, s.db, studioID)
	if err != nil {
		return nil, nil, err
	}
	if studio == nil {
		return nil, nil, studiodomain.ErrStudioNotFound
	}
	client, err := s.studioRepo.FindClient(ctx, s.db, studioID, clientID)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return nil, nil, studiodomain.ErrClientNotFound
	}
	return studio, client, nil
}

func (s *Service) audit(ctx context.Context, studioID snowflake.ID, action, entityID string, before, after, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	err := s.auditSvc.Record(ctx, auditdomain.Entry{
		StudioID:   studioID,
		Action:     action,
		EntityType: "payment",
		EntityID:   entityID,
		OldValues:  before,
		NewValues:  after,
		Metadata:   metadata,
	})
	if err != nil {
		s.log.Warn("failed to audit payment change", zap.String("action", action), zap.String("entity_id", entityID), zap.Error(err))
	}
}

func (s *Service) studioIDFromContext(ctx context.Context) (snowflake.ID, error) {
	studioID, ok := studiocontext.StudioIDFromContext(ctx)
	if !ok {
		return 0, studiodomain.ErrStudioRequired
	}
	return studioID, nil
}

type refs struct {
	clientID  snowflake.ID
	invoiceID *snowflake.ID
	bookingID *snowflake.ID
}

// chargeRefs reads the ids stamped on the intent at creation. An intent
// created for another studio is reported as not found.
func chargeRefs(studioID snowflake.ID, metadata map[string]string) (refs, error) {
	var out refs
	if raw := strings.TrimSpace(metadata[paymentdomain.MetadataStudioID]); raw != "" && raw != studioID.String() {
		return out, paymentdomain.ErrPaymentNotFound
	}
	clientID, err := parseID(metadata[paymentdomain.MetadataClientID])
	if err != nil {
		return out, paymentdomain.ErrInvalidMetadata
	}
	out.clientID = clientID
	if out.invoiceID, err = parseOptionalID(metadata[paymentdomain.MetadataInvoiceID], paymentdomain.ErrInvalidMetadata); err != nil {
		return out, err
	}
	if out.bookingID, err = parseOptionalID(metadata[paymentdomain.MetadataBookingID], paymentdomain.ErrInvalidMetadata); err != nil {
		return out, err
	}
	return out, nil
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, paymentdomain.ErrInvalidPaymentID
	}
	return id, nil
}

func parseOptionalID(value string, invalid error) (*snowflake.ID, error) {
	if strings.TrimSpace(value) == "" {
		return nil, nil
	}
	id, err := parseID(value)
	if err != nil {
		return nil, invalid
	}
	return &id, nil
}

func optionalString(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func paymentSnapshot(payment *paymentdomain.Payment) map[string]any {
	if payment == nil {
		return nil
	}
	return map[string]any{
		"status":        string(payment.Status),
		"amount":        payment.Amount.StringFixed(2),
		"refund_amount": payment.RefundAmount.StringFixed(2),
		"currency":      payment.Currency,
	}
}

func money(amount decimal.Decimal, currency string) string {
	return strings.ToUpper(currency) + " " + amount.StringFixed(2)
}
