package domain

import (
	"context"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/studioledger/internal/apperr"
	invoicedomain "github.com/smallbiznis/studioledger/internal/invoice/domain"
	"gorm.io/gorm"
)

type Service interface {
	CreatePaymentIntent(ctx context.Context, req CreateIntentRequest) (*IntentResponse, error)
	ProcessPayment(ctx context.Context, req ProcessPaymentRequest) (*Payment, error)
	// ApplyPaymentToInvoice recomputes the invoice balance from its settled
	// payments. Applying the same payment again changes nothing.
	ApplyPaymentToInvoice(ctx context.Context, paymentID, invoiceID snowflake.ID) (*invoicedomain.Invoice, error)
	ProcessRefund(ctx context.Context, req RefundPaymentRequest) (*Payment, error)
	GetPayment(ctx context.Context, id string) (*Payment, error)
	ListInvoicePayments(ctx context.Context, invoiceID string) ([]Payment, error)
	RenderReceipt(ctx context.Context, id string) (string, []byte, error)
}

// WebhookService verifies, deduplicates and dispatches gateway events.
type WebhookService interface {
	Ingest(ctx context.Context, gateway string, payload []byte, headers http.Header) error
}

type CreateIntentRequest struct {
	Gateway   string          `json:"gateway"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	ClientID  string          `json:"client_id"`
	InvoiceID string          `json:"invoice_id"`
	BookingID string          `json:"booking_id"`
	ReturnURL string          `json:"return_url"`
	CancelURL string          `json:"cancel_url"`
}

type IntentResponse struct {
	ID           string          `json:"id"`
	Gateway      string          `json:"gateway"`
	ClientSecret string          `json:"client_secret,omitempty"`
	ApprovalURL  string          `json:"approval_url,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Status       string          `json:"status"`
}

type ProcessPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
	Gateway         string `json:"gateway"`
}

type RefundPaymentRequest struct {
	PaymentID string          `json:"-"`
	Amount    decimal.Decimal `json:"amount"`
	Reason    string          `json:"reason"`
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, payment *Payment) error
	Update(ctx context.Context, db *gorm.DB, payment *Payment) error
	FindByID(ctx context.Context, db *gorm.DB, studioID, id snowflake.ID) (*Payment, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, studioID, id snowflake.ID) (*Payment, error)
	FindByTransactionForUpdate(ctx context.Context, db *gorm.DB, gateway, transactionID string) (*Payment, error)
	ListByInvoice(ctx context.Context, db *gorm.DB, studioID, invoiceID snowflake.ID) ([]Payment, error)
	// SettledTotal sums amount minus refunds over the invoice's settled payments.
	SettledTotal(ctx context.Context, db *gorm.DB, studioID, invoiceID snowflake.ID) (decimal.Decimal, error)

	InsertWebhookEvent(ctx context.Context, db *gorm.DB, event *WebhookEvent) (bool, error)
	FindWebhookEvent(ctx context.Context, db *gorm.DB, gateway, eventID string) (*WebhookEvent, error)
	MarkWebhookProcessed(ctx context.Context, db *gorm.DB, id snowflake.ID, processedAt time.Time) error
}

var (
	ErrInvalidPaymentID     = apperr.New(apperr.ErrValidation, "invalid_payment_id")
	ErrInvalidIntentID      = apperr.New(apperr.ErrValidation, "invalid_payment_intent_id")
	ErrInvalidCurrency      = apperr.New(apperr.ErrValidation, "invalid_currency")
	ErrInvalidConfig        = apperr.New(apperr.ErrConfiguration, "invalid_gateway_config")
	ErrInvalidMetadata      = apperr.New(apperr.ErrValidation, "invalid_payment_metadata")
	ErrInvalidAmount        = apperr.New(apperr.ErrInvalidAmount, "invalid_payment_amount")
	ErrRefundExceedsBalance = apperr.New(apperr.ErrInvalidAmount, "refund_exceeds_refundable_amount")
	ErrPaymentNotFound      = apperr.New(apperr.ErrNotFound, "payment_not_found")
	ErrPaymentNotRefundable = apperr.New(apperr.ErrConflict, "payment_not_refundable")
	ErrPaymentNotSettled    = apperr.New(apperr.ErrConflict, "payment_not_settled")
	ErrInvoiceMismatch      = apperr.New(apperr.ErrValidation, "payment_invoice_mismatch")
	ErrInvoiceNotPayable    = apperr.New(apperr.ErrConflict, "invoice_not_payable")
	ErrUnsupportedGateway   = apperr.New(apperr.ErrNotSupported, "gateway_not_supported")
	ErrRefundNotSupported   = apperr.New(apperr.ErrNotSupported, "gateway_refund_not_supported")
	ErrInvalidSignature     = apperr.New(apperr.ErrValidation, "invalid_webhook_signature")
	ErrInvalidPayload       = apperr.New(apperr.ErrValidation, "invalid_webhook_payload")
)
