package domain

import (
	"context"
	"net/http"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

// Metadata keys every gateway round-trips on its intent or order.
const (
	MetadataStudioID  = "studio_id"
	MetadataClientID  = "client_id"
	MetadataInvoiceID = "invoice_id"
	MetadataBookingID = "booking_id"
)

type IntentRequest struct {
	StudioID    snowflake.ID
	ClientID    snowflake.ID
	InvoiceID   *snowflake.ID
	BookingID   *snowflake.ID
	Amount      decimal.Decimal
	Currency    string
	Description string
	// CustomerRef is the gateway's stored customer, when it keeps one.
	CustomerRef string
	ReturnURL   string
	CancelURL   string
}

// Intent is what the client needs to finish paying: a card client secret
// or a redirect approval URL.
type Intent struct {
	ID           string
	ClientSecret string
	ApprovalURL  string
	Amount       decimal.Decimal
	Currency     string
	Status       string
}

// Charge is the final state of an intent as reported by the gateway.
type Charge struct {
	ID            string
	Status        PaymentStatus
	Amount        decimal.Decimal
	Currency      string
	FailureReason string
	Metadata      map[string]string
}

type RefundRequest struct {
	TransactionID string
	Amount        decimal.Decimal
	Currency      string
	Reason        string
	Metadata      map[string]string
}

type RefundResult struct {
	ID     string
	Status string
}

// PaymentGateway is one configured provider account.
type PaymentGateway interface {
	Gateway() string
	CreateIntent(ctx context.Context, req IntentRequest) (*Intent, error)
	Retrieve(ctx context.Context, transactionID string) (*Charge, error)
	Refund(ctx context.Context, req RefundRequest) (*RefundResult, error)
}

type CustomerRequest struct {
	StudioID snowflake.ID
	ClientID snowflake.ID
	Name     string
	Email    string
}

// CustomerProvisioner is implemented by gateways that keep a customer object
// per client.
type CustomerProvisioner interface {
	EnsureCustomer(ctx context.Context, req CustomerRequest) (string, error)
}

// Notification is a verified webhook event reduced to the transaction it
// concerns. Ignored is set for event types that need no processing.
type Notification struct {
	EventID       string
	EventType     string
	TransactionID string
	Ignored       bool
}

type WebhookParser interface {
	ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*Notification, error)
}

// GatewayFactory builds a gateway from a studio's decrypted configuration.
type GatewayFactory interface {
	Gateway() string
	New(cfg map[string]any) (PaymentGateway, error)
}
