package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

const (
	GatewayStripe = "STRIPE"
	GatewayPayPal = "PAYPAL"
)

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusCompleted PaymentStatus = "COMPLETED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
	PaymentStatusRefunded  PaymentStatus = "REFUNDED"
)

// Settled reports whether the payment reached the gateway as captured money.
func (s PaymentStatus) Settled() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusRefunded
}

// Payment is one gateway transaction. Payments are never deleted; refunds
// mutate RefundAmount and Status.
type Payment struct {
	ID                   snowflake.ID      `gorm:"primaryKey" json:"id"`
	StudioID             snowflake.ID      `gorm:"not null;index" json:"studio_id"`
	ClientID             snowflake.ID      `gorm:"not null;index" json:"client_id"`
	InvoiceID            *snowflake.ID     `gorm:"index" json:"invoice_id,omitempty"`
	BookingID            *snowflake.ID     `gorm:"index" json:"booking_id,omitempty"`
	Amount               decimal.Decimal   `gorm:"type:numeric(12,2);not null" json:"amount"`
	Currency             string            `gorm:"type:text;not null" json:"currency"`
	Gateway              string            `gorm:"type:text;not null;uniqueIndex:ux_payments_gateway_txn,priority:1" json:"gateway"`
	GatewayTransactionID string            `gorm:"type:text;not null;uniqueIndex:ux_payments_gateway_txn,priority:2" json:"gateway_transaction_id"`
	Status               PaymentStatus     `gorm:"type:text;not null;index" json:"status"`
	RefundAmount         decimal.Decimal   `gorm:"type:numeric(12,2);not null;default:0" json:"refund_amount"`
	FailureReason        string            `gorm:"type:text" json:"failure_reason,omitempty"`
	ProcessedBy          *string           `gorm:"type:text" json:"processed_by,omitempty"`
	ProcessedAt          *time.Time        `json:"processed_at,omitempty"`
	Metadata             datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt            time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`
}

func (Payment) TableName() string { return "payments" }

// Refundable is the captured amount not yet returned to the client.
func (p *Payment) Refundable() decimal.Decimal {
	return decimal.Max(decimal.Zero, p.Amount.Sub(p.RefundAmount))
}

// WebhookEvent records every gateway event once so redeliveries are skipped.
type WebhookEvent struct {
	ID          snowflake.ID   `gorm:"primaryKey" json:"id"`
	StudioID    snowflake.ID   `gorm:"not null;index" json:"studio_id"`
	Gateway     string         `gorm:"type:text;not null;uniqueIndex:ux_payment_webhook_events_event,priority:1" json:"gateway"`
	EventID     string         `gorm:"type:text;not null;uniqueIndex:ux_payment_webhook_events_event,priority:2" json:"event_id"`
	EventType   string         `gorm:"type:text;not null" json:"event_type"`
	Payload     datatypes.JSON `gorm:"type:jsonb;not null" json:"payload"`
	ReceivedAt  time.Time      `gorm:"not null" json:"received_at"`
	ProcessedAt *time.Time     `json:"processed_at,omitempty"`
}

func (WebhookEvent) TableName() string { return "payment_webhook_events" }
