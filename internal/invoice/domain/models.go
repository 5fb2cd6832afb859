// Package domain contains persistence models and pure calculations for invoicing.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// InvoiceStatus represents invoice lifecycle states.
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "DRAFT"
	InvoiceStatusScheduled     InvoiceStatus = "SCHEDULED"
	InvoiceStatusSent          InvoiceStatus = "SENT"
	InvoiceStatusViewed        InvoiceStatus = "VIEWED"
	InvoiceStatusPartiallyPaid InvoiceStatus = "PARTIALLY_PAID"
	InvoiceStatusPaid          InvoiceStatus = "PAID"
	InvoiceStatusOverdue       InvoiceStatus = "OVERDUE"
	InvoiceStatusCancelled     InvoiceStatus = "CANCELLED"
)

func (s InvoiceStatus) Valid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusScheduled, InvoiceStatusSent, InvoiceStatusViewed,
		InvoiceStatusPartiallyPaid, InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// Unsent reports whether the invoice has not been delivered to the client yet.
func (s InvoiceStatus) Unsent() bool {
	return s == InvoiceStatusDraft || s == InvoiceStatusScheduled
}

// Invoice is a client-facing bill. Invoices are cancelled, never deleted.
type Invoice struct {
	ID                 snowflake.ID        `gorm:"primaryKey" json:"id"`
	StudioID           snowflake.ID        `gorm:"not null;index;uniqueIndex:ux_invoices_studio_number,priority:1" json:"studio_id"`
	ClientID           snowflake.ID        `gorm:"not null;index" json:"client_id"`
	BookingID          *snowflake.ID       `gorm:"uniqueIndex" json:"booking_id,omitempty"`
	InvoiceNumber      string              `gorm:"type:text;not null;uniqueIndex:ux_invoices_studio_number,priority:2" json:"invoice_number"`
	Status             InvoiceStatus       `gorm:"type:text;not null;default:'DRAFT';index" json:"status"`
	Currency           string              `gorm:"type:text;not null" json:"currency"`
	IssueDate          time.Time           `gorm:"not null" json:"issue_date"`
	DueDate            time.Time           `gorm:"not null;index" json:"due_date"`
	PaidAt             *time.Time          `json:"paid_at,omitempty"`
	SentAt             *time.Time          `json:"sent_at,omitempty"`
	Subtotal           decimal.Decimal     `gorm:"type:numeric(12,2);not null;default:0" json:"subtotal"`
	DiscountPercentage decimal.NullDecimal `gorm:"type:numeric(5,2)" json:"discount_percentage"`
	DiscountAmount     decimal.Decimal     `gorm:"type:numeric(12,2);not null;default:0" json:"discount_amount"`
	TaxRate            decimal.Decimal     `gorm:"type:numeric(5,2);not null;default:0" json:"tax_rate"`
	TaxAmount          decimal.Decimal     `gorm:"type:numeric(12,2);not null;default:0" json:"tax_amount"`
	Total              decimal.Decimal     `gorm:"type:numeric(12,2);not null;default:0" json:"total"`
	AmountPaid         decimal.Decimal     `gorm:"type:numeric(12,2);not null;default:0" json:"amount_paid"`
	AmountDue          decimal.Decimal     `gorm:"type:numeric(12,2);not null;default:0" json:"amount_due"`
	// CreditAmount holds any overpayment beyond Total.
	CreditAmount     decimal.Decimal   `gorm:"type:numeric(12,2);not null;default:0" json:"credit_amount"`
	PaymentTerms     string            `gorm:"type:text" json:"payment_terms,omitempty"`
	Notes            string            `gorm:"type:text" json:"notes,omitempty"`
	PublicToken      string            `gorm:"type:text;not null;uniqueIndex" json:"public_token"`
	LastReminderDays int               `gorm:"not null;default:0" json:"last_reminder_days"`
	LastReminderAt   *time.Time        `json:"last_reminder_at,omitempty"`
	Metadata         datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
	CreatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt        time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP" json:"updated_at"`

	LineItems []LineItem `gorm:"foreignKey:InvoiceID" json:"line_items"`
}

// TableName sets the database table name.
func (Invoice) TableName() string { return "invoices" }

// LineItem is owned by exactly one invoice and is recreated on every edit.
type LineItem struct {
	ID          snowflake.ID    `gorm:"primaryKey" json:"id"`
	InvoiceID   snowflake.ID    `gorm:"not null;index" json:"invoice_id"`
	Description string          `gorm:"type:text;not null" json:"description"`
	Quantity    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"quantity"`
	UnitPrice   decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"unit_price"`
	Total       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"total"`
	Taxable     bool            `gorm:"not null" json:"taxable"`
	// TaxAmount is for display; invoice tax is never re-summed from items.
	TaxAmount decimal.Decimal `gorm:"type:numeric(12,2);not null;default:0" json:"tax_amount"`
	SortOrder int             `gorm:"not null;default:0" json:"sort_order"`
	CreatedAt time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP" json:"created_at"`
}

// TableName sets the database table name.
func (LineItem) TableName() string { return "invoice_line_items" }
