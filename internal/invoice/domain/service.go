package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/studioledger/internal/apperr"
	"github.com/smallbiznis/studioledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type CreateInvoiceRequest struct {
	ClientID           string           `json:"client_id"`
	BookingID          string           `json:"booking_id,omitempty"`
	DueDate            time.Time        `json:"due_date"`
	LineItems          []LineItemInput  `json:"line_items"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
	DiscountAmount     *decimal.Decimal `json:"discount_amount,omitempty"`
	TaxRate            *decimal.Decimal `json:"tax_rate,omitempty"`
	PaymentTerms       string           `json:"payment_terms,omitempty"`
	Notes              string           `json:"notes,omitempty"`
	Metadata           map[string]any   `json:"metadata,omitempty"`
}

// UpdateInvoiceRequest changes only the fields that are set. A non-nil
// LineItems replaces every existing item.
type UpdateInvoiceRequest struct {
	ID                 string           `json:"-"`
	DueDate            *time.Time       `json:"due_date,omitempty"`
	LineItems          *[]LineItemInput `json:"line_items,omitempty"`
	DiscountPercentage *decimal.Decimal `json:"discount_percentage,omitempty"`
	DiscountAmount     *decimal.Decimal `json:"discount_amount,omitempty"`
	TaxRate            *decimal.Decimal `json:"tax_rate,omitempty"`
	PaymentTerms       *string          `json:"payment_terms,omitempty"`
	Notes              *string          `json:"notes,omitempty"`
	Status             *InvoiceStatus   `json:"status,omitempty"`
}

type ListInvoiceRequest struct {
	pagination.Pagination
	Status   *InvoiceStatus
	ClientID string
}

type ListInvoiceResponse struct {
	pagination.PageInfo
	Invoices []Invoice `json:"invoices"`
}

// PublicInvoice is what a client sees through the public link.
type PublicInvoice struct {
	Invoice    Invoice
	StudioName string
	ClientName string
}

// ReminderClaim is returned when a reminder at DaysPastDue has been recorded
// and should be delivered.
type ReminderClaim struct {
	Invoice     Invoice
	DaysPastDue int
}

type Service interface {
	CreateInvoice(ctx context.Context, req CreateInvoiceRequest) (*Invoice, error)
	UpdateInvoice(ctx context.Context, req UpdateInvoiceRequest) (*Invoice, error)
	SendInvoice(ctx context.Context, id string) (*Invoice, error)
	CancelInvoice(ctx context.Context, id string) (*Invoice, error)
	GetInvoice(ctx context.Context, id string) (*Invoice, error)
	ListInvoices(ctx context.Context, req ListInvoiceRequest) (ListInvoiceResponse, error)
	MarkViewed(ctx context.Context, publicToken string) (*PublicInvoice, error)
	RenderPublicHTML(ctx context.Context, publicToken string) (string, error)
	RenderPDF(ctx context.Context, id string) (filename string, content []byte, err error)
	// ClaimReminder records a reminder for the given day offset and moves the
	// invoice to OVERDUE. It returns nil when the offset was already sent or
	// the invoice no longer qualifies.
	ClaimReminder(ctx context.Context, studioID, invoiceID snowflake.ID, daysPastDue int) (*ReminderClaim, error)
}

type ListFilter struct {
	StudioID snowflake.ID
	Status   *InvoiceStatus
	ClientID *snowflake.ID
	Cursor   *snowflake.ID
	Limit    int
}

// ReminderFilter selects invoices exactly DaysPastDue whole days past due at
// Now that have not been reminded at that offset yet. Pages are keyed by id.
type ReminderFilter struct {
	StudioID    snowflake.ID
	Statuses    []InvoiceStatus
	DaysPastDue int
	Now         time.Time
	AfterID     snowflake.ID
	Limit       int
}

// Repository reads return (nil, nil) when the invoice does not exist.
type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	Update(ctx context.Context, db *gorm.DB, invoice *Invoice) error
	ReplaceLineItems(ctx context.Context, db *gorm.DB, invoiceID snowflake.ID, items []LineItem) error
	FindByID(ctx context.Context, db *gorm.DB, studioID, id snowflake.ID) (*Invoice, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, studioID, id snowflake.ID) (*Invoice, error)
	FindByPublicToken(ctx context.Context, db *gorm.DB, token string) (*Invoice, error)
	List(ctx context.Context, db *gorm.DB, filter ListFilter) ([]*Invoice, error)
	ListReminderCandidates(ctx context.Context, db *gorm.DB, filter ReminderFilter) ([]Invoice, error)
}

var (
	ErrInvalidInvoiceID = apperr.New(apperr.ErrValidation, "invalid_invoice_id")
	ErrInvalidDueDate   = apperr.New(apperr.ErrValidation, "invalid_due_date")
	ErrInvalidStatus    = apperr.New(apperr.ErrValidation, "invalid_invoice_status")
	ErrEmptyLineItems   = apperr.New(apperr.ErrValidation, "line_items_required")
	ErrInvalidQuantity  = apperr.New(apperr.ErrValidation, "invalid_line_item_quantity")
	ErrInvalidUnitPrice = apperr.New(apperr.ErrValidation, "invalid_line_item_unit_price")
	ErrInvalidDiscount  = apperr.New(apperr.ErrValidation, "invalid_discount")
	ErrInvalidTaxRate   = apperr.New(apperr.ErrValidation, "invalid_tax_rate")
	ErrInvalidPageToken = apperr.New(apperr.ErrValidation, "invalid_page_token")

	ErrInvoiceNotFound  = apperr.New(apperr.ErrNotFound, "invoice_not_found")
	ErrInvoicePaid      = apperr.New(apperr.ErrConflict, "invoice_already_paid")
	ErrInvoiceCancelled = apperr.New(apperr.ErrConflict, "invoice_cancelled")
	ErrInvoiceHasFunds  = apperr.New(apperr.ErrConflict, "invoice_has_payments")
	ErrBookingInvoiced  = apperr.New(apperr.ErrConflict, "booking_already_invoiced")
)
