package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	auditdomain "github.com/smallbiznis/studioledger/internal/audit/domain"
	bookingdomain "github.com/smallbiznis/studioledger/internal/booking/domain"
	"github.com/smallbiznis/studioledger/internal/clock"
	"github.com/smallbiznis/studioledger/internal/config"
	invoicedomain "github.com/smallbiznis/studioledger/internal/invoice/domain"
	invoiceformat "github.com/smallbiznis/studioledger/internal/invoice/format"
	"github.com/smallbiznis/studioledger/internal/invoice/render"
	"github.com/smallbiznis/studioledger/internal/notification"
	"github.com/smallbiznis/studioledger/internal/observability/metrics"
	"github.com/smallbiznis/studioledger/internal/providers/pdf"
	studiodomain "github.com/smallbiznis/studioledger/internal/studio/domain"
	"github.com/smallbiznis/studioledger/internal/studiocontext"
	"github.com/smallbiznis/studioledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ServiceParam struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Clock       clock.Clock
	Config      config.Config
	Repo        invoicedomain.Repository
	StudioRepo  studiodomain.Repository
	BookingRepo bookingdomain.Repository
	AuditSvc    auditdomain.Service
	Notifier    notification.Notifier
	Renderer    render.Renderer
	PDF         pdf.Provider
	Metrics     *metrics.Metrics `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	clock clock.Clock

	publicBaseURL string

	repo        invoicedomain.Repository
	studioRepo  studiodomain.Repository
	bookingRepo bookingdomain.Repository
	auditSvc    auditdomain.Service
	notifier    notification.Notifier
	renderer    render.Renderer
	pdf         pdf.Provider
	metrics     *metrics.Metrics
}

func NewService(p ServiceParam) invoicedomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("invoice.service"),
		genID: p.GenID,
		clock: p.Clock,

		publicBaseURL: strings.TrimRight(p.Config.PublicBaseURL, "/"),

		repo:        p.Repo,
		studioRepo:  p.StudioRepo,
		bookingRepo: p.BookingRepo,
		auditSvc:    p.AuditSvc,
		notifier:    p.Notifier,
		renderer:    p.Renderer,
		pdf:         p.PDF,
		metrics:     p.Metrics,
	}
}

func (s *Service) CreateInvoice(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (*invoicedomain.Invoice, error) {
	studioID, err := s.studioIDFromContext(ctx)
	if err != nil {
		return nil, err
	}

	clientID, err := parseID(req.ClientID)
	if err != nil {
		return nil, studiodomain.ErrInvalidClient
	}

	var bookingID *snowflake.ID
	if strings.TrimSpace(req.BookingID) != "" {
		id, err := parseID(req.BookingID)
		if err != nil {
			return nil, bookingdomain.ErrInvalidBooking
		}
		bookingID = &id
	}

	if req.DueDate.IsZero() {
		return nil, invoicedomain.ErrInvalidDueDate
	}

	now := s.clock.Now().UTC()
	var created *invoicedomain.Invoice
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		studio, err := s.studioRepo.FindStudio(ctx, tx, studioID)
		if err != nil {
			return err
		}
		if studio == nil {
			return studiodomain.ErrStudioNotFound
		}

		client, err := s.studioRepo.FindClient(ctx, tx, studioID, clientID)
		if err != nil {
			return err
		}
		if client == nil {
			return studiodomain.ErrClientNotFound
		}

		if bookingID != nil {
			booking, err := s.bookingRepo.FindByID(ctx, tx, studioID, *bookingID)
			if err != nil {
				return err
			}
			if booking == nil {
				return bookingdomain.ErrBookingNotFound
			}
		}

		taxRate := studio.DefaultTaxRate
		if req.TaxRate != nil {
			taxRate = *req.TaxRate
		}
		pricing := invoicedomain.Pricing{
			DiscountPercentage: req.DiscountPercentage,
			DiscountAmount:     req.DiscountAmount,
			TaxRate:            taxRate,
		}
		totals, err := invoicedomain.ComputeTotals(req.LineItems, pricing)
		if err != nil {
			return err
		}

		seq, err := s.studioRepo.NextInvoiceNumber(ctx, tx, studioID)
		if err != nil {
			return err
		}
		number, err := invoiceformat.FormatInvoiceNumber(invoiceformat.DefaultInvoiceNumberTemplate, now, seq)
		if err != nil {
			return err
		}

		invoice := &invoicedomain.Invoice{
			ID:            s.genID.Generate(),
			StudioID:      studioID,
			ClientID:      clientID,
			BookingID:     bookingID,
			InvoiceNumber: number,
			Status:        invoicedomain.InvoiceStatusDraft,
			Currency:      strings.ToUpper(studio.Currency),
			IssueDate:     now,
			DueDate:       req.DueDate.UTC(),
			PaymentTerms:  strings.TrimSpace(req.PaymentTerms),
			Notes:         strings.TrimSpace(req.Notes),
			PublicToken:   newPublicToken(now),
			Metadata:      toJSONMap(req.Metadata),
			CreatedAt:     now,
			UpdatedAt:     now,
		}
		applyPricing(invoice, pricing, totals)
		invoice.ApplyBalance(decimal.Zero, now)
		invoice.LineItems = s.buildLineItems(invoice.ID, req.LineItems, totals, now)

		if err := s.repo.Insert(ctx, tx, invoice); err != nil {
			if db.IsDuplicateKeyErr(err) && bookingID != nil {
				return invoicedomain.ErrBookingInvoiced
			}
			return err
		}
		if err := s.studioRepo.RecalculateLifetimeSpend(ctx, tx, studioID, clientID); err != nil {
			return err
		}

		created = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.RecordInvoiceCreated(ctx, invoiceSource(created))
	s.audit(ctx, "invoice.created", created, nil, snapshot(created))
	return created, nil
}

func (s *Service) UpdateInvoice(ctx context.Context, req invoicedomain.UpdateInvoiceRequest) (*invoicedomain.Invoice, error) {
	studioID, err := s.studioIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	invoiceID, err := parseID(req.ID)
	if err != nil {
		return nil, invoicedomain.ErrInvalidInvoiceID
	}
	if req.Status != nil && !updatableStatus(*req.Status) {
		return nil, invoicedomain.ErrInvalidStatus
	}

	now := s.clock.Now().UTC()
	var (
		updated   *invoicedomain.Invoice
		before    map[string]any
		firstSend bool
	)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByIDForUpdate(ctx, tx, studioID, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		switch invoice.Status {
		case invoicedomain.InvoiceStatusPaid:
			return invoicedomain.ErrInvoicePaid
		case invoicedomain.InvoiceStatusCancelled:
			return invoicedomain.ErrInvoiceCancelled
		}
		before = snapshot(invoice)
		previousStatus := invoice.Status

		if req.DueDate != nil {
			if req.DueDate.IsZero() {
				return invoicedomain.ErrInvalidDueDate
			}
			invoice.DueDate = req.DueDate.UTC()
		}
		if req.PaymentTerms != nil {
			invoice.PaymentTerms = strings.TrimSpace(*req.PaymentTerms)
		}
		if req.Notes != nil {
			invoice.Notes = strings.TrimSpace(*req.Notes)
		}

		if req.LineItems != nil || req.DiscountPercentage != nil || req.DiscountAmount != nil || req.TaxRate != nil {
			if err := s.reprice(ctx, tx, invoice, req, now); err != nil {
				return err
			}
		}

		if req.Status != nil && *req.Status != invoice.Status {
			if *req.Status == invoicedomain.InvoiceStatusCancelled {
				if invoice.AmountPaid.IsPositive() {
					return invoicedomain.ErrInvoiceHasFunds
				}
				invoice.Status = invoicedomain.InvoiceStatusCancelled
			} else if invoice.Status.Unsent() {
				invoice.Status = *req.Status
			}
		}
		firstSend = previousStatus.Unsent() && invoice.Status == invoicedomain.InvoiceStatusSent
		if firstSend {
			invoice.SentAt = &now
		}

		invoice.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, invoice); err != nil {
			return err
		}
		if err := s.studioRepo.RecalculateLifetimeSpend(ctx, tx, studioID, invoice.ClientID); err != nil {
			return err
		}
		updated = invoice
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit(ctx, "invoice.updated", updated, before, snapshot(updated))
	if firstSend {
		s.deliverInvoice(ctx, updated)
	}
	return updated, nil
}

// reprice recomputes totals after an edit. Line items are replaced wholesale
// when provided; the paid amount is kept and the balance re-derived.
func (s *Service) reprice(ctx context.Context, tx *gorm.DB, invoice *invoicedomain.Invoice, req invoicedomain.UpdateInvoiceRequest, now time.Time) error {
	inputs := make([]invoicedomain.LineItemInput, 0, len(invoice.LineItems))
	if req.LineItems != nil {
		inputs = *req.LineItems
	} else {
		for _, item := range invoice.LineItems {
			taxable := item.Taxable
			sortOrder := item.SortOrder
			inputs = append(inputs, invoicedomain.LineItemInput{
				Description: item.Description,
				Quantity:    item.Quantity,
				UnitPrice:   item.UnitPrice,
				Taxable:     &taxable,
				SortOrder:   &sortOrder,
			})
		}
	}

	pricing := invoicedomain.Pricing{TaxRate: invoice.TaxRate}
	switch {
	case req.DiscountPercentage != nil:
		pricing.DiscountPercentage = req.DiscountPercentage
	case req.DiscountAmount != nil:
		pricing.DiscountAmount = req.DiscountAmount
	case invoice.DiscountPercentage.Valid:
		pct := invoice.DiscountPercentage.Decimal
		pricing.DiscountPercentage = &pct
	default:
		amount := invoice.DiscountAmount
		pricing.DiscountAmount = &amount
	}
	if req.TaxRate != nil {
		pricing.TaxRate = *req.TaxRate
	}

	totals, err := invoicedomain.ComputeTotals(inputs, pricing)
	if err != nil {
		return err
	}
	applyPricing(invoice, pricing, totals)
	invoice.ApplyBalance(invoice.AmountPaid, now)

	items := s.buildLineItems(invoice.ID, inputs, totals, now)
	if err := s.repo.ReplaceLineItems(ctx, tx, invoice.ID, items); err != nil {
		return err
	}
	invoice.LineItems = items
	return nil
}

func (s *Service) SendInvoice(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	invoice, err := s.GetInvoice(ctx, id)
	if err != nil {
		return nil, err
	}
	if !invoice.Status.Unsent() {
		return invoice, nil
	}
	status := invoicedomain.InvoiceStatusSent
	return s.UpdateInvoice(ctx, invoicedomain.UpdateInvoiceRequest{ID: id, Status: &status})
}

func (s *Service) CancelInvoice(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	status := invoicedomain.InvoiceStatusCancelled
	return s.UpdateInvoice(ctx, invoicedomain.UpdateInvoiceRequest{ID: id, Status: &status})
}

func (s *Service) GetInvoice(ctx context.Context, id string) (*invoicedomain.Invoice, error) {
	studioID, err := s.studioIDFromContext(ctx)
	if err != nil {
		return nil, err
	}
	invoiceID, err := parseID(id)
	if err != nil {
		return nil, invoicedomain.ErrInvalidInvoiceID
	}

	invoice, err := s.repo.FindByID(ctx, s.db, studioID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, invoicedomain.ErrInvoiceNotFound
	}
	return invoice, nil
}

func (s *Service) ListInvoices(ctx context.Context, req invoicedomain.ListInvoiceRequest) (invoicedomain.ListInvoiceResponse, error) {
	studioID, err := s.studioIDFromContext(ctx)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}

	filter := invoicedomain.ListFilter{
		StudioID: studioID,
		Status:   req.Status,
		Limit:    pagination(req.PageSize),
	}
	if req.Status != nil && !req.Status.Valid() {
		return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidStatus
	}
	if strings.TrimSpace(req.ClientID) != "" {
		clientID, err := parseID(req.ClientID)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, studiodomain.ErrInvalidClient
		}
		filter.ClientID = &clientID
	}
	if strings.TrimSpace(req.PageToken) != "" {
		cursor, err := decodeCursor(req.PageToken)
		if err != nil {
			return invoicedomain.ListInvoiceResponse{}, invoicedomain.ErrInvalidPageToken
		}
		filter.Cursor = &cursor
	}

	items, err := s.repo.List(ctx, s.db, filter)
	if err != nil {
		return invoicedomain.ListInvoiceResponse{}, err
	}
	items, pageInfo := buildPage(items, filter.Limit)

	invoices := make([]invoicedomain.Invoice, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		invoices = append(invoices, *item)
	}
	return invoicedomain.ListInvoiceResponse{PageInfo: pageInfo, Invoices: invoices}, nil
}

// MarkViewed resolves a public link. Only a SENT invoice moves to VIEWED.
func (s *Service) MarkViewed(ctx context.Context, publicToken string) (*invoicedomain.PublicInvoice, error) {
	token := strings.TrimSpace(publicToken)
	if token == "" {
		return nil, invoicedomain.ErrInvoiceNotFound
	}

	now := s.clock.Now().UTC()
	var (
		result *invoicedomain.PublicInvoice
		viewed bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		found, err := s.repo.FindByPublicToken(ctx, tx, token)
		if err != nil {
			return err
		}
		if found == nil || found.Status.Unsent() {
			return invoicedomain.ErrInvoiceNotFound
		}

		invoice, err := s.repo.FindByIDForUpdate(ctx, tx, found.StudioID, found.ID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if invoice.Status == invoicedomain.InvoiceStatusSent {
			invoice.Status = invoicedomain.InvoiceStatusViewed
			invoice.UpdatedAt = now
			if err := s.repo.Update(ctx, tx, invoice); err != nil {
				return err
			}
			viewed = true
		}

		studio, err := s.studioRepo.FindStudio(ctx, tx, invoice.StudioID)
		if err != nil {
			return err
		}
		client, err := s.studioRepo.FindClient(ctx, tx, invoice.StudioID, invoice.ClientID)
		if err != nil {
			return err
		}

		result = &invoicedomain.PublicInvoice{Invoice: *invoice}
		if studio != nil {
			result.StudioName = studio.Name
		}
		if client != nil {
			result.ClientName = client.Name
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if viewed {
		s.audit(ctx, "invoice.viewed", &result.Invoice,
			map[string]any{"status": string(invoicedomain.InvoiceStatusSent)},
			map[string]any{"status": string(invoicedomain.InvoiceStatusViewed)},
		)
	}
	return result, nil
}

// ClaimReminder records that the reminder for daysPastDue was sent so a later
// run on the same day, or on another replica, skips it.
func (s *Service) ClaimReminder(ctx context.Context, studioID, invoiceID snowflake.ID, daysPastDue int) (*invoicedomain.ReminderClaim, error) {
	now := s.clock.Now().UTC()
	var (
		claim  *invoicedomain.ReminderClaim
		before map[string]any
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		invoice, err := s.repo.FindByIDForUpdate(ctx, tx, studioID, invoiceID)
		if err != nil {
			return err
		}
		if invoice == nil {
			return invoicedomain.ErrInvoiceNotFound
		}
		if !remindable(invoice.Status) || invoice.DaysPastDue(now) != daysPastDue {
			return nil
		}
		if invoice.LastReminderDays >= daysPastDue {
			return nil
		}

		before = snapshot(invoice)
		invoice.Status = invoicedomain.InvoiceStatusOverdue
		invoice.LastReminderDays = daysPastDue
		invoice.LastReminderAt = &now
		invoice.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, invoice); err != nil {
			return err
		}
		claim = &invoicedomain.ReminderClaim{Invoice: *invoice, DaysPastDue: daysPastDue}
		return nil
	})
	if err != nil || claim == nil {
		return nil, err
	}

	s.audit(ctx, "invoice.reminder_recorded", &claim.Invoice, before, snapshot(&claim.Invoice))
	return claim, nil
}

func (s *Service) deliverInvoice(ctx context.Context, invoice *invoicedomain.Invoice) {
	studio, client, err := s.parties(ctx, invoice)
	if err != nil {
		s.log.Warn("failed to load invoice recipients",
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
		return
	}

	err = s.notifier.InvoiceSent(ctx, notification.InvoiceMessage{
		Studio:        notification.Studio{Name: studio.Name, Email: studio.Email},
		To:            notification.Recipient{Name: client.Name, Email: client.Email},
		InvoiceNumber: invoice.InvoiceNumber,
		Currency:      invoice.Currency,
		Total:         invoice.Total,
		AmountDue:     invoice.AmountDue,
		DueDate:       invoice.DueDate,
		ViewURL:       s.PublicURL(invoice),
	})
	if err != nil {
		s.log.Warn("failed to send invoice email",
			zap.String("invoice_id", invoice.ID.String()),
			zap.String("client_id", invoice.ClientID.String()),
			zap.Error(err),
		)
		return
	}
	s.metrics.RecordInvoiceSent(ctx)
}

func (s *Service) parties(ctx context.Context, invoice *invoicedomain.Invoice) (*studiodomain.Studio, *studiodomain.Client, error) {
	studio, err := s.studioRepo.FindStudio(ctx, s.db, invoice.StudioID)
	if err != nil {
		return nil, nil, err
	}
	if studio == nil {
		return nil, nil, studiodomain.ErrStudioNotFound
	}
	client, err := s.studioRepo.FindClient(ctx, s.db, invoice.StudioID, invoice.ClientID)
	if err != nil {
		return nil, nil, err
	}
	if client == nil {
		return nil, nil, studiodomain.ErrClientNotFound
	}
	return studio, client, nil
}

// PublicURL is the client-facing link for an invoice.
func (s *Service) PublicURL(invoice *invoicedomain.Invoice) string {
	if s.publicBaseURL == "" || invoice.PublicToken == "" {
		return ""
	}
	return s.publicBaseURL + "/public/invoices/" + invoice.PublicToken
}

func (s *Service) buildLineItems(invoiceID snowflake.ID, inputs []invoicedomain.LineItemInput, totals invoicedomain.Totals, now time.Time) []invoicedomain.LineItem {
	items := make([]invoicedomain.LineItem, 0, len(inputs))
	for i, input := range inputs {
		sortOrder := i
		if input.SortOrder != nil {
			sortOrder = *input.SortOrder
		}
		items = append(items, invoicedomain.LineItem{
			ID:          s.genID.Generate(),
			InvoiceID:   invoiceID,
			Description: strings.TrimSpace(input.Description),
			Quantity:    input.Quantity,
			UnitPrice:   input.UnitPrice,
			Total:       totals.Items[i].Total,
			Taxable:     input.IsTaxable(),
			TaxAmount:   totals.Items[i].TaxAmount,
			SortOrder:   sortOrder,
			CreatedAt:   now,
		})
	}
	return items
}

func (s *Service) audit(ctx context.Context, action string, invoice *invoicedomain.Invoice, before, after map[string]any) {
	if s.auditSvc == nil || invoice == nil {
		return
	}
	err := s.auditSvc.Record(ctx, auditdomain.Entry{
		StudioID:   invoice.StudioID,
		Action:     action,
		EntityType: "invoice",
		EntityID:   invoice.ID.String(),
		OldValues:  before,
		NewValues:  after,
		Metadata:   map[string]any{"invoice_number": invoice.InvoiceNumber},
	})
	if err != nil {
		s.log.Warn("failed to audit invoice change",
			zap.String("action", action),
			zap.String("invoice_id", invoice.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) studioIDFromContext(ctx context.Context) (snowflake.ID, error) {
	studioID, ok := studiocontext.StudioIDFromContext(ctx)
	if !ok {
		return 0, studiodomain.ErrStudioRequired
	}
	return studioID, nil
}

func applyPricing(invoice *invoicedomain.Invoice, pricing invoicedomain.Pricing, totals invoicedomain.Totals) {
	invoice.DiscountPercentage = decimal.NullDecimal{}
	if pricing.DiscountPercentage != nil {
		invoice.DiscountPercentage = decimal.NewNullDecimal(pricing.DiscountPercentage.Round(2))
	}
	invoice.Subtotal = totals.Subtotal
	invoice.DiscountAmount = totals.DiscountAmount
	invoice.TaxRate = pricing.TaxRate.Round(2)
	invoice.TaxAmount = totals.TaxAmount
	invoice.Total = totals.Total
}

func updatableStatus(status invoicedomain.InvoiceStatus) bool {
	switch status {
	case invoicedomain.InvoiceStatusDraft, invoicedomain.InvoiceStatusScheduled,
		invoicedomain.InvoiceStatusSent, invoicedomain.InvoiceStatusCancelled:
		return true
	}
	return false
}

func remindable(status invoicedomain.InvoiceStatus) bool {
	switch status {
	case invoicedomain.InvoiceStatusSent, invoicedomain.InvoiceStatusViewed,
		invoicedomain.InvoiceStatusPartiallyPaid, invoicedomain.InvoiceStatusOverdue:
		return true
	}
	return false
}

func invoiceSource(invoice *invoicedomain.Invoice) string {
	if invoice.Metadata != nil {
		if source, ok := invoice.Metadata["source"].(string); ok && source != "" {
			return source
		}
	}
	return "manual"
}

func snapshot(invoice *invoicedomain.Invoice) map[string]any {
	if invoice == nil {
		return nil
	}
	return map[string]any{
		"status":      string(invoice.Status),
		"subtotal":    invoice.Subtotal.StringFixed(2),
		"discount":    invoice.DiscountAmount.StringFixed(2),
		"tax_rate":    invoice.TaxRate.StringFixed(2),
		"tax":         invoice.TaxAmount.StringFixed(2),
		"total":       invoice.Total.StringFixed(2),
		"amount_paid": invoice.AmountPaid.StringFixed(2),
		"amount_due":  invoice.AmountDue.StringFixed(2),
		"due_date":    invoice.DueDate.UTC().Format(time.RFC3339),
		"line_items":  len(invoice.LineItems),
	}
}

func newPublicToken(now time.Time) string {
	return strings.ToLower(ulid.MustNew(ulid.Timestamp(now), ulid.DefaultEntropy()).String())
}

func toJSONMap(values map[string]any) datatypes.JSONMap {
	if len(values) == 0 {
		return nil
	}
	return datatypes.JSONMap(values)
}

func parseID(value string) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, errors.New("zero id")
	}
	return id, nil
}
