// Package notification turns billing events into client emails.
package notification

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/smallbiznis/studioledger/internal/apperr"
	"github.com/smallbiznis/studioledger/internal/providers/email"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// ErrNoRecipient is returned when the client has no email address on file.
var ErrNoRecipient = errors.New("notification_no_recipient")

type Studio struct {
	Name  string
	Email string
}

type Recipient struct {
	Name  string
	Email string
}

type InvoiceMessage struct {
	Studio        Studio
	To            Recipient
	InvoiceNumber string
	Currency      string
	Total         decimal.Decimal
	AmountDue     decimal.Decimal
	DueDate       time.Time
	ViewURL       string
}

type PaymentMessage struct {
	Studio        Studio
	To            Recipient
	Currency      string
	Amount        decimal.Decimal
	InvoiceNumber string
	AmountDue     decimal.Decimal
}

type RefundMessage struct {
	Studio        Studio
	To            Recipient
	Currency      string
	Amount        decimal.Decimal
	RefundedTotal decimal.Decimal
	Reason        string
}

type ReminderMessage struct {
	Studio        Studio
	To            Recipient
	InvoiceNumber string
	Currency      string
	AmountDue     decimal.Decimal
	DueDate       time.Time
	DaysPastDue   int
	ViewURL       string
}

type CampaignMessage struct {
	Studio  Studio
	To      Recipient
	Subject string
	// HTMLBody may contain {{name}}, replaced with the recipient name.
	HTMLBody string
}

type Notifier interface {
	InvoiceSent(ctx context.Context, msg InvoiceMessage) error
	PaymentReceived(ctx context.Context, msg PaymentMessage) error
	RefundIssued(ctx context.Context, msg RefundMessage) error
	PaymentReminder(ctx context.Context, msg ReminderMessage) error
	Campaign(ctx context.Context, msg CampaignMessage) error
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Provider email.Provider
}

type EmailNotifier struct {
	log      *zap.Logger
	provider email.Provider
}

func New(p Params) Notifier {
	return &EmailNotifier{
		log:      p.Log.Named("notification"),
		provider: p.Provider,
	}
}

func (n *EmailNotifier) InvoiceSent(ctx context.Context, msg InvoiceMessage) error {
	subject := fmt.Sprintf("Invoice %s from %s", msg.InvoiceNumber, msg.Studio.Name)
	return n.send(ctx, msg.To, subject, "invoice_sent", map[string]any{
		"StudioName":    msg.Studio.Name,
		"StudioEmail":   msg.Studio.Email,
		"ClientName":    msg.To.Name,
		"InvoiceNumber": msg.InvoiceNumber,
		"Currency":      msg.Currency,
		"Total":         msg.Total,
		"AmountDue":     msg.AmountDue,
		"DueDate":       msg.DueDate,
		"ViewURL":       msg.ViewURL,
	})
}

func (n *EmailNotifier) PaymentReceived(ctx context.Context, msg PaymentMessage) error {
	subject := fmt.Sprintf("Payment received by %s", msg.Studio.Name)
	return n.send(ctx, msg.To, subject, "payment_received", map[string]any{
		"StudioName":    msg.Studio.Name,
		"StudioEmail":   msg.Studio.Email,
		"ClientName":    msg.To.Name,
		"Currency":      msg.Currency,
		"Amount":        msg.Amount,
		"InvoiceNumber": msg.InvoiceNumber,
		"AmountDue":     msg.AmountDue,
	})
}

func (n *EmailNotifier) RefundIssued(ctx context.Context, msg RefundMessage) error {
	subject := fmt.Sprintf("Refund issued by %s", msg.Studio.Name)
	return n.send(ctx, msg.To, subject, "refund_issued", map[string]any{
		"StudioName":    msg.Studio.Name,
		"StudioEmail":   msg.Studio.Email,
		"ClientName":    msg.To.Name,
		"Currency":      msg.Currency,
		"Amount":        msg.Amount,
		"RefundedTotal": msg.RefundedTotal,
		"Reason":        msg.Reason,
	})
}

func (n *EmailNotifier) PaymentReminder(ctx context.Context, msg ReminderMessage) error {
	subject := fmt.Sprintf("Reminder: invoice %s is %d days past due", msg.InvoiceNumber, msg.DaysPastDue)
	return n.send(ctx, msg.To, subject, "payment_reminder", map[string]any{
		"StudioName":    msg.Studio.Name,
		"StudioEmail":   msg.Studio.Email,
		"ClientName":    msg.To.Name,
		"InvoiceNumber": msg.InvoiceNumber,
		"Currency":      msg.Currency,
		"AmountDue":     msg.AmountDue,
		"DueDate":       msg.DueDate,
		"DaysPastDue":   msg.DaysPastDue,
		"ViewURL":       msg.ViewURL,
	})
}

func (n *EmailNotifier) Campaign(ctx context.Context, msg CampaignMessage) error {
	body := strings.ReplaceAll(msg.HTMLBody, "{{name}}", template.HTMLEscapeString(msg.To.Name))
	return n.send(ctx, msg.To, msg.Subject, "campaign", campaignData{
		StudioName:  msg.Studio.Name,
		StudioEmail: msg.Studio.Email,
		Body:        trustedHTML(body),
	})
}

func (n *EmailNotifier) send(ctx context.Context, to Recipient, subject, templateName string, data any) error {
	addr := strings.TrimSpace(to.Email)
	if addr == "" {
		return ErrNoRecipient
	}
	if err := n.provider.SendTemplate(ctx, []string{addr}, subject, templateName, data); err != nil {
		n.log.Warn("email send failed",
			zap.String("template", templateName),
			zap.Error(err),
		)
		return apperr.External("email", err)
	}
	return nil
}
