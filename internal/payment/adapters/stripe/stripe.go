// Package stripe drives card payments through Stripe payment intents.
package stripe

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/smallbiznis/studioledger/internal/apperr"
	"github.com/smallbiznis/studioledger/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/studioledger/internal/payment/domain"
	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

const (
	eventIntentSucceeded = "payment_intent.succeeded"
	eventIntentFailed    = "payment_intent.payment_failed"
)

type intentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type refundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

type customerAPI interface {
	New(params *stripe.CustomerParams) (*stripe.Customer, error)
}

type Factory struct {
	backends *stripe.Backends
}

// NewFactory uses the default Stripe backends when backends is nil.
func NewFactory(backends *stripe.Backends) *Factory {
	return &Factory{backends: backends}
}

func (f *Factory) Gateway() string {
	return paymentdomain.GatewayStripe
}

func (f *Factory) New(cfg map[string]any) (paymentdomain.PaymentGateway, error) {
	secretKey, ok := adapters.ReadString(cfg, "secret_key")
	if !ok {
		return nil, paymentdomain.ErrInvalidConfig
	}
	webhookSecret, _ := adapters.ReadString(cfg, "webhook_secret")

	sc := client.New(secretKey, f.backends)
	return &Adapter{
		intents:       sc.PaymentIntents,
		refunds:       sc.Refunds,
		customers:     sc.Customers,
		webhookSecret: webhookSecret,
	}, nil
}

type Adapter struct {
	intents       intentAPI
	refunds       refundAPI
	customers     customerAPI
	webhookSecret string
}

func (a *Adapter) Gateway() string {
	return paymentdomain.GatewayStripe
}

func (a *Adapter) EnsureCustomer(ctx context.Context, req paymentdomain.CustomerRequest) (string, error) {
	params := &stripe.CustomerParams{
		Name:  stripe.String(req.Name),
		Email: stripe.String(req.Email),
	}
	params.Context = ctx
	params.AddMetadata(paymentdomain.MetadataStudioID, req.StudioID.String())
	params.AddMetadata(paymentdomain.MetadataClientID, req.ClientID.String())

	customer, err := a.customers.New(params)
	if err != nil {
		return "", apperr.External("stripe", err)
	}
	return customer.ID, nil
}

func (a *Adapter) CreateIntent(ctx context.Context, req paymentdomain.IntentRequest) (*paymentdomain.Intent, error) {
	currency := strings.ToLower(req.Currency)
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(paymentdomain.ToMinorUnits(req.Amount, currency)),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}
	if req.CustomerRef != "" {
		params.Customer = stripe.String(req.CustomerRef)
	}
	for key, value := range intentMetadata(req) {
		params.AddMetadata(key, value)
	}

	intent, err := a.intents.New(params)
	if err != nil {
		return nil, apperr.External("stripe", err)
	}
	return &paymentdomain.Intent{
		ID:           intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       paymentdomain.FromMinorUnits(intent.Amount, string(intent.Currency)),
		Currency:     strings.ToUpper(string(intent.Currency)),
		Status:       string(intent.Status),
	}, nil
}

func (a *Adapter) Retrieve(ctx context.Context, transactionID string) (*paymentdomain.Charge, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := a.intents.Get(transactionID, params)
	if err != nil {
		return nil, apperr.External("stripe", err)
	}

	amount := intent.AmountReceived
	if amount <= 0 {
		amount = intent.Amount
	}
	charge := &paymentdomain.Charge{
		ID:       intent.ID,
		Status:   intentStatus(intent),
		Amount:   paymentdomain.FromMinorUnits(amount, string(intent.Currency)),
		Currency: strings.ToUpper(string(intent.Currency)),
		Metadata: intent.Metadata,
	}
	if intent.LastPaymentError != nil {
		charge.FailureReason = intent.LastPaymentError.Msg
	}
	return charge, nil
}

func (a *Adapter) Refund(ctx context.Context, req paymentdomain.RefundRequest) (*paymentdomain.RefundResult, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(req.TransactionID),
		Amount:        stripe.Int64(paymentdomain.ToMinorUnits(req.Amount, req.Currency)),
		Reason:        stripe.String(string(stripe.RefundReasonRequestedByCustomer)),
	}
	params.Context = ctx
	if reason := strings.TrimSpace(req.Reason); reason != "" {
		params.AddMetadata("reason", reason)
	}
	for key, value := range req.Metadata {
		params.AddMetadata(key, value)
	}

	refund, err := a.refunds.New(params)
	if err != nil {
		return nil, apperr.External("stripe", err)
	}
	return &paymentdomain.RefundResult{ID: refund.ID, Status: string(refund.Status)}, nil
}

func (a *Adapter) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*paymentdomain.Notification, error) {
	sigHeader := strings.TrimSpace(headers.Get("Stripe-Signature"))
	if sigHeader == "" || a.webhookSecret == "" {
		return nil, paymentdomain.ErrInvalidSignature
	}
	if err := webhook.ValidatePayload(payload, sigHeader, a.webhookSecret); err != nil {
		return nil, paymentdomain.ErrInvalidSignature
	}

	var event stripe.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if strings.TrimSpace(event.ID) == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}

	notification := &paymentdomain.Notification{
		EventID:   event.ID,
		EventType: string(event.Type),
	}
	switch string(event.Type) {
	case eventIntentSucceeded, eventIntentFailed:
	default:
		notification.Ignored = true
		return notification, nil
	}

	if event.Data == nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil || intent.ID == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}
	notification.TransactionID = intent.ID
	return notification, nil
}

func intentStatus(intent *stripe.PaymentIntent) paymentdomain.PaymentStatus {
	switch intent.Status {
	case stripe.PaymentIntentStatusSucceeded:
		return paymentdomain.PaymentStatusCompleted
	case stripe.PaymentIntentStatusCanceled:
		return paymentdomain.PaymentStatusFailed
	case stripe.PaymentIntentStatusRequiresPaymentMethod:
		if intent.LastPaymentError != nil {
			return paymentdomain.PaymentStatusFailed
		}
	}
	return paymentdomain.PaymentStatusPending
}

func intentMetadata(req paymentdomain.IntentRequest) map[string]string {
	out := map[string]string{
		paymentdomain.MetadataStudioID: req.StudioID.String(),
		paymentdomain.MetadataClientID: req.ClientID.String(),
	}
	if req.InvoiceID != nil {
		out[paymentdomain.MetadataInvoiceID] = req.InvoiceID.String()
	}
	if req.BookingID != nil {
		out[paymentdomain.MetadataBookingID] = req.BookingID.String()
	}
	return out
}
