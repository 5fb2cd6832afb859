// Package paypal drives redirect payments through the PayPal Orders v2 API.
package paypal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	sdk "github.com/plutov/paypal/v4"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/studioledger/internal/apperr"
	"github.com/smallbiznis/studioledger/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/studioledger/internal/payment/domain"
)

const (
	eventOrderApproved   = "CHECKOUT.ORDER.APPROVED"
	eventCaptureComplete = "PAYMENT.CAPTURE.COMPLETED"
	eventCaptureDenied   = "PAYMENT.CAPTURE.DENIED"

	orderCompleted = "COMPLETED"
	orderApproved  = "APPROVED"
	orderVoided    = "VOIDED"
)

// Factory keeps one SDK client per account so access tokens are reused
// across requests.
type Factory struct {
	baseURL string
	client  *http.Client

	mu      sync.Mutex
	clients map[string]*sdk.Client
}

// NewFactory targets baseURL unless a studio config overrides it with base_url.
func NewFactory(baseURL string, client *http.Client) *Factory {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Factory{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		clients: map[string]*sdk.Client{},
	}
}

func (f *Factory) Gateway() string {
	return paymentdomain.GatewayPayPal
}

func (f *Factory) New(cfg map[string]any) (paymentdomain.PaymentGateway, error) {
	clientID, ok := adapters.ReadString(cfg, "client_id")
	if !ok {
		return nil, paymentdomain.ErrInvalidConfig
	}
	clientSecret, ok := adapters.ReadString(cfg, "client_secret")
	if !ok {
		return nil, paymentdomain.ErrInvalidConfig
	}
	webhookID, _ := adapters.ReadString(cfg, "webhook_id")

	baseURL := f.baseURL
	if override, ok := adapters.ReadString(cfg, "base_url"); ok {
		baseURL = strings.TrimRight(override, "/")
	}
	if baseURL == "" {
		return nil, paymentdomain.ErrInvalidConfig
	}

	client, err := f.sdkClient(clientID, clientSecret, baseURL)
	if err != nil {
		return nil, err
	}
	return &Adapter{client: client, webhookID: webhookID}, nil
}

func (f *Factory) sdkClient(clientID, secret, baseURL string) (*sdk.Client, error) {
	key := baseURL + "\x00" + clientID + "\x00" + secret

	f.mu.Lock()
	defer f.mu.Unlock()
	if client, ok := f.clients[key]; ok {
		return client, nil
	}
	client, err := sdk.NewClient(clientID, secret, baseURL)
	if err != nil {
		return nil, paymentdomain.ErrInvalidConfig
	}
	client.SetHTTPClient(f.client)
	f.clients[key] = client
	return client, nil
}

type Adapter struct {
	client    *sdk.Client
	webhookID string
}

func (a *Adapter) Gateway() string {
	return paymentdomain.GatewayPayPal
}

func (a *Adapter) CreateIntent(ctx context.Context, req paymentdomain.IntentRequest) (*paymentdomain.Intent, error) {
	currency := strings.ToUpper(req.Currency)
	units := []sdk.PurchaseUnitRequest{{
		ReferenceID: req.ClientID.String(),
		CustomID:    customID(req),
		Description: req.Description,
		Amount:      &sdk.PurchaseUnitAmount{Currency: currency, Value: req.Amount.StringFixed(2)},
	}}
	appContext := &sdk.ApplicationContext{
		ReturnURL:  req.ReturnURL,
		CancelURL:  req.CancelURL,
		UserAction: "PAY_NOW",
	}

	created, err := a.client.CreateOrder(ctx, sdk.OrderIntentCapture, units, nil, appContext)
	if err != nil {
		return nil, apperr.External("paypal", err)
	}

	intent := &paymentdomain.Intent{
		ID:       created.ID,
		Amount:   req.Amount.Round(2),
		Currency: currency,
		Status:   created.Status,
	}
	for _, l := range created.Links {
		if l.Rel == "approve" || l.Rel == "payer-action" {
			intent.ApprovalURL = l.Href
			break
		}
	}
	return intent, nil
}

// Retrieve reads the order and captures it when the payer has approved it.
func (a *Adapter) Retrieve(ctx context.Context, transactionID string) (*paymentdomain.Charge, error) {
	current, err := a.client.GetOrder(ctx, transactionID)
	if err != nil {
		return nil, apperr.External("paypal", err)
	}
	if current.Status == orderApproved {
		if _, err := a.client.CaptureOrder(ctx, transactionID, sdk.CaptureOrderRequest{}); err != nil {
			return nil, apperr.External("paypal", err)
		}
		if current, err = a.client.GetOrder(ctx, transactionID); err != nil {
			return nil, apperr.External("paypal", err)
		}
	}

	charge := &paymentdomain.Charge{ID: current.ID}
	switch current.Status {
	case orderCompleted:
		charge.Status = paymentdomain.PaymentStatusCompleted
	case orderVoided:
		charge.Status = paymentdomain.PaymentStatusFailed
		charge.FailureReason = "order voided"
	default:
		charge.Status = paymentdomain.PaymentStatusPending
	}

	if len(current.PurchaseUnits) > 0 {
		unit := current.PurchaseUnits[0]
		if unit.Amount == nil {
			return nil, apperr.External("paypal", fmt.Errorf("order %s has no amount", current.ID))
		}
		value, err := decimal.NewFromString(unit.Amount.Value)
		if err != nil {
			return nil, apperr.External("paypal", fmt.Errorf("invalid order amount %q", unit.Amount.Value))
		}
		charge.Amount = value
		charge.Currency = strings.ToUpper(unit.Amount.Currency)
		charge.Metadata = parseCustomID(unit.CustomID)
	}
	return charge, nil
}

// Refund is not offered for redirect payments; studios refund from the
// PayPal dashboard.
func (a *Adapter) Refund(ctx context.Context, req paymentdomain.RefundRequest) (*paymentdomain.RefundResult, error) {
	return nil, paymentdomain.ErrRefundNotSupported
}

type webhookEnvelope struct {
	ID        string          `json:"id"`
	EventType string          `json:"event_type"`
	Resource  webhookResource `json:"resource"`
}

type webhookResource struct {
	ID                string `json:"id"`
	SupplementaryData struct {
		RelatedIDs struct {
			OrderID string `json:"order_id"`
		} `json:"related_ids"`
	} `json:"supplementary_data"`
}

// ParseWebhook asks PayPal to verify the transmission before trusting the
// event body.
func (a *Adapter) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*paymentdomain.Notification, error) {
	if a.webhookID == "" || headers.Get("Paypal-Transmission-Sig") == "" {
		return nil, paymentdomain.ErrInvalidSignature
	}
	if !json.Valid(payload) {
		return nil, paymentdomain.ErrInvalidPayload
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header = headers.Clone()
	verified, err := a.client.VerifyWebhookSignature(ctx, req, a.webhookID)
	if err != nil {
		return nil, apperr.External("paypal", err)
	}
	if verified.VerificationStatus != "SUCCESS" {
		return nil, paymentdomain.ErrInvalidSignature
	}

	var event webhookEnvelope
	if err := json.Unmarshal(payload, &event); err != nil || event.ID == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}

	notification := &paymentdomain.Notification{EventID: event.ID, EventType: event.EventType}
	switch event.EventType {
	case eventOrderApproved:
		notification.TransactionID = event.Resource.ID
	case eventCaptureComplete, eventCaptureDenied:
		notification.TransactionID = event.Resource.SupplementaryData.RelatedIDs.OrderID
	default:
		notification.Ignored = true
		return notification, nil
	}
	if notification.TransactionID == "" {
		return nil, paymentdomain.ErrInvalidPayload
	}
	return notification, nil
}

// customID packs the routing ids into the 127-char custom_id field.
func customID(req paymentdomain.IntentRequest) string {
	values := url.Values{}
	values.Set(paymentdomain.MetadataStudioID, req.StudioID.String())
	values.Set(paymentdomain.MetadataClientID, req.ClientID.String())
	if req.InvoiceID != nil {
		values.Set(paymentdomain.MetadataInvoiceID, req.InvoiceID.String())
	}
	if req.BookingID != nil {
		values.Set(paymentdomain.MetadataBookingID, req.BookingID.String())
	}
	return values.Encode()
}

func parseCustomID(raw string) map[string]string {
	values, err := url.ParseQuery(raw)
	if err != nil {
		return nil
	}
	out := make(map[string]string, len(values))
	for key := range values {
		out[key] = values.Get(key)
	}
	return out
}
