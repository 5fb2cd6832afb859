package paypal

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/studioledger/internal/apperr"
	paymentdomain "github.com/smallbiznis/studioledger/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePayPal struct {
	orderStatus   string
	captures      atomic.Int32
	tokens        atomic.Int32
	lastCustomID  string
	verifyStatus  string
	failCreateOut bool
}

func (f *fakePayPal) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client" || pass != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		f.tokens.Add(1)
		writeJSON(w, map[string]any{"access_token": "tok", "expires_in": 3600})
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		if f.failCreateOut {
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY"}`))
			return
		}
		var body struct {
			Intent        string `json:"intent"`
			PurchaseUnits []struct {
				CustomID string `json:"custom_id"`
			} `json:"purchase_units"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "CAPTURE", body.Intent)
		f.lastCustomID = body.PurchaseUnits[0].CustomID
		writeJSON(w, map[string]any{
			"id":     "ORDER-1",
			"status": "CREATED",
			"links": []map[string]string{
				{"rel": "self", "href": "https://api.paypal.test/v2/checkout/orders/ORDER-1"},
				{"rel": "approve", "href": "https://www.paypal.test/checkoutnow?token=ORDER-1"},
			},
		})
	})
	mux.HandleFunc("/v2/checkout/orders/ORDER-1", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, map[string]any{
			"id":     "ORDER-1",
			"status": f.orderStatus,
			"purchase_units": []map[string]any{{
				"custom_id": f.lastCustomID,
				"amount":    map[string]string{"currency_code": "USD", "value": "270.00"},
			}},
		})
	})
	mux.HandleFunc("/v2/checkout/orders/ORDER-1/capture", func(w http.ResponseWriter, r *http.Request) {
		f.captures.Add(1)
		f.orderStatus = "COMPLETED"
		writeJSON(w, map[string]any{"id": "ORDER-1", "status": "COMPLETED"})
	})
	mux.HandleFunc("/v1/notifications/verify-webhook-signature", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			TransmissionID string          `json:"transmission_id"`
			WebhookID      string          `json:"webhook_id"`
			WebhookEvent   json.RawMessage `json:"webhook_event"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "tx-1", body.TransmissionID)
		assert.Equal(t, "WH-1", body.WebhookID)
		assert.True(t, json.Valid(body.WebhookEvent))
		writeJSON(w, map[string]string{"verification_status": f.verifyStatus})
	})
	return mux
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func newAdapter(t *testing.T, fake *fakePayPal) paymentdomain.PaymentGateway {
	t.Helper()
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	gw, err := NewFactory(server.URL, server.Client()).New(map[string]any{
		"client_id":     "client",
		"client_secret": "secret",
		"webhook_id":    "WH-1",
	})
	require.NoError(t, err)
	return gw
}

func TestCreateAndCaptureOrder(t *testing.T) {
	fake := &fakePayPal{orderStatus: "APPROVED"}
	gw := newAdapter(t, fake)
	invoiceID := snowflake.ID(300)

	intent, err := gw.CreateIntent(context.Background(), paymentdomain.IntentRequest{
		StudioID:  10,
		ClientID:  20,
		InvoiceID: &invoiceID,
		Amount:    decimal.RequireFromString("270"),
		Currency:  "usd",
		ReturnURL: "https://studio.test/return",
	})
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", intent.ID)
	assert.Equal(t, "https://www.paypal.test/checkoutnow?token=ORDER-1", intent.ApprovalURL)
	assert.Equal(t, "USD", intent.Currency)

	values, err := url.ParseQuery(fake.lastCustomID)
	require.NoError(t, err)
	assert.Equal(t, "300", values.Get(paymentdomain.MetadataInvoiceID))

	charge, err := gw.Retrieve(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.PaymentStatusCompleted, charge.Status)
	assert.True(t, charge.Amount.Equal(decimal.RequireFromString("270")))
	assert.Equal(t, "10", charge.Metadata[paymentdomain.MetadataStudioID])
	assert.Equal(t, "20", charge.Metadata[paymentdomain.MetadataClientID])
	assert.Equal(t, int32(1), fake.captures.Load())
	assert.Equal(t, int32(1), fake.tokens.Load(), "token is cached between calls")
}

func TestRetrieveCompletedOrderDoesNotCaptureAgain(t *testing.T) {
	fake := &fakePayPal{orderStatus: "COMPLETED"}
	gw := newAdapter(t, fake)

	charge, err := gw.Retrieve(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.PaymentStatusCompleted, charge.Status)
	assert.Equal(t, int32(0), fake.captures.Load())
}

func TestRetrievePendingOrder(t *testing.T) {
	gw := newAdapter(t, &fakePayPal{orderStatus: "CREATED"})
	charge, err := gw.Retrieve(context.Background(), "ORDER-1")
	require.NoError(t, err)
	assert.Equal(t, paymentdomain.PaymentStatusPending, charge.Status)
}

func TestCreateOrderGatewayError(t *testing.T) {
	gw := newAdapter(t, &fakePayPal{failCreateOut: true})
	_, err := gw.CreateIntent(context.Background(), paymentdomain.IntentRequest{
		Amount: decimal.NewFromInt(1), Currency: "USD",
	})
	assert.ErrorIs(t, err, apperr.ErrExternal)
}

func TestRefundNotSupported(t *testing.T) {
	gw := newAdapter(t, &fakePayPal{})
	_, err := gw.Refund(context.Background(), paymentdomain.RefundRequest{TransactionID: "ORDER-1"})
	assert.ErrorIs(t, err, apperr.ErrNotSupported)
}

func TestParseWebhook(t *testing.T) {
	fake := &fakePayPal{verifyStatus: "SUCCESS"}
	gw := newAdapter(t, fake)
	parser := gw.(paymentdomain.WebhookParser)

	headers := http.Header{}
	headers.Set("Paypal-Transmission-Sig", "sig")
	headers.Set("Paypal-Transmission-Id", "tx-1")

	payload := []byte(`{"id":"WH-EVT-1","event_type":"PAYMENT.CAPTURE.COMPLETED","resource":{"id":"CAP-1","supplementary_data":{"related_ids":{"order_id":"ORDER-1"}}}}`)
	note, err := parser.ParseWebhook(context.Background(), payload, headers)
	require.NoError(t, err)
	assert.Equal(t, "WH-EVT-1", note.EventID)
	assert.Equal(t, "ORDER-1", note.TransactionID)

	approved := []byte(`{"id":"WH-EVT-2","event_type":"CHECKOUT.ORDER.APPROVED","resource":{"id":"ORDER-1"}}`)
	note, err = parser.ParseWebhook(context.Background(), approved, headers)
	require.NoError(t, err)
	assert.Equal(t, "ORDER-1", note.TransactionID)

	other := []byte(`{"id":"WH-EVT-3","event_type":"BILLING.PLAN.CREATED","resource":{"id":"P-1"}}`)
	note, err = parser.ParseWebhook(context.Background(), other, headers)
	require.NoError(t, err)
	assert.True(t, note.Ignored)

	fake.verifyStatus = "FAILURE"
	_, err = parser.ParseWebhook(context.Background(), payload, headers)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	_, err = parser.ParseWebhook(context.Background(), payload, http.Header{})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
}

func TestFactoryRequiresCredentials(t *testing.T) {
	_, err := NewFactory("https://api.paypal.test", nil).New(map[string]any{"client_id": "x"})
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidConfig)
}

func TestFactoryReusesAccountToken(t *testing.T) {
	fake := &fakePayPal{orderStatus: "COMPLETED"}
	server := httptest.NewServer(fake.handler(t))
	t.Cleanup(server.Close)

	factory := NewFactory(server.URL, server.Client())
	cfg := map[string]any{"client_id": "client", "client_secret": "secret"}
	for i := 0; i < 3; i++ {
		gw, err := factory.New(cfg)
		require.NoError(t, err)
		_, err = gw.Retrieve(context.Background(), "ORDER-1")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), fake.tokens.Load())
}
