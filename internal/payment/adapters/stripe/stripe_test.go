package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/studioledger/internal/apperr"
	paymentdomain "github.com/smallbiznis/studioledger/internal/payment/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	stripe "github.com/stripe/stripe-go/v76"
)

type fakeIntents struct {
	created *stripe.PaymentIntentParams
	intent  *stripe.PaymentIntent
	err     error
}

func (f *fakeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.created = params
	if f.err != nil {
		return nil, f.err
	}
	return &stripe.PaymentIntent{
		ID:           "pi_123",
		ClientSecret: "pi_123_secret_abc",
		Amount:       *params.Amount,
		Currency:     stripe.Currency(*params.Currency),
		Status:       stripe.PaymentIntentStatusRequiresPaymentMethod,
	}, nil
}

func (f *fakeIntents) Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.intent, nil
}

type fakeRefunds struct {
	params *stripe.RefundParams
}

func (f *fakeRefunds) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	f.params = params
	return &stripe.Refund{ID: "re_1", Status: stripe.RefundStatusSucceeded}, nil
}

type fakeCustomers struct{}

func (fakeCustomers) New(params *stripe.CustomerParams) (*stripe.Customer, error) {
	return &stripe.Customer{ID: "cus_" + *params.Name}, nil
}

func TestCreateIntent(t *testing.T) {
	intents := &fakeIntents{}
	adapter := &Adapter{intents: intents}
	invoiceID := snowflake.ID(77)

	intent, err := adapter.CreateIntent(context.Background(), paymentdomain.IntentRequest{
		StudioID:    1,
		ClientID:    2,
		InvoiceID:   &invoiceID,
		Amount:      decimal.RequireFromString("270.00"),
		Currency:    "USD",
		CustomerRef: "cus_9",
	})
	require.NoError(t, err)

	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientSecret)
	assert.True(t, intent.Amount.Equal(decimal.RequireFromString("270")))
	assert.Equal(t, "USD", intent.Currency)

	assert.Equal(t, int64(27000), *intents.created.Amount)
	assert.Equal(t, "usd", *intents.created.Currency)
	assert.Equal(t, "cus_9", *intents.created.Customer)
	assert.Equal(t, "77", intents.created.Metadata[paymentdomain.MetadataInvoiceID])
	assert.Equal(t, "1", intents.created.Metadata[paymentdomain.MetadataStudioID])
	assert.NotContains(t, intents.created.Metadata, paymentdomain.MetadataBookingID)
}

func TestCreateIntentExternalError(t *testing.T) {
	adapter := &Adapter{intents: &fakeIntents{err: errors.New("card network down")}}
	_, err := adapter.CreateIntent(context.Background(), paymentdomain.IntentRequest{
		Amount: decimal.NewFromInt(10), Currency: "USD",
	})
	assert.ErrorIs(t, err, apperr.ErrExternal)
}

func TestRetrieveStatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		intent *stripe.PaymentIntent
		want   paymentdomain.PaymentStatus
		reason string
	}{
		{
			name:   "succeeded",
			intent: &stripe.PaymentIntent{ID: "pi_1", Status: stripe.PaymentIntentStatusSucceeded, Amount: 27000, AmountReceived: 27000, Currency: "usd"},
			want:   paymentdomain.PaymentStatusCompleted,
		},
		{
			name: "declined",
			intent: &stripe.PaymentIntent{
				ID: "pi_2", Status: stripe.PaymentIntentStatusRequiresPaymentMethod, Amount: 27000, Currency: "usd",
				LastPaymentError: &stripe.Error{Msg: "Your card was declined."},
			},
			want:   paymentdomain.PaymentStatusFailed,
			reason: "Your card was declined.",
		},
		{
			name:   "canceled",
			intent: &stripe.PaymentIntent{ID: "pi_3", Status: stripe.PaymentIntentStatusCanceled, Amount: 27000, Currency: "usd"},
			want:   paymentdomain.PaymentStatusFailed,
		},
		{
			name:   "processing",
			intent: &stripe.PaymentIntent{ID: "pi_4", Status: stripe.PaymentIntentStatusProcessing, Amount: 27000, Currency: "usd"},
			want:   paymentdomain.PaymentStatusPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			adapter := &Adapter{intents: &fakeIntents{intent: tt.intent}}
			charge, err := adapter.Retrieve(context.Background(), tt.intent.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, charge.Status)
			assert.Equal(t, tt.reason, charge.FailureReason)
			assert.True(t, charge.Amount.Equal(decimal.NewFromInt(270)))
			assert.Equal(t, "USD", charge.Currency)
		})
	}
}

func TestRefund(t *testing.T) {
	refunds := &fakeRefunds{}
	adapter := &Adapter{refunds: refunds}

	result, err := adapter.Refund(context.Background(), paymentdomain.RefundRequest{
		TransactionID: "pi_1",
		Amount:        decimal.NewFromInt(100),
		Currency:      "USD",
		Reason:        "session cancelled",
	})
	require.NoError(t, err)
	assert.Equal(t, "re_1", result.ID)
	assert.Equal(t, "pi_1", *refunds.params.PaymentIntent)
	assert.Equal(t, int64(10000), *refunds.params.Amount)
	assert.Equal(t, "session cancelled", refunds.params.Metadata["reason"])
}

func TestEnsureCustomer(t *testing.T) {
	adapter := &Adapter{customers: fakeCustomers{}}
	id, err := adapter.EnsureCustomer(context.Background(), paymentdomain.CustomerRequest{Name: "ana", Email: "ana@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "cus_ana", id)
}

func TestParseWebhook(t *testing.T) {
	secret := "whsec_test"
	adapter := &Adapter{webhookSecret: secret}
	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_42","object":"payment_intent","amount":27000,"currency":"usd"}}}`)

	headers := http.Header{}
	headers.Set("Stripe-Signature", signature(secret, payload, time.Now().Unix()))
	note, err := adapter.ParseWebhook(context.Background(), payload, headers)
	require.NoError(t, err)
	assert.Equal(t, "evt_1", note.EventID)
	assert.Equal(t, "pi_42", note.TransactionID)
	assert.False(t, note.Ignored)

	headers.Set("Stripe-Signature", signature("wrong", payload, time.Now().Unix()))
	_, err = adapter.ParseWebhook(context.Background(), payload, headers)
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)

	ignored := []byte(`{"id":"evt_2","object":"event","type":"customer.created","data":{"object":{"id":"cus_1"}}}`)
	headers.Set("Stripe-Signature", signature(secret, ignored, time.Now().Unix()))
	note, err = adapter.ParseWebhook(context.Background(), ignored, headers)
	require.NoError(t, err)
	assert.True(t, note.Ignored)
}

func signature(secret string, payload []byte, ts int64) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}
