package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/studioledger/internal/apperr"
	"github.com/smallbiznis/studioledger/internal/clock"
	gatewayconfigdomain "github.com/smallbiznis/studioledger/internal/gatewayconfig/domain"
	"github.com/smallbiznis/studioledger/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/studioledger/internal/payment/domain"
	"github.com/smallbiznis/studioledger/internal/payment/repository"
	"github.com/smallbiznis/studioledger/internal/studiocontext"
	"github.com/smallbiznis/studioledger/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// signedGateway accepts payloads whose X-Test-Signature header equals its
// configured webhook secret.
type signedGateway struct {
	secret string
}

func (g *signedGateway) Gateway() string { return paymentdomain.GatewayStripe }

func (g *signedGateway) CreateIntent(ctx context.Context, req paymentdomain.IntentRequest) (*paymentdomain.Intent, error) {
	return nil, errors.New("not used")
}

func (g *signedGateway) Retrieve(ctx context.Context, id string) (*paymentdomain.Charge, error) {
	return nil, errors.New("not used")
}

func (g *signedGateway) Refund(ctx context.Context, req paymentdomain.RefundRequest) (*paymentdomain.RefundResult, error) {
	return nil, errors.New("not used")
}

func (g *signedGateway) ParseWebhook(ctx context.Context, payload []byte, headers http.Header) (*paymentdomain.Notification, error) {
	if headers.Get("X-Test-Signature") != g.secret {
		return nil, paymentdomain.ErrInvalidSignature
	}
	var body struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		Object string `json:"object"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	if body.Type != "payment_intent.succeeded" {
		return &paymentdomain.Notification{EventID: body.ID, EventType: body.Type, Ignored: true}, nil
	}
	return &paymentdomain.Notification{EventID: body.ID, EventType: body.Type, TransactionID: body.Object}, nil
}

type signedFactory struct{}

func (signedFactory) Gateway() string { return paymentdomain.GatewayStripe }

func (signedFactory) New(cfg map[string]any) (paymentdomain.PaymentGateway, error) {
	secret, _ := adapters.ReadString(cfg, "webhook_secret")
	return &signedGateway{secret: secret}, nil
}

type activeConfigs struct {
	gatewayconfigdomain.Service
	configs []gatewayconfigdomain.ResolvedConfig
}

func (a activeConfigs) ListActive(ctx context.Context, gateway string) ([]gatewayconfigdomain.ResolvedConfig, error) {
	return a.configs, nil
}

type processCall struct {
	studioID snowflake.ID
	actor    string
	intentID string
}

type recordingPayments struct {
	paymentdomain.Service
	calls []processCall
	err   error
}

func (r *recordingPayments) ProcessPayment(ctx context.Context, req paymentdomain.ProcessPaymentRequest) (*paymentdomain.Payment, error) {
	studioID, _ := studiocontext.StudioIDFromContext(ctx)
	r.calls = append(r.calls, processCall{studioID: studioID, actor: studiocontext.ActorFromContext(ctx), intentID: req.PaymentIntentID})
	if r.err != nil {
		return nil, r.err
	}
	return &paymentdomain.Payment{ID: 77, StudioID: studioID, Status: paymentdomain.PaymentStatusCompleted}, nil
}

type fixture struct {
	svc      *Service
	payments *recordingPayments
	repo     paymentdomain.Repository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testutil.OpenDB(t, &paymentdomain.Payment{}, &paymentdomain.WebhookEvent{})
	payments := &recordingPayments{}
	repo := repository.Provide()

	svc := NewService(Params{
		DB:       db,
		Log:      zap.NewNop(),
		GenID:    testutil.Node(t),
		Clock:    clock.NewFakeClock(time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)),
		Repo:     repo,
		Gateways: adapters.NewRegistry(signedFactory{}),
		ConfigSvc: activeConfigs{configs: []gatewayconfigdomain.ResolvedConfig{
			{StudioID: 100, Config: map[string]any{"webhook_secret": "whsec_a"}},
			{StudioID: 200, Config: map[string]any{"webhook_secret": "whsec_b"}},
		}},
		PaymentSvc: payments,
	}).(*Service)
	return &fixture{svc: svc, payments: payments, repo: repo}
}

func signed(secret string) http.Header {
	h := http.Header{}
	h.Set("X-Test-Signature", secret)
	return h
}

const succeeded = `{"id":"evt_1","type":"payment_intent.succeeded","object":"pi_1"}`

func TestIngestRoutesToMatchingStudio(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.Ingest(context.Background(), "stripe", []byte(succeeded), signed("whsec_b")))
	require.Len(t, f.payments.calls, 1)
	assert.Equal(t, snowflake.ID(200), f.payments.calls[0].studioID)
	assert.Equal(t, "system", f.payments.calls[0].actor)
	assert.Equal(t, "pi_1", f.payments.calls[0].intentID)

	event, err := f.repo.FindWebhookEvent(context.Background(), f.svc.db, "STRIPE", "evt_1")
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.NotNil(t, event.ProcessedAt)
	assert.Equal(t, snowflake.ID(200), event.StudioID)
}

func TestIngestDeduplicatesEvents(t *testing.T) {
	f := newFixture(t)

	require.NoError(t, f.svc.Ingest(context.Background(), "STRIPE", []byte(succeeded), signed("whsec_a")))
	require.NoError(t, f.svc.Ingest(context.Background(), "STRIPE", []byte(succeeded), signed("whsec_a")))
	assert.Len(t, f.payments.calls, 1)
}

func TestIngestRejectsBadSignature(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Ingest(context.Background(), "STRIPE", []byte(succeeded), signed("whsec_wrong"))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidSignature)
	assert.ErrorIs(t, err, apperr.ErrValidation)
	assert.Empty(t, f.payments.calls)
}

func TestIngestRejectsUnknownGatewayAndBadPayload(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Ingest(context.Background(), "square", []byte(succeeded), signed("whsec_a"))
	assert.ErrorIs(t, err, apperr.ErrNotSupported)

	err = f.svc.Ingest(context.Background(), "STRIPE", []byte("not json"), signed("whsec_a"))
	assert.ErrorIs(t, err, paymentdomain.ErrInvalidPayload)
}

func TestIngestIgnoresOtherEvents(t *testing.T) {
	f := newFixture(t)

	payload := `{"id":"evt_2","type":"customer.created","object":"cus_1"}`
	require.NoError(t, f.svc.Ingest(context.Background(), "STRIPE", []byte(payload), signed("whsec_a")))
	assert.Empty(t, f.payments.calls)

	event, err := f.repo.FindWebhookEvent(context.Background(), f.svc.db, "STRIPE", "evt_2")
	require.NoError(t, err)
	assert.Nil(t, event)
}

func TestIngestSwallowsProcessingFailureAndRetries(t *testing.T) {
	f := newFixture(t)
	f.payments.err = apperr.External("stripe", errors.New("timeout"))

	require.NoError(t, f.svc.Ingest(context.Background(), "STRIPE", []byte(succeeded), signed("whsec_a")))
	event, err := f.repo.FindWebhookEvent(context.Background(), f.svc.db, "STRIPE", "evt_1")
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Nil(t, event.ProcessedAt)

	f.payments.err = nil
	require.NoError(t, f.svc.Ingest(context.Background(), "STRIPE", []byte(succeeded), signed("whsec_a")))
	assert.Len(t, f.payments.calls, 2)

	event, err = f.repo.FindWebhookEvent(context.Background(), f.svc.db, "STRIPE", "evt_1")
	require.NoError(t, err)
	assert.NotNil(t, event.ProcessedAt)
}
