package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/smallbiznis/studioledger/internal/apperr"
	campaigndomain "github.com/smallbiznis/studioledger/internal/campaign/domain"
	"github.com/smallbiznis/studioledger/internal/config"
	gatewayconfigdomain "github.com/smallbiznis/studioledger/internal/gatewayconfig/domain"
	invoicedomain "github.com/smallbiznis/studioledger/internal/invoice/domain"
	"github.com/smallbiznis/studioledger/internal/observability"
	paymentdomain "github.com/smallbiznis/studioledger/internal/payment/domain"
	"github.com/smallbiznis/studioledger/internal/studiocontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeInvoiceService struct {
	invoicedomain.Service

	created   invoicedomain.CreateInvoiceRequest
	studioID  snowflake.ID
	userID    string
	updateErr error
}

func (f *fakeInvoiceService) CreateInvoice(ctx context.Context, req invoicedomain.CreateInvoiceRequest) (*invoicedomain.Invoice, error) {
	f.created = req
	f.studioID, _ = studiocontext.StudioIDFromContext(ctx)
	f.userID = studiocontext.UserIDFromContext(ctx)
	return &invoicedomain.Invoice{ID: 10, StudioID: f.studioID, InvoiceNumber: "INV-000001", Status: invoicedomain.InvoiceStatusDraft}, nil
}

func (f *fakeInvoiceService) UpdateInvoice(ctx context.Context, req invoicedomain.UpdateInvoiceRequest) (*invoicedomain.Invoice, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &invoicedomain.Invoice{ID: 10}, nil
}

func (f *fakeInvoiceService) RenderPublicHTML(ctx context.Context, token string) (string, error) {
	if token != "tok-1" {
		return "", invoicedomain.ErrInvoiceNotFound
	}
	return "<html>INV-000001</html>", nil
}

func (f *fakeInvoiceService) RenderPDF(ctx context.Context, id string) (string, []byte, error) {
	return "clay-house-INV-000001.pdf", []byte("%PDF-1.4"), nil
}

type fakePaymentService struct {
	paymentdomain.Service

	refundErr error
	intentErr error
}

func (f *fakePaymentService) CreatePaymentIntent(ctx context.Context, req paymentdomain.CreateIntentRequest) (*paymentdomain.IntentResponse, error) {
	if f.intentErr != nil {
		return nil, f.intentErr
	}
	return &paymentdomain.IntentResponse{ID: "pi_1", Gateway: req.Gateway, Amount: req.Amount, Currency: req.Currency, Status: "requires_payment_method"}, nil
}

func (f *fakePaymentService) ProcessRefund(ctx context.Context, req paymentdomain.RefundPaymentRequest) (*paymentdomain.Payment, error) {
	if f.refundErr != nil {
		return nil, f.refundErr
	}
	return &paymentdomain.Payment{ID: 20, RefundAmount: req.Amount, Status: paymentdomain.PaymentStatusCompleted}, nil
}

type fakeWebhookService struct {
	err     error
	gateway string
	payload []byte
}

func (f *fakeWebhookService) Ingest(ctx context.Context, gateway string, payload []byte, headers http.Header) error {
	f.gateway = gateway
	f.payload = payload
	return f.err
}

type fakeGatewayService struct {
	gatewayconfigdomain.Service
}

func (f *fakeGatewayService) UpsertConfig(ctx context.Context, req gatewayconfigdomain.UpsertRequest) (*gatewayconfigdomain.ConfigSummary, error) {
	if req.Gateway != "stripe" {
		return nil, gatewayconfigdomain.ErrUnsupportedGateway
	}
	return &gatewayconfigdomain.ConfigSummary{Gateway: "STRIPE", IsActive: true, Configured: true}, nil
}

type fakeCampaignService struct {
	campaigndomain.Service
}

func (f *fakeCampaignService) SendCampaign(ctx context.Context, id string) (*campaigndomain.Campaign, error) {
	return nil, campaigndomain.ErrAlreadySent
}

type testServer struct {
	engine   *gin.Engine
	invoices *fakeInvoiceService
	payments *fakePaymentService
	webhooks *fakeWebhookService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		invoices: &fakeInvoiceService{},
		payments: &fakePaymentService{},
		webhooks: &fakeWebhookService{},
	}
	engine := NewEngine(observability.Config{Environment: "test", LogLevel: "info"})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	NewServer(ServerParams{
		Gin:         engine,
		Cfg:         config.Config{Environment: "test"},
		Log:         zap.NewNop(),
		GenID:       node,
		InvoiceSvc:  ts.invoices,
		PaymentSvc:  ts.payments,
		WebhookSvc:  ts.webhooks,
		GatewaySvc:  &fakeGatewayService{},
		CampaignSvc: &fakeCampaignService{},
	})
	ts.engine = engine
	return ts
}

func (ts *testServer) do(method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if raw, ok := body.([]byte); ok {
		reader = bytes.NewReader(raw)
	} else if body != nil {
		encoded, _ := json.Marshal(body)
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	ts.engine.ServeHTTP(rec, req)
	return rec
}

func studioHeaders() map[string]string {
	return map[string]string{HeaderStudioID: "100", HeaderUserID: "user-1"}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorPayload {
	t.Helper()
	var resp errorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestAPIRequiresStudioHeader(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/invoices", map[string]any{}, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "unauthorized", decodeError(t, rec).Type)

	rec = ts.do(http.MethodPost, "/api/invoices", map[string]any{}, map[string]string{HeaderStudioID: "not-a-number"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation_error", decodeError(t, rec).Type)
}

func TestCreateInvoiceScopesRequestToStudio(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/invoices", map[string]any{
		"client_id": "200",
		"due_date":  "2025-04-01T00:00:00Z",
		"line_items": []map[string]any{
			{"description": "Portrait session", "quantity": "2", "unit_price": "100"},
		},
	}, studioHeaders())

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, snowflake.ID(100), ts.invoices.studioID)
	assert.Equal(t, "user-1", ts.invoices.userID)
	assert.Equal(t, "200", ts.invoices.created.ClientID)
	require.Len(t, ts.invoices.created.LineItems, 1)
	assert.True(t, ts.invoices.created.LineItems[0].UnitPrice.Equal(decimal.NewFromInt(100)))
}

func TestUpdatePaidInvoiceReturnsConflict(t *testing.T) {
	ts := newTestServer(t)
	ts.invoices.updateErr = invoicedomain.ErrInvoicePaid

	rec := ts.do(http.MethodPatch, "/api/invoices/10", map[string]any{"notes": "late"}, studioHeaders())
	require.Equal(t, http.StatusConflict, rec.Code)
	payload := decodeError(t, rec)
	assert.Equal(t, "conflict", payload.Type)
	assert.Equal(t, "invoice_already_paid", payload.Code)
}

func TestInvalidPathIDIsRejected(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPatch, "/api/invoices/abc", map[string]any{}, studioHeaders())
	require.Equal(t, http.StatusBadRequest, rec.Code)
	payload := decodeError(t, rec)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "invalid_id", payload.Errors[0].Code)
}

func TestRefundErrorsMapToStatus(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"exceeds balance", paymentdomain.ErrRefundExceedsBalance, http.StatusBadRequest, "invalid_amount"},
		{"not found", paymentdomain.ErrPaymentNotFound, http.StatusNotFound, "not_found"},
		{"not supported", paymentdomain.ErrRefundNotSupported, http.StatusNotImplemented, "not_supported"},
		{"gateway down", apperr.External("stripe", errors.New("timeout")), http.StatusBadGateway, "external_service_error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts := newTestServer(t)
			ts.payments.refundErr = tc.err

			rec := ts.do(http.MethodPost, "/api/payments/20/refunds", map[string]any{"amount": "100", "reason": "requested"}, studioHeaders())
			require.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.kind, decodeError(t, rec).Type)
		})
	}
}

func TestRefundPassesAmount(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/payments/20/refunds", map[string]any{"amount": "100", "reason": "requested"}, studioHeaders())
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Data paymentdomain.Payment `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Data.RefundAmount.Equal(decimal.NewFromInt(100)))
}

func TestUnconfiguredGatewayIsUnprocessable(t *testing.T) {
	ts := newTestServer(t)
	ts.payments.intentErr = gatewayconfigdomain.ErrNotConfigured

	rec := ts.do(http.MethodPost, "/api/payments/intents", map[string]any{
		"gateway": "STRIPE", "amount": "270", "currency": "USD", "client_id": "200",
	}, studioHeaders())
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "gateway_not_configured", decodeError(t, rec).Code)
}

func TestUpsertUnknownGatewayIsNotSupported(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPut, "/api/gateways/square", map[string]any{"config": map[string]any{"key": "x"}}, studioHeaders())
	require.Equal(t, http.StatusNotImplemented, rec.Code)

	rec = ts.do(http.MethodPut, "/api/gateways/stripe", map[string]any{"config": map[string]any{"secret_key": "sk_test"}}, studioHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSendCampaignTwiceConflicts(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/campaigns/30/send", nil, studioHeaders())
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestWebhookIsAcknowledged(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/webhooks/stripe", []byte(`{"id":"evt_1"}`), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "stripe", ts.webhooks.gateway)
	assert.JSONEq(t, `{"id":"evt_1"}`, string(ts.webhooks.payload))
}

func TestWebhookWithBadSignatureIsRejected(t *testing.T) {
	ts := newTestServer(t)
	ts.webhooks.err = paymentdomain.ErrInvalidSignature

	rec := ts.do(http.MethodPost, "/webhooks/stripe", []byte(`{"id":"evt_1"}`), nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPublicInvoiceRendersHTML(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/public/invoices/tok-1", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")
	assert.Contains(t, rec.Body.String(), "INV-000001")

	rec = ts.do(http.MethodGet, "/public/invoices/missing", nil, nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestInvoicePDFDownload(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/api/invoices/10/pdf", nil, studioHeaders())
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "clay-house-INV-000001.pdf")
}

func TestSchedulerRunWithoutSchedulerIsUnavailable(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodPost, "/api/scheduler/run", nil, studioHeaders())
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "scheduler_unavailable", decodeError(t, rec).Code)
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	rec := ts.do(http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestClassifyErrorForLog(t *testing.T) {
	errType, code := classifyErrorForLog(invoicedomain.ErrEmptyLineItems)
	assert.Equal(t, "validation_error", errType)
	assert.Equal(t, "line_items_required", code)

	errType, _ = classifyErrorForLog(errors.New("boom"))
	assert.Equal(t, "internal_error", errType)
}

func TestValidationErrorField(t *testing.T) {
	assert.Equal(t, "due_date", validationErrorField("invalid_due_date"))
	assert.Equal(t, "line_items", validationErrorField("line_items_required"))
	assert.Equal(t, "", validationErrorField("other"))
}
