package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("gateway", "stripe"),
		attribute.String("studio_id", "456"),
		attribute.String("status", "COMPLETED"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "studio_id" {
			t.Fatalf("expected studio_id to be dropped")
		}
	}
}

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordInvoiceCreated(ctx, "api")
	m.RecordPaymentProcessed(ctx, "stripe", "COMPLETED")
	m.RecordRefundProcessed(ctx, "stripe", false)
	m.RecordReminderSent(ctx, 7)
	m.RecordCampaignSends(ctx, 3, 1)
}

func TestNewRegistersInstruments(t *testing.T) {
	m, err := New(Config{ServiceName: "test"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordInvoiceSent(context.Background())
	m.RecordWebhookEvent(context.Background(), "paypal", "payment_succeeded")
}
