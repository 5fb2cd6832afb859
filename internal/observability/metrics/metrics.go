package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes financial workflow instruments. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	invoicesCreated   metric.Int64Counter
	invoicesSent      metric.Int64Counter
	paymentsProcessed metric.Int64Counter
	refundsProcessed  metric.Int64Counter
	remindersSent     metric.Int64Counter
	campaignSends     metric.Int64Counter
	webhookEvents     metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				return provider.Shutdown(ctx)
			},
		})
	}
	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "studioledger"
	}
	meter := provider.Meter(name)

	counters := map[string]*metric.Int64Counter{}
	m := &Metrics{}
	counters["studioledger_invoices_created_total"] = &m.invoicesCreated
	counters["studioledger_invoices_sent_total"] = &m.invoicesSent
	counters["studioledger_payments_processed_total"] = &m.paymentsProcessed
	counters["studioledger_refunds_processed_total"] = &m.refundsProcessed
	counters["studioledger_reminders_sent_total"] = &m.remindersSent
	counters["studioledger_campaign_sends_total"] = &m.campaignSends
	counters["studioledger_webhook_events_total"] = &m.webhookEvents

	for counterName, target := range counters {
		counter, err := meter.Int64Counter(counterName)
		if err != nil {
			return nil, err
		}
		*target = counter
	}
	return m, nil
}

func (m *Metrics) RecordInvoiceCreated(ctx context.Context, source string) {
	if m == nil {
		return
	}
	m.invoicesCreated.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("source", strings.TrimSpace(source)),
	)...))
}

func (m *Metrics) RecordInvoiceSent(ctx context.Context) {
	if m == nil {
		return
	}
	m.invoicesSent.Add(ctx, 1)
}

func (m *Metrics) RecordPaymentProcessed(ctx context.Context, gateway, status string) {
	if m == nil {
		return
	}
	m.paymentsProcessed.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("gateway", strings.ToLower(strings.TrimSpace(gateway))),
		attribute.String("status", strings.TrimSpace(status)),
	)...))
}

func (m *Metrics) RecordRefundProcessed(ctx context.Context, gateway string, full bool) {
	if m == nil {
		return
	}
	kind := "partial"
	if full {
		kind = "full"
	}
	m.refundsProcessed.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("gateway", strings.ToLower(strings.TrimSpace(gateway))),
		attribute.String("kind", kind),
	)...))
}

func (m *Metrics) RecordReminderSent(ctx context.Context, daysPastDue int) {
	if m == nil {
		return
	}
	m.remindersSent.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.Int("days_past_due", daysPastDue),
	)...))
}

func (m *Metrics) RecordCampaignSends(ctx context.Context, sent, failed int) {
	if m == nil {
		return
	}
	if sent > 0 {
		m.campaignSends.Add(ctx, int64(sent), metric.WithAttributes(attribute.String("status", "sent")))
	}
	if failed > 0 {
		m.campaignSends.Add(ctx, int64(failed), metric.WithAttributes(attribute.String("status", "failed")))
	}
}

func (m *Metrics) RecordWebhookEvent(ctx context.Context, gateway, eventType string) {
	if m == nil {
		return
	}
	m.webhookEvents.Add(ctx, 1, metric.WithAttributes(FilterAttributes(
		attribute.String("gateway", strings.ToLower(strings.TrimSpace(gateway))),
		attribute.String("event_type", strings.TrimSpace(eventType)),
	)...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// Studio, client and invoice ids are deliberately absent.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"gateway":       {},
	"status":        {},
	"kind":          {},
	"source":        {},
	"event_type":    {},
	"days_past_due": {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
