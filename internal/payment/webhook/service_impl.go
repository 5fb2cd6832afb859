package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/studioledger/internal/clock"
	gatewayconfigdomain "github.com/smallbiznis/studioledger/internal/gatewayconfig/domain"
	"github.com/smallbiznis/studioledger/internal/observability/metrics"
	"github.com/smallbiznis/studioledger/internal/payment/adapters"
	paymentdomain "github.com/smallbiznis/studioledger/internal/payment/domain"
	"github.com/smallbiznis/studioledger/internal/studiocontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Repo       paymentdomain.Repository
	Gateways   *adapters.Registry
	ConfigSvc  gatewayconfigdomain.Service
	PaymentSvc paymentdomain.Service
	Metrics    *metrics.Metrics `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	repo       paymentdomain.Repository
	gateways   *adapters.Registry
	configSvc  gatewayconfigdomain.Service
	paymentSvc paymentdomain.Service
	metrics    *metrics.Metrics
}

func NewService(p Params) paymentdomain.WebhookService {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("payment.webhook"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		gateways:   p.Gateways,
		configSvc:  p.ConfigSvc,
		paymentSvc: p.PaymentSvc,
		metrics:    p.Metrics,
	}
}

// Ingest verifies a gateway notification against every studio that has the
// gateway enabled and settles the referenced payment. Once the signature is
// accepted, processing failures are logged and swallowed; the event stays
// unprocessed so a redelivery retries it.
func (s *Service) Ingest(ctx context.Context, gateway string, payload []byte, headers http.Header) error {
	gateway = strings.ToUpper(strings.TrimSpace(gateway))
	if !s.gateways.Supports(gateway) {
		return paymentdomain.ErrUnsupportedGateway
	}
	if !json.Valid(payload) {
		return paymentdomain.ErrInvalidPayload
	}

	configs, err := s.configSvc.ListActive(ctx, gateway)
	if err != nil {
		return err
	}

	studioID, note, err := s.match(ctx, gateway, payload, headers, configs)
	if err != nil {
		return err
	}
	s.metrics.RecordWebhookEvent(ctx, gateway, note.EventType)
	if note.Ignored || note.TransactionID == "" {
		s.log.Debug("webhook event ignored",
			zap.String("gateway", gateway),
			zap.String("event_type", note.EventType),
		)
		return nil
	}

	event, err := s.record(ctx, studioID, gateway, note, payload)
	if err != nil {
		return err
	}
	if event.ProcessedAt != nil {
		s.log.Info("webhook event already processed",
			zap.String("gateway", gateway),
			zap.String("event_id", note.EventID),
		)
		return nil
	}

	processCtx := studiocontext.WithActor(studiocontext.WithStudioID(ctx, studioID), "system")
	payment, err := s.paymentSvc.ProcessPayment(processCtx, paymentdomain.ProcessPaymentRequest{
		PaymentIntentID: note.TransactionID,
		Gateway:         gateway,
	})
	if err != nil {
		s.log.Error("failed to process webhook payment",
			zap.String("gateway", gateway),
			zap.String("event_id", note.EventID),
			zap.String("studio_id", studioID.String()),
			zap.String("transaction_id", note.TransactionID),
			zap.Error(err),
		)
		return nil
	}

	if err := s.repo.MarkWebhookProcessed(ctx, s.db, event.ID, s.clock.Now().UTC()); err != nil {
		s.log.Warn("failed to mark webhook event processed",
			zap.String("event_id", note.EventID),
			zap.Error(err),
		)
	}
	s.log.Info("webhook payment processed",
		zap.String("gateway", gateway),
		zap.String("event_id", note.EventID),
		zap.String("payment_id", payment.ID.String()),
		zap.String("status", string(payment.Status)),
	)
	return nil
}

// match returns the first studio whose signing secret verifies the payload.
func (s *Service) match(
	ctx context.Context,
	gateway string,
	payload []byte,
	headers http.Header,
	configs []gatewayconfigdomain.ResolvedConfig,
) (snowflake.ID, *paymentdomain.Notification, error) {
	var configErr error
	for _, cfg := range configs {
		gw, err := s.gateways.New(gateway, cfg.Config)
		if err != nil {
			configErr = err
			continue
		}
		parser, ok := gw.(paymentdomain.WebhookParser)
		if !ok {
			return 0, nil, paymentdomain.ErrUnsupportedGateway
		}

		note, err := parser.ParseWebhook(ctx, payload, headers)
		if err != nil {
			if errors.Is(err, paymentdomain.ErrInvalidSignature) {
				continue
			}
			return 0, nil, err
		}
		return cfg.StudioID, note, nil
	}

	if configErr != nil {
		s.log.Warn("webhook matched no usable gateway config",
			zap.String("gateway", gateway),
			zap.Error(configErr),
		)
	}
	return 0, nil, paymentdomain.ErrInvalidSignature
}

func (s *Service) record(ctx context.Context, studioID snowflake.ID, gateway string, note *paymentdomain.Notification, payload []byte) (*paymentdomain.WebhookEvent, error) {
	event := &paymentdomain.WebhookEvent{
		ID:         s.genID.Generate(),
		StudioID:   studioID,
		Gateway:    gateway,
		EventID:    note.EventID,
		EventType:  note.EventType,
		Payload:    datatypes.JSON(payload),
		ReceivedAt: s.clock.Now().UTC(),
	}
	inserted, err := s.repo.InsertWebhookEvent(ctx, s.db, event)
	if err != nil {
		return nil, err
	}
	if inserted {
		return event, nil
	}

	existing, err := s.repo.FindWebhookEvent(ctx, s.db, gateway, note.EventID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, paymentdomain.ErrInvalidPayload
	}
	return existing, nil
}
