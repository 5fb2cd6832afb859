package service

import (
	"context"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/studioledger/internal/audit/domain"
	campaigndomain "github.com/smallbiznis/studioledger/internal/campaign/domain"
	"github.com/smallbiznis/studioledger/internal/clock"
	"github.com/smallbiznis/studioledger/internal/config"
	"github.com/smallbiznis/studioledger/internal/notification"
	"github.com/smallbiznis/studioledger/internal/observability/metrics"
	studiodomain "github.com/smallbiznis/studioledger/internal/studio/domain"
	"github.com/smallbiznis/studioledger/internal/studiocontext"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	Cfg        config.Config
	Policy     *config.ReminderPolicyHolder
	Repo       campaigndomain.Repository
	StudioRepo studiodomain.Repository
	Notifier   notification.Notifier
	AuditSvc   auditdomain.Service `optional:"true"`
	Metrics    *metrics.Metrics    `optional:"true"`
}

type Service struct {
	db       *gorm.DB
	log      *zap.Logger
	genID    *snowflake.Node
	clock    clock.Clock
	sendRate float64
	policy   *config.ReminderPolicyHolder

	repo       campaigndomain.Repository
	studioRepo studiodomain.Repository
	notifier   notification.Notifier
	auditSvc   auditdomain.Service
	metrics    *metrics.Metrics
}

func NewService(p Params) campaigndomain.Service {
	return &Service{
		db:       p.DB,
		log:      p.Log.Named("campaign.service"),
		genID:    p.GenID,
		clock:    p.Clock,
		sendRate: p.Cfg.CampaignSendRate,
		policy:   p.Policy,

		repo:       p.Repo,
		studioRepo: p.StudioRepo,
		notifier:   p.Notifier,
		auditSvc:   p.AuditSvc,
		metrics:    p.Metrics,
	}
}

func (s *Service) CreateCampaign(ctx context.Context, req campaigndomain.CreateCampaignRequest) (*campaigndomain.Campaign, error) {
	studioID, ok := studiocontext.StudioIDFromContext(ctx)
	if !ok {
		return nil, studiodomain.ErrStudioRequired
	}
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, campaigndomain.ErrInvalidName
	}
	subject := strings.TrimSpace(req.Subject)
	if subject == "" {
		return nil, campaigndomain.ErrInvalidSubject
	}
	if strings.TrimSpace(req.HTMLBody) == "" {
		return nil, campaigndomain.ErrInvalidBody
	}

	now := s.clock.Now().UTC()
	campaign := &campaigndomain.Campaign{
		ID:        s.genID.Generate(),
		StudioID:  studioID,
		Name:      name,
		Subject:   subject,
		HTMLBody:  req.HTMLBody,
		Status:    campaigndomain.CampaignStatusDraft,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.db, campaign); err != nil {
		return nil, err
	}
	return campaign, nil
}

func (s *Service) GetCampaign(ctx context.Context, id string) (*campaigndomain.Campaign, error) {
	studioID, campaignID, err := s.ids(ctx, id)
	if err != nil {
		return nil, err
	}
	campaign, err := s.repo.FindByID(ctx, s.db, studioID, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil {
		return nil, campaigndomain.ErrCampaignNotFound
	}
	return campaign, nil
}

func (s *Service) ListCampaigns(ctx context.Context) ([]campaigndomain.Campaign, error) {
	studioID, ok := studiocontext.StudioIDFromContext(ctx)
	if !ok {
		return nil, studiodomain.ErrStudioRequired
	}
	return s.repo.List(ctx, s.db, studioID)
}

// SendCampaign claims the campaign by moving it to SENDING, fans the email
// out in fixed-size concurrent batches and records the totals. A failed
// send is counted and never aborts its batch.
func (s *Service) SendCampaign(ctx context.Context, id string) (*campaigndomain.Campaign, error) {
	studioID, campaignID, err := s.ids(ctx, id)
	if err != nil {
		return nil, err
	}

	var campaign *campaigndomain.Campaign
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		locked, err := s.repo.FindByIDForUpdate(ctx, tx, studioID, campaignID)
		if err != nil {
			return err
		}
		if locked == nil {
			return campaigndomain.ErrCampaignNotFound
		}
		if locked.Status != campaigndomain.CampaignStatusDraft {
			return campaigndomain.ErrAlreadySent
		}
		locked.Status = campaigndomain.CampaignStatusSending
		if err := s.repo.UpdateStatus(ctx, tx, locked, s.clock.Now().UTC()); err != nil {
			return err
		}
		campaign = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The campaign is claimed, so delivery and bookkeeping outlive the
	// caller. A client that disconnects must not turn sends into failures.
	ctx = context.WithoutCancel(ctx)

	studio, clients, err := s.recipients(ctx, studioID)
	if err != nil {
		s.release(ctx, campaign)
		return nil, err
	}

	sent, failed := s.deliver(ctx, campaign, studio, clients)

	now := s.clock.Now().UTC()
	campaign.Status = campaigndomain.CampaignStatusSent
	campaign.RecipientCount = len(clients)
	campaign.SentCount = sent
	campaign.FailedCount = failed
	campaign.SentAt = &now
	if err := s.repo.UpdateStatus(ctx, s.db, campaign, now); err != nil {
		s.log.Error("failed to record campaign totals",
			zap.String("campaign_id", campaign.ID.String()),
			zap.Int("sent", sent),
			zap.Int("failed", failed),
			zap.Error(err),
		)
		return nil, err
	}

	s.metrics.RecordCampaignSends(ctx, sent, failed)
	s.log.Info("campaign sent",
		zap.String("studio_id", studioID.String()),
		zap.String("campaign_id", campaign.ID.String()),
		zap.Int("recipients", len(clients)),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
	)
	if s.auditSvc != nil {
		err := s.auditSvc.Record(ctx, auditdomain.Entry{
			StudioID:   studioID,
			Action:     "campaign.sent",
			EntityType: "campaign",
			EntityID:   campaign.ID.String(),
			Metadata: map[string]any{
				"recipient_count": len(clients),
				"sent_count":      sent,
				"failed_count":    failed,
			},
		})
		if err != nil {
			s.log.Warn("failed to audit campaign send", zap.String("campaign_id", campaign.ID.String()), zap.Error(err))
		}
	}
	return campaign, nil
}

func (s *Service) recipients(ctx context.Context, studioID snowflake.ID) (*studiodomain.Studio, []studiodomain.Client, error) {
	studio, err := s.studioRepo.FindStudio(ctx, s.db, studioID)
	if err != nil {
		return nil, nil, err
	}
	if studio == nil {
		return nil, nil, studiodomain.ErrStudioNotFound
	}
	clients, err := s.studioRepo.ListMarketingClients(ctx, s.db, studioID)
	if err != nil {
		return nil, nil, err
	}
	return studio, clients, nil
}

// release puts a claimed campaign back to DRAFT when nothing was sent.
func (s *Service) release(ctx context.Context, campaign *campaigndomain.Campaign) {
	campaign.Status = campaigndomain.CampaignStatusDraft
	if err := s.repo.UpdateStatus(ctx, s.db, campaign, s.clock.Now().UTC()); err != nil {
		s.log.Error("failed to release campaign",
			zap.String("campaign_id", campaign.ID.String()),
			zap.Error(err),
		)
	}
}

func (s *Service) deliver(ctx context.Context, campaign *campaigndomain.Campaign, studio *studiodomain.Studio, clients []studiodomain.Client) (int, int) {
	batchSize := s.policy.Get().CampaignBatchSize
	limiter := rate.NewLimiter(rate.Inf, batchSize)
	if s.sendRate > 0 {
		limiter = rate.NewLimiter(rate.Limit(s.sendRate), batchSize)
	}

	var sent, failed atomic.Int64
	for start := 0; start < len(clients); start += batchSize {
		end := min(start+batchSize, len(clients))

		g, gctx := errgroup.WithContext(ctx)
		for _, client := range clients[start:end] {
			g.Go(func() error {
				if err := limiter.Wait(gctx); err != nil {
					failed.Add(1)
					return nil
				}
				err := s.notifier.Campaign(gctx, notification.CampaignMessage{
					Studio:   notification.Studio{Name: studio.Name, Email: studio.Email},
					To:       notification.Recipient{Name: client.Name, Email: client.Email},
					Subject:  campaign.Subject,
					HTMLBody: campaign.HTMLBody,
				})
				if err != nil {
					failed.Add(1)
					s.log.Warn("campaign email failed",
						zap.String("campaign_id", campaign.ID.String()),
						zap.String("client_id", client.ID.String()),
						zap.Error(err),
					)
					return nil
				}
				sent.Add(1)
				return nil
			})
		}
		_ = g.Wait()
	}
	return int(sent.Load()), int(failed.Load())
}

func (s *Service) ids(ctx context.Context, id string) (snowflake.ID, snowflake.ID, error) {
	studioID, ok := studiocontext.StudioIDFromContext(ctx)
	if !ok {
		return 0, 0, studiodomain.ErrStudioRequired
	}
	parsed, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || parsed <= 0 {
		return 0, 0, campaigndomain.ErrInvalidCampaignID
	}
	return studioID, snowflake.ID(parsed), nil
}
