package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	bookingdomain "github.com/smallbiznis/studioledger/internal/booking/domain"
	"github.com/smallbiznis/studioledger/internal/clock"
	"github.com/smallbiznis/studioledger/internal/config"
	invoicedomain "github.com/smallbiznis/studioledger/internal/invoice/domain"
	"github.com/smallbiznis/studioledger/internal/notification"
	obsmetrics "github.com/smallbiznis/studioledger/internal/observability/metrics"
	"github.com/smallbiznis/studioledger/internal/ratelimit"
	studiodomain "github.com/smallbiznis/studioledger/internal/studio/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	JobRecurringInvoices = "recurring_invoices"
	JobPaymentReminders  = "payment_reminders"
)

var ErrInvalidConfig = errors.New("scheduler_invalid_config")

type Params struct {
	fx.In

	DB           *gorm.DB
	Log          *zap.Logger
	GenID        *snowflake.Node
	Clock        clock.Clock
	Config       Config `optional:"true"`
	Policy       *config.ReminderPolicyHolder
	StudioRepo   studiodomain.Repository
	BookingRepo  bookingdomain.Repository
	InvoiceRepo  invoicedomain.Repository
	InvoiceSvc   invoicedomain.Service
	Notifier     notification.Notifier
	Locker       *ratelimit.Locker            `optional:"true"`
	SchedMetrics *obsmetrics.SchedulerMetrics `optional:"true"`
	Metrics      *obsmetrics.Metrics          `optional:"true"`
}

// Scheduler runs the recurring-invoice and payment-reminder sweeps for
// every studio.
type Scheduler struct {
	db           *gorm.DB
	log          *zap.Logger
	cfg          Config
	genID        *snowflake.Node
	clock        clock.Clock
	policy       *config.ReminderPolicyHolder
	studioRepo   studiodomain.Repository
	bookingRepo  bookingdomain.Repository
	invoiceRepo  invoicedomain.Repository
	invoiceSvc   invoicedomain.Service
	notifier     notification.Notifier
	locker       *ratelimit.Locker
	schedMetrics *obsmetrics.SchedulerMetrics
	metrics      *obsmetrics.Metrics
}

// Report summarises one RunStudio call.
type Report struct {
	StudioID        snowflake.ID `json:"studio_id"`
	InvoicesCreated int          `json:"invoices_created"`
	RemindersSent   int          `json:"reminders_sent"`
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.InvoiceSvc == nil || p.Notifier == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:           p.DB,
		log:          p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:          p.Config.withDefaults(),
		genID:        p.GenID,
		clock:        p.Clock,
		policy:       p.Policy,
		studioRepo:   p.StudioRepo,
		bookingRepo:  p.BookingRepo,
		invoiceRepo:  p.InvoiceRepo,
		invoiceSvc:   p.InvoiceSvc,
		notifier:     p.Notifier,
		locker:       p.Locker,
		schedMetrics: p.SchedMetrics,
		metrics:      p.Metrics,
	}, nil
}

// runJob runs fn for one studio under the (job, studio) lock. Hitting the
// timeout is soft: the items handled so far stay done and no error is
// returned.
func (s *Scheduler) runJob(
	parent context.Context,
	name string,
	studioID snowflake.ID,
	fn func(ctx context.Context, studioID snowflake.ID) (int, error),
) (int, error) {
	began := time.Now()
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()
	ctx, run := s.startJobRun(ctx, name, studioID)

	key := ratelimit.SweepKey(name, studioID.String())
	token, acquired, err := s.locker.TryLock(ctx, key, s.cfg.LockTTL)
	if err != nil {
		s.schedMetrics.IncJobError(name, err)
		return 0, fmt.Errorf("%s: lock: %w", name, err)
	}
	if !acquired {
		s.schedMetrics.IncLockSkipped(name)
		s.logger(ctx).Info("scheduler.job.skipped", zap.String("reason", "lock_held"))
		return 0, nil
	}
	defer func() {
		if err := s.locker.Release(context.WithoutCancel(ctx), key, token); err != nil {
			s.logger(ctx).Warn("failed to release sweep lock", zap.Error(err))
		}
	}()

	s.schedMetrics.IncJobRun(name)
	s.logJobStart(ctx)

	processed, err := fn(ctx, studioID)
	run.AddProcessed(processed)
	s.schedMetrics.AddItemsProcessed(name, processed)
	s.schedMetrics.ObserveJobDuration(name, time.Since(began))
	if err != nil && run.errorCount == 0 {
		run.IncError()
	}
	s.logJobFinish(ctx, run)
	if err == nil {
		return processed, nil
	}

	s.schedMetrics.IncJobError(name, err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		s.schedMetrics.IncJobTimeout(name)
		s.logger(ctx).Warn("job timed out",
			zap.Duration("timeout", s.cfg.JobTimeout),
			zap.Error(err),
		)
		return processed, nil
	}
	return processed, fmt.Errorf("%s: %w", name, err)
}

// RunOnce sweeps every studio. Errors from one studio do not stop the others.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	studioIDs, err := s.studioRepo.ListStudioIDs(ctx, s.db)
	if err != nil {
		return err
	}
	var errs error
	for _, studioID := range studioIDs {
		if ctx.Err() != nil {
			return errors.Join(errs, ctx.Err())
		}
		_, err := s.RunStudio(ctx, studioID)
		errs = errors.Join(errs, err)
	}
	return errs
}

// RunStudio runs the recurring sweep, then the reminder sweep, for one studio.
func (s *Scheduler) RunStudio(ctx context.Context, studioID snowflake.ID) (Report, error) {
	report := Report{StudioID: studioID}
	created, recurringErr := s.ProcessRecurringInvoices(ctx, studioID)
	report.InvoicesCreated = created
	sent, reminderErr := s.SendPaymentReminders(ctx, studioID)
	report.RemindersSent = sent
	return report, errors.Join(recurringErr, reminderErr)
}

func (s *Scheduler) ProcessRecurringInvoices(ctx context.Context, studioID snowflake.ID) (int, error) {
	return s.runJob(ctx, JobRecurringInvoices, studioID, s.processRecurringInvoices)
}

func (s *Scheduler) SendPaymentReminders(ctx context.Context, studioID snowflake.ID) (int, error) {
	return s.runJob(ctx, JobPaymentReminders, studioID, s.sendPaymentReminders)
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("scheduler run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
