package scheduler

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	obslogger "github.com/smallbiznis/studioledger/internal/observability/logger"
	"github.com/smallbiznis/studioledger/internal/studiocontext"
	"go.uber.org/zap"
)

type jobRun struct {
	job            string
	runID          string
	studioID       snowflake.ID
	startedAt      time.Time
	processedCount int
	errorCount     int
}

type jobRunKey struct{}

func (r *jobRun) AddProcessed(count int) {
	if r == nil || count <= 0 {
		return
	}
	r.processedCount += count
}

func (r *jobRun) IncError() {
	if r == nil {
		return
	}
	r.errorCount++
}

func (s *Scheduler) startJobRun(ctx context.Context, job string, studioID snowflake.ID) (context.Context, *jobRun) {
	run := &jobRun{
		job:       job,
		runID:     s.genID.Generate().String(),
		studioID:  studioID,
		startedAt: s.clock.Now(),
	}
	ctx = context.WithValue(ctx, jobRunKey{}, run)
	ctx = studiocontext.WithStudioID(ctx, studioID)
	ctx = studiocontext.WithActor(ctx, "system")
	return ctx, run
}

func jobRunFromContext(ctx context.Context) *jobRun {
	if run, ok := ctx.Value(jobRunKey{}).(*jobRun); ok {
		return run
	}
	return nil
}

func (s *Scheduler) logger(ctx context.Context) *zap.Logger {
	log := obslogger.WithContext(ctx, s.log)
	if run := jobRunFromContext(ctx); run != nil {
		log = log.With(zap.String("job", run.job), zap.String("run_id", run.runID))
	}
	return log
}

func (s *Scheduler) logJobStart(ctx context.Context) {
	s.logger(ctx).Info("scheduler.job.start")
}

func (s *Scheduler) logJobFinish(ctx context.Context, run *jobRun) {
	fields := []zap.Field{
		zap.Int64("duration_ms", s.clock.Now().Sub(run.startedAt).Milliseconds()),
		zap.Int("processed_count", run.processedCount),
		zap.Int("error_count", run.errorCount),
	}
	log := s.logger(ctx)
	if run.errorCount > 0 {
		log.Warn("scheduler.job.finish", fields...)
		return
	}
	log.Info("scheduler.job.finish", fields...)
}

// logItemError records a per-item failure. The sweep carries on.
func (s *Scheduler) logItemError(ctx context.Context, msg string, err error, fields ...zap.Field) {
	run := jobRunFromContext(ctx)
	run.IncError()
	if run != nil {
		s.schedMetrics.IncItemFailed(run.job)
	}
	s.logger(ctx).Error(msg, append(fields, zap.Error(err))...)
}
