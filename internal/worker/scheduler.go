package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/food-truck-finder/backend/internal/config"
	"github.com/food-truck-finder/backend/internal/events"
	"github.com/food-truck-finder/backend/internal/models"
	"github.com/food-truck-finder/backend/internal/observability"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const (
	JobCompleteExpired = "complete_expired"
	JobReconcilePosts  = "reconcile_posts"
)

// Sweeper is the part of the campaign service the worker drives.
type Sweeper interface {
	Now() time.Time
	CompleteExpired(ctx context.Context, now time.Time) (int, error)
	ReconcileAll(ctx context.Context) (int, error)
	ReconcilePosts(ctx context.Context, id uuid.UUID) (*models.Campaign, error)
}

// Scheduler runs the periodic campaign sweeps. Overlapping runs of the same
// job are skipped.
type Scheduler struct {
	cron    *cron.Cron
	sweeper Sweeper
	timeout time.Duration
	log     *zap.Logger
	ctx     context.Context
}

func NewScheduler(sweeper Sweeper, cfg *config.Config, log *zap.Logger) (*Scheduler, error) {
	logger := cronLogger{log: log.Sugar()}
	s := &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		sweeper: sweeper,
		timeout: cfg.JobTimeout,
		log:     log,
		ctx:     context.Background(),
	}

	if _, err := s.cron.AddFunc(cfg.ExpirySweepSpec, func() { s.Run(JobCompleteExpired) }); err != nil {
		return nil, fmt.Errorf("expiry sweep spec %q: %w", cfg.ExpirySweepSpec, err)
	}
	if _, err := s.cron.AddFunc(cfg.ReconcileSpec, func() { s.Run(JobReconcilePosts) }); err != nil {
		return nil, fmt.Errorf("reconcile spec %q: %w", cfg.ReconcileSpec, err)
	}
	return s, nil
}

// Start begins firing jobs. Runs stop early once ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.ctx = ctx
	s.cron.Start()
}

// Stop prevents new runs and waits for running ones to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}

// Run executes one job synchronously and reports how many campaigns it
// touched.
func (s *Scheduler) Run(job string) (int, error) {
	ctx := s.ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	var (
		n   int
		err error
	)
	switch job {
	case JobCompleteExpired:
		n, err = s.sweeper.CompleteExpired(ctx, s.sweeper.Now())
	case JobReconcilePosts:
		n, err = s.sweeper.ReconcileAll(ctx)
	default:
		return 0, fmt.Errorf("unknown job %q", job)
	}

	if err != nil {
		observability.WorkerJobRuns.WithLabelValues(job, "error").Inc()
		s.log.Error("job failed", zap.String("job", job), zap.Int("processed", n), zap.Duration("took", time.Since(start)), zap.Error(err))
		return n, err
	}
	observability.WorkerJobRuns.WithLabelValues(job, "ok").Inc()
	s.log.Info("job done", zap.String("job", job), zap.Int("processed", n), zap.Duration("took", time.Since(start)))
	return n, nil
}

// HandlePostEvent reconciles the campaign a post event points at, so a
// failed link is repaired without waiting for the hourly sweep.
func (s *Scheduler) HandlePostEvent(ctx context.Context, ev events.Event) {
	raw, _ := ev.Payload["campaign_id"].(string)
	if raw == "" {
		return
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		s.log.Warn("post event with bad campaign_id", zap.String("type", ev.Type), zap.String("campaign_id", raw))
		return
	}
	if _, err := s.sweeper.ReconcilePosts(ctx, id); err != nil {
		s.log.Warn("event-driven reconcile failed", zap.String("campaign_id", raw), zap.Error(err))
	}
}

// cronLogger routes cron's own logging through zap.
type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
