package scheduler

import (
	"context"
	"time"

	"bloomcart-be/internal/logger"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"
)

type DraftSweeper interface {
	DiscardExpired(ctx context.Context, now time.Time) (int, error)
}

type NotificationRetrier interface {
	RetryPending(ctx context.Context) (int, error)
}

type Config struct {
	SweepInterval time.Duration
	RetryInterval time.Duration
	Location      *time.Location
}

// Scheduler runs the background maintenance jobs of checkout.
type Scheduler struct {
	cron    gocron.Scheduler
	sweeper DraftSweeper
	retrier NotificationRetrier
	now     func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
}

func New(sweeper DraftSweeper, retrier NotificationRetrier, cfg Config) (*Scheduler, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.UTC
	}

	cron, err := gocron.NewScheduler(gocron.WithLocation(loc))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron:    cron,
		sweeper: sweeper,
		retrier: retrier,
		now:     time.Now,
		ctx:     ctx,
		cancel:  cancel,
	}

	_, err = cron.NewJob(
		gocron.DurationJob(cfg.SweepInterval),
		gocron.NewTask(s.sweepDrafts),
		gocron.WithName("discard-expired-drafts"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	_, err = cron.NewJob(
		gocron.DurationJob(cfg.RetryInterval),
		gocron.NewTask(s.retryNotifications),
		gocron.WithName("retry-notifications"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		cancel()
		return nil, err
	}

	return s, nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
	logger.L().Info("scheduler started", zap.Int("jobs", len(s.cron.Jobs())))
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() error {
	s.cancel()
	return s.cron.Shutdown()
}

func (s *Scheduler) sweepDrafts() {
	n, err := s.sweeper.DiscardExpired(s.ctx, s.now())
	if err != nil {
		logger.L().Error("draft sweep failed", zap.String("job", "discard-expired-drafts"), zap.Error(err))
		return
	}
	if n > 0 {
		logger.L().Info("draft sweep finished", zap.Int("discarded", n))
	}
}

func (s *Scheduler) retryNotifications() {
	n, err := s.retrier.RetryPending(s.ctx)
	if err != nil {
		logger.L().Error("notification retry failed", zap.String("job", "retry-notifications"), zap.Error(err))
		return
	}
	if n > 0 {
		logger.L().Info("notifications resent", zap.Int("sent", n))
	}
}
