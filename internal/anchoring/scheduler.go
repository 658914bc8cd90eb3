package anchoring

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"trustcore/internal/config"
	"trustcore/internal/constants"
	"trustcore/internal/logger"
	pkgerrors "trustcore/pkg/errors"
)

// Scheduler anchors the last complete window on every cron tick.
type Scheduler struct {
	service  *Service
	lock     WindowLock
	schedule string
	window   time.Duration
	logger   logger.Logger
	now      func() time.Time
}

func NewScheduler(service *Service, lock WindowLock, cfg config.AnchoringConfig, log logger.Logger) *Scheduler {
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = constants.DefaultAnchorSchedule
	}
	window := cfg.Window
	if window <= 0 {
		window = constants.DefaultAnchorWindow
	}
	return &Scheduler{
		service:  service,
		lock:     lock,
		schedule: schedule,
		window:   window,
		logger:   log,
		now:      time.Now,
	}
}

// Window returns the last complete window aligned to the window length before now.
func (s *Scheduler) Window(now time.Time) (time.Time, time.Time) {
	end := now.UTC().Truncate(s.window)
	return end.Add(-s.window), end
}

// RunOnce builds the last complete window. It returns nil, nil when another replica holds the
// window or the window was already anchored.
func (s *Scheduler) RunOnce(ctx context.Context) (*Batch, error) {
	start, end := s.Window(s.now())

	release, acquired, err := s.lock.Acquire(ctx, start, end)
	if err != nil {
		return nil, err
	}
	defer release()
	if !acquired {
		s.logger.DebugwCtx(ctx, "Anchoring window held by another worker", "period_start", start, "period_end", end)
		return nil, nil
	}

	batch, err := s.service.BuildAndAnchorBatch(ctx, start, end)
	if pkgerrors.IsConflict(err) {
		s.logger.DebugwCtx(ctx, "Anchoring window already built", "period_start", start, "period_end", end)
		return nil, nil
	}
	return batch, err
}

// Start runs the schedule until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) error {
	c := cron.New(
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	_, err := c.AddFunc(s.schedule, func() {
		batch, err := s.RunOnce(ctx)
		if err != nil {
			s.logger.ErrorwCtx(ctx, "Scheduled anchoring failed", "error", err)
			return
		}
		if batch != nil {
			s.logger.InfowCtx(ctx, "Scheduled anchoring completed",
				"batch_id", batch.ID,
				"status", batch.Status,
				"count", batch.Count,
			)
		}
	})
	if err != nil {
		return fmt.Errorf("invalid anchoring schedule %q: %w", s.schedule, err)
	}

	c.Start()
	s.logger.Infow("Anchoring scheduler started", "schedule", s.schedule, "window", s.window.String())

	<-ctx.Done()
	stopped := c.Stop()
	<-stopped.Done()
	s.logger.Info("Anchoring scheduler stopped")
	return nil
}
