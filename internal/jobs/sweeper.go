package jobs

import (
	"context"
	"time"

	"monolith/internal/observability"

	"github.com/robfig/cron/v3"
)

// SweepFunc removes everything that expired at or before now and reports
// how many rows went away.
type SweepFunc func(ctx context.Context, now time.Time) (int64, error)

// Sweeper runs a SweepFunc on a cron schedule.
type Sweeper struct {
	cron  *cron.Cron
	sweep SweepFunc
}

// NewSweeper schedules sweep on spec (standard cron syntax or descriptors
// such as "@every 5m").
func NewSweeper(spec string, sweep SweepFunc) (*Sweeper, error) {
	s := &Sweeper{cron: cron.New(), sweep: sweep}
	if _, err := s.cron.AddFunc(spec, func() { s.RunOnce(context.Background()) }); err != nil {
		return nil, err
	}
	return s, nil
}

// Start begins the schedule in its own goroutine.
func (s *Sweeper) Start() {
	s.cron.Start()
}

// Stop halts the schedule and waits for a running sweep to finish or ctx to end.
func (s *Sweeper) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunOnce sweeps immediately.
func (s *Sweeper) RunOnce(ctx context.Context) int64 {
	n, err := s.sweep(ctx, time.Now())
	if err != nil {
		observability.LogAsyncOperationError(ctx, "story.sweep", err)
		return 0
	}
	if n > 0 {
		observability.StoriesExpired.WithLabelValues("sweeper").Add(float64(n))
		observability.LogAsyncOperationEnd(ctx, "story.sweep", "removed", n)
	}
	return n
}
