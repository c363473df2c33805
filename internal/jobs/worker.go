package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"monolith/internal/observability"
)

// Handler processes one job. A returned error schedules a retry until the
// attempt budget is spent.
type Handler func(ctx context.Context, job Job) error

const (
	DefaultMaxAttempts = 3
	DefaultBackoff     = 30 * time.Second
	defaultBatch       = 50
)

// Worker polls a Queue and dispatches due jobs to registered handlers.
type Worker struct {
	queue       Queue
	interval    time.Duration
	maxAttempts int
	backoff     time.Duration

	mu       sync.RWMutex
	handlers map[string]Handler
	now      func() time.Time
}

// NewWorker returns a worker that polls q every interval.
func NewWorker(q Queue, interval time.Duration) *Worker {
	if interval <= 0 {
		interval = time.Second
	}
	return &Worker{
		queue:       q,
		interval:    interval,
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff,
		handlers:    make(map[string]Handler),
		now:         time.Now,
	}
}

// Register binds h to jobType, replacing any earlier handler.
func (w *Worker) Register(jobType string, h Handler) {
	w.mu.Lock()
	w.handlers[jobType] = h
	w.mu.Unlock()
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.RunOnce(ctx); err != nil && ctx.Err() == nil {
				observability.GlobalLogger.ErrorContext(ctx, "job poll failed", "error", err.Error())
			}
		}
	}
}

// RunOnce claims and processes every job due now. It returns how many jobs
// were dispatched.
func (w *Worker) RunOnce(ctx context.Context) (int, error) {
	jobs, err := w.queue.Claim(ctx, w.now(), defaultBatch)
	if err != nil {
		return 0, err
	}
	for _, j := range jobs {
		w.process(ctx, j)
	}
	return len(jobs), nil
}

func (w *Worker) process(ctx context.Context, job Job) {
	w.mu.RLock()
	h, ok := w.handlers[job.Type]
	w.mu.RUnlock()
	if !ok {
		observability.JobsProcessed.WithLabelValues(job.Type, "unhandled").Inc()
		observability.GlobalLogger.WarnContext(ctx, "no handler for job type", "type", job.Type, "job_id", job.ID)
		return
	}

	ctx, span := observability.StartJobSpan(observability.WithCorrelationID(ctx, job.ID), job.Type, job.ID)
	attempt := job.Attempts + 1
	observability.LogAsyncOperationStart(ctx, job.Type, "job_id", job.ID, "attempt", attempt)

	err := w.safeCall(ctx, h, job)
	observability.EndSpan(span, err)
	if err == nil {
		observability.JobsProcessed.WithLabelValues(job.Type, "ok").Inc()
		observability.LogAsyncOperationEnd(ctx, job.Type, "job_id", job.ID, "attempt", attempt)
		return
	}
	observability.LogAsyncOperationError(ctx, job.Type, err, "job_id", job.ID, "attempt", attempt)

	job.Attempts++
	if job.Attempts >= w.maxAttempts {
		observability.JobsProcessed.WithLabelValues(job.Type, "dropped").Inc()
		return
	}
	observability.JobsProcessed.WithLabelValues(job.Type, "retry").Inc()
	job.RunAt = w.now().Add(time.Duration(job.Attempts) * w.backoff)
	if err := w.queue.Enqueue(ctx, job); err != nil {
		observability.LogAsyncOperationError(ctx, job.Type, err, "job_id", job.ID, "stage", "requeue")
	}
}

func (w *Worker) safeCall(ctx context.Context, h Handler, job Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job handler panic: %v", r)
		}
	}()
	return h(ctx, job)
}
