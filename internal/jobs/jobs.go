// Package jobs runs periodic maintenance on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/sakif/cmdshift-learn/internal/metrics"
)

// EventDeleter is the write side of the event store the pruner needs.
type EventDeleter interface {
	DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// EventPruner deletes platform events older than the retention window.
// It implements cron.Job.
type EventPruner struct {
	events    EventDeleter
	retention time.Duration
	timeout   time.Duration
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

// NewEventPruner creates a pruner. m may be nil.
func NewEventPruner(events EventDeleter, retention time.Duration, m *metrics.Metrics, logger *slog.Logger) *EventPruner {
	return &EventPruner{
		events:    events,
		retention: retention,
		timeout:   time.Minute,
		metrics:   m,
		logger:    logger,
		now:       time.Now,
	}
}

// Prune removes events older than now minus the retention window and
// returns how many went.
func (p *EventPruner) Prune(ctx context.Context) (int64, error) {
	if p.retention <= 0 {
		return 0, nil
	}
	cutoff := p.now().UTC().Add(-p.retention)

	n, err := p.events.DeleteEventsBefore(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("jobs: pruning events before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	p.metrics.EventsPruned(n)
	return n, nil
}

// Run is the cron entry point.
func (p *EventPruner) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
	defer cancel()

	n, err := p.Prune(ctx)
	if err != nil {
		p.logger.Error("event pruning failed", slog.String("error", err.Error()))
		return
	}
	p.logger.Info("events pruned", slog.Int64("deleted", n), slog.Duration("retention", p.retention))
}

// Scheduler wraps a cron.Cron whose jobs recover from panics and never
// overlap with themselves.
type Scheduler struct {
	cron   *cron.Cron
	logger *slog.Logger
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	cl := cronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		logger: logger,
	}
}

// Add registers job under a standard cron spec or a descriptor such as
// "@hourly".
func (s *Scheduler) Add(spec, name string, job cron.Job) error {
	id, err := s.cron.AddJob(spec, job)
	if err != nil {
		return fmt.Errorf("jobs: scheduling %s with %q: %w", name, spec, err)
	}
	s.logger.Info("job scheduled", slog.String("job", name), slog.String("spec", spec), slog.Int("entryID", int(id)))
	return nil
}

// Len is the number of scheduled jobs.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Start runs the scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop prevents new runs and waits for running jobs until ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return fmt.Errorf("jobs: waiting for running jobs: %w", ctx.Err())
	}
}

// cronLogger routes cron's own logging into slog.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
