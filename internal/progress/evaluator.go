package progress

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sakif/cmdshift-learn/internal/eventlog"
	"github.com/sakif/cmdshift-learn/internal/metrics"
	"github.com/sakif/cmdshift-learn/internal/model"
	"github.com/sakif/cmdshift-learn/internal/repository"
)

// Submitter accepts achievement evaluation jobs. Submit must not block on
// the job and must not report its outcome; the triggering operation has
// already succeeded.
type Submitter interface {
	Submit(t Trigger)
}

// EvaluatorConfig sizes the worker pool.
type EvaluatorConfig struct {
	Workers   int           // goroutines applying unlocks
	QueueSize int           // jobs buffered before Submit runs them inline
	Timeout   time.Duration // per-job deadline for store and event writes
}

// DefaultEvaluatorConfig returns sensible defaults for a single instance.
func DefaultEvaluatorConfig() EvaluatorConfig {
	return EvaluatorConfig{
		Workers:   4,
		QueueSize: 256,
		Timeout:   10 * time.Second,
	}
}

// errNothingToUnlock aborts a store update that would not change anything.
var errNothingToUnlock = errors.New("progress: nothing to unlock")

// Evaluator applies achievements, milestones and rewards in the background.
//
// WORKER POOL:
//
//	Submit ──► jobs (buffered chan) ──► worker 1..N ──► Evaluate ──► store + events
//	   │
//	   └── queue full or closed ──► Evaluate on the caller's goroutine
//
// A full queue never drops an unlock; the submitting request just pays for
// the evaluation itself. A failed job is logged and counted and never
// retried. The rules only look at the trigger, so the next qualifying
// operation cannot pick up what was missed.
//
// SHUTDOWN:
// Close stops accepting queued work, lets the workers drain what is already
// buffered, and waits for them. Wait blocks until every submitted job has
// finished, which tests use before reading the profile back.
type Evaluator struct {
	store   repository.ProfileRepository
	events  eventlog.Sink
	metrics *metrics.Metrics
	logger  *slog.Logger
	config  EvaluatorConfig

	jobs    chan Trigger
	workers sync.WaitGroup
	pending sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	startOnce sync.Once
	closeOnce sync.Once
}

// NewEvaluator builds an Evaluator. Call Start before submitting, and Close on
// shutdown.
func NewEvaluator(store repository.ProfileRepository, events eventlog.Sink, m *metrics.Metrics, cfg EvaluatorConfig, logger *slog.Logger) *Evaluator {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultEvaluatorConfig().Timeout
	}
	return &Evaluator{
		store:   store,
		events:  events,
		metrics: m,
		logger:  logger,
		config:  cfg,
		jobs:    make(chan Trigger, cfg.QueueSize),
	}
}

// Start launches the workers. Calling it more than once is a no-op.
func (e *Evaluator) Start() {
	e.startOnce.Do(func() {
		e.logger.Info("starting achievement evaluator",
			slog.Int("workers", e.config.Workers),
			slog.Int("queueSize", e.config.QueueSize),
		)
		for i := 0; i < e.config.Workers; i++ {
			e.workers.Add(1)
			go e.worker()
		}
	})
}

// Submit queues t for evaluation.
func (e *Evaluator) Submit(t Trigger) {
	e.pending.Add(1)

	e.mu.RLock()
	if !e.closed {
		select {
		case e.jobs <- t:
			e.mu.RUnlock()
			e.metrics.SetQueueDepth(len(e.jobs))
			return
		default:
		}
	}
	e.mu.RUnlock()

	// Queue full or shut down: run it here rather than lose the unlock.
	e.metrics.EvaluationInline()
	e.run(t)
}

// Wait blocks until every job submitted so far has finished.
func (e *Evaluator) Wait() {
	e.pending.Wait()
}

// Close stops accepting queued work, lets the workers drain what is already
// queued, and waits for them to exit. Later Submits run inline.
func (e *Evaluator) Close() {
	e.closeOnce.Do(func() {
		e.logger.Info("shutting down achievement evaluator")
		e.mu.Lock()
		e.closed = true
		close(e.jobs)
		e.mu.Unlock()
		e.Start() // a never-started evaluator still has to drain its queue
		e.workers.Wait()
	})
}

func (e *Evaluator) worker() {
	defer e.workers.Done()
	for t := range e.jobs {
		e.metrics.SetQueueDepth(len(e.jobs))
		e.run(t)
	}
}

// run evaluates one trigger and swallows the result.
func (e *Evaluator) run(t Trigger) {
	defer e.pending.Done()
	defer func() {
		if r := recover(); r != nil {
			e.metrics.EvaluationFailed()
			e.logger.Error("achievement evaluation panicked",
				slog.String("userID", t.UID),
				slog.Any("panic", r),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), e.config.Timeout)
	defer cancel()

	if err := e.Evaluate(ctx, t); err != nil {
		e.metrics.EvaluationFailed()
		e.logger.Error("achievement evaluation failed",
			slog.String("userID", t.UID),
			slog.String("error", err.Error()),
		)
	}
}

// Evaluate applies every unlock t qualifies for in one store update and
// publishes an event for each one that was new. Unlocks the profile already
// holds are skipped, so evaluating the same trigger twice changes nothing.
func (e *Evaluator) Evaluate(ctx context.Context, t Trigger) error {
	candidates := Candidates(t)
	if len(candidates) == 0 {
		return nil
	}

	at := t.At
	if at.IsZero() {
		at = time.Now().UTC()
	}

	var unlocked []Unlock
	_, err := e.store.UpdateProfile(ctx, t.UID, func(p *model.Profile) error {
		unlocked = unlocked[:0]
		for _, u := range candidates {
			if u.applyTo(p, at) {
				unlocked = append(unlocked, u)
			}
		}
		if len(unlocked) == 0 {
			return errNothingToUnlock
		}
		return nil
	})
	if errors.Is(err, errNothingToUnlock) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("progress: applying unlocks for %s: %w", t.UID, err)
	}

	for _, u := range unlocked {
		e.metrics.Unlocked(string(u.Kind))
		e.logger.Info("unlocked",
			slog.String("userID", t.UID),
			slog.String("kind", string(u.Kind)),
			slog.String("id", u.ID),
		)
		eventlog.Publish(ctx, e.events, e.logger, u.event(t.UID, at))
	}
	return nil
}
