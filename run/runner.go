package run

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/cenkalti/backoff/v4"

	"github.com/xraph/vercel/id"
	"github.com/xraph/vercel/observability"
)

// Errors wrapped around the last task error.
var (
	ErrRetriesExhausted = errors.New("run: retries exhausted")
	ErrTerminal         = errors.New("run: task failed without retry")
)

// Task statuses recorded in metrics.
const (
	statusSucceeded = "succeeded"
	statusCached    = "cached"
	statusFailed    = "failed"
)

// Run is an IO that executes tasks in-process.
type Run struct {
	id      string
	store   Store
	clock   clock.Clock
	logger  *slog.Logger
	metrics *observability.Metrics
	tracer  *observability.Tracer
}

var _ IO = (*Run)(nil)

// Option configures a Run.
type Option func(*Run)

// WithStore enables the task output cache.
func WithStore(s Store) Option {
	return func(r *Run) { r.store = s }
}

// WithClock sets the clock used to wait between attempts.
func WithClock(c clock.Clock) Option {
	return func(r *Run) { r.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Run) { r.logger = l }
}

// WithMetrics records task metrics.
func WithMetrics(m *observability.Metrics) Option {
	return func(r *Run) { r.metrics = m }
}

// WithTracer records task spans.
func WithTracer(t *observability.Tracer) Option {
	return func(r *Run) { r.tracer = t }
}

// New creates a run. An empty runID mints a fresh one.
func New(runID string, opts ...Option) *Run {
	if runID == "" {
		runID = id.NewRunID().String()
	}
	r := &Run{
		id:     runID,
		clock:  clock.New(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ID returns the run identifier.
func (r *Run) ID() string { return r.id }

// RunTask implements IO.
func (r *Run) RunTask(ctx context.Context, key string, fn TaskFunc, opts *Options, onError ErrorCallback) (any, error) {
	o := Merge(nil, opts)
	start := r.clock.Now()

	if cached, ok, err := r.cached(ctx, key, o); err != nil {
		return nil, err
	} else if ok {
		r.metrics.RecordTask(statusCached, 0)
		return cached, nil
	}

	task := &Task{
		ID:            id.NewTaskID(),
		RunID:         r.id,
		Key:           key,
		Name:          o.Name,
		Icon:          o.Icon,
		ConnectionKey: o.ConnectionKey,
		StartedAt:     start,
	}
	if task.Name == "" {
		task.Name = key
	}

	ctx, span := r.tracer.StartTaskSpan(ctx, r.id, key, o.ConnectionKey)

	result, err := r.execute(ctx, task, fn, o, onError)

	r.tracer.EndTaskSpan(span, task.Attempt, false, err)
	latency := r.clock.Since(start).Seconds()
	if err != nil {
		r.metrics.RecordTask(statusFailed, latency)
		return nil, err
	}
	r.metrics.RecordTask(statusSucceeded, latency)

	r.save(ctx, task, o, result)
	return result, nil
}

func (r *Run) cached(ctx context.Context, key string, o *Options) (json.RawMessage, bool, error) {
	if r.store == nil || o.NoCache {
		return nil, false, nil
	}
	out, err := r.store.GetTaskOutput(ctx, r.id, key)
	if errors.Is(err, ErrOutputNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("run: load task output %q: %w", key, err)
	}
	return out.Value, true, nil
}

func (r *Run) save(ctx context.Context, task *Task, o *Options, result any) {
	if r.store == nil || o.NoCache {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		r.logger.Warn("task result is not cacheable", "run_id", r.id, "key", task.Key, "error", err)
		return
	}
	out := &Output{
		RunID:     r.id,
		Key:       task.Key,
		TaskID:    task.ID,
		Value:     raw,
		Attempts:  task.Attempt,
		CreatedAt: r.clock.Now().UTC(),
	}
	if err := r.store.SaveTaskOutput(ctx, out); err != nil {
		r.logger.Error("failed to store task output", "run_id", r.id, "key", task.Key, "error", err)
	}
}

func (r *Run) execute(ctx context.Context, task *Task, fn TaskFunc, o *Options, onError ErrorCallback) (any, error) {
	var bo backoff.BackOff = &backoff.StopBackOff{}
	if o.Retry != nil {
		bo = o.Retry.BackOff()
	}

	for {
		task.Attempt++
		result, err := fn(ctx, task)
		if err == nil {
			return result, nil
		}

		var decision *ErrorDecision
		if onError != nil {
			decision = onError(err, task)
		}
		if decision == nil {
			decision = DefaultDecision(err)
		}

		if decision.SkipRetrying {
			return nil, fmt.Errorf("%w: %s: %w", ErrTerminal, task.Key, err)
		}

		wait := bo.NextBackOff()
		if wait == backoff.Stop {
			return nil, fmt.Errorf("%w: %s after %d attempts: %w", ErrRetriesExhausted, task.Key, task.Attempt, err)
		}
		if decision.RetryAfter > 0 {
			wait = decision.RetryAfter
		}

		r.logger.Warn("task attempt failed, retrying",
			"run_id", r.id,
			"key", task.Key,
			"attempt", task.Attempt,
			"wait", wait,
			"error", err,
		)
		r.metrics.RecordRetry()

		if err := r.sleep(ctx, wait); err != nil {
			return nil, err
		}
	}
}

func (r *Run) sleep(ctx context.Context, d time.Duration) error {
	t := r.clock.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
