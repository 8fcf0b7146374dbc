// Package pipeline executes multi-step LLM workflows with retries and
// durable checkpoints. A Runner drives one run: each Step is a unit of
// work against the run's conversation, retried under a per-step policy,
// recorded in the run's State, and persisted through a checkpoint store so
// an interrupted run can resume where it stopped.
//
// One Runner owns one State and one Context; neither is touched
// concurrently. Sub-pipelines get an independent Runner on a fresh
// conversation, so a nested session never overwrites its parent's.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/sigflow/backend"
	"github.com/BaSui01/sigflow/checkpoint"
	"github.com/BaSui01/sigflow/internal/metrics"
	"github.com/BaSui01/sigflow/types"
)

const instrumentationName = "github.com/BaSui01/sigflow/pipeline"

// Defaults for the per-step retry policy.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = time.Second
)

// StepFunc is one unit of work. It runs with the pipeline's Context and
// returns the step's data, which lands in the StepResult.
type StepFunc func(ctx context.Context, pctx *Context) (any, error)

// StepResult is the immutable outcome of a successful step. Attempt
// records which try succeeded.
type StepResult struct {
	Data      any
	StepName  string
	Duration  time.Duration
	SessionID string
	Model     string
	Attempt   int
}

// Runner executes the steps of one pipeline run.
type Runner struct {
	name        string
	session     string
	pctx        *Context
	state       *State
	store       checkpoint.Store
	maxAttempts int
	retryDelay  time.Duration
	baseLogger  *zap.Logger
	logger      *zap.Logger
	collector   *metrics.Collector
	tracer      trace.Tracer
}

// Option configures a Runner.
type Option func(*Runner)

// WithStore sets the checkpoint store state is persisted to. Without one
// the run executes normally but nothing is durable.
func WithStore(store checkpoint.Store) Option {
	return func(r *Runner) { r.store = store }
}

// WithSession fixes the run's session id, which keys its checkpoints.
// Without it the conversation's session is used, or a fresh id is minted.
func WithSession(id string) Option {
	return func(r *Runner) { r.session = id }
}

// WithState seeds the runner with previously persisted state. Used by
// Resume.
func WithState(st *State) Option {
	return func(r *Runner) { r.state = st }
}

// WithMaxAttempts sets the default attempt budget for every step.
func WithMaxAttempts(n int) Option {
	return func(r *Runner) {
		if n >= 1 {
			r.maxAttempts = n
		}
	}
}

// WithRetryDelay sets the default pause between attempts.
func WithRetryDelay(d time.Duration) Option {
	return func(r *Runner) {
		if d >= 0 {
			r.retryDelay = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.baseLogger = logger
		}
	}
}

// WithCollector sets the metrics collector.
func WithCollector(collector *metrics.Collector) Option {
	return func(r *Runner) { r.collector = collector }
}

// New creates a Runner for one run of the named pipeline, speaking on conv.
func New(name string, conv *backend.Conversation, opts ...Option) *Runner {
	r := &Runner{
		name:        name,
		pctx:        NewContext(conv),
		maxAttempts: DefaultMaxAttempts,
		retryDelay:  DefaultRetryDelay,
		baseLogger:  zap.NewNop(),
		tracer:      otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.state == nil {
		session := r.session
		if session == "" {
			session = conv.SessionID()
		}
		if session == "" {
			session = uuid.NewString()
		}
		r.state = NewState(name, session)
	}
	r.session = r.state.SessionID
	r.logger = r.baseLogger.With(
		zap.String("component", "pipeline"),
		zap.String("pipeline", name),
		zap.String("session", r.state.SessionID))
	return r
}

// Name returns the pipeline name.
func (r *Runner) Name() string { return r.name }

// Session returns the run's session id, the key its checkpoints live under.
func (r *Runner) Session() string { return r.state.SessionID }

// State returns the run's mutable state. Applications may set Values and
// Phase between steps; the next checkpoint persists the change.
func (r *Runner) State() *State { return r.state }

// Context returns the run's execution context.
func (r *Runner) Context() *Context { return r.pctx }

// Completed reports whether a step already finished in this run, now or
// before a resume.
func (r *Runner) Completed(name string) bool { return r.state.Completed(name) }

// StepCount returns how many steps have completed.
func (r *Runner) StepCount() int { return r.state.StepCount() }

// StepOption adjusts the policy of a single step.
type StepOption func(*stepConfig)

type stepConfig struct {
	model        backend.ModelRef
	maxAttempts  int
	retryDelay   time.Duration
	retryOnParse bool
}

// StepModel runs the step on a different model. The run's default is
// restored when the step completes, success or failure.
func StepModel(ref backend.ModelRef) StepOption {
	return func(c *stepConfig) { c.model = ref }
}

// StepAttempts overrides the attempt budget for this step.
func StepAttempts(n int) StepOption {
	return func(c *stepConfig) {
		if n >= 1 {
			c.maxAttempts = n
		}
	}
}

// StepRetryDelay overrides the pause between attempts for this step.
func StepRetryDelay(d time.Duration) StepOption {
	return func(c *stepConfig) {
		if d >= 0 {
			c.retryDelay = d
		}
	}
}

// RetryOnParseError opts the step into retrying extraction and JSON syntax
// failures. Off by default: a reply that did not parse usually needs the
// correction loop, not an identical re-ask.
func RetryOnParseError(v bool) StepOption {
	return func(c *stepConfig) { c.retryOnParse = v }
}

// Step runs one unit of work under the retry policy and records the
// outcome. Terminal errors are never retried: a schema correction that
// exhausted its budget would fail the same way again, and cancellation
// means stop. Parse failures retry only when the step opts in; every other
// error retries up to the attempt budget. The state is checkpointed after
// success and after the final failure, so a resumed run sees exactly how
// far this one got.
func (r *Runner) Step(ctx context.Context, name string, fn StepFunc, opts ...StepOption) (*StepResult, error) {
	cfg := stepConfig{maxAttempts: r.maxAttempts, retryDelay: r.retryDelay}
	for _, opt := range opts {
		opt(&cfg)
	}

	ctx, span := r.tracer.Start(ctx, "pipeline.step",
		trace.WithAttributes(
			attribute.String("pipeline.name", r.name),
			attribute.String("pipeline.step", name),
			attribute.Int("pipeline.step_index", r.state.StepCount()+1),
		))
	defer span.End()

	if !cfg.model.IsZero() {
		r.pctx.SetModel(cfg.model)
		defer r.pctx.ResetModel()
	}

	logger := r.logger.With(zap.String("step", name))
	start := time.Now()
	var lastErr error

	for attempt := 1; attempt <= cfg.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			lastErr = types.NewError(types.ErrCanceled, "step canceled").WithCause(err)
			break
		}

		logger.Debug("step attempt", zap.Int("attempt", attempt))
		data, err := fn(ctx, r.pctx)
		if err == nil {
			result := &StepResult{
				Data:      data,
				StepName:  name,
				Duration:  time.Since(start),
				SessionID: r.pctx.SessionID(),
				Model:     r.pctx.Model().String(),
				Attempt:   attempt,
			}
			r.recordSuccess(ctx, result, start)
			span.SetAttributes(attribute.Int("pipeline.attempt", attempt))
			logger.Info("step completed",
				zap.Int("attempt", attempt),
				zap.Duration("duration", result.Duration))
			return result, nil
		}

		lastErr = err
		if !retryable(err, cfg) || attempt == cfg.maxAttempts {
			break
		}

		r.collector.RecordStep(r.name, "retried", time.Since(start))
		logger.Warn("step attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", cfg.maxAttempts),
			zap.Error(err))

		if err := wait(ctx, cfg.retryDelay); err != nil {
			lastErr = err
			break
		}
	}

	duration := time.Since(start)
	r.state.Phase = PhaseFailed
	r.state.FailedStep = name
	r.state.LastError = lastErr.Error()
	r.persist(ctx)

	r.collector.RecordStep(r.name, "failed", duration)
	span.RecordError(lastErr)
	span.SetStatus(codes.Error, failureStatus(lastErr))
	logger.Error("step failed",
		zap.Duration("duration", duration),
		zap.Error(lastErr))
	return nil, fmt.Errorf("step %s failed: %w", name, lastErr)
}

// Finish marks the run completed and writes the final checkpoint.
func (r *Runner) Finish(ctx context.Context) error {
	r.state.Phase = PhaseCompleted
	r.logger.Info("pipeline completed",
		zap.Int("steps", r.state.StepCount()),
		zap.Duration("elapsed", time.Since(r.state.StartedAt)))
	return r.persist(ctx)
}

// recordSuccess appends the step to the history and checkpoints the state.
func (r *Runner) recordSuccess(ctx context.Context, result *StepResult, start time.Time) {
	r.state.Steps = append(r.state.Steps, StepRecord{
		Name:      result.StepName,
		Attempt:   result.Attempt,
		SessionID: result.SessionID,
		Model:     result.Model,
		StartedAt: start.UTC(),
		Duration:  result.Duration,
	})
	r.persist(ctx)
	r.collector.RecordStep(r.name, "success", result.Duration)
}

// persist writes the state through the checkpoint store. The write runs
// detached from the step's cancellation so a canceled run still records
// how far it got. Failures are logged and counted; they do not fail the
// step that produced the state.
func (r *Runner) persist(ctx context.Context) error {
	if r.store == nil {
		return nil
	}
	ctx = context.WithoutCancel(ctx)

	start := time.Now()
	err := r.store.Save(ctx, r.name, r.state.SessionID, r.state)
	duration := time.Since(start)
	if err != nil {
		r.collector.RecordCheckpointWrite(r.store.Name(), "error", duration)
		r.logger.Error("checkpoint write failed",
			zap.String("store", r.store.Name()),
			zap.Error(err))
		return types.NewError(types.ErrCheckpoint, "checkpoint write failed").WithCause(err)
	}
	r.collector.RecordCheckpointWrite(r.store.Name(), "ok", duration)
	return nil
}

// retryable classifies err for the retry loop: terminal errors never
// retry, parse-class errors only when the step opted in, everything else
// does.
func retryable(err error, cfg stepConfig) bool {
	if types.IsTerminal(err) || errors.Is(err, context.Canceled) {
		return false
	}
	if types.IsParseClass(err) {
		return cfg.retryOnParse
	}
	return true
}

// wait pauses between attempts, cutting the pause short when ctx ends.
func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return types.NewError(types.ErrCanceled, "step canceled while waiting to retry").
			WithCause(ctx.Err())
	}
}

// failureStatus renders the span status description for a failed step.
func failureStatus(err error) string {
	if code := types.GetErrorCode(err); code != "" {
		return string(code)
	}
	return "error"
}
