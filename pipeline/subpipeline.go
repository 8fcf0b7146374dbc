package pipeline

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// SubPipelineFunc runs the steps of a sub-pipeline against its own Runner.
type SubPipelineFunc func(ctx context.Context, sub *Runner) (any, error)

// SubPipeline runs fn against an independent child runner named
// "parent.name". The child speaks on a fresh conversation, so its session
// lineage never touches the parent's, and it checkpoints under its own
// key. When fn returns, a cross-reference with the full child state lands
// in the parent's history, success or failure, and the parent checkpoint
// is updated.
func (r *Runner) SubPipeline(ctx context.Context, name string, fn SubPipelineFunc, opts ...Option) (any, error) {
	sub := r.child(name, opts)
	start := time.Now()
	r.logger.Info("sub-pipeline started",
		zap.String("sub_pipeline", sub.name),
		zap.String("sub_session", sub.Session()))

	out, err := fn(ctx, sub)

	r.recordSub(sub, start)
	r.persist(ctx)

	if err != nil {
		r.logger.Warn("sub-pipeline failed",
			zap.String("sub_pipeline", sub.name),
			zap.Error(err))
		return nil, fmt.Errorf("sub-pipeline %s: %w", sub.name, err)
	}
	r.logger.Info("sub-pipeline completed",
		zap.String("sub_pipeline", sub.name),
		zap.Duration("duration", time.Since(start)))
	return out, nil
}

// Fork names one concurrent sub-pipeline for ForkSubPipelines.
type Fork struct {
	Name string
	Run  SubPipelineFunc
	Opts []Option
}

// ForkSubPipelines runs several sub-pipelines concurrently and returns
// their outputs keyed by fork name. Each child owns its conversation,
// state, and checkpoints, so the forks share nothing; the parent's history
// is extended only after every fork has finished, on the caller's
// goroutine. The first error cancels the remaining forks' context and is
// returned once all of them have wound down, with every fork's
// cross-reference still recorded.
func (r *Runner) ForkSubPipelines(ctx context.Context, forks ...Fork) (map[string]any, error) {
	if len(forks) == 0 {
		return map[string]any{}, nil
	}

	subs := make([]*Runner, len(forks))
	outs := make([]any, len(forks))
	for i, f := range forks {
		subs[i] = r.child(f.Name, f.Opts)
	}

	start := time.Now()
	r.logger.Info("forking sub-pipelines", zap.Int("count", len(forks)))

	g, gctx := errgroup.WithContext(ctx)
	for i, f := range forks {
		g.Go(func() error {
			out, err := f.Run(gctx, subs[i])
			if err != nil {
				return fmt.Errorf("sub-pipeline %s: %w", subs[i].name, err)
			}
			outs[i] = out
			return nil
		})
	}
	err := g.Wait()

	for _, sub := range subs {
		r.recordSub(sub, start)
	}
	r.persist(ctx)

	if err != nil {
		r.logger.Warn("sub-pipeline fork failed", zap.Error(err))
		return nil, err
	}

	results := make(map[string]any, len(forks))
	for i, f := range forks {
		results[f.Name] = outs[i]
	}
	r.logger.Info("sub-pipelines completed",
		zap.Int("count", len(forks)),
		zap.Duration("duration", time.Since(start)))
	return results, nil
}

// child builds the runner of a sub-pipeline: parent settings, child name,
// fresh conversation and state.
func (r *Runner) child(name string, opts []Option) *Runner {
	childOpts := []Option{
		WithStore(r.store),
		WithLogger(r.baseLogger),
		WithCollector(r.collector),
		WithMaxAttempts(r.maxAttempts),
		WithRetryDelay(r.retryDelay),
	}
	childOpts = append(childOpts, opts...)
	return New(r.name+"."+name, r.pctx.conv.Fresh(), childOpts...)
}

// recordSub appends the child's cross-reference to the parent state. The
// caller persists afterwards, once per batch.
func (r *Runner) recordSub(sub *Runner, start time.Time) {
	r.state.SubPipelines = append(r.state.SubPipelines, SubPipelineRecord{
		Name:      sub.name,
		SessionID: sub.state.SessionID,
		StartedAt: start.UTC(),
		State:     sub.state.Clone(),
	})
}
