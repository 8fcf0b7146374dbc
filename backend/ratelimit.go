package backend

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/BaSui01/sigflow/types"
)

// RateLimited throttles requests to the wrapped backend with a token
// bucket. Waiting respects the caller's context, so cancellation and
// deadlines surface with the usual taxonomy instead of a limiter error.
type RateLimited struct {
	inner   Backend
	limiter *rate.Limiter
}

var (
	_ Backend         = (*RateLimited)(nil)
	_ SessionExporter = (*RateLimited)(nil)
)

// NewRateLimited wraps inner with an rps token bucket. burst below 1 is
// raised to 1.
func NewRateLimited(inner Backend, rps float64, burst int) *RateLimited {
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

func (r *RateLimited) Name() string { return r.inner.Name() }

// Run implements Backend.
func (r *RateLimited) Run(ctx context.Context, req Request) (*Response, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		if ce := classifyContextErr(ctx.Err(), req.Timeout); ce != nil {
			return nil, ce
		}
		if ce := classifyContextErr(err, req.Timeout); ce != nil {
			return nil, ce
		}
		return nil, err
	}
	return r.inner.Run(ctx, req)
}

// ExportSession passes through to the wrapped backend. Exports read the
// server's transcript store, so they are not throttled.
func (r *RateLimited) ExportSession(ctx context.Context, sessionID string) ([]Message, error) {
	if exporter, ok := r.inner.(SessionExporter); ok {
		return exporter.ExportSession(ctx, sessionID)
	}
	return nil, types.NewError(types.ErrConfig, "backend does not export sessions")
}
