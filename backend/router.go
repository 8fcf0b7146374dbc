package backend

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/sigflow/types"
)

// Router dispatches each request by its model reference: alt-form models
// run on the alternate backend, everything else on the primary. The router
// itself is stateless; session lineage is handled by Conversation, which
// never carries a session id across backends.
type Router struct {
	primary Backend
	alt     Backend
	logger  *zap.Logger
}

// NewRouter wraps a primary backend with an alternate for alt-form model
// refs.
func NewRouter(primary, alt Backend, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		primary: primary,
		alt:     alt,
		logger:  logger.With(zap.String("component", "backend_router")),
	}
}

// Name identifies the router.
func (r *Router) Name() string { return "router" }

// Run sends the request to the backend its model selects.
func (r *Router) Run(ctx context.Context, req Request) (*Response, error) {
	if req.Model.Alt {
		if r.alt == nil {
			return nil, types.NewError(types.ErrConfig, "alt model requested but no alternate backend configured")
		}
		r.logger.Debug("routing to alternate backend",
			zap.String("backend", r.alt.Name()),
			zap.String("model", req.Model.ModelID))
		return r.alt.Run(ctx, req)
	}
	return r.primary.Run(ctx, req)
}

// ExportSession delegates to the primary backend when it records
// transcripts.
func (r *Router) ExportSession(ctx context.Context, sessionID string) ([]Message, error) {
	if exporter, ok := r.primary.(SessionExporter); ok {
		return exporter.ExportSession(ctx, sessionID)
	}
	return nil, types.NewError(types.ErrConfig, "backend does not export sessions")
}

var (
	_ Backend         = (*Router)(nil)
	_ SessionExporter = (*Router)(nil)
)
