package backend

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/sigflow/internal/metrics"
	"github.com/BaSui01/sigflow/types"
)

const instrumentationName = "github.com/BaSui01/sigflow/backend"

// Instrumented decorates a Backend with structured logging, Prometheus
// metrics, and an OTel span per request.
type Instrumented struct {
	inner     Backend
	logger    *zap.Logger
	collector *metrics.Collector
	tracer    trace.Tracer
}

var (
	_ Backend         = (*Instrumented)(nil)
	_ SessionExporter = (*Instrumented)(nil)
)

// NewInstrumented wraps inner. logger and collector may be nil.
func NewInstrumented(inner Backend, logger *zap.Logger, collector *metrics.Collector) *Instrumented {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Instrumented{
		inner:     inner,
		logger:    logger.With(zap.String("component", "backend"), zap.String("backend", inner.Name())),
		collector: collector,
		tracer:    otel.Tracer(instrumentationName),
	}
}

func (i *Instrumented) Name() string { return i.inner.Name() }

// Run implements Backend.
func (i *Instrumented) Run(ctx context.Context, req Request) (*Response, error) {
	ctx, span := i.tracer.Start(ctx, "backend.run",
		trace.WithAttributes(
			attribute.String("backend.name", i.inner.Name()),
			attribute.String("backend.agent", req.Agent),
			attribute.String("backend.model", req.Model.String()),
			attribute.Bool("backend.fresh_session", req.SessionID == ""),
		))
	defer span.End()

	i.logger.Debug("backend request",
		zap.String("model", req.Model.String()),
		zap.String("session_id", req.SessionID),
		zap.Int("prompt_len", len(req.Prompt)))

	start := time.Now()
	resp, err := i.inner.Run(ctx, req)
	duration := time.Since(start)

	status := statusOf(err)
	i.collector.RecordBackendRequest(i.inner.Name(), req.Model.String(), status, duration)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)
		i.logger.Warn("backend request failed",
			zap.String("model", req.Model.String()),
			zap.String("status", status),
			zap.Duration("duration", duration),
			zap.Error(err))
		return nil, err
	}

	span.SetAttributes(attribute.String("backend.session_id", resp.SessionID))
	i.logger.Debug("backend reply",
		zap.String("session_id", resp.SessionID),
		zap.Int("reply_len", len(resp.Text)),
		zap.Duration("duration", duration))
	return resp, nil
}

// ExportSession passes through to the wrapped backend.
func (i *Instrumented) ExportSession(ctx context.Context, sessionID string) ([]Message, error) {
	if exporter, ok := i.inner.(SessionExporter); ok {
		return exporter.ExportSession(ctx, sessionID)
	}
	return nil, types.NewError(types.ErrConfig, "backend does not export sessions")
}

func statusOf(err error) string {
	if err == nil {
		return "ok"
	}
	switch types.GetErrorCode(err) {
	case types.ErrBackendTimeout:
		return "timeout"
	case types.ErrCanceled:
		return "canceled"
	case types.ErrRateLimited:
		return "rate_limited"
	}
	return "error"
}
