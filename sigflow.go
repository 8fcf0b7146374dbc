// Package sigflow provides a top-level convenience entry point for running
// signature-typed predictions with minimal boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/sigflow"
//
//	sig := signature.MustParse("text -> summary, sentiment")
//	pred, err := sigflow.Predict(ctx, sig, map[string]any{"text": doc},
//		sigflow.WithOpencode("http://localhost:4096"),
//		sigflow.WithModel("anthropic/claude-sonnet-4-20250514"))
//
// This is a thin wrapper around [quick.Predict]; both produce identical
// results. Use this package when you prefer the shorter import path.
package sigflow

import (
	"context"

	"github.com/BaSui01/sigflow/predict"
	"github.com/BaSui01/sigflow/quick"
	"github.com/BaSui01/sigflow/signature"
)

// Option configures the runtime assembled by [Predict].
type Option = quick.Option

// Predict runs one structured prediction against sig with minimal setup.
// At minimum, a backend must be specified via [WithOpencode],
// [WithClaudeCLI], or [WithBackend].
func Predict(ctx context.Context, sig *signature.Signature, inputs map[string]any, opts ...Option) (*predict.Prediction, error) {
	return quick.Predict(ctx, sig, inputs, opts...)
}

// Re-export backend shortcuts so callers never need to import quick/.

// WithBackend sets a pre-built backend.
var WithBackend = quick.WithBackend

// WithOpencode targets an opencode server. Base URL from OPENCODE_BASE_URL
// env when empty.
var WithOpencode = quick.WithOpencode

// WithClaudeCLI targets the claude CLI binary ("claude" when empty).
var WithClaudeCLI = quick.WithClaudeCLI

// WithModel sets the model reference.
var WithModel = quick.WithModel

// WithAgent sets the opencode agent name.
var WithAgent = quick.WithAgent

// WithSession continues an existing backend session.
var WithSession = quick.WithSession

// WithTimeout bounds each backend round-trip.
var WithTimeout = quick.WithTimeout

// WithMaxRounds caps the correction rounds per prediction.
var WithMaxRounds = quick.WithMaxRounds

// WithCorrectionModel routes correction prompts to a different model.
var WithCorrectionModel = quick.WithCorrectionModel

// WithLogger sets a custom zap logger.
var WithLogger = quick.WithLogger
