// =============================================================================
// Package quick — One-Line Structured Prediction
// =============================================================================
// Provides a convenience entry point for running a single signature-typed
// prediction with minimal boilerplate. Delegates to backend, pipeline and
// predict internally.
//
// The package lives under quick/ (not root) so the root façade can re-export
// it without the two packages importing each other.
//
// Usage:
//
//	import "github.com/BaSui01/sigflow/quick"
//
//	sig := signature.MustParse("text -> summary, sentiment")
//	pred, err := quick.Predict(ctx, sig,
//		map[string]any{"text": doc},
//		quick.WithOpencode("http://localhost:4096"),
//		quick.WithModel("anthropic/claude-sonnet-4-20250514"))
//
// =============================================================================
package quick

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/sigflow/backend"
	"github.com/BaSui01/sigflow/pipeline"
	"github.com/BaSui01/sigflow/predict"
	"github.com/BaSui01/sigflow/signature"
)

// Option configures the runtime assembled by Predict.
type Option func(*options)

type options struct {
	backend backend.Backend
	model   string
	agent   string
	session string
	timeout time.Duration
	logger  *zap.Logger

	// Backend shortcut fields — used when backend is nil.
	kind    string
	baseURL string
	bin     string

	maxRounds       int
	correctionModel string
}

// WithBackend sets a pre-built backend.
func WithBackend(b backend.Backend) Option {
	return func(o *options) { o.backend = b }
}

// WithOpencode targets an opencode server at baseURL.
// An empty baseURL falls back to the OPENCODE_BASE_URL environment variable.
func WithOpencode(baseURL string) Option {
	return func(o *options) {
		o.kind = backend.KindOpencode
		if baseURL == "" {
			baseURL = os.Getenv("OPENCODE_BASE_URL")
		}
		o.baseURL = baseURL
	}
}

// WithClaudeCLI targets the claude CLI binary. An empty bin means "claude"
// resolved from PATH.
func WithClaudeCLI(bin string) Option {
	return func(o *options) {
		o.kind = backend.KindClaudeCLI
		o.bin = bin
	}
}

// WithModel sets the model reference, e.g. "anthropic/claude-sonnet-4-20250514".
func WithModel(ref string) Option {
	return func(o *options) { o.model = ref }
}

// WithAgent sets the opencode agent name.
func WithAgent(name string) Option {
	return func(o *options) { o.agent = name }
}

// WithSession continues an existing backend session instead of opening a
// fresh one.
func WithSession(id string) Option {
	return func(o *options) { o.session = id }
}

// WithTimeout bounds each backend round-trip. Defaults to two minutes.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithMaxRounds caps the correction rounds spent on a malformed reply.
func WithMaxRounds(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxRounds = n
		}
	}
}

// WithCorrectionModel routes correction prompts to a different model than
// the one that produced the reply.
func WithCorrectionModel(ref string) Option {
	return func(o *options) { o.correctionModel = ref }
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// Predict runs one structured prediction against sig with minimal setup.
// A backend must be specified via WithBackend, WithOpencode, or
// WithClaudeCLI; everything else has workable defaults.
func Predict(ctx context.Context, sig *signature.Signature, inputs map[string]any, opts ...Option) (*predict.Prediction, error) {
	o := &options{
		timeout: 2 * time.Minute,
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	// Resolve backend.
	b := o.backend
	if b == nil {
		if o.kind == "" {
			return nil, fmt.Errorf("backend is required: use WithBackend, WithOpencode, or WithClaudeCLI")
		}
		if o.kind == backend.KindOpencode && o.baseURL == "" {
			return nil, fmt.Errorf("opencode base URL is required: pass it to WithOpencode or set OPENCODE_BASE_URL")
		}
		var err error
		b, err = backend.New(backend.Config{
			Kind:       o.kind,
			BaseURL:    o.baseURL,
			Bin:        o.bin,
			TimeoutSec: int(o.timeout.Seconds()),
		}, o.logger, nil)
		if err != nil {
			return nil, fmt.Errorf("create %s backend: %w", o.kind, err)
		}
	}

	convOpts := []backend.ConversationOption{backend.WithTimeout(o.timeout)}
	if o.model != "" {
		ref, err := backend.ParseModelRef(o.model)
		if err != nil {
			return nil, fmt.Errorf("parse model ref %q: %w", o.model, err)
		}
		convOpts = append(convOpts, backend.WithModel(ref))
	}
	if o.agent != "" {
		convOpts = append(convOpts, backend.WithAgent(o.agent))
	}
	if o.session != "" {
		convOpts = append(convOpts, backend.WithSession(o.session))
	}
	conv := backend.NewConversation(b, convOpts...)

	predictOpts := []predict.Option{predict.WithLogger(o.logger)}
	if o.maxRounds > 0 {
		predictOpts = append(predictOpts, predict.WithMaxRounds(o.maxRounds))
	}
	if o.correctionModel != "" {
		ref, err := backend.ParseModelRef(o.correctionModel)
		if err != nil {
			return nil, fmt.Errorf("parse correction model ref %q: %w", o.correctionModel, err)
		}
		predictOpts = append(predictOpts, predict.WithCorrectionModel(ref))
	}

	return predict.New(sig, predictOpts...).Execute(ctx, pipeline.NewContext(conv), inputs)
}
