// Package predict runs one typed signature against an LLM backend: render
// the prompt, send it on the execution context's conversation, validate the
// reply, and let the correction loop fix what validation rejects.
package predict

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/sigflow/backend"
	"github.com/BaSui01/sigflow/correction"
	"github.com/BaSui01/sigflow/internal/metrics"
	"github.com/BaSui01/sigflow/internal/tokencount"
	"github.com/BaSui01/sigflow/parse"
	"github.com/BaSui01/sigflow/patch"
	"github.com/BaSui01/sigflow/pipeline"
	"github.com/BaSui01/sigflow/signature"
)

// Prediction is one successful execution. Data holds the declared output
// fields after validation; Object is the full parsed reply including extra
// keys the model volunteered; Raw is the untouched reply text. Rounds is
// the number of correction round-trips spent, zero when the first reply
// was already valid.
type Prediction struct {
	Data      map[string]any
	Object    map[string]any
	Raw       string
	SessionID string
	Model     string
	Duration  time.Duration
	Rounds    int
}

// Predictor ties one signature to prompt rendering, backend invocation,
// and the correction loop. A Predictor is stateless across calls; session
// continuity lives in the pipeline context it executes against.
type Predictor struct {
	sig      *signature.Signature
	applier  patch.Applier
	template Template

	maxRounds int
	maxFields int
	matchers  []parse.Matcher
	corrModel backend.ModelRef

	baseLogger *zap.Logger
	logger     *zap.Logger
	collector  *metrics.Collector
	counter    *tokencount.Counter
}

// Option configures a Predictor.
type Option func(*Predictor)

// WithApplier sets the patch strategy correction rounds use. The default
// is JSON Patch.
func WithApplier(a patch.Applier) Option {
	return func(p *Predictor) {
		if a != nil {
			p.applier = a
		}
	}
}

// WithTemplate replaces the builtin prompt layout.
func WithTemplate(t Template) Option {
	return func(p *Predictor) {
		if t != nil {
			p.template = t
		}
	}
}

// WithMaxRounds caps correction round-trips per execution.
func WithMaxRounds(n int) Option {
	return func(p *Predictor) {
		if n >= 1 {
			p.maxRounds = n
		}
	}
}

// WithMaxFields caps the field errors reported per correction round.
func WithMaxFields(n int) Option {
	return func(p *Predictor) {
		if n >= 1 {
			p.maxFields = n
		}
	}
}

// WithCorrectionModel runs correction rounds on ref instead of the model
// that produced the reply, staying in the same session so the model sees
// what it is fixing.
func WithCorrectionModel(ref backend.ModelRef) Option {
	return func(p *Predictor) { p.corrModel = ref }
}

// WithMatchers replaces the similar-field matching strategy used during
// validation.
func WithMatchers(ms ...parse.Matcher) Option {
	return func(p *Predictor) { p.matchers = ms }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Predictor) {
		if logger != nil {
			p.baseLogger = logger
		}
	}
}

// WithCollector sets the metrics collector.
func WithCollector(collector *metrics.Collector) Option {
	return func(p *Predictor) { p.collector = collector }
}

// New builds a predictor for sig. Without options it renders the builtin
// prompt layout, corrects with JSON Patch, and uses the default round
// budget.
func New(sig *signature.Signature, opts ...Option) *Predictor {
	p := &Predictor{
		sig:        sig,
		template:   DefaultTemplate,
		maxRounds:  correction.DefaultMaxRounds,
		maxFields:  correction.DefaultMaxFields,
		baseLogger: zap.NewNop(),
		counter:    tokencount.New(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.applier == nil {
		p.applier = patch.NewJSONPatch(p.baseLogger)
	}
	p.logger = p.baseLogger.With(zap.String("component", "predict"))
	return p
}

// CallOption adjusts a single Execute call.
type CallOption func(*callConfig)

type callConfig struct {
	model      backend.ModelRef
	agent      string
	newSession bool
}

// WithModel runs this call on ref instead of the context's model. The
// override does not leak into the context.
func WithModel(ref backend.ModelRef) CallOption {
	return func(c *callConfig) { c.model = ref }
}

// WithAgent addresses this call to a different agent.
func WithAgent(agent string) CallOption {
	return func(c *callConfig) { c.agent = agent }
}

// WithNewSession starts a fresh session for this call instead of
// continuing the context's current one. The fresh session becomes the
// context's session once the backend replies.
func WithNewSession() CallOption {
	return func(c *callConfig) { c.newSession = true }
}

// Execute renders the prompt for inputs, sends it on the context's
// conversation, and returns the validated output data. The backend's
// reported session id becomes the context's current session, so
// consecutive calls against the same context continue one conversation.
// Correction exhaustion surfaces as a terminal error; nothing is retried
// here.
func (p *Predictor) Execute(ctx context.Context, pctx *pipeline.Context, inputs map[string]any, opts ...CallOption) (*Prediction, error) {
	var cfg callConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	prompt, err := p.template(p.sig, inputs)
	if err != nil {
		return nil, err
	}

	conv := pctx.Conversation()
	if !cfg.model.IsZero() {
		conv = conv.OnModel(cfg.model)
	}
	if cfg.agent != "" {
		conv = conv.OnAgent(cfg.agent)
	}
	if cfg.newSession {
		conv.SetSession("")
	}

	p.collector.RecordPromptTokens("predict", p.counter.Count(prompt))
	p.logger.Debug("executing signature",
		zap.String("model", conv.Model().String()),
		zap.Int("inputs", len(inputs)))

	start := time.Now()
	raw, err := conv.Ask(ctx, prompt)
	if err != nil {
		return nil, err
	}

	corrConv := conv
	if !p.corrModel.IsZero() {
		corrConv = conv.OnModel(p.corrModel)
	}
	copts := []correction.Option{
		correction.WithMaxRounds(p.maxRounds),
		correction.WithMaxFields(p.maxFields),
		correction.WithLogger(p.baseLogger),
		correction.WithCollector(p.collector),
	}
	if len(p.matchers) > 0 {
		copts = append(copts, correction.WithMatchers(p.matchers...))
	}
	res, err := correction.New(p.sig, p.applier, corrConv, copts...).Run(ctx, raw)
	if err != nil {
		return nil, err
	}

	p.logger.Debug("signature satisfied",
		zap.Int("rounds", res.Rounds),
		zap.String("session", conv.SessionID()))

	return &Prediction{
		Data:      res.Data,
		Object:    res.Raw,
		Raw:       raw,
		SessionID: conv.SessionID(),
		Model:     conv.Model().String(),
		Duration:  time.Since(start),
		Rounds:    res.Rounds,
	}, nil
}
