// Package correction closes the loop between schema validation and the LLM.
// When a response fails to parse or validate, the Controller asks the
// backend to fix it, in the same session, until the response satisfies the
// signature or the round budget runs out. Syntactic repair and field
// correction are separate phases with separate prompts: fixing JSON that
// does not parse and fixing fields inside JSON that does are different
// tasks for the model.
package correction

import (
	"context"
	"fmt"
	"reflect"

	"go.uber.org/zap"

	"github.com/BaSui01/sigflow/backend"
	"github.com/BaSui01/sigflow/internal/metrics"
	"github.com/BaSui01/sigflow/internal/tokencount"
	"github.com/BaSui01/sigflow/parse"
	"github.com/BaSui01/sigflow/patch"
	"github.com/BaSui01/sigflow/signature"
	"github.com/BaSui01/sigflow/types"
)

// Defaults for the correction budget.
const (
	DefaultMaxRounds = 3
	DefaultMaxFields = 5
)

// Controller drives the bounded correction loop for one signature.
type Controller struct {
	outputs   []signature.Field
	applier   patch.Applier
	conv      *backend.Conversation
	maxRounds int
	maxFields int
	matchers  []parse.Matcher
	logger    *zap.Logger
	collector *metrics.Collector
	counter   *tokencount.Counter
}

// Option configures a Controller.
type Option func(*Controller)

// WithMaxRounds caps the number of backend round-trips. Values below 1
// keep the default.
func WithMaxRounds(n int) Option {
	return func(c *Controller) {
		if n >= 1 {
			c.maxRounds = n
		}
	}
}

// WithMaxFields caps how many field errors one correction prompt reports.
func WithMaxFields(n int) Option {
	return func(c *Controller) {
		if n >= 1 {
			c.maxFields = n
		}
	}
}

// WithMatchers replaces the similar-field matching strategy used during
// validation.
func WithMatchers(ms ...parse.Matcher) Option {
	return func(c *Controller) { c.matchers = ms }
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) { c.logger = logger }
}

// WithCollector sets the metrics collector.
func WithCollector(collector *metrics.Collector) Option {
	return func(c *Controller) { c.collector = collector }
}

// New creates a Controller correcting responses toward sig's output fields.
// conv must be the conversation the original response came from, so the
// model sees what it meant to produce.
func New(sig *signature.Signature, applier patch.Applier, conv *backend.Conversation, opts ...Option) *Controller {
	c := &Controller{
		outputs:   sig.Outputs(),
		applier:   applier,
		conv:      conv,
		maxRounds: DefaultMaxRounds,
		maxFields: DefaultMaxFields,
		logger:    zap.NewNop(),
		counter:   tokencount.New(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With(zap.String("component", "correction"))
	return c
}

// Result is a successful correction outcome. Rounds is the number of
// backend round-trips spent; zero means the raw response was already valid.
type Result struct {
	Data   map[string]any
	Raw    map[string]any
	Rounds int
}

// Run validates raw and, if needed, corrects it. It returns a terminal
// SCHEMA_CORRECTION_EXHAUSTED error when the round budget runs out, or the
// backend's own error if a correction call fails outright.
func (c *Controller) Run(ctx context.Context, raw string) (*Result, error) {
	res := c.validate(raw)
	if res.Valid() {
		c.collector.RecordCorrectionOutcome("success")
		return &Result{Data: res.Data, Raw: res.Raw, Rounds: 0}, nil
	}

	for round := 1; round <= c.maxRounds; round++ {
		var err error
		if res.ParseLevel() {
			res, raw, err = c.repairRound(ctx, round, raw, res)
		} else {
			res, err = c.fieldRound(ctx, round, res)
		}
		if err != nil {
			return nil, err
		}

		if res.Valid() {
			c.collector.RecordCorrectionOutcome("success")
			c.logger.Info("correction succeeded", zap.Int("rounds", round))
			return &Result{Data: res.Data, Raw: res.Raw, Rounds: round}, nil
		}

		// Invalid with zero errors means the validator produced no data and
		// no diagnosis. The loop cannot make progress from here.
		if len(res.Errors) == 0 {
			c.logger.Warn("correction anomaly: no data and no field errors", zap.Int("round", round))
			c.collector.RecordCorrectionOutcome("anomaly")
			return nil, types.NewError(types.ErrSchemaExhausted,
				"correction reached an inconsistent state: no errors and no data").
				WithRounds(round)
		}
	}

	c.collector.RecordCorrectionOutcome("exhausted")
	msg := fmt.Sprintf("schema correction exhausted after %d rounds", c.maxRounds)
	if res.ParseLevel() {
		msg += ": " + string(res.Errors[0].Kind)
	} else {
		msg += fmt.Sprintf(": %d field(s) still failing", len(res.Errors))
	}
	c.logger.Warn("correction exhausted",
		zap.Int("rounds", c.maxRounds),
		zap.Int("remaining_errors", len(res.Errors)))
	return nil, types.NewError(types.ErrSchemaExhausted, msg).
		WithFields(res.Errors).
		WithRounds(c.maxRounds)
}

// repairRound asks the model to re-emit valid JSON and re-validates the
// fresh reply. It returns the new validation result and the reply text,
// which becomes the fragment shown in the next repair prompt.
func (c *Controller) repairRound(ctx context.Context, round int, fragment string, res *parse.Result) (*parse.Result, string, error) {
	c.collector.RecordCorrectionRound("repair")
	prompt := repairPrompt(fragment, res.Errors[0].Message)
	c.collector.RecordPromptTokens("repair", c.counter.Count(prompt))
	c.logger.Debug("repair round",
		zap.Int("round", round),
		zap.String("problem", res.Errors[0].Message))

	reply, err := c.conv.Ask(ctx, prompt)
	if err != nil {
		return nil, "", err
	}
	return c.validate(reply), reply, nil
}

// fieldRound asks the model for a patch fixing up to maxFields errors,
// applies it, and re-validates the patched object.
func (c *Controller) fieldRound(ctx context.Context, round int, res *parse.Result) (*parse.Result, error) {
	c.collector.RecordCorrectionRound("field")
	errs := res.Errors
	if len(errs) > c.maxFields {
		errs = errs[:c.maxFields]
	}
	prompt := fieldPrompt(res.Raw, errs, c.applier.Name())
	c.collector.RecordPromptTokens("correction", c.counter.Count(prompt))
	c.logger.Debug("field correction round",
		zap.Int("round", round),
		zap.Int("errors", len(res.Errors)),
		zap.Int("reported", len(errs)))

	reply, err := c.conv.Ask(ctx, prompt)
	if err != nil {
		return nil, err
	}

	src := extractPatchSource(c.applier.Name(), reply)
	patched := c.applier.Apply(ctx, res.Raw, src)
	if reflect.DeepEqual(patched, res.Raw) {
		c.collector.RecordPatch(c.applier.Name(), "voided")
	} else {
		c.collector.RecordPatch(c.applier.Name(), "applied")
	}
	return c.revalidate(patched), nil
}

func (c *Controller) validate(text string) *parse.Result {
	if len(c.matchers) > 0 {
		return parse.Validate(text, c.outputs, parse.WithMatchers(c.matchers...))
	}
	return parse.Validate(text, c.outputs)
}

func (c *Controller) revalidate(obj map[string]any) *parse.Result {
	if len(c.matchers) > 0 {
		return parse.ValidateObject(obj, c.outputs, parse.WithMatchers(c.matchers...))
	}
	return parse.ValidateObject(obj, c.outputs)
}
