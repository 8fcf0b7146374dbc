package parse

import (
	"encoding/json"
	"sort"

	"github.com/BaSui01/sigflow/signature"
	"github.com/BaSui01/sigflow/types"
)

// Result is the outcome of validating one response against a signature's
// output fields. Raw carries the parsed (null-normalized) object whenever
// extraction and unmarshalling succeeded, even if validation failed; the
// correction loop patches against it.
type Result struct {
	Data   map[string]any
	Raw    map[string]any
	Errors []types.FieldError
}

// Valid reports whether validation produced usable data.
func (r *Result) Valid() bool {
	return r.Data != nil && len(r.Errors) == 0
}

// ParseLevel reports whether the failure happened before field validation
// (nothing extracted, or the span does not parse). Routes to JSON repair.
func (r *Result) ParseLevel() bool {
	return len(r.Errors) > 0 && r.Errors[0].ParseLevel()
}

// Option configures validation.
type Option func(*options)

type options struct {
	matchers []Matcher
}

// WithMatchers replaces the similar-field matching strategy.
func WithMatchers(ms ...Matcher) Option {
	return func(o *options) { o.matchers = ms }
}

// Validate extracts a JSON object from text and validates it against the
// output fields. Missing required fields are annotated with a similar-field
// hypothesis drawn from the response's extra keys.
func Validate(text string, outputs []signature.Field, opts ...Option) *Result {
	span, ok := ExtractJSON(text)
	if !ok {
		return &Result{Errors: []types.FieldError{{
			Message: "no JSON object found in response",
			Kind:    types.KindNoJSON,
		}}}
	}

	var decoded any
	if err := json.Unmarshal([]byte(span), &decoded); err != nil {
		return &Result{Errors: []types.FieldError{{
			Message: "JSON parse error: " + err.Error(),
			Kind:    types.KindSyntax,
		}}}
	}

	obj, ok := decoded.(map[string]any)
	if !ok {
		return &Result{Errors: []types.FieldError{{
			Message: "top-level JSON is not an object",
			Kind:    types.KindSyntax,
		}}}
	}

	return ValidateObject(obj, outputs, opts...)
}

// ValidateObject validates an already-parsed object against the output
// fields. The correction loop uses it to re-check a patched document
// without another extraction pass.
func ValidateObject(obj map[string]any, outputs []signature.Field, opts ...Option) *Result {
	o := options{matchers: DefaultMatchers()}
	for _, opt := range opts {
		opt(&o)
	}

	normalized := stripNulls(obj)
	result := &Result{Raw: normalized}

	extras := extraKeys(normalized, outputs)
	for _, f := range outputs {
		value, present := normalized[f.Name]
		if !present {
			if signature.IsOptional(f.Type) {
				continue
			}
			fe := types.FieldError{
				Path:         f.Name,
				Message:      "missing required field",
				ExpectedType: f.Type.Describe(),
				Kind:         types.KindMissing,
			}
			if cand, found := matchSimilar(f.Name, extras, o.matchers); found {
				fe.FoundField = cand
				fe.FoundValue = normalized[cand]
			}
			result.Errors = append(result.Errors, fe)
			continue
		}
		if err := f.Type.Validate(value); err != nil {
			result.Errors = append(result.Errors, types.FieldError{
				Path:         f.Name,
				Message:      err.Error(),
				ExpectedType: f.Type.Describe(),
				FoundValue:   value,
				Kind:         types.KindInvalid,
			})
		}
	}

	if len(result.Errors) == 0 {
		result.Data = normalized
	}
	return result
}

// extraKeys returns the response's top-level keys that no output field
// claims, sorted so matcher results are deterministic.
func extraKeys(obj map[string]any, outputs []signature.Field) []string {
	declared := make(map[string]struct{}, len(outputs))
	for _, f := range outputs {
		declared[f.Name] = struct{}{}
	}
	var extras []string
	for k := range obj {
		if _, ok := declared[k]; !ok {
			extras = append(extras, k)
		}
	}
	sort.Strings(extras)
	return extras
}

func matchSimilar(missing string, candidates []string, matchers []Matcher) (string, bool) {
	if len(candidates) == 0 {
		return "", false
	}
	for _, m := range matchers {
		if cand, ok := m(missing, candidates); ok {
			return cand, true
		}
	}
	return "", false
}
