package types

import "fmt"

// ErrorKind classifies a FieldError. Parse-level kinds (no JSON found, syntax
// error) route a response to JSON repair; field-level kinds (missing, invalid)
// route it to field correction.
type ErrorKind string

const (
	KindNoJSON  ErrorKind = "no_json_found"
	KindSyntax  ErrorKind = "json_syntax"
	KindMissing ErrorKind = "missing"
	KindInvalid ErrorKind = "invalid"
)

// FieldError describes a single validation failure. Path uses dot notation
// ("user.name", "items[2]"). FoundField/FoundValue carry the similar-field
// hypothesis when a missing field was likely emitted under another name.
type FieldError struct {
	Path         string    `json:"path"`
	Message      string    `json:"message"`
	ExpectedType string    `json:"expected_type,omitempty"`
	FoundField   string    `json:"found_field,omitempty"`
	FoundValue   any       `json:"found_value,omitempty"`
	Kind         ErrorKind `json:"kind"`
}

// String renders the error for logs and correction prompts.
func (e FieldError) String() string {
	s := fmt.Sprintf("%s: %s", e.Path, e.Message)
	if e.ExpectedType != "" {
		s += fmt.Sprintf(" (expected %s)", e.ExpectedType)
	}
	if e.FoundField != "" {
		s += fmt.Sprintf(" (similar field %q present)", e.FoundField)
	}
	return s
}

// ParseLevel reports whether the error is a parse-level failure rather than a
// per-field one.
func (e FieldError) ParseLevel() bool {
	return e.Kind == KindNoJSON || e.Kind == KindSyntax
}
