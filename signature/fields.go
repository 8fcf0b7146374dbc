package signature

import (
	"fmt"
	"sort"
	"strings"
)

// FieldType validates a decoded JSON value and describes itself for prompt
// rendering. Validate must be a pure predicate; Describe must come from the
// same definition so the validated shape and the prompted shape never drift.
type FieldType interface {
	Validate(v any) error
	Describe() string
}

// String accepts any JSON string.
func String() FieldType { return stringField{} }

// Number accepts any JSON number.
func Number() FieldType { return numberField{} }

// Integer accepts JSON numbers without a fractional part.
func Integer() FieldType { return integerField{} }

// Boolean accepts JSON booleans.
func Boolean() FieldType { return boolField{} }

// Array accepts a JSON array whose every element satisfies elem.
func Array(elem FieldType) FieldType { return arrayField{elem: elem} }

// Object accepts a JSON object with the given fields. Fields wrapped in
// Optional may be absent; unknown keys are ignored.
func Object(fields ...Field) FieldType { return objectField{fields: fields} }

// Enum accepts one of the given string values.
func Enum(values ...string) FieldType { return enumField{values: values} }

// Optional marks a field that may be absent from the response.
func Optional(inner FieldType) FieldType { return optionalField{inner: inner} }

// Nullable accepts an explicit JSON null in addition to the inner type.
// Relevant mostly for array elements, where positional nulls are preserved.
func Nullable(inner FieldType) FieldType { return nullableField{inner: inner} }

// IsOptional reports whether t tolerates the field being absent.
func IsOptional(t FieldType) bool {
	_, ok := t.(optionalField)
	return ok
}

// IsNullable reports whether t tolerates an explicit null value.
func IsNullable(t FieldType) bool {
	if _, ok := t.(nullableField); ok {
		return true
	}
	if o, ok := t.(optionalField); ok {
		return IsNullable(o.inner)
	}
	return false
}

// Unwrap peels Optional/Nullable wrappers off t.
func Unwrap(t FieldType) FieldType {
	switch w := t.(type) {
	case optionalField:
		return Unwrap(w.inner)
	case nullableField:
		return Unwrap(w.inner)
	}
	return t
}

type stringField struct{}

func (stringField) Validate(v any) error {
	if _, ok := v.(string); !ok {
		return fmt.Errorf("expected string, got %s", jsonTypeName(v))
	}
	return nil
}

func (stringField) Describe() string { return "string" }

type numberField struct{}

func (numberField) Validate(v any) error {
	if _, ok := toFloat64(v); !ok {
		return fmt.Errorf("expected number, got %s", jsonTypeName(v))
	}
	return nil
}

func (numberField) Describe() string { return "number" }

type integerField struct{}

func (integerField) Validate(v any) error {
	f, ok := toFloat64(v)
	if !ok {
		return fmt.Errorf("expected integer, got %s", jsonTypeName(v))
	}
	if f != float64(int64(f)) {
		return fmt.Errorf("expected integer, got fractional number %v", f)
	}
	return nil
}

func (integerField) Describe() string { return "integer" }

type boolField struct{}

func (boolField) Validate(v any) error {
	if _, ok := v.(bool); !ok {
		return fmt.Errorf("expected boolean, got %s", jsonTypeName(v))
	}
	return nil
}

func (boolField) Describe() string { return "boolean" }

type arrayField struct {
	elem FieldType
}

func (a arrayField) Validate(v any) error {
	items, ok := v.([]any)
	if !ok {
		return fmt.Errorf("expected array, got %s", jsonTypeName(v))
	}
	for i, item := range items {
		if item == nil && IsNullable(a.elem) {
			continue
		}
		if err := a.elem.Validate(item); err != nil {
			return fmt.Errorf("element %d: %v", i, err)
		}
	}
	return nil
}

func (a arrayField) Describe() string {
	return "array of " + a.elem.Describe()
}

type objectField struct {
	fields []Field
}

func (o objectField) Validate(v any) error {
	obj, ok := v.(map[string]any)
	if !ok {
		return fmt.Errorf("expected object, got %s", jsonTypeName(v))
	}
	for _, f := range o.fields {
		val, present := obj[f.Name]
		if !present {
			if IsOptional(f.Type) {
				continue
			}
			return fmt.Errorf("missing key %q", f.Name)
		}
		if val == nil && IsNullable(f.Type) {
			continue
		}
		if err := f.Type.Validate(val); err != nil {
			return fmt.Errorf("key %q: %v", f.Name, err)
		}
	}
	return nil
}

func (o objectField) Describe() string {
	parts := make([]string, 0, len(o.fields))
	for _, f := range o.fields {
		parts = append(parts, f.Name+": "+f.Type.Describe())
	}
	return "object{" + strings.Join(parts, ", ") + "}"
}

type enumField struct {
	values []string
}

func (e enumField) Validate(v any) error {
	s, ok := v.(string)
	if !ok {
		return fmt.Errorf("expected enum string, got %s", jsonTypeName(v))
	}
	for _, allowed := range e.values {
		if s == allowed {
			return nil
		}
	}
	sorted := append([]string(nil), e.values...)
	sort.Strings(sorted)
	return fmt.Errorf("value %q not in enum [%s]", s, strings.Join(sorted, ", "))
}

func (e enumField) Describe() string {
	quoted := make([]string, len(e.values))
	for i, v := range e.values {
		quoted[i] = fmt.Sprintf("%q", v)
	}
	return "enum(" + strings.Join(quoted, " | ") + ")"
}

type optionalField struct {
	inner FieldType
}

func (o optionalField) Validate(v any) error { return o.inner.Validate(v) }

func (o optionalField) Describe() string { return o.inner.Describe() }

type nullableField struct {
	inner FieldType
}

func (n nullableField) Validate(v any) error {
	if v == nil {
		return nil
	}
	return n.inner.Validate(v)
}

func (n nullableField) Describe() string { return n.inner.Describe() + " or null" }

// toFloat64 normalizes the numeric representations a decoded value may carry.
func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	}
	return 0, false
}

func jsonTypeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float64, float32, int, int32, int64, uint, uint64:
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	}
	return fmt.Sprintf("%T", v)
}
