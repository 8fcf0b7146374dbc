// Package signature declares typed input/output contracts for LLM calls.
// A Signature couples an instruction string with ordered, validated input and
// output fields; it is immutable once built and shared freely across
// predictors.
package signature

import "fmt"

// Field is one named, typed slot in a signature.
type Field struct {
	Name string
	Type FieldType
	Desc string
}

// Signature is a declared input/output contract plus an instruction string,
// independent of execution.
type Signature struct {
	doc     string
	inputs  []Field
	outputs []Field
}

// Doc returns the instruction string.
func (s *Signature) Doc() string { return s.doc }

// Inputs returns a copy of the input fields in declaration order.
func (s *Signature) Inputs() []Field {
	return append([]Field(nil), s.inputs...)
}

// Outputs returns a copy of the output fields in declaration order.
func (s *Signature) Outputs() []Field {
	return append([]Field(nil), s.outputs...)
}

// Output looks up an output field by name.
func (s *Signature) Output(name string) (Field, bool) {
	for _, f := range s.outputs {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Builder assembles a Signature. Methods chain; Build validates the result.
type Builder struct {
	doc     string
	inputs  []Field
	outputs []Field
}

// New starts a signature with the given instruction string.
func New(doc string) *Builder {
	return &Builder{doc: doc}
}

// Input declares an input field. Pass an empty desc when the name is
// self-explanatory.
func (b *Builder) Input(name string, t FieldType, desc string) *Builder {
	b.inputs = append(b.inputs, Field{Name: name, Type: t, Desc: desc})
	return b
}

// Output declares an output field.
func (b *Builder) Output(name string, t FieldType, desc string) *Builder {
	b.outputs = append(b.outputs, Field{Name: name, Type: t, Desc: desc})
	return b
}

// Build validates the declaration and returns an immutable Signature.
func (b *Builder) Build() (*Signature, error) {
	if len(b.outputs) == 0 {
		return nil, fmt.Errorf("signature: at least one output field is required")
	}
	if err := checkFields("input", b.inputs); err != nil {
		return nil, err
	}
	if err := checkFields("output", b.outputs); err != nil {
		return nil, err
	}
	return &Signature{
		doc:     b.doc,
		inputs:  append([]Field(nil), b.inputs...),
		outputs: append([]Field(nil), b.outputs...),
	}, nil
}

// MustBuild is Build that panics on error, for declarations known statically.
func (b *Builder) MustBuild() *Signature {
	s, err := b.Build()
	if err != nil {
		panic(err)
	}
	return s
}

func checkFields(kind string, fields []Field) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Name == "" {
			return fmt.Errorf("signature: empty %s field name", kind)
		}
		if f.Type == nil {
			return fmt.Errorf("signature: %s field %q has no type", kind, f.Name)
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("signature: duplicate %s field %q", kind, f.Name)
		}
		seen[f.Name] = struct{}{}
	}
	return nil
}
