package signature

import (
	"fmt"
	"strings"
)

// Parse builds a Signature from a compact "inputs -> outputs" declaration.
//
// Fields are comma-separated names, optionally typed with a colon suffix:
//
//	Parse("text -> summary, sentiment")
//	Parse("question, context -> answer:string, confidence:number")
//	Parse("doc -> topics:[]string, count:integer")
//
// Untyped fields default to string. Supported kinds are string, number,
// integer and boolean, plus []kind for arrays of those. The declaration
// carries no instruction text; use the Builder when a doc string or
// richer types (enum, object, optional) are needed.
func Parse(decl string) (*Signature, error) {
	parts := strings.Split(decl, "->")
	if len(parts) != 2 {
		return nil, fmt.Errorf("signature: declaration %q must contain exactly one \"->\"", decl)
	}

	b := New("")
	inputs, err := parseFieldList(parts[0])
	if err != nil {
		return nil, err
	}
	for _, f := range inputs {
		b.Input(f.Name, f.Type, "")
	}
	outputs, err := parseFieldList(parts[1])
	if err != nil {
		return nil, err
	}
	for _, f := range outputs {
		b.Output(f.Name, f.Type, "")
	}
	return b.Build()
}

// MustParse is Parse that panics on error, for declarations known statically.
func MustParse(decl string) *Signature {
	s, err := Parse(decl)
	if err != nil {
		panic(err)
	}
	return s
}

func parseFieldList(list string) ([]Field, error) {
	list = strings.TrimSpace(list)
	if list == "" {
		return nil, nil
	}
	var fields []Field
	for _, raw := range strings.Split(list, ",") {
		name, kind, typed := strings.Cut(strings.TrimSpace(raw), ":")
		name = strings.TrimSpace(name)
		t := String()
		if typed {
			var err error
			t, err = parseKind(strings.TrimSpace(kind))
			if err != nil {
				return nil, fmt.Errorf("signature: field %q: %w", name, err)
			}
		}
		fields = append(fields, Field{Name: name, Type: t})
	}
	return fields, nil
}

func parseKind(kind string) (FieldType, error) {
	if elem, ok := strings.CutPrefix(kind, "[]"); ok {
		inner, err := parseKind(elem)
		if err != nil {
			return nil, err
		}
		return Array(inner), nil
	}
	switch kind {
	case "string":
		return String(), nil
	case "number":
		return Number(), nil
	case "integer":
		return Integer(), nil
	case "boolean", "bool":
		return Boolean(), nil
	default:
		return nil, fmt.Errorf("unknown kind %q", kind)
	}
}
