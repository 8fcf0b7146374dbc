package predict

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/BaSui01/sigflow/signature"
)

// Template renders the prompt for one signature execution. Inputs the
// signature does not declare are ignored; a missing non-optional input is
// an error, raised before anything reaches the backend.
type Template func(sig *signature.Signature, inputs map[string]any) (string, error)

// DefaultTemplate is the builtin prompt layout: the signature's doc, one
// block per declared input, then the output contract as a JSON shape with
// per-field annotations.
func DefaultTemplate(sig *signature.Signature, inputs map[string]any) (string, error) {
	var b strings.Builder
	if doc := sig.Doc(); doc != "" {
		b.WriteString(doc)
		b.WriteString("\n\n")
	}
	if err := renderInputs(&b, sig.Inputs(), inputs); err != nil {
		return "", err
	}
	renderOutputs(&b, sig.Outputs())
	return b.String(), nil
}

func renderInputs(b *strings.Builder, fields []signature.Field, inputs map[string]any) error {
	for _, f := range fields {
		v, ok := inputs[f.Name]
		if !ok {
			if signature.IsOptional(f.Type) {
				continue
			}
			return fmt.Errorf("missing input %q", f.Name)
		}
		fmt.Fprintf(b, "%s:\n%s\n\n", f.Name, renderInputValue(v))
	}
	return nil
}

// renderInputValue keeps strings verbatim so prose inputs read as prose;
// everything else goes through JSON.
func renderInputValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}

func renderOutputs(b *strings.Builder, outputs []signature.Field) {
	b.WriteString("Respond with a JSON object of this shape:\n{\n")
	for i, f := range outputs {
		fmt.Fprintf(b, "  %q: %s", f.Name, f.Type.Describe())
		if i < len(outputs)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n")

	b.WriteString("\nFields:\n")
	for _, f := range outputs {
		fmt.Fprintf(b, "- %s (%s", f.Name, f.Type.Describe())
		if signature.IsOptional(f.Type) {
			b.WriteString(", optional")
		}
		b.WriteString(")")
		if f.Desc != "" {
			b.WriteString(": ")
			b.WriteString(f.Desc)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nRespond with only the JSON object. No commentary, no code fences.")
}
