package correction

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/BaSui01/sigflow/parse"
	"github.com/BaSui01/sigflow/patch"
	"github.com/BaSui01/sigflow/types"
)

// Truncation limits for JSON embedded in correction prompts. Showing the
// model two array elements and the first hundred characters of a string is
// enough to identify the field; more only burns context.
const (
	maxPromptString = 100
	maxPromptElems  = 2
	maxFragmentLen  = 1500
)

// repairPrompt asks the model to re-emit its previous reply as valid JSON.
func repairPrompt(fragment, problem string) string {
	var b strings.Builder
	b.WriteString("Your previous reply could not be parsed as JSON.\n\n")
	b.WriteString("Problem: ")
	b.WriteString(problem)
	b.WriteString("\n\nReply fragment:\n")
	b.WriteString(truncate(fragment, maxFragmentLen))
	b.WriteString("\n\nRespond with only the corrected JSON object. No commentary, no code fences.")
	return b.String()
}

// fieldPrompt asks the model for a patch fixing the reported errors. With
// one error the prompt focuses on that field; with several it lists them.
func fieldPrompt(current map[string]any, errs []types.FieldError, strategy string) string {
	var b strings.Builder
	if len(errs) == 1 {
		b.WriteString("The JSON below fails validation.\n\n")
		writeFieldError(&b, errs[0])
	} else {
		fmt.Fprintf(&b, "The JSON below fails validation on %d fields:\n\n", len(errs))
		for i, fe := range errs {
			fmt.Fprintf(&b, "%d. ", i+1)
			writeFieldError(&b, fe)
		}
	}
	b.WriteString("\nCurrent JSON:\n")
	b.WriteString(renderAbbreviated(current))
	b.WriteString("\n\n")
	b.WriteString(patchInstructions(strategy))
	return b.String()
}

func writeFieldError(b *strings.Builder, fe types.FieldError) {
	fmt.Fprintf(b, "Field %q: %s", fe.Path, fe.Message)
	if fe.ExpectedType != "" {
		fmt.Fprintf(b, " (expected: %s)", fe.ExpectedType)
	}
	if fe.FoundField != "" {
		fmt.Fprintf(b, "; the reply has a similar field %q = %s which may hold the intended value",
			fe.FoundField, renderValue(fe.FoundValue))
	} else if fe.FoundValue != nil {
		fmt.Fprintf(b, "; current value: %s", renderValue(fe.FoundValue))
	}
	b.WriteString("\n")
}

func patchInstructions(strategy string) string {
	switch strategy {
	case patch.StrategyJQ:
		return "Reply with a single jq assignment expression that fixes the problem, " +
			"for example: .age = 30\n" +
			"Use only field paths, literals, |, and del(). Output only the expression."
	default:
		return "Reply with a JSON Patch (RFC 6902) array that fixes the problem, " +
			`for example: [{"op": "add", "path": "/age", "value": 30}]` + "\n" +
			"Output only the array."
	}
}

// renderAbbreviated marshals obj with long strings and arrays truncated.
func renderAbbreviated(obj map[string]any) string {
	out, err := json.MarshalIndent(abbreviate(obj), "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", obj)
	}
	return string(out)
}

func renderValue(v any) string {
	out, err := json.Marshal(abbreviate(v))
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(out)
}

// abbreviate truncates strings beyond maxPromptString and arrays beyond
// maxPromptElems, marking elisions so the model knows data was cut.
func abbreviate(v any) any {
	switch t := v.(type) {
	case string:
		return truncate(t, maxPromptString)
	case []any:
		if len(t) <= maxPromptElems {
			out := make([]any, len(t))
			for i, item := range t {
				out[i] = abbreviate(item)
			}
			return out
		}
		out := make([]any, 0, maxPromptElems+1)
		for _, item := range t[:maxPromptElems] {
			out = append(out, abbreviate(item))
		}
		return append(out, fmt.Sprintf("(%d more)", len(t)-maxPromptElems))
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, item := range t {
			out[k] = abbreviate(item)
		}
		return out
	}
	return v
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "..."
}

var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z0-9]*[ \t]*\n?(.*?)\n?```")

// extractPatchSource pulls the patch out of a possibly chatty reply. JSON
// Patch replies go through array extraction; jq replies keep the fenced
// interior or the trimmed text.
func extractPatchSource(strategy, reply string) string {
	if strategy == patch.StrategyJQ {
		if m := fenceRe.FindStringSubmatch(reply); m != nil {
			return strings.TrimSpace(m[1])
		}
		return strings.TrimSpace(reply)
	}
	if span, ok := parse.ExtractArray(reply); ok {
		return span
	}
	if span, ok := parse.ExtractJSON(reply); ok {
		// a single operation object is accepted too
		return span
	}
	return strings.TrimSpace(reply)
}
