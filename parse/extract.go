// Package parse turns free-form LLM text into validated structured data:
// extraction of a JSON span, null normalization, per-field validation, and
// similar-field diagnosis for missing fields.
package parse

import (
	"regexp"
	"strings"
)

// fenceRe matches a fenced code block with an optional language tag and
// captures the interior.
var fenceRe = regexp.MustCompile("(?s)```[a-zA-Z0-9]*[ \\t]*\\n?(.*?)\\n?```")

// ExtractJSON pulls a JSON object or array substring out of text. It prefers
// a fenced code block whose interior opens with a brace or bracket, then
// falls back to a depth-counted scan from the first opening delimiter.
// Returns ok=false when no balanced span exists.
func ExtractJSON(text string) (string, bool) {
	return extract(text, "{[")
}

// ExtractArray is the bracket-only variant used for patch operation arrays.
func ExtractArray(text string) (string, bool) {
	return extract(text, "[")
}

func extract(text, opens string) (string, bool) {
	text = strings.TrimSpace(text)

	if strings.Contains(text, "```") {
		for _, m := range fenceRe.FindAllStringSubmatch(text, -1) {
			inner := strings.TrimSpace(m[1])
			if inner != "" && strings.ContainsRune(opens, rune(inner[0])) {
				return inner, true
			}
		}
	}

	// Scan from the earliest opening delimiter; if that span never balances,
	// try the other delimiter kind.
	first := -1
	for _, open := range opens {
		if i := strings.IndexRune(text, open); i >= 0 && (first < 0 || i < first) {
			first = i
		}
	}
	if first < 0 {
		return "", false
	}
	if span, ok := balancedSpan(text, first); ok {
		return span, true
	}
	for _, open := range opens {
		i := strings.IndexRune(text, open)
		if i < 0 || i == first {
			continue
		}
		if span, ok := balancedSpan(text, i); ok {
			return span, true
		}
	}
	return "", false
}

// balancedSpan walks text from start (an opening delimiter), tracking nesting
// depth for that delimiter kind and skipping string literals, and returns the
// span where depth returns to zero.
func balancedSpan(text string, start int) (string, bool) {
	open := text[start]
	var close byte
	switch open {
	case '{':
		close = '}'
	case '[':
		close = ']'
	default:
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return text[start : i+1], true
			}
		}
	}
	return "", false
}
