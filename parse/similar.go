package parse

import "strings"

// Matcher proposes a candidate key for a missing field name. Matchers run in
// order; the first hit wins. Candidates are the extra top-level keys of the
// response, sorted for determinism.
type Matcher func(missing string, candidates []string) (string, bool)

// synonymGroups lists field names LLMs commonly substitute for one another.
// Checked before any fuzzy matching so a known rename beats a substring
// coincidence.
var synonymGroups = [][]string{
	{"answer", "response", "result", "output", "reply"},
	{"name", "title", "label"},
	{"text", "content", "body", "message"},
	{"summary", "abstract", "overview"},
	{"reason", "reasoning", "rationale", "explanation", "justification"},
	{"score", "rating", "confidence"},
	{"id", "identifier", "key", "uid"},
	{"count", "total", "quantity"},
	{"category", "type", "kind", "class"},
	{"url", "link", "href"},
	{"description", "desc", "details"},
}

// SynonymMatcher matches against the static table of known synonym groups.
func SynonymMatcher() Matcher {
	return func(missing string, candidates []string) (string, bool) {
		group := groupOf(normalizeKey(missing))
		if group < 0 {
			return "", false
		}
		for _, cand := range candidates {
			if groupOf(normalizeKey(cand)) == group {
				return cand, true
			}
		}
		return "", false
	}
}

// NormalizedMatcher compares keys after lowercasing and stripping
// underscores: exact equality first, then substring containment either way.
// Very short names only match exactly, to keep one-letter keys from matching
// everything.
func NormalizedMatcher() Matcher {
	return func(missing string, candidates []string) (string, bool) {
		want := normalizeKey(missing)
		for _, cand := range candidates {
			if normalizeKey(cand) == want {
				return cand, true
			}
		}
		if len(want) < 3 {
			return "", false
		}
		for _, cand := range candidates {
			got := normalizeKey(cand)
			if len(got) >= 3 && (strings.Contains(got, want) || strings.Contains(want, got)) {
				return cand, true
			}
		}
		return "", false
	}
}

// DefaultMatchers is the standard ordered strategy: known synonyms, then
// normalized matching.
func DefaultMatchers() []Matcher {
	return []Matcher{SynonymMatcher(), NormalizedMatcher()}
}

func normalizeKey(k string) string {
	k = strings.ToLower(k)
	k = strings.ReplaceAll(k, "_", "")
	k = strings.ReplaceAll(k, "-", "")
	return k
}

func groupOf(normalized string) int {
	for i, group := range synonymGroups {
		for _, member := range group {
			if member == normalized {
				return i
			}
		}
	}
	return -1
}
