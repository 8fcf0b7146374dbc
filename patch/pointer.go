package patch

import (
	"fmt"
	"strings"
)

// unsafeKeys are property names that must never be written or traversed.
// They are inert in Go maps but poisonous once the document crosses into a
// JavaScript consumer, so the guard is part of the wire-safety contract.
var unsafeKeys = map[string]struct{}{
	"__proto__":   {},
	"constructor": {},
	"prototype":   {},
}

func isUnsafeKey(seg string) bool {
	_, bad := unsafeKeys[seg]
	return bad
}

// splitPointer parses an RFC 6901 JSON Pointer into unescaped segments,
// rejecting malformed escapes and unsafe keys. The empty pointer (document
// root) yields nil segments.
func splitPointer(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("pointer %q must start with /", path)
	}
	raw := strings.Split(path[1:], "/")
	segments := make([]string, len(raw))
	for i, seg := range raw {
		unescaped, err := unescapeSegment(seg)
		if err != nil {
			return nil, err
		}
		if isUnsafeKey(unescaped) {
			return nil, fmt.Errorf("unsafe key %q in pointer %q", unescaped, path)
		}
		segments[i] = unescaped
	}
	return segments, nil
}

// unescapeSegment applies the RFC 6901 escapes: ~1 becomes /, ~0 becomes ~.
// Order matters; a bare trailing ~ or an unknown escape is malformed.
func unescapeSegment(seg string) (string, error) {
	if !strings.Contains(seg, "~") {
		return seg, nil
	}
	var b strings.Builder
	for i := 0; i < len(seg); i++ {
		c := seg[i]
		if c != '~' {
			b.WriteByte(c)
			continue
		}
		if i+1 >= len(seg) {
			return "", fmt.Errorf("segment %q has a dangling ~", seg)
		}
		i++
		switch seg[i] {
		case '0':
			b.WriteByte('~')
		case '1':
			b.WriteByte('/')
		default:
			return "", fmt.Errorf("segment %q has invalid escape ~%c", seg, seg[i])
		}
	}
	return b.String(), nil
}

// isIndexSegment reports whether seg addresses an array position.
func isIndexSegment(seg string) bool {
	if seg == "" {
		return false
	}
	for i := 0; i < len(seg); i++ {
		if seg[i] < '0' || seg[i] > '9' {
			return false
		}
	}
	return true
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = deepCopyValue(item)
		}
		return out
	}
	return v
}
