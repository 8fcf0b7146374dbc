package parse

// stripNulls converts explicit nulls to absent keys, recursively. LLMs
// frequently emit null for optional fields instead of omitting them; the
// schema treats both the same way. Positional nulls inside arrays are
// preserved so element indices stay stable.
func stripNulls(obj map[string]any) map[string]any {
	out := make(map[string]any, len(obj))
	for k, v := range obj {
		if v == nil {
			continue
		}
		out[k] = stripNullsValue(v)
	}
	return out
}

func stripNullsValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return stripNulls(t)
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			if item == nil {
				out[i] = nil
				continue
			}
			out[i] = stripNullsValue(item)
		}
		return out
	}
	return v
}
