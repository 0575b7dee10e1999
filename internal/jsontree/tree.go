package jsontree

// Clone deep-copies a decoded JSON tree. Scalars are returned as-is.
func Clone(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = Clone(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = Clone(val)
		}
		return out
	default:
		return v
	}
}

// WalkStrings rewrites every string leaf in place with fn and returns the
// tree. The root itself may be a string, so callers take the return value.
func WalkStrings(v any, fn func(string) string) any {
	switch t := v.(type) {
	case string:
		return fn(t)
	case map[string]any:
		for k, val := range t {
			t[k] = WalkStrings(val, fn)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = WalkStrings(val, fn)
		}
		return t
	default:
		return v
	}
}

// Prune returns a copy with empty leaves removed: nils, empty strings, and
// objects or arrays that are empty once their own children are pruned.
func Prune(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			p := Prune(val)
			if !emptyValue(p) {
				out[k] = p
			}
		}
		return out
	case []any:
		out := make([]any, 0, len(t))
		for _, val := range t {
			p := Prune(val)
			if !emptyValue(p) {
				out = append(out, p)
			}
		}
		return out
	default:
		return v
	}
}

func emptyValue(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == ""
	case map[string]any:
		return len(t) == 0
	case []any:
		return len(t) == 0
	}
	return false
}
