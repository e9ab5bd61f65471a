package workflow

import "slices"

// Values is a free-form key/value map as stored on instances and steps.
type Values map[string]any

// Clone returns a deep copy. Nested maps and slices produced by JSON
// decoding are copied; other values are shared.
func (v Values) Clone() Values {
	if v == nil {
		return nil
	}
	out := make(Values, len(v))
	for k, val := range v {
		out[k] = cloneValue(val)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return map[string]any(Values(t).Clone())
	case Values:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return slices.Clone(t)
	}
	return v
}

// Merge returns a copy of v with every key of partial written over it.
// The merge is shallow: a nested object in partial replaces the stored one.
func (v Values) Merge(partial map[string]any) Values {
	out := v.Clone()
	if out == nil {
		out = make(Values, len(partial))
	}
	for k, val := range partial {
		out[k] = cloneValue(val)
	}
	return out
}

// Declared splits v into the keys listed in keys and everything else.
// Both results are copies.
func (v Values) Declared(keys []string) (declared, extra Values) {
	declared = make(Values)
	extra = make(Values)
	for k, val := range v {
		if slices.Contains(keys, k) {
			declared[k] = cloneValue(val)
		} else {
			extra[k] = cloneValue(val)
		}
	}
	return declared, extra
}

// Map returns v as a plain map for consumers that do not know Values.
func (v Values) Map() map[string]any { return map[string]any(v) }
