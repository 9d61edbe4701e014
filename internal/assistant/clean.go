package assistant

import "math"

// CleanForJSON walks a decoded JSON-like value and replaces every
// non-finite float with nil so the encoder never sees NaN or Infinity.
// Structure and finite values pass through unchanged.
func CleanForJSON(v any) any {
	switch val := v.(type) {
	case float64:
		if math.IsNaN(val) || math.IsInf(val, 0) {
			return nil
		}
		return val
	case float32:
		f := float64(val)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return nil
		}
		return val
	case *float64:
		if val == nil {
			return nil
		}
		if math.IsNaN(*val) || math.IsInf(*val, 0) {
			return nil
		}
		return *val
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = CleanForJSON(item)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CleanForJSON(item)
		}
		return out
	default:
		return v
	}
}
