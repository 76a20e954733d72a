package run

import (
	"encoding/json"
	"fmt"
)

// As converts a RunTask result to T. Fresh results are asserted directly;
// results replayed from the store arrive as JSON and are decoded.
func As[T any](v any) (T, error) {
	var zero T
	switch x := v.(type) {
	case T:
		return x, nil
	case json.RawMessage:
		var out T
		if err := json.Unmarshal(x, &out); err != nil {
			return zero, fmt.Errorf("run: decode cached result: %w", err)
		}
		return out, nil
	case nil:
		return zero, nil
	default:
		return zero, fmt.Errorf("run: result is %T, not %T", v, zero)
	}
}
