// Package profile defines the flat record shape consumed by the downstream
// aggregation and visualization layers.
package profile

import "fmt"

// Record is one profile resource: a flat mapping with at least uid, amount,
// tid and pid, plus mode-specific fields such as timestamp, caller,
// source-file, source-lines, arg_value#N and return-value.
type Record map[string]any

// Int returns the value under key coerced to int64, or 0 when the key is
// absent or not numeric.
func (r Record) Int(key string) int64 {
	switch v := r[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case uint64:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// String returns the value under key rendered as a string, or "" when the key
// is absent.
func (r Record) String(key string) string {
	v, ok := r[key]
	if !ok {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// SetArgument stores one collected argument value with its metadata under the
// indexed arg_value#/arg_type#/arg_name# keys.
func (r Record) SetArgument(index int, value any, argType, argName string) {
	r[fmt.Sprintf("arg_value#%d", index)] = value
	r[fmt.Sprintf("arg_type#%d", index)] = argType
	r[fmt.Sprintf("arg_name#%d", index)] = argName
}
