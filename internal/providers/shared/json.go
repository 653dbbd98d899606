// Package shared holds small helpers common to every provider translator:
// JSON canonicalization for stable hashing/stringification, and the
// warning-code vocabulary shared across providers.
package shared

import (
	"encoding/json"
	"sort"
)

// CanonicalizeJSON returns a copy of value with every object's keys
// recursively sorted, so two structurally-equal values always produce the
// same serialized bytes regardless of original key order.
func CanonicalizeJSON(value any) any {
	switch v := value.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(map[string]any, len(v))
		for _, k := range keys {
			out[k] = CanonicalizeJSON(v[k])
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = CanonicalizeJSON(item)
		}
		return out
	default:
		return v
	}
}

// StableJSONString serializes a canonicalized value to a JSON string,
// falling back to a safe placeholder if marshaling somehow fails.
func StableJSONString(value any) string {
	raw, err := json.Marshal(CanonicalizeJSON(value))
	if err != nil {
		return "null"
	}
	return string(raw)
}

// Warning codes shared verbatim across providers (each translator also
// defines provider-specific codes alongside its own encode/decode logic).
const (
	WarnBothTemperatureAndTopPSet            = "both_temperature_and_top_p_set"
	WarnToolArgumentsInvalidJSON             = "tool_arguments_invalid_json"
	WarnUsageMissing                         = "usage_missing"
	WarnUsagePartial                         = "usage_partial"
	WarnStructuredOutputParseFailed          = "structured_output_parse_failed"
	WarnEmptyOutput                          = "empty_output"
	WarnToolResultCoerced                    = "tool_result_coerced"
	WarnToolResultRawProviderContentIgnored  = "tool_result_raw_provider_content_ignored"
)
