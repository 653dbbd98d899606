package shared

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanonicalizeJSON_SortsNestedObjectKeys(t *testing.T) {
	input := map[string]any{
		"z": 1,
		"a": map[string]any{"y": 2, "b": 3},
		"list": []any{
			map[string]any{"d": 1, "c": 2},
		},
	}

	a := StableJSONString(input)
	b := StableJSONString(map[string]any{
		"list": []any{map[string]any{"c": 2, "d": 1}},
		"a":    map[string]any{"b": 3, "y": 2},
		"z":    1,
	})

	assert.Equal(t, a, b)
}

func TestStableJSONString_IsDeterministicAcrossKeyOrder(t *testing.T) {
	first := StableJSONString(map[string]any{"b": 2, "a": 1})
	second := StableJSONString(map[string]any{"a": 1, "b": 2})
	assert.Equal(t, first, second)
	assert.Equal(t, `{"a":1,"b":2}`, first)
}

func TestCanonicalizeJSON_LeavesPrimitivesUnchanged(t *testing.T) {
	assert.Equal(t, "x", CanonicalizeJSON("x"))
	assert.Equal(t, 3.5, CanonicalizeJSON(3.5))
	assert.Nil(t, CanonicalizeJSON(nil))
}
