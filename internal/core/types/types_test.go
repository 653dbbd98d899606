package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProviderID_OrderAndString(t *testing.T) {
	assert.Equal(t, 0, ProviderOpenAI.Order())
	assert.Equal(t, 1, ProviderAnthropic.Order())
	assert.Equal(t, 2, ProviderOpenRouter.Order())
	assert.Equal(t, 3, OtherProvider("vertex").Order())

	assert.Equal(t, "openai", ProviderOpenAI.String())
	assert.Equal(t, "other(vertex)", OtherProvider("vertex").String())
}

func TestProviderID_JSONRoundTrip(t *testing.T) {
	for _, p := range []ProviderID{ProviderOpenAI, ProviderAnthropic, ProviderOpenRouter, OtherProvider("custom")} {
		data, err := json.Marshal(p)
		require.NoError(t, err)

		var decoded ProviderID
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.True(t, p.Equal(decoded), "round trip mismatch for %s", p)
	}
}

func TestProviderID_UnmarshalUnknownTag(t *testing.T) {
	var p ProviderID
	err := json.Unmarshal([]byte(`{"type":"bogus"}`), &p)
	assert.Error(t, err)
}

func TestContentPart_JSONRoundTrip(t *testing.T) {
	anthropic := ProviderAnthropic
	parts := []ContentPart{
		TextPart("hello"),
		ThinkingPart("reasoning", &anthropic),
		ToolCallPart(ToolCall{ID: "t1", Name: "calc", ArgumentsJSON: map[string]any{"x": float64(1)}}),
		ToolResultPart(ToolResult{ToolCallID: "t1", Content: ToolResultTextContent("2")}),
	}

	for _, part := range parts {
		data, err := json.Marshal(part)
		require.NoError(t, err)

		var decoded ContentPart
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, part.Kind, decoded.Kind)
	}
}

func TestContentPart_MarshalIncludesTypeDiscriminant(t *testing.T) {
	data, err := json.Marshal(TextPart("hi"))
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))
	assert.Equal(t, "text", fields["type"])
	assert.Equal(t, "hi", fields["text"])
}

func TestToolResultContent_JSONRoundTrip(t *testing.T) {
	contents := []ToolResultContent{
		ToolResultTextContent("plain"),
		ToolResultJSONContent(map[string]any{"a": float64(1)}),
		ToolResultPartsContent([]ContentPart{TextPart("x")}),
	}

	for _, c := range contents {
		data, err := json.Marshal(c)
		require.NoError(t, err)

		var decoded ToolResultContent
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, c.Kind, decoded.Kind)
	}
}

func TestToolChoice_JSONRoundTrip(t *testing.T) {
	choices := []ToolChoice{
		{Kind: ToolChoiceNone},
		DefaultToolChoice(),
		{Kind: ToolChoiceRequired},
		SpecificToolChoice("calculator"),
	}

	for _, c := range choices {
		data, err := json.Marshal(c)
		require.NoError(t, err)

		var decoded ToolChoice
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, c, decoded)
	}
}

func TestResponseFormat_JSONRoundTrip(t *testing.T) {
	formats := []ResponseFormat{
		DefaultResponseFormat(),
		{Kind: ResponseFormatJSONObject},
		{Kind: ResponseFormatJSONSchema, Name: "answer", Schema: map[string]any{"type": "object"}},
	}

	for _, f := range formats {
		data, err := json.Marshal(f)
		require.NoError(t, err)

		var decoded ResponseFormat
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, f.Kind, decoded.Kind)
		assert.Equal(t, f.Name, decoded.Name)
	}
}

func TestOrderedMetadata_SortedKeys(t *testing.T) {
	m := OrderedMetadata{"zeta": "1", "alpha": "2", "mid": "3"}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, m.SortedKeys())
}

func TestUsage_DerivedTotalTokens(t *testing.T) {
	in, out, total := uint64(10), uint64(20), uint64(99)

	assert.Equal(t, uint64(30), Usage{InputTokens: &in, OutputTokens: &out}.DerivedTotalTokens())
	assert.Equal(t, total, Usage{InputTokens: &in, OutputTokens: &out, TotalTokens: &total}.DerivedTotalTokens())
	assert.Equal(t, uint64(0), Usage{}.DerivedTotalTokens())
}

func TestAdapterContext_CloneIsIndependent(t *testing.T) {
	original := AdapterContext{Metadata: OrderedMetadata{"a": "1"}}
	clone := original.WithMetadata("b", "2")

	assert.Len(t, original.Metadata, 1)
	assert.Len(t, clone.Metadata, 2)
	assert.Equal(t, "2", clone.Metadata["b"])
}
