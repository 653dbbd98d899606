package anthropic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/Davincible/provider-runtime-go/internal/core/errors"
	"github.com/Davincible/provider-runtime-go/internal/core/types"
)

func userMessage(text string) types.Message {
	return types.Message{Role: types.RoleUser, Content: []types.ContentPart{types.TextPart(text)}}
}

func basicRequest() types.ProviderRequest {
	maxTokens := uint32(256)
	return types.ProviderRequest{
		Model:           types.ModelRef{ModelID: "claude-sonnet-4-5-20250929"},
		Messages:        []types.Message{userMessage("hello")},
		ToolChoice:      types.DefaultToolChoice(),
		ResponseFormat:  types.DefaultResponseFormat(),
		MaxOutputTokens: &maxTokens,
	}
}

func TestEncodeRequest_BasicShape(t *testing.T) {
	encoded, err := EncodeRequest(basicRequest())
	require.Nil(t, err)
	assert.Equal(t, "claude-sonnet-4-5-20250929", encoded.Body["model"])
	assert.Equal(t, uint32(256), encoded.Body["max_tokens"])
}

func TestEncodeRequest_DefaultsMaxTokensWithWarning(t *testing.T) {
	req := basicRequest()
	req.MaxOutputTokens = nil
	encoded, err := EncodeRequest(req)
	require.Nil(t, err)
	assert.Equal(t, defaultMaxTokens, encoded.Body["max_tokens"])
	assertHasWarningCode(t, encoded.Warnings, warnDefaultMaxTokensApplied)
}

func TestEncodeRequest_RejectsZeroMaxOutputTokens(t *testing.T) {
	req := basicRequest()
	zero := uint32(0)
	req.MaxOutputTokens = &zero
	_, err := EncodeRequest(req)
	require.NotNil(t, err)
}

func TestEncodeRequest_RejectsMismatchedProviderHint(t *testing.T) {
	req := basicRequest()
	hint := types.ProviderOpenAI
	req.Model.ProviderHint = &hint
	_, err := EncodeRequest(req)
	require.NotNil(t, err)
}

func TestEncodeRequest_SystemMessagesMustBeContiguousPrefix(t *testing.T) {
	req := basicRequest()
	req.Messages = []types.Message{
		{Role: types.RoleSystem, Content: []types.ContentPart{types.TextPart("sys")}},
		userMessage("hi"),
		{Role: types.RoleSystem, Content: []types.ContentPart{types.TextPart("late sys")}},
	}
	_, err := EncodeRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, coreerrors.ProviderProtocol, err.Kind)
}

func TestEncodeRequest_SystemPrefixExtracted(t *testing.T) {
	req := basicRequest()
	req.Messages = []types.Message{
		{Role: types.RoleSystem, Content: []types.ContentPart{types.TextPart("be terse")}},
		userMessage("hi"),
	}
	encoded, err := EncodeRequest(req)
	require.Nil(t, err)
	system, ok := encoded.Body["system"].([]any)
	require.True(t, ok)
	require.Len(t, system, 1)
}

func TestEncodeRequest_MergesConsecutiveSameRoleMessages(t *testing.T) {
	req := basicRequest()
	req.Messages = []types.Message{userMessage("first"), userMessage("second")}
	encoded, err := EncodeRequest(req)
	require.Nil(t, err)
	messages := encoded.Body["messages"].([]any)
	require.Len(t, messages, 1)
	content := messages[0].(map[string]any)["content"].([]any)
	assert.Len(t, content, 2)
}

func TestEncodeRequest_ToolUseRequiresFollowingToolResult(t *testing.T) {
	req := basicRequest()
	req.Messages = []types.Message{
		userMessage("hi"),
		{Role: types.RoleAssistant, Content: []types.ContentPart{
			types.ToolCallPart(types.ToolCall{ID: "call-1", Name: "time_now", ArgumentsJSON: map[string]any{}}),
		}},
	}
	_, err := EncodeRequest(req)
	require.NotNil(t, err)
}

func TestEncodeRequest_ToolUseFollowedByToolResultSucceeds(t *testing.T) {
	req := basicRequest()
	req.Messages = []types.Message{
		userMessage("hi"),
		{Role: types.RoleAssistant, Content: []types.ContentPart{
			types.ToolCallPart(types.ToolCall{ID: "call-1", Name: "time_now", ArgumentsJSON: map[string]any{}}),
		}},
		{Role: types.RoleTool, Content: []types.ContentPart{
			{Kind: types.ContentToolResult, ToolResult: types.ToolResult{
				ToolCallID: "call-1",
				Content:    types.ToolResultContent{Kind: types.ToolResultText, Text: "now"},
			}},
		}},
	}
	_, err := EncodeRequest(req)
	require.Nil(t, err)
}

func TestEncodeRequest_ToolChoiceSpecificRequiresKnownTool(t *testing.T) {
	req := basicRequest()
	req.ToolChoice = types.SpecificToolChoice("missing")
	req.Tools = []types.ToolDefinition{{Name: "known", ParametersSchema: map[string]any{"type": "object"}}}
	_, err := EncodeRequest(req)
	require.NotNil(t, err)

	req.ToolChoice = types.SpecificToolChoice("known")
	encoded, err := EncodeRequest(req)
	require.Nil(t, err)
	assert.Equal(t, "known", encoded.Body["tool_choice"].(map[string]any)["name"])
}

func TestEncodeRequest_JSONObjectFormatRejectsAssistantPrefill(t *testing.T) {
	req := basicRequest()
	req.ResponseFormat = types.ResponseFormat{Kind: types.ResponseFormatJSONObject}
	req.Messages = []types.Message{
		userMessage("hi"),
		{Role: types.RoleAssistant, Content: []types.ContentPart{types.TextPart("partial")}},
	}
	_, err := EncodeRequest(req)
	require.NotNil(t, err)
}

func TestEncodeRequest_MetadataOnlySupportsUserID(t *testing.T) {
	req := basicRequest()
	req.Metadata = types.OrderedMetadata{"user_id": "u-1", "other": "dropped"}
	encoded, err := EncodeRequest(req)
	require.Nil(t, err)
	assert.Equal(t, "u-1", encoded.Body["metadata"].(map[string]any)["user_id"])
	assertHasWarningCode(t, encoded.Warnings, warnDroppedUnsupportedMetadataKeys)
}

func TestDecodeResponse_RequiresAssistantRole(t *testing.T) {
	body := map[string]any{"model": "claude", "role": "user", "stop_reason": "end_turn", "content": []any{}}
	_, err := DecodeResponse(body, types.DefaultResponseFormat())
	require.NotNil(t, err)
}

func TestDecodeResponse_DecodesTextAndUsage(t *testing.T) {
	body := map[string]any{
		"model":       "claude-sonnet-4-5-20250929",
		"role":        "assistant",
		"stop_reason": "end_turn",
		"content":     []any{map[string]any{"type": "text", "text": "hi there"}},
		"usage":       map[string]any{"input_tokens": float64(10), "output_tokens": float64(5), "cache_read_input_tokens": float64(2)},
	}
	resp, err := DecodeResponse(body, types.DefaultResponseFormat())
	require.Nil(t, err)
	assert.Equal(t, types.FinishStop, resp.FinishReason)
	require.NotNil(t, resp.Usage.InputTokens)
	assert.Equal(t, uint64(12), *resp.Usage.InputTokens)
	require.NotNil(t, resp.Usage.CachedInputTokens)
	assert.Equal(t, uint64(2), *resp.Usage.CachedInputTokens)
}

func TestDecodeResponse_ToolUseSetsFinishToolCalls(t *testing.T) {
	body := map[string]any{
		"model":       "claude",
		"role":        "assistant",
		"stop_reason": "tool_use",
		"content": []any{
			map[string]any{"type": "tool_use", "id": "call-1", "name": "time_now", "input": map[string]any{}},
		},
	}
	resp, err := DecodeResponse(body, types.DefaultResponseFormat())
	require.Nil(t, err)
	assert.Equal(t, types.FinishToolCalls, resp.FinishReason)
	require.Len(t, resp.Output.Content, 1)
	assert.Equal(t, types.ContentToolCall, resp.Output.Content[0].Kind)
}

func TestDecodeResponse_UnknownStopReasonWarnsAndMapsToOther(t *testing.T) {
	body := map[string]any{
		"model":       "claude",
		"role":        "assistant",
		"stop_reason": "something_new",
		"content":     []any{map[string]any{"type": "text", "text": "hi"}},
	}
	resp, err := DecodeResponse(body, types.DefaultResponseFormat())
	require.Nil(t, err)
	assert.Equal(t, types.FinishOther, resp.FinishReason)
	assertHasWarningCode(t, resp.Warnings, warnUnknownStopReason)
}

func TestDecodeResponse_UnknownContentBlockMappedToTextWithWarning(t *testing.T) {
	body := map[string]any{
		"model":       "claude",
		"role":        "assistant",
		"stop_reason": "end_turn",
		"content":     []any{map[string]any{"type": "server_tool_use", "id": "x"}},
	}
	resp, err := DecodeResponse(body, types.DefaultResponseFormat())
	require.Nil(t, err)
	require.Len(t, resp.Output.Content, 1)
	assert.Equal(t, types.ContentText, resp.Output.Content[0].Kind)
	assertHasWarningCode(t, resp.Warnings, warnUnknownContentBlockMapped)
}

func TestDecodeModelsList_ParsesDisplayName(t *testing.T) {
	body := map[string]any{"data": []any{
		map[string]any{"id": "claude-sonnet-4-5-20250929", "display_name": "Claude Sonnet 4.5"},
	}}
	models, err := DecodeModelsList(body, types.ProviderCapabilities{SupportsTools: true})
	require.Nil(t, err)
	require.Len(t, models, 1)
	require.NotNil(t, models[0].DisplayName)
	assert.Equal(t, "Claude Sonnet 4.5", *models[0].DisplayName)
}

func assertHasWarningCode(t *testing.T, warnings []types.RuntimeWarning, code string) {
	t.Helper()
	for _, w := range warnings {
		if w.Code == code {
			return
		}
	}
	t.Fatalf("expected a warning with code %q, got %+v", code, warnings)
}
