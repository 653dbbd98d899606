package openrouter

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
	return types.ProviderRequest{
		Model:          types.ModelRef{ModelID: "openai/gpt-5-mini"},
		Messages:       []types.Message{userMessage("hello")},
		ToolChoice:     types.DefaultToolChoice(),
		ResponseFormat: types.DefaultResponseFormat(),
	}
}

func TestEncodeRequest_BasicShape(t *testing.T) {
	encoded, err := EncodeRequest(basicRequest(), Options{})
	require.Nil(t, err)
	assert.Equal(t, "openai/gpt-5-mini", encoded.Body["model"])
	assert.Equal(t, false, encoded.Body["stream"])
}

func TestEncodeRequest_RejectsMismatchedProviderHint(t *testing.T) {
	req := basicRequest()
	hint := types.ProviderAnthropic
	req.Model.ProviderHint = &hint
	_, err := EncodeRequest(req, Options{})
	require.NotNil(t, err)
	assert.Equal(t, coreerrors.ProviderProtocol, err.Kind)
}

func TestEncodeRequest_RejectsEmptyModelID(t *testing.T) {
	req := basicRequest()
	req.Model.ModelID = "  "
	_, err := EncodeRequest(req, Options{})
	require.NotNil(t, err)
}

func TestEncodeRequest_RejectsTooManyStopSequences(t *testing.T) {
	req := basicRequest()
	req.Stop = []string{"a", "b", "c", "d", "e"}
	_, err := EncodeRequest(req, Options{})
	require.NotNil(t, err)
}

func TestEncodeRequest_WarnsWhenTemperatureAndTopPBothSet(t *testing.T) {
	req := basicRequest()
	temp, topP := 0.5, 0.9
	req.Temperature = &temp
	req.TopP = &topP

	encoded, err := EncodeRequest(req, Options{})
	require.Nil(t, err)
	require.Len(t, encoded.Warnings, 1)
}

func TestEncodeRequest_FallbackModelsPopulateModelsArray(t *testing.T) {
	req := basicRequest()
	encoded, err := EncodeRequest(req, Options{FallbackModels: []string{"anthropic/claude-sonnet-4-5"}})
	require.Nil(t, err)
	_, hasSingular := encoded.Body["model"]
	assert.False(t, hasSingular)
	assert.Equal(t, []string{"openai/gpt-5-mini", "anthropic/claude-sonnet-4-5"}, encoded.Body["models"])
}

func TestEncodeRequest_RejectsEmptyFallbackModel(t *testing.T) {
	req := basicRequest()
	_, err := EncodeRequest(req, Options{FallbackModels: []string{""}})
	require.NotNil(t, err)
}

func TestEncodeRequest_RejectsNonObjectProviderPreferences(t *testing.T) {
	req := basicRequest()
	_, err := EncodeRequest(req, Options{ProviderPreferences: "not-an-object"})
	require.NotNil(t, err)
}

func TestEncodeRequest_ProviderPreferencesPassThrough(t *testing.T) {
	req := basicRequest()
	prefs := map[string]any{"order": []string{"openai", "azure"}}
	encoded, err := EncodeRequest(req, Options{ProviderPreferences: prefs})
	require.Nil(t, err)
	assert.Equal(t, prefs, encoded.Body["provider"])
}

func TestEncodeRequest_ParallelToolCallsPassThrough(t *testing.T) {
	req := basicRequest()
	enabled := true
	encoded, err := EncodeRequest(req, Options{ParallelToolCalls: &enabled})
	require.Nil(t, err)
	assert.Equal(t, true, encoded.Body["parallel_tool_calls"])
}

func TestEncodeRequest_ToolChoiceSpecificRequiresKnownTool(t *testing.T) {
	req := basicRequest()
	req.ToolChoice = types.SpecificToolChoice("missing")
	req.Tools = []types.ToolDefinition{{Name: "known", ParametersSchema: map[string]any{"type": "object"}}}
	_, err := EncodeRequest(req, Options{})
	require.NotNil(t, err)

	req.ToolChoice = types.SpecificToolChoice("known")
	encoded, err := EncodeRequest(req, Options{})
	require.Nil(t, err)
	toolChoice := encoded.Body["tool_choice"].(map[string]any)
	assert.Equal(t, "known", toolChoice["function"].(map[string]any)["name"])
}

func TestEncodeRequest_ToolChoiceWithoutToolsIsRejected(t *testing.T) {
	req := basicRequest()
	req.ToolChoice = types.ToolChoice{Kind: types.ToolChoiceRequired}
	_, err := EncodeRequest(req, Options{})
	require.NotNil(t, err)
}

func TestEncodeRequest_JSONSchemaResponseFormatRequiresName(t *testing.T) {
	req := basicRequest()
	req.ResponseFormat = types.ResponseFormat{Kind: types.ResponseFormatJSONSchema, Schema: map[string]any{"type": "object"}}
	_, err := EncodeRequest(req, Options{})
	require.NotNil(t, err)

	req.ResponseFormat.Name = "answer"
	encoded, err := EncodeRequest(req, Options{})
	require.Nil(t, err)
	format := encoded.Body["response_format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
}

func TestEncodeRequest_EmptyMessagesIsProtocolError(t *testing.T) {
	req := basicRequest()
	req.Messages = nil
	_, err := EncodeRequest(req, Options{})
	require.NotNil(t, err)
}

func TestEncodeRequest_ToolMessageRequiresToolDefinitions(t *testing.T) {
	req := basicRequest()
	req.Messages = []types.Message{
		{Role: types.RoleTool, Content: []types.ContentPart{
			{Kind: types.ContentToolResult, ToolResult: types.ToolResult{
				ToolCallID: "call-1",
				Content:    types.ToolResultTextContent("result"),
			}},
		}},
	}
	_, err := EncodeRequest(req, Options{})
	require.NotNil(t, err)
}

func TestEncodeRequest_AssistantToolCallRoundTrips(t *testing.T) {
	req := basicRequest()
	req.Tools = []types.ToolDefinition{{Name: "time_now", ParametersSchema: map[string]any{"type": "object"}}}
	req.Messages = []types.Message{
		userMessage("hi"),
		{Role: types.RoleAssistant, Content: []types.ContentPart{
			types.ToolCallPart(types.ToolCall{ID: "call-1", Name: "time_now", ArgumentsJSON: map[string]any{}}),
		}},
		{Role: types.RoleTool, Content: []types.ContentPart{
			{Kind: types.ContentToolResult, ToolResult: types.ToolResult{
				ToolCallID: "call-1",
				Content:    types.ToolResultTextContent("2026-07-31T00:00:00Z"),
			}},
		}},
	}
	encoded, err := EncodeRequest(req, Options{})
	require.Nil(t, err)
	messages := encoded.Body["messages"].([]map[string]any)
	require.Len(t, messages, 3)
	assert.Equal(t, "tool", messages[2]["role"])
	assert.Equal(t, "call-1", messages[2]["tool_call_id"])
}

func TestEncodeRequest_ThinkingContentIsRejected(t *testing.T) {
	req := basicRequest()
	req.Messages = []types.Message{
		{Role: types.RoleAssistant, Content: []types.ContentPart{types.ThinkingPart("nope", nil)}},
	}
	_, err := EncodeRequest(req, Options{})
	require.NotNil(t, err)
}

func TestDecodeResponse_ParsesErrorEnvelope(t *testing.T) {
	body := map[string]any{"error": map[string]any{"message": "invalid request", "code": float64(400)}}
	_, err := DecodeResponse(body, types.DefaultResponseFormat())
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "invalid request")
}

func TestDecodeResponse_MissingChoicesIsProtocolError(t *testing.T) {
	_, err := DecodeResponse(map[string]any{"model": "x"}, types.DefaultResponseFormat())
	require.NotNil(t, err)
	assert.Equal(t, coreerrors.ProviderProtocol, err.Kind)
}

func TestDecodeResponse_DecodesTextAndUsage(t *testing.T) {
	body := map[string]any{
		"model": "openai/gpt-5-mini",
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "hi there"},
			},
		},
		"usage": map[string]any{"prompt_tokens": float64(10), "completion_tokens": float64(5), "total_tokens": float64(15)},
	}
	resp, err := DecodeResponse(body, types.DefaultResponseFormat())
	require.Nil(t, err)
	assert.Equal(t, types.FinishStop, resp.FinishReason)
	require.Len(t, resp.Output.Content, 1)
	assert.Equal(t, "hi there", resp.Output.Content[0].Text)
	require.NotNil(t, resp.Usage.InputTokens)
	assert.Equal(t, uint64(10), *resp.Usage.InputTokens)
}

func TestDecodeResponse_ToolCallsSetFinishToolCalls(t *testing.T) {
	body := map[string]any{
		"model": "openai/gpt-5-mini",
		"choices": []any{
			map[string]any{
				"finish_reason": "tool_calls",
				"message": map[string]any{
					"role":    "assistant",
					"content": nil,
					"tool_calls": []any{
						map[string]any{
							"id":       "call-1",
							"function": map[string]any{"name": "time_now", "arguments": `{}`},
						},
					},
				},
			},
		},
	}
	resp, err := DecodeResponse(body, types.DefaultResponseFormat())
	require.Nil(t, err)
	assert.Equal(t, types.FinishToolCalls, resp.FinishReason)
	require.Len(t, resp.Output.Content, 1)
	assert.Equal(t, types.ContentToolCall, resp.Output.Content[0].Kind)
	assert.Equal(t, "time_now", resp.Output.Content[0].ToolCall.Name)
}

func TestDecodeResponse_ReasoningMappedToThinking(t *testing.T) {
	body := map[string]any{
		"model": "openai/gpt-5-mini",
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "final answer", "reasoning": "thinking it through"},
			},
		},
	}
	resp, err := DecodeResponse(body, types.DefaultResponseFormat())
	require.Nil(t, err)
	require.Len(t, resp.Output.Content, 2)
	assert.Equal(t, types.ContentThinking, resp.Output.Content[0].Kind)
	assert.Equal(t, "thinking it through", resp.Output.Content[0].ThinkingText)
}

func TestDecodeResponse_UnknownFinishReasonWarnsAndMapsToOther(t *testing.T) {
	body := map[string]any{
		"model": "openai/gpt-5-mini",
		"choices": []any{
			map[string]any{
				"finish_reason": "something_new",
				"message":       map[string]any{"role": "assistant", "content": "hi"},
			},
		},
	}
	resp, err := DecodeResponse(body, types.DefaultResponseFormat())
	require.Nil(t, err)
	assert.Equal(t, types.FinishOther, resp.FinishReason)
	assertHasWarningCode(t, resp.Warnings, warnUnknownFinishReason)
}

func TestDecodeResponse_MissingUsageWarns(t *testing.T) {
	body := map[string]any{
		"model": "openai/gpt-5-mini",
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": "hi"},
			},
		},
	}
	resp, err := DecodeResponse(body, types.DefaultResponseFormat())
	require.Nil(t, err)
	assertHasWarningCode(t, resp.Warnings, "usage_missing")
}

func TestDecodeResponse_StructuredOutputParsedForJSONObject(t *testing.T) {
	body := map[string]any{
		"model": "openai/gpt-5-mini",
		"choices": []any{
			map[string]any{
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": `{"answer":42}`},
			},
		},
	}
	resp, err := DecodeResponse(body, types.ResponseFormat{Kind: types.ResponseFormatJSONObject})
	require.Nil(t, err)
	require.NotNil(t, resp.Output.StructuredOutput)
	assert.Equal(t, map[string]any{"answer": float64(42)}, resp.Output.StructuredOutput)
}

func TestDecodeModelsList_DeduplicatesByID(t *testing.T) {
	body := map[string]any{"data": []any{
		map[string]any{"id": "openai/gpt-5-mini"},
		map[string]any{"id": "openai/gpt-5-mini"},
		map[string]any{"id": "anthropic/claude-sonnet-4-5"},
	}}
	models, err := DecodeModelsList(body)
	require.Nil(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "openai/gpt-5-mini", models[0].ModelID)
}

func TestDecodeModelsList_InfersCapabilitiesFromSupportedParameters(t *testing.T) {
	body := map[string]any{"data": []any{
		map[string]any{
			"id":                    "openai/gpt-5-mini",
			"name":                  "GPT-5 Mini",
			"supported_parameters":  []any{"tools", "response_format"},
			"top_provider":          map[string]any{"context_length": float64(128000)},
		},
	}}
	models, err := DecodeModelsList(body)
	require.Nil(t, err)
	require.Len(t, models, 1)
	assert.True(t, models[0].SupportsTools)
	assert.True(t, models[0].SupportsStructuredOutput)
	require.NotNil(t, models[0].DisplayName)
	assert.Equal(t, "GPT-5 Mini", *models[0].DisplayName)
	require.NotNil(t, models[0].ContextWindow)
	assert.Equal(t, uint32(128000), *models[0].ContextWindow)
}

func TestDecodeModelsList_RejectsEmptyID(t *testing.T) {
	body := map[string]any{"data": []any{map[string]any{"id": ""}}}
	_, err := DecodeModelsList(body)
	require.NotNil(t, err)
}

func TestParseErrorEnvelope_NonErrorShapeReturnsNil(t *testing.T) {
	envelope := ParseErrorEnvelope([]byte(`{"choices":[]}`))
	assert.Nil(t, envelope)
}

func TestFormatErrorMessage_IncludesCode(t *testing.T) {
	code := uint16(429)
	msg := FormatErrorMessage(ErrorEnvelope{Message: "rate limited", Code: &code})
	assert.Contains(t, msg, "rate limited")
	assert.Contains(t, msg, "code=429")
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
