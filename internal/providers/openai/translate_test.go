package openai

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

func basicEncodeRequest() types.ProviderRequest {
	return types.ProviderRequest{
		Model:          types.ModelRef{ModelID: "gpt-5-mini"},
		Messages:       []types.Message{userMessage("hello")},
		ToolChoice:     types.DefaultToolChoice(),
		ResponseFormat: types.DefaultResponseFormat(),
	}
}

func TestEncodeRequest_BasicShape(t *testing.T) {
	encoded, err := EncodeRequest(basicEncodeRequest())
	require.Nil(t, err)
	assert.Equal(t, "gpt-5-mini", encoded.Body["model"])
	assert.Equal(t, "auto", encoded.Body["tool_choice"])
	assert.Equal(t, map[string]any{"type": "text"}, encoded.Body["text"].(map[string]any)["format"])
}

func TestEncodeRequest_RejectsMismatchedProviderHint(t *testing.T) {
	req := basicEncodeRequest()
	hint := types.ProviderAnthropic
	req.Model.ProviderHint = &hint

	_, err := EncodeRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, coreerrors.ProviderProtocol, err.Kind)
}

func TestEncodeRequest_RejectsEmptyModelID(t *testing.T) {
	req := basicEncodeRequest()
	req.Model.ModelID = "  "
	_, err := EncodeRequest(req)
	require.NotNil(t, err)
}

func TestEncodeRequest_RejectsStopSequences(t *testing.T) {
	req := basicEncodeRequest()
	req.Stop = []string{"STOP"}
	_, err := EncodeRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, coreerrors.ProviderProtocol, err.Kind)
}

func TestEncodeRequest_RejectsOutOfRangeTemperature(t *testing.T) {
	req := basicEncodeRequest()
	temp := 3.5
	req.Temperature = &temp
	_, err := EncodeRequest(req)
	require.NotNil(t, err)
}

func TestEncodeRequest_WarnsWhenTemperatureAndTopPBothSet(t *testing.T) {
	req := basicEncodeRequest()
	temp, topP := 0.5, 0.9
	req.Temperature = &temp
	req.TopP = &topP

	encoded, err := EncodeRequest(req)
	require.Nil(t, err)
	require.Len(t, encoded.Warnings, 1)
}

func TestEncodeRequest_JSONObjectRequiresJSONKeyword(t *testing.T) {
	req := basicEncodeRequest()
	req.ResponseFormat = types.ResponseFormat{Kind: types.ResponseFormatJSONObject}

	_, err := EncodeRequest(req)
	require.NotNil(t, err)

	req.Messages = []types.Message{userMessage("respond in JSON please")}
	encoded, err := EncodeRequest(req)
	require.Nil(t, err)
	assert.Equal(t, "json_object", encoded.Body["text"].(map[string]any)["format"].(map[string]any)["type"])
}

func TestEncodeRequest_JSONSchemaRequiresName(t *testing.T) {
	req := basicEncodeRequest()
	req.ResponseFormat = types.ResponseFormat{Kind: types.ResponseFormatJSONSchema, Schema: map[string]any{"type": "object"}}
	_, err := EncodeRequest(req)
	require.NotNil(t, err)

	req.ResponseFormat.Name = "my_schema"
	encoded, err := EncodeRequest(req)
	require.Nil(t, err)
	format := encoded.Body["text"].(map[string]any)["format"].(map[string]any)
	assert.Equal(t, "json_schema", format["type"])
	assert.Equal(t, "my_schema", format["name"])
}

func TestEncodeRequest_ToolChoiceSpecificRequiresKnownTool(t *testing.T) {
	req := basicEncodeRequest()
	req.ToolChoice = types.SpecificToolChoice("missing_tool")
	_, err := EncodeRequest(req)
	require.NotNil(t, err)

	req.Tools = []types.ToolDefinition{{Name: "missing_tool", ParametersSchema: map[string]any{"type": "object", "properties": map[string]any{}, "required": []any{}, "additionalProperties": false}}}
	encoded, err := EncodeRequest(req)
	require.Nil(t, err)
	assert.Equal(t, map[string]any{"type": "function", "name": "missing_tool"}, encoded.Body["tool_choice"])
}

func TestEncodeRequest_EmptyInputIsProtocolError(t *testing.T) {
	req := basicEncodeRequest()
	req.Messages = nil
	_, err := EncodeRequest(req)
	require.NotNil(t, err)
	assert.Equal(t, coreerrors.ProviderProtocol, err.Kind)
}

func TestEncodeRequest_ToolResultRequiresMatchingToolCall(t *testing.T) {
	req := basicEncodeRequest()
	req.Messages = []types.Message{
		{Role: types.RoleTool, Content: []types.ContentPart{
			{Kind: types.ContentToolResult, ToolResult: types.ToolResult{
				ToolCallID: "call-1",
				Content:    types.ToolResultContent{Kind: types.ToolResultText, Text: "result"},
			}},
		}},
	}
	_, err := EncodeRequest(req)
	require.NotNil(t, err)
}

func TestEncodeRequest_ToolCallThenToolResultRoundTrips(t *testing.T) {
	req := basicEncodeRequest()
	req.Messages = []types.Message{
		{Role: types.RoleAssistant, Content: []types.ContentPart{
			types.ToolCallPart(types.ToolCall{ID: "call-1", Name: "time_now", ArgumentsJSON: map[string]any{}}),
		}},
		{Role: types.RoleTool, Content: []types.ContentPart{
			{Kind: types.ContentToolResult, ToolResult: types.ToolResult{
				ToolCallID: "call-1",
				Content:    types.ToolResultContent{Kind: types.ToolResultText, Text: "2026-07-31T00:00:00Z"},
			}},
		}},
	}

	encoded, err := EncodeRequest(req)
	require.Nil(t, err)
	require.Len(t, encoded.Body["input"], 2)
}

func TestDecodeResponse_ParsesErrorEnvelope(t *testing.T) {
	body := map[string]any{"error": map[string]any{"message": "invalid request", "code": "invalid_request_error"}}
	_, err := DecodeResponse(body, types.DefaultResponseFormat())
	require.NotNil(t, err)
	assert.Contains(t, err.Message, "invalid request")
}

func TestDecodeResponse_MissingStatusIsProtocolError(t *testing.T) {
	_, err := DecodeResponse(map[string]any{}, types.DefaultResponseFormat())
	require.NotNil(t, err)
	assert.Equal(t, coreerrors.ProviderProtocol, err.Kind)
}

func TestDecodeResponse_CompletedWithTextOutput(t *testing.T) {
	body := map[string]any{
		"status": "completed",
		"model":  "gpt-5-mini",
		"output": []any{
			map[string]any{"type": "message", "content": []any{
				map[string]any{"type": "output_text", "text": "hello there"},
			}},
		},
		"usage": map[string]any{"input_tokens": float64(10), "output_tokens": float64(5), "total_tokens": float64(15)},
	}

	resp, err := DecodeResponse(body, types.DefaultResponseFormat())
	require.Nil(t, err)
	assert.Equal(t, types.FinishStop, resp.FinishReason)
	require.Len(t, resp.Output.Content, 1)
	assert.Equal(t, "hello there", resp.Output.Content[0].Text)
	require.NotNil(t, resp.Usage.InputTokens)
	assert.Equal(t, uint64(10), *resp.Usage.InputTokens)
}

func TestDecodeResponse_FunctionCallSetsFinishToolCalls(t *testing.T) {
	body := map[string]any{
		"status": "completed",
		"model":  "gpt-5-mini",
		"output": []any{
			map[string]any{"type": "function_call", "call_id": "call-1", "name": "time_now", "arguments": `{}`},
		},
	}

	resp, err := DecodeResponse(body, types.DefaultResponseFormat())
	require.Nil(t, err)
	assert.Equal(t, types.FinishToolCalls, resp.FinishReason)
	require.Len(t, resp.Output.Content, 1)
	assert.Equal(t, types.ContentToolCall, resp.Output.Content[0].Kind)
	assert.Equal(t, "time_now", resp.Output.Content[0].ToolCall.Name)
}

func TestDecodeResponse_IncompleteMaxOutputTokensWarns(t *testing.T) {
	body := map[string]any{
		"status":             "incomplete",
		"model":              "gpt-5-mini",
		"output":             []any{},
		"incomplete_details": map[string]any{"reason": "max_output_tokens"},
	}
	resp, err := DecodeResponse(body, types.DefaultResponseFormat())
	require.Nil(t, err)
	assert.Equal(t, types.FinishLength, resp.FinishReason)
	assertHasWarningCode(t, resp.Warnings, warnIncompleteMaxOutputTokens)
}

func TestDecodeResponse_FailedStatusIsProtocolError(t *testing.T) {
	_, err := DecodeResponse(map[string]any{"status": "failed"}, types.DefaultResponseFormat())
	require.NotNil(t, err)
}

func TestDecodeResponse_StructuredOutputParsedForJSONObject(t *testing.T) {
	body := map[string]any{
		"status": "completed",
		"model":  "gpt-5-mini",
		"output": []any{
			map[string]any{"type": "message", "content": []any{
				map[string]any{"type": "output_text", "text": `{"answer":42}`},
			}},
		},
	}
	resp, err := DecodeResponse(body, types.ResponseFormat{Kind: types.ResponseFormatJSONObject})
	require.Nil(t, err)
	require.NotNil(t, resp.Output.StructuredOutput)
	assert.Equal(t, map[string]any{"answer": float64(42)}, resp.Output.StructuredOutput)
}

func TestDecodeModelsList_DeduplicatesByID(t *testing.T) {
	body := map[string]any{"data": []any{
		map[string]any{"id": "gpt-5-mini"},
		map[string]any{"id": "gpt-5-mini"},
		map[string]any{"id": "gpt-5"},
	}}
	models, err := DecodeModelsList(body, types.ProviderCapabilities{SupportsTools: true})
	require.Nil(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "gpt-5-mini", models[0].ModelID)
	assert.Equal(t, "gpt-5", models[1].ModelID)
}

func TestParseErrorEnvelope_NonErrorShapeReturnsNil(t *testing.T) {
	envelope := ParseErrorEnvelope([]byte(`{"status":"completed"}`))
	assert.Nil(t, envelope)
}

func TestFormatErrorMessage_IncludesContext(t *testing.T) {
	code := "invalid_request_error"
	msg := FormatErrorMessage(ErrorEnvelope{Message: "bad request", Code: &code})
	assert.Contains(t, msg, "bad request")
	assert.Contains(t, msg, "code=invalid_request_error")
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
