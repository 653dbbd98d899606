// Package openrouter implements the translator and adapter for
// OpenRouter's chat-completions-style aggregator API
// (POST /api/v1/chat/completions).
package openrouter

import (
	"encoding/json"
	"fmt"
	"strings"

	coreerrors "github.com/Davincible/provider-runtime-go/internal/core/errors"
	"github.com/Davincible/provider-runtime-go/internal/core/types"
	"github.com/Davincible/provider-runtime-go/internal/providers/shared"
)

const (
	warnUnknownFinishReason            = "unknown_finish_reason"
	warnUnknownContentPartMappedToText = "unknown_content_part_mapped_to_text"
)

// Options configures aggregator-only request knobs that have no canonical
// representation: fallback models, provider routing preferences, plugin
// list, and the parallel-tool-calls toggle.
type Options struct {
	FallbackModels      []string
	ProviderPreferences any
	Plugins             []any
	ParallelToolCalls   *bool
}

// EncodedRequest is the wire body plus any warnings produced while encoding.
type EncodedRequest struct {
	Body     map[string]any
	Warnings []types.RuntimeWarning
}

// ErrorEnvelope is OpenRouter's `{"error": {"message", "code"}}` shape.
type ErrorEnvelope struct {
	Code    *uint16
	Message string
}

// EncodeRequest translates a canonical ProviderRequest into an OpenRouter
// chat-completions request body.
func EncodeRequest(req types.ProviderRequest, options Options) (EncodedRequest, *coreerrors.ProviderError) {
	if err := validateProviderHint(req); err != nil {
		return EncodedRequest{}, err
	}
	if err := validateModelID(req); err != nil {
		return EncodedRequest{}, err
	}
	if err := validateStop(req); err != nil {
		return EncodedRequest{}, err
	}
	if err := validateMetadata(req); err != nil {
		return EncodedRequest{}, err
	}
	if err := validateSamplingControls(req); err != nil {
		return EncodedRequest{}, err
	}
	if err := validateOptions(options, req.Model.ModelID); err != nil {
		return EncodedRequest{}, err
	}

	var warnings []types.RuntimeWarning
	if req.Temperature != nil && req.TopP != nil {
		warnings = append(warnings, types.RuntimeWarning{
			Code:    shared.WarnBothTemperatureAndTopPSet,
			Message: "OpenRouter recommends setting temperature or top_p, but not both",
		})
	}

	tools, err := mapTools(req)
	if err != nil {
		return EncodedRequest{}, err
	}
	hasTools := len(tools) > 0
	toolChoice, err := mapToolChoice(req, hasTools)
	if err != nil {
		return EncodedRequest{}, err
	}
	messages, err := mapMessages(req, hasTools)
	if err != nil {
		return EncodedRequest{}, err
	}
	if len(messages) == 0 {
		return EncodedRequest{}, protocolError(&req.Model.ModelID, "empty messages")
	}
	responseFormat, err := mapResponseFormat(req)
	if err != nil {
		return EncodedRequest{}, err
	}

	body := map[string]any{
		"model":    req.Model.ModelID,
		"messages": messages,
		"stream":   false,
	}

	if len(options.FallbackModels) > 0 {
		models := make([]string, 0, 1+len(options.FallbackModels))
		models = append(models, req.Model.ModelID)
		models = append(models, options.FallbackModels...)
		delete(body, "model")
		body["models"] = models
	}

	if hasTools {
		body["tools"] = tools
	}
	if toolChoice != nil {
		body["tool_choice"] = toolChoice
	}
	if responseFormat != nil {
		body["response_format"] = responseFormat
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		body["top_p"] = *req.TopP
	}
	if req.MaxOutputTokens != nil {
		body["max_completion_tokens"] = *req.MaxOutputTokens
	}
	if len(req.Stop) > 0 {
		body["stop"] = req.Stop
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = map[string]string(req.Metadata)
	}
	if options.ParallelToolCalls != nil {
		body["parallel_tool_calls"] = *options.ParallelToolCalls
	}
	if options.ProviderPreferences != nil {
		body["provider"] = options.ProviderPreferences
	}
	if len(options.Plugins) > 0 {
		body["plugins"] = options.Plugins
	}

	return EncodedRequest{Body: body, Warnings: warnings}, nil
}

// DecodeResponse translates an OpenRouter chat-completions response body
// into a canonical ProviderResponse.
func DecodeResponse(body map[string]any, requestedFormat types.ResponseFormat) (types.ProviderResponse, *coreerrors.ProviderError) {
	if envelope := parseErrorValue(body); envelope != nil {
		return types.ProviderResponse{}, protocolErrorNoModel(formatErrorMessage(*envelope))
	}

	model, _ := body["model"].(string)
	if model == "" {
		model = "<unknown-model>"
	}

	choicesRaw, ok := body["choices"].([]any)
	if !ok {
		return types.ProviderResponse{}, protocolError(&model, "openrouter response missing choices array")
	}
	if len(choicesRaw) == 0 {
		return types.ProviderResponse{}, protocolError(&model, "openrouter response choices array must not be empty")
	}
	choice, ok := choicesRaw[0].(map[string]any)
	if !ok {
		return types.ProviderResponse{}, protocolError(&model, "openrouter response choices[0] must be a JSON object")
	}
	if choiceErr, has := choice["error"]; has {
		return types.ProviderResponse{}, protocolError(&model, fmt.Sprintf("openrouter response choice contained error: %s", shared.StableJSONString(choiceErr)))
	}

	finishReasonRaw, _ := choice["finish_reason"].(string)
	if finishReasonRaw == "error" {
		return types.ProviderResponse{}, protocolError(&model, "openrouter response finish_reason was error")
	}

	message, ok := choice["message"].(map[string]any)
	if !ok {
		return types.ProviderResponse{}, protocolError(&model, "openrouter response missing choice message")
	}
	if role, has := message["role"].(string); has && role != "assistant" {
		return types.ProviderResponse{}, protocolError(&model, fmt.Sprintf("openrouter response message role must be assistant, got %s", role))
	}

	var warnings []types.RuntimeWarning
	var content []types.ContentPart
	var textBlocks []string

	decodeReasoning(message, &content, &warnings)
	if err := decodeMessageContent(message["content"], &content, &textBlocks, &warnings); err != nil {
		return types.ProviderResponse{}, err
	}
	if err := decodeToolCalls(message["tool_calls"], &content, &warnings, model); err != nil {
		return types.ProviderResponse{}, err
	}

	if len(content) == 0 {
		warnings = append(warnings, types.RuntimeWarning{
			Code:    shared.WarnEmptyOutput,
			Message: "openrouter response contained no decodable output content",
		})
	}

	finishReason := mapFinishReason(finishReasonRaw, &warnings)
	usage, uerr := decodeUsage(body["usage"], model, &warnings)
	if uerr != nil {
		return types.ProviderResponse{}, uerr
	}
	structuredOutput := decodeStructuredOutput(requestedFormat, textBlocks, &warnings)

	return types.ProviderResponse{
		Output:       types.AssistantOutput{Content: content, StructuredOutput: structuredOutput},
		Usage:        usage,
		Provider:     types.ProviderOpenRouter,
		Model:        model,
		FinishReason: finishReason,
		Warnings:     warnings,
	}, nil
}

// ParseErrorEnvelope parses a raw response body as an OpenRouter error
// envelope, returning nil if it doesn't match the shape.
func ParseErrorEnvelope(rawBody []byte) *ErrorEnvelope {
	var root map[string]any
	if err := json.Unmarshal(rawBody, &root); err != nil {
		return nil
	}
	return parseErrorValue(root)
}

// FormatErrorMessage renders an OpenRouter error envelope as a human
// readable message.
func FormatErrorMessage(envelope ErrorEnvelope) string {
	return formatErrorMessage(envelope)
}

// DecodeModelsList decodes an OpenRouter `/api/v1/models` payload into
// ModelInfo entries, deduplicating by id and inferring capabilities from
// supported_parameters.
func DecodeModelsList(body map[string]any) ([]types.ModelInfo, *coreerrors.ProviderError) {
	data, ok := body["data"].([]any)
	if !ok {
		return nil, protocolErrorNoModel("openrouter models payload missing data array")
	}

	var discovered []types.ModelInfo
	seen := map[string]bool{}
	for index, item := range data {
		modelObj, ok := item.(map[string]any)
		if !ok {
			return nil, protocolErrorNoModel(fmt.Sprintf("openrouter models payload contains non-object entry at index %d", index))
		}
		rawID, _ := modelObj["id"].(string)
		modelID := strings.TrimSpace(rawID)
		if modelID == "" {
			return nil, protocolErrorNoModel(fmt.Sprintf("openrouter models payload entry has empty id at index %d", index))
		}
		if seen[modelID] {
			continue
		}
		seen[modelID] = true

		info := types.ModelInfo{Provider: types.ProviderOpenRouter, ModelID: modelID}
		if displayName, ok := modelObj["name"].(string); ok && displayName != "" {
			info.DisplayName = &displayName
		}

		var topProvider map[string]any
		if tp, ok := modelObj["top_provider"].(map[string]any); ok {
			topProvider = tp
		}
		if contextWindow := numberToU32(topProvider["context_length"]); contextWindow != nil {
			info.ContextWindow = contextWindow
		} else if contextWindow := numberToU32(modelObj["context_length"]); contextWindow != nil {
			info.ContextWindow = contextWindow
		}
		info.MaxOutputTokens = numberToU32(topProvider["max_completion_tokens"])

		info.SupportsTools, info.SupportsStructuredOutput = decodeModelCapabilities(modelObj)
		discovered = append(discovered, info)
	}
	return discovered, nil
}

func validateProviderHint(req types.ProviderRequest) *coreerrors.ProviderError {
	if req.Model.ProviderHint != nil && !req.Model.ProviderHint.Equal(types.ProviderOpenRouter) {
		return protocolError(&req.Model.ModelID, fmt.Sprintf("provider_hint must be OpenRouter, got %v", req.Model.ProviderHint))
	}
	return nil
}

func validateModelID(req types.ProviderRequest) *coreerrors.ProviderError {
	if strings.TrimSpace(req.Model.ModelID) == "" {
		return protocolErrorNoModel("missing model_id")
	}
	return nil
}

func validateStop(req types.ProviderRequest) *coreerrors.ProviderError {
	if len(req.Stop) > 4 {
		return protocolError(&req.Model.ModelID, "stop supports at most 4 entries")
	}
	for _, s := range req.Stop {
		if s == "" {
			return protocolError(&req.Model.ModelID, "stop sequences must not contain empty strings")
		}
	}
	return nil
}

func validateMetadata(req types.ProviderRequest) *coreerrors.ProviderError {
	if len(req.Metadata) > 16 {
		return protocolError(&req.Model.ModelID, "metadata supports at most 16 entries")
	}
	for _, key := range req.Metadata.SortedKeys() {
		if len([]rune(key)) > 64 {
			return protocolError(&req.Model.ModelID, fmt.Sprintf("metadata key exceeds 64 characters: %s", key))
		}
		if len([]rune(req.Metadata[key])) > 512 {
			return protocolError(&req.Model.ModelID, fmt.Sprintf("metadata value exceeds 512 characters for key: %s", key))
		}
	}
	return nil
}

func validateSamplingControls(req types.ProviderRequest) *coreerrors.ProviderError {
	if req.Temperature != nil && (*req.Temperature < 0.0 || *req.Temperature > 2.0) {
		return protocolError(&req.Model.ModelID, fmt.Sprintf("temperature must be in [0.0, 2.0], got %v", *req.Temperature))
	}
	if req.TopP != nil && (*req.TopP < 0.0 || *req.TopP > 1.0) {
		return protocolError(&req.Model.ModelID, fmt.Sprintf("top_p must be in [0.0, 1.0], got %v", *req.TopP))
	}
	if req.MaxOutputTokens != nil && *req.MaxOutputTokens == 0 {
		return protocolError(&req.Model.ModelID, "max_output_tokens must be at least 1")
	}
	return nil
}

func validateOptions(options Options, modelID string) *coreerrors.ProviderError {
	for _, fallback := range options.FallbackModels {
		if strings.TrimSpace(fallback) == "" {
			return protocolError(&modelID, "fallback_models must not include empty model ids")
		}
	}
	if options.ProviderPreferences != nil {
		if _, ok := options.ProviderPreferences.(map[string]any); !ok {
			return protocolError(&modelID, "provider preferences must be a JSON object")
		}
	}
	for index, plugin := range options.Plugins {
		if _, ok := plugin.(map[string]any); !ok {
			return protocolError(&modelID, fmt.Sprintf("plugin at index %d must be a JSON object", index))
		}
	}
	return nil
}

func mapTools(req types.ProviderRequest) ([]map[string]any, *coreerrors.ProviderError) {
	var tools []map[string]any
	for _, tool := range req.Tools {
		mapped, err := mapToolDefinition(tool, req.Model.ModelID)
		if err != nil {
			return nil, err
		}
		tools = append(tools, mapped)
	}
	return tools, nil
}

func mapToolDefinition(tool types.ToolDefinition, modelID string) (map[string]any, *coreerrors.ProviderError) {
	if strings.TrimSpace(tool.Name) == "" {
		return nil, protocolError(&modelID, "tool definitions require non-empty names")
	}
	if len([]rune(tool.Name)) > 64 {
		return nil, protocolError(&modelID, fmt.Sprintf("tool '%s' name exceeds 64 characters", tool.Name))
	}
	if _, ok := tool.ParametersSchema.(map[string]any); !ok {
		return nil, protocolError(&modelID, fmt.Sprintf("tool '%s' parameters_schema must be a JSON object", tool.Name))
	}

	function := map[string]any{"name": tool.Name, "parameters": tool.ParametersSchema}
	if tool.Description != nil {
		function["description"] = *tool.Description
	}
	return map[string]any{"type": "function", "function": function}, nil
}

func mapToolChoice(req types.ProviderRequest, hasTools bool) (any, *coreerrors.ProviderError) {
	if !hasTools {
		switch req.ToolChoice.Kind {
		case types.ToolChoiceRequired:
			return nil, protocolError(&req.Model.ModelID, "tool_choice required requires at least one tool definition")
		case types.ToolChoiceSpecific:
			return nil, protocolError(&req.Model.ModelID, "tool_choice specific requires at least one tool definition")
		default:
			return nil, nil
		}
	}

	switch req.ToolChoice.Kind {
	case types.ToolChoiceNone:
		return "none", nil
	case types.ToolChoiceAuto:
		return "auto", nil
	case types.ToolChoiceRequired:
		return "required", nil
	case types.ToolChoiceSpecific:
		name := req.ToolChoice.Name
		if strings.TrimSpace(name) == "" {
			return nil, protocolError(&req.Model.ModelID, "tool_choice specific requires non-empty name")
		}
		if !hasToolNamed(req.Tools, name) {
			return nil, protocolError(&req.Model.ModelID, fmt.Sprintf("tool_choice specific references unknown tool: %s", name))
		}
		return map[string]any{"type": "function", "function": map[string]any{"name": name}}, nil
	default:
		return nil, protocolError(&req.Model.ModelID, "unknown tool_choice")
	}
}

func hasToolNamed(tools []types.ToolDefinition, name string) bool {
	for _, tool := range tools {
		if tool.Name == name {
			return true
		}
	}
	return false
}

func mapResponseFormat(req types.ProviderRequest) (map[string]any, *coreerrors.ProviderError) {
	switch req.ResponseFormat.Kind {
	case types.ResponseFormatText:
		return nil, nil
	case types.ResponseFormatJSONObject:
		return map[string]any{"type": "json_object"}, nil
	case types.ResponseFormatJSONSchema:
		if strings.TrimSpace(req.ResponseFormat.Name) == "" {
			return nil, protocolError(&req.Model.ModelID, "json_schema response format requires non-empty name")
		}
		if len([]rune(req.ResponseFormat.Name)) > 64 {
			return nil, protocolError(&req.Model.ModelID, "json_schema name exceeds 64 characters")
		}
		if _, ok := req.ResponseFormat.Schema.(map[string]any); !ok {
			return nil, protocolError(&req.Model.ModelID, "json_schema schema must be a JSON object")
		}
		return map[string]any{
			"type": "json_schema",
			"json_schema": map[string]any{
				"name":   req.ResponseFormat.Name,
				"schema": req.ResponseFormat.Schema,
				"strict": true,
			},
		}, nil
	default:
		return nil, protocolError(&req.Model.ModelID, "unknown response format")
	}
}

func mapMessages(req types.ProviderRequest, hasTools bool) ([]map[string]any, *coreerrors.ProviderError) {
	var messages []map[string]any
	sawToolRole := false

	for _, message := range req.Messages {
		mapped, err := mapMessage(message, req.Model.ModelID)
		if err != nil {
			return nil, err
		}
		messages = append(messages, mapped)
		if message.Role == types.RoleTool {
			sawToolRole = true
		}
	}

	if sawToolRole && !hasTools {
		return nil, protocolError(&req.Model.ModelID, "tool messages require at least one tool definition")
	}
	return messages, nil
}

func mapMessage(message types.Message, modelID string) (map[string]any, *coreerrors.ProviderError) {
	switch message.Role {
	case types.RoleSystem:
		return mapStringMessage("system", message.Content, modelID)
	case types.RoleUser:
		return mapStringMessage("user", message.Content, modelID)
	case types.RoleAssistant:
		return mapAssistantMessage(message.Content, modelID)
	case types.RoleTool:
		return mapToolMessage(message.Content, modelID)
	default:
		return nil, protocolError(&modelID, "unknown message role")
	}
}

func mapStringMessage(role string, content []types.ContentPart, modelID string) (map[string]any, *coreerrors.ProviderError) {
	text, err := joinTextParts(content, modelID, role, true)
	if err != nil {
		return nil, err
	}
	return map[string]any{"role": role, "content": text}, nil
}

func mapAssistantMessage(content []types.ContentPart, modelID string) (map[string]any, *coreerrors.ProviderError) {
	var textParts []string
	var toolCalls []map[string]any

	for _, part := range content {
		switch part.Kind {
		case types.ContentText:
			textParts = append(textParts, part.Text)
		case types.ContentToolCall:
			if strings.TrimSpace(part.ToolCall.ID) == "" {
				return nil, protocolError(&modelID, "assistant tool_call id must be non-empty")
			}
			if strings.TrimSpace(part.ToolCall.Name) == "" {
				return nil, protocolError(&modelID, "assistant tool_call name must be non-empty")
			}
			arguments := shared.StableJSONString(part.ToolCall.ArgumentsJSON)
			toolCalls = append(toolCalls, map[string]any{
				"id":   part.ToolCall.ID,
				"type": "function",
				"function": map[string]any{
					"name":      part.ToolCall.Name,
					"arguments": arguments,
				},
			})
		case types.ContentThinking:
			return nil, protocolError(&modelID, "thinking content is unsupported for OpenRouter encode")
		case types.ContentToolResult:
			return nil, protocolError(&modelID, "tool_result content is only valid for tool role messages")
		}
	}

	if len(textParts) == 0 && len(toolCalls) == 0 {
		return nil, protocolError(&modelID, "assistant messages must contain text or tool_calls")
	}

	payload := map[string]any{"role": "assistant"}
	if len(textParts) == 0 {
		payload["content"] = nil
	} else {
		payload["content"] = strings.Join(textParts, "\n")
	}
	if len(toolCalls) > 0 {
		payload["tool_calls"] = toolCalls
	}
	return payload, nil
}

func mapToolMessage(content []types.ContentPart, modelID string) (map[string]any, *coreerrors.ProviderError) {
	if len(content) != 1 {
		return nil, protocolError(&modelID, "tool role messages must contain exactly one tool_result part")
	}
	part := content[0]
	if part.Kind == types.ContentThinking {
		return nil, protocolError(&modelID, "thinking content is unsupported for OpenRouter encode")
	}
	if part.Kind != types.ContentToolResult {
		return nil, protocolError(&modelID, "tool role messages must contain tool_result content")
	}
	toolResult := part.ToolResult
	if strings.TrimSpace(toolResult.ToolCallID) == "" {
		return nil, protocolError(&modelID, "tool_result tool_call_id must be non-empty")
	}

	output, err := joinToolResultTextParts(toolResult, modelID)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"role":         "tool",
		"tool_call_id": toolResult.ToolCallID,
		"content":      output,
	}, nil
}

func joinTextParts(content []types.ContentPart, modelID, context string, allowEmpty bool) (string, *coreerrors.ProviderError) {
	var parts []string
	for _, part := range content {
		switch part.Kind {
		case types.ContentText:
			parts = append(parts, part.Text)
		case types.ContentThinking:
			return "", protocolError(&modelID, "thinking content is unsupported for OpenRouter encode")
		default:
			return "", protocolError(&modelID, fmt.Sprintf("%s content must contain only text parts", context))
		}
	}
	if !allowEmpty && len(parts) == 0 {
		return "", protocolError(&modelID, fmt.Sprintf("%s content must contain at least one text part", context))
	}
	return strings.Join(parts, "\n"), nil
}

func joinToolResultTextParts(toolResult types.ToolResult, modelID string) (string, *coreerrors.ProviderError) {
	switch toolResult.Content.Kind {
	case types.ToolResultText:
		return toolResult.Content.Text, nil
	case types.ToolResultJSON:
		return shared.StableJSONString(toolResult.Content.JSONValue), nil
	case types.ToolResultParts:
		var parts []string
		for _, part := range toolResult.Content.Parts {
			if part.Kind != types.ContentText {
				return "", protocolError(&modelID, "tool_result content must contain only text parts")
			}
			parts = append(parts, part.Text)
		}
		return strings.Join(parts, "\n"), nil
	default:
		return "", protocolError(&modelID, "unknown tool_result content kind")
	}
}

func decodeMessageContent(value any, content *[]types.ContentPart, textBlocks *[]string, warnings *[]types.RuntimeWarning) *coreerrors.ProviderError {
	if value == nil {
		return nil
	}

	switch v := value.(type) {
	case string:
		if v != "" {
			*textBlocks = append(*textBlocks, v)
			*content = append(*content, types.TextPart(v))
		}
		return nil
	case []any:
		for _, item := range v {
			itemObj, ok := item.(map[string]any)
			if !ok {
				return protocolErrorNoModel("assistant content array item must be an object")
			}
			itemType, _ := itemObj["type"].(string)
			if itemType == "" {
				itemType = "unknown"
			}
			if itemType == "text" {
				text, ok := itemObj["text"].(string)
				if !ok {
					return protocolErrorNoModel("text content item missing text")
				}
				*textBlocks = append(*textBlocks, text)
				*content = append(*content, types.TextPart(text))
				continue
			}
			*warnings = append(*warnings, types.RuntimeWarning{
				Code:    warnUnknownContentPartMappedToText,
				Message: fmt.Sprintf("openrouter assistant content item type '%s' mapped to canonical text", itemType),
			})
			rendered := shared.StableJSONString(item)
			*textBlocks = append(*textBlocks, rendered)
			*content = append(*content, types.TextPart(rendered))
		}
		return nil
	default:
		return protocolErrorNoModel("assistant content must be string, array, or null")
	}
}

func decodeToolCalls(value any, content *[]types.ContentPart, warnings *[]types.RuntimeWarning, model string) *coreerrors.ProviderError {
	if value == nil {
		return nil
	}
	calls, ok := value.([]any)
	if !ok {
		return protocolError(&model, "tool_calls must be an array")
	}

	for _, call := range calls {
		callObj, ok := call.(map[string]any)
		if !ok {
			return protocolError(&model, "tool_call entry must be an object")
		}
		id, _ := callObj["id"].(string)
		if strings.TrimSpace(id) == "" {
			return protocolError(&model, "tool_call missing id")
		}
		function, ok := callObj["function"].(map[string]any)
		if !ok {
			return protocolError(&model, "tool_call missing function object")
		}
		name, ok := function["name"].(string)
		if !ok {
			return protocolError(&model, "tool_call function missing name")
		}
		argsRaw, ok := function["arguments"].(string)
		if !ok {
			return protocolError(&model, "tool_call function missing arguments")
		}

		var argumentsJSON any
		if err := json.Unmarshal([]byte(argsRaw), &argumentsJSON); err != nil {
			*warnings = append(*warnings, types.RuntimeWarning{
				Code:    shared.WarnToolArgumentsInvalidJSON,
				Message: fmt.Sprintf("openrouter tool_call arguments were not valid JSON for call_id=%s", id),
			})
			argumentsJSON = argsRaw
		}

		*content = append(*content, types.ToolCallPart(types.ToolCall{ID: id, Name: name, ArgumentsJSON: argumentsJSON}))
	}
	return nil
}

func decodeReasoning(message map[string]any, content *[]types.ContentPart, warnings *[]types.RuntimeWarning) {
	reasoning, _ := message["reasoning"].(string)
	if reasoning != "" {
		provider := types.ProviderOpenRouter
		*content = append(*content, types.ThinkingPart(reasoning, &provider))
	}

	details, has := message["reasoning_details"]
	if !has || details == nil {
		return
	}
	if reasoning != "" && shared.StableJSONString(details) == reasoning {
		return
	}

	*warnings = append(*warnings, types.RuntimeWarning{
		Code:    warnUnknownContentPartMappedToText,
		Message: "openrouter reasoning_details mapped to canonical thinking as JSON",
	})
	provider := types.ProviderOpenRouter
	*content = append(*content, types.ThinkingPart(shared.StableJSONString(details), &provider))
}

func decodeUsage(usageValue any, model string, warnings *[]types.RuntimeWarning) (types.Usage, *coreerrors.ProviderError) {
	if usageValue == nil {
		*warnings = append(*warnings, types.RuntimeWarning{
			Code:    shared.WarnUsageMissing,
			Message: "openrouter response usage was missing",
		})
		return types.Usage{}, nil
	}

	usageObj, ok := usageValue.(map[string]any)
	if !ok {
		return types.Usage{}, protocolError(&model, "usage must be an object or null")
	}

	usage := types.Usage{
		InputTokens:  numberToU64(usageObj["prompt_tokens"]),
		OutputTokens: numberToU64(usageObj["completion_tokens"]),
		TotalTokens:  numberToU64(usageObj["total_tokens"]),
	}
	if details, ok := usageObj["prompt_tokens_details"].(map[string]any); ok {
		usage.CachedInputTokens = numberToU64(details["cached_tokens"])
	}
	if details, ok := usageObj["completion_tokens_details"].(map[string]any); ok {
		usage.ReasoningTokens = numberToU64(details["reasoning_tokens"])
	}

	if usage.InputTokens == nil || usage.OutputTokens == nil || usage.TotalTokens == nil {
		*warnings = append(*warnings, types.RuntimeWarning{
			Code:    shared.WarnUsagePartial,
			Message: "openrouter response usage was partial",
		})
	}
	return usage, nil
}

func decodeStructuredOutput(responseFormat types.ResponseFormat, textBlocks []string, warnings *[]types.RuntimeWarning) any {
	if responseFormat.Kind == types.ResponseFormatText {
		return nil
	}
	if len(textBlocks) == 0 {
		return nil
	}
	joined := strings.Join(textBlocks, "\n")
	var parsed any
	if err := json.Unmarshal([]byte(joined), &parsed); err != nil {
		*warnings = append(*warnings, types.RuntimeWarning{
			Code:    shared.WarnStructuredOutputParseFailed,
			Message: fmt.Sprintf("failed to parse structured output JSON: %v", err),
		})
		return nil
	}
	return parsed
}

func mapFinishReason(finishReason string, warnings *[]types.RuntimeWarning) types.FinishReason {
	switch finishReason {
	case "stop":
		return types.FinishStop
	case "length":
		return types.FinishLength
	case "tool_calls":
		return types.FinishToolCalls
	case "content_filter":
		return types.FinishContentFilter
	case "error":
		return types.FinishError
	case "":
		return types.FinishOther
	default:
		*warnings = append(*warnings, types.RuntimeWarning{
			Code:    warnUnknownFinishReason,
			Message: fmt.Sprintf("openrouter finish_reason '%s' mapped to Other", finishReason),
		})
		return types.FinishOther
	}
}

func parseErrorValue(root map[string]any) *ErrorEnvelope {
	errorObj, ok := root["error"].(map[string]any)
	if !ok {
		return nil
	}
	message, ok := errorObj["message"].(string)
	if !ok {
		return nil
	}
	var code *uint16
	if numeric := numberToU64(errorObj["code"]); numeric != nil && *numeric <= 65535 {
		v := uint16(*numeric)
		code = &v
	}
	return &ErrorEnvelope{Code: code, Message: message}
}

func formatErrorMessage(envelope ErrorEnvelope) string {
	if envelope.Code != nil {
		return fmt.Sprintf("openrouter error: %s [code=%d]", envelope.Message, *envelope.Code)
	}
	return fmt.Sprintf("openrouter error: %s", envelope.Message)
}

func decodeModelCapabilities(modelObj map[string]any) (bool, bool) {
	supportedParameters, ok := modelObj["supported_parameters"].([]any)
	if !ok {
		return true, true
	}

	var supportsTools, supportsStructuredOutput bool
	for _, parameter := range supportedParameters {
		param, ok := parameter.(string)
		if !ok {
			continue
		}
		switch param {
		case "tools":
			supportsTools = true
		case "response_format", "structured_outputs":
			supportsStructuredOutput = true
		}
	}
	return supportsTools, supportsStructuredOutput
}

func numberToU64(value any) *uint64 {
	num, ok := value.(float64)
	if !ok || num < 0 {
		return nil
	}
	v := uint64(num)
	return &v
}

func numberToU32(value any) *uint32 {
	num := numberToU64(value)
	if num == nil || *num > 4294967295 {
		return nil
	}
	v := uint32(*num)
	return &v
}

func protocolError(modelID *string, message string) *coreerrors.ProviderError {
	return coreerrors.NewProtocolError(types.ProviderOpenRouter, modelID, message)
}

func protocolErrorNoModel(message string) *coreerrors.ProviderError {
	return coreerrors.NewProtocolError(types.ProviderOpenRouter, nil, message)
}
