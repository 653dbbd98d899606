// Package anthropic implements the translator and adapter for Anthropic's
// Messages API (POST /v1/messages).
package anthropic

import (
	"encoding/json"
	"fmt"
	"strings"

	coreerrors "github.com/Davincible/provider-runtime-go/internal/core/errors"
	"github.com/Davincible/provider-runtime-go/internal/core/types"
	"github.com/Davincible/provider-runtime-go/internal/providers/shared"
)

const (
	defaultMaxTokens = 1024

	warnDroppedUnsupportedMetadataKeys = "dropped_unsupported_metadata_keys"
	warnDefaultMaxTokensApplied        = "default_max_tokens_applied"
	warnUnknownContentBlockMapped      = "unknown_content_block_mapped_to_text"
	warnUnknownStopReason              = "unknown_stop_reason"
)

// EncodedRequest is the wire body plus any warnings produced while encoding.
type EncodedRequest struct {
	Body     map[string]any
	Warnings []types.RuntimeWarning
}

// ErrorEnvelope is Anthropic's `{"type":"error","error":{...}}` shape.
type ErrorEnvelope struct {
	ErrorType *string
	Message   string
	RequestID *string
}

type wireMessage struct {
	role    string
	content []any
}

// EncodeRequest translates a canonical ProviderRequest into an Anthropic
// Messages API request body.
func EncodeRequest(req types.ProviderRequest) (EncodedRequest, *coreerrors.ProviderError) {
	if err := validateProviderHint(req); err != nil {
		return EncodedRequest{}, err
	}
	if err := validateModelID(req); err != nil {
		return EncodedRequest{}, err
	}
	if err := validateMaxOutputTokens(req); err != nil {
		return EncodedRequest{}, err
	}
	if err := validateSamplingControls(req); err != nil {
		return EncodedRequest{}, err
	}
	if err := validateStopSequences(req); err != nil {
		return EncodedRequest{}, err
	}

	var warnings []types.RuntimeWarning
	if req.Temperature != nil && req.TopP != nil {
		warnings = append(warnings, types.RuntimeWarning{
			Code:    shared.WarnBothTemperatureAndTopPSet,
			Message: "Anthropic recommends setting temperature or top_p, but not both",
		})
	}

	system, rest, err := mapSystemPrefix(req)
	if err != nil {
		return EncodedRequest{}, err
	}
	mapped, err := mapNonSystemMessages(req, rest, &warnings)
	if err != nil {
		return EncodedRequest{}, err
	}
	merged := mergeConsecutiveMessages(mapped)
	if err := validateToolOrdering(req, merged); err != nil {
		return EncodedRequest{}, err
	}
	if len(merged) == 0 {
		return EncodedRequest{}, protocolError(&req.Model.ModelID, "empty messages")
	}

	outputConfig, err := mapResponseFormat(req, merged)
	if err != nil {
		return EncodedRequest{}, err
	}
	tools, err := mapTools(req)
	if err != nil {
		return EncodedRequest{}, err
	}
	toolChoice, err := mapToolChoice(req)
	if err != nil {
		return EncodedRequest{}, err
	}

	body := map[string]any{"model": req.Model.ModelID}
	if req.MaxOutputTokens != nil {
		body["max_tokens"] = *req.MaxOutputTokens
	} else {
		warnings = append(warnings, types.RuntimeWarning{
			Code:    warnDefaultMaxTokensApplied,
			Message: fmt.Sprintf("max_output_tokens not set; defaulting to %d for Anthropic", defaultMaxTokens),
		})
		body["max_tokens"] = defaultMaxTokens
	}

	wireMessages := make([]any, 0, len(merged))
	for _, m := range merged {
		wireMessages = append(wireMessages, map[string]any{"role": m.role, "content": m.content})
	}
	body["messages"] = wireMessages

	if len(system) > 0 {
		body["system"] = system
	}
	if len(tools) > 0 {
		body["tools"] = tools
	}
	body["tool_choice"] = toolChoice
	if outputConfig != nil {
		body["output_config"] = outputConfig
	}
	if len(req.Stop) > 0 {
		body["stop_sequences"] = req.Stop
	}
	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		body["top_p"] = *req.TopP
	}

	metadata, err := mapMetadata(req, &warnings)
	if err != nil {
		return EncodedRequest{}, err
	}
	if metadata != nil {
		body["metadata"] = metadata
	}

	return EncodedRequest{Body: body, Warnings: warnings}, nil
}

// DecodeResponse translates an Anthropic Messages API response body into a
// canonical ProviderResponse.
func DecodeResponse(body map[string]any, requestedFormat types.ResponseFormat) (types.ProviderResponse, *coreerrors.ProviderError) {
	model, _ := body["model"].(string)
	if model == "" {
		model = "<unknown-model>"
	}

	role, _ := body["role"].(string)
	if role == "" {
		return types.ProviderResponse{}, protocolError(&model, "anthropic response missing role")
	}
	if role != "assistant" {
		return types.ProviderResponse{}, protocolError(&model, fmt.Sprintf("anthropic response role must be assistant, got %s", role))
	}

	stopReason, _ := body["stop_reason"].(string)
	if stopReason == "" {
		return types.ProviderResponse{}, protocolError(&model, "anthropic response missing stop_reason")
	}

	contentBlocks, ok := body["content"].([]any)
	if !ok {
		return types.ProviderResponse{}, protocolError(&model, "anthropic response missing content array")
	}

	var warnings []types.RuntimeWarning
	var content []types.ContentPart
	var textBlocks []string

	for _, block := range contentBlocks {
		blockObj, ok := block.(map[string]any)
		if !ok {
			return types.ProviderResponse{}, protocolError(&model, "anthropic content block must be object")
		}
		blockType, _ := blockObj["type"].(string)
		if blockType == "" {
			return types.ProviderResponse{}, protocolError(&model, "anthropic content block missing type")
		}

		switch blockType {
		case "text":
			text, ok := blockObj["text"].(string)
			if !ok {
				return types.ProviderResponse{}, protocolError(&model, "text content block missing text")
			}
			textBlocks = append(textBlocks, text)
			content = append(content, types.TextPart(text))
		case "tool_use":
			id, _ := blockObj["id"].(string)
			if id == "" {
				return types.ProviderResponse{}, protocolError(&model, "tool_use block missing id")
			}
			name, _ := blockObj["name"].(string)
			if name == "" {
				return types.ProviderResponse{}, protocolError(&model, "tool_use block missing name")
			}
			input, has := blockObj["input"]
			if !has {
				return types.ProviderResponse{}, protocolError(&model, "tool_use block missing input")
			}
			if _, isObj := input.(map[string]any); !isObj {
				return types.ProviderResponse{}, protocolError(&model, "tool_use input must be a JSON object")
			}
			content = append(content, types.ToolCallPart(types.ToolCall{ID: id, Name: name, ArgumentsJSON: input}))
		case "thinking", "redacted_thinking":
		default:
			warnings = append(warnings, types.RuntimeWarning{
				Code:    warnUnknownContentBlockMapped,
				Message: fmt.Sprintf("anthropic content block type '%s' mapped to canonical text via JSON", blockType),
			})
			content = append(content, types.TextPart(shared.StableJSONString(block)))
		}
	}

	if len(content) == 0 {
		warnings = append(warnings, types.RuntimeWarning{
			Code:    shared.WarnEmptyOutput,
			Message: "anthropic response contained no content blocks",
		})
	}

	finishReason, err := mapFinishReason(stopReason, model, &warnings)
	if err != nil {
		return types.ProviderResponse{}, err
	}
	usage, err := decodeUsage(body["usage"], model, &warnings)
	if err != nil {
		return types.ProviderResponse{}, err
	}
	structuredOutput := decodeStructuredOutput(requestedFormat, textBlocks, model, &warnings)

	return types.ProviderResponse{
		Output:       types.AssistantOutput{Content: content, StructuredOutput: structuredOutput},
		Usage:        usage,
		Provider:     types.ProviderAnthropic,
		Model:        model,
		FinishReason: finishReason,
		Warnings:     warnings,
	}, nil
}

// ParseErrorEnvelope parses a raw response body as an Anthropic error
// envelope, returning nil if it doesn't match the shape.
func ParseErrorEnvelope(rawBody []byte) *ErrorEnvelope {
	var root map[string]any
	if err := json.Unmarshal(rawBody, &root); err != nil {
		return nil
	}
	errorObj, ok := root["error"].(map[string]any)
	if !ok {
		return nil
	}
	message, ok := errorObj["message"].(string)
	if !ok {
		return nil
	}
	var errorType *string
	if t, ok := errorObj["type"].(string); ok {
		errorType = &t
	}
	var requestID *string
	if r, ok := root["request_id"].(string); ok {
		requestID = &r
	}
	return &ErrorEnvelope{ErrorType: errorType, Message: message, RequestID: requestID}
}

// FormatErrorMessage renders an Anthropic error envelope as a human-readable
// message.
func FormatErrorMessage(envelope ErrorEnvelope) string {
	if envelope.ErrorType != nil {
		return fmt.Sprintf("anthropic error: %s [type=%s]", envelope.Message, *envelope.ErrorType)
	}
	return fmt.Sprintf("anthropic error: %s", envelope.Message)
}

// DecodeModelsList decodes an Anthropic `/v1/models` payload into ModelInfo
// entries, deduplicating by id.
func DecodeModelsList(body map[string]any, capabilities types.ProviderCapabilities) ([]types.ModelInfo, *coreerrors.ProviderError) {
	data, ok := body["data"].([]any)
	if !ok {
		return nil, protocolErrorNoModel("anthropic models payload missing data array")
	}

	var discovered []types.ModelInfo
	seen := map[string]bool{}
	for index, item := range data {
		modelObj, ok := item.(map[string]any)
		if !ok {
			return nil, protocolErrorNoModel(fmt.Sprintf("anthropic models payload contains non-object entry at index %d", index))
		}
		rawID, _ := modelObj["id"].(string)
		modelID := strings.TrimSpace(rawID)
		if modelID == "" {
			return nil, protocolErrorNoModel(fmt.Sprintf("anthropic models payload entry has empty id at index %d", index))
		}
		if seen[modelID] {
			continue
		}
		seen[modelID] = true

		info := types.ModelInfo{
			Provider:                 types.ProviderAnthropic,
			ModelID:                  modelID,
			SupportsTools:            capabilities.SupportsTools,
			SupportsStructuredOutput: capabilities.SupportsStructuredOutput,
		}
		if displayName, ok := modelObj["display_name"].(string); ok && displayName != "" {
			info.DisplayName = &displayName
		}
		discovered = append(discovered, info)
	}
	return discovered, nil
}

func validateProviderHint(req types.ProviderRequest) *coreerrors.ProviderError {
	if req.Model.ProviderHint != nil && !req.Model.ProviderHint.Equal(types.ProviderAnthropic) {
		return protocolError(&req.Model.ModelID, fmt.Sprintf("provider_hint must be Anthropic, got %v", req.Model.ProviderHint))
	}
	return nil
}

func validateModelID(req types.ProviderRequest) *coreerrors.ProviderError {
	if strings.TrimSpace(req.Model.ModelID) == "" {
		return protocolErrorNoModel("missing model_id")
	}
	return nil
}

func validateMaxOutputTokens(req types.ProviderRequest) *coreerrors.ProviderError {
	if req.MaxOutputTokens != nil && *req.MaxOutputTokens == 0 {
		return protocolError(&req.Model.ModelID, "max_output_tokens must be at least 1 for Anthropic")
	}
	return nil
}

func validateSamplingControls(req types.ProviderRequest) *coreerrors.ProviderError {
	if req.Temperature != nil && (*req.Temperature < 0.0 || *req.Temperature > 1.0) {
		return protocolError(&req.Model.ModelID, fmt.Sprintf("temperature must be in [0.0, 1.0], got %v", *req.Temperature))
	}
	if req.TopP != nil && (*req.TopP < 0.0 || *req.TopP > 1.0) {
		return protocolError(&req.Model.ModelID, fmt.Sprintf("top_p must be in [0.0, 1.0], got %v", *req.TopP))
	}
	return nil
}

func validateStopSequences(req types.ProviderRequest) *coreerrors.ProviderError {
	for _, stop := range req.Stop {
		if stop == "" {
			return protocolError(&req.Model.ModelID, "stop sequences must not contain empty strings")
		}
	}
	return nil
}

func mapSystemPrefix(req types.ProviderRequest) ([]any, []types.Message, *coreerrors.ProviderError) {
	index := 0
	for index < len(req.Messages) && req.Messages[index].Role == types.RoleSystem {
		index++
	}
	for _, message := range req.Messages[index:] {
		if message.Role == types.RoleSystem {
			return nil, nil, protocolError(&req.Model.ModelID, "system messages must form a contiguous prefix for Anthropic")
		}
	}

	var systemBlocks []any
	for _, message := range req.Messages[:index] {
		for _, part := range message.Content {
			if part.Kind != types.ContentText {
				return nil, nil, protocolError(&req.Model.ModelID, "system messages only support text content")
			}
			systemBlocks = append(systemBlocks, map[string]any{"type": "text", "text": part.Text})
		}
	}

	return systemBlocks, req.Messages[index:], nil
}

func mapNonSystemMessages(req types.ProviderRequest, messages []types.Message, warnings *[]types.RuntimeWarning) ([]wireMessage, *coreerrors.ProviderError) {
	var mapped []wireMessage
	seenToolIDs := map[string]bool{}

	for _, message := range messages {
		var role string
		switch message.Role {
		case types.RoleUser, types.RoleTool:
			role = "user"
		case types.RoleAssistant:
			role = "assistant"
		default:
			return nil, protocolErrorNoModel("unreachable system message in non-system mapping")
		}

		var blocks []any
		for _, part := range message.Content {
			switch part.Kind {
			case types.ContentText:
				if message.Role == types.RoleTool {
					return nil, protocolError(&req.Model.ModelID, "tool messages must contain tool_result content only")
				}
				blocks = append(blocks, map[string]any{"type": "text", "text": part.Text})
			case types.ContentThinking:
				// thinking blocks cannot be replayed without their signature
			case types.ContentToolCall:
				if message.Role != types.RoleAssistant {
					return nil, protocolError(&req.Model.ModelID, "tool_call content is only valid in assistant messages")
				}
				if _, isObj := part.ToolCall.ArgumentsJSON.(map[string]any); !isObj {
					return nil, protocolError(&req.Model.ModelID, fmt.Sprintf("tool_call '%s' arguments_json must be a JSON object", part.ToolCall.Name))
				}
				seenToolIDs[part.ToolCall.ID] = true
				blocks = append(blocks, map[string]any{
					"type":  "tool_use",
					"id":    part.ToolCall.ID,
					"name":  part.ToolCall.Name,
					"input": part.ToolCall.ArgumentsJSON,
				})
			case types.ContentToolResult:
				if message.Role != types.RoleTool {
					return nil, protocolError(&req.Model.ModelID, "tool_result content is only valid in tool messages")
				}
				if !seenToolIDs[part.ToolResult.ToolCallID] {
					return nil, protocolError(&req.Model.ModelID, fmt.Sprintf("tool_result references unknown tool_call_id: %s", part.ToolResult.ToolCallID))
				}
				blockContent, err := toolResultContentAsTextBlocks(part.ToolResult, req.Model.ModelID, warnings)
				if err != nil {
					return nil, err
				}
				blocks = append(blocks, map[string]any{
					"type":        "tool_result",
					"tool_use_id": part.ToolResult.ToolCallID,
					"content":     blockContent,
				})
			}
		}

		if len(blocks) == 0 {
			return nil, protocolError(&req.Model.ModelID, "message content must contain at least one encodable part")
		}

		mapped = append(mapped, wireMessage{role: role, content: blocks})
	}

	return mapped, nil
}

func toolResultContentAsTextBlocks(toolResult types.ToolResult, modelID string, warnings *[]types.RuntimeWarning) ([]any, *coreerrors.ProviderError) {
	if toolResult.RawProviderContent != nil {
		if blocks, ok := toolResult.RawProviderContent.([]any); ok {
			return blocks, nil
		}
		*warnings = append(*warnings, types.RuntimeWarning{
			Code:    shared.WarnToolResultRawProviderContentIgnored,
			Message: "tool_result raw_provider_content ignored for Anthropic because it is not an array",
		})
	}

	switch toolResult.Content.Kind {
	case types.ToolResultText:
		return []any{map[string]any{"type": "text", "text": toolResult.Content.Text}}, nil
	case types.ToolResultJSON:
		*warnings = append(*warnings, types.RuntimeWarning{
			Code:    shared.WarnToolResultCoerced,
			Message: "tool_result JSON content coerced to Anthropic text block",
		})
		return []any{map[string]any{"type": "text", "text": shared.StableJSONString(toolResult.Content.JSONValue)}}, nil
	case types.ToolResultParts:
		var blocks []any
		for _, part := range toolResult.Content.Parts {
			if part.Kind != types.ContentText {
				return nil, protocolError(&modelID, "tool_result parts content must contain only text parts")
			}
			blocks = append(blocks, map[string]any{"type": "text", "text": part.Text})
		}
		return blocks, nil
	default:
		return nil, protocolError(&modelID, "unknown tool_result content kind")
	}
}

func mergeConsecutiveMessages(messages []wireMessage) []wireMessage {
	var merged []wireMessage
	for _, message := range messages {
		if len(merged) > 0 && merged[len(merged)-1].role == message.role {
			last := &merged[len(merged)-1]
			last.content = append(last.content, message.content...)
			if last.role == "user" {
				reorderUserContentToolResultsFirst(last.content)
			}
			continue
		}
		if message.role == "user" {
			reorderUserContentToolResultsFirst(message.content)
		}
		merged = append(merged, message)
	}
	return merged
}

func reorderUserContentToolResultsFirst(content []any) {
	var toolResults, others []any
	for _, block := range content {
		isToolResult := false
		if obj, ok := block.(map[string]any); ok {
			if t, ok := obj["type"].(string); ok && t == "tool_result" {
				isToolResult = true
			}
		}
		if isToolResult {
			toolResults = append(toolResults, block)
		} else {
			others = append(others, block)
		}
	}
	copy(content, append(toolResults, others...))
}

func validateToolOrdering(req types.ProviderRequest, messages []wireMessage) *coreerrors.ProviderError {
	for index, message := range messages {
		if message.role != "assistant" {
			continue
		}

		var pendingToolIDs []string
		for _, block := range message.content {
			obj, ok := block.(map[string]any)
			if !ok {
				continue
			}
			if t, _ := obj["type"].(string); t != "tool_use" {
				continue
			}
			if id, ok := obj["id"].(string); ok {
				pendingToolIDs = append(pendingToolIDs, id)
			}
		}
		if len(pendingToolIDs) == 0 {
			continue
		}

		if index+1 >= len(messages) {
			return protocolError(&req.Model.ModelID, "assistant tool_use requires a following user tool_result message")
		}
		nextMessage := messages[index+1]
		if nextMessage.role != "user" {
			return protocolError(&req.Model.ModelID, "assistant tool_use must be followed by a user message containing tool_result blocks")
		}

		var prefixToolResultIDs []string
		for _, block := range nextMessage.content {
			obj, ok := block.(map[string]any)
			if !ok {
				return protocolError(&req.Model.ModelID, "anthropic user content block must be object")
			}
			blockType, _ := obj["type"].(string)
			if blockType == "" {
				return protocolError(&req.Model.ModelID, "anthropic user content block missing type")
			}
			if blockType != "tool_result" {
				break
			}
			toolUseID, ok := obj["tool_use_id"].(string)
			if !ok {
				return protocolError(&req.Model.ModelID, "tool_result block missing tool_use_id")
			}
			prefixToolResultIDs = append(prefixToolResultIDs, toolUseID)
		}

		if len(prefixToolResultIDs) == 0 {
			return protocolError(&req.Model.ModelID, "assistant tool_use requires tool_result blocks at the start of the next user message")
		}

		for _, pendingID := range pendingToolIDs {
			found := false
			for _, id := range prefixToolResultIDs {
				if id == pendingID {
					found = true
					break
				}
			}
			if !found {
				return protocolError(&req.Model.ModelID, fmt.Sprintf("missing tool_result for assistant tool_use id '%s' in following user message", pendingID))
			}
		}
	}
	return nil
}

func mapTools(req types.ProviderRequest) ([]any, *coreerrors.ProviderError) {
	var tools []any
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
	if len([]rune(tool.Name)) > 128 {
		return nil, protocolError(&modelID, fmt.Sprintf("tool '%s' name exceeds 128 characters", tool.Name))
	}
	if _, isObj := tool.ParametersSchema.(map[string]any); !isObj {
		return nil, protocolError(&modelID, fmt.Sprintf("tool '%s' parameters_schema must be a JSON object", tool.Name))
	}

	mapped := map[string]any{"name": tool.Name, "input_schema": tool.ParametersSchema}
	if tool.Description != nil {
		mapped["description"] = *tool.Description
	}
	return mapped, nil
}

func mapToolChoice(req types.ProviderRequest) (map[string]any, *coreerrors.ProviderError) {
	if len(req.Tools) == 0 {
		switch req.ToolChoice.Kind {
		case types.ToolChoiceAuto, types.ToolChoiceNone:
		default:
			return nil, protocolError(&req.Model.ModelID, "tool_choice requires at least one tool definition")
		}
	}

	switch req.ToolChoice.Kind {
	case types.ToolChoiceNone:
		return map[string]any{"type": "none"}, nil
	case types.ToolChoiceAuto:
		return map[string]any{"type": "auto"}, nil
	case types.ToolChoiceRequired:
		return map[string]any{"type": "any"}, nil
	case types.ToolChoiceSpecific:
		name := req.ToolChoice.Name
		if strings.TrimSpace(name) == "" {
			return nil, protocolError(&req.Model.ModelID, "tool_choice specific requires a non-empty tool name")
		}
		if !hasToolNamed(req.Tools, name) {
			return nil, protocolError(&req.Model.ModelID, fmt.Sprintf("tool_choice specific references unknown tool: %s", name))
		}
		return map[string]any{"type": "tool", "name": name, "disable_parallel_tool_use": true}, nil
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

func mapResponseFormat(req types.ProviderRequest, messages []wireMessage) (map[string]any, *coreerrors.ProviderError) {
	switch req.ResponseFormat.Kind {
	case types.ResponseFormatText:
		return nil, nil
	case types.ResponseFormatJSONObject:
		if err := validateNoPrefillAssistant(req, messages); err != nil {
			return nil, err
		}
		return map[string]any{"format": map[string]any{
			"type":   "json_schema",
			"schema": map[string]any{"type": "object", "additionalProperties": true},
		}}, nil
	case types.ResponseFormatJSONSchema:
		if err := validateNoPrefillAssistant(req, messages); err != nil {
			return nil, err
		}
		return map[string]any{"format": map[string]any{
			"type":   "json_schema",
			"schema": req.ResponseFormat.Schema,
		}}, nil
	default:
		return nil, protocolError(&req.Model.ModelID, "unknown response format")
	}
}

func validateNoPrefillAssistant(req types.ProviderRequest, messages []wireMessage) *coreerrors.ProviderError {
	if len(messages) > 0 && messages[len(messages)-1].role == "assistant" {
		return protocolError(&req.Model.ModelID, "json response formats are incompatible with assistant-prefill final messages")
	}
	return nil
}

func mapMetadata(req types.ProviderRequest, warnings *[]types.RuntimeWarning) (map[string]any, *coreerrors.ProviderError) {
	metadata := map[string]any{}

	if userID, ok := req.Metadata["user_id"]; ok {
		if len([]rune(userID)) > 256 {
			return nil, protocolError(&req.Model.ModelID, "metadata.user_id exceeds 256 characters")
		}
		metadata["user_id"] = userID
	}

	for _, key := range req.Metadata.SortedKeys() {
		if key != "user_id" {
			*warnings = append(*warnings, types.RuntimeWarning{
				Code:    warnDroppedUnsupportedMetadataKeys,
				Message: "anthropic metadata only supports user_id; unsupported keys dropped",
			})
			break
		}
	}

	if len(metadata) == 0 {
		return nil, nil
	}
	return metadata, nil
}

func mapFinishReason(stopReason string, model string, warnings *[]types.RuntimeWarning) (types.FinishReason, *coreerrors.ProviderError) {
	if stopReason == "" {
		return "", protocolError(&model, "anthropic stop_reason must not be empty")
	}

	switch stopReason {
	case "end_turn", "stop_sequence":
		return types.FinishStop, nil
	case "max_tokens":
		return types.FinishLength, nil
	case "tool_use":
		return types.FinishToolCalls, nil
	case "refusal":
		return types.FinishContentFilter, nil
	case "pause_turn":
		return types.FinishOther, nil
	default:
		*warnings = append(*warnings, types.RuntimeWarning{
			Code:    warnUnknownStopReason,
			Message: fmt.Sprintf("unknown anthropic stop_reason '%s' mapped to Other", stopReason),
		})
		return types.FinishOther, nil
	}
}

// decodeUsage computes billed input tokens as input + cache_creation +
// cache_read. The accounting is deliberately asymmetric: cache tokens are
// folded into InputTokens but only cache_read is also surfaced as
// CachedInputTokens.
func decodeUsage(usageValue any, model string, warnings *[]types.RuntimeWarning) (types.Usage, *coreerrors.ProviderError) {
	if usageValue == nil {
		*warnings = append(*warnings, types.RuntimeWarning{
			Code:    shared.WarnUsageMissing,
			Message: "anthropic response missing usage object",
		})
		return types.Usage{}, nil
	}

	usageObj, ok := usageValue.(map[string]any)
	if !ok {
		return types.Usage{}, protocolError(&model, "anthropic usage must be a JSON object")
	}

	inputTokens, err := parseUsageU64(usageObj["input_tokens"], model, "input_tokens")
	if err != nil {
		return types.Usage{}, err
	}
	cacheCreation, err := parseUsageU64(usageObj["cache_creation_input_tokens"], model, "cache_creation_input_tokens")
	if err != nil {
		return types.Usage{}, err
	}
	cacheRead, err := parseUsageU64(usageObj["cache_read_input_tokens"], model, "cache_read_input_tokens")
	if err != nil {
		return types.Usage{}, err
	}
	outputTokens, err := parseUsageU64(usageObj["output_tokens"], model, "output_tokens")
	if err != nil {
		return types.Usage{}, err
	}

	if inputTokens == nil || outputTokens == nil {
		*warnings = append(*warnings, types.RuntimeWarning{
			Code:    shared.WarnUsagePartial,
			Message: "anthropic usage object missing required token fields",
		})
	}

	var billedInput *uint64
	if inputTokens != nil {
		total := *inputTokens
		if cacheCreation != nil {
			total += *cacheCreation
		}
		if cacheRead != nil {
			total += *cacheRead
		}
		billedInput = &total
	}

	var totalTokens *uint64
	if billedInput != nil && outputTokens != nil {
		total := *billedInput + *outputTokens
		totalTokens = &total
	}

	return types.Usage{
		InputTokens:       billedInput,
		OutputTokens:      outputTokens,
		CachedInputTokens: cacheRead,
		TotalTokens:       totalTokens,
	}, nil
}

func parseUsageU64(value any, model string, fieldName string) (*uint64, *coreerrors.ProviderError) {
	if value == nil {
		return nil, nil
	}
	num, ok := value.(float64)
	if !ok || num < 0 {
		return nil, protocolError(&model, fmt.Sprintf("anthropic usage field '%s' must be an unsigned integer", fieldName))
	}
	v := uint64(num)
	return &v, nil
}

func decodeStructuredOutput(requestedFormat types.ResponseFormat, textBlocks []string, model string, warnings *[]types.RuntimeWarning) any {
	switch requestedFormat.Kind {
	case types.ResponseFormatText:
		return nil
	case types.ResponseFormatJSONSchema:
		if len(textBlocks) == 0 {
			return nil
		}
		return parseJSONWithWarning(textBlocks[0], model, warnings)
	case types.ResponseFormatJSONObject:
		if len(textBlocks) == 0 {
			*warnings = append(*warnings, types.RuntimeWarning{
				Code:    shared.WarnStructuredOutputParseFailed,
				Message: "json_object requested but response contained no text blocks",
			})
			return nil
		}
		for _, text := range textBlocks {
			var parsed any
			if err := json.Unmarshal([]byte(text), &parsed); err == nil {
				if _, isObj := parsed.(map[string]any); isObj {
					return parsed
				}
			}
		}
		combined := strings.Join(textBlocks, "\n")
		if objectText, ok := extractFirstJSONObject(combined); ok {
			if parsed := parseJSONWithWarning(objectText, model, warnings); parsed != nil {
				if _, isObj := parsed.(map[string]any); isObj {
					return parsed
				}
			}
		}
		*warnings = append(*warnings, types.RuntimeWarning{
			Code:    shared.WarnStructuredOutputParseFailed,
			Message: "failed to parse json_object structured output from anthropic text blocks",
		})
		return nil
	default:
		return nil
	}
}

func parseJSONWithWarning(text string, model string, warnings *[]types.RuntimeWarning) any {
	var value any
	if err := json.Unmarshal([]byte(text), &value); err != nil {
		*warnings = append(*warnings, types.RuntimeWarning{
			Code:    shared.WarnStructuredOutputParseFailed,
			Message: fmt.Sprintf("failed to parse structured output JSON for model %s: %v", model, err),
		})
		return nil
	}
	return value
}

func extractFirstJSONObject(text string) (string, bool) {
	var start = -1
	depth := 0
	inString := false
	escaped := false

	for index, ch := range text {
		if inString {
			if escaped {
				escaped = false
				continue
			}
			if ch == '\\' {
				escaped = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		switch ch {
		case '"':
			inString = true
		case '{':
			if start == -1 {
				start = index
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					return text[start : index+len(string(ch))], true
				}
			}
		}
	}
	return "", false
}

func protocolError(modelID *string, message string) *coreerrors.ProviderError {
	return coreerrors.NewProtocolError(types.ProviderAnthropic, modelID, message)
}

func protocolErrorNoModel(message string) *coreerrors.ProviderError {
	return coreerrors.NewProtocolError(types.ProviderAnthropic, nil, message)
}
