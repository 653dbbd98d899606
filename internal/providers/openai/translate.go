// Package openai implements the translator and adapter for OpenAI's
// Responses API (POST /v1/responses).
package openai

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	coreerrors "github.com/Davincible/provider-runtime-go/internal/core/errors"
	"github.com/Davincible/provider-runtime-go/internal/core/types"
	"github.com/Davincible/provider-runtime-go/internal/providers/shared"
)

const (
	warnToolSchemaNotStrictCompatible   = "tool_schema_not_strict_compatible_strict_disabled"
	warnFormatSchemaNotStrictCompatible = "response_format_schema_not_strict_compatible_strict_disabled"
	warnModelRefusal                    = "model_refusal"
	warnIncompleteMaxOutputTokens       = "openai_incomplete_max_output_tokens"
	warnIncompleteContentFilter         = "openai_incomplete_content_filter"
	warnIncompleteUnknownReason         = "openai_incomplete_unknown_reason"
	warnIncompleteMissingReason         = "openai_incomplete_missing_reason"
)

// EncodedRequest is the wire body plus any warnings produced while encoding.
type EncodedRequest struct {
	Body     map[string]any
	Warnings []types.RuntimeWarning
}

// ErrorEnvelope is OpenAI's `{"error": {...}}` error shape.
type ErrorEnvelope struct {
	Message   string
	Code      *string
	ErrorType *string
	Param     *string
}

// EncodeRequest translates a canonical ProviderRequest into an OpenAI
// Responses API request body.
func EncodeRequest(req types.ProviderRequest) (EncodedRequest, *coreerrors.ProviderError) {
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

	var warnings []types.RuntimeWarning
	if req.Temperature != nil && req.TopP != nil {
		warnings = append(warnings, types.RuntimeWarning{
			Code:    shared.WarnBothTemperatureAndTopPSet,
			Message: "OpenAI recommends setting temperature or top_p, but not both",
		})
	}

	textFormat, err := mapResponseFormat(req, &warnings)
	if err != nil {
		return EncodedRequest{}, err
	}
	toolChoice, err := mapToolChoice(req)
	if err != nil {
		return EncodedRequest{}, err
	}
	tools, err := mapTools(req, &warnings)
	if err != nil {
		return EncodedRequest{}, err
	}
	input, err := mapMessages(req, &warnings)
	if err != nil {
		return EncodedRequest{}, err
	}
	if len(input) == 0 {
		return EncodedRequest{}, protocolError(&req.Model.ModelID, "empty input")
	}

	body := map[string]any{
		"model": req.Model.ModelID,
		"store": false,
		"input": input,
		"text":  map[string]any{"format": textFormat},
	}
	if len(tools) > 0 {
		body["tools"] = tools
	}
	body["tool_choice"] = toolChoice

	if req.Temperature != nil {
		body["temperature"] = *req.Temperature
	}
	if req.TopP != nil {
		body["top_p"] = *req.TopP
	}
	if req.MaxOutputTokens != nil {
		body["max_output_tokens"] = *req.MaxOutputTokens
	}
	if len(req.Metadata) > 0 {
		body["metadata"] = map[string]string(req.Metadata)
	}

	return EncodedRequest{Body: body, Warnings: warnings}, nil
}

// DecodeResponse translates an OpenAI Responses API response body into a
// canonical ProviderResponse.
func DecodeResponse(body map[string]any, requestedFormat types.ResponseFormat) (types.ProviderResponse, *coreerrors.ProviderError) {
	if envelope := parseErrorValue(body); envelope != nil {
		return types.ProviderResponse{}, protocolErrorNoModel(formatErrorMessage(*envelope))
	}

	status, _ := body["status"].(string)
	if status == "" {
		return types.ProviderResponse{}, protocolErrorNoModel("openai response missing status")
	}
	if status == "failed" {
		return types.ProviderResponse{}, protocolErrorNoModel("openai response status is failed")
	}
	if status == "queued" || status == "in_progress" {
		return types.ProviderResponse{}, protocolErrorNoModel(fmt.Sprintf("openai response status is non-terminal: %s", status))
	}

	model, _ := body["model"].(string)
	if model == "" {
		model = "<unknown-model>"
	}

	var warnings []types.RuntimeWarning
	var content []types.ContentPart

	outputItems, _ := body["output"].([]any)
	for _, item := range outputItems {
		if err := decodeOutputItem(item, &content, &warnings); err != nil {
			return types.ProviderResponse{}, err
		}
	}

	if len(content) == 0 {
		warnings = append(warnings, types.RuntimeWarning{
			Code:    shared.WarnEmptyOutput,
			Message: "openai response contained no decodable output content",
		})
	}

	structuredOutput := decodeStructuredOutput(requestedFormat, content, &warnings, model)
	usage := decodeUsage(body["usage"], &warnings)

	var incompleteReason string
	if details, ok := body["incomplete_details"].(map[string]any); ok {
		incompleteReason, _ = details["reason"].(string)
	}

	finishReason, err := mapFinishReason(status, incompleteReason, content, &warnings)
	if err != nil {
		return types.ProviderResponse{}, err
	}

	return types.ProviderResponse{
		Output: types.AssistantOutput{
			Content:          content,
			StructuredOutput: structuredOutput,
		},
		Usage:        usage,
		Provider:     types.ProviderOpenAI,
		Model:        model,
		FinishReason: finishReason,
		Warnings:     warnings,
	}, nil
}

// ParseErrorEnvelope parses a raw response body as an OpenAI error envelope,
// returning nil if it doesn't match the shape.
func ParseErrorEnvelope(rawBody []byte) *ErrorEnvelope {
	var root map[string]any
	if err := json.Unmarshal(rawBody, &root); err != nil {
		return nil
	}
	return parseErrorValue(root)
}

// FormatErrorMessage renders an OpenAI error envelope as a human-readable
// message.
func FormatErrorMessage(envelope ErrorEnvelope) string {
	return formatErrorMessage(envelope)
}

// DecodeModelsList decodes an OpenAI `/v1/models` payload into ModelInfo
// entries, deduplicating by id and preserving first-seen order.
func DecodeModelsList(body map[string]any, capabilities types.ProviderCapabilities) ([]types.ModelInfo, *coreerrors.ProviderError) {
	data, ok := body["data"].([]any)
	if !ok {
		return nil, protocolErrorNoModel("openai models payload missing data array")
	}

	var discovered []types.ModelInfo
	seen := map[string]bool{}
	for index, entry := range data {
		model, ok := entry.(map[string]any)
		if !ok {
			return nil, protocolErrorNoModel(fmt.Sprintf("openai models payload contains non-object entry at index %d", index))
		}
		rawID, _ := model["id"].(string)
		modelID := strings.TrimSpace(rawID)
		if modelID == "" {
			return nil, protocolErrorNoModel(fmt.Sprintf("openai models payload entry has empty id at index %d", index))
		}
		if seen[modelID] {
			continue
		}
		seen[modelID] = true
		discovered = append(discovered, types.ModelInfo{
			Provider:                 types.ProviderOpenAI,
			ModelID:                  modelID,
			SupportsTools:            capabilities.SupportsTools,
			SupportsStructuredOutput: capabilities.SupportsStructuredOutput,
		})
	}
	return discovered, nil
}

func validateProviderHint(req types.ProviderRequest) *coreerrors.ProviderError {
	if req.Model.ProviderHint != nil && !req.Model.ProviderHint.Equal(types.ProviderOpenAI) {
		return protocolError(&req.Model.ModelID, fmt.Sprintf("provider_hint must be Openai, got %v", req.Model.ProviderHint))
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
	if len(req.Stop) == 0 {
		return nil
	}
	return protocolError(&req.Model.ModelID, "stop sequences are unsupported by OpenAI Responses API")
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

func mapResponseFormat(req types.ProviderRequest, warnings *[]types.RuntimeWarning) (map[string]any, *coreerrors.ProviderError) {
	switch req.ResponseFormat.Kind {
	case types.ResponseFormatText:
		return map[string]any{"type": "text"}, nil
	case types.ResponseFormatJSONObject:
		if !containsJSONKeyword(req.Messages) {
			return nil, protocolError(&req.Model.ModelID, "json_object response format requires the string 'JSON' in message text")
		}
		return map[string]any{"type": "json_object"}, nil
	case types.ResponseFormatJSONSchema:
		if strings.TrimSpace(req.ResponseFormat.Name) == "" {
			return nil, protocolError(&req.Model.ModelID, "json_schema response format requires a non-empty name")
		}
		strict := isStrictCompatibleSchema(req.ResponseFormat.Schema)
		if !strict {
			*warnings = append(*warnings, types.RuntimeWarning{
				Code:    warnFormatSchemaNotStrictCompatible,
				Message: fmt.Sprintf("response format schema '%s' is not strict-compatible; strict disabled", req.ResponseFormat.Name),
			})
		}
		return map[string]any{
			"type":   "json_schema",
			"name":   req.ResponseFormat.Name,
			"schema": req.ResponseFormat.Schema,
			"strict": strict,
		}, nil
	default:
		return nil, protocolError(&req.Model.ModelID, "unknown response format")
	}
}

func containsJSONKeyword(messages []types.Message) bool {
	for _, message := range messages {
		for _, part := range message.Content {
			if part.Kind == types.ContentText && strings.Contains(part.Text, "JSON") {
				return true
			}
		}
	}
	return false
}

func mapToolChoice(req types.ProviderRequest) (any, *coreerrors.ProviderError) {
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
			return nil, protocolError(&req.Model.ModelID, "tool_choice specific requires a non-empty tool name")
		}
		if !hasToolNamed(req.Tools, name) {
			return nil, protocolError(&req.Model.ModelID, fmt.Sprintf("tool_choice specific references unknown tool: %s", name))
		}
		return map[string]any{"type": "function", "name": name}, nil
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

func mapTools(req types.ProviderRequest, warnings *[]types.RuntimeWarning) ([]map[string]any, *coreerrors.ProviderError) {
	var tools []map[string]any
	for _, tool := range req.Tools {
		mapped, err := mapToolDefinition(tool, req.Model.ModelID, warnings)
		if err != nil {
			return nil, err
		}
		tools = append(tools, mapped)
	}
	return tools, nil
}

func mapToolDefinition(tool types.ToolDefinition, modelID string, warnings *[]types.RuntimeWarning) (map[string]any, *coreerrors.ProviderError) {
	if strings.TrimSpace(tool.Name) == "" {
		return nil, protocolError(&modelID, "tool definitions require non-empty names")
	}
	schemaObj, ok := tool.ParametersSchema.(map[string]any)
	if !ok {
		return nil, protocolError(&modelID, fmt.Sprintf("tool '%s' parameters_schema must be a JSON object", tool.Name))
	}

	strict := isStrictCompatibleSchema(schemaObj)
	if !strict {
		*warnings = append(*warnings, types.RuntimeWarning{
			Code:    warnToolSchemaNotStrictCompatible,
			Message: fmt.Sprintf("tool '%s' schema is not strict-compatible; strict disabled", tool.Name),
		})
	}

	payload := map[string]any{
		"type":       "function",
		"name":       tool.Name,
		"parameters": tool.ParametersSchema,
		"strict":     strict,
	}
	if tool.Description != nil {
		payload["description"] = *tool.Description
	}
	return payload, nil
}

func mapMessages(req types.ProviderRequest, warnings *[]types.RuntimeWarning) ([]map[string]any, *coreerrors.ProviderError) {
	var inputItems []map[string]any
	var seenToolCallIDs []string

	for _, message := range req.Messages {
		var messageParts []map[string]any

		for _, part := range message.Content {
			switch part.Kind {
			case types.ContentText:
				if message.Role == types.RoleTool {
					return nil, protocolError(&req.Model.ModelID, "tool role messages cannot contain plain text content")
				}
				partType := "input_text"
				if message.Role == types.RoleAssistant {
					partType = "output_text"
				}
				messageParts = append(messageParts, map[string]any{"type": partType, "text": part.Text})
			case types.ContentThinking:
				// reasoning does not round-trip through Responses API input
			case types.ContentToolCall:
				if message.Role != types.RoleAssistant {
					return nil, protocolError(&req.Model.ModelID, "tool_call content is only valid for assistant role messages")
				}
				inputItems = flushMessageItem(inputItems, message.Role, &messageParts)

				argumentsRaw, err := json.Marshal(part.ToolCall.ArgumentsJSON)
				if err != nil {
					return nil, coreerrors.NewSerializationError(types.ProviderOpenAI, &req.Model.ModelID, nil,
						fmt.Sprintf("failed to serialize tool_call arguments for '%s': %v", part.ToolCall.Name, err))
				}

				seenToolCallIDs = append(seenToolCallIDs, part.ToolCall.ID)
				inputItems = append(inputItems, map[string]any{
					"type":    "function_call",
					"call_id": part.ToolCall.ID,
					"name":    part.ToolCall.Name,
					"arguments": string(argumentsRaw),
				})
			case types.ContentToolResult:
				if message.Role != types.RoleTool {
					return nil, protocolError(&req.Model.ModelID, "tool_result content is only valid for tool role messages")
				}
				inputItems = flushMessageItem(inputItems, message.Role, &messageParts)

				if !containsString(seenToolCallIDs, part.ToolResult.ToolCallID) {
					return nil, protocolError(&req.Model.ModelID, fmt.Sprintf("tool_result_without_matching_tool_call: %s", part.ToolResult.ToolCallID))
				}

				output, err := serializeToolResultOutput(part.ToolResult, req, warnings)
				if err != nil {
					return nil, err
				}
				inputItems = append(inputItems, map[string]any{
					"type":    "function_call_output",
					"call_id": part.ToolResult.ToolCallID,
					"output":  output,
				})
			}
		}

		inputItems = flushMessageItem(inputItems, message.Role, &messageParts)
	}

	return inputItems, nil
}

func flushMessageItem(inputItems []map[string]any, role types.MessageRole, messageParts *[]map[string]any) []map[string]any {
	if len(*messageParts) == 0 {
		return inputItems
	}

	var roleValue string
	switch role {
	case types.RoleSystem:
		roleValue = "system"
	case types.RoleUser:
		roleValue = "user"
	case types.RoleAssistant:
		roleValue = "assistant"
	case types.RoleTool:
		*messageParts = nil
		return inputItems
	}

	content := *messageParts
	*messageParts = nil
	return append(inputItems, map[string]any{
		"type":    "message",
		"role":    roleValue,
		"content": content,
	})
}

func containsString(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func serializeToolResultOutput(toolResult types.ToolResult, req types.ProviderRequest, warnings *[]types.RuntimeWarning) (string, *coreerrors.ProviderError) {
	if toolResult.RawProviderContent != nil {
		if rawText, ok := toolResult.RawProviderContent.(string); ok {
			return rawText, nil
		}
		*warnings = append(*warnings, types.RuntimeWarning{
			Code:    shared.WarnToolResultRawProviderContentIgnored,
			Message: "tool_result raw_provider_content ignored for OpenAI because it is not a string",
		})
	}

	switch toolResult.Content.Kind {
	case types.ToolResultText:
		return toolResult.Content.Text, nil
	case types.ToolResultJSON:
		*warnings = append(*warnings, types.RuntimeWarning{
			Code:    shared.WarnToolResultCoerced,
			Message: "tool_result JSON content coerced to string for OpenAI function_call_output",
		})
		return shared.StableJSONString(toolResult.Content.JSONValue), nil
	case types.ToolResultParts:
		*warnings = append(*warnings, types.RuntimeWarning{
			Code:    shared.WarnToolResultCoerced,
			Message: "tool_result parts content coerced to newline-delimited string for OpenAI function_call_output",
		})
		var lines []string
		for _, part := range toolResult.Content.Parts {
			if part.Kind != types.ContentText {
				return "", protocolError(&req.Model.ModelID, "tool_result parts content for OpenAI must contain only text parts")
			}
			lines = append(lines, part.Text)
		}
		return strings.Join(lines, "\n"), nil
	default:
		return "", protocolError(&req.Model.ModelID, "unknown tool_result content kind")
	}
}

func isStrictCompatibleSchema(schema any) bool {
	obj, ok := schema.(map[string]any)
	if !ok {
		return false
	}
	if _, has := obj["anyOf"]; has {
		return false
	}
	if _, has := obj["oneOf"]; has {
		return false
	}
	if _, has := obj["allOf"]; has {
		return false
	}

	if !isObjectType(obj["type"]) {
		if items, has := obj["items"]; has {
			return isStrictCompatibleSchema(items)
		}
		return true
	}

	if additional, ok := obj["additionalProperties"].(bool); !ok || additional {
		return false
	}

	properties, _ := obj["properties"].(map[string]any)
	requiredRaw, _ := obj["required"].([]any)

	if len(properties) != len(requiredRaw) {
		return false
	}

	required := make(map[string]bool, len(requiredRaw))
	for _, r := range requiredRaw {
		if s, ok := r.(string); ok {
			required[s] = true
		}
	}

	keys := make([]string, 0, len(properties))
	for key := range properties {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if !required[key] {
			return false
		}
		if !isStrictCompatibleSchema(properties[key]) {
			return false
		}
	}
	return true
}

func isObjectType(typeValue any) bool {
	switch v := typeValue.(type) {
	case string:
		return v == "object"
	case []any:
		for _, entry := range v {
			if s, ok := entry.(string); ok && s == "object" {
				return true
			}
		}
	}
	return false
}

func decodeOutputItem(item any, content *[]types.ContentPart, warnings *[]types.RuntimeWarning) *coreerrors.ProviderError {
	itemObj, ok := item.(map[string]any)
	if !ok {
		return protocolErrorNoModel("output item must be an object")
	}
	itemType, _ := itemObj["type"].(string)
	if itemType == "" {
		return protocolErrorNoModel("output item missing type")
	}

	switch itemType {
	case "message":
		return decodeOutputMessage(itemObj, content, warnings)
	case "function_call":
		return decodeOutputToolCall(itemObj, content, warnings)
	case "reasoning":
		return nil
	case "refusal":
		if text, ok := extractRefusalText(itemObj); ok {
			*content = append(*content, types.TextPart(text))
			*warnings = append(*warnings, types.RuntimeWarning{
				Code:    warnModelRefusal,
				Message: "OpenAI refusal content mapped to canonical text",
			})
		}
		return nil
	default:
		return protocolErrorNoModel(fmt.Sprintf("unsupported output item type: %s", itemType))
	}
}

func decodeOutputMessage(itemObj map[string]any, content *[]types.ContentPart, warnings *[]types.RuntimeWarning) *coreerrors.ProviderError {
	parts, _ := itemObj["content"].([]any)
	for _, part := range parts {
		partObj, ok := part.(map[string]any)
		if !ok {
			return protocolErrorNoModel("output message content part must be an object")
		}
		partType, _ := partObj["type"].(string)
		if partType == "" {
			return protocolErrorNoModel("output message content part missing type")
		}

		switch partType {
		case "output_text":
			text, _ := partObj["text"].(string)
			if text != "" {
				*content = append(*content, types.TextPart(text))
			}
		case "reasoning":
		case "refusal":
			if text, ok := extractRefusalText(partObj); ok {
				*content = append(*content, types.TextPart(text))
				*warnings = append(*warnings, types.RuntimeWarning{
					Code:    warnModelRefusal,
					Message: "OpenAI refusal content mapped to canonical text",
				})
			}
		default:
			return protocolErrorNoModel(fmt.Sprintf("unsupported output message content part type: %s", partType))
		}
	}
	return nil
}

func decodeOutputToolCall(itemObj map[string]any, content *[]types.ContentPart, warnings *[]types.RuntimeWarning) *coreerrors.ProviderError {
	callID, _ := itemObj["call_id"].(string)
	if callID == "" {
		return protocolErrorNoModel("function_call output item missing call_id")
	}
	name, _ := itemObj["name"].(string)
	if name == "" {
		return protocolErrorNoModel("function_call output item missing name")
	}
	arguments, _ := itemObj["arguments"].(string)
	if arguments == "" {
		return protocolErrorNoModel("function_call output item missing arguments")
	}

	var argumentsJSON any
	if err := json.Unmarshal([]byte(arguments), &argumentsJSON); err != nil {
		*warnings = append(*warnings, types.RuntimeWarning{
			Code:    shared.WarnToolArgumentsInvalidJSON,
			Message: "OpenAI tool call arguments were not valid JSON; stored raw string",
		})
		argumentsJSON = arguments
	}

	*content = append(*content, types.ToolCallPart(types.ToolCall{
		ID:            callID,
		Name:          name,
		ArgumentsJSON: argumentsJSON,
	}))
	return nil
}

func extractRefusalText(obj map[string]any) (string, bool) {
	if text, ok := obj["text"].(string); ok && text != "" {
		return text, true
	}
	if text, ok := obj["refusal"].(string); ok && text != "" {
		return text, true
	}
	return "", false
}

func decodeStructuredOutput(requestedFormat types.ResponseFormat, content []types.ContentPart, warnings *[]types.RuntimeWarning, model string) any {
	if requestedFormat.Kind == types.ResponseFormatText {
		return nil
	}

	var textPieces []string
	for _, part := range content {
		if part.Kind == types.ContentText {
			textPieces = append(textPieces, part.Text)
		}
	}
	joinedText := strings.Join(textPieces, "\n")
	if strings.TrimSpace(joinedText) == "" {
		return nil
	}

	var parsed any
	if err := json.Unmarshal([]byte(joinedText), &parsed); err != nil {
		*warnings = append(*warnings, types.RuntimeWarning{
			Code:    shared.WarnStructuredOutputParseFailed,
			Message: fmt.Sprintf("failed to parse structured output JSON for model %s: %v", model, err),
		})
		return nil
	}

	switch requestedFormat.Kind {
	case types.ResponseFormatJSONObject:
		if _, ok := parsed.(map[string]any); ok {
			return parsed
		}
		*warnings = append(*warnings, types.RuntimeWarning{
			Code:    shared.WarnStructuredOutputParseFailed,
			Message: "structured output was valid JSON but not an object",
		})
		return nil
	case types.ResponseFormatJSONSchema:
		return parsed
	default:
		return nil
	}
}

func decodeUsage(usage any, warnings *[]types.RuntimeWarning) types.Usage {
	usageObj, ok := usage.(map[string]any)
	if !ok {
		*warnings = append(*warnings, types.RuntimeWarning{
			Code:    shared.WarnUsageMissing,
			Message: "openai response missing usage details",
		})
		return types.Usage{}
	}

	result := types.Usage{
		InputTokens:  asU64Ptr(usageObj["input_tokens"]),
		OutputTokens: asU64Ptr(usageObj["output_tokens"]),
		TotalTokens:  asU64Ptr(usageObj["total_tokens"]),
	}
	if details, ok := usageObj["input_tokens_details"].(map[string]any); ok {
		result.CachedInputTokens = asU64Ptr(details["cached_tokens"])
	}
	return result
}

func asU64Ptr(value any) *uint64 {
	num, ok := value.(float64)
	if !ok || num < 0 {
		return nil
	}
	v := uint64(num)
	return &v
}

func mapFinishReason(status string, incompleteReason string, content []types.ContentPart, warnings *[]types.RuntimeWarning) (types.FinishReason, *coreerrors.ProviderError) {
	switch status {
	case "completed":
		if shouldFinishWithToolCalls(content) {
			return types.FinishToolCalls, nil
		}
		return types.FinishStop, nil
	case "incomplete":
		switch incompleteReason {
		case "max_output_tokens", "max_tokens":
			*warnings = append(*warnings, types.RuntimeWarning{
				Code:    warnIncompleteMaxOutputTokens,
				Message: "openai response incomplete because max_output_tokens was reached",
			})
			return types.FinishLength, nil
		case "content_filter":
			*warnings = append(*warnings, types.RuntimeWarning{
				Code:    warnIncompleteContentFilter,
				Message: "openai response incomplete because of content filtering",
			})
			return types.FinishContentFilter, nil
		case "":
			*warnings = append(*warnings, types.RuntimeWarning{
				Code:    warnIncompleteMissingReason,
				Message: "openai response incomplete with no reason",
			})
			return types.FinishOther, nil
		default:
			*warnings = append(*warnings, types.RuntimeWarning{
				Code:    warnIncompleteUnknownReason,
				Message: fmt.Sprintf("openai response incomplete for reason: %s", incompleteReason),
			})
			return types.FinishOther, nil
		}
	case "cancelled":
		return "", protocolErrorNoModel("openai response status is cancelled")
	case "failed":
		return "", protocolErrorNoModel("openai response status is failed")
	case "in_progress", "queued":
		return "", protocolErrorNoModel(fmt.Sprintf("openai response status is non-terminal: %s", status))
	default:
		return "", protocolErrorNoModel(fmt.Sprintf("unknown openai response status: %s", status))
	}
}

func shouldFinishWithToolCalls(content []types.ContentPart) bool {
	sawToolCall := false
	sawTextAfterToolCall := false
	for _, part := range content {
		switch {
		case part.Kind == types.ContentToolCall:
			sawToolCall = true
		case part.Kind == types.ContentText && sawToolCall && strings.TrimSpace(part.Text) != "":
			sawTextAfterToolCall = true
		}
	}
	return sawToolCall && !sawTextAfterToolCall
}

func parseErrorValue(root map[string]any) *ErrorEnvelope {
	errorObj, ok := root["error"].(map[string]any)
	if !ok {
		return nil
	}
	message := valueToString(errorObj["message"])
	if message == nil {
		defaultMsg := "openai response reported an error"
		message = &defaultMsg
	}
	return &ErrorEnvelope{
		Message:   *message,
		Code:      valueToString(errorObj["code"]),
		ErrorType: valueToString(errorObj["type"]),
		Param:     valueToString(errorObj["param"]),
	}
}

func valueToString(value any) *string {
	switch v := value.(type) {
	case string:
		trimmed := strings.TrimSpace(v)
		if trimmed == "" {
			return nil
		}
		return &trimmed
	case float64:
		s := fmt.Sprintf("%v", v)
		return &s
	case bool:
		s := fmt.Sprintf("%v", v)
		return &s
	default:
		return nil
	}
}

func formatErrorMessage(envelope ErrorEnvelope) string {
	var context []string
	if envelope.Code != nil {
		context = append(context, fmt.Sprintf("code=%s", *envelope.Code))
	}
	if envelope.ErrorType != nil {
		context = append(context, fmt.Sprintf("type=%s", *envelope.ErrorType))
	}
	if envelope.Param != nil {
		context = append(context, fmt.Sprintf("param=%s", *envelope.Param))
	}
	if len(context) == 0 {
		return fmt.Sprintf("openai error: %s", envelope.Message)
	}
	return fmt.Sprintf("openai error: %s [%s]", envelope.Message, strings.Join(context, ", "))
}

func protocolError(modelID *string, message string) *coreerrors.ProviderError {
	return coreerrors.NewProtocolError(types.ProviderOpenAI, modelID, message)
}

func protocolErrorNoModel(message string) *coreerrors.ProviderError {
	return coreerrors.NewProtocolError(types.ProviderOpenAI, nil, message)
}
