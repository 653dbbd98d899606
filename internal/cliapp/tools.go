package cliapp

import (
	"time"

	"github.com/Davincible/provider-runtime-go/internal/core/types"
)

// builtInTools returns the tool surface every chat session exposes to the
// model.
func builtInTools() []types.ToolDefinition {
	description := "Get the current UNIX timestamp in seconds."
	return []types.ToolDefinition{
		{
			Name:        "time_now",
			Description: &description,
			ParametersSchema: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"label": map[string]any{"type": "string"},
				},
				"required":             []string{},
				"additionalProperties": false,
			},
		},
	}
}

// executeTool runs a single built-in tool call and returns its result.
// Unknown tool names produce an error payload rather than a failure, so
// the model sees the failure and can recover within the same turn.
func executeTool(call types.ToolCall) types.ToolResult {
	var value any
	switch call.Name {
	case "time_now":
		value = map[string]any{
			"unix_seconds": time.Now().Unix(),
			"label":        extractStringArg(call.ArgumentsJSON, "label"),
			"source":       "chat_builtin_time_now",
		}
	default:
		value = map[string]any{"error": "unknown tool '" + call.Name + "'"}
	}

	return types.ToolResult{
		ToolCallID: call.ID,
		Content:    types.ToolResultJSONContent(value),
	}
}

func extractStringArg(argumentsJSON any, key string) *string {
	obj, ok := argumentsJSON.(map[string]any)
	if !ok {
		return nil
	}
	value, ok := obj[key].(string)
	if !ok {
		return nil
	}
	return &value
}
