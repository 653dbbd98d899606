// Package handoff rewrites a message list when its next reader is a
// different provider family, so provider-specific content such as
// reasoning blocks survives the handoff in a portable textual form.
package handoff

import (
	"fmt"

	"github.com/Davincible/provider-runtime-go/internal/core/types"
)

// sameFamily groups providers that share a thinking representation closely
// enough that a thinking block originating in one needs no rewriting when
// handed to the other. OpenAI and OpenRouter both speak OpenAI-shaped
// thinking payloads; Anthropic is its own family.
func sameFamily(a, b types.ProviderID) bool {
	if a.Equal(b) {
		return true
	}
	isOpenAIFamily := func(p types.ProviderID) bool {
		return p.Equal(types.ProviderOpenAI) || p.Equal(types.ProviderOpenRouter)
	}
	return isOpenAIFamily(a) && isOpenAIFamily(b)
}

// NormalizeHandoffMessages rewrites messages for handoff to targetProvider.
// Every `thinking` content part in an assistant message whose recorded
// origin provider is not in the same family as targetProvider is replaced
// by a text part wrapped as `<thinking>...</thinking>`; a thinking part
// with no recorded origin is treated as foreign and always wrapped, since
// its portability can't otherwise be verified. tool_call, tool_result, and
// non-assistant messages always pass through unchanged.
//
// The transformation is idempotent: after the first pass no thinking parts
// with a foreign origin remain, so normalizing the result again for the
// same target returns it unchanged.
func NormalizeHandoffMessages(messages []types.Message, targetProvider types.ProviderID) []types.Message {
	normalized := make([]types.Message, len(messages))
	for i, message := range messages {
		normalized[i] = normalizeMessage(message, targetProvider)
	}
	return normalized
}

func normalizeMessage(message types.Message, targetProvider types.ProviderID) types.Message {
	if message.Role != types.RoleAssistant {
		return message
	}

	content := make([]types.ContentPart, len(message.Content))
	changed := false
	for i, part := range message.Content {
		if part.Kind != types.ContentThinking || thinkingSurvivesHandoff(part, targetProvider) {
			content[i] = part
			continue
		}
		changed = true
		content[i] = types.TextPart(wrapThinking(part.ThinkingText))
	}

	if !changed {
		return message
	}
	return types.Message{Role: message.Role, Content: content}
}

func thinkingSurvivesHandoff(part types.ContentPart, targetProvider types.ProviderID) bool {
	return part.ThinkingProvider != nil && sameFamily(*part.ThinkingProvider, targetProvider)
}

func wrapThinking(text string) string {
	return fmt.Sprintf("<thinking>%s</thinking>", text)
}
