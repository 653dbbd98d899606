package handoff

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/provider-runtime-go/internal/core/types"
)

func TestNormalizeHandoffMessages_WrapsForeignThinking(t *testing.T) {
	origin := types.ProviderAnthropic
	messages := []types.Message{
		{Role: types.RoleAssistant, Content: []types.ContentPart{
			types.ThinkingPart("secret reasoning", &origin),
		}},
	}

	out := NormalizeHandoffMessages(messages, types.ProviderOpenAI)
	require.Len(t, out, 1)
	require.Len(t, out[0].Content, 1)
	assert.Equal(t, types.ContentText, out[0].Content[0].Kind)
	assert.Equal(t, "<thinking>secret reasoning</thinking>", out[0].Content[0].Text)
}

func TestNormalizeHandoffMessages_PreservesSameFamilyThinking(t *testing.T) {
	origin := types.ProviderOpenAI
	messages := []types.Message{
		{Role: types.RoleAssistant, Content: []types.ContentPart{
			types.ThinkingPart("chain of thought", &origin),
		}},
	}

	out := NormalizeHandoffMessages(messages, types.ProviderOpenRouter)
	require.Len(t, out, 1)
	assert.Equal(t, types.ContentThinking, out[0].Content[0].Kind)
	assert.Equal(t, "chain of thought", out[0].Content[0].ThinkingText)
}

func TestNormalizeHandoffMessages_NoOriginIsTreatedAsForeign(t *testing.T) {
	messages := []types.Message{
		{Role: types.RoleAssistant, Content: []types.ContentPart{
			types.ThinkingPart("unattributed", nil),
		}},
	}

	out := NormalizeHandoffMessages(messages, types.ProviderOpenAI)
	require.Len(t, out, 1)
	assert.Equal(t, types.ContentText, out[0].Content[0].Kind)
	assert.Equal(t, "<thinking>unattributed</thinking>", out[0].Content[0].Text)
}

func TestNormalizeHandoffMessages_NonAssistantMessagesPassThrough(t *testing.T) {
	messages := []types.Message{
		{Role: types.RoleUser, Content: []types.ContentPart{types.TextPart("hi")}},
	}

	out := NormalizeHandoffMessages(messages, types.ProviderOpenAI)
	assert.Equal(t, messages, out)
}

func TestNormalizeHandoffMessages_UnchangedMessageReturnedAsIs(t *testing.T) {
	messages := []types.Message{
		{Role: types.RoleAssistant, Content: []types.ContentPart{types.TextPart("plain text")}},
	}

	out := NormalizeHandoffMessages(messages, types.ProviderOpenAI)
	require.Len(t, out, 1)
	assert.Equal(t, messages[0], out[0])
}

func TestNormalizeHandoffMessages_IsIdempotent(t *testing.T) {
	origin := types.ProviderAnthropic
	messages := []types.Message{
		{Role: types.RoleAssistant, Content: []types.ContentPart{
			types.ThinkingPart("secret reasoning", &origin),
		}},
	}

	once := NormalizeHandoffMessages(messages, types.ProviderOpenAI)
	twice := NormalizeHandoffMessages(once, types.ProviderOpenAI)
	assert.Equal(t, once, twice)
}

func TestNormalizeHandoffMessages_MixedContentOnlyRewritesThinkingParts(t *testing.T) {
	origin := types.ProviderAnthropic
	messages := []types.Message{
		{Role: types.RoleAssistant, Content: []types.ContentPart{
			types.TextPart("intro"),
			types.ThinkingPart("secret reasoning", &origin),
		}},
	}

	out := NormalizeHandoffMessages(messages, types.ProviderOpenAI)
	require.Len(t, out[0].Content, 2)
	assert.Equal(t, "intro", out[0].Content[0].Text)
	assert.Equal(t, types.ContentText, out[0].Content[1].Kind)
}

