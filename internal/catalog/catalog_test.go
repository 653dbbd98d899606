package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	coreerrors "github.com/Davincible/provider-runtime-go/internal/core/errors"
	"github.com/Davincible/provider-runtime-go/internal/core/types"
)

func strPtr(s string) *string { return &s }

func TestMergeStaticAndRemoteCatalog_StaticWinsIdentity(t *testing.T) {
	static := types.ModelCatalog{Models: []types.ModelInfo{
		{Provider: types.ProviderOpenAI, ModelID: "gpt-5-mini", DisplayName: strPtr("static name")},
	}}
	remote := types.ModelCatalog{Models: []types.ModelInfo{
		{Provider: types.ProviderOpenAI, ModelID: "gpt-5-mini", DisplayName: strPtr("remote name")},
	}}

	merged := MergeStaticAndRemoteCatalog(static, remote)
	require.Len(t, merged.Models, 1)
	assert.Equal(t, "static name", *merged.Models[0].DisplayName)
}

func TestMergeStaticAndRemoteCatalog_BackfillsMissingOptionalFields(t *testing.T) {
	window := uint32(128000)
	static := types.ModelCatalog{Models: []types.ModelInfo{
		{Provider: types.ProviderOpenAI, ModelID: "gpt-5-mini"},
	}}
	remote := types.ModelCatalog{Models: []types.ModelInfo{
		{Provider: types.ProviderOpenAI, ModelID: "gpt-5-mini", DisplayName: strPtr("GPT-5 Mini"), ContextWindow: &window},
	}}

	merged := MergeStaticAndRemoteCatalog(static, remote)
	require.Len(t, merged.Models, 1)
	require.NotNil(t, merged.Models[0].DisplayName)
	assert.Equal(t, "GPT-5 Mini", *merged.Models[0].DisplayName)
	require.NotNil(t, merged.Models[0].ContextWindow)
	assert.Equal(t, window, *merged.Models[0].ContextWindow)
}

func TestMergeStaticAndRemoteCatalog_AppendsRemoteOnlyModels(t *testing.T) {
	static := types.ModelCatalog{}
	remote := types.ModelCatalog{Models: []types.ModelInfo{
		{Provider: types.ProviderAnthropic, ModelID: "claude-x"},
	}}
	merged := MergeStaticAndRemoteCatalog(static, remote)
	require.Len(t, merged.Models, 1)
	assert.Equal(t, "claude-x", merged.Models[0].ModelID)
}

func TestResolveModelProvider_SingleCandidateNoHint(t *testing.T) {
	c := types.ModelCatalog{Models: []types.ModelInfo{
		{Provider: types.ProviderOpenAI, ModelID: "gpt-5-mini"},
	}}
	provider, err := ResolveModelProvider(c, "gpt-5-mini", nil)
	require.Nil(t, err)
	assert.True(t, provider.Equal(types.ProviderOpenAI))
}

func TestResolveModelProvider_ModelNotFound(t *testing.T) {
	_, err := ResolveModelProvider(types.ModelCatalog{}, "missing", nil)
	require.NotNil(t, err)
	assert.Equal(t, coreerrors.RoutingModelNotFound, err.Kind)
}

func TestResolveModelProvider_AmbiguousWithoutHint(t *testing.T) {
	c := types.ModelCatalog{Models: []types.ModelInfo{
		{Provider: types.ProviderOpenAI, ModelID: "shared"},
		{Provider: types.ProviderOpenRouter, ModelID: "shared"},
	}}
	_, err := ResolveModelProvider(c, "shared", nil)
	require.NotNil(t, err)
	assert.Equal(t, coreerrors.RoutingAmbiguousModelRoute, err.Kind)
}

func TestResolveModelProvider_HintNarrowsAmbiguity(t *testing.T) {
	c := types.ModelCatalog{Models: []types.ModelInfo{
		{Provider: types.ProviderOpenAI, ModelID: "shared"},
		{Provider: types.ProviderOpenRouter, ModelID: "shared"},
	}}
	hint := types.ProviderOpenRouter
	provider, err := ResolveModelProvider(c, "shared", &hint)
	require.Nil(t, err)
	assert.True(t, provider.Equal(types.ProviderOpenRouter))
}

func TestResolveModelProvider_HintMismatchAgainstSoleCandidate(t *testing.T) {
	c := types.ModelCatalog{Models: []types.ModelInfo{
		{Provider: types.ProviderOpenAI, ModelID: "gpt-5-mini"},
	}}
	hint := types.ProviderAnthropic
	_, err := ResolveModelProvider(c, "gpt-5-mini", &hint)
	require.NotNil(t, err)
	assert.Equal(t, coreerrors.RoutingProviderHintMismatch, err.Kind)
}

func TestResolveModelProvider_HintRejectedAgainstMultipleCandidates(t *testing.T) {
	c := types.ModelCatalog{Models: []types.ModelInfo{
		{Provider: types.ProviderOpenAI, ModelID: "shared"},
		{Provider: types.ProviderOpenRouter, ModelID: "shared"},
	}}
	hint := types.ProviderAnthropic
	_, err := ResolveModelProvider(c, "shared", &hint)
	require.NotNil(t, err)
	assert.Equal(t, coreerrors.RoutingAmbiguousModelRoute, err.Kind)
}

func TestExportCatalogJSON_StableRegardlessOfInputOrder(t *testing.T) {
	c1 := types.ModelCatalog{Models: []types.ModelInfo{
		{Provider: types.ProviderOpenRouter, ModelID: "b"},
		{Provider: types.ProviderOpenAI, ModelID: "a"},
	}}
	c2 := types.ModelCatalog{Models: []types.ModelInfo{
		{Provider: types.ProviderOpenAI, ModelID: "a"},
		{Provider: types.ProviderOpenRouter, ModelID: "b"},
	}}

	json1, err1 := ExportCatalogJSON(c1)
	json2, err2 := ExportCatalogJSON(c2)
	require.Nil(t, err1)
	require.Nil(t, err2)
	assert.Equal(t, json1, json2)
}

func TestBuiltinStaticCatalog_HasOneModelPerProvider(t *testing.T) {
	c := BuiltinStaticCatalog()
	require.Len(t, c.Models, 3)
	for _, m := range c.Models {
		assert.True(t, m.SupportsTools)
		assert.True(t, m.SupportsStructuredOutput)
	}
}
