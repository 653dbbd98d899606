// Package catalog implements model-catalog merging, export, and provider
// routing: the pieces of the runtime that decide which provider serves a
// given model id when a caller does not pin one explicitly.
package catalog

import (
	"encoding/json"
	"sort"

	coreerrors "github.com/Davincible/provider-runtime-go/internal/core/errors"
	"github.com/Davincible/provider-runtime-go/internal/core/types"
)

// MergeStaticAndRemoteCatalog combines a static (built-in or configured)
// catalog with a freshly discovered remote one. The static entry always
// wins identity: if a (provider, model_id) pair exists in both, the static
// metadata is kept, but any optional field the static entry left nil is
// back-filled from the remote entry. Remote-only models are appended.
func MergeStaticAndRemoteCatalog(static, remote types.ModelCatalog) types.ModelCatalog {
	merged := make([]types.ModelInfo, len(static.Models))
	copy(merged, static.Models)

	for _, remoteModel := range remote.Models {
		if index := findModelIndex(merged, remoteModel.Provider, remoteModel.ModelID); index >= 0 {
			merged[index] = fillMissingOptionalMetadata(merged[index], remoteModel)
			continue
		}
		merged = append(merged, remoteModel)
	}

	sortModels(merged)
	return types.ModelCatalog{Models: merged}
}

// ResolveModelProvider determines which provider should serve modelID,
// given a catalog and an optional caller-supplied hint. A hint is only
// honored if it appears among the catalog's candidates for this model;
// otherwise the hint is either rejected (ProviderHintMismatch, if exactly
// one other candidate exists) or folds into the generic ambiguity/not-found
// cases.
func ResolveModelProvider(catalog types.ModelCatalog, modelID string, hint *types.ProviderID) (types.ProviderID, *coreerrors.RoutingError) {
	candidates := uniqueProvidersForModel(catalog, modelID)

	if len(candidates) == 0 {
		return types.ProviderID{}, coreerrors.NewModelNotFound(modelID)
	}

	if hint != nil {
		for _, candidate := range candidates {
			if candidate.Equal(*hint) {
				return candidate, nil
			}
		}
		if len(candidates) == 1 {
			return types.ProviderID{}, coreerrors.NewProviderHintMismatch(modelID, *hint, candidates[0])
		}
		return types.ProviderID{}, coreerrors.NewAmbiguousModelRoute(modelID, candidates)
	}

	if len(candidates) == 1 {
		return candidates[0], nil
	}
	return types.ProviderID{}, coreerrors.NewAmbiguousModelRoute(modelID, candidates)
}

// ExportCatalogJSON renders a catalog as deterministic, pretty-printed JSON:
// models sorted by provider order then model id, so repeated exports of an
// unchanged catalog produce byte-identical output.
func ExportCatalogJSON(catalog types.ModelCatalog) (string, *coreerrors.RuntimeError) {
	sorted := make([]types.ModelInfo, len(catalog.Models))
	copy(sorted, catalog.Models)
	sortModels(sorted)

	body, err := json.MarshalIndent(types.ModelCatalog{Models: sorted}, "", "  ")
	if err != nil {
		return "", &coreerrors.RuntimeError{Kind: coreerrors.RuntimeSerializationError, Message: err.Error()}
	}
	return string(body), nil
}

// BuiltinStaticCatalog is the fallback seed catalog used when no explicit
// static catalog has been configured: one representative model per
// supported provider family.
func BuiltinStaticCatalog() types.ModelCatalog {
	gptDisplayName := "GPT-5 Mini"
	claudeDisplayName := "Claude 3.7 Sonnet"
	autoDisplayName := "OpenRouter Auto"

	return types.ModelCatalog{
		Models: []types.ModelInfo{
			{
				Provider:                 types.ProviderOpenAI,
				ModelID:                  "gpt-5-mini",
				DisplayName:              &gptDisplayName,
				SupportsTools:            true,
				SupportsStructuredOutput: true,
			},
			{
				Provider:                 types.ProviderAnthropic,
				ModelID:                  "claude-3-7-sonnet",
				DisplayName:              &claudeDisplayName,
				SupportsTools:            true,
				SupportsStructuredOutput: true,
			},
			{
				Provider:                 types.ProviderOpenRouter,
				ModelID:                  "openrouter/auto",
				DisplayName:              &autoDisplayName,
				SupportsTools:            true,
				SupportsStructuredOutput: true,
			},
		},
	}
}

func findModelIndex(models []types.ModelInfo, provider types.ProviderID, modelID string) int {
	for index, model := range models {
		if model.Provider.Equal(provider) && model.ModelID == modelID {
			return index
		}
	}
	return -1
}

func fillMissingOptionalMetadata(existing, remote types.ModelInfo) types.ModelInfo {
	if existing.DisplayName == nil {
		existing.DisplayName = remote.DisplayName
	}
	if existing.ContextWindow == nil {
		existing.ContextWindow = remote.ContextWindow
	}
	if existing.MaxOutputTokens == nil {
		existing.MaxOutputTokens = remote.MaxOutputTokens
	}
	return existing
}

func uniqueProvidersForModel(catalog types.ModelCatalog, modelID string) []types.ProviderID {
	var candidates []types.ProviderID
	seen := make(map[string]bool)
	for _, model := range catalog.Models {
		if model.ModelID != modelID {
			continue
		}
		key := model.Provider.String()
		if seen[key] {
			continue
		}
		seen[key] = true
		candidates = append(candidates, model.Provider)
	}
	sortProviders(candidates)
	return candidates
}

func sortModels(models []types.ModelInfo) {
	sort.SliceStable(models, func(i, j int) bool {
		orderI, orderJ := models[i].Provider.Order(), models[j].Provider.Order()
		if orderI != orderJ {
			return orderI < orderJ
		}
		if models[i].Provider.String() != models[j].Provider.String() {
			return models[i].Provider.String() < models[j].Provider.String()
		}
		return models[i].ModelID < models[j].ModelID
	})
}

func sortProviders(providers []types.ProviderID) {
	sort.SliceStable(providers, func(i, j int) bool {
		orderI, orderJ := providers[i].Order(), providers[j].Order()
		if orderI != orderJ {
			return orderI < orderJ
		}
		return providers[i].String() < providers[j].String()
	})
}
