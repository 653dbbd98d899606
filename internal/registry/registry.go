// Package registry holds the set of registered provider adapters and the
// currently active model catalog, and resolves which adapter should serve
// a given request.
package registry

import (
	"context"
	"sync"

	"github.com/Davincible/provider-runtime-go/internal/catalog"
	"github.com/Davincible/provider-runtime-go/internal/core/adapter"
	coreerrors "github.com/Davincible/provider-runtime-go/internal/core/errors"
	"github.com/Davincible/provider-runtime-go/internal/core/types"
)

// ProviderRegistry tracks registered adapters plus the merged static/remote
// model catalog. The active catalog is guarded by a RWMutex: readers
// (resolution) and the rare refresh writer never block each other for long.
type ProviderRegistry struct {
	adapters        []adapter.ProviderAdapter
	staticCatalog   types.ModelCatalog
	defaultProvider *types.ProviderID

	mu            sync.RWMutex
	activeCatalog types.ModelCatalog
}

// New constructs a registry seeded with the given static catalog and an
// optional fallback provider used when routing can't otherwise resolve a
// model.
func New(staticCatalog types.ModelCatalog, defaultProvider *types.ProviderID) *ProviderRegistry {
	return &ProviderRegistry{
		staticCatalog:   staticCatalog,
		defaultProvider: defaultProvider,
		activeCatalog:   staticCatalog,
	}
}

// NewWithDefaults constructs a registry using the built-in static catalog
// and no default provider.
func NewWithDefaults() *ProviderRegistry {
	return New(catalog.BuiltinStaticCatalog(), nil)
}

// Register adds an adapter, replacing any previously registered adapter for
// the same provider id. Registration order is otherwise preserved; it does
// not by itself determine iteration order (see DiscoverModels, which sorts
// by provider order before iterating).
func (r *ProviderRegistry) Register(a adapter.ProviderAdapter) {
	for i, existing := range r.adapters {
		if existing.ID().Equal(a.ID()) {
			r.adapters[i] = a
			return
		}
	}
	r.adapters = append(r.adapters, a)
}

// ResolveAdapter returns the adapter registered for provider, or
// ProviderNotRegistered if none has been.
func (r *ProviderRegistry) ResolveAdapter(provider types.ProviderID) (adapter.ProviderAdapter, *coreerrors.RoutingError) {
	for _, a := range r.adapters {
		if a.ID().Equal(provider) {
			return a, nil
		}
	}
	return nil, coreerrors.NewProviderNotRegistered(provider)
}

// ResolveProvider decides which provider should serve model. A provider
// hint on the model ref is honored directly (bypassing the catalog
// entirely) as long as an adapter is registered for it; otherwise
// resolution falls back to the active catalog, and on ModelNotFound to the
// registry's default provider if one is configured.
func (r *ProviderRegistry) ResolveProvider(model types.ModelRef) (types.ProviderID, *coreerrors.RoutingError) {
	if model.ProviderHint != nil {
		if _, err := r.ResolveAdapter(*model.ProviderHint); err == nil {
			return *model.ProviderHint, nil
		}
	}

	active := r.readActiveCatalog()
	provider, routingErr := catalog.ResolveModelProvider(active, model.ModelID, nil)
	if routingErr == nil {
		return provider, nil
	}

	if routingErr.Kind == coreerrors.RoutingModelNotFound && r.defaultProvider != nil {
		if _, err := r.ResolveAdapter(*r.defaultProvider); err == nil {
			return *r.defaultProvider, nil
		}
	}

	return types.ProviderID{}, routingErr
}

// DiscoverModels returns the active catalog unchanged unless opts.Remote
// and opts.RefreshCache are both set, in which case it queries every
// registered adapter that supports remote discovery (filtered by
// opts.IncludeProvider if non-empty), merges the results with the static
// catalog, and atomically replaces the active catalog before returning it.
func (r *ProviderRegistry) DiscoverModels(ctx context.Context, opts types.DiscoveryOptions, adapterCtx types.AdapterContext) (types.ModelCatalog, *coreerrors.RuntimeError) {
	if !opts.Remote || !opts.RefreshCache {
		return r.readActiveCatalog(), nil
	}

	sorted := make([]adapter.ProviderAdapter, len(r.adapters))
	copy(sorted, r.adapters)
	sortAdaptersByProviderOrder(sorted)

	var discovered []types.ModelInfo
	for _, a := range sorted {
		if !includesProvider(opts.IncludeProvider, a.ID()) {
			continue
		}
		if !a.Capabilities().SupportsRemoteDiscovery {
			continue
		}
		models, err := a.DiscoverModels(ctx, adapterCtx)
		if err != nil {
			return types.ModelCatalog{}, coreerrors.FromProviderError(err)
		}
		discovered = append(discovered, models...)
	}

	merged := catalog.MergeStaticAndRemoteCatalog(r.staticCatalog, types.ModelCatalog{Models: discovered})
	r.writeActiveCatalog(merged)
	return merged, nil
}

func (r *ProviderRegistry) readActiveCatalog() types.ModelCatalog {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.activeCatalog
}

func (r *ProviderRegistry) writeActiveCatalog(c types.ModelCatalog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.activeCatalog = c
}

func includesProvider(include []types.ProviderID, provider types.ProviderID) bool {
	if len(include) == 0 {
		return true
	}
	for _, candidate := range include {
		if candidate.Equal(provider) {
			return true
		}
	}
	return false
}

func sortAdaptersByProviderOrder(adapters []adapter.ProviderAdapter) {
	for i := 1; i < len(adapters); i++ {
		for j := i; j > 0 && adapters[j].ID().Order() < adapters[j-1].ID().Order(); j-- {
			adapters[j], adapters[j-1] = adapters[j-1], adapters[j]
		}
	}
}
