// Package runtime is the facade a caller drives: a single Run/DiscoverModels
// surface over a registry of provider adapters, with capability
// preconditions and pricing attached uniformly regardless of provider.
package runtime

import (
	"context"

	"github.com/Davincible/provider-runtime-go/internal/catalog"
	"github.com/Davincible/provider-runtime-go/internal/core/adapter"
	coreerrors "github.com/Davincible/provider-runtime-go/internal/core/errors"
	"github.com/Davincible/provider-runtime-go/internal/core/types"
	"github.com/Davincible/provider-runtime-go/internal/pricing"
	"github.com/Davincible/provider-runtime-go/internal/registry"
)

// Runtime is the immutable, built facade. It is safe for concurrent use:
// Run and DiscoverModels calls are independent and share only the
// registry's guarded active catalog.
type Runtime struct {
	registry     *registry.ProviderRegistry
	adapterCtx   types.AdapterContext
	pricingTable *pricing.Table
}

// Builder assembles a Runtime. Adapters registered with the same provider
// id are kept in last-registered-wins order, matching registry.Register.
type Builder struct {
	adapters        []adapter.ProviderAdapter
	staticCatalog   types.ModelCatalog
	defaultProvider *types.ProviderID
	pricingTable    *pricing.Table
	adapterCtx      types.AdapterContext
}

// NewBuilder starts a Runtime builder seeded with the built-in static
// catalog and no default provider.
func NewBuilder() *Builder {
	return &Builder{staticCatalog: catalog.BuiltinStaticCatalog()}
}

// WithAdapter registers a provider adapter.
func (b *Builder) WithAdapter(a adapter.ProviderAdapter) *Builder {
	b.adapters = append(b.adapters, a)
	return b
}

// WithDefaultProvider sets the fallback provider used when a model can't
// otherwise be routed.
func (b *Builder) WithDefaultProvider(provider types.ProviderID) *Builder {
	b.defaultProvider = &provider
	return b
}

// WithModelCatalog overrides the static catalog seed.
func (b *Builder) WithModelCatalog(c types.ModelCatalog) *Builder {
	b.staticCatalog = c
	return b
}

// WithPricingTable attaches a pricing table; without one, Run never
// attaches a cost breakdown that the adapter didn't already provide.
func (b *Builder) WithPricingTable(table pricing.Table) *Builder {
	b.pricingTable = &table
	return b
}

// WithAdapterContext sets the shared AdapterContext forwarded to every
// adapter call.
func (b *Builder) WithAdapterContext(ctx types.AdapterContext) *Builder {
	b.adapterCtx = ctx
	return b
}

// Build constructs the immutable Runtime. Registering further adapters
// against the builder after Build has been called has no effect on the
// returned Runtime.
func (b *Builder) Build() *Runtime {
	reg := registry.New(b.staticCatalog, b.defaultProvider)
	for _, a := range b.adapters {
		reg.Register(a)
	}
	return &Runtime{registry: reg, adapterCtx: b.adapterCtx, pricingTable: b.pricingTable}
}

// Run resolves a provider and adapter for request.Model, checks capability
// preconditions, executes the request, and attaches a pricing-estimated
// cost if the adapter didn't already report one.
func (rt *Runtime) Run(ctx context.Context, request types.ProviderRequest) (types.ProviderResponse, *coreerrors.RuntimeError) {
	provider, routingErr := rt.registry.ResolveProvider(request.Model)
	if routingErr != nil {
		return types.ProviderResponse{}, coreerrors.FromRoutingError(routingErr)
	}

	a, routingErr := rt.registry.ResolveAdapter(provider)
	if routingErr != nil {
		return types.ProviderResponse{}, coreerrors.FromRoutingError(routingErr)
	}

	capabilities := a.Capabilities()
	if len(request.Tools) > 0 && !capabilities.SupportsTools {
		return types.ProviderResponse{}, coreerrors.NewCapabilityMismatch(provider, request.Model.ModelID, "tools")
	}
	if request.ResponseFormat.Kind != types.ResponseFormatText && !capabilities.SupportsStructuredOutput {
		return types.ProviderResponse{}, coreerrors.NewCapabilityMismatch(provider, request.Model.ModelID, "structured_output")
	}

	response, providerErr := a.Run(ctx, request, rt.adapterCtx)
	if providerErr != nil {
		return types.ProviderResponse{}, coreerrors.FromProviderError(providerErr)
	}

	if response.Cost == nil && rt.pricingTable != nil {
		cost, warnings := pricing.EstimateCost(response.Provider, response.Model, response.Usage, *rt.pricingTable)
		response.Cost = cost
		response.Warnings = append(response.Warnings, warnings...)
	}

	return response, nil
}

// DiscoverModels delegates to the registry, returning the refreshed
// catalog when opts requests a remote refresh, or the cached one
// otherwise.
func (rt *Runtime) DiscoverModels(ctx context.Context, opts types.DiscoveryOptions) (types.ModelCatalog, *coreerrors.RuntimeError) {
	return rt.registry.DiscoverModels(ctx, opts, rt.adapterCtx)
}

// ExportCatalogJSON serializes catalog with models sorted by
// (provider_order, model_id), independent of the input ordering.
func (rt *Runtime) ExportCatalogJSON(c types.ModelCatalog) (string, *coreerrors.RuntimeError) {
	return catalog.ExportCatalogJSON(c)
}
