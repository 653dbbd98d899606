// Package adapter declares the contract every provider binding implements:
// a stable identity, a static capability declaration, and the two
// operations the runtime drives (running a request, discovering models).
// It exists only as an extension point; v0 carries no loop orchestration,
// session state, or provider-protocol leakage in this contract.
package adapter

import (
	"context"

	coreerrors "github.com/Davincible/provider-runtime-go/internal/core/errors"
	"github.com/Davincible/provider-runtime-go/internal/core/types"
)

// ProviderAdapter translates canonical runtime requests into a provider's
// wire protocol and canonical responses back out. Implementations live one
// per provider package (openai, anthropic, openrouter).
type ProviderAdapter interface {
	// ID returns the stable provider identifier used for routing and
	// diagnostics.
	ID() types.ProviderID

	// Capabilities declares the support flags the runtime consults before
	// dispatching a request.
	Capabilities() types.ProviderCapabilities

	// Run executes a single non-streaming canonical request.
	Run(ctx context.Context, req types.ProviderRequest, adapterCtx types.AdapterContext) (types.ProviderResponse, *coreerrors.ProviderError)

	// DiscoverModels lists the provider's models, mapped into canonical
	// model records.
	DiscoverModels(ctx context.Context, adapterCtx types.AdapterContext) ([]types.ModelInfo, *coreerrors.ProviderError)
}
