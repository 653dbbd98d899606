package openrouter

import (
	"context"
	"fmt"
	"os"
	"strings"

	coreerrors "github.com/Davincible/provider-runtime-go/internal/core/errors"
	"github.com/Davincible/provider-runtime-go/internal/core/types"
	"github.com/Davincible/provider-runtime-go/internal/transport"
)

const (
	defaultBaseURL    = "https://openrouter.ai"
	apiKeyEnvVar      = "OPENROUTER_API_KEY"
	apiKeyMetadataKey = "openrouter.api_key"
)

// Adapter binds the OpenRouter translator to the shared HTTP transport,
// resolving credentials and injecting the bearer-token and optional
// attribution headers the transport layer expects.
type Adapter struct {
	transport   *transport.HTTPTransport
	baseURL     string
	apiKey      *string
	options     Options
	httpReferer string
	xTitle      string
}

// New constructs an Adapter using the default OpenRouter base URL and no
// aggregator options.
func New(t *transport.HTTPTransport) *Adapter {
	return &Adapter{transport: t, baseURL: defaultBaseURL}
}

// WithBaseURL overrides the default API base URL (useful for proxies/mocks).
func (a *Adapter) WithBaseURL(baseURL string) *Adapter {
	a.baseURL = normalizeBaseURL(baseURL)
	return a
}

// WithAPIKey sets an explicit API key, taking precedence over adapter
// context metadata and the environment variable.
func (a *Adapter) WithAPIKey(apiKey string) *Adapter {
	a.apiKey = &apiKey
	return a
}

// WithOptions sets the aggregator-only translation options (fallback
// models, provider preferences, plugins, parallel_tool_calls).
func (a *Adapter) WithOptions(options Options) *Adapter {
	a.options = options
	return a
}

// WithAttribution sets the optional HTTP-Referer/X-Title attribution
// headers OpenRouter uses to attribute traffic to an application.
func (a *Adapter) WithAttribution(httpReferer, xTitle string) *Adapter {
	a.httpReferer = httpReferer
	a.xTitle = xTitle
	return a
}

// ID returns the provider identity this adapter serves.
func (a *Adapter) ID() types.ProviderID { return types.ProviderOpenRouter }

// Capabilities reports the static feature flags of the OpenRouter
// aggregator.
func (a *Adapter) Capabilities() types.ProviderCapabilities {
	return types.ProviderCapabilities{
		SupportsTools:            true,
		SupportsStructuredOutput: true,
		SupportsThinking:         true,
		SupportsRemoteDiscovery:  true,
	}
}

// Run executes a single chat request against the OpenRouter
// chat-completions endpoint.
func (a *Adapter) Run(ctx context.Context, req types.ProviderRequest, adapterCtx types.AdapterContext) (types.ProviderResponse, *coreerrors.ProviderError) {
	apiKey, err := a.resolveAPIKey(adapterCtx, &req.Model.ModelID)
	if err != nil {
		return types.ProviderResponse{}, err
	}

	encoded, err := EncodeRequest(req, a.options)
	if err != nil {
		return types.ProviderResponse{}, err
	}

	callCtx := a.attachHeaders(adapterCtx, apiKey)
	model := req.Model.ModelID

	rawBody, err := transport.PostJSON[map[string]any, map[string]any](ctx, a.transport, types.ProviderOpenRouter, &model, a.chatCompletionsURL(), encoded.Body, callCtx)
	if err != nil {
		return types.ProviderResponse{}, a.reclassifyError(err, &model)
	}

	response, decodeErr := DecodeResponse(rawBody, req.ResponseFormat)
	if decodeErr != nil {
		return types.ProviderResponse{}, decodeErr
	}
	response.Warnings = append(append([]types.RuntimeWarning{}, encoded.Warnings...), response.Warnings...)
	return response, nil
}

// DiscoverModels lists models from the OpenRouter /api/v1/models endpoint.
func (a *Adapter) DiscoverModels(ctx context.Context, adapterCtx types.AdapterContext) ([]types.ModelInfo, *coreerrors.ProviderError) {
	apiKey, _ := a.resolveAPIKey(adapterCtx, nil)
	callCtx := a.attachHeaders(adapterCtx, apiKey)

	rawBody, err := transport.GetJSON[map[string]any](ctx, a.transport, types.ProviderOpenRouter, nil, a.modelsURL(), callCtx)
	if err != nil {
		return nil, a.reclassifyError(err, nil)
	}
	return DecodeModelsList(rawBody)
}

func (a *Adapter) chatCompletionsURL() string {
	return a.baseURL + "/api/v1/chat/completions"
}

func (a *Adapter) modelsURL() string {
	return a.baseURL + "/api/v1/models"
}

func (a *Adapter) attachHeaders(adapterCtx types.AdapterContext, apiKey string) types.AdapterContext {
	callCtx := adapterCtx
	if apiKey != "" {
		callCtx = callCtx.WithMetadata("transport.auth.bearer_token", apiKey)
	}
	if a.httpReferer != "" {
		callCtx = callCtx.WithMetadata("transport.header.http-referer", a.httpReferer)
	}
	if a.xTitle != "" {
		callCtx = callCtx.WithMetadata("transport.header.x-title", a.xTitle)
	}
	return callCtx
}

func (a *Adapter) resolveAPIKey(adapterCtx types.AdapterContext, model *string) (string, *coreerrors.ProviderError) {
	if a.apiKey != nil {
		if key, ok := sanitizeAPIKey(*a.apiKey); ok {
			return key, nil
		}
		return "", a.missingAPIKeyError(model)
	}
	if key, ok := sanitizeAPIKey(adapterCtx.Metadata[apiKeyMetadataKey]); ok {
		return key, nil
	}
	if key, ok := sanitizeAPIKey(os.Getenv(apiKeyEnvVar)); ok {
		return key, nil
	}
	return "", a.missingAPIKeyError(model)
}

func (a *Adapter) missingAPIKeyError(model *string) *coreerrors.ProviderError {
	return coreerrors.NewProtocolError(types.ProviderOpenRouter, model,
		fmt.Sprintf("missing OpenRouter API key; set %s metadata or %s env var", apiKeyMetadataKey, apiKeyEnvVar))
}

func sanitizeAPIKey(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	return trimmed, trimmed != ""
}

func normalizeBaseURL(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/")
}

// reclassifyError upgrades a 401/403 status error into CredentialsRejected
// and reparses OpenRouter's structured error envelope for a normalized
// message.
func (a *Adapter) reclassifyError(err *coreerrors.ProviderError, model *string) *coreerrors.ProviderError {
	if err.Kind != coreerrors.ProviderStatus {
		return err
	}

	message := err.Message
	if envelope := ParseErrorEnvelope([]byte(err.Message)); envelope != nil {
		message = FormatErrorMessage(*envelope)
	}

	if err.StatusCode == 401 || err.StatusCode == 403 {
		return coreerrors.NewCredentialsRejected(types.ProviderOpenRouter, err.RequestID, message)
	}
	return coreerrors.NewStatusError(types.ProviderOpenRouter, model, err.StatusCode, err.RequestID, message)
}
