package openai

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
	defaultBaseURL    = "https://api.openai.com"
	apiKeyEnvVar      = "OPENAI_API_KEY"
	apiKeyMetadataKey = "openai.api_key"
)

// Adapter binds the OpenAI translator to the shared HTTP transport,
// resolving credentials and injecting the bearer-token header the
// transport layer expects.
type Adapter struct {
	transport *transport.HTTPTransport
	baseURL   string
	apiKey    *string
}

// New constructs an Adapter using the default OpenAI base URL.
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

// ID returns the provider identity this adapter serves.
func (a *Adapter) ID() types.ProviderID { return types.ProviderOpenAI }

// Capabilities reports the static feature flags of the OpenAI Responses API.
func (a *Adapter) Capabilities() types.ProviderCapabilities {
	return types.ProviderCapabilities{
		SupportsTools:            true,
		SupportsStructuredOutput: true,
		SupportsThinking:         false,
		SupportsRemoteDiscovery:  true,
	}
}

// Run executes a single chat request against the OpenAI Responses API.
func (a *Adapter) Run(ctx context.Context, req types.ProviderRequest, adapterCtx types.AdapterContext) (types.ProviderResponse, *coreerrors.ProviderError) {
	apiKey, err := a.resolveAPIKey(adapterCtx, &req.Model.ModelID)
	if err != nil {
		return types.ProviderResponse{}, err
	}

	encoded, err := EncodeRequest(req)
	if err != nil {
		return types.ProviderResponse{}, err
	}

	callCtx := adapterCtx.WithMetadata("transport.auth.bearer_token", apiKey)
	model := req.Model.ModelID

	rawBody, err := transport.PostJSON[map[string]any, map[string]any](ctx, a.transport, types.ProviderOpenAI, &model, a.responsesURL(), encoded.Body, callCtx)
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

// DiscoverModels lists models from the OpenAI /v1/models endpoint.
func (a *Adapter) DiscoverModels(ctx context.Context, adapterCtx types.AdapterContext) ([]types.ModelInfo, *coreerrors.ProviderError) {
	apiKey, err := a.resolveAPIKey(adapterCtx, nil)
	if err != nil {
		return nil, err
	}
	callCtx := adapterCtx.WithMetadata("transport.auth.bearer_token", apiKey)

	rawBody, err := transport.GetJSON[map[string]any](ctx, a.transport, types.ProviderOpenAI, nil, a.modelsURL(), callCtx)
	if err != nil {
		return nil, a.reclassifyError(err, nil)
	}
	return DecodeModelsList(rawBody, a.Capabilities())
}

func (a *Adapter) responsesURL() string {
	return a.baseURL + "/v1/responses"
}

func (a *Adapter) modelsURL() string {
	return a.baseURL + "/v1/models"
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
	return coreerrors.NewProtocolError(types.ProviderOpenAI, model,
		fmt.Sprintf("missing OpenAI API key; set %s metadata or %s env var", apiKeyMetadataKey, apiKeyEnvVar))
}

func sanitizeAPIKey(value string) (string, bool) {
	trimmed := strings.TrimSpace(value)
	return trimmed, trimmed != ""
}

func normalizeBaseURL(baseURL string) string {
	return strings.TrimSuffix(baseURL, "/")
}

// reclassifyError upgrades a 401/403 status error into CredentialsRejected
// and reparses OpenAI's structured error envelope for a normalized message,
// matching the adapter-layer contract in the error taxonomy.
func (a *Adapter) reclassifyError(err *coreerrors.ProviderError, model *string) *coreerrors.ProviderError {
	if err.Kind != coreerrors.ProviderStatus {
		return err
	}

	message := err.Message
	if envelope := ParseErrorEnvelope([]byte(err.Message)); envelope != nil {
		message = FormatErrorMessage(*envelope)
	}

	if err.StatusCode == 401 || err.StatusCode == 403 {
		return coreerrors.NewCredentialsRejected(types.ProviderOpenAI, err.RequestID, message)
	}
	return coreerrors.NewStatusError(types.ProviderOpenAI, model, err.StatusCode, err.RequestID, message)
}
