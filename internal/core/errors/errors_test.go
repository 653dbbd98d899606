package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Davincible/provider-runtime-go/internal/core/types"
)

func TestProviderError_RenderedMessageIncludesContext(t *testing.T) {
	model := "gpt-5-mini"
	requestID := "req-123"
	status := uint16(429)

	err := NewStatusError(types.ProviderOpenAI, &model, status, &requestID, "too many requests")
	msg := err.Error()

	assert.Contains(t, msg, "provider=openai")
	assert.Contains(t, msg, "model=gpt-5-mini")
	assert.Contains(t, msg, "request_id=req-123")
	assert.Contains(t, msg, "status_code=429")
	assert.Contains(t, msg, "too many requests")
}

func TestProviderError_TransportHasNoStatusCode(t *testing.T) {
	err := NewTransportError(types.ProviderAnthropic, nil, "connection refused")
	assert.NotContains(t, err.Error(), "status_code")
}

func TestFromProviderError_TotalMapping(t *testing.T) {
	model := "m"
	requestID := "rid"
	status := uint16(500)

	cases := []struct {
		name string
		in   *ProviderError
		want RuntimeErrorKind
	}{
		{"transport", NewTransportError(types.ProviderOpenAI, &requestID, "x"), RuntimeTransportError},
		{"serialization", NewSerializationError(types.ProviderOpenAI, &model, &requestID, "x"), RuntimeSerializationError},
		{"credentials_rejected", NewCredentialsRejected(types.ProviderOpenAI, &requestID, "x"), RuntimeProviderProtocolError},
		{"status", NewStatusError(types.ProviderOpenAI, &model, status, &requestID, "x"), RuntimeProviderProtocolError},
		{"protocol", NewProtocolError(types.ProviderOpenAI, &model, "x"), RuntimeProviderProtocolError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := FromProviderError(tc.in)
			assert.Equal(t, tc.want, got.Kind)
		})
	}
}

func TestFromProviderError_StatusCarriesCode(t *testing.T) {
	status := uint16(503)
	got := FromProviderError(NewStatusError(types.ProviderOpenAI, nil, status, nil, "unavailable"))
	require.NotNil(t, got.StatusCode)
	assert.Equal(t, status, *got.StatusCode)
}

func TestFromProviderError_CredentialsRejectedHasNoStatusCode(t *testing.T) {
	got := FromProviderError(NewCredentialsRejected(types.ProviderOpenAI, nil, "bad key"))
	assert.Nil(t, got.StatusCode)
}

func TestNewCredentialMissing_SortsDedupsAndDropsEmpty(t *testing.T) {
	err := NewCredentialMissing(types.ProviderOpenAI, []string{"OPENAI_KEY", "", "API_KEY", "OPENAI_KEY"})
	assert.Equal(t, []string{"API_KEY", "OPENAI_KEY"}, err.EnvCandidates)
	assert.Contains(t, err.Error(), "env_candidates=API_KEY, OPENAI_KEY")
}

func TestRuntimeError_UnwrapReachesWrappedError(t *testing.T) {
	configErr := NewMissingDefaultProvider()
	runtimeErr := FromConfigError(configErr)
	assert.Same(t, configErr, runtimeErr.Unwrap())

	routingErr := NewModelNotFound("gpt-5")
	runtimeErr = FromRoutingError(routingErr)
	assert.Same(t, routingErr, runtimeErr.Unwrap())
}

func TestRoutingError_AmbiguousRouteListsSortedCandidates(t *testing.T) {
	err := NewAmbiguousModelRoute("shared-model", []types.ProviderID{types.ProviderOpenRouter, types.ProviderAnthropic})
	assert.Contains(t, err.Error(), "anthropic, openrouter")
}

func TestNewCapabilityMismatch(t *testing.T) {
	err := NewCapabilityMismatch(types.ProviderOpenAI, "gpt-5", "tools")
	assert.Equal(t, RuntimeCapabilityMismatch, err.Kind)
	assert.Contains(t, err.Error(), "capability=tools")
}
