// Package errors implements the two-layer error taxonomy used across the
// runtime: ConfigError and RoutingError at the edges, ProviderError at the
// adapter layer, and RuntimeError as the facade-level superset.
package errors

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Davincible/provider-runtime-go/internal/core/types"
)

// ConfigErrorKind discriminates ConfigError.
type ConfigErrorKind string

const (
	ConfigMissingDefaultProvider ConfigErrorKind = "missing_default_provider"
	ConfigInvalidProviderConfig  ConfigErrorKind = "invalid_provider_config"
	ConfigInvalidTimeout         ConfigErrorKind = "invalid_timeout"
	ConfigInvalidRetryPolicy     ConfigErrorKind = "invalid_retry_policy"
	ConfigInvalidPricingConfig   ConfigErrorKind = "invalid_pricing_config"
)

// ConfigError reports invalid builder/config input, surfaced before any I/O.
type ConfigError struct {
	Kind      ConfigErrorKind
	Provider  *types.ProviderID
	Reason    string
	TimeoutMs uint64
}

func (e *ConfigError) Error() string {
	switch e.Kind {
	case ConfigMissingDefaultProvider:
		return "missing default provider configuration"
	case ConfigInvalidProviderConfig:
		return fmt.Sprintf("invalid provider config for %v: %s", e.Provider, e.Reason)
	case ConfigInvalidTimeout:
		return fmt.Sprintf("invalid timeout: %d ms", e.TimeoutMs)
	case ConfigInvalidRetryPolicy:
		return fmt.Sprintf("invalid retry policy: %s", e.Reason)
	case ConfigInvalidPricingConfig:
		return fmt.Sprintf("invalid pricing config: %s", e.Reason)
	default:
		return fmt.Sprintf("config error: %s", e.Reason)
	}
}

func NewInvalidTimeout(timeoutMs uint64) *ConfigError {
	return &ConfigError{Kind: ConfigInvalidTimeout, TimeoutMs: timeoutMs}
}

func NewInvalidRetryPolicy(reason string) *ConfigError {
	return &ConfigError{Kind: ConfigInvalidRetryPolicy, Reason: reason}
}

func NewMissingDefaultProvider() *ConfigError {
	return &ConfigError{Kind: ConfigMissingDefaultProvider}
}

func NewInvalidProviderConfig(provider types.ProviderID, reason string) *ConfigError {
	return &ConfigError{Kind: ConfigInvalidProviderConfig, Provider: &provider, Reason: reason}
}

func NewInvalidPricingConfig(reason string) *ConfigError {
	return &ConfigError{Kind: ConfigInvalidPricingConfig, Reason: reason}
}

// RoutingErrorKind discriminates RoutingError.
type RoutingErrorKind string

const (
	RoutingProviderNotRegistered RoutingErrorKind = "provider_not_registered"
	RoutingModelNotFound         RoutingErrorKind = "model_not_found"
	RoutingAmbiguousModelRoute   RoutingErrorKind = "ambiguous_model_route"
	RoutingProviderHintMismatch  RoutingErrorKind = "provider_hint_mismatch"
)

// RoutingError reports a routing/registry failure.
type RoutingError struct {
	Kind         RoutingErrorKind
	Provider     types.ProviderID
	Model        string
	Candidates   []types.ProviderID
	ProviderHint types.ProviderID
	Resolved     types.ProviderID
}

func (e *RoutingError) Error() string {
	switch e.Kind {
	case RoutingProviderNotRegistered:
		return fmt.Sprintf("provider not registered: %v", e.Provider)
	case RoutingModelNotFound:
		return fmt.Sprintf("model route not found: %s", e.Model)
	case RoutingAmbiguousModelRoute:
		return fmt.Sprintf("ambiguous model route for %s: %s", e.Model, formatProviderCandidates(e.Candidates))
	case RoutingProviderHintMismatch:
		return fmt.Sprintf("provider hint mismatch for model %s: hint=%v resolved=%v", e.Model, e.ProviderHint, e.Resolved)
	default:
		return "routing error"
	}
}

func NewProviderNotRegistered(provider types.ProviderID) *RoutingError {
	return &RoutingError{Kind: RoutingProviderNotRegistered, Provider: provider}
}

func NewModelNotFound(model string) *RoutingError {
	return &RoutingError{Kind: RoutingModelNotFound, Model: model}
}

func NewAmbiguousModelRoute(model string, candidates []types.ProviderID) *RoutingError {
	return &RoutingError{Kind: RoutingAmbiguousModelRoute, Model: model, Candidates: candidates}
}

func NewProviderHintMismatch(model string, hint, resolved types.ProviderID) *RoutingError {
	return &RoutingError{Kind: RoutingProviderHintMismatch, Model: model, ProviderHint: hint, Resolved: resolved}
}

func formatProviderCandidates(candidates []types.ProviderID) string {
	rendered := make([]string, 0, len(candidates))
	for _, c := range candidates {
		rendered = append(rendered, c.String())
	}
	sort.Strings(rendered)
	return strings.Join(rendered, ", ")
}

// ProviderErrorKind discriminates ProviderError, the adapter layer's error
// taxonomy member.
type ProviderErrorKind string

const (
	ProviderCredentialsRejected ProviderErrorKind = "credentials_rejected"
	ProviderTransport           ProviderErrorKind = "transport"
	ProviderStatus              ProviderErrorKind = "status"
	ProviderProtocol            ProviderErrorKind = "protocol"
	ProviderSerialization       ProviderErrorKind = "serialization"
)

// ProviderError is the adapter-layer error taxonomy member.
type ProviderError struct {
	Kind       ProviderErrorKind
	Provider   types.ProviderID
	Model      *string
	StatusCode uint16
	RequestID  *string
	Message    string
}

func (e *ProviderError) Error() string {
	var label string
	switch e.Kind {
	case ProviderCredentialsRejected:
		label = "provider credentials rejected"
		return label + formatContext(&e.Provider, nil, e.RequestID, nil) + ": " + e.Message
	case ProviderTransport:
		label = "provider transport error"
		return label + formatContext(&e.Provider, nil, e.RequestID, nil) + ": " + e.Message
	case ProviderStatus:
		label = "provider status error"
		status := e.StatusCode
		return label + formatContext(&e.Provider, e.Model, e.RequestID, &status) + ": " + e.Message
	case ProviderProtocol:
		label = "provider protocol error"
		return label + formatContext(&e.Provider, e.Model, e.RequestID, nil) + ": " + e.Message
	case ProviderSerialization:
		label = "provider serialization error"
		return label + formatContext(&e.Provider, e.Model, e.RequestID, nil) + ": " + e.Message
	default:
		return e.Message
	}
}

func NewCredentialsRejected(provider types.ProviderID, requestID *string, message string) *ProviderError {
	return &ProviderError{Kind: ProviderCredentialsRejected, Provider: provider, RequestID: requestID, Message: message}
}

func NewTransportError(provider types.ProviderID, requestID *string, message string) *ProviderError {
	return &ProviderError{Kind: ProviderTransport, Provider: provider, RequestID: requestID, Message: message}
}

func NewStatusError(provider types.ProviderID, model *string, statusCode uint16, requestID *string, message string) *ProviderError {
	return &ProviderError{Kind: ProviderStatus, Provider: provider, Model: model, StatusCode: statusCode, RequestID: requestID, Message: message}
}

func NewProtocolError(provider types.ProviderID, model *string, message string) *ProviderError {
	return &ProviderError{Kind: ProviderProtocol, Provider: provider, Model: model, Message: message}
}

func NewSerializationError(provider types.ProviderID, model *string, requestID *string, message string) *ProviderError {
	return &ProviderError{Kind: ProviderSerialization, Provider: provider, Model: model, RequestID: requestID, Message: message}
}

// RuntimeErrorKind discriminates RuntimeError, the facade-layer superset.
type RuntimeErrorKind string

const (
	RuntimeConfigError           RuntimeErrorKind = "config_error"
	RuntimeCredentialMissing     RuntimeErrorKind = "credential_missing"
	RuntimeRoutingError          RuntimeErrorKind = "routing_error"
	RuntimeCapabilityMismatch    RuntimeErrorKind = "capability_mismatch"
	RuntimeTransportError        RuntimeErrorKind = "transport_error"
	RuntimeProviderProtocolError RuntimeErrorKind = "provider_protocol_error"
	RuntimeSerializationError    RuntimeErrorKind = "serialization_error"
	RuntimeCostCalculationError  RuntimeErrorKind = "cost_calculation_error"
)

// RuntimeError is the facade-layer error taxonomy member, the superset
// callers of Runtime.Run/DiscoverModels observe.
type RuntimeError struct {
	Kind          RuntimeErrorKind
	ConfigErr     *ConfigError
	RoutingErr    *RoutingError
	Provider      *types.ProviderID
	Model         *string
	Capability    string
	RequestID     *string
	StatusCode    *uint16
	Message       string
	EnvCandidates []string
}

func (e *RuntimeError) Error() string {
	switch e.Kind {
	case RuntimeConfigError:
		return e.ConfigErr.Error()
	case RuntimeRoutingError:
		return e.RoutingErr.Error()
	case RuntimeCredentialMissing:
		return fmt.Sprintf("credential missing [provider=%v%s]", providerOrNil(e.Provider), formatEnvCandidates(e.EnvCandidates))
	case RuntimeCapabilityMismatch:
		return fmt.Sprintf("capability mismatch [provider=%v, model=%s, capability=%s]", providerOrNil(e.Provider), valueOrEmpty(e.Model), e.Capability)
	case RuntimeTransportError:
		return "transport error" + formatContext(e.Provider, e.Model, e.RequestID, nil) + ": " + e.Message
	case RuntimeProviderProtocolError:
		return "provider protocol error" + formatContext(e.Provider, e.Model, e.RequestID, e.StatusCode) + ": " + e.Message
	case RuntimeSerializationError:
		return "serialization error" + formatContext(e.Provider, e.Model, e.RequestID, nil) + ": " + e.Message
	case RuntimeCostCalculationError:
		return "cost calculation error" + formatContext(e.Provider, e.Model, nil, nil) + ": " + e.Message
	default:
		return e.Message
	}
}

// Unwrap allows errors.As to reach the wrapped ConfigError/RoutingError.
func (e *RuntimeError) Unwrap() error {
	switch e.Kind {
	case RuntimeConfigError:
		return e.ConfigErr
	case RuntimeRoutingError:
		return e.RoutingErr
	default:
		return nil
	}
}

func FromConfigError(err *ConfigError) *RuntimeError {
	return &RuntimeError{Kind: RuntimeConfigError, ConfigErr: err}
}

func FromRoutingError(err *RoutingError) *RuntimeError {
	return &RuntimeError{Kind: RuntimeRoutingError, RoutingErr: err}
}

// NewCredentialMissing builds a CredentialMissing error, sorting and
// deduplicating (and dropping empty) env var candidates.
func NewCredentialMissing(provider types.ProviderID, envCandidates []string) *RuntimeError {
	cleaned := make([]string, 0, len(envCandidates))
	for _, c := range envCandidates {
		if c != "" {
			cleaned = append(cleaned, c)
		}
	}
	sort.Strings(cleaned)
	cleaned = dedupSorted(cleaned)
	return &RuntimeError{Kind: RuntimeCredentialMissing, Provider: &provider, EnvCandidates: cleaned}
}

func NewCapabilityMismatch(provider types.ProviderID, model, capability string) *RuntimeError {
	return &RuntimeError{Kind: RuntimeCapabilityMismatch, Provider: &provider, Model: &model, Capability: capability}
}

func NewCostCalculationError(provider *types.ProviderID, model *string, message string) *RuntimeError {
	return &RuntimeError{Kind: RuntimeCostCalculationError, Provider: provider, Model: model, Message: message}
}

// FromProviderError is the total mapping from the adapter-layer
// ProviderError into the facade-layer RuntimeError.
func FromProviderError(err *ProviderError) *RuntimeError {
	provider := err.Provider
	switch err.Kind {
	case ProviderTransport:
		return &RuntimeError{Kind: RuntimeTransportError, Provider: &provider, RequestID: err.RequestID, Message: err.Message}
	case ProviderSerialization:
		return &RuntimeError{Kind: RuntimeSerializationError, Provider: &provider, Model: err.Model, RequestID: err.RequestID, Message: err.Message}
	case ProviderCredentialsRejected:
		return &RuntimeError{Kind: RuntimeProviderProtocolError, Provider: &provider, RequestID: err.RequestID, Message: err.Message}
	case ProviderStatus:
		status := err.StatusCode
		return &RuntimeError{Kind: RuntimeProviderProtocolError, Provider: &provider, Model: err.Model, RequestID: err.RequestID, StatusCode: &status, Message: err.Message}
	case ProviderProtocol:
		return &RuntimeError{Kind: RuntimeProviderProtocolError, Provider: &provider, Model: err.Model, RequestID: err.RequestID, Message: err.Message}
	default:
		return &RuntimeError{Kind: RuntimeProviderProtocolError, Provider: &provider, Model: err.Model, Message: err.Message}
	}
}

func dedupSorted(sorted []string) []string {
	out := sorted[:0:0]
	var prev string
	first := true
	for _, v := range sorted {
		if first || v != prev {
			out = append(out, v)
			prev = v
			first = false
		}
	}
	return out
}

func providerOrNil(p *types.ProviderID) string {
	if p == nil {
		return "<nil>"
	}
	return p.String()
}

func valueOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatEnvCandidates(candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	return ", env_candidates=" + strings.Join(candidates, ", ")
}

func formatContext(provider *types.ProviderID, model, requestID *string, statusCode *uint16) string {
	var parts []string
	if provider != nil {
		parts = append(parts, fmt.Sprintf("provider=%v", *provider))
	}
	if model != nil {
		parts = append(parts, fmt.Sprintf("model=%s", *model))
	}
	if requestID != nil {
		parts = append(parts, fmt.Sprintf("request_id=%s", *requestID))
	}
	if statusCode != nil {
		parts = append(parts, fmt.Sprintf("status_code=%d", *statusCode))
	}
	if len(parts) == 0 {
		return ""
	}
	return " [" + strings.Join(parts, ", ") + "]"
}
