// Package types defines the canonical, provider-independent data model
// shared by every translator, adapter, and the runtime facade.
package types

import "sort"

// ProviderID identifies a concrete language-model provider. It is a closed
// tag for the three in-scope providers plus an extensible Other case for
// providers registered outside the built-in set.
type ProviderID struct {
	kind  providerKind
	other string
}

type providerKind int

const (
	providerOpenAI providerKind = iota
	providerAnthropic
	providerOpenRouter
	providerOther
)

var (
	ProviderOpenAI     = ProviderID{kind: providerOpenAI}
	ProviderAnthropic  = ProviderID{kind: providerAnthropic}
	ProviderOpenRouter = ProviderID{kind: providerOpenRouter}
)

// OtherProvider constructs an extensible provider id carrying a name.
func OtherProvider(name string) ProviderID {
	return ProviderID{kind: providerOther, other: name}
}

// IsOther reports whether this id is the extensible variant, returning the
// carried name.
func (p ProviderID) IsOther() (string, bool) {
	if p.kind == providerOther {
		return p.other, true
	}
	return "", false
}

func (p ProviderID) String() string {
	switch p.kind {
	case providerOpenAI:
		return "openai"
	case providerAnthropic:
		return "anthropic"
	case providerOpenRouter:
		return "openrouter"
	default:
		return "other(" + p.other + ")"
	}
}

// Order returns the deterministic sort rank used for catalog and registry
// iteration: openai=0, anthropic=1, openrouter=2, other=3.
func (p ProviderID) Order() int {
	switch p.kind {
	case providerOpenAI:
		return 0
	case providerAnthropic:
		return 1
	case providerOpenRouter:
		return 2
	default:
		return 3
	}
}

func (p ProviderID) Equal(other ProviderID) bool {
	return p.kind == other.kind && p.other == other.other
}

// MarshalJSON serializes the provider id with a "type" discriminant in
// snake_case, matching the canonical tagged-union convention.
func (p ProviderID) MarshalJSON() ([]byte, error) {
	switch p.kind {
	case providerOpenAI:
		return []byte(`{"type":"openai"}`), nil
	case providerAnthropic:
		return []byte(`{"type":"anthropic"}`), nil
	case providerOpenRouter:
		return []byte(`{"type":"openrouter"}`), nil
	default:
		return marshalTagged("other", struct {
			Name string `json:"name"`
		}{Name: p.other})
	}
}

func (p *ProviderID) UnmarshalJSON(data []byte) error {
	tag, err := readTag(data)
	if err != nil {
		return err
	}
	switch tag.Type {
	case "openai":
		*p = ProviderOpenAI
	case "anthropic":
		*p = ProviderAnthropic
	case "openrouter":
		*p = ProviderOpenRouter
	case "other":
		var payload struct {
			Name string `json:"name"`
		}
		if err := unmarshalInto(data, &payload); err != nil {
			return err
		}
		*p = OtherProvider(payload.Name)
	default:
		return errUnknownTag("ProviderID", tag.Type)
	}
	return nil
}

// ModelRef names a model and optionally narrows routing with a provider
// hint. model_id must be trimmed non-empty by the caller.
type ModelRef struct {
	ProviderHint *ProviderID `json:"provider_hint,omitempty"`
	ModelID      string      `json:"model_id"`
}

// MessageRole is the role of a single conversation turn.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
	RoleTool      MessageRole = "tool"
)

// ContentPartKind discriminates the ContentPart tagged union.
type ContentPartKind string

const (
	ContentText       ContentPartKind = "text"
	ContentThinking   ContentPartKind = "thinking"
	ContentToolCall   ContentPartKind = "tool_call"
	ContentToolResult ContentPartKind = "tool_result"
)

// ContentPart is a closed tagged union: exactly one of Text, Thinking,
// ToolCall, or ToolResult is meaningful, selected by Kind.
type ContentPart struct {
	Kind ContentPartKind

	Text string

	ThinkingText     string
	ThinkingProvider *ProviderID

	ToolCall ToolCall

	ToolResult ToolResult
}

func TextPart(text string) ContentPart {
	return ContentPart{Kind: ContentText, Text: text}
}

func ThinkingPart(text string, provider *ProviderID) ContentPart {
	return ContentPart{Kind: ContentThinking, ThinkingText: text, ThinkingProvider: provider}
}

func ToolCallPart(call ToolCall) ContentPart {
	return ContentPart{Kind: ContentToolCall, ToolCall: call}
}

func ToolResultPart(result ToolResult) ContentPart {
	return ContentPart{Kind: ContentToolResult, ToolResult: result}
}

// ToolCall is an assistant-issued function invocation. ArgumentsJSON must be
// a JSON object.
type ToolCall struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	ArgumentsJSON any    `json:"arguments_json"`
}

// ToolResultContentKind discriminates ToolResultContent.
type ToolResultContentKind string

const (
	ToolResultText  ToolResultContentKind = "text"
	ToolResultJSON  ToolResultContentKind = "json"
	ToolResultParts ToolResultContentKind = "parts"
)

// ToolResultContent is a closed tagged union carried by ToolResult.
type ToolResultContent struct {
	Kind ToolResultContentKind

	Text string

	JSONValue any

	Parts []ContentPart
}

func ToolResultTextContent(text string) ToolResultContent {
	return ToolResultContent{Kind: ToolResultText, Text: text}
}

func ToolResultJSONContent(value any) ToolResultContent {
	return ToolResultContent{Kind: ToolResultJSON, JSONValue: value}
}

func ToolResultPartsContent(parts []ContentPart) ToolResultContent {
	return ToolResultContent{Kind: ToolResultParts, Parts: parts}
}

// ToolResult answers a prior tool_call. RawProviderContent, when set, is the
// provider's original content and is sent in place of a re-encoding of
// Content when its shape fits the target wire format: the Anthropic encoder
// uses it when it is a JSON array, the OpenAI encoder when it is a string
// (otherwise both warn and encode Content). The provider it was captured
// from is not recorded or checked, and the OpenRouter encoder ignores it.
type ToolResult struct {
	ToolCallID         string            `json:"tool_call_id"`
	Content            ToolResultContent `json:"content"`
	RawProviderContent any               `json:"raw_provider_content,omitempty"`
}

// Message is one conversation turn. Ordering within ProviderRequest.Messages
// is significant.
type Message struct {
	Role    MessageRole   `json:"role"`
	Content []ContentPart `json:"content"`
}

// ToolDefinition declares a callable tool.
type ToolDefinition struct {
	Name             string  `json:"name"`
	Description      *string `json:"description,omitempty"`
	ParametersSchema any     `json:"parameters_schema"`
}

// ToolChoiceKind discriminates ToolChoice.
type ToolChoiceKind string

const (
	ToolChoiceNone     ToolChoiceKind = "none"
	ToolChoiceAuto     ToolChoiceKind = "auto"
	ToolChoiceRequired ToolChoiceKind = "required"
	ToolChoiceSpecific ToolChoiceKind = "specific"
)

// ToolChoice is a closed tagged union; the zero value is not valid, use
// DefaultToolChoice() for the default (auto).
type ToolChoice struct {
	Kind ToolChoiceKind
	Name string // only meaningful when Kind == ToolChoiceSpecific
}

func DefaultToolChoice() ToolChoice { return ToolChoice{Kind: ToolChoiceAuto} }

func SpecificToolChoice(name string) ToolChoice {
	return ToolChoice{Kind: ToolChoiceSpecific, Name: name}
}

// ResponseFormatKind discriminates ResponseFormat.
type ResponseFormatKind string

const (
	ResponseFormatText       ResponseFormatKind = "text"
	ResponseFormatJSONObject ResponseFormatKind = "json_object"
	ResponseFormatJSONSchema ResponseFormatKind = "json_schema"
)

// ResponseFormat is a closed tagged union; the zero value is not valid, use
// DefaultResponseFormat() for the default (text).
type ResponseFormat struct {
	Kind   ResponseFormatKind
	Name   string // only meaningful when Kind == ResponseFormatJSONSchema
	Schema any    // only meaningful when Kind == ResponseFormatJSONSchema
}

func DefaultResponseFormat() ResponseFormat { return ResponseFormat{Kind: ResponseFormatText} }

// OrderedMetadata is a deterministic string->string map: iteration always
// walks sorted keys so encoded wire payloads are byte-stable, matching the
// spec's "ordered map" requirement without needing a BTreeMap equivalent.
type OrderedMetadata map[string]string

// SortedKeys returns the metadata keys in ascending order.
func (m OrderedMetadata) SortedKeys() []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ProviderRequest is the canonical, provider-independent chat request.
type ProviderRequest struct {
	Model           ModelRef         `json:"model"`
	Messages        []Message        `json:"messages"`
	Tools           []ToolDefinition `json:"tools,omitempty"`
	ToolChoice      ToolChoice       `json:"tool_choice"`
	ResponseFormat  ResponseFormat   `json:"response_format"`
	Temperature     *float64         `json:"temperature,omitempty"`
	TopP            *float64         `json:"top_p,omitempty"`
	MaxOutputTokens *uint32          `json:"max_output_tokens,omitempty"`
	Stop            []string         `json:"stop,omitempty"`
	Metadata        OrderedMetadata  `json:"metadata,omitempty"`
}

// Usage reports token accounting. All fields are optional; Derived total is
// TotalTokens when set, else InputTokens+OutputTokens when both present,
// else 0.
type Usage struct {
	InputTokens       *uint64 `json:"input_tokens,omitempty"`
	OutputTokens      *uint64 `json:"output_tokens,omitempty"`
	ReasoningTokens   *uint64 `json:"reasoning_tokens,omitempty"`
	CachedInputTokens *uint64 `json:"cached_input_tokens,omitempty"`
	TotalTokens       *uint64 `json:"total_tokens,omitempty"`
}

func (u Usage) DerivedTotalTokens() uint64 {
	if u.TotalTokens != nil {
		return *u.TotalTokens
	}
	if u.InputTokens != nil && u.OutputTokens != nil {
		return *u.InputTokens + *u.OutputTokens
	}
	return 0
}

// PricingSource identifies how a CostBreakdown was produced.
type PricingSource string

const (
	PricingConfigured       PricingSource = "configured"
	PricingProviderReported PricingSource = "provider_reported"
	PricingMixed            PricingSource = "mixed"
)

// CostBreakdown is an estimated or provider-reported cost.
type CostBreakdown struct {
	Currency      string        `json:"currency"`
	InputCost     float64       `json:"input_cost"`
	OutputCost    float64       `json:"output_cost"`
	ReasoningCost *float64      `json:"reasoning_cost,omitempty"`
	TotalCost     float64       `json:"total_cost"`
	PricingSource PricingSource `json:"pricing_source"`
}

// FinishReason is the terminal classification of why generation stopped.
type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishToolCalls     FinishReason = "tool_calls"
	FinishContentFilter FinishReason = "content_filter"
	FinishError         FinishReason = "error"
	FinishOther         FinishReason = "other"
)

// RuntimeWarning is a non-fatal, machine-readable annotation on a response.
type RuntimeWarning struct {
	Code    string
	Message string
}

// AssistantOutput is the decoded model output for a single turn.
type AssistantOutput struct {
	Content          []ContentPart `json:"content"`
	StructuredOutput any           `json:"structured_output,omitempty"`
}

// ProviderResponse is the canonical, provider-independent chat response.
type ProviderResponse struct {
	Output              AssistantOutput  `json:"output"`
	Usage               Usage            `json:"usage"`
	Cost                *CostBreakdown   `json:"cost,omitempty"`
	Provider            ProviderID       `json:"provider"`
	Model               string           `json:"model"`
	RawProviderResponse any              `json:"raw_provider_response,omitempty"`
	FinishReason        FinishReason     `json:"finish_reason"`
	Warnings            []RuntimeWarning `json:"warnings,omitempty"`
}

// ModelInfo describes one model entry in a catalog. Identity is
// (Provider, ModelID).
type ModelInfo struct {
	Provider                 ProviderID `json:"provider"`
	ModelID                  string     `json:"model_id"`
	DisplayName              *string    `json:"display_name,omitempty"`
	ContextWindow            *uint32    `json:"context_window,omitempty"`
	MaxOutputTokens          *uint32    `json:"max_output_tokens,omitempty"`
	SupportsTools            bool       `json:"supports_tools"`
	SupportsStructuredOutput bool       `json:"supports_structured_output"`
}

// ModelCatalog is an ordered list of ModelInfo, sorted by (provider order,
// model id) for stable serialization.
type ModelCatalog struct {
	Models []ModelInfo `json:"models"`
}

// DiscoveryOptions controls remote model discovery.
type DiscoveryOptions struct {
	Remote          bool
	IncludeProvider []ProviderID
	RefreshCache    bool
}

// ProviderCapabilities are the static feature flags an adapter declares.
type ProviderCapabilities struct {
	SupportsTools            bool
	SupportsStructuredOutput bool
	SupportsThinking         bool
	SupportsRemoteDiscovery  bool
}

// AdapterContext carries cross-cutting parameters (credentials, custom
// headers, request-id header override) between the runtime and adapters.
// Keys namespaced "transport.*" are consumed by the transport layer.
type AdapterContext struct {
	Metadata OrderedMetadata `json:"metadata,omitempty"`
}

// Clone returns a deep copy so callers may mutate the copy without
// affecting the shared context.
func (c AdapterContext) Clone() AdapterContext {
	cloned := make(OrderedMetadata, len(c.Metadata))
	for k, v := range c.Metadata {
		cloned[k] = v
	}
	return AdapterContext{Metadata: cloned}
}

func (c AdapterContext) WithMetadata(key, value string) AdapterContext {
	clone := c.Clone()
	if clone.Metadata == nil {
		clone.Metadata = OrderedMetadata{}
	}
	clone.Metadata[key] = value
	return clone
}
