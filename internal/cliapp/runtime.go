// Package cliapp wires the library-facing runtime into the command-line
// shell: runtime construction from a loaded config, the interactive chat
// loop, and the built-in tool the chat loop can execute on the user's
// behalf. It is the only layer in this module that is allowed to log,
// print, or block on stdin.
package cliapp

import (
	"fmt"
	"os"

	"github.com/Davincible/provider-runtime-go/internal/config"
	"github.com/Davincible/provider-runtime-go/internal/core/types"
	"github.com/Davincible/provider-runtime-go/internal/pricing"
	"github.com/Davincible/provider-runtime-go/internal/providers/anthropic"
	"github.com/Davincible/provider-runtime-go/internal/providers/openai"
	"github.com/Davincible/provider-runtime-go/internal/providers/openrouter"
	"github.com/Davincible/provider-runtime-go/internal/runtime"
	"github.com/Davincible/provider-runtime-go/internal/transport"
)

// BuildRuntime constructs a Runtime with all three built-in adapters
// registered, wired from cfg's provider settings and retry policy. A
// provider absent from cfg.Providers still gets an adapter registered
// with its compiled-in default base URL, so the chat/models/pricing
// commands work against a bare environment-variable setup with no config
// file at all.
func BuildRuntime(cfg *config.Config) (*runtime.Runtime, error) {
	retryPolicy := cfg.RetryPolicy.ToRetryPolicy()

	httpTransport, configErr := transport.New(30_000, retryPolicy)
	if configErr != nil {
		return nil, fmt.Errorf("build HTTP transport: %w", configErr)
	}

	settings := indexProviderSettings(cfg.Providers)

	builder := runtime.NewBuilder().WithAdapterContext(types.AdapterContext{})

	openaiAdapter := openai.New(httpTransport)
	applySettings(settings["openai"], func(baseURL string) { openaiAdapter.WithBaseURL(baseURL) }, func(apiKey string) { openaiAdapter.WithAPIKey(apiKey) })
	builder.WithAdapter(openaiAdapter)

	anthropicAdapter := anthropic.New(httpTransport)
	applySettings(settings["anthropic"], func(baseURL string) { anthropicAdapter.WithBaseURL(baseURL) }, func(apiKey string) { anthropicAdapter.WithAPIKey(apiKey) })
	builder.WithAdapter(anthropicAdapter)

	openrouterAdapter := openrouter.New(httpTransport)
	applySettings(settings["openrouter"], func(baseURL string) { openrouterAdapter.WithBaseURL(baseURL) }, func(apiKey string) { openrouterAdapter.WithAPIKey(apiKey) })
	builder.WithAdapter(openrouterAdapter)

	if defaultProvider, ok := config.ParseProviderID(cfg.DefaultProvider); ok {
		builder.WithDefaultProvider(defaultProvider)
	}

	if priceTable := BuildPricingTable(cfg.PricingRules); priceTable != nil {
		builder.WithPricingTable(*priceTable)
	}

	return builder.Build(), nil
}

func indexProviderSettings(all []config.ProviderSettings) map[string]config.ProviderSettings {
	byName := make(map[string]config.ProviderSettings, len(all))
	for _, s := range all {
		byName[s.Name] = s
	}
	return byName
}

// applySettings applies an explicit base URL and API key from settings,
// preferring a literal APIKey over the value of the APIKeyEnv variable, and
// leaving both alone (adapter compiled-in default, then its own
// hardcoded env var) when settings carries neither.
func applySettings(settings config.ProviderSettings, setBaseURL func(string), setAPIKey func(string)) {
	if settings.BaseURL != "" {
		setBaseURL(settings.BaseURL)
	}
	if settings.APIKey != "" {
		setAPIKey(settings.APIKey)
		return
	}
	if settings.APIKeyEnv != "" {
		if value := os.Getenv(settings.APIKeyEnv); value != "" {
			setAPIKey(value)
		}
	}
}

// BuildPricingTable converts a config's pricing-rule list into a
// pricing.Table, skipping any rule whose provider name doesn't parse.
// Returns nil when rules is empty so callers can distinguish "no table
// configured" from "empty table".
func BuildPricingTable(rules []config.PriceRuleConfig) *pricing.Table {
	if len(rules) == 0 {
		return nil
	}
	converted := make([]pricing.PriceRule, 0, len(rules))
	for _, r := range rules {
		if rule, ok := r.ToPriceRule(); ok {
			converted = append(converted, rule)
		}
	}
	table := pricing.NewTable(converted)
	return &table
}
