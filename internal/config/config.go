// Package config loads and persists runtime configuration: per-provider
// base URLs and credential env-var names, the shared HTTP retry policy,
// and the pricing table. Files are YAML-first with a JSON fallback, and
// reads go through an atomic.Value-backed snapshot.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"gopkg.in/yaml.v3"

	"github.com/Davincible/provider-runtime-go/internal/core/types"
	"github.com/Davincible/provider-runtime-go/internal/pricing"
	"github.com/Davincible/provider-runtime-go/internal/transport"
)

const (
	DefaultConfigFilename = "config.json"
	DefaultYAMLFilename   = "config.yaml"
)

// ProviderSettings holds the per-provider wiring a builder needs to
// construct an adapter: the API base URL, an explicit API key, and the
// name of an environment variable whose value the CLI uses as the API key
// when no explicit key is configured.
type ProviderSettings struct {
	Name      string `json:"name" yaml:"name"`
	BaseURL   string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
	APIKeyEnv string `json:"api_key_env,omitempty" yaml:"api_key_env,omitempty"`
	APIKey    string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
}

// PriceRuleConfig is the YAML/JSON-serializable form of a pricing.PriceRule.
type PriceRuleConfig struct {
	Provider              string   `json:"provider" yaml:"provider"`
	ModelPattern          string   `json:"model_pattern" yaml:"model_pattern"`
	InputCostPerToken     float64  `json:"input_cost_per_token" yaml:"input_cost_per_token"`
	OutputCostPerToken    float64  `json:"output_cost_per_token" yaml:"output_cost_per_token"`
	ReasoningCostPerToken *float64 `json:"reasoning_cost_per_token,omitempty" yaml:"reasoning_cost_per_token,omitempty"`
}

// Config is the full on-disk configuration shape.
type Config struct {
	DefaultProvider string             `json:"default_provider,omitempty" yaml:"default_provider,omitempty"`
	Providers       []ProviderSettings `json:"providers" yaml:"providers"`
	RetryPolicy     *RetryPolicyConfig `json:"retry_policy,omitempty" yaml:"retry_policy,omitempty"`
	PricingRules    []PriceRuleConfig  `json:"pricing_rules,omitempty" yaml:"pricing_rules,omitempty"`
}

// RetryPolicyConfig is the YAML/JSON-serializable form of
// transport.RetryPolicy.
type RetryPolicyConfig struct {
	MaxAttempts          uint32 `json:"max_attempts" yaml:"max_attempts"`
	InitialBackoffMs     uint64 `json:"initial_backoff_ms" yaml:"initial_backoff_ms"`
	MaxBackoffMs         uint64 `json:"max_backoff_ms" yaml:"max_backoff_ms"`
	RetryableStatusCodes []int  `json:"retryable_status_codes,omitempty" yaml:"retryable_status_codes,omitempty"`
}

// ToRetryPolicy converts the config shape into a transport.RetryPolicy,
// falling back to transport.DefaultRetryPolicy() fields left at zero
// value.
func (c *RetryPolicyConfig) ToRetryPolicy() transport.RetryPolicy {
	policy := transport.DefaultRetryPolicy()
	if c == nil {
		return policy
	}
	if c.MaxAttempts > 0 {
		policy.MaxAttempts = c.MaxAttempts
	}
	if c.InitialBackoffMs > 0 {
		policy.InitialBackoffMs = c.InitialBackoffMs
	}
	if c.MaxBackoffMs > 0 {
		policy.MaxBackoffMs = c.MaxBackoffMs
	}
	if len(c.RetryableStatusCodes) > 0 {
		policy.RetryableStatusCodes = c.RetryableStatusCodes
	}
	return policy
}

// ToPriceRule converts a PriceRuleConfig into a pricing.PriceRule, given a
// provider lookup. Returns false if the provider name is not one of
// openai/anthropic/openrouter/other(...).
func (r PriceRuleConfig) ToPriceRule() (pricing.PriceRule, bool) {
	provider, ok := ParseProviderID(r.Provider)
	if !ok {
		return pricing.PriceRule{}, false
	}
	return pricing.PriceRule{
		Provider:              provider,
		ModelPattern:          r.ModelPattern,
		InputCostPerToken:     r.InputCostPerToken,
		OutputCostPerToken:    r.OutputCostPerToken,
		ReasoningCostPerToken: r.ReasoningCostPerToken,
	}, true
}

// ParseProviderID maps a config provider name to a types.ProviderID,
// treating any name outside the three built-ins as an Other(name) case.
func ParseProviderID(name string) (types.ProviderID, bool) {
	switch name {
	case "openai":
		return types.ProviderOpenAI, true
	case "anthropic":
		return types.ProviderAnthropic, true
	case "openrouter":
		return types.ProviderOpenRouter, true
	case "":
		return types.ProviderID{}, false
	default:
		return types.OtherProvider(name), true
	}
}

// Manager loads, caches, and persists a Config from a base directory,
// preferring a YAML file over a JSON one when both are present. Reads go
// through an atomic.Value snapshot so the CLI shell can reload
// configuration between turns without synchronizing every in-flight call.
type Manager struct {
	baseDir     string
	jsonPath    string
	yamlPath    string
	configValue atomic.Value
}

// NewManager constructs a Manager rooted at baseDir.
func NewManager(baseDir string) *Manager {
	return &Manager{
		baseDir:  baseDir,
		jsonPath: filepath.Join(baseDir, DefaultConfigFilename),
		yamlPath: filepath.Join(baseDir, DefaultYAMLFilename),
	}
}

// Load reads the configuration file from disk (YAML first, JSON fallback),
// applies defaults, caches the snapshot, and returns it.
func (m *Manager) Load() (*Config, error) {
	var (
		cfg Config
		err error
	)

	switch {
	case m.HasYAML():
		cfg, err = m.loadYAML()
	case m.HasJSON():
		cfg, err = m.loadJSON()
	default:
		return nil, fmt.Errorf("no configuration file found (looked for %s or %s)", m.yamlPath, m.jsonPath)
	}
	if err != nil {
		return nil, err
	}

	m.configValue.Store(&cfg)
	return &cfg, nil
}

func (m *Manager) loadYAML() (Config, error) {
	var cfg Config
	data, err := os.ReadFile(m.yamlPath)
	if err != nil {
		return cfg, fmt.Errorf("read YAML config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal YAML config: %w", err)
	}
	return cfg, nil
}

func (m *Manager) loadJSON() (Config, error) {
	var cfg Config
	data, err := os.ReadFile(m.jsonPath)
	if err != nil {
		return cfg, fmt.Errorf("read JSON config file: %w", err)
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("unmarshal JSON config: %w", err)
	}
	return cfg, nil
}

// Get returns the cached configuration snapshot, loading it from disk on
// first access. A failed load yields an empty Config rather than an error,
// so the CLI degrades to compiled-in defaults instead of refusing to run.
func (m *Manager) Get() *Config {
	if v := m.configValue.Load(); v != nil {
		return v.(*Config)
	}
	cfg, err := m.Load()
	if err != nil {
		return &Config{}
	}
	return cfg
}

// Save writes cfg as YAML (the preferred format for new saves) and updates
// the cached snapshot.
func (m *Manager) Save(cfg *Config) error {
	if err := os.MkdirAll(m.baseDir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal YAML config: %w", err)
	}
	if err := os.WriteFile(m.yamlPath, data, 0o644); err != nil {
		return fmt.Errorf("write YAML config file: %w", err)
	}
	m.configValue.Store(cfg)
	return nil
}

// GetPath returns the YAML path if it exists, else the JSON path.
func (m *Manager) GetPath() string {
	if m.HasYAML() {
		return m.yamlPath
	}
	return m.jsonPath
}

func (m *Manager) GetYAMLPath() string { return m.yamlPath }
func (m *Manager) GetJSONPath() string { return m.jsonPath }

// Exists reports whether either config file is present.
func (m *Manager) Exists() bool {
	return m.HasYAML() || m.HasJSON()
}

func (m *Manager) HasYAML() bool {
	_, err := os.Stat(m.yamlPath)
	return err == nil
}

func (m *Manager) HasJSON() bool {
	_, err := os.Stat(m.jsonPath)
	return err == nil
}

// CreateExampleConfig writes a YAML configuration covering all three
// built-in providers, keyed to each provider's default env var.
func (m *Manager) CreateExampleConfig() error {
	cfg := &Config{
		DefaultProvider: "openai",
		Providers: []ProviderSettings{
			{Name: "openai", BaseURL: "https://api.openai.com", APIKeyEnv: "OPENAI_API_KEY"},
			{Name: "anthropic", BaseURL: "https://api.anthropic.com", APIKeyEnv: "ANTHROPIC_API_KEY"},
			{Name: "openrouter", BaseURL: "https://openrouter.ai", APIKeyEnv: "OPENROUTER_API_KEY"},
		},
		RetryPolicy: &RetryPolicyConfig{
			MaxAttempts:          3,
			InitialBackoffMs:     100,
			MaxBackoffMs:         2000,
			RetryableStatusCodes: []int{408, 429, 500, 502, 503, 504},
		},
	}
	return m.Save(cfg)
}
