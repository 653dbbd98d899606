package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/provider-runtime-go/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
	Long:  `Manage the provider runtime's configuration: provider base URLs, credential env names, retry policy, and pricing rules.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration interactively",
	Long:  `Initialize configuration by prompting for one provider's base URL and API key.`,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the current configuration.`,
	RunE:  runConfigShow,
}

var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration",
	Long:  `Validate the current configuration for errors.`,
	RunE:  runConfigValidate,
}

var configGenerateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate example YAML configuration",
	Long:  `Generate an example YAML configuration file covering all three built-in providers.`,
	RunE:  runConfigGenerate,
}

func init() {
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configGenerateCmd)

	configGenerateCmd.Flags().BoolP("force", "f", false, "overwrite an existing configuration file")
}

func runConfigInit(cmd *cobra.Command, _ []string) error {
	color.Blue("Provider Runtime Configuration Setup")
	color.Yellow("Follow the prompts to configure one provider. Run 'prun config generate' for all three at once.")

	reader := bufio.NewReader(os.Stdin)

	fmt.Print("\nProvider (openai, anthropic, or openrouter): ")
	providerName, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("error reading provider name: %w", err)
	}
	providerName = strings.TrimSpace(providerName)

	if _, ok := config.ParseProviderID(providerName); !ok {
		return errors.New("provider name must not be empty")
	}

	fmt.Print("API Base URL (blank for the provider's compiled-in default): ")
	baseURL, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("error reading base URL: %w", err)
	}
	baseURL = strings.TrimSpace(baseURL)

	fmt.Print("API Key (blank to resolve from the provider's default environment variable): ")
	apiKey, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("error reading API key: %w", err)
	}
	apiKey = strings.TrimSpace(apiKey)

	cfg := &config.Config{
		DefaultProvider: providerName,
		Providers: []config.ProviderSettings{
			{Name: providerName, BaseURL: baseURL, APIKey: apiKey},
		},
	}

	if err := cfgMgr.Save(cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	color.Green("Configuration saved successfully to: %s", cfgMgr.GetPath())
	color.Cyan("You can now start a session with: prun chat --provider %s", providerName)

	return nil
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		color.Yellow("No configuration found. Run 'prun config init' or 'prun config generate' to create one.")
		return nil
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	configType := "JSON"
	if cfgMgr.HasYAML() {
		configType = "YAML"
	}

	color.Blue("Current Configuration:")
	fmt.Printf("  %-18s: %s\n", "Default Provider", cfg.DefaultProvider)
	fmt.Printf("  %-18s: %s\n", "Config Path", cfgMgr.GetPath())
	fmt.Printf("  %-18s: %s\n", "Format", configType)

	fmt.Println("\nProviders:")
	for _, p := range cfg.Providers {
		fmt.Printf("  - Name: %s\n", p.Name)
		if p.BaseURL != "" {
			fmt.Printf("    Base URL: %s\n", p.BaseURL)
		}
		if p.APIKeyEnv != "" {
			fmt.Printf("    API Key Env: %s\n", p.APIKeyEnv)
		}
		fmt.Printf("    API Key: %s\n", maskString(p.APIKey))
	}

	if cfg.RetryPolicy != nil {
		fmt.Println("\nRetry Policy:")
		fmt.Printf("  %-18s: %d\n", "Max Attempts", cfg.RetryPolicy.MaxAttempts)
		fmt.Printf("  %-18s: %d\n", "Initial Backoff", cfg.RetryPolicy.InitialBackoffMs)
		fmt.Printf("  %-18s: %d\n", "Max Backoff", cfg.RetryPolicy.MaxBackoffMs)
		fmt.Printf("  %-18s: %v\n", "Retryable Status", cfg.RetryPolicy.RetryableStatusCodes)
	}

	if len(cfg.PricingRules) > 0 {
		fmt.Println("\nPricing Rules:")
		for _, r := range cfg.PricingRules {
			fmt.Printf("  - %s / %s: input=%.8f output=%.8f\n", r.Provider, r.ModelPattern, r.InputCostPerToken, r.OutputCostPerToken)
		}
	}

	return nil
}

func runConfigValidate(cmd *cobra.Command, _ []string) error {
	if !cfgMgr.Exists() {
		return errors.New("no configuration found")
	}

	cfg, err := cfgMgr.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	var validationErrors []string

	if len(cfg.Providers) == 0 {
		validationErrors = append(validationErrors, "no providers configured")
	}

	seen := make(map[string]bool, len(cfg.Providers))
	for i, p := range cfg.Providers {
		if p.Name == "" {
			validationErrors = append(validationErrors, fmt.Sprintf("provider %d: name is required", i))
			continue
		}
		if seen[p.Name] {
			validationErrors = append(validationErrors, fmt.Sprintf("provider %d: duplicate provider name %q", i, p.Name))
		}
		seen[p.Name] = true
	}

	if cfg.DefaultProvider != "" && !seen[cfg.DefaultProvider] {
		validationErrors = append(validationErrors, fmt.Sprintf("default_provider %q has no matching entry under providers", cfg.DefaultProvider))
	}

	for i, r := range cfg.PricingRules {
		if _, ok := config.ParseProviderID(r.Provider); !ok {
			validationErrors = append(validationErrors, fmt.Sprintf("pricing_rules[%d]: invalid provider %q", i, r.Provider))
		}
		if r.ModelPattern == "" {
			validationErrors = append(validationErrors, fmt.Sprintf("pricing_rules[%d]: model_pattern is required", i))
		}
	}

	if cfg.RetryPolicy != nil && cfg.RetryPolicy.MaxAttempts == 0 {
		validationErrors = append(validationErrors, "retry_policy.max_attempts must be at least 1")
	}

	if len(validationErrors) > 0 {
		color.Red("Configuration validation failed:")
		for _, e := range validationErrors {
			fmt.Printf("  - %s\n", e)
		}
		return errors.New("configuration validation failed")
	}

	color.Green("Configuration is valid!")
	return nil
}

func runConfigGenerate(cmd *cobra.Command, _ []string) error {
	force, err := cmd.Flags().GetBool("force")
	if err != nil {
		return err
	}

	if cfgMgr.Exists() && !force {
		configType := "JSON"
		if cfgMgr.HasYAML() {
			configType = "YAML"
		}
		color.Yellow("Configuration file already exists (%s format): %s", configType, cfgMgr.GetPath())
		color.Cyan("Use --force to overwrite, or 'prun config show' to view current config")
		return nil
	}

	if err := cfgMgr.CreateExampleConfig(); err != nil {
		return fmt.Errorf("failed to create example configuration: %w", err)
	}

	color.Green("Example YAML configuration created: %s", cfgMgr.GetYAMLPath())
	color.Cyan("\nNext steps:")
	fmt.Println("1. Edit the configuration file to add your API keys (or leave blank to read from the env vars)")
	fmt.Println("2. Run 'prun config validate' to check your configuration")
	fmt.Println("3. Start a session with 'prun chat'")

	return nil
}

func maskString(s string) string {
	if s == "" {
		return "(not set)"
	}
	if len(s) <= 8 {
		return strings.Repeat("*", len(s))
	}
	return s[:4] + strings.Repeat("*", len(s)-8) + s[len(s)-4:]
}
