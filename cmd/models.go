package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/provider-runtime-go/internal/cliapp"
	"github.com/Davincible/provider-runtime-go/internal/core/types"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List known models",
	Long:  `List the static model catalog, optionally refreshed from every provider's remote discovery endpoint.`,
	RunE:  runModels,
}

func init() {
	modelsCmd.Flags().Bool("remote", false, "refresh the catalog from each adapter's remote discovery endpoint")
	modelsCmd.Flags().String("provider", "", "only show models for this provider: openai|anthropic|openrouter")
	modelsCmd.Flags().Bool("json", false, "print the catalog as canonical JSON (internal/catalog.ExportCatalogJSON)")
}

func runModels(cmd *cobra.Command, _ []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	setupLogging(verbose)

	remote, _ := cmd.Flags().GetBool("remote")
	providerFlag, _ := cmd.Flags().GetString("provider")
	asJSON, _ := cmd.Flags().GetBool("json")

	cfg := cfgMgr.Get()

	rt, err := cliapp.BuildRuntime(cfg)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}

	opts := types.DiscoveryOptions{Remote: remote, RefreshCache: remote}
	if providerFlag != "" {
		provider, ok := parseProviderFlag(providerFlag)
		if !ok {
			return fmt.Errorf("invalid provider %q (expected openai, anthropic, or openrouter)", providerFlag)
		}
		opts.IncludeProvider = []types.ProviderID{provider}
	}

	catalog, discErr := rt.DiscoverModels(cmd.Context(), opts)
	if discErr != nil {
		return discErr
	}

	if providerFlag != "" {
		provider, _ := parseProviderFlag(providerFlag)
		catalog.Models = filterByProvider(catalog.Models, provider)
	}

	if asJSON {
		out, jsonErr := rt.ExportCatalogJSON(catalog)
		if jsonErr != nil {
			return jsonErr
		}
		fmt.Println(out)
		return nil
	}

	printModelTable(catalog)
	return nil
}

func printModelTable(catalog types.ModelCatalog) {
	if len(catalog.Models) == 0 {
		color.Yellow("no models in catalog")
		return
	}

	color.Blue("Models:")
	for _, m := range catalog.Models {
		display := m.ModelID
		if m.DisplayName != nil && *m.DisplayName != "" {
			display = fmt.Sprintf("%s (%s)", m.ModelID, *m.DisplayName)
		}
		fmt.Printf("  %-12s %-40s tools=%-5v structured_output=%-5v", m.Provider, display, m.SupportsTools, m.SupportsStructuredOutput)
		if m.ContextWindow != nil {
			fmt.Printf(" context=%d", *m.ContextWindow)
		}
		if m.MaxOutputTokens != nil {
			fmt.Printf(" max_output=%d", *m.MaxOutputTokens)
		}
		fmt.Println()
	}
}

func filterByProvider(models []types.ModelInfo, provider types.ProviderID) []types.ModelInfo {
	filtered := make([]types.ModelInfo, 0, len(models))
	for _, m := range models {
		if m.Provider.Equal(provider) {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

func parseProviderFlag(name string) (types.ProviderID, bool) {
	switch name {
	case "openai":
		return types.ProviderOpenAI, true
	case "anthropic":
		return types.ProviderAnthropic, true
	case "openrouter":
		return types.ProviderOpenRouter, true
	default:
		return types.ProviderID{}, false
	}
}
