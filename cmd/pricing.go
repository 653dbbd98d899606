package cmd

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Davincible/provider-runtime-go/internal/cliapp"
	"github.com/Davincible/provider-runtime-go/internal/core/types"
	"github.com/Davincible/provider-runtime-go/internal/pricing"
)

var pricingCmd = &cobra.Command{
	Use:   "pricing",
	Short: "Estimate request cost",
	Long:  `Estimate the cost of a provider/model call from its token usage against the configured pricing rules.`,
	RunE:  runPricing,
}

func init() {
	pricingCmd.Flags().String("provider", "", "provider: openai|anthropic|openrouter (required)")
	pricingCmd.Flags().String("model", "", "model id (required)")
	pricingCmd.Flags().Uint64("input-tokens", 0, "input tokens")
	pricingCmd.Flags().Uint64("output-tokens", 0, "output tokens")
	pricingCmd.Flags().Uint64("reasoning-tokens", 0, "reasoning tokens (optional)")

	_ = pricingCmd.MarkFlagRequired("provider")
	_ = pricingCmd.MarkFlagRequired("model")
}

func runPricing(cmd *cobra.Command, _ []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	setupLogging(verbose)

	providerFlag, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")
	inputTokens, _ := cmd.Flags().GetUint64("input-tokens")
	outputTokens, _ := cmd.Flags().GetUint64("output-tokens")
	reasoningTokens, _ := cmd.Flags().GetUint64("reasoning-tokens")

	provider, ok := parseProviderFlag(providerFlag)
	if !ok {
		return errors.New("invalid provider (expected openai, anthropic, or openrouter)")
	}

	cfg := cfgMgr.Get()

	table := cliapp.BuildPricingTable(cfg.PricingRules)
	if table == nil {
		color.Yellow("no pricing rules configured; run 'prun config generate' and add pricing_rules")
		return nil
	}

	usage := types.Usage{}
	if cmd.Flags().Changed("input-tokens") {
		usage.InputTokens = &inputTokens
	}
	if cmd.Flags().Changed("output-tokens") {
		usage.OutputTokens = &outputTokens
	}
	if cmd.Flags().Changed("reasoning-tokens") {
		usage.ReasoningTokens = &reasoningTokens
	}

	cost, warnings := pricing.EstimateCost(provider, model, usage, *table)

	for _, w := range warnings {
		color.Yellow("[warning: %s] %s", w.Code, w.Message)
	}

	if cost == nil {
		color.Red("no cost estimate available for provider=%s, model=%s", provider, model)
		return nil
	}

	color.Blue("Cost estimate for %s / %s:", provider, model)
	fmt.Printf("  %-15s: %.6f %s\n", "Input cost", cost.InputCost, cost.Currency)
	fmt.Printf("  %-15s: %.6f %s\n", "Output cost", cost.OutputCost, cost.Currency)
	if cost.ReasoningCost != nil {
		fmt.Printf("  %-15s: %.6f %s\n", "Reasoning cost", *cost.ReasoningCost, cost.Currency)
	}
	fmt.Printf("  %-15s: %.6f %s\n", "Total cost", cost.TotalCost, cost.Currency)
	fmt.Printf("  %-15s: %s\n", "Source", cost.PricingSource)

	return nil
}
