package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Davincible/provider-runtime-go/internal/cliapp"
	"github.com/Davincible/provider-runtime-go/internal/config"
	"github.com/Davincible/provider-runtime-go/internal/core/types"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive chat session",
	Long:  `Open an interactive shell against a provider, with a bounded per-turn tool-calling loop and /exit, /quit, /clear commands.`,
	RunE:  runChat,
}

func init() {
	chatCmd.Flags().String("provider", "", "provider to chat against: openai|anthropic|openrouter (default: config default_provider, else openai)")
	chatCmd.Flags().String("model", "", "model id (default: a sensible per-provider default)")
	chatCmd.Flags().Uint32("max-output-tokens", 0, "cap on generated output tokens (0 = provider default)")
}

func runChat(cmd *cobra.Command, _ []string) error {
	verbose, _ := cmd.Flags().GetBool("verbose")
	setupLogging(verbose)

	cfg := cfgMgr.Get()

	providerFlag, _ := cmd.Flags().GetString("provider")
	modelFlag, _ := cmd.Flags().GetString("model")
	maxOutputTokensFlag, _ := cmd.Flags().GetUint32("max-output-tokens")

	provider, err := resolveChatProvider(cfg, providerFlag)
	if err != nil {
		return err
	}

	model := resolveChatModel(modelFlag, provider)

	var maxOutputTokens *uint32
	if maxOutputTokensFlag > 0 {
		maxOutputTokens = &maxOutputTokensFlag
	}

	rt, err := cliapp.BuildRuntime(cfg)
	if err != nil {
		return fmt.Errorf("build runtime: %w", err)
	}

	return cliapp.RunChat(cmd.Context(), rt, cliapp.ChatOptions{
		Provider:        provider,
		Model:           model,
		MaxOutputTokens: maxOutputTokens,
	}, os.Stdin, os.Stdout)
}

func resolveChatProvider(cfg *config.Config, flagValue string) (types.ProviderID, error) {
	name := strings.ToLower(strings.TrimSpace(flagValue))
	if name == "" {
		name = strings.ToLower(strings.TrimSpace(os.Getenv("PROVIDER_RUNTIME_CLI_PROVIDER")))
	}
	if name == "" {
		name = cfg.DefaultProvider
	}
	if name == "" {
		name = "openai"
	}

	provider, ok := config.ParseProviderID(name)
	if !ok || name != "openai" && name != "anthropic" && name != "openrouter" {
		return types.ProviderID{}, errors.New("invalid provider (expected openai, anthropic, or openrouter)")
	}

	return provider, nil
}

func resolveChatModel(flagValue string, provider types.ProviderID) string {
	if model := strings.TrimSpace(flagValue); model != "" {
		return model
	}
	if model := strings.TrimSpace(os.Getenv("PROVIDER_RUNTIME_CLI_MODEL")); model != "" {
		return model
	}
	return defaultModelFor(provider)
}

func defaultModelFor(provider types.ProviderID) string {
	switch {
	case provider.Equal(types.ProviderOpenAI):
		return "gpt-5-mini"
	case provider.Equal(types.ProviderAnthropic):
		return "claude-sonnet-4-5-20250929"
	case provider.Equal(types.ProviderOpenRouter):
		return "openai/gpt-5-mini"
	default:
		return ""
	}
}
