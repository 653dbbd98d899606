// Package pricing estimates request cost from usage and a configured table
// of per-provider, pattern-matched rate rules.
package pricing

import (
	"fmt"
	"math"

	"github.com/Davincible/provider-runtime-go/internal/core/types"
)

// PriceRule is a single per-provider rate, matched against a model id by
// exact string or trailing-wildcard prefix.
type PriceRule struct {
	Provider              types.ProviderID
	ModelPattern          string
	InputCostPerToken     float64
	OutputCostPerToken    float64
	ReasoningCostPerToken *float64
}

func (r PriceRule) hasValidRates() bool {
	if !isValidRate(r.InputCostPerToken) || !isValidRate(r.OutputCostPerToken) {
		return false
	}
	if r.ReasoningCostPerToken != nil && !isValidRate(*r.ReasoningCostPerToken) {
		return false
	}
	return true
}

// Table holds the configured price rules for every provider/model pattern
// this runtime knows how to estimate cost for.
type Table struct {
	Rules []PriceRule
}

// NewTable constructs a pricing table from a rule list.
func NewTable(rules []PriceRule) Table {
	return Table{Rules: rules}
}

// FindRule returns the best-matching rule for provider/model, preferring an
// exact model-id match over a wildcard prefix match, and the longest
// wildcard prefix when more than one wildcard rule matches.
func (t Table) FindRule(provider types.ProviderID, model string) (PriceRule, bool) {
	var (
		best      PriceRule
		bestScore ruleMatchScore
		found     bool
	)

	for _, rule := range t.Rules {
		if !rule.Provider.Equal(provider) {
			continue
		}
		score, ok := matchPattern(rule.ModelPattern, model)
		if !ok {
			continue
		}
		if !found || score.betterThan(bestScore) {
			best = rule
			bestScore = score
			found = true
		}
	}

	return best, found
}

// EstimateCost computes a CostBreakdown for the given usage against table,
// returning any warnings explaining a missing or partial result. A nil
// breakdown with no warnings never occurs: every non-success path emits at
// least one warning code (pricing.missing_rule, pricing.invalid_rule,
// pricing.missing_usage), and a successful estimate may additionally carry
// pricing.partial_usage or pricing.partial_reasoning_rate.
func EstimateCost(provider types.ProviderID, model string, usage types.Usage, table Table) (*types.CostBreakdown, []types.RuntimeWarning) {
	var warnings []types.RuntimeWarning

	rule, ok := table.FindRule(provider, model)
	if !ok {
		warnings = append(warnings, types.RuntimeWarning{
			Code:    "pricing.missing_rule",
			Message: fmt.Sprintf("no pricing rule configured for provider=%s, model=%s", provider.String(), model),
		})
		return nil, warnings
	}

	if !rule.hasValidRates() {
		warnings = append(warnings, types.RuntimeWarning{
			Code:    "pricing.invalid_rule",
			Message: fmt.Sprintf("invalid pricing rule for provider=%s, model_pattern=%s", provider.String(), rule.ModelPattern),
		})
		return nil, warnings
	}

	hasAnyUsage := usage.InputTokens != nil || usage.OutputTokens != nil || usage.ReasoningTokens != nil
	if !hasAnyUsage {
		warnings = append(warnings, types.RuntimeWarning{
			Code:    "pricing.missing_usage",
			Message: fmt.Sprintf("usage tokens missing for provider=%s, model=%s", provider.String(), model),
		})
		return nil, warnings
	}

	if usage.InputTokens == nil || usage.OutputTokens == nil {
		warnings = append(warnings, types.RuntimeWarning{
			Code:    "pricing.partial_usage",
			Message: fmt.Sprintf("partial usage for provider=%s, model=%s; missing input or output tokens", provider.String(), model),
		})
	}

	inputCost := float64(valueOrZero(usage.InputTokens)) * rule.InputCostPerToken
	outputCost := float64(valueOrZero(usage.OutputTokens)) * rule.OutputCostPerToken

	var reasoningCost *float64
	if usage.ReasoningTokens != nil {
		if rule.ReasoningCostPerToken != nil {
			cost := float64(*usage.ReasoningTokens) * *rule.ReasoningCostPerToken
			reasoningCost = &cost
		} else {
			warnings = append(warnings, types.RuntimeWarning{
				Code:    "pricing.partial_reasoning_rate",
				Message: fmt.Sprintf("reasoning tokens provided but no reasoning rate configured for provider=%s, model=%s", provider.String(), model),
			})
		}
	}

	totalCost := inputCost + outputCost
	if reasoningCost != nil {
		totalCost += *reasoningCost
	}

	return &types.CostBreakdown{
		Currency:      "USD",
		InputCost:     inputCost,
		OutputCost:    outputCost,
		ReasoningCost: reasoningCost,
		TotalCost:     totalCost,
		PricingSource: types.PricingConfigured,
	}, warnings
}

type ruleMatchScore struct {
	exact     bool
	prefixLen int
}

func (s ruleMatchScore) betterThan(other ruleMatchScore) bool {
	if s.exact != other.exact {
		return s.exact
	}
	return s.prefixLen > other.prefixLen
}

func matchPattern(pattern, model string) (ruleMatchScore, bool) {
	if pattern == model {
		return ruleMatchScore{exact: true, prefixLen: len(pattern)}, true
	}
	if pattern == "*" {
		return ruleMatchScore{}, true
	}
	prefix, ok := cutSuffix(pattern, "*")
	if !ok {
		return ruleMatchScore{}, false
	}
	if len(model) >= len(prefix) && model[:len(prefix)] == prefix {
		return ruleMatchScore{prefixLen: len(prefix)}, true
	}
	return ruleMatchScore{}, false
}

func cutSuffix(s, suffix string) (string, bool) {
	if len(s) < len(suffix) || s[len(s)-len(suffix):] != suffix {
		return s, false
	}
	return s[:len(s)-len(suffix)], true
}

func isValidRate(rate float64) bool {
	return !math.IsInf(rate, 0) && !math.IsNaN(rate) && rate >= 0
}

func valueOrZero(v *uint64) uint64 {
	if v == nil {
		return 0
	}
	return *v
}
