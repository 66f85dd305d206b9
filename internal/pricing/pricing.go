package pricing

import (
	"math"
	"strings"

	"github.com/arketa-lab/gradeflow-api/pkg/ai"
)

// Rate holds the per-token prices for one model.
type Rate struct {
	PromptPerToken     float64
	CompletionPerToken float64
}

// Cost is the monetary breakdown of one provider invocation.
type Cost struct {
	PromptCost     float64 `json:"prompt_cost"`
	CompletionCost float64 `json:"completion_cost"`
	TotalCost      float64 `json:"total_cost"`
}

// Table maps provider → model → rate. It is built once at process start and
// never mutated afterwards; lookups on unknown models fall back to
// DefaultRate so cost accounting keeps working when new models appear.
type Table struct {
	rates       map[string]map[string]Rate
	defaultRate Rate
}

// DefaultRate is applied when a (provider, model) pair is not in the table.
// It deliberately overestimates, matching the most expensive listed model.
var DefaultRate = Rate{PromptPerToken: 0.00001, CompletionPerToken: 0.00003}

// DefaultTable returns the built-in price table. Prices are expressed in
// USD per single token (the common $/1K figures divided by 1000).
func DefaultTable() Table {
	return NewTable(map[string]map[string]Rate{
		"openai": {
			"gpt-4o":        {PromptPerToken: 0.0000025, CompletionPerToken: 0.00001},
			"gpt-4o-mini":   {PromptPerToken: 0.00000015, CompletionPerToken: 0.0000006},
			"gpt-4-turbo":   {PromptPerToken: 0.00001, CompletionPerToken: 0.00003},
			"gpt-3.5-turbo": {PromptPerToken: 0.0000005, CompletionPerToken: 0.0000015},
		},
	}, DefaultRate)
}

// NewTable builds an immutable table from the given rates. The input map is
// copied so later mutation by the caller has no effect.
func NewTable(rates map[string]map[string]Rate, defaultRate Rate) Table {
	copied := make(map[string]map[string]Rate, len(rates))
	for provider, models := range rates {
		providerRates := make(map[string]Rate, len(models))
		for model, rate := range models {
			providerRates[strings.ToLower(model)] = rate
		}
		copied[strings.ToLower(provider)] = providerRates
	}
	return Table{rates: copied, defaultRate: defaultRate}
}

// Lookup returns the rate for the given provider and model, falling back to
// the default rate when either is unknown.
func (t Table) Lookup(provider, model string) Rate {
	models, ok := t.rates[strings.ToLower(provider)]
	if !ok {
		return t.defaultRate
	}
	rate, ok := models[strings.ToLower(model)]
	if !ok {
		return t.defaultRate
	}
	return rate
}

// Calculate converts token usage into monetary cost. Pure: no state is read
// beyond the table. Each component is rounded half-up to 6 decimal places.
func (t Table) Calculate(provider, model string, usage ai.Usage) Cost {
	rate := t.Lookup(provider, model)
	promptCost := round6(float64(usage.PromptTokens) * rate.PromptPerToken)
	completionCost := round6(float64(usage.CompletionTokens) * rate.CompletionPerToken)
	return Cost{
		PromptCost:     promptCost,
		CompletionCost: completionCost,
		TotalCost:      round6(promptCost + completionCost),
	}
}

func round6(value float64) float64 {
	return math.Round(value*1e6) / 1e6
}
