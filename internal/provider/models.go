// SPDX-License-Identifier: AGPL-3.0-only
package provider

// Pricing is the per-token rate pair for one model.
type Pricing struct {
	InputPerToken  float64
	OutputPerToken float64
}

// knownModels maps model ids to their published per-token rates (USD).
// Used to fill ModelConfig costs when the operator does not set them
// explicitly. Unknown models keep zero rates; Cost still reports real token
// counts times zero, so operators running private models should configure
// rates by hand.
var knownModels = map[string]Pricing{
	// Anthropic
	"claude-opus-4-1":          {InputPerToken: 15e-6, OutputPerToken: 75e-6},
	"claude-sonnet-4-20250514": {InputPerToken: 3e-6, OutputPerToken: 15e-6},
	"claude-sonnet-4-5":        {InputPerToken: 3e-6, OutputPerToken: 15e-6},
	"claude-3-5-haiku-latest":  {InputPerToken: 0.8e-6, OutputPerToken: 4e-6},

	// OpenAI
	"gpt-4o":      {InputPerToken: 2.5e-6, OutputPerToken: 10e-6},
	"gpt-4o-mini": {InputPerToken: 0.15e-6, OutputPerToken: 0.6e-6},
	"gpt-4.1":     {InputPerToken: 2e-6, OutputPerToken: 8e-6},
	"o4-mini":     {InputPerToken: 1.1e-6, OutputPerToken: 4.4e-6},
}

// PricingFor looks up the catalog rates for a model id.
func PricingFor(model string) (Pricing, bool) {
	p, ok := knownModels[model]
	return p, ok
}

// fillPricing populates zero cost fields from the catalog.
func fillPricing(cfg ModelConfig) ModelConfig {
	if cfg.InputCostPerToken != 0 || cfg.OutputCostPerToken != 0 {
		return cfg
	}
	if p, ok := PricingFor(cfg.Model); ok {
		cfg.InputCostPerToken = p.InputPerToken
		cfg.OutputCostPerToken = p.OutputPerToken
	}
	return cfg
}

// costFromTokens is the single cost formula every binding uses.
func costFromTokens(cfg ModelConfig, inputTokens, outputTokens int64) float64 {
	return float64(inputTokens)*cfg.InputCostPerToken + float64(outputTokens)*cfg.OutputCostPerToken
}
