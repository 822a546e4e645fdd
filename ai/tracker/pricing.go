package tracker

import "strings"

// ModelPricing is USD per million tokens
type ModelPricing struct {
	PromptPrice     float64 // USD per 1M prompt tokens
	CompletionPrice float64 // USD per 1M completion tokens
}

// modelPricing is keyed by bare model name; "models/" and vendor prefixes
// are stripped before lookup.
// TODO: tiered pricing for gemini-2.5-pro prompts over 200k tokens
var modelPricing = map[string]ModelPricing{
	"gemini-3-pro-preview": {PromptPrice: 2.00, CompletionPrice: 12.00},
	"gemini-2.5-pro":       {PromptPrice: 1.25, CompletionPrice: 10.00},
	"gemini-2.5-flash":     {PromptPrice: 0.30, CompletionPrice: 2.50},
	"gemini-flash-latest":  {PromptPrice: 0.30, CompletionPrice: 2.50},
	"gemini-2.0-flash":     {PromptPrice: 0.10, CompletionPrice: 0.40},
	"gemini-2.0-flash-001": {PromptPrice: 0.10, CompletionPrice: 0.40},

	// Common OpenRouter alternatives
	"gpt-4o":            {PromptPrice: 2.50, CompletionPrice: 10.00},
	"gpt-4o-mini":       {PromptPrice: 0.15, CompletionPrice: 0.60},
	"claude-3.5-sonnet": {PromptPrice: 3.00, CompletionPrice: 15.00},
}

// DefaultPricingFallback is the per-request cost when pricing is unknown
const DefaultPricingFallback = 0.01

// bareModel strips "models/" and "vendor/" prefixes
func bareModel(model string) string {
	model = strings.TrimPrefix(model, "models/")
	if i := strings.LastIndex(model, "/"); i >= 0 {
		model = model[i+1:]
	}
	return model
}

// CalculateCost computes the USD cost of a call. Local inference is free.
func CalculateCost(provider, model string, promptTokens, completionTokens int) float64 {
	if provider == "local" {
		return 0
	}

	pricing, found := modelPricing[bareModel(model)]
	if !found {
		return DefaultPricingFallback
	}

	promptCost := (float64(promptTokens) / 1_000_000.0) * pricing.PromptPrice
	completionCost := (float64(completionTokens) / 1_000_000.0) * pricing.CompletionPrice
	return promptCost + completionCost
}

// GetPricing returns pricing information for a model, if known
func GetPricing(model string) (ModelPricing, bool) {
	pricing, found := modelPricing[bareModel(model)]
	return pricing, found
}
