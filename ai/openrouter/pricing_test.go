package openrouter

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateCost_KnownModels(t *testing.T) {
	tests := []struct {
		name             string
		model            string
		promptTokens     int
		completionTokens int
		expected         float64
	}{
		// (0.15 * 1000 + 0.60 * 500) / 1M
		{"gpt-4o-mini", "openai/gpt-4o-mini", 1000, 500, 0.00045},
		// (2.50 * 5000 + 10.00 * 2000) / 1M
		{"gpt-4o", "openai/gpt-4o", 5000, 2000, 0.0325},
		// (3.00 * 10000 + 15.00 * 5000) / 1M
		{"claude sonnet", "anthropic/claude-3.5-sonnet", 10000, 5000, 0.105},
		{"zero tokens", "openai/gpt-4o-mini", 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CalculateCost(tt.model, tt.promptTokens, tt.completionTokens), 1e-9)
		})
	}
}

func TestCalculateCost_UnknownModelUsesFallback(t *testing.T) {
	assert.Equal(t, DefaultPricingFallback, CalculateCost("someone/unlisted-model", 123456, 7890))
}

func TestGetPricing(t *testing.T) {
	p, ok := GetPricing(DefaultModel)
	assert.True(t, ok)
	assert.Equal(t, 0.15, p.PromptPrice)

	_, ok = GetPricing("nope/nope")
	assert.False(t, ok)
}
