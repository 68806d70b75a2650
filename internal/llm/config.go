// Package llm provides the Gemini client plus model selection, prompt
// building and response parsing shared by extraction and generation.
package llm

import "maps"

// ModelTier represents the capability level a task needs. Posting extraction
// runs on the lite tier, artifact generation on standard, and nothing in the
// service currently needs advanced.
type ModelTier string

const (
	TierLite     ModelTier = "lite"
	TierStandard ModelTier = "standard"
	TierAdvanced ModelTier = "advanced"
)

// Provider identifies an LLM provider.
type Provider string

const (
	ProviderGemini Provider = "gemini"
	// ProviderOpenAI is reserved for a future second provider.
	ProviderOpenAI Provider = "openai"
)

// Config maps tiers to concrete model names for one provider.
type Config struct {
	Provider Provider
	Models   map[ModelTier]string
}

// DefaultConfig returns the Gemini tier mapping the service ships with.
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderGemini,
		Models: map[ModelTier]string{
			TierLite:     "gemini-2.5-flash-lite",
			TierStandard: "gemini-2.5-flash",
			TierAdvanced: "gemini-2.5-pro",
		},
	}
}

// GetModel resolves a tier to a model name. Unknown tiers fall back to
// standard, then lite, so a partial mapping still resolves.
func (c *Config) GetModel(tier ModelTier) string {
	for _, t := range []ModelTier{tier, TierStandard, TierLite} {
		if model, ok := c.Models[t]; ok {
			return model
		}
	}
	return ""
}

// WithModel returns a copy of the config with one tier overridden.
func (c *Config) WithModel(tier ModelTier, model string) *Config {
	models := make(map[ModelTier]string, len(c.Models)+1)
	maps.Copy(models, c.Models)
	models[tier] = model
	return &Config{Provider: c.Provider, Models: models}
}
