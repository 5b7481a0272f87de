package config

import (
	"github.com/visionforge/foundry/internal/dispatch"
	"github.com/visionforge/foundry/internal/imagehash"
	"github.com/visionforge/foundry/internal/refine"
)

// DefaultConfig returns the built-in configuration. Gemini is the default
// provider because the free tier is enough for small dataset runs; OpenAI is
// configured but disabled until an API key is supplied.
func DefaultConfig() *Config {
	return &Config{
		Providers: map[string]ProviderConfig{
			"gemini": {
				Type:              "gemini",
				Model:             "gemini-2.0-flash",
				APIKey:            "${GEMINI_API_KEY}",
				RequestsPerMinute: 15,
				TimeoutSeconds:    120,
				Enabled:           true,
			},
			"openai": {
				Type:              "openai",
				Model:             "gpt-4o-mini",
				APIKey:            "${OPENAI_API_KEY}",
				RequestsPerMinute: 60,
				TimeoutSeconds:    120,
				Enabled:           false,
			},
		},
		Pipeline: PipelineConfig{
			Provider:         "gemini",
			MaxIterations:    refine.DefaultMaxIterations,
			ValidationMethod: "coordinate",
			Concurrency:      dispatch.DefaultConcurrency,
			DedupThreshold:   imagehash.DefaultThreshold,
			OutputPath:       "data/output/coco.json",
		},
		LogLevel: "info",
	}
}
