// Package config handles loading, validating, and hot-reloading the
// pipeline configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	yaml "gopkg.in/yaml.v2"

	"github.com/visionforge/foundry/internal/providers"
	"github.com/visionforge/foundry/internal/quality"
	"github.com/visionforge/foundry/internal/refine"
)

// ProviderConfig is one inference provider entry.
type ProviderConfig struct {
	Type              string `mapstructure:"type" yaml:"type"`
	Model             string `mapstructure:"model" yaml:"model"`
	APIKey            string `mapstructure:"api_key" yaml:"api_key"`
	BaseURL           string `mapstructure:"base_url" yaml:"base_url,omitempty"`
	RequestsPerMinute int    `mapstructure:"requests_per_minute" yaml:"requests_per_minute"`
	TimeoutSeconds    int    `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	Enabled           bool   `mapstructure:"enabled" yaml:"enabled"`
}

// PipelineConfig controls the refinement run.
type PipelineConfig struct {
	Provider         string `mapstructure:"provider" yaml:"provider"`
	MaxIterations    int    `mapstructure:"max_iterations" yaml:"max_iterations"`
	ValidationMethod string `mapstructure:"validation_method" yaml:"validation_method"`
	Concurrency      int    `mapstructure:"concurrency" yaml:"concurrency"`
	DedupThreshold   int    `mapstructure:"dedup_threshold" yaml:"dedup_threshold"`
	OutputPath       string `mapstructure:"output_path" yaml:"output_path"`
}

// Config is the full application configuration.
type Config struct {
	Providers map[string]ProviderConfig `mapstructure:"providers" yaml:"providers"`
	Pipeline  PipelineConfig            `mapstructure:"pipeline" yaml:"pipeline"`
	LogLevel  string                    `mapstructure:"log_level" yaml:"log_level"`
}

// Validate checks the bounds the refinement core depends on.
func (c *Config) Validate() error {
	p := c.Pipeline
	if p.MaxIterations < 1 || p.MaxIterations > refine.MaxIterationsCeiling {
		return fmt.Errorf("pipeline.max_iterations must be 1..%d, got %d",
			refine.MaxIterationsCeiling, p.MaxIterations)
	}
	if p.Concurrency < 1 {
		return fmt.Errorf("pipeline.concurrency must be >= 1, got %d", p.Concurrency)
	}
	if _, err := quality.ParseMethod(p.ValidationMethod); err != nil {
		return fmt.Errorf("pipeline.validation_method: %w", err)
	}
	if _, ok := c.Providers[p.Provider]; !ok {
		return fmt.Errorf("pipeline.provider %q is not configured", p.Provider)
	}
	return nil
}

// Manager handles loading and hot-reloading configuration.
type Manager struct {
	v *viper.Viper

	mu        sync.RWMutex
	config    *Config
	callbacks []func(*Config)
}

// NewManager creates a config manager and loads the initial config. An empty
// cfgFile falls back to config.yaml in the working directory or ~/.foundry.
func NewManager(cfgFile string) (*Manager, error) {
	cm := &Manager{v: viper.New()}

	if err := cm.initViper(cfgFile); err != nil {
		return nil, err
	}

	cfg, err := cm.load()
	if err != nil {
		return nil, err
	}
	cm.config = cfg

	return cm, nil
}

func (cm *Manager) initViper(cfgFile string) error {
	defaults := DefaultConfig()
	cm.v.SetDefault("providers", defaults.Providers)
	cm.v.SetDefault("pipeline", defaults.Pipeline)
	cm.v.SetDefault("log_level", defaults.LogLevel)

	cm.v.SetEnvPrefix("FOUNDRY")
	cm.v.AutomaticEnv()

	if cfgFile != "" {
		cm.v.SetConfigFile(cfgFile)
	} else {
		cm.v.SetConfigName("config")
		cm.v.SetConfigType("yaml")
		cm.v.AddConfigPath(".")
		cm.v.AddConfigPath("$HOME/.foundry")
	}

	// Config file is optional; defaults plus env cover the mock provider.
	if err := cm.v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	return nil
}

func (cm *Manager) load() (*Config, error) {
	var cfg Config
	if err := cm.v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Get returns the current configuration (thread-safe).
func (cm *Manager) Get() *Config {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return cm.config
}

// OnChange registers a callback for config changes.
func (cm *Manager) OnChange(fn func(*Config)) {
	cm.mu.Lock()
	defer cm.mu.Unlock()
	cm.callbacks = append(cm.callbacks, fn)
}

// WatchConfig enables hot-reloading. A reload that fails to parse keeps the
// previous config.
func (cm *Manager) WatchConfig() {
	cm.v.OnConfigChange(func(fsnotify.Event) {
		cfg, err := cm.load()
		if err != nil {
			return
		}

		cm.mu.Lock()
		cm.config = cfg
		callbacks := make([]func(*Config), len(cm.callbacks))
		copy(callbacks, cm.callbacks)
		cm.mu.Unlock()

		for _, fn := range callbacks {
			fn(cfg)
		}
	})
	cm.v.WatchConfig()
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// ResolveEnvVars expands ${ENV_VAR} references in a string.
func ResolveEnvVars(value string) string {
	if value == "" {
		return value
	}
	return envVarPattern.ReplaceAllStringFunc(value, func(match string) string {
		return os.Getenv(match[2 : len(match)-1])
	})
}

// ToRegistryConfig converts the config for providers.Registry, resolving
// ${ENV_VAR} references in API keys.
func (c *Config) ToRegistryConfig() providers.RegistryConfig {
	cfg := providers.RegistryConfig{
		Clients: make(map[string]providers.ClientConfig, len(c.Providers)),
	}
	for name, p := range c.Providers {
		cfg.Clients[name] = providers.ClientConfig{
			Type:              p.Type,
			Model:             p.Model,
			APIKey:            ResolveEnvVars(p.APIKey),
			BaseURL:           p.BaseURL,
			RequestsPerMinute: p.RequestsPerMinute,
			TimeoutSeconds:    p.TimeoutSeconds,
			Enabled:           p.Enabled,
		}
	}
	return cfg
}

// WriteDefault writes the default configuration to the specified path.
func WriteDefault(path string) error {
	cfg := DefaultConfig()
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# Foundry configuration
# API keys use ${ENV_VAR} syntax to reference environment variables
# Set these in your shell: export GEMINI_API_KEY=xxx OPENAI_API_KEY=xxx

`)
	return os.WriteFile(path, append(header, data...), 0o644)
}
