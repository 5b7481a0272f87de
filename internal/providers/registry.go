package providers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ClientConfig configures one inference provider entry.
type ClientConfig struct {
	Type              string // "gemini", "openai", "mock"
	Model             string
	APIKey            string
	BaseURL           string
	RequestsPerMinute int
	TimeoutSeconds    int
	Enabled           bool
}

// RegistryConfig maps provider names to their configuration.
type RegistryConfig struct {
	Clients map[string]ClientConfig
}

// Registry holds vision clients keyed by name, each wrapped with its shared
// rate limiter. Supports config-driven instantiation and thread-safe access.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*LimitedClient
	logger  *slog.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		clients: make(map[string]*LimitedClient),
		logger:  logger,
	}
}

// Register adds a client by name, wrapping it with a shared rate limiter.
func (r *Registry) Register(name string, client VisionClient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[name] = NewLimitedClient(client)
	r.logger.Info("registered vision client", "name", name, "provider", client.Name())
}

// Get returns the named client.
func (r *Registry) Get(name string) (*LimitedClient, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[name]
	if !ok {
		return nil, fmt.Errorf("unknown vision client: %s", name)
	}
	return client, nil
}

// Names returns all registered client names.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	return names
}

// LoadFromConfig instantiates and registers every enabled client.
func (r *Registry) LoadFromConfig(ctx context.Context, cfg RegistryConfig) error {
	for name, cc := range cfg.Clients {
		if !cc.Enabled {
			continue
		}
		client, err := buildClient(ctx, cc)
		if err != nil {
			return fmt.Errorf("failed to build client %s: %w", name, err)
		}
		r.Register(name, client)
	}
	return nil
}

func buildClient(ctx context.Context, cc ClientConfig) (VisionClient, error) {
	timeout := time.Duration(cc.TimeoutSeconds) * time.Second
	switch cc.Type {
	case "gemini":
		return NewGeminiClient(ctx, GeminiConfig{
			APIKey:            cc.APIKey,
			Model:             cc.Model,
			RequestsPerMinute: cc.RequestsPerMinute,
			Timeout:           timeout,
		})
	case "openai":
		return NewOpenAIClient(OpenAIConfig{
			APIKey:            cc.APIKey,
			Model:             cc.Model,
			BaseURL:           cc.BaseURL,
			RequestsPerMinute: cc.RequestsPerMinute,
			Timeout:           timeout,
		})
	case "mock":
		return NewMockClient(), nil
	default:
		return nil, fmt.Errorf("unknown provider type: %s", cc.Type)
	}
}
