package graphiti

import (
	"errors"
	"strings"
	"time"
)

// Config holds configuration for the graphiti service client.
type Config struct {
	// BaseURL is the base URL of the graphiti HTTP service.
	// Example: "http://localhost:8093"
	BaseURL string

	// APIKey authenticates against the service. Empty for unauthenticated
	// local deployments.
	APIKey string

	// RequestTimeout bounds each HTTP request. The orchestrator layers its
	// own per-episode deadline on top via context.
	RequestTimeout time.Duration
}

// ConfigOption is a functional option for configuring a Config.
type ConfigOption func(*Config)

// WithBaseURL sets the service base URL.
func WithBaseURL(url string) ConfigOption {
	return func(c *Config) {
		c.BaseURL = url
	}
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) ConfigOption {
	return func(c *Config) {
		c.APIKey = key
	}
}

// WithRequestTimeout sets the per-request timeout.
func WithRequestTimeout(timeout time.Duration) ConfigOption {
	return func(c *Config) {
		c.RequestTimeout = timeout
	}
}

// DefaultConfig returns a Config with sensible defaults for a local service.
func DefaultConfig() *Config {
	return &Config{
		BaseURL:        "http://localhost:8093",
		RequestTimeout: 60 * time.Second,
	}
}

// NewConfig creates a Config with default values and applies the provided
// options.
func NewConfig(opts ...ConfigOption) *Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// Validate checks that the configuration is valid and complete.
func (c *Config) Validate() error {
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if c.BaseURL == "" {
		return errors.New("graphiti config: BaseURL is required")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("graphiti config: RequestTimeout must be positive")
	}
	return nil
}
