// Package llmconfig stores the single LLM provider configuration used by
// the analysis endpoint.
package llmconfig

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Defaults applied when a field is left empty.
const (
	DefaultBaseURL = "https://api.openai.com/v1"
	DefaultModel   = "gpt-4o-mini"
)

// ErrNotConfigured is returned when no configuration has been stored.
var ErrNotConfigured = errors.New("llm configuration not set")

// Config holds provider settings.
type Config struct {
	APIKey    string    `json:"-"`
	BaseURL   string    `json:"baseUrl"`
	Model     string    `json:"model"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// HasAPIKey reports whether an API key is set.
func (c Config) HasAPIKey() bool { return c.APIKey != "" }

// WithDefaults fills empty fields with the defaults.
func (c Config) WithDefaults() Config {
	if strings.TrimSpace(c.BaseURL) == "" {
		c.BaseURL = DefaultBaseURL
	}
	if strings.TrimSpace(c.Model) == "" {
		c.Model = DefaultModel
	}
	return c
}

// Repository persists the singleton configuration.
type Repository interface {
	Get(ctx context.Context) (*Config, error)
	Upsert(ctx context.Context, cfg Config) (*Config, error)
	Delete(ctx context.Context) error
}

// Resolver returns the stored configuration, falling back to a static one
// (typically from the environment) when nothing is stored.
type Resolver struct {
	repo     Repository
	fallback Config
}

// NewResolver creates a Resolver. An empty fallback API key disables the
// fallback.
func NewResolver(repo Repository, fallback Config) *Resolver {
	return &Resolver{repo: repo, fallback: fallback}
}

// Effective returns the configuration to use for a call.
func (r *Resolver) Effective(ctx context.Context) (*Config, error) {
	cfg, err := r.repo.Get(ctx)
	if err == nil && cfg.HasAPIKey() {
		out := cfg.WithDefaults()
		return &out, nil
	}
	if err != nil && !errors.Is(err, ErrNotConfigured) {
		return nil, err
	}
	if r.fallback.HasAPIKey() {
		out := r.fallback.WithDefaults()
		return &out, nil
	}
	return nil, ErrNotConfigured
}
