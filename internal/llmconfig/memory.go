package llmconfig

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository is a thread-safe in-memory Repository.
type InMemoryRepository struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewInMemoryRepository creates an empty in-memory repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{}
}

func (r *InMemoryRepository) Get(ctx context.Context) (*Config, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.cfg == nil {
		return nil, ErrNotConfigured
	}
	out := *r.cfg
	return &out, nil
}

func (r *InMemoryRepository) Upsert(ctx context.Context, cfg Config) (*Config, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cfg = cfg.WithDefaults()
	cfg.UpdatedAt = time.Now().UTC()
	r.cfg = &cfg
	out := cfg
	return &out, nil
}

func (r *InMemoryRepository) Delete(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.cfg == nil {
		return ErrNotConfigured
	}
	r.cfg = nil
	return nil
}
