package llmconfig

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/onnwee/aria/internal/tracing"
)

// PostgresRepository stores the configuration in a single-row table.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a new PostgresRepository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Get returns the stored configuration.
func (r *PostgresRepository) Get(ctx context.Context) (cfg *Config, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "llm_config", tracing.DBOperationQuery)
	defer func() { endSpan(err) }()

	cfg = &Config{}
	err = r.db.QueryRowContext(ctx,
		`SELECT api_key, base_url, model, updated_at FROM llm_config WHERE id = 1`,
	).Scan(&cfg.APIKey, &cfg.BaseURL, &cfg.Model, &cfg.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotConfigured
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get llm config: %w", err)
	}
	return cfg, nil
}

// Upsert creates or replaces the configuration.
func (r *PostgresRepository) Upsert(ctx context.Context, in Config) (cfg *Config, err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "llm_config", tracing.DBOperationInsert)
	defer func() { endSpan(err) }()

	c := in.WithDefaults()
	c.UpdatedAt = time.Now().UTC()

	_, err = r.db.ExecContext(ctx, `
		INSERT INTO llm_config (id, api_key, base_url, model, updated_at)
		VALUES (1, $1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET api_key = EXCLUDED.api_key,
		    base_url = EXCLUDED.base_url,
		    model = EXCLUDED.model,
		    updated_at = EXCLUDED.updated_at`,
		c.APIKey, c.BaseURL, c.Model, c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to save llm config: %w", err)
	}
	return &c, nil
}

// Delete removes the configuration.
func (r *PostgresRepository) Delete(ctx context.Context) (err error) {
	ctx, endSpan := tracing.StartDBSpan(ctx, "llm_config", tracing.DBOperationDelete)
	defer func() { endSpan(err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM llm_config WHERE id = 1`)
	if err != nil {
		return fmt.Errorf("failed to delete llm config: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check llm config delete: %w", err)
	}
	if n == 0 {
		return ErrNotConfigured
	}
	return nil
}
