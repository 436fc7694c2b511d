package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// StrategyConfigStore implements domain.StrategyConfigStore using PostgreSQL.
// Parameters are stored as JSONB so new fields survive without a migration.
type StrategyConfigStore struct {
	pool *pgxpool.Pool
}

// NewStrategyConfigStore creates a new StrategyConfigStore backed by the given pool.
func NewStrategyConfigStore(pool *pgxpool.Pool) *StrategyConfigStore {
	return &StrategyConfigStore{pool: pool}
}

// Get retrieves a single strategy configuration.
func (s *StrategyConfigStore) Get(ctx context.Context, strategy domain.StrategyType) (domain.StrategyConfigRecord, error) {
	const query = `SELECT strategy, params_json, updated_at FROM strategy_configs WHERE strategy = $1`

	var rec domain.StrategyConfigRecord
	var name string
	var paramsJSON []byte

	err := s.pool.QueryRow(ctx, query, string(strategy)).Scan(&name, &paramsJSON, &rec.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.StrategyConfigRecord{}, fmt.Errorf("postgres: strategy config %s: %w", strategy, domain.ErrNotFound)
		}
		return domain.StrategyConfigRecord{}, fmt.Errorf("postgres: get strategy config %s: %w", strategy, err)
	}

	rec.Strategy = domain.StrategyType(name)
	if err := json.Unmarshal(paramsJSON, &rec.Params); err != nil {
		return domain.StrategyConfigRecord{}, fmt.Errorf("postgres: unmarshal strategy config %s: %w", strategy, err)
	}
	return rec, nil
}

// Upsert inserts or updates a strategy configuration.
func (s *StrategyConfigStore) Upsert(ctx context.Context, rec domain.StrategyConfigRecord) error {
	paramsJSON, err := json.Marshal(rec.Params)
	if err != nil {
		return fmt.Errorf("postgres: marshal strategy config %s: %w", rec.Strategy, err)
	}

	const query = `
		INSERT INTO strategy_configs (strategy, params_json, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (strategy) DO UPDATE SET
			params_json = EXCLUDED.params_json,
			updated_at  = NOW()`

	if _, err := s.pool.Exec(ctx, query, string(rec.Strategy), paramsJSON); err != nil {
		return fmt.Errorf("postgres: upsert strategy config %s: %w", rec.Strategy, err)
	}
	return nil
}

// List returns all persisted strategy configurations.
func (s *StrategyConfigStore) List(ctx context.Context) ([]domain.StrategyConfigRecord, error) {
	const query = `SELECT strategy, params_json, updated_at FROM strategy_configs ORDER BY strategy`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list strategy configs: %w", err)
	}
	defer rows.Close()

	var records []domain.StrategyConfigRecord
	for rows.Next() {
		var rec domain.StrategyConfigRecord
		var name string
		var paramsJSON []byte

		if err := rows.Scan(&name, &paramsJSON, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("postgres: scan strategy config: %w", err)
		}
		rec.Strategy = domain.StrategyType(name)
		if err := json.Unmarshal(paramsJSON, &rec.Params); err != nil {
			return nil, fmt.Errorf("postgres: unmarshal strategy config %s: %w", name, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list strategy configs rows: %w", err)
	}
	return records, nil
}
