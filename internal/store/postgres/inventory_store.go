package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// InventoryStore implements domain.InventoryStore using PostgreSQL.
type InventoryStore struct {
	pool *pgxpool.Pool
}

// NewInventoryStore creates a new InventoryStore backed by the given pool.
func NewInventoryStore(pool *pgxpool.Pool) *InventoryStore {
	return &InventoryStore{pool: pool}
}

// Upsert writes one (market, outcome) position.
func (s *InventoryStore) Upsert(ctx context.Context, pos domain.InventoryPosition) error {
	const query = `
		INSERT INTO inventory_positions (condition_id, outcome, token_id, size, cost_basis, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (condition_id, outcome) DO UPDATE SET
			token_id   = EXCLUDED.token_id,
			size       = EXCLUDED.size,
			cost_basis = EXCLUDED.cost_basis,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		pos.ConditionID, pos.Outcome, pos.TokenID, pos.Size, pos.CostBasis,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert inventory %s/%s: %w", pos.ConditionID, pos.Outcome, err)
	}
	return nil
}

// ListByMarket returns the positions held in one market.
func (s *InventoryStore) ListByMarket(ctx context.Context, conditionID string) ([]domain.InventoryPosition, error) {
	const query = `
		SELECT condition_id, outcome, token_id, size, cost_basis, updated_at
		FROM inventory_positions WHERE condition_id = $1 ORDER BY outcome`

	rows, err := s.pool.Query(ctx, query, conditionID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list inventory %s: %w", conditionID, err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

// List returns every persisted position.
func (s *InventoryStore) List(ctx context.Context) ([]domain.InventoryPosition, error) {
	const query = `
		SELECT condition_id, outcome, token_id, size, cost_basis, updated_at
		FROM inventory_positions ORDER BY condition_id, outcome`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list inventory: %w", err)
	}
	defer rows.Close()

	return scanPositions(rows)
}

func scanPositions(rows pgx.Rows) ([]domain.InventoryPosition, error) {
	var positions []domain.InventoryPosition
	for rows.Next() {
		var pos domain.InventoryPosition
		err := rows.Scan(&pos.ConditionID, &pos.Outcome, &pos.TokenID, &pos.Size, &pos.CostBasis, &pos.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan inventory position: %w", err)
		}
		positions = append(positions, pos)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: inventory rows: %w", err)
	}
	return positions, nil
}
