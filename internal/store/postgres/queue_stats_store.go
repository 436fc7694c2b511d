package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// QueueStatsStore implements domain.QueueStatsStore using PostgreSQL.
type QueueStatsStore struct {
	pool *pgxpool.Pool
}

// NewQueueStatsStore creates a new QueueStatsStore backed by the given pool.
func NewQueueStatsStore(pool *pgxpool.Pool) *QueueStatsStore {
	return &QueueStatsStore{pool: pool}
}

// Record appends one queue status sample.
func (s *QueueStatsStore) Record(ctx context.Context, status domain.QueueStatus) error {
	const query = `
		INSERT INTO queue_stats (name, size, pending, max_size, state, processed_count, error_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	_, err := s.pool.Exec(ctx, query,
		status.Name, status.Size, status.Pending, status.MaxSize,
		string(status.State), status.ProcessedCount, status.ErrorCount,
	)
	if err != nil {
		return fmt.Errorf("postgres: record queue stats %s: %w", status.Name, err)
	}
	return nil
}

// Latest returns the most recent sample per queue.
func (s *QueueStatsStore) Latest(ctx context.Context) ([]domain.QueueStatus, error) {
	const query = `
		SELECT DISTINCT ON (name)
			name, size, pending, max_size, state, processed_count, error_count
		FROM queue_stats
		ORDER BY name, sampled_at DESC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: latest queue stats: %w", err)
	}
	defer rows.Close()

	var statuses []domain.QueueStatus
	for rows.Next() {
		var st domain.QueueStatus
		var state string
		err := rows.Scan(&st.Name, &st.Size, &st.Pending, &st.MaxSize, &state, &st.ProcessedCount, &st.ErrorCount)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan queue stats: %w", err)
		}
		st.State = domain.QueueState(state)
		statuses = append(statuses, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: latest queue stats rows: %w", err)
	}
	return statuses, nil
}
