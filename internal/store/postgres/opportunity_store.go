package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/polyedge/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunityColumns = `
	id, condition_id, question, strategy, price_sum, spread,
	expected_profit, actual_profit, investment_amount, confidence,
	tokens, status, steps, error_message, retry_count,
	created_at, queued_at, started_at, completed_at`

// Create inserts a new opportunity record.
func (s *OpportunityStore) Create(ctx context.Context, opp domain.Opportunity) error {
	tokens, steps, err := marshalOppJSON(opp)
	if err != nil {
		return fmt.Errorf("postgres: marshal opportunity %s: %w", opp.ID, err)
	}

	const query = `
		INSERT INTO opportunities (` + opportunityColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`

	_, err = s.pool.Exec(ctx, query,
		opp.ID, opp.ConditionID, opp.Question, string(opp.Strategy),
		opp.PriceSum, opp.Spread, opp.ExpectedProfit, opp.ActualProfit,
		opp.InvestmentAmount, string(opp.Confidence), tokens, string(opp.Status),
		steps, opp.ErrorMessage, opp.RetryCount,
		opp.CreatedAt, opp.QueuedAt, opp.StartedAt, opp.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: create opportunity %s: %w", opp.ID, err)
	}
	return nil
}

// Update overwrites the mutable columns of an existing opportunity.
func (s *OpportunityStore) Update(ctx context.Context, opp domain.Opportunity) error {
	tokens, steps, err := marshalOppJSON(opp)
	if err != nil {
		return fmt.Errorf("postgres: marshal opportunity %s: %w", opp.ID, err)
	}

	const query = `
		UPDATE opportunities SET
			actual_profit = $2,
			tokens        = $3,
			status        = $4,
			steps         = $5,
			error_message = $6,
			retry_count   = $7,
			queued_at     = $8,
			started_at    = $9,
			completed_at  = $10
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query,
		opp.ID, opp.ActualProfit, tokens, string(opp.Status), steps,
		opp.ErrorMessage, opp.RetryCount, opp.QueuedAt, opp.StartedAt, opp.CompletedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: update opportunity %s: %w", opp.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update opportunity %s: %w", opp.ID, domain.ErrNotFound)
	}
	return nil
}

// GetByID retrieves a single opportunity.
func (s *OpportunityStore) GetByID(ctx context.Context, id string) (domain.Opportunity, error) {
	const query = `SELECT ` + opportunityColumns + ` FROM opportunities WHERE id = $1`

	opp, err := scanOpportunity(s.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Opportunity{}, fmt.Errorf("postgres: opportunity %s: %w", id, domain.ErrNotFound)
		}
		return domain.Opportunity{}, fmt.Errorf("postgres: get opportunity %s: %w", id, err)
	}
	return opp, nil
}

// List returns opportunities matching the filter, newest first.
func (s *OpportunityStore) List(ctx context.Context, f domain.OpportunityFilter) ([]domain.Opportunity, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}

	if f.Strategy != "" {
		add("strategy = ?", string(f.Strategy))
	}
	if f.Status != "" {
		add("status = ?", string(f.Status))
	}
	if f.ConditionID != "" {
		add("condition_id = ?", f.ConditionID)
	}
	if f.Since != nil {
		add("created_at >= ?", *f.Since)
	}

	query := `SELECT ` + opportunityColumns + ` FROM opportunities`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		query += " OFFSET $" + strconv.Itoa(len(args))
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities: %w", err)
	}
	defer rows.Close()

	var opps []domain.Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list opportunities rows: %w", err)
	}
	return opps, nil
}

// CountByStatus returns per-status counts for one strategy.
func (s *OpportunityStore) CountByStatus(ctx context.Context, strategy domain.StrategyType) (map[domain.OpportunityStatus]int64, error) {
	const query = `
		SELECT status, COUNT(*) FROM opportunities
		WHERE strategy = $1
		GROUP BY status`

	rows, err := s.pool.Query(ctx, query, string(strategy))
	if err != nil {
		return nil, fmt.Errorf("postgres: count opportunities: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.OpportunityStatus]int64)
	for rows.Next() {
		var status string
		var n int64
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan count: %w", err)
		}
		counts[domain.OpportunityStatus(status)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: count opportunities rows: %w", err)
	}
	return counts, nil
}

// ListTerminalBefore returns terminal opportunities completed before the
// cutoff, oldest first, for the archive job.
func (s *OpportunityStore) ListTerminalBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Opportunity, error) {
	const query = `
		SELECT ` + opportunityColumns + ` FROM opportunities
		WHERE status IN ('SUCCESS','PARTIAL','FAILED','EXPIRED','CANCELLED')
		  AND completed_at IS NOT NULL
		  AND completed_at < $1
		ORDER BY completed_at ASC
		LIMIT $2`

	rows, err := s.pool.Query(ctx, query, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list terminal opportunities: %w", err)
	}
	defer rows.Close()

	var opps []domain.Opportunity
	for rows.Next() {
		opp, err := scanOpportunity(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		opps = append(opps, opp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list terminal opportunities rows: %w", err)
	}
	return opps, nil
}

// ---------------------------------------------------------------------------
// Row helpers
// ---------------------------------------------------------------------------

func marshalOppJSON(opp domain.Opportunity) (tokens, steps []byte, err error) {
	if opp.Tokens == nil {
		opp.Tokens = []domain.TokenLeg{}
	}
	if opp.Steps == nil {
		opp.Steps = []domain.ExecutionStep{}
	}
	tokens, err = json.Marshal(opp.Tokens)
	if err != nil {
		return nil, nil, err
	}
	steps, err = json.Marshal(opp.Steps)
	if err != nil {
		return nil, nil, err
	}
	return tokens, steps, nil
}

func scanOpportunity(row pgx.Row) (domain.Opportunity, error) {
	var (
		opp        domain.Opportunity
		strategy   string
		confidence string
		status     string
		tokensJSON []byte
		stepsJSON  []byte
	)

	err := row.Scan(
		&opp.ID, &opp.ConditionID, &opp.Question, &strategy, &opp.PriceSum,
		&opp.Spread, &opp.ExpectedProfit, &opp.ActualProfit,
		&opp.InvestmentAmount, &confidence, &tokensJSON, &status,
		&stepsJSON, &opp.ErrorMessage, &opp.RetryCount,
		&opp.CreatedAt, &opp.QueuedAt, &opp.StartedAt, &opp.CompletedAt,
	)
	if err != nil {
		return domain.Opportunity{}, err
	}

	opp.Strategy = domain.StrategyType(strategy)
	opp.Confidence = domain.Confidence(confidence)
	opp.Status = domain.OpportunityStatus(status)
	if len(tokensJSON) > 0 {
		if err := json.Unmarshal(tokensJSON, &opp.Tokens); err != nil {
			return domain.Opportunity{}, err
		}
	}
	if len(stepsJSON) > 0 {
		if err := json.Unmarshal(stepsJSON, &opp.Steps); err != nil {
			return domain.Opportunity{}, err
		}
	}
	return opp, nil
}
