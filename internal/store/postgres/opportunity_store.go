package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oddslab/arbscan/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore using PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates a new OpportunityStore backed by the given
// connection pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const oppSelectCols = `id, venue_a, listing_a_id, listing_a_desc, price_a,
	venue_b, listing_b_id, listing_b_desc, price_b,
	similarity, grade, date_status, is_inverse,
	direction, gross_spread_pct, net_profit_pct, required_capital,
	fee_a_usd, fee_b_usd, fee_total_usd,
	is_profitable, monitor, detected_at`

// Insert stores one arbitrage result.
func (s *OpportunityStore) Insert(ctx context.Context, res domain.ArbitrageResult) error {
	const query = `
		INSERT INTO opportunities (
			id, venue_a, listing_a_id, listing_a_desc, price_a,
			venue_b, listing_b_id, listing_b_desc, price_b,
			similarity, grade, date_status, is_inverse,
			direction, gross_spread_pct, net_profit_pct, required_capital,
			fee_a_usd, fee_b_usd, fee_total_usd,
			is_profitable, monitor, detected_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12, $13,
			$14, $15, $16, $17,
			$18, $19, $20,
			$21, $22, $23
		)`

	m := res.Match
	_, err := s.pool.Exec(ctx, query,
		res.ID, m.A.Venue, m.A.ID, m.A.Description, m.A.Price,
		m.B.Venue, m.B.ID, m.B.Description, m.B.Price,
		m.Similarity, m.Grade, m.DateStatus, m.IsInverse,
		res.Direction, res.GrossSpreadPct, res.NetProfitPct, res.RequiredCapital,
		res.Fees.VenueAFeeUSD, res.Fees.VenueBFeeUSD, res.Fees.TotalUSD,
		res.IsProfitable, res.Monitor, res.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", res.ID, err)
	}
	return nil
}

// ListRecent returns the most recent results ordered by detection time.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.ArbitrageResult, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities ORDER BY detected_at DESC`
	args := []any{}

	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// ListBefore returns results detected before the cutoff, oldest first, for
// archival batching.
func (s *OpportunityStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ArbitrageResult, error) {
	query := `SELECT ` + oppSelectCols + ` FROM opportunities
		WHERE detected_at < $1 ORDER BY detected_at ASC`
	args := []any{cutoff}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	return scanResults(rows)
}

// DeleteBefore removes results detected before the cutoff and reports how
// many rows were deleted.
func (s *OpportunityStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM opportunities WHERE detected_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}

// Stats summarizes the persisted opportunity history.
func (s *OpportunityStore) Stats(ctx context.Context) (domain.HistoricalStats, error) {
	const query = `
		SELECT COUNT(*),
		       COALESCE(SUM(net_profit_pct), 0),
		       COALESCE(AVG(net_profit_pct), 0),
		       MAX(detected_at)
		FROM opportunities`

	var stats domain.HistoricalStats
	err := s.pool.QueryRow(ctx, query).Scan(
		&stats.TotalOpportunities,
		&stats.TotalProfitPct,
		&stats.AverageProfitPct,
		&stats.LastDetectedAt,
	)
	if err != nil {
		return domain.HistoricalStats{}, fmt.Errorf("postgres: opportunity stats: %w", err)
	}
	return stats, nil
}

func scanResults(rows pgx.Rows) ([]domain.ArbitrageResult, error) {
	var results []domain.ArbitrageResult
	for rows.Next() {
		var res domain.ArbitrageResult
		m := &res.Match

		if err := rows.Scan(
			&res.ID, &m.A.Venue, &m.A.ID, &m.A.Description, &m.A.Price,
			&m.B.Venue, &m.B.ID, &m.B.Description, &m.B.Price,
			&m.Similarity, &m.Grade, &m.DateStatus, &m.IsInverse,
			&res.Direction, &res.GrossSpreadPct, &res.NetProfitPct, &res.RequiredCapital,
			&res.Fees.VenueAFeeUSD, &res.Fees.VenueBFeeUSD, &res.Fees.TotalUSD,
			&res.IsProfitable, &res.Monitor, &res.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		results = append(results, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: opportunity rows: %w", err)
	}
	return results, nil
}
