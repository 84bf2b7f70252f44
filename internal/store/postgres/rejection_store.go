package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/oddslab/arbscan/internal/domain"
)

// RejectionStore implements domain.RejectionStore using PostgreSQL.
type RejectionStore struct {
	pool *pgxpool.Pool
}

// NewRejectionStore creates a new RejectionStore backed by the given
// connection pool.
func NewRejectionStore(pool *pgxpool.Pool) *RejectionStore {
	return &RejectionStore{pool: pool}
}

// InsertBatch stores a batch of rejection records in a single round trip.
func (s *RejectionStore) InsertBatch(ctx context.Context, recs []domain.RejectionRecord) error {
	if len(recs) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	const query = `
		INSERT INTO rejections (listing_a_id, listing_b_id, reason, similarity, note, rejected_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	for _, rec := range recs {
		batch.Queue(query,
			rec.ListingAID, rec.ListingBID, rec.Reason,
			rec.Similarity, rec.Note, rec.At,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for range recs {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert rejection batch: %w", err)
		}
	}
	return nil
}

// ListBefore returns rejections recorded before the cutoff, oldest first,
// for archival batching.
func (s *RejectionStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.RejectionRecord, error) {
	query := `
		SELECT listing_a_id, listing_b_id, reason, similarity, note, rejected_at
		FROM rejections
		WHERE rejected_at < $1
		ORDER BY rejected_at ASC`
	args := []any{cutoff}

	if limit > 0 {
		query += " LIMIT $2"
		args = append(args, limit)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list rejections before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var recs []domain.RejectionRecord
	for rows.Next() {
		var rec domain.RejectionRecord
		if err := rows.Scan(
			&rec.ListingAID, &rec.ListingBID, &rec.Reason,
			&rec.Similarity, &rec.Note, &rec.At,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan rejection: %w", err)
		}
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rejection rows: %w", err)
	}
	return recs, nil
}

// CountByReason tallies rejections recorded since the given time, grouped by
// reason code.
func (s *RejectionStore) CountByReason(ctx context.Context, since time.Time) (map[domain.ReasonCode]int64, error) {
	const query = `
		SELECT reason, COUNT(*)
		FROM rejections
		WHERE rejected_at >= $1
		GROUP BY reason`

	rows, err := s.pool.Query(ctx, query, since)
	if err != nil {
		return nil, fmt.Errorf("postgres: count rejections by reason: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.ReasonCode]int64)
	for rows.Next() {
		var reason domain.ReasonCode
		var n int64
		if err := rows.Scan(&reason, &n); err != nil {
			return nil, fmt.Errorf("postgres: scan rejection count: %w", err)
		}
		counts[reason] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: rejection count rows: %w", err)
	}
	return counts, nil
}

// DeleteBefore removes rejections recorded before the cutoff and reports how
// many rows were deleted.
func (s *RejectionStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		"DELETE FROM rejections WHERE rejected_at < $1", cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete rejections before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	return tag.RowsAffected(), nil
}
