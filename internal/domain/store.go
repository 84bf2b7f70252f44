package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// OpportunityStore persists accepted and monitor-tagged arbitrage results.
type OpportunityStore interface {
	Insert(ctx context.Context, res ArbitrageResult) error
	ListRecent(ctx context.Context, limit int) ([]ArbitrageResult, error)
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]ArbitrageResult, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
	Stats(ctx context.Context) (HistoricalStats, error)
}

// RejectionStore persists rejection records for offline threshold calibration.
type RejectionStore interface {
	InsertBatch(ctx context.Context, recs []RejectionRecord) error
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]RejectionRecord, error)
	CountByReason(ctx context.Context, since time.Time) (map[ReasonCode]int64, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
