package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/oddslab/arbscan/internal/domain"
)

// ArchiveConfig tunes the retention loop.
type ArchiveConfig struct {
	Retention time.Duration
	Interval  time.Duration
}

// ArchiveService periodically moves aged opportunity and rejection rows to
// cold storage.
type ArchiveService struct {
	archiver domain.Archiver
	cfg      ArchiveConfig
	logger   *slog.Logger
}

// NewArchiveService creates an ArchiveService.
func NewArchiveService(archiver domain.Archiver, cfg ArchiveConfig, logger *slog.Logger) *ArchiveService {
	if cfg.Retention == 0 {
		cfg.Retention = 30 * 24 * time.Hour
	}
	if cfg.Interval == 0 {
		cfg.Interval = 24 * time.Hour
	}
	return &ArchiveService{
		archiver: archiver,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "archive_service")),
	}
}

// Run archives on the configured interval until ctx is cancelled. The first
// pass runs immediately.
func (s *ArchiveService) Run(ctx context.Context) error {
	if err := s.RunOnce(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.ErrorContext(ctx, "archive pass failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "archive loop stopped")
			return ctx.Err()
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				s.logger.ErrorContext(ctx, "archive pass failed", slog.String("error", err.Error()))
			}
		}
	}
}

// RunOnce performs one archive pass over both tables.
func (s *ArchiveService) RunOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.cfg.Retention)

	opps, err := s.archiver.ArchiveOpportunities(ctx, cutoff)
	if err != nil {
		return err
	}
	rejs, err := s.archiver.ArchiveRejections(ctx, cutoff)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "archive pass complete",
		slog.Time("cutoff", cutoff),
		slog.Int64("opportunities", opps),
		slog.Int64("rejections", rejs),
	)
	return nil
}
