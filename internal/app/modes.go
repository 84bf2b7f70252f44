package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oddslab/arbscan/internal/domain"
	"github.com/oddslab/arbscan/internal/service"
)

// ScanMode runs a single cross-venue cycle and exits: poll both venues,
// match, price, persist, and alert. Suited to cron runs and threshold tuning.
func (a *App) ScanMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting scan mode")

	scanSvc := a.buildScanService(deps)
	if err := scanSvc.RunOnce(ctx); err != nil {
		return err
	}
	a.logScanTotals(ctx, deps)
	return nil
}

// logScanTotals reports accumulated detection history after a one-shot scan,
// so repeated cron runs show the running totals without a separate query.
func (a *App) logScanTotals(ctx context.Context, deps *Dependencies) {
	if deps.OpportunityStore == nil {
		return
	}

	stats, err := deps.OpportunityStore.Stats(ctx)
	if err != nil {
		a.logger.WarnContext(ctx, "failed to load opportunity stats", slog.String("error", err.Error()))
		return
	}
	attrs := []any{
		slog.Int64("total_opportunities", stats.TotalOpportunities),
		slog.Float64("avg_net_profit_pct", stats.AverageProfitPct),
	}
	if stats.LastDetectedAt != nil {
		attrs = append(attrs, slog.Time("last_detected_at", *stats.LastDetectedAt))
	}

	if deps.RejectionStore != nil {
		if counts, err := deps.RejectionStore.CountByReason(ctx, time.Now().Add(-24*time.Hour)); err == nil {
			for reason, n := range counts {
				attrs = append(attrs, slog.Int64("rejections_"+strings.ToLower(string(reason)), n))
			}
		}
	}

	a.logger.InfoContext(ctx, "scan totals", attrs...)
}

// MonitorMode runs the continuous scan loop plus the live price-drift feed. A
// monitored pair whose Polymarket leg drifts past the threshold kicks an
// immediate off-schedule cycle instead of waiting for the next tick.
func (a *App) MonitorMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting monitor mode")

	g, ctx := errgroup.WithContext(ctx)

	scanSvc := a.buildScanService(deps)
	g.Go(func() error { return scanSvc.Run(ctx) })

	if deps.Monitor != nil {
		deps.Monitor.SetReeval(func(_ context.Context, _ domain.ArbitrageResult) {
			scanSvc.Kick()
		})
		g.Go(func() error { return deps.Monitor.Run(ctx) })
	} else {
		a.logger.WarnContext(ctx, "feed disabled, monitor mode runs without live drift tracking")
	}

	if a.cfg.Archive.Enabled && deps.Archiver != nil {
		archiveSvc := service.NewArchiveService(deps.Archiver, service.ArchiveConfig{
			Retention: time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour,
			Interval:  a.cfg.Archive.Interval.Duration,
		}, a.logger)
		g.Go(func() error { return archiveSvc.Run(ctx) })
	}

	return g.Wait()
}

// ArchiveMode runs a single cold-storage pass, moving rows older than the
// retention window to object storage, then exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: archiver not configured")
	}

	archiveSvc := service.NewArchiveService(deps.Archiver, service.ArchiveConfig{
		Retention: time.Duration(a.cfg.Archive.RetentionDays) * 24 * time.Hour,
		Interval:  a.cfg.Archive.Interval.Duration,
	}, a.logger)
	if err := archiveSvc.RunOnce(ctx); err != nil {
		return err
	}

	if deps.BlobReader != nil {
		if keys, err := deps.BlobReader.List(ctx, "archive/"); err == nil {
			a.logger.InfoContext(ctx, "archive contents", slog.Int("objects", len(keys)))
		}
	}
	return nil
}

func (a *App) buildScanService(deps *Dependencies) *service.ScanService {
	var monitor service.MonitorSink
	if deps.Monitor != nil {
		monitor = deps.Monitor
	}
	return service.NewScanService(
		deps.KalshiPoller,
		deps.PolymarketPoller,
		deps.Engine,
		deps.OpportunityStore,
		deps.RejectionStore,
		deps.SignalBus,
		deps.AlertLimiter,
		deps.Notifier,
		monitor,
		service.ScanConfig{
			Interval:      a.cfg.Polling.Interval.Duration,
			AlertCooldown: a.cfg.Notify.AlertCooldown.Duration,
		},
		a.logger,
	)
}
