// Package service wires the venue pollers, the matching engine, persistence,
// and alerting into long-running scan and archive loops.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/oddslab/arbscan/internal/cache/redis"
	"github.com/oddslab/arbscan/internal/domain"
	"github.com/oddslab/arbscan/internal/engine"
	"github.com/oddslab/arbscan/internal/notify"
)

// Snapshotter produces one listing snapshot per poll. Satisfied by
// poller.Poller.
type Snapshotter interface {
	Venue() domain.Venue
	Poll(ctx context.Context) ([]domain.Listing, error)
}

// CycleRunner runs one match-and-validate pass over two venue snapshots.
// Satisfied by engine.Engine.
type CycleRunner interface {
	RunCycle(ctx context.Context, listingsA, listingsB []domain.Listing) (engine.CycleResult, error)
}

// MonitorSink tracks near-miss results for live price drift. Satisfied by
// feed.Monitor.
type MonitorSink interface {
	Track(res domain.ArbitrageResult)
}

// ScanConfig tunes the scan loop.
type ScanConfig struct {
	Interval      time.Duration
	AlertCooldown time.Duration
}

// ScanService polls both venues on an interval, runs the engine, persists
// the outcome, and routes alerts. A drifted monitor pair kicks an immediate
// off-schedule cycle.
type ScanService struct {
	venueA   Snapshotter
	venueB   Snapshotter
	engine   CycleRunner
	opps     domain.OpportunityStore
	rejs     domain.RejectionStore
	bus      domain.SignalBus
	limiter  domain.AlertLimiter
	notifier *notify.Notifier
	monitor  MonitorSink
	cfg      ScanConfig
	logger   *slog.Logger

	kick chan struct{}
}

// NewScanService creates a ScanService. bus, limiter, notifier, and monitor
// may be nil; the corresponding step is skipped.
func NewScanService(
	venueA, venueB Snapshotter,
	eng CycleRunner,
	opps domain.OpportunityStore,
	rejs domain.RejectionStore,
	bus domain.SignalBus,
	limiter domain.AlertLimiter,
	notifier *notify.Notifier,
	monitor MonitorSink,
	cfg ScanConfig,
	logger *slog.Logger,
) *ScanService {
	if cfg.Interval == 0 {
		cfg.Interval = time.Minute
	}
	if cfg.AlertCooldown == 0 {
		cfg.AlertCooldown = 15 * time.Minute
	}
	return &ScanService{
		venueA:   venueA,
		venueB:   venueB,
		engine:   eng,
		opps:     opps,
		rejs:     rejs,
		bus:      bus,
		limiter:  limiter,
		notifier: notifier,
		monitor:  monitor,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "scan_service")),
		kick:     make(chan struct{}, 1),
	}
}

// Kick requests an immediate off-schedule cycle, coalescing with any pending
// request. Used by the drift monitor.
func (s *ScanService) Kick() {
	select {
	case s.kick <- struct{}{}:
	default:
	}
}

// Run executes scan cycles until ctx is cancelled. A failed cycle is logged
// and the loop continues; only context cancellation stops it.
func (s *ScanService) Run(ctx context.Context) error {
	if err := s.RunOnce(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.logger.ErrorContext(ctx, "scan cycle failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.InfoContext(ctx, "scan loop stopped")
			return ctx.Err()
		case <-ticker.C:
		case <-s.kick:
			s.logger.InfoContext(ctx, "off-schedule cycle requested")
		}

		if err := s.RunOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			s.logger.ErrorContext(ctx, "scan cycle failed", slog.String("error", err.Error()))
		}
	}
}

// RunOnce polls both venues and runs a single cycle. One venue being down
// skips the cycle without error; cross-venue matching needs both sides.
func (s *ScanService) RunOnce(ctx context.Context) error {
	started := time.Now()

	var (
		wg                 sync.WaitGroup
		snapA, snapB       []domain.Listing
		pollErrA, pollErrB error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		snapA, pollErrA = s.venueA.Poll(ctx)
	}()
	go func() {
		defer wg.Done()
		snapB, pollErrB = s.venueB.Poll(ctx)
	}()
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	if pollErrA != nil || pollErrB != nil {
		for _, pe := range []struct {
			venue domain.Venue
			err   error
		}{{s.venueA.Venue(), pollErrA}, {s.venueB.Venue(), pollErrB}} {
			if pe.err != nil {
				s.logger.WarnContext(ctx, "venue snapshot unavailable, skipping cycle",
					slog.String("venue", string(pe.venue)),
					slog.String("error", pe.err.Error()),
				)
			}
		}
		return nil
	}

	cycle, err := s.engine.RunCycle(ctx, snapA, snapB)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	if err := s.persist(ctx, cycle); err != nil {
		s.logger.ErrorContext(ctx, "cycle persistence failed", slog.String("error", err.Error()))
	}
	s.publish(ctx, cycle, started)
	s.alert(ctx, cycle)

	if s.monitor != nil {
		for _, res := range cycle.Monitors {
			s.monitor.Track(res)
		}
	}

	s.logger.InfoContext(ctx, "scan cycle complete",
		slog.Int("listings_a", cycle.ListingsA),
		slog.Int("listings_b", cycle.ListingsB),
		slog.Int("pairs", cycle.Pairs),
		slog.Int("scored", cycle.Scored),
		slog.Int("opportunities", len(cycle.Opportunities)),
		slog.Int("monitors", len(cycle.Monitors)),
		slog.Int("rejections", len(cycle.Rejections)),
		slog.Bool("degraded", cycle.Degraded),
		slog.Duration("elapsed", time.Since(started)),
	)
	return nil
}

func (s *ScanService) persist(ctx context.Context, cycle engine.CycleResult) error {
	if s.opps != nil {
		for _, opp := range cycle.Opportunities {
			if err := s.opps.Insert(ctx, opp.Result); err != nil {
				return err
			}
		}
		for _, res := range cycle.Monitors {
			if err := s.opps.Insert(ctx, res); err != nil {
				return err
			}
		}
	}
	if s.rejs != nil {
		if err := s.rejs.InsertBatch(ctx, cycle.Rejections); err != nil {
			return err
		}
	}
	return nil
}

// cycleSummary is the JSON shape appended to the cycle stream.
type cycleSummary struct {
	At            time.Time `json:"at"`
	ListingsA     int       `json:"listings_a"`
	ListingsB     int       `json:"listings_b"`
	Pairs         int       `json:"pairs"`
	Scored        int       `json:"scored"`
	Opportunities int       `json:"opportunities"`
	Monitors      int       `json:"monitors"`
	Rejections    int       `json:"rejections"`
	Degraded      bool      `json:"degraded"`
	ElapsedMs     int64     `json:"elapsed_ms"`
}

func (s *ScanService) publish(ctx context.Context, cycle engine.CycleResult, started time.Time) {
	if s.bus == nil {
		return
	}

	for _, opp := range cycle.Opportunities {
		if payload, err := json.Marshal(opp.Result); err == nil {
			if err := s.bus.Publish(ctx, redis.ChannelOpportunities, payload); err != nil {
				s.logger.WarnContext(ctx, "publish opportunity failed", slog.String("error", err.Error()))
			}
		}
	}
	for _, res := range cycle.Monitors {
		if payload, err := json.Marshal(res); err == nil {
			if err := s.bus.Publish(ctx, redis.ChannelMonitors, payload); err != nil {
				s.logger.WarnContext(ctx, "publish monitor failed", slog.String("error", err.Error()))
			}
		}
	}

	summary := cycleSummary{
		At:            started.UTC(),
		ListingsA:     cycle.ListingsA,
		ListingsB:     cycle.ListingsB,
		Pairs:         cycle.Pairs,
		Scored:        cycle.Scored,
		Opportunities: len(cycle.Opportunities),
		Monitors:      len(cycle.Monitors),
		Rejections:    len(cycle.Rejections),
		Degraded:      cycle.Degraded,
		ElapsedMs:     cycle.Elapsed.Milliseconds(),
	}
	if payload, err := json.Marshal(summary); err == nil {
		if err := s.bus.StreamAppend(ctx, redis.StreamCycles, payload); err != nil {
			s.logger.WarnContext(ctx, "cycle stream append failed", slog.String("error", err.Error()))
		}
	}
}

func (s *ScanService) alert(ctx context.Context, cycle engine.CycleResult) {
	if s.notifier == nil {
		return
	}

	for _, opp := range cycle.Opportunities {
		if opp.Alert < domain.AlertWarn {
			continue
		}

		if s.limiter != nil {
			key := pairKey(opp.Result)
			allowed, err := s.limiter.Allow(ctx, key, s.cfg.AlertCooldown)
			if err != nil {
				s.logger.WarnContext(ctx, "alert limiter unavailable, sending anyway",
					slog.String("error", err.Error()),
				)
			} else if !allowed {
				s.logger.DebugContext(ctx, "alert suppressed by cooldown", slog.String("pair", key))
				continue
			}
		}

		if err := s.notifier.Notify(ctx, notify.Alert{Level: opp.Alert, Result: opp.Result}); err != nil {
			s.logger.WarnContext(ctx, "alert delivery incomplete", slog.String("error", err.Error()))
		}
	}
}

// pairKey identifies a matched pair independently of the cycle that found
// it, so the cooldown survives re-detection.
func pairKey(res domain.ArbitrageResult) string {
	return fmt.Sprintf("%s/%s|%s/%s",
		res.Match.A.Venue, res.Match.A.ID, res.Match.B.Venue, res.Match.B.ID)
}
