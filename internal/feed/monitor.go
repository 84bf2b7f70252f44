// Package feed watches near-miss opportunities for price drift over the
// Polymarket market-data websocket and hands drifted pairs back for
// re-evaluation.
package feed

import (
	"context"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/oddslab/arbscan/internal/domain"
)

// Config tunes the drift monitor.
type Config struct {
	WSURL string
	// DriftThresholdPct is the relative price move, in percent, that marks a
	// monitored pair as worth re-evaluating.
	DriftThresholdPct float64
	ReconnectBackoff  time.Duration
	// MaxMonitored caps the tracked set; the oldest entry is evicted first.
	MaxMonitored int
}

// Defaults fills zero fields with production values.
func (c *Config) Defaults() {
	if c.WSURL == "" {
		c.WSURL = "wss://ws-subscriptions-clob.polymarket.com/ws/market"
	}
	if c.DriftThresholdPct == 0 {
		c.DriftThresholdPct = 1.0
	}
	if c.ReconnectBackoff == 0 {
		c.ReconnectBackoff = 2 * time.Second
	}
	if c.MaxMonitored == 0 {
		c.MaxMonitored = 200
	}
}

// ReevalFunc receives a monitored result whose live price drifted past the
// threshold.
type ReevalFunc func(ctx context.Context, res domain.ArbitrageResult)

type tracked struct {
	res       domain.ArbitrageResult
	basePrice float64
	addedAt   time.Time
}

// Monitor tracks Monitor-tagged results and re-queues them when their
// Polymarket leg drifts. Results whose Polymarket listing carries no feed ID
// are ignored; they are re-evaluated on the next poll cycle like everything
// else.
type Monitor struct {
	cfg    Config
	reeval ReevalFunc
	logger *slog.Logger

	mu      sync.Mutex
	assets  map[string]tracked
	changed chan struct{}
}

// NewMonitor creates a Monitor. reeval is invoked from the feed goroutine and
// must not block for long.
func NewMonitor(cfg Config, reeval ReevalFunc, logger *slog.Logger) *Monitor {
	cfg.Defaults()
	return &Monitor{
		cfg:     cfg,
		reeval:  reeval,
		logger:  logger.With(slog.String("component", "feed_monitor")),
		assets:  make(map[string]tracked),
		changed: make(chan struct{}, 1),
	}
}

// Track registers a near-miss result. The Polymarket leg's feed ID keys the
// subscription; its current price is the drift baseline.
func (m *Monitor) Track(res domain.ArbitrageResult) {
	leg, ok := polymarketLeg(res)
	if !ok || leg.FeedID == "" {
		return
	}

	m.mu.Lock()
	if _, exists := m.assets[leg.FeedID]; !exists && len(m.assets) >= m.cfg.MaxMonitored {
		m.evictOldestLocked()
	}
	m.assets[leg.FeedID] = tracked{
		res:       res,
		basePrice: leg.Price,
		addedAt:   time.Now(),
	}
	m.mu.Unlock()

	m.notifyChanged()
}

// Untrack drops a monitored result, typically after it has been re-queued.
func (m *Monitor) Untrack(feedID string) {
	m.mu.Lock()
	_, existed := m.assets[feedID]
	delete(m.assets, feedID)
	m.mu.Unlock()

	if existed {
		m.notifyChanged()
	}
}

// Tracked returns the number of monitored pairs.
func (m *Monitor) Tracked() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.assets)
}

// Run maintains the websocket subscription until ctx is cancelled. The
// tracked set changing forces a reconnect so the subscription matches it.
func (m *Monitor) Run(ctx context.Context) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		ids := m.assetIDs()
		if len(ids) == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-m.changed:
			}
			continue
		}

		if err := m.runConnection(ctx, ids); err != nil && ctx.Err() == nil {
			m.logger.WarnContext(ctx, "feed disconnected, reconnecting",
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(m.cfg.ReconnectBackoff):
			}
		}
	}
}

func (m *Monitor) runConnection(ctx context.Context, ids []string) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	conn, err := dialMarketChannel(connCtx, m.cfg.WSURL, ids)
	if err != nil {
		return err
	}
	defer conn.Close()

	m.logger.InfoContext(ctx, "feed subscribed", slog.Int("assets", len(ids)))

	updates := make(chan priceUpdate, 64)
	errCh := make(chan error, 1)
	go func() {
		errCh <- conn.readPrices(connCtx, updates)
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.changed:
			// Resubscribe with the new asset set.
			return nil
		case err := <-errCh:
			return err
		case u := <-updates:
			m.handlePrice(ctx, u.AssetID, u.Price)
		}
	}
}

// handlePrice applies one live price to the tracked entry for the asset. A
// relative move at or past the drift threshold re-queues the result and stops
// tracking it.
func (m *Monitor) handlePrice(ctx context.Context, assetID string, price float64) {
	m.mu.Lock()
	entry, ok := m.assets[assetID]
	if !ok || entry.basePrice <= 0 {
		m.mu.Unlock()
		return
	}

	driftPct := math.Abs(price-entry.basePrice) / entry.basePrice * 100
	if driftPct < m.cfg.DriftThresholdPct {
		m.mu.Unlock()
		return
	}
	delete(m.assets, assetID)
	reeval := m.reeval
	m.mu.Unlock()

	m.logger.InfoContext(ctx, "monitored pair drifted",
		slog.String("id", entry.res.ID),
		slog.Float64("base_price", entry.basePrice),
		slog.Float64("live_price", price),
		slog.Float64("drift_pct", driftPct),
	)
	if reeval != nil {
		reeval(ctx, entry.res)
	}
}

// SetReeval installs the re-evaluation callback after construction, for
// callers that build the monitor before the component that consumes drifts.
func (m *Monitor) SetReeval(fn ReevalFunc) {
	m.mu.Lock()
	m.reeval = fn
	m.mu.Unlock()
}

func (m *Monitor) assetIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.assets))
	for id := range m.assets {
		ids = append(ids, id)
	}
	return ids
}

func (m *Monitor) evictOldestLocked() {
	var oldestID string
	var oldestAt time.Time
	for id, entry := range m.assets {
		if oldestID == "" || entry.addedAt.Before(oldestAt) {
			oldestID = id
			oldestAt = entry.addedAt
		}
	}
	if oldestID != "" {
		delete(m.assets, oldestID)
	}
}

func (m *Monitor) notifyChanged() {
	select {
	case m.changed <- struct{}{}:
	default:
	}
}

// polymarketLeg picks the Polymarket side of the matched pair.
func polymarketLeg(res domain.ArbitrageResult) (domain.Listing, bool) {
	if res.Match.A.Venue == domain.VenuePolymarket {
		return res.Match.A, true
	}
	if res.Match.B.Venue == domain.VenuePolymarket {
		return res.Match.B, true
	}
	return domain.Listing{}, false
}
