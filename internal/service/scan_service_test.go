package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddslab/arbscan/internal/domain"
	"github.com/oddslab/arbscan/internal/engine"
	"github.com/oddslab/arbscan/internal/notify"
)

type stubSnapshotter struct {
	venue    domain.Venue
	listings []domain.Listing
	err      error
}

func (s *stubSnapshotter) Venue() domain.Venue { return s.venue }

func (s *stubSnapshotter) Poll(context.Context) ([]domain.Listing, error) {
	return s.listings, s.err
}

type stubRunner struct {
	cycle engine.CycleResult
	err   error
	calls int
	gotA  []domain.Listing
	gotB  []domain.Listing
}

func (r *stubRunner) RunCycle(_ context.Context, a, b []domain.Listing) (engine.CycleResult, error) {
	r.calls++
	r.gotA, r.gotB = a, b
	return r.cycle, r.err
}

type memOppStore struct {
	inserted []domain.ArbitrageResult
}

func (m *memOppStore) Insert(_ context.Context, res domain.ArbitrageResult) error {
	m.inserted = append(m.inserted, res)
	return nil
}
func (m *memOppStore) ListRecent(context.Context, int) ([]domain.ArbitrageResult, error) {
	return m.inserted, nil
}
func (m *memOppStore) ListBefore(context.Context, time.Time, int) ([]domain.ArbitrageResult, error) {
	return nil, nil
}
func (m *memOppStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }
func (m *memOppStore) Stats(context.Context) (domain.HistoricalStats, error) {
	return domain.HistoricalStats{}, nil
}

type memRejStore struct {
	batches [][]domain.RejectionRecord
}

func (m *memRejStore) InsertBatch(_ context.Context, recs []domain.RejectionRecord) error {
	m.batches = append(m.batches, recs)
	return nil
}
func (m *memRejStore) ListBefore(context.Context, time.Time, int) ([]domain.RejectionRecord, error) {
	return nil, nil
}
func (m *memRejStore) CountByReason(context.Context, time.Time) (map[domain.ReasonCode]int64, error) {
	return nil, nil
}
func (m *memRejStore) DeleteBefore(context.Context, time.Time) (int64, error) { return 0, nil }

type memLimiter struct {
	allowed map[string]bool
	seen    []string
}

func (m *memLimiter) Allow(_ context.Context, key string, _ time.Duration) (bool, error) {
	m.seen = append(m.seen, key)
	if m.allowed == nil {
		return true, nil
	}
	return m.allowed[key], nil
}

type memSender struct {
	sent []notify.Alert
}

func (m *memSender) Send(_ context.Context, alert notify.Alert) error {
	m.sent = append(m.sent, alert)
	return nil
}
func (m *memSender) Name() string { return "mem" }

type memMonitor struct {
	tracked []domain.ArbitrageResult
}

func (m *memMonitor) Track(res domain.ArbitrageResult) { m.tracked = append(m.tracked, res) }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func acceptedOpportunity(id string, level domain.AlertLevel) engine.Opportunity {
	res := domain.ArbitrageResult{ID: id, NetProfitPct: 4.2, IsProfitable: true}
	res.Match.A = domain.Listing{Venue: domain.VenueKalshi, ID: "k-" + id, Description: "a", Price: 0.40}
	res.Match.B = domain.Listing{Venue: domain.VenuePolymarket, ID: "p-" + id, Description: "b", Price: 0.46}
	return engine.Opportunity{Result: res, Alert: level}
}

func TestRunOncePersistsAndNotifies(t *testing.T) {
	runner := &stubRunner{
		cycle: engine.CycleResult{
			Opportunities: []engine.Opportunity{acceptedOpportunity("o1", domain.AlertFull)},
			Monitors: []domain.ArbitrageResult{
				{ID: "m1", Monitor: true},
			},
			Rejections: []domain.RejectionRecord{
				{ListingAID: "x", ListingBID: "y", Reason: domain.RejectSimilarity},
			},
		},
	}
	opps := &memOppStore{}
	rejs := &memRejStore{}
	limiter := &memLimiter{}
	sender := &memSender{}
	monitor := &memMonitor{}
	notifier := notify.NewNotifier([]notify.Sender{sender}, testLogger())

	svc := NewScanService(
		&stubSnapshotter{venue: domain.VenueKalshi, listings: []domain.Listing{{ID: "k1", Description: "d", Price: 0.5}}},
		&stubSnapshotter{venue: domain.VenuePolymarket, listings: []domain.Listing{{ID: "p1", Description: "d", Price: 0.5}}},
		runner, opps, rejs, nil, limiter, notifier, monitor,
		ScanConfig{}, testLogger(),
	)

	require.NoError(t, svc.RunOnce(context.Background()))

	assert.Equal(t, 1, runner.calls)
	require.Len(t, runner.gotA, 1)
	require.Len(t, runner.gotB, 1)

	// Accepted result and monitor result are both persisted.
	require.Len(t, opps.inserted, 2)
	assert.Equal(t, "o1", opps.inserted[0].ID)
	assert.Equal(t, "m1", opps.inserted[1].ID)

	require.Len(t, rejs.batches, 1)
	assert.Equal(t, domain.RejectSimilarity, rejs.batches[0][0].Reason)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, domain.AlertFull, sender.sent[0].Level)

	require.Len(t, monitor.tracked, 1)
	assert.Equal(t, "m1", monitor.tracked[0].ID)
}

func TestRunOnceSkipsCycleWhenVenueDown(t *testing.T) {
	runner := &stubRunner{}
	svc := NewScanService(
		&stubSnapshotter{venue: domain.VenueKalshi, err: domain.ErrVenueDown},
		&stubSnapshotter{venue: domain.VenuePolymarket, listings: []domain.Listing{{ID: "p1", Description: "d", Price: 0.5}}},
		runner, nil, nil, nil, nil, nil, nil,
		ScanConfig{}, testLogger(),
	)

	require.NoError(t, svc.RunOnce(context.Background()))
	assert.Zero(t, runner.calls, "cycle must not run with one venue missing")
}

func TestRunOncePropagatesEngineError(t *testing.T) {
	boom := errors.New("embedder exploded")
	runner := &stubRunner{err: boom}
	svc := NewScanService(
		&stubSnapshotter{venue: domain.VenueKalshi},
		&stubSnapshotter{venue: domain.VenuePolymarket},
		runner, nil, nil, nil, nil, nil, nil,
		ScanConfig{}, testLogger(),
	)

	err := svc.RunOnce(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}

func TestAlertCooldownSuppressesRepeat(t *testing.T) {
	opp := acceptedOpportunity("o1", domain.AlertFull)
	runner := &stubRunner{cycle: engine.CycleResult{Opportunities: []engine.Opportunity{opp}}}
	limiter := &memLimiter{allowed: map[string]bool{}}
	sender := &memSender{}
	notifier := notify.NewNotifier([]notify.Sender{sender}, testLogger())

	svc := NewScanService(
		&stubSnapshotter{venue: domain.VenueKalshi},
		&stubSnapshotter{venue: domain.VenuePolymarket},
		runner, nil, nil, nil, limiter, notifier, nil,
		ScanConfig{}, testLogger(),
	)

	require.NoError(t, svc.RunOnce(context.Background()))

	assert.Empty(t, sender.sent)
	require.Len(t, limiter.seen, 1)
	assert.Equal(t, "kalshi/k-o1|polymarket/p-o1", limiter.seen[0])
}

func TestLogOnlyOpportunityNeverNotified(t *testing.T) {
	opp := acceptedOpportunity("o1", domain.AlertLogOnly)
	runner := &stubRunner{cycle: engine.CycleResult{Opportunities: []engine.Opportunity{opp}}}
	limiter := &memLimiter{}
	sender := &memSender{}
	notifier := notify.NewNotifier([]notify.Sender{sender}, testLogger())

	svc := NewScanService(
		&stubSnapshotter{venue: domain.VenueKalshi},
		&stubSnapshotter{venue: domain.VenuePolymarket},
		runner, nil, nil, nil, limiter, notifier, nil,
		ScanConfig{}, testLogger(),
	)

	require.NoError(t, svc.RunOnce(context.Background()))

	assert.Empty(t, sender.sent)
	assert.Empty(t, limiter.seen, "limiter is not consulted for log-only results")
}

func TestKickCoalesces(t *testing.T) {
	svc := NewScanService(
		&stubSnapshotter{venue: domain.VenueKalshi},
		&stubSnapshotter{venue: domain.VenuePolymarket},
		&stubRunner{}, nil, nil, nil, nil, nil, nil,
		ScanConfig{}, testLogger(),
	)

	svc.Kick()
	svc.Kick()
	svc.Kick()

	assert.Len(t, svc.kick, 1)
}
