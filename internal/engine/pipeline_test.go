package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddslab/arbscan/internal/arb"
	"github.com/oddslab/arbscan/internal/domain"
	"github.com/oddslab/arbscan/internal/matching"
	"github.com/oddslab/arbscan/internal/matching/embed"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fixedEmbedder returns preassigned vectors keyed by canonical text.
type fixedEmbedder struct {
	vecs map[string][]float64
}

func (f *fixedEmbedder) Embed(_ context.Context, canonical string) ([]float64, error) {
	vec, ok := f.vecs[canonical]
	if !ok {
		return nil, fmt.Errorf("no vector for %q", canonical)
	}
	return vec, nil
}

type downEmbedder struct{}

func (downEmbedder) Embed(context.Context, string) ([]float64, error) {
	return nil, errors.New("model offline")
}

// embedderFor assigns vectors so the two descriptions score exactly sim.
func embedderFor(descA, descB string, sim float64) *fixedEmbedder {
	vecA := []float64{1, 0}
	vecB := []float64{sim, math.Sqrt(1 - sim*sim)}
	return &fixedEmbedder{vecs: map[string][]float64{
		matching.Normalize(descA).Canonical: vecA,
		matching.Normalize(descB).Canonical: vecB,
	}}
}

func newTestEngine(e embed.Embedder, calcCfg arb.Config) *Engine {
	matcher := matching.NewMatcher(e, embed.NewVectorCache(), matching.MatcherConfig{
		DateWindow:   48 * time.Hour,
		EmbedTimeout: time.Second,
	}, testLogger())
	inverse := matching.NewInverseDetector(matching.InverseConfig{PriceSumMin: 0.95, PriceSumMax: 1.05})
	return New(matcher, inverse, arb.NewCalculator(calcCfg), Config{MinKeywordOverlap: 0.3}, testLogger())
}

func listing(venue domain.Venue, id, desc string, price float64) domain.Listing {
	return domain.Listing{Venue: venue, ID: id, Description: desc, Price: price}
}

func TestCycleInversePairKilledByFees(t *testing.T) {
	descA := "Will Democrats win Senate majority?"
	descB := "Will Republicans win Senate majority?"

	eng := newTestEngine(embedderFor(descA, descB, 0.98), arb.DefaultConfig())
	res, err := eng.RunCycle(context.Background(),
		[]domain.Listing{listing(domain.VenueKalshi, "K1", descA, 0.52)},
		[]domain.Listing{listing(domain.VenuePolymarket, "P1", descB, 0.48)},
	)
	require.NoError(t, err)

	// The pair is recognized as opposite outcomes, but cost 1.00 leaves
	// nothing once any fee applies.
	assert.Empty(t, res.Opportunities)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, domain.RejectFees, res.Rejections[0].Reason)
	assert.InDelta(t, 0.98, res.Rejections[0].Similarity, 1e-9)
}

func TestCycleLowSimilarityNeverReachesInverse(t *testing.T) {
	descA := "Will Trump buy Greenland?"
	descB := "Will the US purchase Greenland in 2026?"

	eng := newTestEngine(embedderFor(descA, descB, 0.80), arb.DefaultConfig())
	res, err := eng.RunCycle(context.Background(),
		[]domain.Listing{listing(domain.VenueKalshi, "K1", descA, 0.17)},
		[]domain.Listing{listing(domain.VenuePolymarket, "P1", descB, 0.07)},
	)
	require.NoError(t, err)

	assert.Empty(t, res.Opportunities)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, domain.RejectSimilarity, res.Rejections[0].Reason)
}

func TestCycleSameOutcomeDuplicateThinSpread(t *testing.T) {
	desc := "Democrats win Georgia"

	cfg := arb.DefaultConfig()
	cfg.MinSpreadPct = 2.5
	eng := newTestEngine(embedderFor(desc, desc, 1.0), cfg)

	res, err := eng.RunCycle(context.Background(),
		[]domain.Listing{listing(domain.VenueKalshi, "K1", desc, 0.65)},
		[]domain.Listing{listing(domain.VenuePolymarket, "P1", desc, 0.67)},
	)
	require.NoError(t, err)

	// Price sum 1.32 sits far outside the inverse band, so the pair is
	// priced same-direction and dies on the two-point spread.
	assert.Empty(t, res.Opportunities)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, domain.RejectSpread, res.Rejections[0].Reason)
}

func TestCycleInverseAcceptedWithoutFees(t *testing.T) {
	descA := "Chiefs win the Super Bowl"
	descB := "Chiefs lose the Super Bowl"

	cfg := arb.DefaultConfig()
	cfg.ProfitThresholdPct = 1.0
	cfg.Fees = map[domain.Venue]arb.FeeSchedule{}
	eng := newTestEngine(embedderFor(descA, descB, 0.97), cfg)

	res, err := eng.RunCycle(context.Background(),
		[]domain.Listing{listing(domain.VenueKalshi, "K1", descA, 0.60)},
		[]domain.Listing{listing(domain.VenuePolymarket, "P1", descB, 0.38)},
	)
	require.NoError(t, err)

	require.Len(t, res.Opportunities, 1)
	opp := res.Opportunities[0]
	assert.Equal(t, domain.DirectionInverse, opp.Result.Direction)
	assert.True(t, opp.Result.Match.IsInverse)
	assert.Equal(t, domain.GradeA, opp.Result.Match.Grade)
	assert.Equal(t, domain.AlertFull, opp.Alert)
	assert.InDelta(t, (1.0-0.98)/0.98*100, opp.Result.NetProfitPct, 1e-6)
}

func TestCycleInverseRejectedWithFees(t *testing.T) {
	descA := "Chiefs win the Super Bowl"
	descB := "Chiefs lose the Super Bowl"

	cfg := arb.DefaultConfig()
	cfg.ProfitThresholdPct = 1.0
	cfg.NearMissMarginPct = 0.5
	cfg.Fees = map[domain.Venue]arb.FeeSchedule{
		domain.VenueKalshi:     {FixedCostUSD: 15},
		domain.VenuePolymarket: {FixedCostUSD: 15},
	}
	eng := newTestEngine(embedderFor(descA, descB, 0.97), cfg)

	res, err := eng.RunCycle(context.Background(),
		[]domain.Listing{listing(domain.VenueKalshi, "K1", descA, 0.60)},
		[]domain.Listing{listing(domain.VenuePolymarket, "P1", descB, 0.38)},
	)
	require.NoError(t, err)

	assert.Empty(t, res.Opportunities)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, domain.RejectFees, res.Rejections[0].Reason)
}

func TestCycleAmbiguousPriceSumRejected(t *testing.T) {
	descA := "Taylor Swift attends the Super Bowl"
	descB := "Taylor Swift performs at the Super Bowl"

	eng := newTestEngine(embedderFor(descA, descB, 0.97), arb.DefaultConfig())
	res, err := eng.RunCycle(context.Background(),
		[]domain.Listing{listing(domain.VenueKalshi, "K1", descA, 0.52)},
		[]domain.Listing{listing(domain.VenuePolymarket, "P1", descB, 0.48)},
	)
	require.NoError(t, err)

	assert.Empty(t, res.Opportunities)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, domain.RejectInverse, res.Rejections[0].Reason)
}

func TestCycleDateMismatchReason(t *testing.T) {
	descA := "Democrats win the Senate"
	descB := "Democrats win Senate control"
	closeA := time.Date(2026, time.November, 3, 0, 0, 0, 0, time.UTC)
	closeB := closeA.AddDate(0, 6, 0)

	eng := newTestEngine(embedderFor(descA, descB, 0.87), arb.DefaultConfig())

	la := listing(domain.VenueKalshi, "K1", descA, 0.40)
	la.CloseTime = &closeA
	lb := listing(domain.VenuePolymarket, "P1", descB, 0.60)
	lb.CloseTime = &closeB

	res, err := eng.RunCycle(context.Background(), []domain.Listing{la}, []domain.Listing{lb})
	require.NoError(t, err)

	// C-grade similarity downgraded to D purely by the date disagreement.
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, domain.RejectDate, res.Rejections[0].Reason)
}

func TestCycleDegradesWhenEmbeddingUnavailable(t *testing.T) {
	descA := "Will Democrats win Senate majority?"
	descB := "Will Republicans win Senate majority?"

	eng := newTestEngine(downEmbedder{}, arb.DefaultConfig())
	res, err := eng.RunCycle(context.Background(),
		[]domain.Listing{listing(domain.VenueKalshi, "K1", descA, 0.52)},
		[]domain.Listing{listing(domain.VenuePolymarket, "P1", descB, 0.48)},
	)
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.Empty(t, res.Opportunities)
	require.Len(t, res.Rejections, 1)
	assert.Equal(t, domain.RejectSimilarity, res.Rejections[0].Reason)
}

func TestCycleSkipsInvalidListings(t *testing.T) {
	eng := newTestEngine(embedderFor("a", "b", 0.5), arb.DefaultConfig())

	res, err := eng.RunCycle(context.Background(),
		[]domain.Listing{
			{Venue: domain.VenueKalshi, ID: "K1", Description: "", Price: 0.5},
			{Venue: domain.VenueKalshi, ID: "K2", Description: "Chiefs win", Price: 1.5},
		},
		[]domain.Listing{listing(domain.VenuePolymarket, "P1", "Chiefs win the Super Bowl", 0.5)},
	)
	require.NoError(t, err)

	assert.Zero(t, res.ListingsA)
	assert.Equal(t, 1, res.ListingsB)
	assert.Zero(t, res.Pairs)
	assert.Empty(t, res.Rejections)
}

func TestCycleHonorsEventFilter(t *testing.T) {
	descA := "Chiefs win the Super Bowl"
	descB := "Chiefs lose the Super Bowl"

	matcher := matching.NewMatcher(embedderFor(descA, descB, 0.97), embed.NewVectorCache(), matching.MatcherConfig{
		EmbedTimeout: time.Second,
	}, testLogger())
	inverse := matching.NewInverseDetector(matching.InverseConfig{PriceSumMin: 0.95, PriceSumMax: 1.05})
	eng := New(matcher, inverse, arb.NewCalculator(arb.DefaultConfig()), Config{
		MinKeywordOverlap: 0.3,
		Filter: matching.EventFilter{
			Enabled: true, Mode: matching.FilterInclude, Keywords: []string{"senate"},
		},
	}, testLogger())

	res, err := eng.RunCycle(context.Background(),
		[]domain.Listing{listing(domain.VenueKalshi, "K1", descA, 0.60)},
		[]domain.Listing{listing(domain.VenuePolymarket, "P1", descB, 0.38)},
	)
	require.NoError(t, err)

	assert.Zero(t, res.Pairs)
	assert.Empty(t, res.Opportunities)
	assert.Empty(t, res.Rejections)
}

func TestCycleCancelledContext(t *testing.T) {
	descA := "Chiefs win the Super Bowl"
	descB := "Chiefs lose the Super Bowl"

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	eng := newTestEngine(embedderFor(descA, descB, 0.97), arb.DefaultConfig())
	_, err := eng.RunCycle(ctx,
		[]domain.Listing{listing(domain.VenueKalshi, "K1", descA, 0.60)},
		[]domain.Listing{listing(domain.VenuePolymarket, "P1", descB, 0.38)},
	)
	assert.Error(t, err)
}
