package arb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddslab/arbscan/internal/domain"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Fees = map[domain.Venue]FeeSchedule{
		domain.VenueKalshi:     {TakerFeePct: 0.7, VariableCostUSD: 1.0},
		domain.VenuePolymarket: {VariableCostUSD: 2.0},
	}
	return cfg
}

func zeroFeeConfig() Config {
	cfg := DefaultConfig()
	cfg.Fees = map[domain.Venue]FeeSchedule{}
	return cfg
}

func match(priceA, priceB float64, grade domain.Grade, inverse bool) domain.EventMatch {
	return domain.EventMatch{
		MatchCandidate: domain.MatchCandidate{
			A: domain.Listing{Venue: domain.VenueKalshi, ID: "K1", Description: "a", Price: priceA},
			B: domain.Listing{Venue: domain.VenuePolymarket, ID: "P1", Description: "b", Price: priceB},
		},
		Similarity: 0.97,
		Grade:      grade,
		IsInverse:  inverse,
	}
}

func TestFeeScheduleUsesWorseRate(t *testing.T) {
	f := FeeSchedule{MakerFeePct: 0.2, TakerFeePct: 0.7, FixedCostUSD: 0.5, VariableCostUSD: 1.0}
	// 1000 * 0.7% + 0.5 fixed + 1.0 * 1.10 buffer
	assert.InDelta(t, 7.0+0.5+1.1, f.EffectiveUSD(1000, 10), 1e-9)
}

func TestEvaluateRejectsInsanePrices(t *testing.T) {
	c := NewCalculator(testConfig())

	out := c.Evaluate(match(0.03, 0.50, domain.GradeA, false))
	require.True(t, out.Rejected())
	assert.Equal(t, domain.RejectPrice, out.Reject)

	out = c.Evaluate(match(0.50, 0.97, domain.GradeA, false))
	require.True(t, out.Rejected())
	assert.Equal(t, domain.RejectPrice, out.Reject)
}

func TestEvaluateRejectsThinSpread(t *testing.T) {
	c := NewCalculator(testConfig())

	out := c.Evaluate(match(0.65, 0.66, domain.GradeA, false))
	require.True(t, out.Rejected())
	assert.Equal(t, domain.RejectSpread, out.Reject)
}

func TestEvaluateSameDirectionProfitable(t *testing.T) {
	cfg := zeroFeeConfig()
	c := NewCalculator(cfg)

	// Buy at 0.40, sell at 0.60: fifty points of gross on the stake.
	out := c.Evaluate(match(0.40, 0.60, domain.GradeA, false))
	require.False(t, out.Rejected())
	require.NotNil(t, out.Result)
	assert.False(t, out.Monitor)
	assert.Equal(t, domain.DirectionAToB, out.Result.Direction)
	assert.InDelta(t, 50.0, out.Result.NetProfitPct, 1e-9)
	assert.True(t, out.Result.IsProfitable)
	assert.InDelta(t, cfg.PositionSizeUSD, out.Result.RequiredCapital, 1e-9)
}

func TestEvaluatePicksBetterDirection(t *testing.T) {
	c := NewCalculator(zeroFeeConfig())

	out := c.Evaluate(match(0.60, 0.40, domain.GradeA, false))
	require.NotNil(t, out.Result)
	assert.Equal(t, domain.DirectionBToA, out.Result.Direction)
	assert.InDelta(t, 50.0, out.Result.NetProfitPct, 1e-9)
}

func TestEvaluateFeesFlipVerdict(t *testing.T) {
	cfg := testConfig()
	cfg.Fees = map[domain.Venue]FeeSchedule{
		domain.VenueKalshi:     {FixedCostUSD: 30},
		domain.VenuePolymarket: {FixedCostUSD: 30},
	}
	cfg.MinSpreadPct = 2.0
	c := NewCalculator(cfg)

	// Gross 1000/0.40*0.06 = $150; fees $60 leave 9% net, still accepted.
	out := c.Evaluate(match(0.40, 0.46, domain.GradeA, false))
	require.NotNil(t, out.Result)
	assert.InDelta(t, 9.0, out.Result.NetProfitPct, 1e-9)

	// Same spread with fees tripled: net falls below zero.
	cfg.Fees = map[domain.Venue]FeeSchedule{
		domain.VenueKalshi:     {FixedCostUSD: 90},
		domain.VenuePolymarket: {FixedCostUSD: 90},
	}
	out = NewCalculator(cfg).Evaluate(match(0.40, 0.46, domain.GradeA, false))
	require.True(t, out.Rejected())
	assert.Equal(t, domain.RejectFees, out.Reject)
}

func TestEvaluateNearMissBecomesMonitor(t *testing.T) {
	cfg := zeroFeeConfig()
	cfg.ProfitThresholdPct = 16.0
	cfg.NearMissMarginPct = 2.0
	c := NewCalculator(cfg)

	// Gross 1000/0.40*0.06 = $150 → 15%, inside [14%, 16%).
	out := c.Evaluate(match(0.40, 0.46, domain.GradeA, false))
	require.False(t, out.Rejected())
	require.NotNil(t, out.Result)
	assert.True(t, out.Monitor)
	assert.True(t, out.Result.Monitor)
	assert.False(t, out.Result.IsProfitable)
}

func TestEvaluateInverseGuaranteedPayout(t *testing.T) {
	cfg := zeroFeeConfig()
	cfg.ProfitThresholdPct = 1.0
	c := NewCalculator(cfg)

	// Cost 0.98 per pair paying 1.0: 2.04% locked in regardless of outcome.
	out := c.Evaluate(match(0.60, 0.38, domain.GradeA, true))
	require.False(t, out.Rejected())
	require.NotNil(t, out.Result)
	assert.Equal(t, domain.DirectionInverse, out.Result.Direction)
	assert.InDelta(t, (1.0-0.98)/0.98*100, out.Result.NetProfitPct, 1e-9)
	assert.True(t, out.Result.IsProfitable)
}

func TestEvaluateInverseFeesEatTheEdge(t *testing.T) {
	cfg := testConfig()
	cfg.ProfitThresholdPct = 1.0
	cfg.NearMissMarginPct = 0.5
	cfg.Fees = map[domain.Venue]FeeSchedule{
		domain.VenueKalshi:     {FixedCostUSD: 15},
		domain.VenuePolymarket: {FixedCostUSD: 15},
	}
	c := NewCalculator(cfg)

	out := c.Evaluate(match(0.60, 0.38, domain.GradeA, true))
	require.True(t, out.Rejected())
	assert.Equal(t, domain.RejectFees, out.Reject)
}

func TestEvaluateInverseCostAboveOneNeverProfits(t *testing.T) {
	c := NewCalculator(testConfig())

	out := c.Evaluate(match(0.52, 0.50, domain.GradeA, true))
	require.True(t, out.Rejected())
	assert.Equal(t, domain.RejectFees, out.Reject)
}

func TestEvaluateSanityCapCatchesImplausibleProfit(t *testing.T) {
	cfg := zeroFeeConfig()
	cfg.MaxPlausibleProfitPct = 50.0
	c := NewCalculator(cfg)

	// 0.08 vs 0.90 would imply a four-digit return; that is a data error,
	// not a trade.
	out := c.Evaluate(match(0.08, 0.90, domain.GradeA, false))
	require.True(t, out.Rejected())
	assert.Equal(t, domain.RejectSanity, out.Reject)
}

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	bad := DefaultConfig()
	bad.PositionSizeUSD = 0
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.PriceSanityMin = 0.9
	bad.PriceSanityMax = 0.1
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.MaxPlausibleProfitPct = bad.ProfitThresholdPct
	assert.Error(t, bad.Validate())
}
