package arb

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/oddslab/arbscan/internal/domain"
)

// FeeSchedule describes what one venue charges to take a position. Percentage
// fees apply to the notional stake; fixed and variable costs are flat dollar
// amounts per trade.
type FeeSchedule struct {
	MakerFeePct     float64
	TakerFeePct     float64
	FixedCostUSD    float64
	VariableCostUSD float64
}

// EffectiveUSD returns the total fee for staking the given notional. The
// worse of the maker and taker rates is assumed, and variable costs are
// inflated by a volatility buffer to account for slippage between quote and
// fill.
func (f FeeSchedule) EffectiveUSD(stakeUSD, volatilityBufferPct float64) float64 {
	pct := math.Max(f.MakerFeePct, f.TakerFeePct) / 100.0
	return stakeUSD*pct + f.FixedCostUSD + f.VariableCostUSD*(1+volatilityBufferPct/100.0)
}

// Config holds the economics of an evaluation pass.
type Config struct {
	PositionSizeUSD       float64
	MinSpreadPct          float64
	PriceSanityMin        float64
	PriceSanityMax        float64
	ProfitThresholdPct    float64
	NearMissMarginPct     float64
	VolatilityBufferPct   float64
	MaxPlausibleProfitPct float64
	Fees                  map[domain.Venue]FeeSchedule
}

// DefaultConfig returns conservative production economics.
func DefaultConfig() Config {
	return Config{
		PositionSizeUSD:       1000,
		MinSpreadPct:          2.0,
		PriceSanityMin:        0.05,
		PriceSanityMax:        0.95,
		ProfitThresholdPct:    3.0,
		NearMissMarginPct:     1.0,
		VolatilityBufferPct:   10.0,
		MaxPlausibleProfitPct: 50.0,
		Fees: map[domain.Venue]FeeSchedule{
			domain.VenueKalshi: {
				MakerFeePct:     0.0,
				TakerFeePct:     0.7,
				FixedCostUSD:    0.0,
				VariableCostUSD: 1.0,
			},
			domain.VenuePolymarket: {
				MakerFeePct:     0.0,
				TakerFeePct:     0.0,
				FixedCostUSD:    0.0,
				VariableCostUSD: 2.0,
			},
		},
	}
}

// Validate reports configuration values that cannot produce meaningful
// results.
func (c Config) Validate() error {
	if c.PositionSizeUSD <= 0 {
		return fmt.Errorf("arb: position size must be positive, got %.2f", c.PositionSizeUSD)
	}
	if c.PriceSanityMin < 0 || c.PriceSanityMax > 1 || c.PriceSanityMin >= c.PriceSanityMax {
		return fmt.Errorf("arb: price sanity band [%.2f, %.2f] is invalid", c.PriceSanityMin, c.PriceSanityMax)
	}
	if c.ProfitThresholdPct < 0 {
		return fmt.Errorf("arb: profit threshold must be non-negative, got %.2f", c.ProfitThresholdPct)
	}
	if c.MaxPlausibleProfitPct <= c.ProfitThresholdPct {
		return fmt.Errorf("arb: sanity cap %.2f must exceed profit threshold %.2f",
			c.MaxPlausibleProfitPct, c.ProfitThresholdPct)
	}
	return nil
}

// Outcome is the verdict on a single matched pair. Exactly one of three
// states holds: the pair is a profitable opportunity (Result set, Monitor
// false), a near miss worth watching (Result set, Monitor true), or a
// rejection (Reject set).
type Outcome struct {
	Result  *domain.ArbitrageResult
	Monitor bool
	Reject  domain.ReasonCode
	Note    string
}

// Rejected reports whether the pair was thrown out.
func (o Outcome) Rejected() bool { return o.Reject != "" }

// Calculator turns matched pairs into fee-adjusted profit verdicts.
type Calculator struct {
	cfg Config
}

func NewCalculator(cfg Config) *Calculator {
	return &Calculator{cfg: cfg}
}

// Evaluate prices a matched pair. Inverse matches are priced as a
// buy-both-sides position; regular matches are priced in both directions and
// the better one wins.
func (c *Calculator) Evaluate(m domain.EventMatch) Outcome {
	pA, pB := m.A.Price, m.B.Price

	if !c.priceSane(pA) || !c.priceSane(pB) {
		return Outcome{
			Reject: domain.RejectPrice,
			Note: fmt.Sprintf("prices %.3f/%.3f outside sanity band [%.2f, %.2f]",
				pA, pB, c.cfg.PriceSanityMin, c.cfg.PriceSanityMax),
		}
	}

	if m.IsInverse {
		return c.evaluateInverse(m)
	}
	return c.evaluateSameDirection(m)
}

func (c *Calculator) priceSane(p float64) bool {
	return p >= c.cfg.PriceSanityMin && p <= c.cfg.PriceSanityMax
}

func (c *Calculator) feeFor(venue domain.Venue, stakeUSD float64) float64 {
	sched, ok := c.cfg.Fees[venue]
	if !ok {
		return 0
	}
	return sched.EffectiveUSD(stakeUSD, c.cfg.VolatilityBufferPct)
}

func (c *Calculator) evaluateSameDirection(m domain.EventMatch) Outcome {
	pA, pB := m.A.Price, m.B.Price

	spreadPct := math.Abs(pA-pB) * 100.0
	if spreadPct < c.cfg.MinSpreadPct {
		return Outcome{
			Reject: domain.RejectSpread,
			Note:   fmt.Sprintf("spread %.2f%% below minimum %.2f%%", spreadPct, c.cfg.MinSpreadPct),
		}
	}

	position := c.cfg.PositionSizeUSD
	fees := domain.FeeBreakdown{
		VenueAFeeUSD: c.feeFor(m.A.Venue, position),
		VenueBFeeUSD: c.feeFor(m.B.Venue, position),
	}
	fees.TotalUSD = fees.VenueAFeeUSD + fees.VenueBFeeUSD

	// Buy the cheap side, sell the expensive side. Both directions are
	// priced; fees are symmetric so only the gross leg differs.
	aToB := grossProfitUSD(position, pA, pB)
	bToA := grossProfitUSD(position, pB, pA)

	gross := aToB
	direction := domain.DirectionAToB
	if bToA > aToB {
		gross = bToA
		direction = domain.DirectionBToA
	}

	netUSD := gross - fees.TotalUSD
	netPct := netUSD / position * 100.0

	return c.finish(m, direction, spreadPct, netPct, position, fees)
}

// grossProfitUSD is the payoff of buying on the venue quoting buyPrice and
// selling the same outcome on the venue quoting sellPrice.
func grossProfitUSD(positionUSD, buyPrice, sellPrice float64) float64 {
	if sellPrice <= buyPrice {
		return 0
	}
	shares := positionUSD / buyPrice
	return shares * (sellPrice - buyPrice)
}

func (c *Calculator) evaluateInverse(m domain.EventMatch) Outcome {
	pA, pB := m.A.Price, m.B.Price
	cost := pA + pB

	position := c.cfg.PositionSizeUSD
	fees := domain.FeeBreakdown{
		VenueAFeeUSD: c.feeFor(m.A.Venue, position),
		VenueBFeeUSD: c.feeFor(m.B.Venue, position),
	}
	fees.TotalUSD = fees.VenueAFeeUSD + fees.VenueBFeeUSD

	// Each paired share costs pA+pB and pays out exactly 1.0 regardless of
	// which side resolves.
	pairs := position / cost
	grossUSD := pairs * (1.0 - cost)
	netUSD := grossUSD - fees.TotalUSD
	netPct := netUSD / position * 100.0

	spreadPct := (1.0 - cost) * 100.0
	return c.finish(m, domain.DirectionInverse, spreadPct, netPct, position, fees)
}

func (c *Calculator) finish(m domain.EventMatch, dir domain.Direction, spreadPct, netPct, position float64, fees domain.FeeBreakdown) Outcome {
	if netPct > c.cfg.MaxPlausibleProfitPct {
		return Outcome{
			Reject: domain.RejectSanity,
			Note: fmt.Sprintf("net profit %.1f%% exceeds plausibility cap %.1f%%, likely a data error",
				netPct, c.cfg.MaxPlausibleProfitPct),
		}
	}

	threshold := c.cfg.ProfitThresholdPct
	switch {
	case netPct >= threshold:
		r := c.result(m, dir, spreadPct, netPct, position, fees, true)
		return Outcome{Result: &r}
	case netPct >= threshold-c.cfg.NearMissMarginPct:
		r := c.result(m, dir, spreadPct, netPct, position, fees, false)
		return Outcome{Result: &r, Monitor: true}
	default:
		return Outcome{
			Reject: domain.RejectFees,
			Note:   fmt.Sprintf("net profit %.2f%% below threshold %.2f%% after fees", netPct, threshold),
		}
	}
}

func (c *Calculator) result(m domain.EventMatch, dir domain.Direction, spreadPct, netPct, position float64, fees domain.FeeBreakdown, profitable bool) domain.ArbitrageResult {
	return domain.ArbitrageResult{
		ID:              uuid.NewString(),
		Match:           m,
		Direction:       dir,
		GrossSpreadPct:  spreadPct,
		NetProfitPct:    netPct,
		RequiredCapital: position,
		Fees:            fees,
		IsProfitable:    profitable,
		Monitor:         !profitable,
		DetectedAt:      time.Now().UTC(),
	}
}
