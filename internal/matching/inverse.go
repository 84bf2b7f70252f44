package matching

import (
	"math"

	"github.com/oddslab/arbscan/internal/domain"
)

// InverseConfig holds the tunables for opposite-outcome detection.
type InverseConfig struct {
	// PriceSumMin/PriceSumMax bound the band around 1.0 that the pair's
	// price sum must fall inside. The band is deliberately narrow: it must
	// reject same-outcome duplicates, whose sum is usually far from 1.0.
	PriceSumMin float64
	PriceSumMax float64
	// MinGrade is the lowest grade allowed to enter inverse detection.
	// A wrong "same event" judgment poisons the price-sum heuristic, so
	// detection never runs on low-confidence pairs.
	MinGrade domain.Grade
}

// InverseDetector decides whether a matched pair represents mutually
// exclusive opposite outcomes rather than duplicate listings of one outcome.
type InverseDetector struct {
	cfg InverseConfig
}

// NewInverseDetector creates an InverseDetector.
func NewInverseDetector(cfg InverseConfig) *InverseDetector {
	if cfg.MinGrade == "" {
		cfg.MinGrade = domain.GradeB
	}
	return &InverseDetector{cfg: cfg}
}

// IsInverse reports whether the matched pair is an inverse pair. All three
// conditions must hold independently:
//
//  1. the match grade cleared the high-confidence floor,
//  2. price_a + price_b lies inside the configured band around 1.0,
//  3. at least one explicit opposite-outcome textual pattern is present.
//
// Price sum alone is necessary but not sufficient: two unrelated markets can
// coincidentally sum near 1.0, so the numeric and textual signals must
// jointly confirm before a buy-both-sides trade is ever proposed.
func (d *InverseDetector) IsInverse(match domain.EventMatch, normA, normB NormalizedText) bool {
	if !match.Grade.AtLeast(d.cfg.MinGrade) {
		return false
	}
	if !d.PriceSumInBand(match.A.Price, match.B.Price) {
		return false
	}
	return HasOppositePattern(normA, normB)
}

// Ambiguous reports a high-confidence pair whose price sum sits in the
// inverse band but whose text carries no opposite-outcome pattern. Such a
// pair is unsafe in either interpretation: trading it same-direction bets
// against a likely unlabeled inverse, and trading it inverse without textual
// confirmation risks buying the same outcome twice.
func (d *InverseDetector) Ambiguous(match domain.EventMatch, normA, normB NormalizedText) bool {
	if !match.Grade.AtLeast(d.cfg.MinGrade) {
		return false
	}
	if !d.PriceSumInBand(match.A.Price, match.B.Price) {
		return false
	}
	return !HasOppositePattern(normA, normB)
}

// PriceSumInBand reports whether the pair's price sum falls inside the
// configured inverse band.
func (d *InverseDetector) PriceSumInBand(priceA, priceB float64) bool {
	sum := priceA + priceB
	return sum >= d.cfg.PriceSumMin && sum <= d.cfg.PriceSumMax
}

// HasOppositePattern reports whether the two normalized texts carry an
// explicit opposite-outcome pattern: opposing party names, an explicit
// yes-vs-no marker on the same base phrase, over-vs-under with a matching
// threshold, or a win/lose antonym pair on the same subject.
func HasOppositePattern(a, b NormalizedText) bool {
	return opposingParties(a.Entities, b.Entities) ||
		opposingYesNo(a.Entities, b.Entities) ||
		opposingOverUnder(a.Entities, b.Entities) ||
		opposingWinLose(a.Entities, b.Entities)
}

// opposingParties is true when each side names exactly one party and the two
// differ. A listing naming both parties is treating them as alternatives, not
// picking a side, so it never matches.
func opposingParties(ea, eb Entities) bool {
	if len(ea.Parties) != 1 || len(eb.Parties) != 1 {
		return false
	}
	return ea.Parties[0] != eb.Parties[0]
}

func opposingYesNo(ea, eb Entities) bool {
	if ea.YesNo == "" || eb.YesNo == "" {
		return false
	}
	return ea.YesNo != eb.YesNo
}

// opposingOverUnder requires the numeric thresholds to match: "over 100k" vs
// "under 200k" describe different events, not opposite outcomes of one.
func opposingOverUnder(ea, eb Entities) bool {
	if ea.OverUnder == "" || eb.OverUnder == "" || ea.OverUnder == eb.OverUnder {
		return false
	}
	if ea.Threshold == 0 || eb.Threshold == 0 {
		return false
	}
	return math.Abs(ea.Threshold-eb.Threshold) < 1e-9
}

func opposingWinLose(ea, eb Entities) bool {
	if ea.WinLose == "" || eb.WinLose == "" {
		return false
	}
	return ea.WinLose != eb.WinLose
}
