package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oddslab/arbscan/internal/domain"
)

func testDetector() *InverseDetector {
	return NewInverseDetector(InverseConfig{PriceSumMin: 0.95, PriceSumMax: 1.05})
}

func inverseMatch(descA string, priceA float64, descB string, priceB float64, grade domain.Grade) (domain.EventMatch, NormalizedText, NormalizedText) {
	normA, normB := Normalize(descA), Normalize(descB)
	match := domain.EventMatch{
		MatchCandidate: domain.MatchCandidate{
			A: domain.Listing{Venue: domain.VenueKalshi, ID: "K1", Description: descA, Price: priceA},
			B: domain.Listing{Venue: domain.VenuePolymarket, ID: "P1", Description: descB, Price: priceB},
		},
		Similarity: 0.97,
		Grade:      grade,
	}
	return match, normA, normB
}

func TestIsInversePartyOpposition(t *testing.T) {
	d := testDetector()
	match, normA, normB := inverseMatch(
		"Will Democrats win the Senate majority?", 0.52,
		"Will Republicans win the Senate majority?", 0.48,
		domain.GradeA,
	)
	assert.True(t, d.IsInverse(match, normA, normB))
}

func TestIsInverseYesNoMarkers(t *testing.T) {
	d := testDetector()
	match, normA, normB := inverseMatch(
		"Bitcoin above $100k by March? - Yes", 0.55,
		"Bitcoin above $100k by March? - No", 0.45,
		domain.GradeA,
	)
	assert.True(t, d.IsInverse(match, normA, normB))
}

func TestIsInverseOverUnderSameThreshold(t *testing.T) {
	d := testDetector()
	match, normA, normB := inverseMatch(
		"Bitcoin over $100k in December", 0.60,
		"Bitcoin under $100k in December", 0.38,
		domain.GradeA,
	)
	assert.True(t, d.IsInverse(match, normA, normB))
}

func TestIsInverseOverUnderDifferentThresholds(t *testing.T) {
	d := testDetector()
	match, normA, normB := inverseMatch(
		"Bitcoin over $100k in December", 0.60,
		"Bitcoin under $200k in December", 0.38,
		domain.GradeA,
	)
	assert.False(t, d.IsInverse(match, normA, normB), "different thresholds describe different events")
}

func TestIsInverseWinLoseAntonyms(t *testing.T) {
	d := testDetector()
	match, normA, normB := inverseMatch(
		"Chiefs win the Super Bowl", 0.60,
		"Chiefs lose the Super Bowl", 0.38,
		domain.GradeA,
	)
	assert.True(t, d.IsInverse(match, normA, normB))
}

func TestIsInverseRejectsPriceSumOutsideBand(t *testing.T) {
	d := testDetector()
	// Same-outcome duplicate: opposing-party pattern absent and sum 1.32.
	match, normA, normB := inverseMatch(
		"Democrats win Georgia", 0.65,
		"Democrats win Georgia", 0.67,
		domain.GradeA,
	)
	assert.False(t, d.IsInverse(match, normA, normB))

	// Even with an explicit pattern, a sum far from 1.0 blocks detection.
	match, normA, normB = inverseMatch(
		"Will Democrats win the Senate majority?", 0.20,
		"Will Republicans win the Senate majority?", 0.30,
		domain.GradeA,
	)
	assert.False(t, d.IsInverse(match, normA, normB))
}

func TestIsInverseRequiresTextualPattern(t *testing.T) {
	d := testDetector()
	// Prices sum to 1.0 but neither side carries an opposite-outcome marker.
	match, normA, normB := inverseMatch(
		"Taylor Swift attends the Super Bowl", 0.52,
		"Taylor Swift performs at the Super Bowl", 0.48,
		domain.GradeA,
	)
	assert.False(t, d.IsInverse(match, normA, normB), "numeric coincidence alone never confirms an inverse")
	assert.True(t, d.Ambiguous(match, normA, normB))
}

func TestIsInverseRequiresHighGrade(t *testing.T) {
	d := testDetector()
	match, normA, normB := inverseMatch(
		"Will Democrats win the Senate majority?", 0.52,
		"Will Republicans win the Senate majority?", 0.48,
		domain.GradeC,
	)
	assert.False(t, d.IsInverse(match, normA, normB))
	assert.False(t, d.Ambiguous(match, normA, normB))
}

func TestPriceSumBandEdges(t *testing.T) {
	d := testDetector()
	assert.True(t, d.PriceSumInBand(0.50, 0.45))
	assert.True(t, d.PriceSumInBand(0.50, 0.55))
	assert.False(t, d.PriceSumInBand(0.50, 0.56))
	assert.False(t, d.PriceSumInBand(0.50, 0.44))
}
