package domain

// Grade is a coarse confidence bucket for a matched pair. A is highest; D
// means the pair is rejected before any trade math runs.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
)

// gradeRank orders grades for comparison; higher is more confident.
var gradeRank = map[Grade]int{
	GradeA: 4,
	GradeB: 3,
	GradeC: 2,
	GradeD: 1,
}

// AtLeast reports whether g is at least as confident as other.
func (g Grade) AtLeast(other Grade) bool {
	return gradeRank[g] >= gradeRank[other]
}

// Downgrade returns the grade one full step below g. GradeD stays GradeD.
func (g Grade) Downgrade() Grade {
	switch g {
	case GradeA:
		return GradeB
	case GradeB:
		return GradeC
	case GradeC:
		return GradeD
	default:
		return GradeD
	}
}

// DateAlignment classifies how the close dates of a pair relate.
type DateAlignment string

const (
	// DateAligned: both sides expose a parseable close date and the absolute
	// difference is within the configured window.
	DateAligned DateAlignment = "aligned"
	// DateUnknown: neither side exposes a parseable close date. Not a
	// penalty; absence of evidence is not treated as disagreement.
	DateUnknown DateAlignment = "unknown"
	// DateMismatched: a date is extractable on exactly one side, or both are
	// extractable but differ by more than the window. Downgrades the match
	// one full grade so a parsing gap never silently upgrades confidence.
	DateMismatched DateAlignment = "mismatched"
)

// MatchCandidate is a listing pair that survived the keyword filter.
type MatchCandidate struct {
	A              Listing
	B              Listing
	KeywordOverlap float64
}

// EventMatch is a MatchCandidate that passed semantic scoring. Grade is a
// deterministic, total function of Similarity and DateAlignment; IsInverse is
// decided only after Similarity has cleared the high-confidence grades.
type EventMatch struct {
	MatchCandidate

	Similarity  float64
	Grade       Grade
	DateStatus  DateAlignment
	IsInverse   bool
	NormalizedA string
	NormalizedB string
}
