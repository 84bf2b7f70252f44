package matching

import (
	"github.com/oddslab/arbscan/internal/domain"
)

// OverlapRatio returns the keyword overlap between two token sets as the size
// of the intersection over the size of the smaller set, so a short, specific
// phrase is not penalized against a long, verbose one. The result is in
// [0,1] and symmetric in its arguments.
func OverlapRatio(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}

	small, large := a, b
	if len(b) < len(a) {
		small, large = b, a
	}

	intersection := 0
	for tok := range small {
		if large[tok] {
			intersection++
		}
	}
	return float64(intersection) / float64(len(small))
}

// PairCandidates forms the cross product of two venue snapshots and keeps
// only pairs whose keyword overlap meets minOverlap. This is the throughput
// safeguard: it must prune the bulk of the N×M space before the expensive
// semantic scoring runs. The normalized form of each listing is computed once
// per snapshot, not once per pair.
func PairCandidates(
	listingsA, listingsB []domain.Listing,
	normsA, normsB []NormalizedText,
	minOverlap float64,
) []domain.MatchCandidate {
	var candidates []domain.MatchCandidate
	for i, la := range listingsA {
		for j, lb := range listingsB {
			overlap := OverlapRatio(normsA[i].Tokens, normsB[j].Tokens)
			if overlap < minOverlap {
				continue
			}
			candidates = append(candidates, domain.MatchCandidate{
				A:              la,
				B:              lb,
				KeywordOverlap: overlap,
			})
		}
	}
	return candidates
}
