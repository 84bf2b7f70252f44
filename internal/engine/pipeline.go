package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oddslab/arbscan/internal/arb"
	"github.com/oddslab/arbscan/internal/domain"
	"github.com/oddslab/arbscan/internal/matching"
)

// Config holds the engine-level tunables that sit above the individual
// stages.
type Config struct {
	// MinKeywordOverlap is the cheap pre-filter ratio below which a pair
	// never reaches semantic scoring.
	MinKeywordOverlap float64
	// Filter optionally narrows pairs to operator-selected event categories.
	Filter matching.EventFilter
}

// Opportunity is an accepted result together with its notification routing.
type Opportunity struct {
	Result domain.ArbitrageResult
	Alert  domain.AlertLevel
}

// CycleResult is everything one evaluation cycle produced. Results are pure
// functions of the input snapshots; the engine holds no state between cycles
// beyond the embedding cache.
type CycleResult struct {
	Opportunities []Opportunity
	// Monitors are near-miss results tracked for price drift.
	Monitors   []domain.ArbitrageResult
	Rejections []domain.RejectionRecord

	ListingsA int
	ListingsB int
	Pairs     int
	Scored    int
	// Degraded is set when the embedding stage was unavailable and candidates
	// could not be semantically scored this cycle.
	Degraded bool
	Elapsed  time.Duration
}

// Engine wires the stages into one cycle: normalize, keyword-pair, score,
// classify inverse, price. Every candidate that enters leaves as exactly one
// of opportunity, monitor, or rejection.
type Engine struct {
	matcher *matching.Matcher
	inverse *matching.InverseDetector
	calc    *arb.Calculator
	cfg     Config
	logger  *slog.Logger
}

func New(matcher *matching.Matcher, inverse *matching.InverseDetector, calc *arb.Calculator, cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		matcher: matcher,
		inverse: inverse,
		calc:    calc,
		cfg:     cfg,
		logger:  logger.With(slog.String("component", "engine")),
	}
}

// RunCycle evaluates one pair of venue snapshots. It only returns an error
// when the context is done; everything else degrades into rejections so a
// single bad listing can never abort a cycle.
func (e *Engine) RunCycle(ctx context.Context, listingsA, listingsB []domain.Listing) (CycleResult, error) {
	start := time.Now()
	res := CycleResult{}

	validA, normsA := e.prepare(listingsA)
	validB, normsB := e.prepare(listingsB)
	res.ListingsA = len(validA)
	res.ListingsB = len(validB)

	cands := matching.PairCandidates(validA, validB, normsA, normsB, e.cfg.MinKeywordOverlap)
	cands = e.applyFilter(cands, normsA, normsB)
	res.Pairs = len(cands)

	if len(cands) == 0 {
		res.Elapsed = time.Since(start)
		return res, nil
	}

	norms := make(map[string]matching.NormalizedText, len(validA)+len(validB))
	for i, l := range validA {
		norms[normKey(l)] = normsA[i]
	}
	for i, l := range validB {
		norms[normKey(l)] = normsB[i]
	}

	if err := e.matcher.Precompute(ctx, append(normsA, normsB...)); err != nil {
		if ctx.Err() != nil {
			return res, fmt.Errorf("engine: cycle aborted: %w", ctx.Err())
		}
		if errors.Is(err, domain.ErrEmbeddingUnavailable) {
			e.logger.Warn("embedding unavailable, skipping semantic stage this cycle",
				slog.Int("pairs", len(cands)),
				slog.String("error", err.Error()),
			)
			res.Degraded = true
			for _, cand := range cands {
				res.Rejections = append(res.Rejections, rejection(cand, domain.RejectSimilarity, 0,
					"embedding unavailable, pair not scored"))
			}
			res.Elapsed = time.Since(start)
			return res, nil
		}
		return res, fmt.Errorf("engine: precompute: %w", err)
	}

	for _, cand := range cands {
		if ctx.Err() != nil {
			return res, fmt.Errorf("engine: cycle aborted: %w", ctx.Err())
		}
		e.evaluatePair(ctx, cand, norms[normKey(cand.A)], norms[normKey(cand.B)], &res)
	}

	res.Elapsed = time.Since(start)
	e.logger.Info("cycle complete",
		slog.Int("pairs", res.Pairs),
		slog.Int("scored", res.Scored),
		slog.Int("opportunities", len(res.Opportunities)),
		slog.Int("monitors", len(res.Monitors)),
		slog.Int("rejections", len(res.Rejections)),
		slog.Duration("elapsed", res.Elapsed),
	)
	return res, nil
}

// prepare drops invalid listings and normalizes the rest, keeping the two
// slices index-aligned.
func (e *Engine) prepare(listings []domain.Listing) ([]domain.Listing, []matching.NormalizedText) {
	valid := make([]domain.Listing, 0, len(listings))
	norms := make([]matching.NormalizedText, 0, len(listings))
	for _, l := range listings {
		if !l.Valid() {
			e.logger.Debug("skipping invalid listing",
				slog.String("venue", string(l.Venue)),
				slog.String("id", l.ID),
			)
			continue
		}
		valid = append(valid, l)
		norms = append(norms, matching.Normalize(l.Description))
	}
	return valid, norms
}

func (e *Engine) applyFilter(cands []domain.MatchCandidate, _, _ []matching.NormalizedText) []domain.MatchCandidate {
	if !e.cfg.Filter.Enabled {
		return cands
	}
	kept := cands[:0]
	for _, cand := range cands {
		if e.cfg.Filter.Match(cand.A, cand.B) {
			kept = append(kept, cand)
		}
	}
	return kept
}

// evaluatePair runs one candidate through the scoring and pricing stages and
// appends its verdict to the cycle result.
func (e *Engine) evaluatePair(ctx context.Context, cand domain.MatchCandidate, normA, normB matching.NormalizedText, res *CycleResult) {
	match, err := e.matcher.Score(ctx, cand, normA, normB)
	if err != nil {
		res.Rejections = append(res.Rejections, rejection(cand, domain.RejectSimilarity, 0,
			fmt.Sprintf("scoring failed: %v", err)))
		return
	}
	res.Scored++

	if match.Grade == domain.GradeD {
		reason := domain.RejectSimilarity
		note := fmt.Sprintf("similarity %.3f below grade floor", match.Similarity)
		if match.DateStatus == domain.DateMismatched &&
			matching.GradeForSimilarity(match.Similarity, e.matcher.Rules()) != domain.GradeD {
			reason = domain.RejectDate
			note = fmt.Sprintf("close dates mismatched, similarity %.3f downgraded out", match.Similarity)
		}
		res.Rejections = append(res.Rejections, rejection(cand, reason, match.Similarity, note))
		return
	}

	if e.inverse.IsInverse(match, normA, normB) {
		match.IsInverse = true
	} else if e.inverse.Ambiguous(match, normA, normB) {
		res.Rejections = append(res.Rejections, rejection(cand, domain.RejectInverse, match.Similarity,
			fmt.Sprintf("price sum %.3f suggests opposite outcomes but text shows no opposition",
				match.A.Price+match.B.Price)))
		return
	}

	outcome := e.calc.Evaluate(match)
	switch {
	case outcome.Rejected():
		res.Rejections = append(res.Rejections, rejection(cand, outcome.Reject, match.Similarity, outcome.Note))
	case outcome.Monitor:
		res.Monitors = append(res.Monitors, *outcome.Result)
	default:
		res.Opportunities = append(res.Opportunities, Opportunity{
			Result: *outcome.Result,
			Alert:  alertFor(match.Grade),
		})
		e.logger.Info("opportunity detected",
			slog.String("id", outcome.Result.ID),
			slog.String("grade", string(match.Grade)),
			slog.String("direction", string(outcome.Result.Direction)),
			slog.Float64("net_profit_pct", outcome.Result.NetProfitPct),
			slog.Float64("similarity", match.Similarity),
		)
	}
}

// alertFor maps match confidence to notification routing. C-grade results
// are kept for the record but considered too uncertain to page anyone.
func alertFor(g domain.Grade) domain.AlertLevel {
	switch g {
	case domain.GradeA:
		return domain.AlertFull
	case domain.GradeB:
		return domain.AlertWarn
	default:
		return domain.AlertLogOnly
	}
}

func rejection(cand domain.MatchCandidate, reason domain.ReasonCode, similarity float64, note string) domain.RejectionRecord {
	return domain.RejectionRecord{
		ListingAID: cand.A.ID,
		ListingBID: cand.B.ID,
		Reason:     reason,
		Similarity: similarity,
		Note:       note,
		At:         time.Now().UTC(),
	}
}

// normKey identifies a listing across venues; bare IDs can collide between
// venues.
func normKey(l domain.Listing) string {
	return string(l.Venue) + "/" + l.ID
}
