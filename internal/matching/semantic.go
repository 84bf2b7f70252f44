package matching

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/oddslab/arbscan/internal/domain"
	"github.com/oddslab/arbscan/internal/matching/embed"
)

// GradeRule is one row of the grade table: the grade awarded when similarity
// is at or above MinSimilarity. Rules are evaluated top-down in strictly
// descending threshold order, so a score exactly on a boundary takes the
// higher grade. RequireDates marks grades that additionally demand close-date
// alignment; misalignment costs one full grade (see DateMismatched).
type GradeRule struct {
	Grade         domain.Grade
	MinSimilarity float64
	RequireDates  bool
}

// DefaultGradeRules is the standard grade table.
var DefaultGradeRules = []GradeRule{
	{Grade: domain.GradeA, MinSimilarity: 0.95, RequireDates: true},
	{Grade: domain.GradeB, MinSimilarity: 0.90, RequireDates: true},
	{Grade: domain.GradeC, MinSimilarity: 0.85, RequireDates: false},
}

// MatcherConfig configures the semantic matcher.
type MatcherConfig struct {
	// Rules is the grade table; defaults to DefaultGradeRules when empty.
	Rules []GradeRule
	// DateWindow is the maximum close-date difference for alignment.
	DateWindow time.Duration
	// EmbedTimeout bounds the embedding phase of one cycle.
	EmbedTimeout time.Duration
	// EmbedConcurrency bounds concurrent embedding computations.
	EmbedConcurrency int
}

// Matcher scores candidate pairs: it obtains embedding vectors from the
// process-lifetime cache (computing on miss), computes cosine similarity, and
// assigns a grade from the ordered grade table.
type Matcher struct {
	embedder embed.Embedder
	cache    *embed.VectorCache
	cfg      MatcherConfig
	logger   *slog.Logger
}

// NewMatcher creates a Matcher. The cache is owned by the caller and shared
// across cycles for the process lifetime.
func NewMatcher(embedder embed.Embedder, cache *embed.VectorCache, cfg MatcherConfig, logger *slog.Logger) *Matcher {
	if len(cfg.Rules) == 0 {
		cfg.Rules = DefaultGradeRules
	}
	if cfg.EmbedConcurrency <= 0 {
		cfg.EmbedConcurrency = 8
	}
	return &Matcher{
		embedder: embedder,
		cache:    cache,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "semantic_matcher")),
	}
}

// Precompute fills the vector cache for every distinct normalized text in one
// batch, bounded by the configured concurrency and the per-cycle timeout. On
// timeout or embedder failure it returns domain.ErrEmbeddingUnavailable so
// the caller can skip the semantic phase for the cycle instead of stalling
// the poll cadence.
func (m *Matcher) Precompute(ctx context.Context, norms []NormalizedText) error {
	if m.cfg.EmbedTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.EmbedTimeout)
		defer cancel()
	}

	// Deduplicate by content hash; identical descriptions across venues (or
	// across cycles) cost one computation total.
	pending := make(map[uint64]string, len(norms))
	for _, n := range norms {
		if _, ok := m.cache.Get(n.Hash); ok {
			continue
		}
		pending[n.Hash] = n.Canonical
	}
	if len(pending) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.EmbedConcurrency)
	for hash, text := range pending {
		hash, text := hash, text
		g.Go(func() error {
			vec, err := m.embedder.Embed(gctx, text)
			if err != nil {
				return err
			}
			m.cache.Put(hash, vec)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		m.logger.Warn("embedding batch failed, semantic phase degraded",
			slog.Int("pending", len(pending)),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}

	m.logger.Debug("embedding batch complete",
		slog.Int("computed", len(pending)),
		slog.Int("cache_size", m.cache.Len()),
	)
	return nil
}

// Rules returns the active grade table.
func (m *Matcher) Rules() []GradeRule { return m.cfg.Rules }

// Score turns a keyword-filtered candidate into an EventMatch. Vectors are
// taken from the cache; a miss is computed inline so Score stays usable
// without a prior Precompute. IsInverse is left false here; inverse detection
// runs as its own later pipeline layer.
func (m *Matcher) Score(ctx context.Context, cand domain.MatchCandidate, normA, normB NormalizedText) (domain.EventMatch, error) {
	vecA, err := m.vector(ctx, normA)
	if err != nil {
		return domain.EventMatch{}, err
	}
	vecB, err := m.vector(ctx, normB)
	if err != nil {
		return domain.EventMatch{}, err
	}

	similarity := embed.Cosine(vecA, vecB)
	dateStatus := m.dateAlignment(cand.A, cand.B, normA, normB)
	grade := gradeFor(similarity, dateStatus, m.cfg.Rules)

	return domain.EventMatch{
		MatchCandidate: cand,
		Similarity:     similarity,
		Grade:          grade,
		DateStatus:     dateStatus,
		NormalizedA:    normA.Canonical,
		NormalizedB:    normB.Canonical,
	}, nil
}

func (m *Matcher) vector(ctx context.Context, n NormalizedText) ([]float64, error) {
	if vec, ok := m.cache.Get(n.Hash); ok {
		return vec, nil
	}
	vec, err := m.embedder.Embed(ctx, n.Canonical)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrEmbeddingUnavailable, err)
	}
	m.cache.Put(n.Hash, vec)
	return vec, nil
}

// dateAlignment classifies how the close dates of the pair relate, using the
// venue-supplied close time when present and the text-extracted date
// otherwise.
func (m *Matcher) dateAlignment(a, b domain.Listing, normA, normB NormalizedText) domain.DateAlignment {
	dateA := CloseDate(a, normA)
	dateB := CloseDate(b, normB)

	switch {
	case dateA == nil && dateB == nil:
		return domain.DateUnknown
	case dateA == nil || dateB == nil:
		return domain.DateMismatched
	}

	diff := dateA.Sub(*dateB)
	if diff < 0 {
		diff = -diff
	}
	if diff <= m.cfg.DateWindow {
		return domain.DateAligned
	}
	return domain.DateMismatched
}

// GradeForSimilarity evaluates the ordered grade table top-down and returns
// the grade the similarity alone earns, before any date penalty. GradeD is
// the floor.
func GradeForSimilarity(similarity float64, rules []GradeRule) domain.Grade {
	if len(rules) == 0 {
		rules = DefaultGradeRules
	}
	for _, rule := range rules {
		if similarity >= rule.MinSimilarity {
			return rule.Grade
		}
	}
	return domain.GradeD
}

// gradeFor applies the date-mismatch downgrade on top of the similarity
// grade. It is total: every (similarity, dateStatus) input yields a grade.
func gradeFor(similarity float64, dateStatus domain.DateAlignment, rules []GradeRule) domain.Grade {
	grade := GradeForSimilarity(similarity, rules)

	// A parsing gap or disagreement costs one full grade; it is never
	// silently ignored. Absence of dates on both sides is not a penalty.
	if dateStatus == domain.DateMismatched {
		grade = grade.Downgrade()
	}
	return grade
}
