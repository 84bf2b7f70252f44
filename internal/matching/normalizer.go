// Package matching implements the match-and-validate text pipeline: text
// normalization, keyword pre-filtering, semantic similarity grading, and
// inverse (opposite-outcome) detection.
package matching

import (
	"hash/fnv"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/oddslab/arbscan/internal/domain"
)

// abbreviations maps common market shorthand to its expanded form. Expansion
// runs word-by-word after lowercasing; expanded values are never themselves
// keys, which keeps Normalize idempotent.
var abbreviations = map[string]string{
	"djt":  "donald trump",
	"dt":   "donald trump",
	"gop":  "republican",
	"dem":  "democrat",
	"dems": "democrats",
	"pres": "president",
	"vp":   "vice president",
	"nba":  "national basketball association",
	"nfl":  "national football league",
	"mlb":  "major league baseball",
	"btc":  "bitcoin",
	"eth":  "ethereum",
	"usd":  "dollar",
	"us":   "united states",
	"uk":   "united kingdom",
	"sen":  "senate",
}

// stopWords are filtered out of the token set used for overlap scoring. The
// directional markers "yes"/"no"/"over"/"under" are extracted separately
// before this filter runs.
var stopWords = map[string]bool{
	"the": true, "a": true, "an": true, "and": true, "or": true, "but": true,
	"in": true, "on": true, "at": true, "to": true, "for": true, "of": true,
	"with": true, "by": true, "from": true, "as": true, "is": true,
	"was": true, "are": true, "were": true, "be": true, "been": true,
	"being": true, "have": true, "has": true, "had": true, "do": true,
	"does": true, "did": true, "will": true, "would": true, "should": true,
	"could": true, "may": true, "might": true, "must": true, "can": true,
	"this": true, "that": true, "these": true, "those": true,
}

// partySides groups mutually exclusive party names. Two listings naming
// different members of the same group are candidates for opposite outcomes.
var partySides = [][]string{
	{"democrat", "democrats", "democratic"},
	{"republican", "republicans"},
}

// winWords and loseWords are outcome-type synonym sets used both for marker
// extraction and for win/lose antonym detection.
var winWords = map[string]bool{
	"win": true, "wins": true, "won": true, "victory": true, "victor": true,
	"victorious": true, "succeed": true, "succeeds": true,
}

var loseWords = map[string]bool{
	"lose": true, "loses": true, "lost": true, "loss": true, "defeat": true,
	"defeated": true, "fail": true, "fails": true,
}

var (
	punctRe     = regexp.MustCompile(`[^\w\s']`)
	yearRe      = regexp.MustCompile(`\b(19\d{2}|20\d{2})\b`)
	numDateRe   = regexp.MustCompile(`\b(\d{1,2})[/-](\d{1,2})[/-](\d{2,4})\b`)
	isoDateRe   = regexp.MustCompile(`\b(\d{4})-(\d{1,2})-(\d{1,2})\b`)
	overUnderRe = regexp.MustCompile(`\b(over|under|above|below)\s+\$?(\d+(?:\.\d+)?)\s*([km])?\b`)
)

// Entities are the directional markers extracted from a listing description.
type Entities struct {
	// Parties holds recognized party/side names, one canonical name per
	// opposition group present in the text.
	Parties []string
	// YesNo is "yes" or "no" when the description carries an explicit
	// outcome suffix, "" otherwise.
	YesNo string
	// OverUnder is "over" or "under" when a numeric threshold phrase is
	// present; Threshold then carries the parsed number.
	OverUnder string
	Threshold float64
	// WinLose is "win" or "lose" when an outcome-type synonym is present.
	WinLose string
	// CloseDate is the close date parsed from the text, nil when none is
	// extractable.
	CloseDate *time.Time
}

// NormalizedText is the canonical, comparable form of a listing description.
// It is a pure function of the input text, cached per cycle, never mutated.
type NormalizedText struct {
	// Canonical is the normalized description: lowercased, punctuation
	// stripped, abbreviations expanded, whitespace collapsed.
	Canonical string
	// Tokens is the stop-word-filtered token set used for overlap scoring.
	Tokens map[string]bool
	// Entities are the extracted directional markers.
	Entities Entities
	// Hash is a content hash of Canonical, used as the embedding cache key.
	Hash uint64
}

// Normalize canonicalizes a raw market description. It is idempotent:
// Normalize(n.Canonical) yields the same Canonical, Tokens, and Hash.
func Normalize(description string) NormalizedText {
	canonical := canonicalize(description)

	n := NormalizedText{
		Canonical: canonical,
		Tokens:    tokenSet(canonical),
		Entities:  extractEntities(canonical),
		Hash:      contentHash(canonical),
	}
	// Date separators ("/", "-") are stripped by canonicalization, so full
	// dates are only recoverable from the raw text.
	if d := extractCloseDate(strings.ToLower(description)); d != nil {
		n.Entities.CloseDate = d
	}
	return n
}

// canonicalize lowercases, strips punctuation (keeping in-word apostrophes),
// expands abbreviations, and collapses whitespace.
func canonicalize(text string) string {
	text = strings.ToLower(text)
	text = punctRe.ReplaceAllString(text, " ")

	words := strings.Fields(text)
	expanded := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.Trim(w, "'")
		if w == "" {
			continue
		}
		if exp, ok := abbreviations[w]; ok {
			expanded = append(expanded, exp)
		} else {
			expanded = append(expanded, w)
		}
	}
	return strings.Join(expanded, " ")
}

// tokenSet extracts the significant tokens from canonical text, dropping stop
// words and words of two characters or fewer.
func tokenSet(canonical string) map[string]bool {
	tokens := make(map[string]bool)
	for _, w := range strings.Fields(canonical) {
		if stopWords[w] || len(w) <= 2 {
			continue
		}
		tokens[w] = true
	}
	return tokens
}

func extractEntities(canonical string) Entities {
	var e Entities
	words := strings.Fields(canonical)
	wordSet := make(map[string]bool, len(words))
	for _, w := range words {
		wordSet[w] = true
	}

	// Party names, canonicalized to the first name of each opposition group.
	for _, group := range partySides {
		for _, name := range group {
			if wordSet[name] {
				e.Parties = append(e.Parties, group[0])
				break
			}
		}
	}

	// Explicit yes/no outcome marker. A trailing marker is the strongest
	// signal ("... - yes"); a bare "yes"/"no" word anywhere still counts.
	if len(words) > 0 {
		switch last := words[len(words)-1]; last {
		case "yes", "no":
			e.YesNo = last
		}
	}
	if e.YesNo == "" {
		if wordSet["yes"] {
			e.YesNo = "yes"
		} else if wordSet["no"] {
			e.YesNo = "no"
		}
	}

	// Over/under with numeric threshold.
	if m := overUnderRe.FindStringSubmatch(canonical); m != nil {
		switch m[1] {
		case "over", "above":
			e.OverUnder = "over"
		case "under", "below":
			e.OverUnder = "under"
		}
		if v, err := strconv.ParseFloat(m[2], 64); err == nil {
			switch m[3] {
			case "k":
				v *= 1_000
			case "m":
				v *= 1_000_000
			}
			e.Threshold = v
		}
	}

	// Win/lose outcome type.
	for w := range wordSet {
		if winWords[w] {
			e.WinLose = "win"
			break
		}
	}
	if e.WinLose == "" {
		for w := range wordSet {
			if loseWords[w] {
				e.WinLose = "lose"
				break
			}
		}
	}

	e.CloseDate = extractCloseDate(canonical)
	return e
}

// extractCloseDate parses a close date from text. Full dates win over bare
// years; a bare year resolves to January 1 of that year.
func extractCloseDate(canonical string) *time.Time {
	if m := isoDateRe.FindStringSubmatch(canonical); m != nil {
		if t, ok := makeDate(m[1], m[2], m[3]); ok {
			return &t
		}
	}
	if m := numDateRe.FindStringSubmatch(canonical); m != nil {
		// Ambiguous slash dates are read as month/day/year, the dominant
		// format on both venues.
		if t, ok := makeDate(m[3], m[1], m[2]); ok {
			return &t
		}
	}
	if m := yearRe.FindStringSubmatch(canonical); m != nil {
		year, _ := strconv.Atoi(m[1])
		t := time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)
		return &t
	}
	return nil
}

func makeDate(yearStr, monthStr, dayStr string) (time.Time, bool) {
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return time.Time{}, false
	}
	if year < 100 {
		year += 2000
	}
	month, err := strconv.Atoi(monthStr)
	if err != nil || month < 1 || month > 12 {
		return time.Time{}, false
	}
	day, err := strconv.Atoi(dayStr)
	if err != nil || day < 1 || day > 31 {
		return time.Time{}, false
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC), true
}

// contentHash returns the FNV-1a hash of the canonical text.
func contentHash(canonical string) uint64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(canonical))
	return h.Sum64()
}

// CloseDate returns the effective close date for a listing: the venue-supplied
// close time when present, otherwise the date extracted from the description.
func CloseDate(l domain.Listing, n NormalizedText) *time.Time {
	if l.CloseTime != nil {
		return l.CloseTime
	}
	return n.Entities.CloseDate
}
