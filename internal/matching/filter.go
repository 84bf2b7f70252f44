package matching

import (
	"fmt"
	"strings"

	"github.com/oddslab/arbscan/internal/domain"
)

// FilterMode selects whether keyword filters include or exclude matches.
type FilterMode string

const (
	FilterInclude FilterMode = "include"
	FilterExclude FilterMode = "exclude"
)

// EventFilter narrows the stream of event matches to the categories an
// operator cares about (only senate races, only crypto, everything except
// sports, and so on). Keywords are matched case-insensitively against the
// combined pair descriptions.
type EventFilter struct {
	Enabled  bool
	Mode     FilterMode
	Keywords []string
}

// Presets are ready-made filters for common monitoring setups.
var Presets = map[string]EventFilter{
	"senate": {
		Enabled: true, Mode: FilterInclude,
		Keywords: []string{"senate", "senator"},
	},
	"presidential": {
		Enabled: true, Mode: FilterInclude,
		Keywords: []string{"president", "presidential", "presidency", "potus"},
	},
	"politics": {
		Enabled: true, Mode: FilterInclude,
		Keywords: []string{
			"senate", "house", "congress", "president", "presidential",
			"governor", "election", "republican", "democrat", "party",
		},
	},
	"crypto": {
		Enabled: true, Mode: FilterInclude,
		Keywords: []string{"bitcoin", "btc", "ethereum", "eth", "crypto", "cryptocurrency"},
	},
	"sports": {
		Enabled: true, Mode: FilterInclude,
		Keywords: []string{"nfl", "nba", "mlb", "football", "basketball", "baseball", "championship", "super bowl"},
	},
}

// Apply filters a slice of matches according to the filter configuration. A
// disabled filter, or an enabled filter with no keywords, passes everything
// through unchanged.
func (f EventFilter) Apply(matches []domain.EventMatch) []domain.EventMatch {
	if !f.Enabled || len(f.Keywords) == 0 {
		return matches
	}

	keywords := make([]string, 0, len(f.Keywords))
	for _, kw := range f.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" {
			keywords = append(keywords, kw)
		}
	}

	filtered := make([]domain.EventMatch, 0, len(matches))
	for _, m := range matches {
		if f.pass(keywords, m.A, m.B) {
			filtered = append(filtered, m)
		}
	}
	return filtered
}

// Match reports whether a single pair passes the filter. Used to prune
// candidates before the expensive semantic stage.
func (f EventFilter) Match(a, b domain.Listing) bool {
	if !f.Enabled || len(f.Keywords) == 0 {
		return true
	}
	return f.pass(f.Keywords, a, b)
}

func (f EventFilter) pass(keywords []string, a, b domain.Listing) bool {
	combined := strings.ToLower(a.Description + " " + b.Description)
	found := false
	for _, kw := range keywords {
		if strings.Contains(combined, strings.ToLower(strings.TrimSpace(kw))) {
			found = true
			break
		}
	}
	return (f.Mode == FilterExclude) != found
}

// Summary returns a human-readable description of the active filter for
// startup logging.
func (f EventFilter) Summary() string {
	if !f.Enabled {
		return "no filters active (monitoring all events)"
	}
	if len(f.Keywords) == 0 {
		return "filters enabled but no keywords specified"
	}

	mode := "including only"
	if f.Mode == FilterExclude {
		mode = "excluding"
	}

	shown := f.Keywords
	extra := ""
	if len(shown) > 5 {
		extra = fmt.Sprintf(", and %d more", len(shown)-5)
		shown = shown[:5]
	}
	return fmt.Sprintf("%s: %s%s", mode, strings.Join(shown, ", "), extra)
}
