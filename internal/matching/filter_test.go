package matching

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddslab/arbscan/internal/domain"
)

func filterMatches() []domain.EventMatch {
	mk := func(id, descA, descB string) domain.EventMatch {
		return domain.EventMatch{MatchCandidate: domain.MatchCandidate{
			A: domain.Listing{Venue: domain.VenueKalshi, ID: id, Description: descA, Price: 0.5},
			B: domain.Listing{Venue: domain.VenuePolymarket, ID: id, Description: descB, Price: 0.5},
		}}
	}
	return []domain.EventMatch{
		mk("sen", "Democrats win the Senate", "Republicans win the Senate"),
		mk("btc", "Bitcoin above $100k", "Bitcoin below $100k"),
		mk("nfl", "Chiefs win the Super Bowl", "Chiefs lose the Super Bowl"),
	}
}

func TestFilterDisabledPassesEverything(t *testing.T) {
	f := EventFilter{}
	assert.Len(t, f.Apply(filterMatches()), 3)
}

func TestFilterIncludeMode(t *testing.T) {
	f := EventFilter{Enabled: true, Mode: FilterInclude, Keywords: []string{"senate"}}
	got := f.Apply(filterMatches())
	require.Len(t, got, 1)
	assert.Equal(t, "sen", got[0].A.ID)
}

func TestFilterExcludeMode(t *testing.T) {
	f := EventFilter{Enabled: true, Mode: FilterExclude, Keywords: []string{"bitcoin"}}
	got := f.Apply(filterMatches())
	require.Len(t, got, 2)
	for _, m := range got {
		assert.NotEqual(t, "btc", m.A.ID)
	}
}

func TestFilterMatchSinglePair(t *testing.T) {
	f := EventFilter{Enabled: true, Mode: FilterInclude, Keywords: []string{"super bowl"}}
	assert.True(t, f.Match(
		domain.Listing{Description: "Chiefs win the Super Bowl"},
		domain.Listing{Description: "Chiefs lose the Super Bowl"},
	))
	assert.False(t, f.Match(
		domain.Listing{Description: "Democrats win the Senate"},
		domain.Listing{Description: "Republicans win the Senate"},
	))
}

func TestFilterPreset(t *testing.T) {
	preset, ok := Presets["politics"]
	require.True(t, ok)
	got := preset.Apply(filterMatches())
	require.Len(t, got, 1)
	assert.Equal(t, "sen", got[0].A.ID)
}

func TestFilterSummary(t *testing.T) {
	assert.Contains(t, EventFilter{}.Summary(), "no filters")
	f := EventFilter{Enabled: true, Mode: FilterExclude, Keywords: []string{"nfl", "nba"}}
	assert.Contains(t, f.Summary(), "excluding")
	assert.Contains(t, f.Summary(), "nfl")
}
