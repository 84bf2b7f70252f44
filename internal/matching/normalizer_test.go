package matching

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddslab/arbscan/internal/domain"
)

func TestNormalizeCanonicalForm(t *testing.T) {
	n := Normalize("Will DJT win the 2024 Election?")

	assert.Equal(t, "will donald trump win the 2024 election", n.Canonical)
	assert.True(t, n.Tokens["donald"])
	assert.True(t, n.Tokens["trump"])
	assert.True(t, n.Tokens["election"])
	assert.False(t, n.Tokens["will"], "stop words are dropped from the token set")
	assert.False(t, n.Tokens["the"])
}

func TestNormalizeExpandsAbbreviations(t *testing.T) {
	n := Normalize("GOP takes the Senate")
	assert.Contains(t, n.Canonical, "republican")
	assert.NotContains(t, n.Canonical, "gop")

	n = Normalize("BTC over $100k by June")
	assert.Contains(t, n.Canonical, "bitcoin")
}

func TestNormalizeIdempotent(t *testing.T) {
	first := Normalize("Will the US Senate flip in 2026!?")
	second := Normalize(first.Canonical)

	assert.Equal(t, first.Canonical, second.Canonical)
	assert.Equal(t, first.Tokens, second.Tokens)
	assert.Equal(t, first.Hash, second.Hash)
}

func TestNormalizeHashStableAcrossFormatting(t *testing.T) {
	a := Normalize("Will   Democrats win?")
	b := Normalize("will democrats win")
	assert.Equal(t, a.Hash, b.Hash)
	assert.NotEqual(t, a.Hash, Normalize("will republicans win").Hash)
}

func TestExtractPartyEntities(t *testing.T) {
	a := Normalize("Will Democrats win the Senate majority?")
	require.Len(t, a.Entities.Parties, 1)
	assert.Equal(t, "democrat", a.Entities.Parties[0])

	b := Normalize("Will Republicans win the Senate majority?")
	require.Len(t, b.Entities.Parties, 1)
	assert.Equal(t, "republican", b.Entities.Parties[0])
}

func TestExtractYesNoMarker(t *testing.T) {
	assert.Equal(t, "yes", Normalize("Bitcoin above $100k by March? - Yes").Entities.YesNo)
	assert.Equal(t, "no", Normalize("Bitcoin above $100k by March? - No").Entities.YesNo)
	assert.Equal(t, "", Normalize("Bitcoin above $100k by March?").Entities.YesNo)
}

func TestExtractOverUnderThreshold(t *testing.T) {
	n := Normalize("Will Bitcoin trade over $100k in December?")
	assert.Equal(t, "over", n.Entities.OverUnder)
	assert.InDelta(t, 100_000, n.Entities.Threshold, 1e-9)

	n = Normalize("Temperature below 32 on election day")
	assert.Equal(t, "under", n.Entities.OverUnder)
	assert.InDelta(t, 32, n.Entities.Threshold, 1e-9)
}

func TestExtractWinLose(t *testing.T) {
	assert.Equal(t, "win", Normalize("Chiefs win the Super Bowl").Entities.WinLose)
	assert.Equal(t, "lose", Normalize("Chiefs lose the Super Bowl").Entities.WinLose)
	assert.Equal(t, "win", Normalize("a decisive victory for the incumbent").Entities.WinLose)
}

func TestExtractCloseDateFromText(t *testing.T) {
	n := Normalize("Senate control decided 2026-11-03")
	require.NotNil(t, n.Entities.CloseDate)
	assert.Equal(t, time.Date(2026, time.November, 3, 0, 0, 0, 0, time.UTC), *n.Entities.CloseDate)

	n = Normalize("Race called by 11/3/2026")
	require.NotNil(t, n.Entities.CloseDate)
	assert.Equal(t, time.Date(2026, time.November, 3, 0, 0, 0, 0, time.UTC), *n.Entities.CloseDate)

	n = Normalize("Will Democrats hold the House in 2026?")
	require.NotNil(t, n.Entities.CloseDate)
	assert.Equal(t, 2026, n.Entities.CloseDate.Year(), "bare year resolves to January 1")
	assert.Equal(t, time.January, n.Entities.CloseDate.Month())

	assert.Nil(t, Normalize("Will it rain tomorrow?").Entities.CloseDate)
}

func TestCloseDateVenueTimeWins(t *testing.T) {
	venueClose := time.Date(2026, time.November, 4, 12, 0, 0, 0, time.UTC)
	l := domain.Listing{
		Venue:       domain.VenueKalshi,
		ID:          "SEN-2026",
		Description: "Senate control decided in 2026",
		Price:       0.5,
		CloseTime:   &venueClose,
	}
	n := Normalize(l.Description)

	got := CloseDate(l, n)
	require.NotNil(t, got)
	assert.Equal(t, venueClose, *got)

	l.CloseTime = nil
	got = CloseDate(l, n)
	require.NotNil(t, got)
	assert.Equal(t, 2026, got.Year())
}
