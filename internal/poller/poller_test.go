package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddslab/arbscan/internal/domain"
)

type stubSource struct {
	venue    domain.Venue
	listings []domain.Listing
	errs     []error
	calls    int
}

func (s *stubSource) Venue() domain.Venue { return s.venue }

func (s *stubSource) Listings(context.Context) ([]domain.Listing, error) {
	defer func() { s.calls++ }()
	if s.calls < len(s.errs) && s.errs[s.calls] != nil {
		return nil, s.errs[s.calls]
	}
	return s.listings, nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func fastConfig() Config {
	return Config{
		MaxRetries:     2,
		BackoffBase:    time.Millisecond,
		BackoffMax:     5 * time.Millisecond,
		RatePerSecond:  1000,
		UnhealthyAfter: 2,
	}
}

func TestPollSuccess(t *testing.T) {
	src := &stubSource{
		venue: domain.VenueKalshi,
		listings: []domain.Listing{
			{Venue: domain.VenueKalshi, ID: "SEN-2026", Description: "Senate control", Price: 0.52},
		},
	}
	p := New(src, fastConfig(), testLogger())

	got, err := p.Poll(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "SEN-2026", got[0].ID)

	st := p.Status()
	assert.True(t, st.Healthy)
	assert.Zero(t, st.ConsecutiveFailures)
	assert.False(t, st.LastSuccess.IsZero())
}

func TestPollRetriesTransientFailure(t *testing.T) {
	src := &stubSource{
		venue: domain.VenuePolymarket,
		errs:  []error{errors.New("http 502"), errors.New("http 502")},
		listings: []domain.Listing{
			{Venue: domain.VenuePolymarket, ID: "m1", Description: "something", Price: 0.4},
		},
	}
	p := New(src, fastConfig(), testLogger())

	got, err := p.Poll(context.Background())
	require.NoError(t, err)
	assert.Len(t, got, 1)
	assert.Equal(t, 3, src.calls)
	assert.True(t, p.Status().Healthy)
}

func TestPollExhaustedReturnsVenueDown(t *testing.T) {
	boom := errors.New("http 500")
	src := &stubSource{
		venue: domain.VenueKalshi,
		errs:  []error{boom, boom, boom},
	}
	p := New(src, fastConfig(), testLogger())

	_, err := p.Poll(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrVenueDown)
	assert.ErrorIs(t, err, boom)

	st := p.Status()
	assert.Equal(t, 1, st.ConsecutiveFailures)
	assert.True(t, st.Healthy, "one failed poll is below the unhealthy threshold")
}

func TestPollUnhealthyAfterConsecutiveFailures(t *testing.T) {
	boom := errors.New("http 500")
	src := &stubSource{
		venue: domain.VenueKalshi,
		errs:  []error{boom, boom, boom, boom, boom, boom},
	}
	p := New(src, fastConfig(), testLogger())

	for i := 0; i < 2; i++ {
		_, err := p.Poll(context.Background())
		require.Error(t, err)
	}

	st := p.Status()
	assert.Equal(t, 2, st.ConsecutiveFailures)
	assert.False(t, st.Healthy)
}

func TestPollSuccessResetsFailureCount(t *testing.T) {
	boom := errors.New("http 500")
	src := &stubSource{
		venue: domain.VenueKalshi,
		errs:  []error{boom, boom, boom},
		listings: []domain.Listing{
			{Venue: domain.VenueKalshi, ID: "x", Description: "y", Price: 0.5},
		},
	}
	p := New(src, fastConfig(), testLogger())

	_, err := p.Poll(context.Background())
	require.Error(t, err)

	_, err = p.Poll(context.Background())
	require.NoError(t, err)

	st := p.Status()
	assert.True(t, st.Healthy)
	assert.Zero(t, st.ConsecutiveFailures)
}

func TestPollCancelledContext(t *testing.T) {
	boom := errors.New("http 500")
	src := &stubSource{venue: domain.VenueKalshi, errs: []error{boom, boom, boom, boom}}
	p := New(src, fastConfig(), testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Poll(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}
