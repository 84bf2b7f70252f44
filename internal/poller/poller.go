// Package poller fetches listing snapshots from venue clients with retry,
// rate limiting, and health tracking.
package poller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/oddslab/arbscan/internal/domain"
)

// Source is a venue client that can produce a full listing snapshot.
type Source interface {
	Venue() domain.Venue
	Listings(ctx context.Context) ([]domain.Listing, error)
}

// Config tunes retry and rate limiting for one poller.
type Config struct {
	MaxRetries    int
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	RatePerSecond float64
	// UnhealthyAfter is the number of consecutive failed polls after which
	// the venue is reported unhealthy.
	UnhealthyAfter int
}

// Defaults fills zero fields with production values.
func (c *Config) Defaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.BackoffBase == 0 {
		c.BackoffBase = 500 * time.Millisecond
	}
	if c.BackoffMax == 0 {
		c.BackoffMax = 30 * time.Second
	}
	if c.RatePerSecond == 0 {
		c.RatePerSecond = 5
	}
	if c.UnhealthyAfter == 0 {
		c.UnhealthyAfter = 3
	}
}

// Poller wraps one venue source with retries and health state. A failed poll
// degrades the venue rather than aborting the caller's cycle; the caller
// receives domain.ErrVenueDown once all retries are exhausted.
type Poller struct {
	source  Source
	cfg     Config
	limiter *rate.Limiter
	logger  *slog.Logger

	mu     sync.Mutex
	status domain.VenueStatus
}

// New creates a Poller around the given source.
func New(source Source, cfg Config, logger *slog.Logger) *Poller {
	cfg.Defaults()
	return &Poller{
		source:  source,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSecond), 1),
		logger: logger.With(
			slog.String("component", "poller"),
			slog.String("venue", string(source.Venue())),
		),
		status: domain.VenueStatus{
			Venue:   source.Venue(),
			Healthy: true,
		},
	}
}

// Venue returns the polled venue.
func (p *Poller) Venue() domain.Venue {
	return p.source.Venue()
}

// Status returns a copy of the current health state.
func (p *Poller) Status() domain.VenueStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Poll fetches one snapshot, retrying transient failures with exponential
// backoff. On exhaustion it records the failure and returns
// domain.ErrVenueDown wrapped around the last error.
func (p *Poller) Poll(ctx context.Context) ([]domain.Listing, error) {
	var lastErr error

	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := p.cfg.BackoffBase << (attempt - 1)
			if backoff > p.cfg.BackoffMax {
				backoff = p.cfg.BackoffMax
			}
			p.logger.WarnContext(ctx, "poll retry",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff),
				slog.String("error", lastErr.Error()),
			)
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, fmt.Errorf("poller %s: %w", p.Venue(), ctx.Err())
			case <-timer.C:
			}
		}

		if err := p.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("poller %s: rate wait: %w", p.Venue(), err)
		}

		listings, err := p.source.Listings(ctx)
		if err == nil {
			p.recordSuccess()
			p.logger.DebugContext(ctx, "poll complete", slog.Int("listings", len(listings)))
			return listings, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("poller %s: %w", p.Venue(), err)
		}
		lastErr = err
	}

	p.recordFailure()
	return nil, fmt.Errorf("poller %s: %w: %w", p.Venue(), domain.ErrVenueDown, lastErr)
}

func (p *Poller) recordSuccess() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.ConsecutiveFailures = 0
	p.status.LastSuccess = time.Now().UTC()
	p.status.Healthy = true
}

func (p *Poller) recordFailure() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.status.ConsecutiveFailures++
	if p.status.ConsecutiveFailures >= p.cfg.UnhealthyAfter {
		p.status.Healthy = false
	}
}
