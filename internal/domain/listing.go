package domain

import "time"

// Venue identifies an independent market operator whose prices are quoted
// independently of every other venue.
type Venue string

const (
	VenueKalshi     Venue = "kalshi"
	VenuePolymarket Venue = "polymarket"
)

// Listing is one binary-outcome market instance on one venue. Price is the
// YES price and must already be coerced into [0,1] by the venue client;
// listings that cannot be coerced are dropped at the client boundary and
// never enter the engine.
type Listing struct {
	Venue       Venue
	ID          string
	Description string
	Price       float64
	URL         string
	CloseTime   *time.Time
	// FeedID is the venue-specific streaming identifier for this listing,
	// empty when the venue exposes none. It never participates in matching.
	FeedID string
}

// Valid reports whether the listing carries the minimum field set the engine
// requires. Invalid listings are dropped from the candidate set for the
// cycle; they are never fatal.
func (l Listing) Valid() bool {
	return l.ID != "" && l.Description != "" && l.Price >= 0 && l.Price <= 1
}

// VenueStatus is the health of a venue poller, tracked across poll attempts.
type VenueStatus struct {
	Venue               Venue
	ConsecutiveFailures int
	LastSuccess         time.Time
	Healthy             bool
}
