package domain

import "time"

// Direction identifies the trade shape of an arbitrage result.
type Direction string

const (
	// DirectionAToB buys listing A's venue and sells the equivalent on B's.
	DirectionAToB Direction = "a_to_b"
	// DirectionBToA buys listing B's venue and sells the equivalent on A's.
	DirectionBToA Direction = "b_to_a"
	// DirectionInverse buys both sides of an inverse pair; exactly one side
	// resolves true, so the payout is fixed at 1.0 per contract pair.
	DirectionInverse Direction = "inverse"
)

// FeeBreakdown itemizes the conservative fee estimate applied to a trade.
// Percentage legs always use the higher of the venue's maker/taker fee, and
// variable costs carry the configured volatility buffer.
type FeeBreakdown struct {
	VenueAFeeUSD float64
	VenueBFeeUSD float64
	TotalUSD     float64
}

// ArbitrageResult is the output of the fee-aware calculator for one matched
// pair. It is pure and derived; the engine recomputes it every cycle and never
// diffs it against a prior value.
type ArbitrageResult struct {
	ID              string
	Match           EventMatch
	Direction       Direction
	GrossSpreadPct  float64
	NetProfitPct    float64
	RequiredCapital float64
	Fees            FeeBreakdown
	IsProfitable    bool
	// Monitor marks a near-miss: profit below the alert threshold but within
	// the configured margin of it. Monitor results are tracked for price
	// drift, never notified.
	Monitor    bool
	DetectedAt time.Time
}

// ReasonCode identifies the pipeline layer that terminated a candidate.
type ReasonCode string

const (
	RejectSimilarity ReasonCode = "REJECT_SIMILARITY"
	RejectDate       ReasonCode = "REJECT_DATE"
	RejectPrice      ReasonCode = "REJECT_PRICE"
	RejectSpread     ReasonCode = "REJECT_SPREAD"
	RejectFees       ReasonCode = "REJECT_FEES"
	RejectInverse    ReasonCode = "REJECT_INVERSE"
	RejectSanity     ReasonCode = "REJECT_SANITY"
)

// RejectionRecord is emitted whenever a candidate fails a pipeline layer. It
// is a data value, never an error return; rejections feed calibration and
// logging only and are never routed to notification.
type RejectionRecord struct {
	ListingAID string
	ListingBID string
	Reason     ReasonCode
	// Similarity is 0 when the pair was rejected before semantic scoring.
	Similarity float64
	Note       string
	At         time.Time
}

// AlertLevel drives how an accepted result is routed to notification.
type AlertLevel int

const (
	AlertNone AlertLevel = iota
	// AlertLogOnly results are persisted and logged but never notified.
	AlertLogOnly
	// AlertWarn results are notified with a reduced-confidence warning.
	AlertWarn
	// AlertFull results are eligible for automatic notification.
	AlertFull
)

// HistoricalStats summarizes persisted opportunity history.
type HistoricalStats struct {
	TotalOpportunities int64
	TotalProfitPct     float64
	AverageProfitPct   float64
	LastDetectedAt     *time.Time
}
