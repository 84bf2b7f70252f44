// Package notify delivers opportunity alerts to one or more channels.
// Alerts are dispatched to all registered senders (Discord, Telegram,
// console); a single channel failure never blocks the others.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/oddslab/arbscan/internal/domain"
)

// Alert is one notification unit: an accepted arbitrage result plus the
// routing level the engine assigned to it.
type Alert struct {
	Level  domain.AlertLevel
	Result domain.ArbitrageResult
}

// Title renders the headline used by text-based channels.
func (a Alert) Title() string {
	prefix := "Arbitrage opportunity"
	if a.Level == domain.AlertWarn {
		prefix = "Arbitrage opportunity (reduced confidence)"
	}
	return fmt.Sprintf("%s: %.2f%% net", prefix, a.Result.NetProfitPct)
}

// Body renders the plain-text message shared by Discord and Telegram.
func (a Alert) Body() string {
	r := a.Result
	var b strings.Builder
	fmt.Fprintf(&b, "%s @ %.2f\n  %s\n", r.Match.A.Venue, r.Match.A.Price, r.Match.A.Description)
	fmt.Fprintf(&b, "%s @ %.2f\n  %s\n", r.Match.B.Venue, r.Match.B.Price, r.Match.B.Description)
	fmt.Fprintf(&b, "grade %s, similarity %.3f, direction %s\n", r.Match.Grade, r.Match.Similarity, r.Direction)
	fmt.Fprintf(&b, "gross %.2f%%, fees $%.2f, net %.2f%% on $%.0f",
		r.GrossSpreadPct, r.Fees.TotalUSD, r.NetProfitPct, r.RequiredCapital)
	return b.String()
}

// Sender is the interface each notification channel implements.
type Sender interface {
	Send(ctx context.Context, alert Alert) error
	// Name returns a human-readable identifier for the sender (e.g. "discord").
	Name() string
}

// Notifier dispatches alerts to all registered senders. Log-only alerts are
// recorded locally and never leave the process.
type Notifier struct {
	senders []Sender
	logger  *slog.Logger
}

// NewNotifier creates a Notifier that delivers to the given senders.
func NewNotifier(senders []Sender, logger *slog.Logger) *Notifier {
	return &Notifier{
		senders: senders,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// Notify routes one alert. Levels below AlertWarn are logged and dropped;
// everything else fans out to every sender.
func (n *Notifier) Notify(ctx context.Context, alert Alert) error {
	if alert.Level < domain.AlertWarn {
		n.logger.InfoContext(ctx, "opportunity logged without notification",
			slog.String("id", alert.Result.ID),
			slog.Float64("net_pct", alert.Result.NetProfitPct),
		)
		return nil
	}
	return n.dispatch(ctx, alert)
}

// dispatch iterates over all senders. Errors from individual senders are
// collected and returned as a combined error.
func (n *Notifier) dispatch(ctx context.Context, alert Alert) error {
	if len(n.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range n.senders {
		if err := s.Send(ctx, alert); err != nil {
			n.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			n.logger.DebugContext(ctx, "alert sent",
				slog.String("sender", s.Name()),
				slog.String("id", alert.Result.ID),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
