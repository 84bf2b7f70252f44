package notify

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/olekukonko/tablewriter"
)

// ConsoleSender renders alerts as tables on a local writer, including a
// projected profit row per configured capital tier.
type ConsoleSender struct {
	mu    sync.Mutex
	out   io.Writer
	tiers []float64
}

// NewConsoleSender creates a ConsoleSender writing to out. tiers lists the
// capital sizes (USD) for the projected profit table.
func NewConsoleSender(out io.Writer, tiers []float64) *ConsoleSender {
	return &ConsoleSender{out: out, tiers: tiers}
}

// Send renders the alert. The context is unused; console output never blocks
// on the network.
func (c *ConsoleSender) Send(_ context.Context, alert Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	r := alert.Result

	fmt.Fprintf(c.out, "\n[%s] %s\n", r.DetectedAt.Format("15:04:05"), alert.Title())

	table := tablewriter.NewWriter(c.out)
	table.Header("Venue", "Price", "Market")
	table.Append(string(r.Match.A.Venue), fmt.Sprintf("%.2f", r.Match.A.Price), truncate(r.Match.A.Description, 60))
	table.Append(string(r.Match.B.Venue), fmt.Sprintf("%.2f", r.Match.B.Price), truncate(r.Match.B.Description, 60))
	table.Render()

	fmt.Fprintf(c.out, "  grade %s | similarity %.3f | direction %s | gross %.2f%% | fees $%.2f | net %.2f%%\n",
		r.Match.Grade, r.Match.Similarity, r.Direction, r.GrossSpreadPct, r.Fees.TotalUSD, r.NetProfitPct)

	if len(c.tiers) > 0 {
		tiers := tablewriter.NewWriter(c.out)
		tiers.Header("Capital", "Projected profit")
		for _, capital := range c.tiers {
			tiers.Append(
				fmt.Sprintf("$%.0f", capital),
				fmt.Sprintf("$%.2f", capital*r.NetProfitPct/100),
			)
		}
		tiers.Render()
	}

	return nil
}

// Name returns the sender identifier.
func (c *ConsoleSender) Name() string {
	return "console"
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n-1] + "…"
}
