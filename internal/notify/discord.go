package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/oddslab/arbscan/internal/domain"
)

// Discord embed colors by alert level.
const (
	discordGreen  = 0x2ecc71
	discordYellow = 0xf1c40f
)

// DiscordSender delivers alerts via a Discord webhook as rich embeds.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL. It uses
// a default HTTP client with a 10-second timeout.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

type discordEmbed struct {
	Title     string         `json:"title"`
	Color     int            `json:"color"`
	Fields    []discordField `json:"fields"`
	Timestamp string         `json:"timestamp"`
}

// Send posts the alert as a webhook embed. Discord returns 204 No Content on
// success.
func (d *DiscordSender) Send(ctx context.Context, alert Alert) error {
	r := alert.Result

	color := discordGreen
	if alert.Level == domain.AlertWarn {
		color = discordYellow
	}

	embed := discordEmbed{
		Title:     alert.Title(),
		Color:     color,
		Timestamp: r.DetectedAt.Format(time.RFC3339),
		Fields: []discordField{
			{Name: string(r.Match.A.Venue), Value: fmt.Sprintf("%s\n@ %.2f", r.Match.A.Description, r.Match.A.Price)},
			{Name: string(r.Match.B.Venue), Value: fmt.Sprintf("%s\n@ %.2f", r.Match.B.Description, r.Match.B.Price)},
			{Name: "Grade", Value: string(r.Match.Grade), Inline: true},
			{Name: "Similarity", Value: fmt.Sprintf("%.3f", r.Match.Similarity), Inline: true},
			{Name: "Direction", Value: string(r.Direction), Inline: true},
			{Name: "Gross", Value: fmt.Sprintf("%.2f%%", r.GrossSpreadPct), Inline: true},
			{Name: "Fees", Value: fmt.Sprintf("$%.2f", r.Fees.TotalUSD), Inline: true},
			{Name: "Net", Value: fmt.Sprintf("%.2f%%", r.NetProfitPct), Inline: true},
		},
	}

	payload := map[string]any{
		"embeds": []discordEmbed{embed},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}
