package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
)

// wsDialTimeout bounds the websocket handshake.
const wsDialTimeout = 15 * time.Second

// priceUpdate is one decoded price change from the market channel.
type priceUpdate struct {
	AssetID string
	Price   float64
}

// wsConn is one connection to the Polymarket CLOB market channel. It
// subscribes to a fixed asset set at connect time; changing the set requires
// a reconnect.
type wsConn struct {
	conn *websocket.Conn
}

// marketMessage is the wire shape of market-channel events. price_change
// events carry per-level changes; last_trade_price events carry a single
// price.
type marketMessage struct {
	EventType string `json:"event_type"`
	AssetID   string `json:"asset_id"`
	Price     string `json:"price"`
	Changes   []struct {
		Price string `json:"price"`
		Side  string `json:"side"`
		Size  string `json:"size"`
	} `json:"changes"`
}

// dialMarketChannel connects and subscribes to the given asset IDs.
func dialMarketChannel(ctx context.Context, wsURL string, assetIDs []string) (*wsConn, error) {
	dialCtx, cancel := context.WithTimeout(ctx, wsDialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: dial %s: %w", wsURL, err)
	}

	sub := map[string]any{
		"type":       "market",
		"assets_ids": assetIDs,
	}
	if err := conn.WriteJSON(sub); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("feed: subscribe: %w", err)
	}

	return &wsConn{conn: conn}, nil
}

// readPrices blocks reading frames and forwards decoded price updates to out
// until the connection fails or ctx is cancelled.
func (c *wsConn) readPrices(ctx context.Context, out chan<- priceUpdate) error {
	// Unblock ReadMessage on cancellation.
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = c.conn.Close()
		case <-done:
		}
	}()

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("feed: read: %w", err)
		}

		for _, u := range decodePrices(data) {
			select {
			case out <- u:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// Close closes the underlying connection.
func (c *wsConn) Close() error {
	return c.conn.Close()
}

// decodePrices extracts price updates from one frame. The market channel
// delivers either a single event object or an array of them.
func decodePrices(data []byte) []priceUpdate {
	var msgs []marketMessage
	if err := json.Unmarshal(data, &msgs); err != nil {
		var single marketMessage
		if err := json.Unmarshal(data, &single); err != nil {
			return nil
		}
		msgs = []marketMessage{single}
	}

	var updates []priceUpdate
	for _, msg := range msgs {
		if msg.AssetID == "" {
			continue
		}
		switch msg.EventType {
		case "last_trade_price":
			if p, err := strconv.ParseFloat(msg.Price, 64); err == nil {
				updates = append(updates, priceUpdate{AssetID: msg.AssetID, Price: p})
			}
		case "price_change":
			// Use the last change in the batch as the freshest quote.
			for i := len(msg.Changes) - 1; i >= 0; i-- {
				if p, err := strconv.ParseFloat(msg.Changes[i].Price, 64); err == nil {
					updates = append(updates, priceUpdate{AssetID: msg.AssetID, Price: p})
					break
				}
			}
		}
	}
	return updates
}
