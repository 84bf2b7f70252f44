package kalshi

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oddslab/arbscan/internal/domain"
)

func marketsPage(markets []Market, cursor string) []byte {
	b, _ := json.Marshal(map[string]any{
		"markets": markets,
		"cursor":  cursor,
	})
	return b
}

func TestListingsPaginatesUntilEmptyCursor(t *testing.T) {
	pageOne := []Market{
		{Ticker: "SEN-GA-R", EventTicker: "SEN-GA", Title: "Republican wins Georgia Senate race", Status: "open", YesBid: 40, YesAsk: 44},
	}
	pageTwo := []Market{
		{Ticker: "PRES-24", EventTicker: "PRES", Title: "Presidential winner", Status: "open", LastPrice: 52},
	}

	var cursors []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cursor := r.URL.Query().Get("cursor")
		cursors = append(cursors, cursor)
		if cursor == "" {
			w.Write(marketsPage(pageOne, "next-1"))
			return
		}
		w.Write(marketsPage(pageTwo, ""))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	listings, err := c.Listings(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 2)

	assert.Equal(t, []string{"", "next-1"}, cursors)
	assert.Equal(t, domain.VenueKalshi, listings[0].Venue)
	assert.Equal(t, "SEN-GA-R", listings[0].ID)
	assert.InDelta(t, 0.42, listings[0].Price, 1e-9) // bid/ask midpoint in dollars
	assert.InDelta(t, 0.52, listings[1].Price, 1e-9) // last trade fallback
	assert.Equal(t, "SEN-GA-R", listings[0].FeedID)
}

func TestListingsDropsUnusableMarkets(t *testing.T) {
	markets := []Market{
		{Ticker: "CLOSED", Title: "Settled market", Status: "settled", YesBid: 40, YesAsk: 44},
		{Ticker: "NO-QUOTE", Title: "No book, no last trade", Status: "open"},
		{Ticker: "GOOD", Title: "Live market", Status: "open", YesBid: 10, YesAsk: 12},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(marketsPage(markets, ""))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	listings, err := c.Listings(context.Background())
	require.NoError(t, err)
	require.Len(t, listings, 1)
	assert.Equal(t, "GOOD", listings[0].ID)
}

func TestListingsHonorsMaxMarkets(t *testing.T) {
	markets := []Market{
		{Ticker: "A", Title: "a", Status: "open", LastPrice: 50},
		{Ticker: "B", Title: "b", Status: "open", LastPrice: 50},
		{Ticker: "C", Title: "c", Status: "open", LastPrice: 50},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(marketsPage(markets, "more"))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", WithMaxMarkets(2))
	listings, err := c.Listings(context.Background())
	require.NoError(t, err)
	assert.Len(t, listings, 2)
}

func TestGetMarketsRateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"code":"rate_limited","message":"slow down"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, _, err := c.GetMarkets(context.Background(), 10, "")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRateLimited)
}

func TestGetMarketNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"code":"not_found","message":"no such market"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, err := c.GetMarket(context.Background(), "NOPE")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestSignedRequestCarriesAuthHeaders(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 1024)
	require.NoError(t, err)
	der, err := x509.MarshalPKCS8PrivateKey(key)
	require.NoError(t, err)
	pemKey := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})

	var gotKey, gotSig, gotTS string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("KALSHI-ACCESS-KEY")
		gotSig = r.Header.Get("KALSHI-ACCESS-SIGNATURE")
		gotTS = r.Header.Get("KALSHI-ACCESS-TIMESTAMP")
		w.Write(marketsPage(nil, ""))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "key-id-1")
	require.NoError(t, c.SetRSAPrivateKey(pemKey))

	_, _, err = c.GetMarkets(context.Background(), 10, "")
	require.NoError(t, err)

	assert.Equal(t, "key-id-1", gotKey)
	assert.NotEmpty(t, gotSig)
	assert.NotEmpty(t, gotTS)
}

func TestUnauthenticatedRequestOmitsAuthHeaders(t *testing.T) {
	var gotSig string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSig = r.Header.Get("KALSHI-ACCESS-SIGNATURE")
		w.Write(marketsPage(nil, ""))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "")
	_, _, err := c.GetMarkets(context.Background(), 10, "")
	require.NoError(t, err)
	assert.Empty(t, gotSig)
}

func TestSetRSAPrivateKeyRejectsGarbage(t *testing.T) {
	c := NewClient("http://unused", "")
	err := c.SetRSAPrivateKey([]byte("not a pem key"))
	require.Error(t, err)
}
