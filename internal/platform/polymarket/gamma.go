// Package polymarket is the read-only market data client for the Polymarket
// Gamma API.
package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oddslab/arbscan/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, which
// provides market discovery, metadata, and prices.
type GammaClient struct {
	baseURL    string
	pageLimit  int
	maxMarkets int
	httpClient *http.Client
}

// Option configures a GammaClient.
type Option func(*GammaClient)

// WithPageLimit sets the page size for market pagination.
func WithPageLimit(n int) Option {
	return func(g *GammaClient) {
		if n > 0 {
			g.pageLimit = n
		}
	}
}

// WithMaxMarkets caps the total number of markets fetched per snapshot; zero
// means no cap.
func WithMaxMarkets(n int) Option {
	return func(g *GammaClient) { g.maxMarkets = n }
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string, opts ...Option) *GammaClient {
	g := &GammaClient{
		baseURL:   baseURL,
		pageLimit: 200,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Venue implements the venue snapshot source identity.
func (g *GammaClient) Venue() domain.Venue { return domain.VenuePolymarket }

// Listings fetches a full snapshot of active binary markets and maps them to
// engine listings. Non-binary markets and markets with undecodable prices are
// dropped.
func (g *GammaClient) Listings(ctx context.Context) ([]domain.Listing, error) {
	var listings []domain.Listing
	offset := 0

	for {
		markets, err := g.GetMarkets(ctx, g.pageLimit, offset)
		if err != nil {
			return nil, err
		}
		if len(markets) == 0 {
			return listings, nil
		}

		for i := range markets {
			l, ok := toListing(&markets[i])
			if !ok {
				continue
			}
			listings = append(listings, l)
			if g.maxMarkets > 0 && len(listings) >= g.maxMarkets {
				return listings, nil
			}
		}

		if len(markets) < g.pageLimit {
			return listings, nil
		}
		offset += len(markets)
	}
}

// GetMarkets returns a paginated list of markets.
func (g *GammaClient) GetMarkets(ctx context.Context, limit, offset int) ([]APIMarket, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))
	params.Set("active", "true")
	params.Set("closed", "false")

	path := "/markets?" + params.Encode()

	body, err := g.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: get markets: %w", err)
	}

	var apiMarkets []APIMarket
	if err := json.Unmarshal(body, &apiMarkets); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode markets: %w", err)
	}

	return apiMarkets, nil
}

// GetMarket returns a single market by its ID.
func (g *GammaClient) GetMarket(ctx context.Context, id string) (APIMarket, error) {
	path := fmt.Sprintf("/markets/%s", url.PathEscape(id))

	body, err := g.doGet(ctx, path)
	if err != nil {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: get market %s: %w", id, err)
	}

	var apiMarket APIMarket
	if err := json.Unmarshal(body, &apiMarket); err != nil {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: decode market: %w", err)
	}

	return apiMarket, nil
}

// GetEvents returns a paginated list of events from the Gamma API.
func (g *GammaClient) GetEvents(ctx context.Context, limit, offset int) ([]APIEvent, error) {
	params := url.Values{}
	params.Set("limit", strconv.Itoa(limit))
	params.Set("offset", strconv.Itoa(offset))

	path := "/events?" + params.Encode()

	body, err := g.doGet(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("polymarket/gamma: get events: %w", err)
	}

	var events []APIEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("polymarket/gamma: decode events: %w", err)
	}

	return events, nil
}

// toListing maps a binary Gamma market to an engine listing. The listing
// price is the YES outcome price.
func toListing(m *APIMarket) (domain.Listing, bool) {
	if m.Closed || !bool(m.ActiveFromAPI) || m.ID == "" {
		return domain.Listing{}, false
	}

	outcomes := m.outcomes()
	prices := m.outcomePrices()
	if len(outcomes) != 2 || len(prices) != 2 {
		return domain.Listing{}, false
	}

	yesIdx := -1
	for i, o := range outcomes {
		if strings.EqualFold(o, "Yes") {
			yesIdx = i
			break
		}
	}
	if yesIdx < 0 {
		return domain.Listing{}, false
	}

	price, err := strconv.ParseFloat(prices[yesIdx], 64)
	if err != nil || price < 0 || price > 1 {
		return domain.Listing{}, false
	}

	l := domain.Listing{
		Venue:       domain.VenuePolymarket,
		ID:          m.ID,
		Description: m.Question,
		Price:       price,
		URL:         "https://polymarket.com/event/" + url.PathEscape(m.Slug),
	}
	if tokens := m.clobTokenIDs(); len(tokens) == len(outcomes) {
		l.FeedID = tokens[yesIdx]
	}
	if t, err := time.Parse(time.RFC3339, m.EndDateISO); err == nil {
		l.CloseTime = &t
	}
	return l, true
}

// --------------------------------------------------------------------------
// Internal helpers
// --------------------------------------------------------------------------

// doGet sends an unauthenticated GET request to the Gamma API.
func (g *GammaClient) doGet(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return nil, err
	}

	return body, nil
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}

	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, msg)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, msg)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, msg)
	}
}
