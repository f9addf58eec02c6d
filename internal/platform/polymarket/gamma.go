package polymarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/alanyoungcy/updownbot/internal/domain"
)

// GammaClient is the REST client for the Polymarket Gamma API, used for
// market discovery and metadata.
type GammaClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewGammaClient creates a new Gamma API client.
//
// baseURL is the Gamma API root, e.g. "https://gamma-api.polymarket.com".
func NewGammaClient(baseURL string) *GammaClient {
	return &GammaClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// GetEventBySlug returns an event and its nested markets by URL slug.
func (g *GammaClient) GetEventBySlug(ctx context.Context, slug string) (APIEvent, error) {
	path := "/events/slug/" + url.PathEscape(slug)

	body, err := g.doGet(ctx, path)
	if err != nil {
		return APIEvent{}, fmt.Errorf("polymarket/gamma: get event %s: %w", slug, err)
	}

	var event APIEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return APIEvent{}, fmt.Errorf("polymarket/gamma: decode event: %w", err)
	}

	return event, nil
}

// GetMarket returns a single market by its numeric ID.
func (g *GammaClient) GetMarket(ctx context.Context, id string) (APIMarket, error) {
	path := "/markets/" + url.PathEscape(id)

	body, err := g.doGet(ctx, path)
	if err != nil {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: get market %s: %w", id, err)
	}

	var market APIMarket
	if err := json.Unmarshal(body, &market); err != nil {
		return APIMarket{}, fmt.Errorf("polymarket/gamma: decode market: %w", err)
	}

	return market, nil
}

// ResolveUpDown resolves an up/down market slug into its tradeable token
// pair. The event must carry at least one market whose clobTokenIds
// field decodes to exactly two asset IDs; by Polymarket convention the
// first backs Up and the second backs Down.
func (g *GammaClient) ResolveUpDown(ctx context.Context, slug string) (domain.Market, error) {
	event, err := g.GetEventBySlug(ctx, slug)
	if err != nil {
		return domain.Market{}, fmt.Errorf("%w: %s: %w", domain.ErrResolution, slug, err)
	}
	if len(event.Markets) == 0 {
		return domain.Market{}, fmt.Errorf("%w: %s: event has no markets", domain.ErrResolution, slug)
	}

	for _, m := range event.Markets {
		// The event listing often omits token IDs; refetch by ID.
		market, err := g.GetMarket(ctx, m.ID)
		if err != nil {
			return domain.Market{}, fmt.Errorf("%w: %s: %w", domain.ErrResolution, slug, err)
		}
		if len(market.ClobTokenIDs) != 2 {
			continue
		}

		return domain.Market{
			ID:          market.ID,
			Slug:        slug,
			Title:       event.Title,
			ConditionID: market.ConditionID,
			UpTokenID:   market.ClobTokenIDs[0],
			DownTokenID: market.ClobTokenIDs[1],
		}, nil
	}

	return domain.Market{}, fmt.Errorf("%w: %s: no market with a two-token pair", domain.ErrResolution, slug)
}

// doGet performs a GET request against the Gamma API and returns the
// raw response body.
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
