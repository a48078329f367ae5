// Package market talks to the Polymarket data APIs and selects topics for
// the show.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"tickertalk/internal/domain"
)

const (
	// DefaultGammaBaseURL is the market listing API.
	DefaultGammaBaseURL = "https://gamma-api.polymarket.com"

	// DefaultClobBaseURL serves live midpoint prices.
	DefaultClobBaseURL = "https://clob.polymarket.com"

	// DefaultCacheTTL is how long a trending fetch stays fresh.
	DefaultCacheTTL = 30 * time.Second

	// DefaultMinInterval is the floor between upstream calls. Together with
	// the TTL it keeps usage well inside the ~1000 req/hour budget.
	DefaultMinInterval = 4 * time.Second
)

// Client fetches topics from the Gamma API with a TTL cache and a minimum
// call interval. A stale cache is preferred over exceeding the rate budget.
type Client struct {
	gammaBase   string
	clobBase    string
	httpClient  *http.Client
	ttl         time.Duration
	minInterval time.Duration
	logger      *slog.Logger

	mu        sync.Mutex
	cached    []domain.Topic
	fetchedAt time.Time
	lastCall  time.Time
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithBaseURLs overrides the API endpoints (tests, proxies).
func WithBaseURLs(gamma, clob string) ClientOption {
	return func(c *Client) {
		if gamma != "" {
			c.gammaBase = gamma
		}
		if clob != "" {
			c.clobBase = clob
		}
	}
}

// WithCachePolicy overrides the cache TTL and minimum call interval.
func WithCachePolicy(ttl, minInterval time.Duration) ClientOption {
	return func(c *Client) {
		c.ttl = ttl
		c.minInterval = minInterval
	}
}

// NewClient creates a market data client.
func NewClient(logger *slog.Logger, opts ...ClientOption) *Client {
	c := &Client{
		gammaBase:   DefaultGammaBaseURL,
		clobBase:    DefaultClobBaseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
		ttl:         DefaultCacheTTL,
		minInterval: DefaultMinInterval,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// gammaMarket mirrors the Gamma API wire format. The outcome fields arrive
// as JSON-encoded strings inside the JSON document.
type gammaMarket struct {
	ID            string  `json:"id"`
	Question      string  `json:"question"`
	Slug          string  `json:"slug"`
	Description   string  `json:"description"`
	Category      string  `json:"category"`
	Outcomes      string  `json:"outcomes"`
	OutcomePrices string  `json:"outcomePrices"`
	Volume24h     float64 `json:"volume24hr"`
	Liquidity     float64 `json:"liquidityNum"`
	EndDate       string  `json:"endDate"`
	ClobTokenIDs  string  `json:"clobTokenIds"`
}

// TrendingTopics returns open topics ordered by 24h volume descending.
// Results are cached; a throttled call returns the cached ranking even if
// stale rather than hammering the provider.
func (c *Client) TrendingTopics(ctx context.Context, limit int) ([]domain.Topic, error) {
	c.mu.Lock()
	now := time.Now()
	if len(c.cached) >= limit && now.Sub(c.fetchedAt) < c.ttl {
		topics := c.cached[:limit:limit]
		c.mu.Unlock()
		return topics, nil
	}
	if len(c.cached) > 0 && now.Sub(c.lastCall) < c.minInterval {
		c.logger.Debug("market fetch throttled, serving cached ranking", "age", now.Sub(c.fetchedAt))
		topics := c.cached
		c.mu.Unlock()
		return topics, nil
	}
	c.lastCall = now
	c.mu.Unlock()

	fetchLimit := limit
	if fetchLimit < 20 {
		fetchLimit = 20
	}

	topics, err := c.fetchTrending(ctx, fetchLimit)
	if err != nil {
		c.mu.Lock()
		cached := c.cached
		c.mu.Unlock()
		if len(cached) > 0 {
			c.logger.Warn("market fetch failed, reusing cached ranking", "error", err)
			return cached, nil
		}
		return nil, err
	}

	c.mu.Lock()
	c.cached = topics
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	if limit < len(topics) {
		return topics[:limit:limit], nil
	}
	return topics, nil
}

func (c *Client) fetchTrending(ctx context.Context, limit int) ([]domain.Topic, error) {
	q := url.Values{
		"closed":    {"false"},
		"active":    {"true"},
		"order":     {"volume24hr"},
		"ascending": {"false"},
		"limit":     {strconv.Itoa(limit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.gammaBase+"/markets?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build markets request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch markets: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch markets: unexpected status %d", resp.StatusCode)
	}

	var raw []gammaMarket
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode markets: %w", err)
	}

	topics := make([]domain.Topic, 0, len(raw))
	for _, m := range raw {
		topic, err := m.toTopic()
		if err != nil {
			c.logger.Debug("skipping malformed market", "id", m.ID, "error", err)
			continue
		}
		topics = append(topics, topic)
	}

	return topics, nil
}

func (m gammaMarket) toTopic() (domain.Topic, error) {
	var labels []string
	if m.Outcomes != "" {
		if err := json.Unmarshal([]byte(m.Outcomes), &labels); err != nil {
			return domain.Topic{}, fmt.Errorf("parse outcomes: %w", err)
		}
	}

	var priceStrs []string
	if m.OutcomePrices != "" {
		if err := json.Unmarshal([]byte(m.OutcomePrices), &priceStrs); err != nil {
			return domain.Topic{}, fmt.Errorf("parse outcome prices: %w", err)
		}
	}

	var tokenIDs []string
	if m.ClobTokenIDs != "" {
		if err := json.Unmarshal([]byte(m.ClobTokenIDs), &tokenIDs); err != nil {
			return domain.Topic{}, fmt.Errorf("parse token ids: %w", err)
		}
	}

	if len(labels) != len(priceStrs) || len(labels) == 0 {
		return domain.Topic{}, fmt.Errorf("outcome/price mismatch: %d vs %d", len(labels), len(priceStrs))
	}

	outcomes := make([]domain.Outcome, len(labels))
	for i, label := range labels {
		price, err := strconv.ParseFloat(priceStrs[i], 64)
		if err != nil {
			return domain.Topic{}, fmt.Errorf("parse price %q: %w", priceStrs[i], err)
		}
		outcomes[i] = domain.Outcome{Label: label, Price: price}
		if i < len(tokenIDs) {
			outcomes[i].TokenID = tokenIDs[i]
		}
	}

	topic := domain.Topic{
		ID:          m.ID,
		Question:    m.Question,
		Slug:        m.Slug,
		Description: m.Description,
		Category:    m.Category,
		Outcomes:    outcomes,
		Volume24h:   m.Volume24h,
		Liquidity:   m.Liquidity,
	}

	if m.EndDate != "" {
		if end, err := time.Parse(time.RFC3339, m.EndDate); err == nil {
			topic.EndDate = &end
		}
	}

	return topic, nil
}

// LivePrice returns the current midpoint price for an outcome token.
func (c *Client) LivePrice(ctx context.Context, tokenID string) (float64, error) {
	q := url.Values{"token_id": {tokenID}}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.clobBase+"/midpoint?"+q.Encode(), nil)
	if err != nil {
		return 0, fmt.Errorf("build midpoint request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("fetch midpoint: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("fetch midpoint: unexpected status %d", resp.StatusCode)
	}

	var body struct {
		Mid string `json:"mid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, fmt.Errorf("decode midpoint: %w", err)
	}

	mid, err := strconv.ParseFloat(body.Mid, 64)
	if err != nil {
		return 0, fmt.Errorf("parse midpoint %q: %w", body.Mid, err)
	}

	return mid, nil
}
