package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/casperlink/intent-engine/pkg/logger"
	"github.com/casperlink/intent-engine/pkg/metrics"
	"github.com/casperlink/intent-engine/pkg/models"
)

// ErrFeedUnavailable indicates the price fetch failed and no cached
// snapshot exists. Evaluation skips the affected tick and retries on the
// next one.
var ErrFeedUnavailable = errors.New("pricefeed: feed unavailable and no cached snapshot")

// Source supplies price snapshots to the lifecycle controller.
type Source interface {
	Snapshot(ctx context.Context) (*Snapshot, error)
}

// Client fetches prices from the aggregation endpoint with a TTL snapshot
// cache. On upstream failure it serves the last good snapshot if one exists.
type Client struct {
	endpoint   string
	httpClient *http.Client
	cache      *SnapshotCache
	logger     logger.Logger
}

var _ Source = (*Client)(nil)

// NewClient creates a feed client for endpoint with the given cache TTL.
func NewClient(endpoint string, cacheTTL time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = &logger.EmptyLogger{}
	}
	return &Client{
		endpoint:   endpoint,
		httpClient: createHTTPClient(),
		cache:      NewSnapshotCache(cacheTTL),
		logger:     log,
	}
}

// Snapshot returns the current price snapshot, served from cache while
// fresh.
func (c *Client) Snapshot(ctx context.Context) (*Snapshot, error) {
	if snap, ok := c.cache.Get(); ok {
		metrics.FeedCacheHits.Inc()
		return snap, nil
	}

	snap, err := c.fetch(ctx)
	if err != nil {
		metrics.FeedFetches.WithLabelValues("error").Inc()
		// Upstream failure or rate limit: serve the last good snapshot.
		if last, ok := c.cache.Last(); ok {
			c.logger.NoticeWith(logger.Feed, "Feed fetch failed (%v), serving snapshot from %s ago",
				err, last.Age().Round(time.Second))
			metrics.FeedStaleServes.Inc()
			return last, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}

	metrics.FeedFetches.WithLabelValues("success").Inc()
	c.cache.Set(snap)
	return snap, nil
}

// LastSnapshot exposes the most recent snapshot for health reporting.
func (c *Client) LastSnapshot() (*Snapshot, bool) {
	return c.cache.Last()
}

// fetch performs one GET against the aggregation endpoint.
func (c *Client) fetch(ctx context.Context) (*Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %v", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch prices: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read feed response: %v", err)
	}

	var feedResp models.PriceResponse
	if err := json.Unmarshal(bodyBytes, &feedResp); err != nil {
		return nil, fmt.Errorf("failed to decode feed response: %v", err)
	}
	if !feedResp.Success {
		return nil, fmt.Errorf("feed reported failure")
	}

	return snapshotFromQuotes(feedResp.Prices), nil
}

// snapshotFromQuotes indexes feed quotes by bare token symbol.
func snapshotFromQuotes(quotes []models.PriceData) *Snapshot {
	prices := make(map[string]float64, len(quotes))
	for _, q := range quotes {
		if q.Price <= 0 {
			continue
		}
		prices[BareSymbol(q.Symbol)] = q.Price
	}
	return &Snapshot{
		Prices:    prices,
		Quotes:    quotes,
		FetchedAt: time.Now(),
	}
}

// BareSymbol strips the quote-currency suffix from a feed symbol
// (CSPR_USD -> CSPR).
func BareSymbol(symbol string) string {
	return strings.TrimSuffix(symbol, "_USD")
}

// Helper function to create an HTTP client with timeouts
func createHTTPClient() *http.Client {
	return &http.Client{
		Timeout: 10 * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: 100,
			IdleConnTimeout:     90 * time.Second,
		},
	}
}
