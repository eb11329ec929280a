// Package enrich resolves real practice websites for scraped providers
// whose listed website points back at a directory, and checks whether
// those sites mention physician referrals.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/helvetic-data/healthdir-crawler/internal/metrics"
)

// ErrRateLimited marks a search attempt the API refused for quota
// reasons. The client backs off and retries; other errors do not.
var ErrRateLimited = errors.New("search api rate limited")

const searchAttempts = 3

type searchResponse struct {
	OrganicResults []struct {
		Link string `json:"link"`
	} `json:"organic_results"`
}

// SearchClient asks a Google-backed search API for the top organic
// result of a query.
type SearchClient struct {
	client   *resty.Client
	endpoint string
	apiKey   string
	banned   []string
	logger   *zap.Logger

	// sleep is replaced in tests to skip real backoff waits.
	sleep func(ctx context.Context, d time.Duration) error
}

// NewSearchClient builds a client for the given endpoint and key.
// banned lists directory and aggregator domains whose results are
// never acceptable websites.
func NewSearchClient(endpoint, apiKey string, banned []string, logger *zap.Logger) *SearchClient {
	return &SearchClient{
		client:   resty.New().SetTimeout(30 * time.Second),
		endpoint: endpoint,
		apiKey:   apiKey,
		banned:   banned,
		logger:   logger,
		sleep:    sleepCtx,
	}
}

// TopResult returns the first organic result link for query, or "" when
// the search found nothing usable. Rate-limit responses are retried
// with a randomized, growing pause.
func (c *SearchClient) TopResult(ctx context.Context, query string) (string, error) {
	var lastErr error
	for attempt := 1; attempt <= searchAttempts; attempt++ {
		link, err := c.search(ctx, query)
		if err == nil {
			metrics.ObserveResolve("search_ok")
			return link, nil
		}
		lastErr = err
		if !errors.Is(err, ErrRateLimited) {
			metrics.ObserveResolve("search_error")
			return "", err
		}
		if attempt == searchAttempts {
			break
		}
		// 5-10s, scaled by attempt, mirrors how fast the quota
		// windows on the API reset.
		pause := time.Duration(float64(attempt)*(5+rand.Float64()*5)) * time.Second
		c.logger.Warn("search rate limited, backing off",
			zap.String("query", query),
			zap.Duration("pause", pause),
			zap.Int("attempt", attempt))
		if err := c.sleep(ctx, pause); err != nil {
			return "", err
		}
	}
	metrics.ObserveResolve("search_rate_limited")
	return "", fmt.Errorf("search %q: %w", query, lastErr)
}

func (c *SearchClient) search(ctx context.Context, query string) (string, error) {
	var body searchResponse
	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"engine":  "google",
			"q":       query,
			"api_key": c.apiKey,
			"num":     "1",
		}).
		SetResult(&body).
		Get(c.endpoint)
	if err != nil {
		return "", fmt.Errorf("search request: %w", err)
	}
	switch resp.StatusCode() {
	case 200:
	case 429, 403:
		return "", ErrRateLimited
	default:
		return "", fmt.Errorf("search api status %d", resp.StatusCode())
	}
	if len(body.OrganicResults) == 0 {
		return "", nil
	}
	link := body.OrganicResults[0].Link
	if c.IsBanned(link) {
		c.logger.Debug("top result is a banned domain", zap.String("link", link))
		return "", nil
	}
	return link, nil
}

// IsBanned reports whether rawURL points at a directory or aggregator
// domain rather than a provider's own site.
func (c *SearchClient) IsBanned(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return true
	}
	host := strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
	if host == "" {
		return true
	}
	for _, b := range c.banned {
		if host == b || strings.HasSuffix(host, "."+b) {
			return true
		}
	}
	return false
}

// Query builds the search query for a provider: the name, plus the city
// when the name does not already carry it.
func Query(name, city string) string {
	if city == "" || strings.Contains(strings.ToLower(name), strings.ToLower(city)) {
		return name
	}
	return name + " " + city
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
