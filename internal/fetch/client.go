// Package fetch implements the retrying HTTP client shared by every
// pipeline stage. A single GET is executed through a Colly collector;
// around it sit connectivity pre-checks, exponential backoff and a
// randomized politeness delay.
package fetch

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/helvetic-data/healthdir-crawler/internal/metrics"
)

// Result is the outcome of one successful fetch. FinalURL reflects any
// redirects the origin applied.
type Result struct {
	Body       []byte
	FinalURL   string
	StatusCode int
}

// Config controls client behavior.
type Config struct {
	UserAgent      string
	AcceptLanguage string
	Timeout        time.Duration
	MaxRetries     int
	RetryDelay     time.Duration
	MinDelay       time.Duration
	MaxDelay       time.Duration
	ProbeAddr      string
	OutageCeiling  time.Duration
	OutagePoll     time.Duration
}

// Client fetches pages with bounded retries. Exhausting the retry budget
// yields an error callers treat as "unit unavailable this run", never as
// a reason to stop the whole crawl.
type Client struct {
	cfg     Config
	base    *colly.Collector
	checker ConnectivityChecker
	pause   func(ctx context.Context, d time.Duration) bool
	logger  *zap.Logger
}

// NewClient builds a Client from cfg.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.OutagePoll <= 0 {
		cfg.OutagePoll = 10 * time.Second
	}
	if cfg.OutageCeiling <= 0 {
		cfg.OutageCeiling = 2 * time.Minute
	}
	base := colly.NewCollector()
	base.IgnoreRobotsTxt = true
	base.AllowURLRevisit = true
	if cfg.UserAgent != "" {
		base.UserAgent = cfg.UserAgent
	}
	return &Client{
		cfg:     cfg,
		base:    base,
		checker: NewDialChecker(cfg.ProbeAddr),
		pause:   timerPause,
		logger:  logger,
	}
}

// Fetch executes a GET against url, retrying transport errors, timeouts
// and non-2xx statuses with exponential backoff. Every attempt is
// preceded by a randomized jitter delay drawn from [MinDelay, MaxDelay].
func (c *Client) Fetch(ctx context.Context, url string) (Result, error) {
	if !c.ensureOnline(ctx) {
		return Result{}, fmt.Errorf("fetch %s: no connectivity", url)
	}

	var lastErr error
	for attempt := 0; attempt < c.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			metrics.ObserveRetry()
			backoff := c.cfg.RetryDelay * (1 << (attempt - 1))
			c.logger.Info("backing off before retry",
				zap.String("url", url),
				zap.Int("attempt", attempt+1),
				zap.Duration("backoff", backoff),
			)
			if !c.pause(ctx, backoff) {
				return Result{}, fmt.Errorf("fetch %s: %w", url, ctx.Err())
			}
			if !c.checker.Online() {
				if err := c.awaitConnectivity(ctx); err != nil {
					return Result{}, fmt.Errorf("fetch %s: %w", url, err)
				}
			}
		}
		if !c.pause(ctx, c.jitter()) {
			return Result{}, fmt.Errorf("fetch %s: %w", url, ctx.Err())
		}

		res, err := c.get(ctx, url)
		if err == nil {
			metrics.ObserveFetch("ok")
			return res, nil
		}
		metrics.ObserveFetch("error")
		lastErr = err
		c.logger.Warn("fetch attempt failed",
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}
	return Result{}, fmt.Errorf("fetch %s after %d attempts: %w", url, c.cfg.MaxRetries, lastErr)
}

// ensureOnline verifies connectivity before the first attempt; on failure
// it waits one retry delay and re-checks once.
func (c *Client) ensureOnline(ctx context.Context) bool {
	if c.checker.Online() {
		return true
	}
	c.logger.Warn("no connectivity detected, waiting before re-check")
	if !c.pause(ctx, c.cfg.RetryDelay) {
		return false
	}
	return c.checker.Online()
}

// awaitConnectivity polls until the network returns or the outage ceiling
// elapses; retries resume either way. Only context cancellation aborts.
func (c *Client) awaitConnectivity(ctx context.Context) error {
	deadline := time.Now().Add(c.cfg.OutageCeiling)
	for time.Now().Before(deadline) {
		if !c.pause(ctx, c.cfg.OutagePoll) {
			return ctx.Err()
		}
		if c.checker.Online() {
			c.logger.Info("connectivity restored")
			return nil
		}
	}
	c.logger.Warn("connectivity still down after outage ceiling, resuming retries")
	return nil
}

func (c *Client) jitter() time.Duration {
	if c.cfg.MaxDelay <= c.cfg.MinDelay {
		return c.cfg.MinDelay
	}
	return c.cfg.MinDelay + time.Duration(rand.Int63n(int64(c.cfg.MaxDelay-c.cfg.MinDelay)))
}

func (c *Client) get(ctx context.Context, url string) (Result, error) {
	var (
		result   Result
		fetchErr error
	)

	collector := c.base.Clone()
	collector.SetRequestTimeout(c.cfg.Timeout)
	collector.OnRequest(func(r *colly.Request) {
		if c.cfg.AcceptLanguage != "" {
			r.Headers.Set("Accept-Language", c.cfg.AcceptLanguage)
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		result = Result{
			Body:       append([]byte(nil), r.Body...),
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return Result{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return Result{}, fmt.Errorf("visit %s: %w", url, err)
		}
		if fetchErr != nil {
			return Result{}, fmt.Errorf("response %s: %w", url, fetchErr)
		}
		return result, nil
	}
}

// timerPause blocks for d, honoring context cancellation. It reports
// whether the full pause elapsed.
func timerPause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
