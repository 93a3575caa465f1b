package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/aluiziolira/go-storefront-export/config"
	"github.com/gocolly/colly/v2"
)

// Fetcher retrieves the body of a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Client issues every outbound request of a run through one colly collector.
type Client struct {
	collector *colly.Collector
	metrics   *Metrics

	mu           sync.Mutex
	requestCount int
	errorCount   int
	failedURLs   []string
	errorsByType map[string]int
}

// ClientStats is a snapshot of the request counters of a Client.
type ClientStats struct {
	RequestCount int
	ErrorCount   int
	FailedURLs   []string
	ErrorsByType map[string]int
}

// NewClient builds a Client configured from cfg. metrics may be nil.
func NewClient(cfg *config.Config, metrics *Metrics) (*Client, error) {
	collector := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.AllowURLRevisit(),
		colly.MaxBodySize(cfg.MaxBodySize),
	)

	collector.SetRequestTimeout(cfg.Timeout)
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       cfg.RequestDelay,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}

	return &Client{
		collector:    collector,
		metrics:      metrics,
		errorsByType: make(map[string]int),
	}, nil
}

// Collector exposes the underlying collector, e.g. to swap its transport.
func (c *Client) Collector() *colly.Collector {
	return c.collector
}

// Fetch implements Fetcher.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	return c.Visit(ctx, "fetch", url, nil)
}

// Fetcher returns a Fetcher that labels its requests with phase.
func (c *Client) Fetcher(phase string) Fetcher {
	return phaseFetcher{client: c, phase: phase}
}

type phaseFetcher struct {
	client *Client
	phase  string
}

func (f phaseFetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	return f.client.Visit(ctx, f.phase, url, nil)
}

// Visit requests url on a fresh clone of the collector after setup has
// registered any extra callbacks, and returns the response body.
func (c *Client) Visit(ctx context.Context, phase, url string, setup func(*colly.Collector)) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	collector := c.collector.Clone()

	var (
		body     []byte
		fetchErr error
	)

	collector.OnRequest(func(r *colly.Request) {
		r.Ctx.Put("start", time.Now())
		c.mu.Lock()
		c.requestCount++
		c.mu.Unlock()
		c.metrics.IncRequest(phase)
	})

	collector.OnResponse(func(r *colly.Response) {
		if start, ok := r.Request.Ctx.GetAny("start").(time.Time); ok {
			c.metrics.ObserveDuration(time.Since(start))
		}
		body = r.Body
	})

	collector.OnError(func(r *colly.Response, err error) {
		if fetchErr != nil {
			return
		}
		statusCode := 0
		if r != nil {
			statusCode = r.StatusCode
		}
		fetchErr = classifyError(err, statusCode)
		category := errorTypeLabel(fetchErr)

		c.mu.Lock()
		c.errorCount++
		c.errorsByType[category]++
		c.failedURLs = append(c.failedURLs, url)
		c.mu.Unlock()

		slog.Error("request error",
			slog.String("phase", phase),
			slog.String("url", url),
			slog.Int("status", statusCode),
			slog.String("category", category),
			slog.Any("error", err),
		)
		c.metrics.IncError(category)
	})

	if setup != nil {
		setup(collector)
	}

	err := collector.Visit(url)
	if fetchErr != nil {
		return nil, fetchErr
	}
	if err != nil {
		return nil, fmt.Errorf("visit %s: %w", url, err)
	}
	return body, nil
}

// Stats returns a snapshot of the client counters.
func (c *Client) Stats() ClientStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	failed := make([]string, len(c.failedURLs))
	copy(failed, c.failedURLs)
	byType := make(map[string]int, len(c.errorsByType))
	for k, v := range c.errorsByType {
		byType[k] = v
	}
	return ClientStats{
		RequestCount: c.requestCount,
		ErrorCount:   c.errorCount,
		FailedURLs:   failed,
		ErrorsByType: byType,
	}
}
