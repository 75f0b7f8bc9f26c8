// Package fetch provides the per-source fetch strategies: a plain Colly
// fetcher and a chromedp-backed one for sources behind scripted challenges.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/bolpress/newsharvest/internal/pipeline"
)

// Config controls the plain HTTP fetch strategy.
type Config struct {
	UserAgent     string
	Timeout       time.Duration
	RespectRobots bool
	DelayMin      time.Duration
	DelayMax      time.Duration
}

// CollyFetcher implements pipeline.Fetcher with a single HTTP GET per call.
// Retries are the caller's concern.
type CollyFetcher struct {
	cfg   Config
	base  *colly.Collector
	pacer *Pacer
}

// NewColly builds the plain fetcher.
func NewColly(cfg Config) *CollyFetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())

	return &CollyFetcher{
		cfg:   cfg,
		base:  c,
		pacer: NewPacer(cfg.DelayMin, cfg.DelayMax),
	}
}

// Fetch retrieves one URL. Any non-success status is returned as an error,
// never a panic; the page is simply treated as absent by callers.
func (f *CollyFetcher) Fetch(ctx context.Context, url string) (pipeline.Document, error) {
	f.pacer.Pause(ctx)
	if err := ctx.Err(); err != nil {
		return pipeline.Document{}, fmt.Errorf("fetch canceled: %w", err)
	}

	collector := f.base.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = !f.cfg.RespectRobots
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		doc      pipeline.Document
		fetchErr error
	)
	start := time.Now()
	collector.OnResponse(func(r *colly.Response) {
		doc = pipeline.Document{
			URL:        r.Request.URL.String(),
			Body:       append([]byte(nil), r.Body...),
			StatusCode: r.StatusCode,
			FetchedAt:  start.UTC(),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return pipeline.Document{}, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return pipeline.Document{}, fmt.Errorf("visit %s: %w", url, err)
		}
		if fetchErr != nil {
			return pipeline.Document{}, fmt.Errorf("fetch %s: %w", url, fetchErr)
		}
	}

	if doc.StatusCode != http.StatusOK || len(doc.Body) == 0 {
		return pipeline.Document{}, fmt.Errorf("fetch %s: unusable response (status %d, %d bytes)",
			url, doc.StatusCode, len(doc.Body))
	}
	return doc, nil
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
