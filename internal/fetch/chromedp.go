package fetch

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/bolpress/newsharvest/internal/pipeline"
)

// ChallengeConfig controls the challenge-resolving fetch strategy.
type ChallengeConfig struct {
	UserAgent   string
	NavTimeout  time.Duration
	MaxParallel int
	// WaitSelector is an element that only exists once the real page is
	// rendered; the fetch waits for it past any interstitial challenge.
	WaitSelector string
	// SettleDelay gives challenge scripts time to redirect after load.
	SettleDelay time.Duration
	DelayMin    time.Duration
	DelayMax    time.Duration
}

// ChromedpFetcher implements pipeline.Fetcher with a headless browser able to
// satisfy scripted bot-verification pages before retrieving content. Selected
// per source, not per request.
type ChromedpFetcher struct {
	cfg         ChallengeConfig
	limiter     chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
	pacer       *Pacer
}

// NewChromedp builds the challenge-resolving fetcher.
func NewChromedp(cfg ChallengeConfig) (*ChromedpFetcher, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavTimeout <= 0 {
		cfg.NavTimeout = 45 * time.Second
	}
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = 500 * time.Millisecond
	}
	var limiter chan struct{}
	if cfg.MaxParallel > 0 {
		limiter = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &ChromedpFetcher{
		cfg:         cfg,
		limiter:     limiter,
		allocator:   allocCtx,
		allocCancel: allocCancel,
		pacer:       NewPacer(cfg.DelayMin, cfg.DelayMax),
	}, nil
}

// Close cancels the browser allocator.
func (f *ChromedpFetcher) Close() {
	f.allocCancel()
}

// Fetch navigates with a headless browser and returns the rendered DOM.
func (f *ChromedpFetcher) Fetch(ctx context.Context, url string) (pipeline.Document, error) {
	f.pacer.Pause(ctx)
	if err := f.acquire(ctx); err != nil {
		return pipeline.Document{}, err
	}
	defer f.release()

	taskCtx, taskCancel := chromedp.NewContext(f.allocator)
	defer taskCancel()
	taskCtx, cancel := context.WithTimeout(taskCtx, f.cfg.NavTimeout)
	defer cancel()

	status := newStatusProbe()
	chromedp.ListenTarget(taskCtx, status.captureEvent)

	start := time.Now()
	html, err := f.navigate(taskCtx, url)
	if err != nil {
		return pipeline.Document{}, err
	}

	code := status.code()
	if code == 0 {
		code = http.StatusOK
	}
	return pipeline.Document{
		URL:        url,
		Body:       []byte(html),
		StatusCode: code,
		FetchedAt:  start.UTC(),
		Rendered:   true,
		Duration:   time.Since(start),
	}, nil
}

func (f *ChromedpFetcher) navigate(ctx context.Context, url string) (string, error) {
	var html string
	actions := []chromedp.Action{
		f.setupAction(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	}
	if f.cfg.WaitSelector != "" {
		actions = append(actions, chromedp.WaitVisible(f.cfg.WaitSelector, chromedp.ByQuery))
	}
	actions = append(actions,
		chromedp.Sleep(f.cfg.SettleDelay),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err := chromedp.Run(ctx, actions...); err != nil {
		return "", fmt.Errorf("chromedp run: %w", err)
	}
	return html, nil
}

func (f *ChromedpFetcher) setupAction() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if f.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(f.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (f *ChromedpFetcher) acquire(ctx context.Context) error {
	if f.limiter == nil {
		return nil
	}
	select {
	case f.limiter <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("browser slot wait canceled: %w", ctx.Err())
	}
}

func (f *ChromedpFetcher) release() {
	if f.limiter == nil {
		return
	}
	select {
	case <-f.limiter:
	default:
	}
}

// statusProbe records the status of the last document response; a challenge
// interstitial may answer first, so only the newest document wins.
type statusProbe struct {
	mu     sync.Mutex
	status int
}

func newStatusProbe() *statusProbe {
	return &statusProbe{}
}

func (p *statusProbe) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	p.mu.Lock()
	p.status = int(resp.Response.Status)
	p.mu.Unlock()
}

func (p *statusProbe) code() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}
