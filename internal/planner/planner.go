// Package planner enumerates candidate article URLs per section and page,
// stopping a section as soon as a listing page yields nothing unseen.
package planner

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/bolpress/newsharvest/internal/extract"
	"github.com/bolpress/newsharvest/internal/metrics"
	"github.com/bolpress/newsharvest/internal/pipeline"
)

// Pagination describes how a source numbers its listing pages.
type Pagination struct {
	// Style is "path" (…/section/2) or "query" (…/section/?page=2).
	Style string `mapstructure:"style"`
	// Param is the query parameter name for the query style.
	Param string `mapstructure:"param"`
	// Start is the first page number.
	Start int `mapstructure:"start"`
	// FirstBare leaves the page component off the first page.
	FirstBare bool `mapstructure:"first_bare"`
}

// Listing describes how candidate links are located on a listing page.
type Listing struct {
	// ItemSelector scopes each article teaser; empty selects anchors
	// directly across the whole page.
	ItemSelector string `mapstructure:"item_selector"`
	// LinkSelector locates the anchor, within the item when scoped.
	LinkSelector string `mapstructure:"link_selector"`
	// TitleSelector overrides where the title text comes from; the anchor
	// text is the default.
	TitleSelector string `mapstructure:"title_selector"`
	// HrefPrefix filters raw hrefs before resolution ("/" keeps only
	// site-relative links).
	HrefPrefix string `mapstructure:"href_prefix"`
	// InternalOnly drops candidates resolving off the source host.
	InternalOnly bool `mapstructure:"internal_only"`
}

// Config is the per-source crawl plan.
type Config struct {
	Source     string
	BaseURL    string
	Sections   []string
	PageBudget int
	Pagination Pagination
	Listing    Listing
}

// Planner implements pipeline.Planner for one source.
type Planner struct {
	cfg     Config
	fetcher pipeline.Fetcher
	clock   pipeline.Clock
	logger  *zap.Logger
}

// New builds a Planner.
func New(cfg Config, fetcher pipeline.Fetcher, clock pipeline.Clock, logger *zap.Logger) *Planner {
	if cfg.PageBudget <= 0 {
		cfg.PageBudget = 1
	}
	if cfg.Pagination.Param == "" {
		cfg.Pagination.Param = "page"
	}
	if clock == nil {
		clock = pipeline.SystemClock{}
	}
	return &Planner{cfg: cfg, fetcher: fetcher, clock: clock, logger: logger}
}

// Plan walks sections in order and pages in increasing order, collecting
// candidates absent from both the existing-key snapshot and the in-run seen
// set. A page with zero new candidates stops its section; listings are
// assumed reverse-chronological, so the frontier of seen content bounds the
// crawl. A listing page that fails to fetch also stops the section, counted
// separately so transient blips stay observable.
func (p *Planner) Plan(ctx context.Context, existing map[string]struct{}) (pipeline.PlanResult, error) {
	result := pipeline.PlanResult{}
	seen := NewSeenSet()

	for _, section := range p.cfg.Sections {
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("plan canceled: %w", err)
		}
		result.SectionsVisited++
		p.planSection(ctx, section, existing, seen, &result)
	}
	return result, nil
}

func (p *Planner) planSection(
	ctx context.Context,
	section string,
	existing map[string]struct{},
	seen *SeenSet,
	result *pipeline.PlanResult,
) {
	start := p.cfg.Pagination.Start
	for page := start; page < start+p.cfg.PageBudget; page++ {
		listingURL, err := p.listingURL(section, page)
		if err != nil {
			p.logger.Error("bad listing url",
				zap.String("source", p.cfg.Source),
				zap.String("section", section),
				zap.Error(err),
			)
			return
		}

		doc, err := p.fetcher.Fetch(ctx, listingURL)
		if err != nil {
			metrics.CountFetchFailure(p.cfg.Source, "listing")
			result.SectionsStoppedOnError++
			p.logger.Warn("listing fetch failed, stopping section",
				zap.String("source", p.cfg.Source),
				zap.String("section", section),
				zap.String("url", listingURL),
				zap.Error(err),
			)
			return
		}
		result.PagesFetched++
		metrics.CountPageFetched(p.cfg.Source, "listing")

		fresh := p.newCandidates(doc, section, existing, seen)
		if len(fresh) == 0 {
			p.logger.Debug("section caught up",
				zap.String("source", p.cfg.Source),
				zap.String("section", section),
				zap.Int("page", page),
			)
			return
		}
		result.Candidates = append(result.Candidates, fresh...)
	}
}

func (p *Planner) listingURL(section string, page int) (string, error) {
	bare := p.cfg.Pagination.FirstBare && page == p.cfg.Pagination.Start
	switch p.cfg.Pagination.Style {
	case "query":
		joined, err := url.JoinPath(p.cfg.BaseURL, section, "/")
		if err != nil {
			return "", fmt.Errorf("join listing path: %w", err)
		}
		if bare {
			return joined, nil
		}
		u, err := url.Parse(joined)
		if err != nil {
			return "", fmt.Errorf("parse listing url: %w", err)
		}
		q := u.Query()
		q.Set(p.cfg.Pagination.Param, strconv.Itoa(page))
		u.RawQuery = q.Encode()
		return u.String(), nil
	default:
		if bare {
			return url.JoinPath(p.cfg.BaseURL, section)
		}
		return url.JoinPath(p.cfg.BaseURL, section, strconv.Itoa(page))
	}
}

// newCandidates extracts links from a listing page and keeps only those new
// to both the store snapshot and this run.
func (p *Planner) newCandidates(
	doc pipeline.Document,
	section string,
	existing map[string]struct{},
	seen *SeenSet,
) []pipeline.Candidate {
	links := p.extractLinks(doc, section)

	fresh := make([]pipeline.Candidate, 0, len(links))
	for _, cand := range links {
		if _, ok := existing[cand.URL]; ok {
			continue
		}
		if !seen.MarkIfNew(cand.URL) {
			continue
		}
		fresh = append(fresh, cand)
	}
	return fresh
}

func (p *Planner) extractLinks(doc pipeline.Document, section string) []pipeline.Candidate {
	root, err := goquery.NewDocumentFromReader(bytes.NewReader(doc.Body))
	if err != nil {
		p.logger.Warn("unparseable listing page",
			zap.String("source", p.cfg.Source),
			zap.String("url", doc.URL),
			zap.Error(err),
		)
		return nil
	}

	var out []pipeline.Candidate
	now := p.clock.Now()

	appendCandidate := func(href, title string) {
		if p.cfg.Listing.HrefPrefix != "" && !strings.HasPrefix(href, p.cfg.Listing.HrefPrefix) {
			return
		}
		title = extract.CleanText(title)
		if title == "" {
			return
		}
		canon, err := CanonicalURL(doc.URL, href)
		if err != nil {
			return
		}
		if p.cfg.Listing.InternalOnly && !sameHost(p.cfg.BaseURL, canon) {
			return
		}
		out = append(out, pipeline.Candidate{
			URL:          canon,
			Title:        title,
			Section:      section,
			DiscoveredAt: now,
		})
	}

	if p.cfg.Listing.ItemSelector != "" {
		root.Find(p.cfg.Listing.ItemSelector).Each(func(_ int, item *goquery.Selection) {
			link := item.Find(p.cfg.Listing.LinkSelector).First()
			href, ok := link.Attr("href")
			if !ok {
				return
			}
			title := link.Text()
			if p.cfg.Listing.TitleSelector != "" {
				if t := item.Find(p.cfg.Listing.TitleSelector).First(); t.Length() > 0 {
					title = t.Text()
				}
			}
			appendCandidate(href, title)
		})
		return out
	}

	root.Find(p.cfg.Listing.LinkSelector).Each(func(_ int, link *goquery.Selection) {
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		// Image-only anchors carry no usable title.
		if link.Find("img").Length() > 0 && strings.TrimSpace(link.Text()) == "" {
			return
		}
		appendCandidate(href, link.Text())
	})
	return out
}

func sameHost(baseURL, candidate string) bool {
	b, err := url.Parse(baseURL)
	if err != nil {
		return false
	}
	c, err := url.Parse(candidate)
	if err != nil {
		return false
	}
	return strings.EqualFold(b.Hostname(), c.Hostname())
}
