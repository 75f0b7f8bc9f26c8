package planner

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/bolpress/newsharvest/internal/pipeline"
)

// pageFetcher serves canned listing bodies keyed by URL and records the
// order in which pages were requested.
type pageFetcher struct {
	pages   map[string]string
	fetched []string
}

func (f *pageFetcher) Fetch(_ context.Context, url string) (pipeline.Document, error) {
	f.fetched = append(f.fetched, url)
	body, ok := f.pages[url]
	if !ok {
		return pipeline.Document{}, fmt.Errorf("fetch %s: not found", url)
	}
	return pipeline.Document{URL: url, Body: []byte(body), StatusCode: 200}, nil
}

func listingHTML(links map[string]string) string {
	html := "<html><body>"
	for href, title := range links {
		html += fmt.Sprintf(`<a href=%q>%s</a>`, href, title)
	}
	return html + "</body></html>"
}

func pathConfig(budget int) Config {
	return Config{
		Source:     "eldeber",
		BaseURL:    "https://eldeber.com.bo",
		Sections:   []string{"economia"},
		PageBudget: budget,
		Pagination: Pagination{Style: "path", Start: 0, FirstBare: true},
		Listing:    Listing{LinkSelector: "a", HrefPrefix: "/", InternalOnly: true},
	}
}

func candidateURLs(result pipeline.PlanResult) []string {
	urls := make([]string, 0, len(result.Candidates))
	for _, c := range result.Candidates {
		urls = append(urls, c.URL)
	}
	return urls
}

func TestPlanStopsSectionOnPageWithNothingNew(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[string]string{
		"https://eldeber.com.bo/economia": listingHTML(map[string]string{
			"/economia/nota-a_1": "Nota A",
		}),
		// Page 1 repeats the frontier: nothing unseen, so pages 2+ must
		// never be requested.
		"https://eldeber.com.bo/economia/1": listingHTML(map[string]string{
			"/economia/nota-a_1": "Nota A",
		}),
		"https://eldeber.com.bo/economia/2": listingHTML(map[string]string{
			"/economia/nota-z_9": "Nota Z",
		}),
	}}

	p := New(pathConfig(5), fetcher, nil, zap.NewNop())
	result, err := p.Plan(context.Background(), nil)
	require.NoError(t, err)

	require.Equal(t, []string{
		"https://eldeber.com.bo/economia",
		"https://eldeber.com.bo/economia/1",
	}, fetcher.fetched)
	require.Equal(t, 2, result.PagesFetched)
	require.Equal(t, 1, result.SectionsVisited)
	require.Zero(t, result.SectionsStoppedOnError)
	require.Equal(t, []string{"https://eldeber.com.bo/economia/nota-a_1"}, candidateURLs(result))
}

func TestPlanDeduplicatesAcrossPages(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[string]string{
		"https://eldeber.com.bo/economia": listingHTML(map[string]string{
			"/economia/nota-a_1": "Nota A",
			"/economia/nota-b_2": "Nota B",
		}),
		"https://eldeber.com.bo/economia/1": listingHTML(map[string]string{
			"/economia/nota-b_2": "Nota B",
			"/economia/nota-c_3": "Nota C",
		}),
	}}

	p := New(pathConfig(2), fetcher, nil, zap.NewNop())
	result, err := p.Plan(context.Background(), nil)
	require.NoError(t, err)

	require.ElementsMatch(t, []string{
		"https://eldeber.com.bo/economia/nota-a_1",
		"https://eldeber.com.bo/economia/nota-b_2",
		"https://eldeber.com.bo/economia/nota-c_3",
	}, candidateURLs(result))
}

func TestPlanSkipsKnownURLs(t *testing.T) {
	t.Parallel()

	fetcher := &pageFetcher{pages: map[string]string{
		"https://eldeber.com.bo/economia": listingHTML(map[string]string{
			"/economia/nota-a_1": "Nota A",
			"/economia/nota-b_2": "Nota B",
		}),
	}}
	existing := map[string]struct{}{
		"https://eldeber.com.bo/economia/nota-a_1": {},
	}

	p := New(pathConfig(1), fetcher, nil, zap.NewNop())
	result, err := p.Plan(context.Background(), existing)
	require.NoError(t, err)

	require.Equal(t, []string{"https://eldeber.com.bo/economia/nota-b_2"}, candidateURLs(result))
}

func TestPlanFetchFailureStopsSectionOnly(t *testing.T) {
	t.Parallel()

	cfg := pathConfig(2)
	cfg.Sections = []string{"economia", "pais"}
	fetcher := &pageFetcher{pages: map[string]string{
		// The economia listing is absent so its first fetch fails; pais
		// must still be planned.
		"https://eldeber.com.bo/pais": listingHTML(map[string]string{
			"/pais/nota-p_7": "Nota P",
		}),
		"https://eldeber.com.bo/pais/1": listingHTML(map[string]string{
			"/pais/nota-p_7": "Nota P",
		}),
	}}

	p := New(cfg, fetcher, nil, zap.NewNop())
	result, err := p.Plan(context.Background(), nil)
	require.NoError(t, err)

	require.Equal(t, 2, result.SectionsVisited)
	require.Equal(t, 1, result.SectionsStoppedOnError)
	require.Equal(t, []string{"https://eldeber.com.bo/pais/nota-p_7"}, candidateURLs(result))
}

func TestPlanHonorsPageBudget(t *testing.T) {
	t.Parallel()

	pages := make(map[string]string)
	pages["https://eldeber.com.bo/economia"] = listingHTML(map[string]string{"/economia/nota-0": "Nota 0"})
	for i := 1; i < 10; i++ {
		pages[fmt.Sprintf("https://eldeber.com.bo/economia/%d", i)] = listingHTML(map[string]string{
			fmt.Sprintf("/economia/nota-%d", i): fmt.Sprintf("Nota %d", i),
		})
	}

	fetcher := &pageFetcher{pages: pages}
	p := New(pathConfig(3), fetcher, nil, zap.NewNop())
	result, err := p.Plan(context.Background(), nil)
	require.NoError(t, err)

	require.Equal(t, 3, result.PagesFetched)
	require.Len(t, result.Candidates, 3)
}

func TestPlanCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := New(pathConfig(1), &pageFetcher{}, nil, zap.NewNop())
	_, err := p.Plan(ctx, nil)
	require.ErrorIs(t, err, context.Canceled)
}

func TestPlanItemSelectorMode(t *testing.T) {
	t.Parallel()

	body := `<html><body>
		<div class="teaser">
			<a href="/nacional/politica/titular-1"><img src="x.jpg"></a>
			<h2 class="qtitle">Titular uno</h2>
		</div>
		<div class="teaser">
			<a href="/nacional/economia/titular-2"><img src="y.jpg"></a>
			<h2 class="qtitle">Titular dos</h2>
		</div>
	</body></html>`

	cfg := Config{
		Source:     "anf",
		BaseURL:    "https://www.noticiasfides.com",
		Sections:   []string{"nacional"},
		PageBudget: 1,
		Pagination: Pagination{Style: "query", Param: "page", Start: 1},
		Listing: Listing{
			ItemSelector:  "div.teaser",
			LinkSelector:  "a",
			TitleSelector: "h2.qtitle",
			InternalOnly:  true,
		},
	}
	fetcher := &pageFetcher{pages: map[string]string{
		"https://www.noticiasfides.com/nacional/?page=1": body,
	}}

	p := New(cfg, fetcher, nil, zap.NewNop())
	result, err := p.Plan(context.Background(), nil)
	require.NoError(t, err)

	require.Len(t, result.Candidates, 2)
	require.Equal(t, "Titular uno", result.Candidates[0].Title)
	require.Equal(t, "https://www.noticiasfides.com/nacional/politica/titular-1", result.Candidates[0].URL)
	require.Equal(t, "nacional", result.Candidates[0].Section)
}

func TestListingURLStyles(t *testing.T) {
	t.Parallel()

	pathPlanner := New(pathConfig(5), nil, nil, zap.NewNop())
	u, err := pathPlanner.listingURL("economia", 0)
	require.NoError(t, err)
	require.Equal(t, "https://eldeber.com.bo/economia", u)

	u, err = pathPlanner.listingURL("economia", 3)
	require.NoError(t, err)
	require.Equal(t, "https://eldeber.com.bo/economia/3", u)

	queryPlanner := New(Config{
		BaseURL:    "https://www.noticiasfides.com",
		Pagination: Pagination{Style: "query", Param: "page", Start: 1},
	}, nil, nil, zap.NewNop())
	u, err = queryPlanner.listingURL("nacional", 2)
	require.NoError(t, err)
	require.Equal(t, "https://www.noticiasfides.com/nacional/?page=2", u)
}
